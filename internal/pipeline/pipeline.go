package pipeline

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Middleware processes a row and returns the (possibly modified) row.
// Return nil to drop the row from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a row. Return nil to drop the row.
	Process(row *types.ItineraryRow) (*types.ItineraryRow, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// NewHarvest returns the pipeline every harvested row goes through before
// it is stored.
func NewHarvest(logger *slog.Logger) *Pipeline {
	p := New(logger)
	p.Use(NewHTMLSanitizeMiddleware())
	p.Use(&TrimMiddleware{})
	p.Use(&RequiredFieldsMiddleware{Columns: []int{
		types.ColVoyageID, types.ColShipName, types.ColDate, types.ColPort,
	}})
	p.Use(&CapacityMiddleware{})
	p.Use(&DateValidateMiddleware{})
	return p
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// Process runs the row through all middleware in order.
func (p *Pipeline) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	current := row

	for _, mw := range p.middlewares {
		result, err := mw.Process(current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage: mw.Name(),
				Row:   current,
				Err:   err,
			}
		}
		if result == nil {
			p.logger.Debug("row dropped", "stage", mw.Name(), "voyage_id", row.VoyageID, "date", row.Date)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// ProcessAll runs every row through the pipeline and returns the survivors
// in order with the number dropped. The first middleware error aborts.
func (p *Pipeline) ProcessAll(rows []types.ItineraryRow) ([]types.ItineraryRow, int, error) {
	out := make([]types.ItineraryRow, 0, len(rows))
	dropped := 0
	for i := range rows {
		row := rows[i]
		result, err := p.Process(&row)
		if err != nil {
			return nil, dropped, err
		}
		if result == nil {
			dropped++
			continue
		}
		out = append(out, *result)
	}
	return out, dropped, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}

// stringFields returns pointers to the row's text columns.
func stringFields(row *types.ItineraryRow) []*string {
	return []*string{&row.VoyageID, &row.CruiseLine, &row.ShipName, &row.Date, &row.Time, &row.Port}
}

// column returns the rendered value of the column at index col of types.Header.
func column(row *types.ItineraryRow, col int) (string, bool) {
	rec := row.Record()
	if col < 0 || col >= len(rec) {
		return "", false
	}
	return rec[col], true
}

// --- Built-in Middleware ---

// RequiredFieldsMiddleware drops rows with an empty value in any listed
// column (indexes into types.Header).
type RequiredFieldsMiddleware struct {
	Columns []int
}

func (m *RequiredFieldsMiddleware) Name() string { return "required_fields" }

func (m *RequiredFieldsMiddleware) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	for _, col := range m.Columns {
		if v, ok := column(row, col); !ok || v == "" {
			return nil, nil
		}
	}
	return row, nil
}

// DedupMiddleware drops rows whose dedup key was already seen.
type DedupMiddleware struct {
	mu   sync.Mutex
	seen map[string]struct{}
	key  func(*types.ItineraryRow) string
}

// NewDedupMiddleware keys rows on (Cruise Line, Ship Name, Date, Port).
func NewDedupMiddleware() *DedupMiddleware {
	return NewDedupMiddlewareFunc(func(r *types.ItineraryRow) string { return r.DedupKey() })
}

// NewDedupMiddlewareFunc keys rows with a caller-supplied function.
func NewDedupMiddlewareFunc(key func(*types.ItineraryRow) string) *DedupMiddleware {
	return &DedupMiddleware{
		seen: make(map[string]struct{}),
		key:  key,
	}
}

func (m *DedupMiddleware) Name() string { return "dedup" }

func (m *DedupMiddleware) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	k := m.key(row)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.seen[k]; exists {
		return nil, nil
	}
	m.seen[k] = struct{}{}
	return row, nil
}

// Seen returns the number of distinct keys passed so far.
func (m *DedupMiddleware) Seen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}

// TrimMiddleware trims whitespace from all text columns.
type TrimMiddleware struct{}

func (m *TrimMiddleware) Name() string { return "trim" }

func (m *TrimMiddleware) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	for _, f := range stringFields(row) {
		*f = strings.TrimSpace(*f)
	}
	return row, nil
}
