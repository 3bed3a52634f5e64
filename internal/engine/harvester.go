package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/itinerary"
	"github.com/IshaanNene/cruisecrawl/internal/pipeline"
	"github.com/IshaanNene/cruisecrawl/internal/storage"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// State represents the harvester's current lifecycle state.
type State int32

const (
	StateIdle     State = 0
	StateRunning  State = 1
	StateStopping State = 2
	StateStopped  State = 3
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats tracks harvest statistics.
type Stats struct {
	Pages             atomic.Int64
	Ships             atomic.Int64
	ShipsSkipped      atomic.Int64
	ShipsFailed       atomic.Int64
	VoyagesStored     atomic.Int64
	VoyagesSkipped    atomic.Int64
	VoyagesFailed     atomic.Int64
	RowsStored        atomic.Int64
	AtSeaRows         atomic.Int64
	RowsDropped       atomic.Int64
	UnparsedFragments atomic.Int64
	Requests          atomic.Int64
	StartTime         time.Time
}

// Snapshot returns the counters by name.
func (s *Stats) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages":              s.Pages.Load(),
		"ships":              s.Ships.Load(),
		"ships_skipped":      s.ShipsSkipped.Load(),
		"ships_failed":       s.ShipsFailed.Load(),
		"voyages_stored":     s.VoyagesStored.Load(),
		"voyages_skipped":    s.VoyagesSkipped.Load(),
		"voyages_failed":     s.VoyagesFailed.Load(),
		"rows_stored":        s.RowsStored.Load(),
		"at_sea_rows":        s.AtSeaRows.Load(),
		"rows_dropped":       s.RowsDropped.Load(),
		"unparsed_fragments": s.UnparsedFragments.Load(),
		"requests":           s.Requests.Load(),
	}
}

// Source is the remote site as the harvester sees it.
type Source interface {
	ShipListPage(ctx context.Context, page int) (*types.ShipListPage, error)
	ShipDetail(ctx context.Context, ship types.ShipRef) (*types.ShipDetail, error)
	VoyageItinerary(ctx context.Context, voyageID string) ([]types.StopText, error)
}

// Harvester walks the ship listing page by page, ship by ship and voyage by
// voyage, storing each voyage's reconstructed itinerary exactly once.
//
// All fetching and writing happens on the goroutine that calls Run.
type Harvester struct {
	cfg        *config.Config
	logger     *slog.Logger
	source     Source
	sink       storage.Sink
	tracker    *Tracker
	checkpoint *CheckpointManager
	pipeline   *pipeline.Pipeline
	throttle   *Throttle

	state           atomic.Int32
	stats           *Stats
	sinceCheckpoint int

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New creates a Harvester reading from source and writing to sink.
func New(cfg *config.Config, source Source, sink storage.Sink, logger *slog.Logger) *Harvester {
	return &Harvester{
		cfg:        cfg,
		logger:     logger.With("component", "harvester"),
		source:     source,
		sink:       sink,
		tracker:    NewTracker(cfg.Engine.Granularity),
		checkpoint: NewCheckpointManager(cfg.Engine.CheckpointPath),
		pipeline:   pipeline.NewHarvest(logger),
		throttle:   NewThrottle(cfg.Engine.PolitenessDelay),
		stats:      &Stats{},
	}
}

// Prepare readies the sink and rebuilds the tracker from persisted state:
// every key in the store plus any keys in the checkpoint file.
func (h *Harvester) Prepare(ctx context.Context) error {
	if err := h.sink.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("prepare %s store: %w", h.sink.Name(), err)
	}

	keys, err := h.sink.ProcessedKeys(ctx)
	if err != nil {
		return fmt.Errorf("scan %s store: %w", h.sink.Name(), err)
	}
	h.tracker.Seed(keys)

	fromCheckpoint, err := h.checkpoint.Load(h.tracker)
	if err != nil {
		// The store is authoritative; a bad checkpoint only costs refetches.
		h.logger.Warn("ignoring unreadable checkpoint", "error", err)
	}

	h.logger.Info("crawl state restored",
		"store", h.sink.Name(),
		"stored_keys", len(keys),
		"checkpoint_keys", fromCheckpoint,
		"processed", h.tracker.Count(),
		"granularity", h.cfg.Engine.Granularity,
	)
	return nil
}

// Run harvests until the listing is exhausted, ctx is cancelled, Stop is
// called, or a fatal error occurs. Cancellation is a graceful stop and
// returns nil; rate limiting and storage failures are returned.
func (h *Harvester) Run(ctx context.Context) error {
	if !h.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("harvester is in state %s, cannot start", State(h.state.Load()))
	}

	ctx, cancel := context.WithCancel(ctx)
	h.mu.Lock()
	h.cancel = cancel
	h.mu.Unlock()
	defer cancel()

	h.stats.StartTime = time.Now()
	h.logger.Info("harvest starting",
		"start_page", h.cfg.Engine.StartPage,
		"max_pages", h.cfg.Engine.MaxPages,
		"politeness_delay", h.cfg.Engine.PolitenessDelay,
	)

	err := h.run(ctx)

	if cerr := h.checkpoint.Save(h.tracker, h.stats); cerr != nil {
		h.logger.Error("final checkpoint save failed", "error", cerr)
	}
	h.state.Store(int32(StateStopped))

	switch types.Classify(err) {
	case types.OutcomeOK:
		h.logger.Info("harvest complete", "elapsed", time.Since(h.stats.StartTime).String(), "stats", h.stats.Snapshot())
		return nil
	case types.OutcomeCanceled:
		h.logger.Info("harvest interrupted", "elapsed", time.Since(h.stats.StartTime).String(), "stats", h.stats.Snapshot())
		return nil
	default:
		h.logger.Error("harvest aborted", "error", err, "stats", h.stats.Snapshot())
		return err
	}
}

// Stop requests a graceful stop; the current request finishes first.
func (h *Harvester) Stop() {
	if !h.state.CompareAndSwap(int32(StateRunning), int32(StateStopping)) {
		return
	}
	h.logger.Info("harvester stopping...")
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cancel != nil {
		h.cancel()
	}
}

// Stats returns the current harvest statistics.
func (h *Harvester) Stats() *Stats { return h.stats }

// Tracker returns the crawl-state tracker.
func (h *Harvester) Tracker() *Tracker { return h.tracker }

// Throttle returns the request throttle.
func (h *Harvester) Throttle() *Throttle { return h.throttle }

// GetState returns the current harvester state.
func (h *Harvester) GetState() State { return State(h.state.Load()) }

func (h *Harvester) run(ctx context.Context) error {
	start := max(h.cfg.Engine.StartPage, 1)
	endPage := 0

	for page := start; ; page++ {
		if endPage > 0 && page > endPage {
			return nil
		}
		if h.cfg.Engine.MaxPages > 0 && page >= start+h.cfg.Engine.MaxPages {
			h.logger.Info("page limit reached", "max_pages", h.cfg.Engine.MaxPages)
			return nil
		}

		listing, err := h.fetchShipList(ctx, page)
		if err != nil {
			if endPage == 0 {
				// Without the first page there is no page count to work from.
				return fmt.Errorf("ship list page %d: %w", page, err)
			}
			if stop := h.tolerate(err, "ship list page failed", "page", page); stop != nil {
				return stop
			}
			continue
		}

		if endPage == 0 {
			if listing.Total <= 0 {
				return &types.ParseError{URL: fmt.Sprintf("ship list page %d", page), Selector: "span.total", Err: errors.New("ship total missing")}
			}
			perPage := max(h.cfg.Engine.ShipsPerPage, 1)
			endPage = (listing.Total + perPage - 1) / perPage
			h.logger.Info("ship listing sized", "total_ships", listing.Total, "pages", endPage)
		}

		h.stats.Pages.Add(1)
		h.logger.Info("ship list page", "page", page, "of", endPage, "ships", len(listing.Ships))

		for _, ship := range listing.Ships {
			if err := h.harvestShip(ctx, ship); err != nil {
				if stop := h.tolerate(err, "ship failed", "ship", ship.Name); stop != nil {
					return stop
				}
				h.stats.ShipsFailed.Add(1)
			}
		}
	}
}

// tolerate logs a recoverable error and returns nil, or returns err when the
// run has to end.
func (h *Harvester) tolerate(err error, msg string, args ...any) error {
	switch types.Classify(err) {
	case types.OutcomeRecoverable:
		h.logger.Error(msg, append(args, "error", err)...)
		return nil
	default:
		return err
	}
}

func (h *Harvester) fetchShipList(ctx context.Context, page int) (*types.ShipListPage, error) {
	if err := h.throttle.Wait(ctx); err != nil {
		return nil, err
	}
	h.stats.Requests.Add(1)
	return h.source.ShipListPage(ctx, page)
}

func (h *Harvester) harvestShip(ctx context.Context, ship types.ShipRef) error {
	logger := h.logger.With("ship", ship.Name)

	if h.tracker.SkipsShips() && h.tracker.IsShipSeen(ship.Name) {
		h.stats.ShipsSkipped.Add(1)
		logger.Debug("ship already recorded, skipping")
		return nil
	}

	if err := h.throttle.Wait(ctx); err != nil {
		return err
	}
	h.stats.Requests.Add(1)
	detail, err := h.source.ShipDetail(ctx, ship)
	if err != nil {
		return err
	}
	h.stats.Ships.Add(1)
	logger.Info("ship", "cruise_line", detail.CruiseLine, "voyages", len(detail.Voyages))

	for _, voyage := range detail.Voyages {
		if err := h.harvestVoyage(ctx, logger, ship, detail, voyage); err != nil {
			if stop := h.tolerate(err, "voyage failed", "ship", ship.Name, "voyage_id", voyage.ID); stop != nil {
				return stop
			}
			h.stats.VoyagesFailed.Add(1)
		}
	}
	return nil
}

func (h *Harvester) harvestVoyage(ctx context.Context, logger *slog.Logger, ship types.ShipRef, detail *types.ShipDetail, voyage types.VoyageRef) error {
	logger = logger.With("voyage_id", voyage.ID)

	if h.tracker.IsProcessed(voyage.ID, ship.Name) {
		h.stats.VoyagesSkipped.Add(1)
		logger.Debug("voyage already processed, skipping")
		return nil
	}
	if voyage.Year == 0 {
		h.stats.VoyagesFailed.Add(1)
		logger.Warn("voyage has no year, skipping")
		return nil
	}

	if err := h.throttle.Wait(ctx); err != nil {
		return err
	}
	h.stats.Requests.Add(1)
	stopTexts, err := h.source.VoyageItinerary(ctx, voyage.ID)
	if err != nil {
		return err
	}

	res := itinerary.Reconstruct(stopTexts, voyage.Year)
	for _, frag := range res.Skipped {
		logger.Warn("date fragment skipped", "fragment", frag)
	}
	h.stats.UnparsedFragments.Add(int64(len(res.Skipped)))

	if len(res.Stops) == 0 {
		h.stats.VoyagesFailed.Add(1)
		logger.Warn("voyage has no usable stops", "raw_rows", len(stopTexts))
		return nil
	}

	rows := make([]types.ItineraryRow, 0, len(res.Stops))
	for _, stop := range res.Stops {
		rows = append(rows, types.ItineraryRow{
			VoyageID:      voyage.ID,
			CruiseLine:    detail.CruiseLine,
			ShipName:      ship.Name,
			Date:          stop.ISODate(),
			Time:          stop.TimeWindow,
			Port:          stop.Port,
			MaxPassengers: detail.MaxPassengers,
			Crew:          detail.Crew,
		})
	}

	rows, dropped, err := h.pipeline.ProcessAll(rows)
	if err != nil {
		return err
	}
	h.stats.RowsDropped.Add(int64(dropped))
	if len(rows) == 0 {
		h.stats.VoyagesFailed.Add(1)
		logger.Warn("every row of the voyage was dropped", "dropped", dropped)
		return nil
	}

	if err := h.sink.Store(ctx, rows); err != nil {
		return err
	}
	h.tracker.MarkProcessed(voyage.ID, ship.Name)

	atSea := 0
	for i := range rows {
		if rows[i].IsAtSea() {
			atSea++
		}
	}
	h.stats.VoyagesStored.Add(1)
	h.stats.RowsStored.Add(int64(len(rows)))
	h.stats.AtSeaRows.Add(int64(atSea))

	logger.Info("voyage stored",
		"rows", len(rows),
		"at_sea", atSea,
		"year", res.Year,
	)

	h.maybeCheckpoint()
	return nil
}

func (h *Harvester) maybeCheckpoint() {
	if !h.checkpoint.Enabled() || h.cfg.Engine.CheckpointEvery <= 0 {
		return
	}
	h.sinceCheckpoint++
	if h.sinceCheckpoint < h.cfg.Engine.CheckpointEvery {
		return
	}
	h.sinceCheckpoint = 0
	if err := h.checkpoint.Save(h.tracker, h.stats); err != nil {
		h.logger.Error("checkpoint save failed", "error", err)
		return
	}
	h.logger.Debug("checkpoint saved", "processed", h.tracker.Count())
}
