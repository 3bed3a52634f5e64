package pipeline

import (
	"fmt"
	"regexp"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/itinerary"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// HTMLSanitizeMiddleware strips stray tags and entities from the names the
// site renders (ports such as "St. John&#39;s", ship names with markup).
type HTMLSanitizeMiddleware struct{}

func NewHTMLSanitizeMiddleware() *HTMLSanitizeMiddleware {
	return &HTMLSanitizeMiddleware{}
}

func (m *HTMLSanitizeMiddleware) Name() string { return "html_sanitize" }

func (m *HTMLSanitizeMiddleware) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	for _, f := range []*string{&row.CruiseLine, &row.ShipName, &row.Port} {
		*f = types.CleanText(*f)
	}
	return row, nil
}

// DateValidateMiddleware rejects rows whose Date is not YYYY-MM-DD or whose
// Time is not empty, HH:MM or "HH:MM - HH:MM". A bad row here is a bug in
// reconstruction, so it is an error rather than a silent drop.
type DateValidateMiddleware struct{}

var timeWindowRe = regexp.MustCompile(`^(\d{2}:\d{2}( - \d{2}:\d{2})?)?$`)

func (m *DateValidateMiddleware) Name() string { return "date_validate" }

func (m *DateValidateMiddleware) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	if _, err := time.Parse(itinerary.ISODate, row.Date); err != nil {
		return nil, fmt.Errorf("date %q: %w", row.Date, err)
	}
	if !timeWindowRe.MatchString(row.Time) {
		return nil, fmt.Errorf("time window %q is malformed", row.Time)
	}
	if row.IsAtSea() && row.Time != "" {
		return nil, fmt.Errorf("at-sea row on %s carries time %q", row.Date, row.Time)
	}
	return row, nil
}

// CapacityMiddleware clears negative capacity figures, which render as empty.
type CapacityMiddleware struct{}

func (m *CapacityMiddleware) Name() string { return "capacity" }

func (m *CapacityMiddleware) Process(row *types.ItineraryRow) (*types.ItineraryRow, error) {
	if row.MaxPassengers < 0 {
		row.MaxPassengers = 0
	}
	if row.Crew < 0 {
		row.Crew = 0
	}
	return row, nil
}
