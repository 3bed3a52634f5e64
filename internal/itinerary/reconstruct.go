package itinerary

import (
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Stop is one itinerary entry: a calendar day with its time window and port.
type Stop struct {
	Date       time.Time
	TimeWindow string
	Port       string
}

// ISODate returns the stop's date as YYYY-MM-DD.
func (s Stop) ISODate() string { return s.Date.Format(ISODate) }

// AtSea reports whether the stop was synthesized to fill a gap.
func (s Stop) AtSea() bool { return s.Port == types.AtSea }

// Result is the outcome of reconstructing one voyage.
type Result struct {
	Stops []Stop

	// Year is the contextual year after the last fragment, for logging.
	Year int

	// Skipped holds the date fragments that matched no grammar or had a
	// date that could not be placed in the following year.
	Skipped []string
}

// SeaDays counts the synthesized stops.
func (r Result) SeaDays() int {
	n := 0
	for _, s := range r.Stops {
		if s.AtSea() {
			n++
		}
	}
	return n
}

// foldState is carried from one date to the next.
type foldState struct {
	prev    time.Time
	hasPrev bool
	year    int
}

// Reconstruct rebuilds a voyage's day-by-day itinerary from its raw rows,
// in source order, starting from the voyage's contextual year.
//
// A date that falls before the previous one means the voyage crossed into
// a new year that the per-voyage year hint did not know about; the year is
// bumped and the date moved into it. Gaps of more than a day between port
// calls are filled with At Sea stops. Fragments that do not parse are
// skipped without disturbing the fold, so one bad cell never loses the rest
// of the voyage.
func Reconstruct(rows []types.StopText, year int) Result {
	st := foldState{year: year}
	res := Result{}

	for _, row := range rows {
		span := ParseSpan(row.DateText, st.year)
		if !span.OK() {
			res.Skipped = append(res.Skipped, row.DateText)
			continue
		}
		st.year = span.Year

		port := CleanPort(row.PortText)
		var (
			stops   []Stop
			dropped bool
		)
		st, stops, dropped = st.step(span, port)
		res.Stops = append(res.Stops, stops...)
		if dropped {
			res.Skipped = append(res.Skipped, row.DateText)
		}
	}

	res.Year = st.year
	return res
}

// step folds one parsed span into the state and returns the stops it emits.
// dropped reports a date that had no counterpart in the bumped year (29 Feb);
// the year is left where it was.
func (st foldState) step(span Span, port string) (next foldState, out []Stop, dropped bool) {
	shift := 0

	for _, d := range span.Dates {
		if shift > 0 {
			d = d.AddDate(shift, 0, 0)
		}

		if st.hasPrev {
			diff := daysBetween(st.prev, d)
			switch {
			case diff < 0:
				st.year++
				moved, ok := withYear(d, st.year)
				if !ok {
					st.year--
					dropped = true
					continue
				}
				shift += moved.Year() - d.Year()
				d = moved
			case diff > 1:
				for gap := st.prev.AddDate(0, 0, 1); gap.Before(d); gap = gap.AddDate(0, 0, 1) {
					out = append(out, Stop{Date: gap, Port: types.AtSea})
				}
			}
		}

		out = append(out, Stop{Date: d, TimeWindow: span.TimeWindow, Port: port})
		st.prev = d
		st.hasPrev = true
	}

	return st, out, dropped
}

// daysBetween returns the whole number of days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}

// withYear replaces the year of d. It fails for 29 Feb moved into a common year.
func withYear(d time.Time, year int) (time.Time, bool) {
	moved := time.Date(year, d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	if moved.Month() != d.Month() || moved.Day() != d.Day() {
		return time.Time{}, false
	}
	return moved, true
}
