// Package itinerary turns the free-text date cells of a voyage itinerary
// into calendar dates and rebuilds the full day-by-day itinerary,
// including the sea days the source leaves out.
package itinerary

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ISODate is the layout of every date the package emits.
const ISODate = "2006-01-02"

// dayMonthLayout parses a "D Mon" token once a year has been appended.
const dayMonthLayout = "2 Jan 2006"

// Span is the parsed form of one date fragment.
type Span struct {
	// Dates is contiguous and non-decreasing. Empty when the fragment did not parse.
	Dates []time.Time

	// TimeWindow is "", "HH:MM" or "HH:MM - HH:MM".
	TimeWindow string

	// Year is the contextual year to use for the next fragment.
	Year int
}

// OK reports whether the fragment parsed.
func (s Span) OK() bool { return len(s.Dates) > 0 }

// ISODates renders Dates as YYYY-MM-DD strings.
func (s Span) ISODates() []string {
	out := make([]string, len(s.Dates))
	for i, d := range s.Dates {
		out[i] = d.Format(ISODate)
	}
	return out
}

// spanMatcher recognizes one date grammar.
type spanMatcher struct {
	name string
	re   *regexp.Regexp
}

const (
	dayMonth = `(\d{1,2}\s+[A-Za-z]{3})[A-Za-z]*\.?`
	clock    = `\d{1,2}:\d{2}`
	dash     = `\s*[-–]\s*`
)

// matchers are tried in order; the most specific grammar comes first.
var matchers = []spanMatcher{
	{"day_time_range", regexp.MustCompile(`^` + dayMonth + `\s+` + clock + dash + clock)},
	{"day_time_to_day_time", regexp.MustCompile(`^` + dayMonth + `\s+` + clock + dash + dayMonth + `\s+` + clock)},
	{"day_time", regexp.MustCompile(`^` + dayMonth + `\s+` + clock)},
	{"day_range", regexp.MustCompile(`^` + dayMonth + dash + dayMonth)},
	{"day", regexp.MustCompile(`^` + dayMonth)},
}

var clockRe = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)

// match returns the start token, the optional end token, and whether the
// grammar matched the trimmed fragment.
func (m spanMatcher) match(fragment string) (start, end string, ok bool) {
	sub := m.re.FindStringSubmatch(fragment)
	if sub == nil {
		return "", "", false
	}
	start = sub[1]
	if len(sub) > 2 {
		end = sub[2]
	}
	return start, end, true
}

// ParseSpan parses a date fragment against the contextual year.
// A fragment that matches no grammar, or names an impossible date, yields
// an empty Span carrying the unchanged year.
func ParseSpan(fragment string, year int) Span {
	fragment = strings.TrimSpace(fragment)
	failed := Span{Year: year}

	for _, m := range matchers {
		startTok, endTok, ok := m.match(fragment)
		if !ok {
			continue
		}

		dates, newYear, ok := expandRange(startTok, endTok, year)
		if !ok {
			return failed
		}
		return Span{
			Dates:      dates,
			TimeWindow: ExtractTimeWindow(fragment),
			Year:       newYear,
		}
	}

	return failed
}

// Grammar names the first grammar that matches fragment, or "" if none does.
func Grammar(fragment string) string {
	fragment = strings.TrimSpace(fragment)
	for _, m := range matchers {
		if _, _, ok := m.match(fragment); ok {
			return m.name
		}
	}
	return ""
}

// expandRange resolves the start and optional end tokens to an inclusive
// list of days. The returned year advances when either token only made
// sense in the following year.
func expandRange(startTok, endTok string, year int) ([]time.Time, int, bool) {
	start, err := parseDayMonth(startTok, year)
	if err != nil {
		start, err = parseDayMonth(startTok, year+1)
		if err != nil {
			return nil, year, false
		}
		year++
	}

	if endTok == "" {
		return []time.Time{start}, year, true
	}

	end, err := parseDayMonth(endTok, start.Year())
	if err != nil || end.Before(start) {
		end, err = parseDayMonth(endTok, start.Year()+1)
		if err != nil || end.Before(start) {
			return nil, year, false
		}
		year = end.Year()
	}

	days := int(end.Sub(start).Hours()/24) + 1
	dates := make([]time.Time, 0, days)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, year, true
}

// parseDayMonth parses "25 Jul" in the given year. Impossible dates such as
// "29 Feb" in a common year are errors, not normalized into March.
func parseDayMonth(tok string, year int) (time.Time, error) {
	tok = strings.Join(strings.Fields(tok), " ")
	return time.Parse(dayMonthLayout, tok+" "+strconv.Itoa(year))
}

// ExtractTimeWindow scans a fragment for clock times independently of the
// date grammar. One time gives "HH:MM"; two or more give "HH:MM - HH:MM"
// using the first two.
func ExtractTimeWindow(fragment string) string {
	times := clockRe.FindAllString(fragment, 2)
	for i, t := range times {
		times[i] = normalizeClock(t)
	}
	switch len(times) {
	case 0:
		return ""
	case 1:
		return times[0]
	default:
		return times[0] + " - " + times[1]
	}
}

// normalizeClock zero-pads single-digit hours ("7:00" -> "07:00").
func normalizeClock(t string) string {
	if len(t) == 4 {
		return "0" + t
	}
	return t
}
