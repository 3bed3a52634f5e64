package types

import (
	"html"
	"regexp"
	"strconv"
	"strings"
)

// AtSea is the synthetic port for days with no recorded port call.
const AtSea = "At Sea"

// Header is the fixed column layout of the itinerary store.
var Header = []string{
	"Itinerary Id",
	"Cruise Line",
	"Ship Name",
	"Date",
	"Time",
	"Port",
	"Max Passengers",
	"Crew",
}

// Column indexes into Header.
const (
	ColVoyageID = iota
	ColCruiseLine
	ColShipName
	ColDate
	ColTime
	ColPort
	ColMaxPassengers
	ColCrew
)

// ItineraryRow is one persisted day of a voyage.
type ItineraryRow struct {
	VoyageID   string `bson:"voyage_id"   json:"voyage_id"`
	CruiseLine string `bson:"cruise_line" json:"cruise_line"`
	ShipName   string `bson:"ship_name"   json:"ship_name"`
	// Date is YYYY-MM-DD.
	Date string `bson:"date" json:"date"`
	// Time is empty, "HH:MM" or "HH:MM - HH:MM".
	Time string `bson:"time" json:"time"`
	Port string `bson:"port" json:"port"`

	// Zero means the value could not be extracted.
	MaxPassengers int `bson:"max_passengers,omitempty" json:"max_passengers,omitempty"`
	Crew          int `bson:"crew,omitempty"           json:"crew,omitempty"`
}

// Key returns the processed-key identity of the row's voyage.
func (r *ItineraryRow) Key() VoyageKey {
	return VoyageKey{VoyageID: r.VoyageID, ShipName: r.ShipName}
}

// DedupKey identifies rows describing the same port call regardless of voyage or time.
func (r *ItineraryRow) DedupKey() string {
	return strings.Join([]string{r.CruiseLine, r.ShipName, r.Date, r.Port}, "\x1f")
}

// IsAtSea reports whether the row is a gap-filled sea day.
func (r *ItineraryRow) IsAtSea() bool {
	return r.Port == AtSea
}

// Record renders the row in Header order.
func (r *ItineraryRow) Record() []string {
	return []string{
		r.VoyageID,
		r.CruiseLine,
		r.ShipName,
		r.Date,
		r.Time,
		r.Port,
		formatCount(r.MaxPassengers),
		formatCount(r.Crew),
	}
}

// RowFromRecord is the inverse of Record. Unreadable counts degrade to zero.
func RowFromRecord(rec []string) (*ItineraryRow, bool) {
	if len(rec) < len(Header) {
		return nil, false
	}
	return &ItineraryRow{
		VoyageID:      rec[ColVoyageID],
		CruiseLine:    rec[ColCruiseLine],
		ShipName:      rec[ColShipName],
		Date:          rec[ColDate],
		Time:          rec[ColTime],
		Port:          rec[ColPort],
		MaxPassengers: parseCount(rec[ColMaxPassengers]),
		Crew:          parseCount(rec[ColCrew]),
	}, true
}

func formatCount(n int) string {
	if n <= 0 {
		return ""
	}
	return strconv.Itoa(n)
}

func parseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

var tagRe = regexp.MustCompile(`<[^>]*>`)

// CleanText strips markup, unescapes entities and collapses whitespace. Names
// are stored in this form, so lookups against stored rows must use it too.
func CleanText(s string) string {
	if s == "" {
		return s
	}
	s = html.UnescapeString(tagRe.ReplaceAllString(s, ""))
	return strings.Join(strings.Fields(s), " ")
}

// VoyageKey is the compound identity used to make harvesting idempotent.
type VoyageKey struct {
	VoyageID string `json:"voyage_id"`
	ShipName string `json:"ship_name"`
}

func (k VoyageKey) String() string {
	return k.ShipName + "#" + k.VoyageID
}

// ShipRef is a ship entry on a listing page.
type ShipRef struct {
	Name string
	URL  string
}

// ShipListPage is one page of the paginated ship listing.
type ShipListPage struct {
	Ships []ShipRef
	// Total is the site-wide ship count, used to bound pagination.
	Total int
}

// VoyageRef is a voyage listed on a ship's detail page.
type VoyageRef struct {
	ID string
	// Year is the contextual year for the voyage's date fragments. Zero if unknown.
	Year int
}

// ShipDetail is the data extracted from a ship's detail page.
type ShipDetail struct {
	CruiseLine    string
	MaxPassengers int
	Crew          int
	Voyages       []VoyageRef
}

// StopText is one raw row of a voyage itinerary table.
type StopText struct {
	DateText string
	PortText string
}
