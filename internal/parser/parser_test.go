package parser

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func makeResp(t *testing.T, url, body string) *types.Response {
	t.Helper()
	req, err := types.NewRequest(url)
	if err != nil {
		t.Fatalf("NewRequest: %v", err)
	}
	return &types.Response{
		Request:    req,
		StatusCode: 200,
		Body:       []byte(body),
		FinalURL:   url,
	}
}

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(data)
}

func TestParseShipList(t *testing.T) {
	p := NewCruiseMapper(testLogger)
	resp := makeResp(t, "https://www.cruisemapper.com/ships?page=1", fixture(t, "ships_page1.html"))

	page, err := p.ParseShipList(resp)
	if err != nil {
		t.Fatalf("ParseShipList: %v", err)
	}

	want := &types.ShipListPage{
		Total: 1032,
		Ships: []types.ShipRef{
			{Name: "Allure of the Seas", URL: "https://www.cruisemapper.com/ships/Allure-of-the-Seas-553"},
			{Name: "AIDAcosma", URL: "https://www.cruisemapper.com/ships/Aida-Cosma-1989"},
		},
	}
	if diff := cmp.Diff(want, page); diff != "" {
		t.Errorf("ship list mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShipListEmpty(t *testing.T) {
	p := NewCruiseMapper(testLogger)
	resp := makeResp(t, "https://www.cruisemapper.com/ships?page=1", "<html><body>maintenance</body></html>")

	_, err := p.ParseShipList(resp)
	var pe *types.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
}

func TestParseShipDetail(t *testing.T) {
	p := NewCruiseMapper(testLogger)
	resp := makeResp(t, "https://www.cruisemapper.com/ships/Allure-of-the-Seas-553", fixture(t, "ship_detail.html"))

	detail, err := p.ParseShipDetail(resp)
	if err != nil {
		t.Fatalf("ParseShipDetail: %v", err)
	}

	want := &types.ShipDetail{
		CruiseLine:    "Royal Caribbean",
		MaxPassengers: 5484,
		Crew:          2384,
		Voyages: []types.VoyageRef{
			{ID: "1754421", Year: 2024},
			{ID: "1754422", Year: 2024},
			{ID: "1754423", Year: 0},
		},
	}
	if diff := cmp.Diff(want, detail); diff != "" {
		t.Errorf("ship detail mismatch (-want +got):\n%s", diff)
	}
}

func TestParseShipDetailCapacityDegrades(t *testing.T) {
	p := NewCruiseMapper(testLogger)
	body := `<html><body>
		<a class="shipCompanyLink">MSC Cruises</a>
		<table><tr><td>Passengers</td><td>unknown</td></tr></table>
		<table><tr data-row="9"><td class="cruiseDatetime">2025 May 1</td></tr></table>
	</body></html>`

	detail, err := p.ParseShipDetail(makeResp(t, "https://www.cruisemapper.com/ships/x", body))
	if err != nil {
		t.Fatalf("ParseShipDetail: %v", err)
	}
	if detail.MaxPassengers != 0 || detail.Crew != 0 {
		t.Errorf("expected zero capacity, got passengers=%d crew=%d", detail.MaxPassengers, detail.Crew)
	}
	if len(detail.Voyages) != 1 || detail.Voyages[0].Year != 2025 {
		t.Errorf("unexpected voyages: %+v", detail.Voyages)
	}
}

func TestParseItinerary(t *testing.T) {
	p := NewCruiseMapper(testLogger)
	resp := makeResp(t, "https://www.cruisemapper.com/ships/cruise.json?id=1754421", fixture(t, "cruise.json"))

	stops, err := p.ParseItinerary(resp)
	if err != nil {
		t.Fatalf("ParseItinerary: %v", err)
	}

	want := []types.StopText{
		{DateText: "25 Jul 17:00", PortText: "Departing from Fort Lauderdale (Port Everglades), Florida hotels"},
		{DateText: "26 Jul 07:00 - 17:00", PortText: "Arriving in Cozumel, Mexico"},
		{DateText: "27 Jul - 28 Jul", PortText: "Arriving in Roatan, Honduras"},
		{DateText: "30 Jul 14:30 - 31 Jul 17:00", PortText: "Arriving in Costa Maya, Mexico"},
	}
	if diff := cmp.Diff(want, stops); diff != "" {
		t.Errorf("itinerary mismatch (-want +got):\n%s", diff)
	}
}

func TestParseItineraryErrors(t *testing.T) {
	p := NewCruiseMapper(testLogger)
	tests := []struct {
		name string
		body string
	}{
		{"not json", "<html>captcha</html>"},
		{"empty result", `{"result":""}`},
		{"missing result", `{"status":"ok"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := p.ParseItinerary(makeResp(t, "https://www.cruisemapper.com/ships/cruise.json?id=1", tt.body))
			var pe *types.ParseError
			if !errors.As(err, &pe) {
				t.Errorf("expected ParseError, got %v", err)
			}
		})
	}
}

func TestLeadingInt(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"1,032 ships", 1032, true},
		{" 2024 July 20 ", 2024, true},
		{"5,484 - 6,780", 5484, true},
		{"TBA", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := leadingInt(tt.in)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("leadingInt(%q) = %d, %v; want %d, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
