package itinerary

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

type flatStop struct {
	Date string
	Time string
	Port string
}

func flatten(stops []Stop) []flatStop {
	out := make([]flatStop, len(stops))
	for i, s := range stops {
		out[i] = flatStop{Date: s.ISODate(), Time: s.TimeWindow, Port: s.Port}
	}
	return out
}

func TestReconstructFillsSeaDays(t *testing.T) {
	rows := []types.StopText{
		{DateText: "20 Jul 17:00", PortText: "Departing from Miami"},
		{DateText: "23 Jul 08:00 - 16:00", PortText: "Arriving in Cozumel hotels"},
	}

	res := Reconstruct(rows, 2024)

	want := []flatStop{
		{"2024-07-20", "17:00", "Miami"},
		{"2024-07-21", "", types.AtSea},
		{"2024-07-22", "", types.AtSea},
		{"2024-07-23", "08:00 - 16:00", "Cozumel"},
	}
	if diff := cmp.Diff(want, flatten(res.Stops)); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
	if res.SeaDays() != 2 {
		t.Errorf("SeaDays() = %d, want 2", res.SeaDays())
	}
}

func TestReconstructBackwardJump(t *testing.T) {
	rows := []types.StopText{
		{DateText: "31 Dec", PortText: "Sydney"},
		{DateText: "2 Jan", PortText: "Hobart"},
	}

	res := Reconstruct(rows, 2024)

	want := []flatStop{
		{"2024-12-31", "", "Sydney"},
		{"2025-01-02", "", "Hobart"},
	}
	if diff := cmp.Diff(want, flatten(res.Stops)); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
	if res.Year != 2025 {
		t.Errorf("final year = %d, want 2025", res.Year)
	}
}

func TestReconstructBackwardJumpShiftsWholeSpan(t *testing.T) {
	rows := []types.StopText{
		{DateText: "31 Dec", PortText: "Auckland"},
		{DateText: "1 Jan - 2 Jan", PortText: "Bay of Islands"},
		{DateText: "3 Jan", PortText: "Tauranga"},
	}

	res := Reconstruct(rows, 2024)

	want := []flatStop{
		{"2024-12-31", "", "Auckland"},
		{"2025-01-01", "", "Bay of Islands"},
		{"2025-01-02", "", "Bay of Islands"},
		{"2025-01-03", "", "Tauranga"},
	}
	if diff := cmp.Diff(want, flatten(res.Stops)); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
	if res.Year != 2025 {
		t.Errorf("final year = %d, want 2025", res.Year)
	}
}

func TestReconstructLeapDayWithoutNextYearIsSkipped(t *testing.T) {
	rows := []types.StopText{
		{DateText: "30 Dec", PortText: "Lisbon"},
		{DateText: "29 Feb", PortText: "Funchal"},
		{DateText: "31 Dec", PortText: "Santa Cruz de Tenerife"},
	}

	res := Reconstruct(rows, 2024)

	want := []flatStop{
		{"2024-12-30", "", "Lisbon"},
		{"2024-12-31", "", "Santa Cruz de Tenerife"},
	}
	if diff := cmp.Diff(want, flatten(res.Stops)); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"29 Feb"}, res.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
	if res.Year != 2024 {
		t.Errorf("final year = %d, want 2024", res.Year)
	}
}

func TestReconstructRangeAcrossNewYearCarriesYear(t *testing.T) {
	rows := []types.StopText{
		{DateText: "30 Dec - 1 Jan", PortText: "At sea cruising"},
		{DateText: "2 Jan 09:00", PortText: "Arriving in Nassau"},
	}

	res := Reconstruct(rows, 2024)

	want := []flatStop{
		{"2024-12-30", "", "At sea cruising"},
		{"2024-12-31", "", "At sea cruising"},
		{"2025-01-01", "", "At sea cruising"},
		{"2025-01-02", "09:00", "Nassau"},
	}
	if diff := cmp.Diff(want, flatten(res.Stops)); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstructSkipsUnparseableFragments(t *testing.T) {
	rows := []types.StopText{
		{DateText: "20 Jul", PortText: "Barcelona"},
		{DateText: "TBA", PortText: "Marseille"},
		{DateText: "22 Jul 07:00 - 18:00", PortText: "Genoa"},
	}

	res := Reconstruct(rows, 2024)

	want := []flatStop{
		{"2024-07-20", "", "Barcelona"},
		{"2024-07-21", "", types.AtSea},
		{"2024-07-22", "07:00 - 18:00", "Genoa"},
	}
	if diff := cmp.Diff(want, flatten(res.Stops)); diff != "" {
		t.Errorf("stops mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"TBA"}, res.Skipped); diff != "" {
		t.Errorf("skipped mismatch (-want +got):\n%s", diff)
	}
}

func TestReconstructConsecutiveDaysNoFill(t *testing.T) {
	rows := []types.StopText{
		{DateText: "1 Aug", PortText: "Oslo"},
		{DateText: "2 Aug", PortText: "Bergen"},
		{DateText: "2 Aug 20:00", PortText: "Bergen"},
	}

	res := Reconstruct(rows, 2024)
	if res.SeaDays() != 0 {
		t.Errorf("consecutive and same-day stops should not be filled, got %d sea days", res.SeaDays())
	}
	if len(res.Stops) != 3 {
		t.Errorf("expected 3 stops, got %d", len(res.Stops))
	}
}

func TestReconstructEmpty(t *testing.T) {
	res := Reconstruct(nil, 2024)
	if len(res.Stops) != 0 || res.Year != 2024 {
		t.Errorf("empty input should give no stops and unchanged year, got %+v", res)
	}
}

func TestCleanPort(t *testing.T) {
	tests := map[string]string{
		"Arriving in Miami hotels":    "Miami",
		"Departing from Rome":         "Rome",
		"  Arriving in Kotor  ":       "Kotor",
		"Santorini hotels":            "Santorini",
		"Cruising the Inside Passage": "Cruising the Inside Passage",
		"":                            "",
	}

	for in, want := range tests {
		if got := CleanPort(in); got != want {
			t.Errorf("CleanPort(%q) = %q, want %q", in, got, want)
		}
	}
}
