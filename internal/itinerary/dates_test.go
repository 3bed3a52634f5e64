package itinerary

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestParseSpanGrammars(t *testing.T) {
	tests := []struct {
		name      string
		fragment  string
		year      int
		wantDates []string
		wantTime  string
		wantYear  int
		grammar   string
	}{
		{
			name:      "day and time range",
			fragment:  "26 Jul 07:00 - 17:00",
			year:      2024,
			wantDates: []string{"2024-07-26"},
			wantTime:  "07:00 - 17:00",
			wantYear:  2024,
			grammar:   "day_time_range",
		},
		{
			name:      "day time to day time",
			fragment:  "30 Jul 14:30 - 31 Jul 17:00",
			year:      2024,
			wantDates: []string{"2024-07-30", "2024-07-31"},
			wantTime:  "14:30 - 17:00",
			wantYear:  2024,
			grammar:   "day_time_to_day_time",
		},
		{
			name:      "day and time",
			fragment:  "25 Jul 17:00",
			year:      2024,
			wantDates: []string{"2024-07-25"},
			wantTime:  "17:00",
			wantYear:  2024,
			grammar:   "day_time",
		},
		{
			name:      "day range",
			fragment:  "27 Jul - 28 Jul",
			year:      2024,
			wantDates: []string{"2024-07-27", "2024-07-28"},
			wantTime:  "",
			wantYear:  2024,
			grammar:   "day_range",
		},
		{
			name:      "single day",
			fragment:  "21 Jul",
			year:      2024,
			wantDates: []string{"2024-07-21"},
			wantTime:  "",
			wantYear:  2024,
			grammar:   "day",
		},
		{
			name:      "surrounding whitespace",
			fragment:  "  \n 25 Jul 17:00 \t",
			year:      2024,
			wantDates: []string{"2024-07-25"},
			wantTime:  "17:00",
			wantYear:  2024,
			grammar:   "day_time",
		},
		{
			name:      "range across new year",
			fragment:  "30 Dec - 2 Jan",
			year:      2024,
			wantDates: []string{"2024-12-30", "2024-12-31", "2025-01-01", "2025-01-02"},
			wantTime:  "",
			wantYear:  2025,
			grammar:   "day_range",
		},
		{
			name:      "timed range across new year",
			fragment:  "31 Dec 18:00 - 1 Jan 08:00",
			year:      2024,
			wantDates: []string{"2024-12-31", "2025-01-01"},
			wantTime:  "18:00 - 08:00",
			wantYear:  2025,
			grammar:   "day_time_to_day_time",
		},
		{
			name:      "leap day retried in next year",
			fragment:  "29 Feb",
			year:      2023,
			wantDates: []string{"2024-02-29"},
			wantTime:  "",
			wantYear:  2024,
			grammar:   "day",
		},
		{
			name:      "long month name and single digit day",
			fragment:  "5 July 9:30",
			year:      2024,
			wantDates: []string{"2024-07-05"},
			wantTime:  "09:30",
			wantYear:  2024,
			grammar:   "day_time",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseSpan(tt.fragment, tt.year)
			if diff := cmp.Diff(tt.wantDates, got.ISODates()); diff != "" {
				t.Errorf("dates mismatch (-want +got):\n%s", diff)
			}
			if got.TimeWindow != tt.wantTime {
				t.Errorf("time window = %q, want %q", got.TimeWindow, tt.wantTime)
			}
			if got.Year != tt.wantYear {
				t.Errorf("year = %d, want %d", got.Year, tt.wantYear)
			}
			if g := Grammar(tt.fragment); g != tt.grammar {
				t.Errorf("grammar = %q, want %q", g, tt.grammar)
			}
		})
	}
}

func TestParseSpanFailures(t *testing.T) {
	fragments := []string{
		"",
		"TBA",
		"Jul 25",
		"32 Jul",
		"31 Feb",
		"12 Foo - 13 Bar",
	}

	for _, f := range fragments {
		got := ParseSpan(f, 2024)
		if got.OK() {
			t.Errorf("ParseSpan(%q) should fail, got %v", f, got.ISODates())
		}
		if got.TimeWindow != "" {
			t.Errorf("ParseSpan(%q) failure should have empty time window, got %q", f, got.TimeWindow)
		}
		if got.Year != 2024 {
			t.Errorf("ParseSpan(%q) failure should keep year 2024, got %d", f, got.Year)
		}
	}
}

func TestParseSpanContiguous(t *testing.T) {
	fragments := []string{
		"27 Jul - 28 Jul",
		"30 Jul 14:30 - 31 Jul 17:00",
		"28 Feb - 3 Mar",
		"30 Dec - 2 Jan",
		"1 Jan - 31 Jan",
		"21 Jul",
	}

	for _, f := range fragments {
		span := ParseSpan(f, 2024)
		if !span.OK() {
			t.Fatalf("ParseSpan(%q) failed", f)
		}
		for i := 1; i < len(span.Dates); i++ {
			if d := daysBetween(span.Dates[i-1], span.Dates[i]); d != 1 {
				t.Errorf("%q: dates %d and %d are %d days apart", f, i-1, i, d)
			}
		}
	}
}

func TestParseSpanLeapRange(t *testing.T) {
	got := ParseSpan("28 Feb - 1 Mar", 2024).ISODates()
	want := []string{"2024-02-28", "2024-02-29", "2024-03-01"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("leap-year range mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractTimeWindow(t *testing.T) {
	tests := map[string]string{
		"21 Jul":                      "",
		"25 Jul 17:00":                "17:00",
		"26 Jul 07:00-17:00":          "07:00 - 17:00",
		"26 Jul 07:00 – 17:00":        "07:00 - 17:00",
		"30 Jul 14:30 - 31 Jul 17:00": "14:30 - 17:00",
		"1 Aug 08:00 / 12:00 / 18:00": "08:00 - 12:00",
		"2 Aug at 7:15, all aboard":   "07:15",
	}

	for in, want := range tests {
		if got := ExtractTimeWindow(in); got != want {
			t.Errorf("ExtractTimeWindow(%q) = %q, want %q", in, got, want)
		}
	}
}

func BenchmarkParseSpan(b *testing.B) {
	fragments := []string{"26 Jul 07:00 - 17:00", "30 Jul 14:30 - 31 Jul 17:00", "21 Jul", "30 Dec - 2 Jan"}
	for i := 0; i < b.N; i++ {
		ParseSpan(fragments[i%len(fragments)], 2024)
	}
}
