package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/cruisecrawl/internal/itinerary"
)

var parseYear int

// parseDateCmd creates the "parse-date" subcommand, a debugging aid for the
// date grammar.
func parseDateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse-date <fragment>...",
		Short: "Show how itinerary date fragments are parsed",
		Long: `Parse one or more itinerary date fragments, such as "25 Jul 07:00 - 17:00",
in order. The year carries from one fragment to the next exactly as it does
within a voyage.`,
		Example: `  cruisecrawl parse-date --year 2024 "30 Dec - 2 Jan" "3 Jan 08:00"`,
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			year := parseYear
			if year == 0 {
				year = time.Now().Year()
			}
			w := cmd.OutOrStdout()

			for _, fragment := range args {
				span := itinerary.ParseSpan(fragment, year)
				if !span.OK() {
					fmt.Fprintf(w, "%q: no match (year stays %d)\n", fragment, year)
					continue
				}
				fmt.Fprintf(w, "%q: %s\n", fragment, itinerary.Grammar(fragment))
				fmt.Fprintf(w, "  dates: %s\n", strings.Join(span.ISODates(), ", "))
				if span.TimeWindow != "" {
					fmt.Fprintf(w, "  time:  %s\n", span.TimeWindow)
				}
				if span.Year != year {
					fmt.Fprintf(w, "  year:  %d -> %d\n", year, span.Year)
				}
				year = span.Year
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&parseYear, "year", 0, "contextual year (default: current year)")
	return cmd
}
