package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/storage"
)

// dedupCmd creates the "dedup" subcommand.
func dedupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dedup [path]",
		Short: "Write a deduplicated copy of the store",
		Long: `Keep the first row for every (Cruise Line, Ship Name, Date, Port) and write
the result next to the source: <name>_deduplicated.csv for a CSV store, or
<collection>_deduplicated for MongoDB. The source is never modified.

With a path argument the CSV file at that path is used regardless of the
configured storage.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runDedup,
	}
}

func runDedup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(func(cfg *config.Config) error {
		if len(args) == 1 {
			cfg.Storage.Type = "csv"
			cfg.Storage.OutputPath = args[0]
		}
		return nil
	})
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	if cfg.Storage.Type == "csv" {
		out, stats, err := storage.DeduplicateCSV(ctx, cfg.Storage.OutputPath, logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d rows in, %d rows out", stats.RowsIn, stats.RowsOut)
		if stats.Malformed > 0 {
			fmt.Fprintf(w, ", %d malformed skipped", stats.Malformed)
		}
		fmt.Fprintf(w, "\nWritten to %s\n", out)
		return nil
	}

	sink, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer sink.Close()

	out, err := sink.Deduplicate(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Written to %s\n", out)
	return nil
}
