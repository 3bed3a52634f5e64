package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/cruisecrawl/internal/api"
	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/cruisemapper"
	"github.com/IshaanNene/cruisecrawl/internal/engine"
	"github.com/IshaanNene/cruisecrawl/internal/fetcher"
	"github.com/IshaanNene/cruisecrawl/internal/observability"
	"github.com/IshaanNene/cruisecrawl/internal/parser"
	"github.com/IshaanNene/cruisecrawl/internal/storage"
)

var (
	harvestOutput      string
	harvestStorage     string
	harvestDelay       string
	harvestStartPage   int
	harvestMaxPages    int
	harvestGranularity string
	harvestCheckpoint  string
	harvestFetcher     string
	harvestBaseURL     string
	harvestDedup       bool
	harvestRobots      bool
	harvestAPIPort     int
)

// harvestCmd creates the "harvest" subcommand.
func harvestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "Harvest itineraries into the configured store",
		Long: `Walk the ship listing page by page, fetch every ship and voyage that is
not already in the store, and append the reconstructed itineraries.

A 429 or 503 from the site ends the run immediately; everything stored up to
that point is kept and the next run resumes from there. SIGINT and SIGTERM
stop the run gracefully between requests.`,
		Args: cobra.NoArgs,
		RunE: runHarvest,
	}

	cmd.Flags().StringVarP(&harvestOutput, "output", "o", "", "CSV output path")
	cmd.Flags().StringVar(&harvestStorage, "storage", "", "storage backend: csv, mongodb")
	cmd.Flags().StringVar(&harvestDelay, "delay", "", "politeness delay between requests (e.g. 650ms)")
	cmd.Flags().IntVar(&harvestStartPage, "start-page", 0, "first ship listing page")
	cmd.Flags().IntVar(&harvestMaxPages, "max-pages", -1, "maximum listing pages to walk (0 = all)")
	cmd.Flags().StringVar(&harvestGranularity, "granularity", "", "skip granularity: voyage, ship")
	cmd.Flags().StringVar(&harvestCheckpoint, "checkpoint", "", "checkpoint file path")
	cmd.Flags().StringVar(&harvestFetcher, "fetcher", "", "fetcher type: http, browser")
	cmd.Flags().StringVar(&harvestBaseURL, "base-url", "", "site base URL")
	cmd.Flags().BoolVar(&harvestDedup, "dedup", false, "write a deduplicated copy when the run ends")
	cmd.Flags().BoolVar(&harvestRobots, "respect-robots", false, "honour robots.txt rules and Crawl-delay")
	cmd.Flags().IntVar(&harvestAPIPort, "api-port", 0, "serve the status API on this port")

	return cmd
}

// applyHarvestOverrides applies command-line flag values to the config.
func applyHarvestOverrides(cfg *config.Config) error {
	if harvestOutput != "" {
		cfg.Storage.OutputPath = harvestOutput
	}
	if harvestStorage != "" {
		cfg.Storage.Type = strings.ToLower(harvestStorage)
	}
	if harvestDelay != "" {
		d, err := time.ParseDuration(harvestDelay)
		if err != nil {
			return fmt.Errorf("invalid --delay %q: %w", harvestDelay, err)
		}
		cfg.Engine.PolitenessDelay = d
	}
	if harvestStartPage > 0 {
		cfg.Engine.StartPage = harvestStartPage
	}
	if harvestMaxPages >= 0 {
		cfg.Engine.MaxPages = harvestMaxPages
	}
	if harvestGranularity != "" {
		cfg.Engine.Granularity = strings.ToLower(harvestGranularity)
	}
	if harvestCheckpoint != "" {
		cfg.Engine.CheckpointPath = harvestCheckpoint
	}
	if harvestFetcher != "" {
		cfg.Fetcher.Type = strings.ToLower(harvestFetcher)
	}
	if harvestBaseURL != "" {
		cfg.Source.BaseURL = harvestBaseURL
	}
	if harvestDedup {
		cfg.Storage.Deduplicate = true
	}
	if harvestRobots {
		cfg.Engine.RespectRobotsTxt = true
	}
	if harvestAPIPort > 0 {
		cfg.API.Enabled = true
		cfg.API.Port = harvestAPIPort
	}
	return nil
}

// runHarvest executes the harvest command.
func runHarvest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(applyHarvestOverrides)
	if err != nil {
		return err
	}
	logger := setupLogger(cfg.Logging, os.Stderr)

	ctx := cmd.Context()

	logger.Info("starting harvest",
		"version", config.Version,
		"source", cfg.Source.BaseURL,
		"storage", cfg.Storage.Type,
		"output", cfg.Storage.OutputPath,
		"fetcher", cfg.Fetcher.Type,
	)

	f, err := fetcher.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create fetcher: %w", err)
	}
	robots, _ := f.(*fetcher.RobotsGuard)

	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		f = observability.Instrument(f, metrics)
	}

	client := cruisemapper.NewClient(f, parser.NewCruiseMapper(logger), cfg.Source.BaseURL, logger)
	defer client.Close()

	sink, err := storage.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("create storage: %w", err)
	}
	defer sink.Close()

	h := engine.New(cfg, client, sink, logger)
	if err := h.Prepare(ctx); err != nil {
		return err
	}

	if robots != nil {
		if base, err := url.Parse(cfg.Source.BaseURL); err == nil {
			h.Throttle().SetFloor(func() time.Duration { return robots.CrawlDelay(base.Host) })
		}
	}

	if metrics != nil {
		metrics.Observe(h.Stats())
		metrics.Gauge("processed_voyages", func() int64 { return int64(h.Tracker().Count()) })
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.API.Enabled {
		srv := api.NewServer(cfg.API.Port, h, logger).Start()
		defer api.Shutdown(srv, 5*time.Second)
	}

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down...", "signal", sig)
		h.Stop()
	}()

	runErr := h.Run(ctx)

	// Stored rows stay valid after an abort, so the copy is still worth writing.
	var dedupPath string
	if cfg.Storage.Deduplicate {
		dedupPath, err = sink.Deduplicate(context.WithoutCancel(ctx))
		if err != nil {
			logger.Error("deduplication failed", "error", err)
		}
	}

	printSummary(cmd, cfg, h, dedupPath, logger)
	return runErr
}

func printSummary(cmd *cobra.Command, cfg *config.Config, h *engine.Harvester, dedupPath string, logger *slog.Logger) {
	stats := h.Stats().Snapshot()
	elapsed := time.Since(h.Stats().StartTime)

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "\nHarvest finished in %s\n", elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "   Pages:    %v\n", stats["pages"])
	fmt.Fprintf(w, "   Ships:    %v fetched, %v skipped, %v failed\n", stats["ships"], stats["ships_skipped"], stats["ships_failed"])
	fmt.Fprintf(w, "   Voyages:  %v stored, %v skipped, %v failed\n", stats["voyages_stored"], stats["voyages_skipped"], stats["voyages_failed"])
	fmt.Fprintf(w, "   Rows:     %v stored (%v at sea), %v dropped\n", stats["rows_stored"], stats["at_sea_rows"], stats["rows_dropped"])
	fmt.Fprintf(w, "   Requests: %v\n", stats["requests"])
	if cfg.Storage.Type == "csv" {
		fmt.Fprintf(w, "   Output:   %s\n", cfg.Storage.OutputPath)
	}
	if dedupPath != "" {
		fmt.Fprintf(w, "   Deduped:  %s\n", dedupPath)
	}

	if stats["unparsed_fragments"] > 0 {
		logger.Warn("some date fragments could not be parsed", "count", stats["unparsed_fragments"])
	}
}
