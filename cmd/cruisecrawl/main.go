package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/IshaanNene/cruisecrawl/internal/config"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "cruisecrawl",
		Short: "Incremental cruise itinerary harvester",
		Long: `cruisecrawl walks the cruisemapper ship listing, rebuilds every voyage's
day-by-day itinerary (sea days included) and appends it to a CSV file or a
MongoDB collection.

Runs are incremental: voyages already in the store are skipped, so an
interrupted or rate-limited harvest resumes where it stopped.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(harvestCmd())
	rootCmd.AddCommand(dedupCmd())
	rootCmd.AddCommand(parseDateCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	return rootCmd
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cruisecrawl %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Show current configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "Engine:\n")
			fmt.Fprintf(w, "  Politeness Delay:   %s\n", cfg.Engine.PolitenessDelay)
			fmt.Fprintf(w, "  Request Timeout:    %s\n", cfg.Engine.RequestTimeout)
			fmt.Fprintf(w, "  Max Retries:        %d (backoff from %s)\n", cfg.Engine.MaxRetries, cfg.Engine.RetryDelay)
			fmt.Fprintf(w, "  Pages:              from %d, max %d, %d ships each\n", cfg.Engine.StartPage, cfg.Engine.MaxPages, cfg.Engine.ShipsPerPage)
			fmt.Fprintf(w, "  Granularity:        %s\n", cfg.Engine.Granularity)
			fmt.Fprintf(w, "  Checkpoint:         %q every %d voyages\n", cfg.Engine.CheckpointPath, cfg.Engine.CheckpointEvery)
			fmt.Fprintf(w, "  Respect robots.txt: %v\n", cfg.Engine.RespectRobotsTxt)
			fmt.Fprintf(w, "  User Agents:        %d configured\n", len(cfg.Engine.UserAgents))
			fmt.Fprintf(w, "\nFetcher:\n")
			fmt.Fprintf(w, "  Type:               %s\n", cfg.Fetcher.Type)
			fmt.Fprintf(w, "  Stealth:            %v\n", cfg.Fetcher.Stealth)
			fmt.Fprintf(w, "  Max Body Size:      %d bytes\n", cfg.Fetcher.MaxBodySize)
			fmt.Fprintf(w, "\nSource:\n")
			fmt.Fprintf(w, "  Base URL:           %s\n", cfg.Source.BaseURL)
			fmt.Fprintf(w, "\nStorage:\n")
			fmt.Fprintf(w, "  Type:               %s\n", cfg.Storage.Type)
			fmt.Fprintf(w, "  Output Path:        %s\n", cfg.Storage.OutputPath)
			fmt.Fprintf(w, "  Deduplicate:        %v\n", cfg.Storage.Deduplicate)
			if cfg.Storage.Type == "mongodb" {
				fmt.Fprintf(w, "  Mongo:              %s.%s\n", cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection)
			}
			fmt.Fprintf(w, "\nLogging:\n")
			fmt.Fprintf(w, "  Level:              %s (%s)\n", cfg.Logging.Level, cfg.Logging.Format)
			fmt.Fprintf(w, "\nMetrics:\n")
			fmt.Fprintf(w, "  Enabled:            %v\n", cfg.Metrics.Enabled)
			fmt.Fprintf(w, "  Port:               %d\n", cfg.Metrics.Port)
			fmt.Fprintf(w, "\nAPI:\n")
			fmt.Fprintf(w, "  Enabled:            %v\n", cfg.API.Enabled)
			fmt.Fprintf(w, "  Port:               %d\n", cfg.API.Port)
			return nil
		},
	}
}

// loadConfig loads and validates configuration after apply has layered the
// command's flags on top.
func loadConfig(apply func(*config.Config) error) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if apply != nil {
		if err := apply(cfg); err != nil {
			return nil, err
		}
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// setupLogger creates a structured logger from the logging section.
func setupLogger(cfg config.LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
