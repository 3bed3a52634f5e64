package config

import (
	"fmt"
	"net/url"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if cfg.Engine.PolitenessDelay < 0 {
		return fmt.Errorf("engine.politeness_delay must be >= 0")
	}
	if cfg.Engine.RequestTimeout <= 0 {
		return fmt.Errorf("engine.request_timeout must be > 0")
	}
	if cfg.Engine.MaxRetries < 0 {
		return fmt.Errorf("engine.max_retries must be >= 0, got %d", cfg.Engine.MaxRetries)
	}
	if cfg.Engine.RetryDelay < 0 {
		return fmt.Errorf("engine.retry_delay must be >= 0")
	}
	if cfg.Engine.StartPage < 1 {
		return fmt.Errorf("engine.start_page must be >= 1, got %d", cfg.Engine.StartPage)
	}
	if cfg.Engine.MaxPages < 0 {
		return fmt.Errorf("engine.max_pages must be >= 0, got %d", cfg.Engine.MaxPages)
	}
	if cfg.Engine.ShipsPerPage < 1 {
		return fmt.Errorf("engine.ships_per_page must be >= 1, got %d", cfg.Engine.ShipsPerPage)
	}
	if cfg.Engine.Granularity != GranularityVoyage && cfg.Engine.Granularity != GranularityShip {
		return fmt.Errorf("engine.granularity must be 'voyage' or 'ship', got %q", cfg.Engine.Granularity)
	}
	if cfg.Engine.CheckpointEvery < 0 {
		return fmt.Errorf("engine.checkpoint_every must be >= 0, got %d", cfg.Engine.CheckpointEvery)
	}

	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}

	if err := ValidateURL(cfg.Source.BaseURL); err != nil {
		return fmt.Errorf("source.base_url: %w", err)
	}

	switch cfg.Storage.Type {
	case "csv":
		if cfg.Storage.OutputPath == "" {
			return fmt.Errorf("storage.output_path is required for csv storage")
		}
	case "mongodb":
		if cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for mongodb storage")
		}
		if cfg.Storage.MongoDatabase == "" || cfg.Storage.MongoCollection == "" {
			return fmt.Errorf("storage.mongo_database and storage.mongo_collection are required for mongodb storage")
		}
	default:
		return fmt.Errorf("storage.type %q is not supported (valid: csv, mongodb)", cfg.Storage.Type)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}
	if cfg.API.Enabled {
		if cfg.API.Port < 1 || cfg.API.Port > 65535 {
			return fmt.Errorf("api.port must be 1-65535, got %d", cfg.API.Port)
		}
		if cfg.Metrics.Enabled && cfg.API.Port == cfg.Metrics.Port {
			return fmt.Errorf("api.port and metrics.port must differ, both are %d", cfg.API.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is usable as a site base URL.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
