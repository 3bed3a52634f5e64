package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher stack selected by cfg.Fetcher.Type: the transport,
// wrapped in transient-error retries and, when enabled, robots.txt checks.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	var (
		base Fetcher
		err  error
	)
	switch cfg.Fetcher.Type {
	case "", "http":
		base, err = NewHTTPFetcher(cfg, logger)
	case "browser":
		base, err = NewBrowserFetcher(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown fetcher type %q", cfg.Fetcher.Type)
	}
	if err != nil {
		return nil, err
	}

	var f Fetcher = NewRetrier(base, cfg.Engine.MaxRetries, cfg.Engine.RetryDelay, logger)
	if cfg.Engine.RespectRobotsTxt {
		f = NewRobotsGuard(f, logger)
	}
	return f, nil
}
