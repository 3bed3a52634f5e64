package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Retrier retries transient fetch failures with exponential back-off.
// Rate-limited responses are returned immediately: the site asked us to stop.
type Retrier struct {
	next       Fetcher
	maxRetries int
	baseDelay  time.Duration
	logger     *slog.Logger
}

// NewRetrier wraps next so each request is attempted up to maxRetries+1 times.
func NewRetrier(next Fetcher, maxRetries int, baseDelay time.Duration, logger *slog.Logger) *Retrier {
	return &Retrier{
		next:       next,
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		logger:     logger.With("component", "retrier"),
	}
}

// Fetch implements Fetcher.
func (r *Retrier) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	delay := r.baseDelay
	for {
		resp, err := r.next.Fetch(ctx, req)
		if err == nil {
			return resp, nil
		}

		var fe *types.FetchError
		if !errors.As(err, &fe) || !fe.IsRetryable() || req.RetryCount >= r.maxRetries {
			if req.RetryCount > 0 {
				return nil, fmt.Errorf("after %d retries: %w", req.RetryCount, err)
			}
			return nil, err
		}

		req.RetryCount++
		r.logger.Warn("fetch failed, retrying",
			"url", req.URLString(),
			"attempt", req.RetryCount,
			"max_retries", r.maxRetries,
			"delay", delay,
			"error", err,
		)

		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
		delay *= 2
	}
}

// Close implements Fetcher.
func (r *Retrier) Close() error { return r.next.Close() }

// Type implements Fetcher.
func (r *Retrier) Type() string { return r.next.Type() }

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
