package types

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for common failure modes.
var (
	ErrRateLimited    = errors.New("rate limited by remote site")
	ErrBlocked        = errors.New("blocked by robots.txt")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrSchemaMismatch = errors.New("store header does not match schema")
	ErrHarvestStopped = errors.New("harvest has been stopped")
	ErrNoFetcher      = errors.New("no fetcher available for request")
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
	Retryable  bool
	// RateLimited is set on 429/503 responses. It is never retried.
	RateLimited bool
	RetryAfter  time.Duration // populated from Retry-After header
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch error for %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable && !e.RateLimited }

// Is reports rate-limited fetch errors as ErrRateLimited.
func (e *FetchError) Is(target error) bool {
	return target == ErrRateLimited && e.RateLimited
}

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the row pipeline.
type PipelineError struct {
	Stage string
	Row   *ItineraryRow
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }

// Outcome tells the harvester what to do after a failed step.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeRecoverable
	OutcomeFatal
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRecoverable:
		return "recoverable"
	case OutcomeFatal:
		return "fatal"
	case OutcomeCanceled:
		return "canceled"
	default:
		return "unknown"
	}
}

// Classify maps an error returned by a collaborator to an Outcome.
// Rate limiting and storage failures end the run; cancellation is a
// graceful stop; everything else only costs the current ship or voyage.
func Classify(err error) Outcome {
	if err == nil {
		return OutcomeOK
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrHarvestStopped) {
		return OutcomeCanceled
	}
	if errors.Is(err, ErrRateLimited) {
		return OutcomeFatal
	}
	var storageErr *StorageError
	if errors.As(err, &storageErr) {
		return OutcomeFatal
	}
	return OutcomeRecoverable
}
