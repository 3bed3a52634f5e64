// Package storage persists itinerary rows and reads back the state a
// resumed harvest needs.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Sink is the interface for all itinerary stores.
type Sink interface {
	// Name returns the storage backend identifier.
	Name() string

	// EnsureSchema prepares the store for appends. It is idempotent and
	// never discards existing rows.
	EnsureSchema(ctx context.Context) error

	// Store durably appends rows. When it returns nil the rows survive a crash.
	Store(ctx context.Context, rows []types.ItineraryRow) error

	// ProcessedKeys returns every distinct (voyage, ship) pair in the store.
	ProcessedKeys(ctx context.Context) ([]types.VoyageKey, error)

	// Deduplicate writes a copy of the store keeping the first row per
	// (Cruise Line, Ship Name, Date, Port) and returns where it went.
	Deduplicate(ctx context.Context) (string, error)

	// Close flushes pending writes and releases resources.
	Close() error
}

// New creates the Sink selected by cfg.Storage.Type.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Sink, error) {
	switch cfg.Storage.Type {
	case "", "csv":
		return NewCSVStore(cfg.Storage.OutputPath, logger), nil
	case "mongodb":
		return NewMongoStore(ctx, cfg.Storage.MongoURI, cfg.Storage.MongoDatabase, cfg.Storage.MongoCollection, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}
