package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/cruisecrawl/internal/pipeline"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// dedupBatchSize bounds InsertMany calls while copying deduplicated rows.
const dedupBatchSize = 500

// MongoStore writes one document per itinerary row to a MongoDB collection.
type MongoStore struct {
	client     *mongo.Client
	database   *mongo.Database
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoStore connects to MongoDB and selects the collection.
func NewMongoStore(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoStore, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	db := client.Database(database)
	return &MongoStore{
		client:     client,
		database:   db,
		collection: db.Collection(collection),
		logger:     logger.With("component", "mongo_storage", "collection", collection),
	}, nil
}

func (s *MongoStore) Name() string { return "mongodb" }

// EnsureSchema creates the (voyage_id, ship_name) index used by key scans.
func (s *MongoStore) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "voyage_id", Value: 1}, {Key: "ship_name", Value: 1}},
		Options: options.Index().SetName("voyage_ship"),
	})
	if err != nil {
		return s.fail(fmt.Errorf("create index: %w", err))
	}
	return nil
}

// Store inserts rows in order. The write concern of the URI decides durability.
func (s *MongoStore) Store(ctx context.Context, rows []types.ItineraryRow) error {
	if len(rows) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	docs := make([]any, len(rows))
	for i := range rows {
		docs[i] = rows[i]
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := s.collection.InsertMany(ctx, docs); err != nil {
		return s.fail(fmt.Errorf("insert: %w", err))
	}

	s.count += len(rows)
	s.logger.Debug("rows stored in mongodb", "count", len(rows), "total", s.count)
	return nil
}

// ProcessedKeys reads the (voyage_id, ship_name) projection of every document.
func (s *MongoStore) ProcessedKeys(ctx context.Context) ([]types.VoyageKey, error) {
	opts := options.Find().SetProjection(bson.D{
		{Key: "_id", Value: 0},
		{Key: "voyage_id", Value: 1},
		{Key: "ship_name", Value: 1},
	})
	cur, err := s.collection.Find(ctx, bson.D{}, opts)
	if err != nil {
		return nil, s.fail(fmt.Errorf("find keys: %w", err))
	}
	defer cur.Close(ctx)

	seen := make(map[types.VoyageKey]struct{})
	var keys []types.VoyageKey
	for cur.Next(ctx) {
		var doc struct {
			VoyageID string `bson:"voyage_id"`
			ShipName string `bson:"ship_name"`
		}
		if err := cur.Decode(&doc); err != nil {
			s.logger.Warn("skipping undecodable document", "error", err)
			continue
		}
		k := types.VoyageKey{VoyageID: doc.VoyageID, ShipName: doc.ShipName}
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	if err := cur.Err(); err != nil {
		return nil, s.fail(fmt.Errorf("scan keys: %w", err))
	}
	return keys, nil
}

// Deduplicate rebuilds <collection>_deduplicated from the first document per
// dedup key, in insertion order.
func (s *MongoStore) Deduplicate(ctx context.Context) (string, error) {
	name := s.collection.Name() + "_deduplicated"
	target := s.database.Collection(name)

	if err := target.Drop(ctx); err != nil {
		return "", s.fail(fmt.Errorf("drop %s: %w", name, err))
	}

	cur, err := s.collection.Find(ctx, bson.D{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return "", s.fail(fmt.Errorf("find rows: %w", err))
	}
	defer cur.Close(ctx)

	dedup := pipeline.New(s.logger)
	dedup.Use(pipeline.NewDedupMiddleware())

	var (
		batch   []any
		in, out int
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if _, err := target.InsertMany(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	for cur.Next(ctx) {
		var row types.ItineraryRow
		if err := cur.Decode(&row); err != nil {
			s.logger.Warn("skipping undecodable document", "error", err)
			continue
		}
		in++
		kept, err := dedup.Process(&row)
		if err != nil {
			return "", s.fail(err)
		}
		if kept == nil {
			continue
		}
		out++
		batch = append(batch, *kept)
		if len(batch) >= dedupBatchSize {
			if err := flush(); err != nil {
				return "", s.fail(fmt.Errorf("insert into %s: %w", name, err))
			}
		}
	}
	if err := cur.Err(); err != nil {
		return "", s.fail(err)
	}
	if err := flush(); err != nil {
		return "", s.fail(fmt.Errorf("insert into %s: %w", name, err))
	}

	s.logger.Info("deduplicated collection written", "collection", name, "rows_in", in, "rows_out", out)
	return name, nil
}

func (s *MongoStore) Close() error {
	s.logger.Info("mongodb storage closing", "rows_written", s.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return s.fail(err)
	}
	return nil
}

func (s *MongoStore) fail(err error) error {
	return &types.StorageError{Backend: "mongodb", Err: err}
}
