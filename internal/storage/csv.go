package storage

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/IshaanNene/cruisecrawl/internal/pipeline"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// CSVStore appends itinerary rows to a CSV file with a fixed header.
type CSVStore struct {
	path   string
	file   *os.File
	writer *csv.Writer
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewCSVStore creates a CSV store at path. Nothing is touched on disk until
// EnsureSchema is called.
func NewCSVStore(path string, logger *slog.Logger) *CSVStore {
	return &CSVStore{
		path:   path,
		logger: logger.With("component", "csv_storage"),
	}
}

func (s *CSVStore) Name() string { return "csv" }

// Path returns the store's file path.
func (s *CSVStore) Path() string { return s.path }

// EnsureSchema writes the header if the file is absent or empty, verifies it
// otherwise, and opens the file for appending. A torn last line left by a
// crash is terminated so the next record starts on its own line.
func (s *CSVStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return s.fail(fmt.Errorf("create output dir: %w", err))
	}

	existing, endsWithNewline, err := readHeader(s.path)
	if err != nil {
		return s.fail(err)
	}
	if existing != nil && !slices.Equal(existing, types.Header) {
		return s.fail(fmt.Errorf("%w: %s has %q", types.ErrSchemaMismatch, s.path, existing))
	}

	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return s.fail(fmt.Errorf("open output file: %w", err))
	}
	s.file = f
	s.writer = csv.NewWriter(f)

	if existing == nil {
		if err := s.writer.Write(types.Header); err != nil {
			return s.fail(fmt.Errorf("write CSV header: %w", err))
		}
		s.logger.Info("CSV store created", "path", s.path)
	} else {
		if !endsWithNewline {
			s.logger.Warn("terminating torn last line", "path", s.path)
			if _, err := f.WriteString("\n"); err != nil {
				return s.fail(fmt.Errorf("terminate last line: %w", err))
			}
		}
		s.logger.Info("CSV store opened for append", "path", s.path)
	}
	return s.sync()
}

// Store appends rows, then flushes and fsyncs.
func (s *CSVStore) Store(ctx context.Context, rows []types.ItineraryRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.writer == nil {
		return s.fail(errors.New("store used before EnsureSchema"))
	}
	for i := range rows {
		if err := s.writer.Write(rows[i].Record()); err != nil {
			return s.fail(fmt.Errorf("write CSV row: %w", err))
		}
	}
	if err := s.sync(); err != nil {
		return err
	}
	s.count += len(rows)
	s.logger.Debug("rows stored", "count", len(rows), "total", s.count)
	return nil
}

// ProcessedKeys scans the whole file. Malformed records are skipped.
func (s *CSVStore) ProcessedKeys(ctx context.Context) ([]types.VoyageKey, error) {
	seen := make(map[types.VoyageKey]struct{})
	var keys []types.VoyageKey
	malformed := 0

	err := scanRows(s.path, func(row *types.ItineraryRow) error {
		k := row.Key()
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
		return nil
	}, func(err error) { malformed++ })
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, s.fail(err)
	}

	if malformed > 0 {
		s.logger.Warn("skipped malformed records while scanning", "path", s.path, "count", malformed)
	}
	return keys, nil
}

// Deduplicate writes <name>_deduplicated<ext> next to the store.
func (s *CSVStore) Deduplicate(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.writer != nil {
		if err := s.sync(); err != nil {
			s.mu.Unlock()
			return "", err
		}
	}
	s.mu.Unlock()

	out, stats, err := DeduplicateCSV(ctx, s.path, s.logger)
	if err != nil {
		return "", err
	}
	s.logger.Info("deduplicated copy written",
		"path", out,
		"rows_in", stats.RowsIn,
		"rows_out", stats.RowsOut,
	)
	return out, nil
}

func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	s.logger.Info("CSV store closed", "path", s.path, "rows_written", s.count)
	err := s.sync()
	if cerr := s.file.Close(); err == nil && cerr != nil {
		err = s.fail(cerr)
	}
	s.file, s.writer = nil, nil
	return err
}

// sync flushes the csv writer and fsyncs the file. Callers hold mu.
func (s *CSVStore) sync() error {
	s.writer.Flush()
	if err := s.writer.Error(); err != nil {
		return s.fail(fmt.Errorf("flush CSV: %w", err))
	}
	if err := s.file.Sync(); err != nil {
		return s.fail(fmt.Errorf("fsync CSV: %w", err))
	}
	return nil
}

func (s *CSVStore) fail(err error) error {
	return &types.StorageError{Backend: "csv", Err: err}
}

// DedupStats summarizes a deduplication pass.
type DedupStats struct {
	RowsIn    int
	RowsOut   int
	Malformed int
}

// DeduplicatedPath returns the output path for a deduplicated copy of path.
func DeduplicatedPath(path string) string {
	ext := filepath.Ext(path)
	if ext == "" {
		return path + "_deduplicated.csv"
	}
	return strings.TrimSuffix(path, ext) + "_deduplicated" + ext
}

// DeduplicateCSV keeps the first row per (Cruise Line, Ship Name, Date,
// Port) and writes the result atomically via a temp file and rename.
// The source file is never modified.
func DeduplicateCSV(ctx context.Context, path string, logger *slog.Logger) (string, DedupStats, error) {
	var stats DedupStats
	out := DeduplicatedPath(path)

	header, _, err := readHeader(path)
	if err != nil {
		return "", stats, &types.StorageError{Backend: "csv", Err: err}
	}
	if header == nil {
		return "", stats, &types.StorageError{Backend: "csv", Err: fmt.Errorf("%s: %w", path, os.ErrNotExist)}
	}
	if !slices.Equal(header, types.Header) {
		return "", stats, &types.StorageError{Backend: "csv", Err: fmt.Errorf("%w: %s has %q", types.ErrSchemaMismatch, path, header)}
	}

	tmp, err := os.CreateTemp(filepath.Dir(out), filepath.Base(out)+".*.tmp")
	if err != nil {
		return "", stats, &types.StorageError{Backend: "csv", Err: fmt.Errorf("create temp file: %w", err)}
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(types.Header); err != nil {
		tmp.Close()
		return "", stats, &types.StorageError{Backend: "csv", Err: err}
	}

	dedup := pipeline.New(logger)
	dedup.Use(pipeline.NewDedupMiddleware())

	err = scanRows(path, func(row *types.ItineraryRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.RowsIn++
		kept, err := dedup.Process(row)
		if err != nil || kept == nil {
			return err
		}
		stats.RowsOut++
		return w.Write(kept.Record())
	}, func(error) { stats.Malformed++ })
	if err != nil {
		tmp.Close()
		return "", stats, &types.StorageError{Backend: "csv", Err: err}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return "", stats, &types.StorageError{Backend: "csv", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return "", stats, &types.StorageError{Backend: "csv", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return "", stats, &types.StorageError{Backend: "csv", Err: err}
	}
	if err := os.Rename(tmp.Name(), out); err != nil {
		return "", stats, &types.StorageError{Backend: "csv", Err: fmt.Errorf("rename deduplicated file: %w", err)}
	}
	return out, stats, nil
}

// readHeader returns the first record of path, or nil if the file is absent
// or empty, and whether the file ends with a newline.
func readHeader(path string) ([]string, bool, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, true, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, false, err
	}
	if info.Size() == 0 {
		return nil, true, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return nil, false, fmt.Errorf("read %s: %w", path, err)
	}

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return nil, false, fmt.Errorf("read header of %s: %w", path, err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")
	return header, last[0] == '\n', nil
}

// scanRows calls fn for every data row of path in file order. Records that
// cannot be parsed or are too short are reported to bad and skipped.
func scanRows(path string, fn func(*types.ItineraryRow) error, bad func(error)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(bufio.NewReader(f))
	r.FieldsPerRecord = -1

	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			return nil
		}
		var pe *csv.ParseError
		if errors.As(err, &pe) {
			first = false
			bad(err)
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		if first {
			first = false
			continue
		}

		row, ok := types.RowFromRecord(rec)
		if !ok {
			bad(fmt.Errorf("record has %d fields", len(rec)))
			continue
		}
		if err := fn(row); err != nil {
			return err
		}
	}
}
