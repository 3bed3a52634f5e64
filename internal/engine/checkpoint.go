package engine

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// CheckpointManager keeps a side-channel copy of the processed keys.
// The store scan stays authoritative; the checkpoint only lets a resumed run
// skip voyages whose rows live in a store that is slow to scan.
type CheckpointManager struct {
	path string
}

// checkpointData is the serializable crawl state.
type checkpointData struct {
	Timestamp time.Time         `json:"timestamp"`
	Processed []types.VoyageKey `json:"processed"`
	Stats     checkpointStats   `json:"stats"`
}

type checkpointStats struct {
	Pages          int64 `json:"pages"`
	Ships          int64 `json:"ships"`
	VoyagesStored  int64 `json:"voyages_stored"`
	VoyagesSkipped int64 `json:"voyages_skipped"`
	RowsStored     int64 `json:"rows_stored"`
}

// NewCheckpointManager creates a CheckpointManager writing to path.
// An empty path disables checkpointing.
func NewCheckpointManager(path string) *CheckpointManager {
	return &CheckpointManager{path: path}
}

// Enabled reports whether a checkpoint path is configured.
func (cm *CheckpointManager) Enabled() bool {
	return cm != nil && cm.path != ""
}

// Save serializes the tracker state to disk.
func (cm *CheckpointManager) Save(tracker *Tracker, stats *Stats) error {
	if !cm.Enabled() {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(cm.path), 0o755); err != nil {
		return fmt.Errorf("create checkpoint dir: %w", err)
	}

	data := checkpointData{
		Timestamp: time.Now(),
		Processed: tracker.Keys(),
		Stats: checkpointStats{
			Pages:          stats.Pages.Load(),
			Ships:          stats.Ships.Load(),
			VoyagesStored:  stats.VoyagesStored.Load(),
			VoyagesSkipped: stats.VoyagesSkipped.Load(),
			RowsStored:     stats.RowsStored.Load(),
		},
	}

	// Write to temp file, then rename (atomic write)
	tmpPath := cm.path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create checkpoint file: %w", err)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		return fmt.Errorf("encode checkpoint: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close checkpoint file: %w", err)
	}

	if err := os.Rename(tmpPath, cm.path); err != nil {
		return fmt.Errorf("rename checkpoint file: %w", err)
	}
	return nil
}

// Load merges the checkpointed keys into the tracker. A missing file is not an error.
func (cm *CheckpointManager) Load(tracker *Tracker) (int, error) {
	if !cm.Enabled() {
		return 0, nil
	}

	f, err := os.Open(cm.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	var data checkpointData
	if err := json.NewDecoder(f).Decode(&data); err != nil {
		return 0, fmt.Errorf("decode checkpoint: %w", err)
	}

	tracker.Seed(data.Processed)
	return len(data.Processed), nil
}

// Clean removes the checkpoint file.
func (cm *CheckpointManager) Clean() error {
	if !cm.Enabled() {
		return nil
	}
	if err := os.Remove(cm.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
