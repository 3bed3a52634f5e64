package engine

import (
	"sort"
	"strings"
	"sync"

	"github.com/IshaanNene/cruisecrawl/internal/config"
	"github.com/IshaanNene/cruisecrawl/internal/types"
)

// Tracker remembers which voyages have been fully stored so a resumed
// harvest does not fetch or write them again.
//
// The set is rebuilt at startup from the store itself (see Seed) and only
// grows during a run. MarkProcessed must be called after a voyage's rows are
// durably stored, never before.
type Tracker struct {
	mu          sync.RWMutex
	granularity string
	seen        map[types.VoyageKey]struct{}
	ships       map[string]struct{}
}

// NewTracker creates an empty Tracker. Granularity is config.GranularityVoyage
// or config.GranularityShip.
func NewTracker(granularity string) *Tracker {
	if granularity == "" {
		granularity = config.GranularityVoyage
	}
	return &Tracker{
		granularity: granularity,
		seen:        make(map[types.VoyageKey]struct{}),
		ships:       make(map[string]struct{}),
	}
}

// normalizeKey puts scraped text into the form the pipeline stores, so keys
// read back from a store compare equal to keys built from listing names.
func normalizeKey(voyageID, shipName string) types.VoyageKey {
	return types.VoyageKey{
		VoyageID: strings.TrimSpace(voyageID),
		ShipName: types.CleanText(shipName),
	}
}

// IsProcessed returns true if the voyage should be skipped. With ship
// granularity any voyage of a previously recorded ship is skipped.
func (t *Tracker) IsProcessed(voyageID, shipName string) bool {
	key := normalizeKey(voyageID, shipName)

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.granularity == config.GranularityShip {
		_, ok := t.ships[key.ShipName]
		return ok
	}
	_, ok := t.seen[key]
	return ok
}

// IsShipSeen returns true if any voyage of the ship has been recorded.
func (t *Tracker) IsShipSeen(shipName string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.ships[types.CleanText(shipName)]
	return ok
}

// SkipsShips reports whether whole ships are skipped once seen.
func (t *Tracker) SkipsShips() bool {
	return t.granularity == config.GranularityShip
}

// MarkProcessed records a voyage as complete.
func (t *Tracker) MarkProcessed(voyageID, shipName string) {
	key := normalizeKey(voyageID, shipName)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.seen[key] = struct{}{}
	t.ships[key.ShipName] = struct{}{}
}

// Seed loads keys recovered from persisted state.
func (t *Tracker) Seed(keys []types.VoyageKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, k := range keys {
		k = normalizeKey(k.VoyageID, k.ShipName)
		t.seen[k] = struct{}{}
		t.ships[k.ShipName] = struct{}{}
	}
}

// Count returns the number of processed voyages.
func (t *Tracker) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}

// Keys returns all processed keys in a stable order (for checkpoints).
func (t *Tracker) Keys() []types.VoyageKey {
	t.mu.RLock()
	keys := make([]types.VoyageKey, 0, len(t.seen))
	for k := range t.seen {
		keys = append(keys, k)
	}
	t.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ShipName != keys[j].ShipName {
			return keys[i].ShipName < keys[j].ShipName
		}
		return keys[i].VoyageID < keys[j].VoyageID
	})
	return keys
}
