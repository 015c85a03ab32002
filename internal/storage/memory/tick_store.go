package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// TickStore is an in-memory implementation of storage.TickStore.
type TickStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Tick // keyed by composite key
}

// NewTickStore creates a new in-memory tick store.
func NewTickStore() *TickStore {
	return &TickStore{
		data: make(map[string]*domain.Tick),
	}
}

// Compile-time interface check.
var _ storage.TickStore = (*TickStore)(nil)

// tickKey generates a unique key for a tick.
func tickKey(instrumentID string, venue domain.Venue, timestampMs int64) string {
	return fmt.Sprintf("%s|%s|%d", instrumentID, venue, timestampMs)
}

// InsertBulk adds multiple ticks. Fails the entire batch on any duplicate.
func (s *TickStore) InsertBulk(_ context.Context, ticks []*domain.Tick) error {
	if len(ticks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// First pass: check for duplicates (existing + intra-batch)
	batchKeys := make(map[string]struct{}, len(ticks))
	for _, t := range ticks {
		if t == nil || t.InstrumentID == "" || t.Venue == "" {
			return storage.ErrInvalidInput
		}
		key := tickKey(t.InstrumentID, t.Venue, t.TimestampMs)
		if _, exists := s.data[key]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[key]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[key] = struct{}{}
	}

	// Second pass: insert all
	for _, t := range ticks {
		tickCopy := *t
		s.data[tickKey(t.InstrumentID, t.Venue, t.TimestampMs)] = &tickCopy
	}
	return nil
}

// GetByInstrument retrieves all ticks for an instrument, ordered by
// timestamp ASC with venue as tie-break.
func (s *TickStore) GetByInstrument(_ context.Context, instrumentID string) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Tick
	for _, t := range s.data {
		if t.InstrumentID == instrumentID {
			tickCopy := *t
			out = append(out, &tickCopy)
		}
	}
	sortTicks(out)
	return out, nil
}

// GetByTimeRange retrieves ticks for an instrument within [start, end]
// (inclusive), ordered by timestamp ASC with venue as tie-break.
func (s *TickStore) GetByTimeRange(_ context.Context, instrumentID string, start, end int64) ([]*domain.Tick, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*domain.Tick
	for _, t := range s.data {
		if t.InstrumentID == instrumentID && t.TimestampMs >= start && t.TimestampMs <= end {
			tickCopy := *t
			out = append(out, &tickCopy)
		}
	}
	sortTicks(out)
	return out, nil
}

func sortTicks(ticks []*domain.Tick) {
	sort.Slice(ticks, func(i, j int) bool {
		if ticks[i].TimestampMs != ticks[j].TimestampMs {
			return ticks[i].TimestampMs < ticks[j].TimestampMs
		}
		return ticks[i].Venue < ticks[j].Venue
	})
}
