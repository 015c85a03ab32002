package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// SnapshotStore is an in-memory implementation of storage.SnapshotStore.
// Snapshots are stored serialized so callers can never mutate a persisted
// snapshot through a retained pointer.
type SnapshotStore struct {
	mu   sync.RWMutex
	data map[int][]byte // keyed by generation
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		data: make(map[int][]byte),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if the generation exists.
func (s *SnapshotStore) Insert(_ context.Context, snap *domain.LabSnapshot) error {
	if snap == nil || snap.Population == nil {
		return storage.ErrInvalidInput
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[snap.Generation]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[snap.Generation] = raw
	return nil
}

// GetByGeneration retrieves the snapshot for a generation. Returns
// ErrNotFound if not exists.
func (s *SnapshotStore) GetByGeneration(_ context.Context, generation int) (*domain.LabSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	raw, exists := s.data[generation]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return decodeSnapshot(raw)
}

// GetLatest retrieves the snapshot with the highest generation.
func (s *SnapshotStore) GetLatest(_ context.Context) (*domain.LabSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	best := -1
	for gen := range s.data {
		if gen > best {
			best = gen
		}
	}
	if best < 0 {
		return nil, storage.ErrNotFound
	}
	return decodeSnapshot(s.data[best])
}

// ListGenerations retrieves all stored generations in ascending order.
func (s *SnapshotStore) ListGenerations(_ context.Context) ([]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	gens := make([]int, 0, len(s.data))
	for gen := range s.data {
		gens = append(gens, gen)
	}
	sort.Ints(gens)
	return gens, nil
}

func decodeSnapshot(raw []byte) (*domain.LabSnapshot, error) {
	var snap domain.LabSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
