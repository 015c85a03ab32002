package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using PostgreSQL. The
// snapshot body is stored as JSONB; generation is the primary key.
type SnapshotStore struct {
	pool *Pool
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(pool *Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a new snapshot. Returns ErrDuplicateKey if the generation exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.LabSnapshot) error {
	if snap == nil || snap.Population == nil {
		return storage.ErrInvalidInput
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("serialize snapshot: %w", err)
	}

	query := `
		INSERT INTO lab_snapshots (generation, taken_at_ms, snapshot)
		VALUES ($1, $2, $3)
	`

	_, err = s.pool.Exec(ctx, query, snap.Generation, snap.TakenAtMs, raw)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// GetByGeneration retrieves the snapshot for a generation. Returns
// ErrNotFound if not exists.
func (s *SnapshotStore) GetByGeneration(ctx context.Context, generation int) (*domain.LabSnapshot, error) {
	query := `
		SELECT snapshot
		FROM lab_snapshots
		WHERE generation = $1
	`

	var raw []byte
	if err := s.pool.QueryRow(ctx, query, generation).Scan(&raw); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get snapshot by generation: %w", err)
	}
	return decodeSnapshot(raw)
}

// GetLatest retrieves the snapshot with the highest generation.
func (s *SnapshotStore) GetLatest(ctx context.Context) (*domain.LabSnapshot, error) {
	query := `
		SELECT snapshot
		FROM lab_snapshots
		ORDER BY generation DESC
		LIMIT 1
	`

	var raw []byte
	if err := s.pool.QueryRow(ctx, query).Scan(&raw); err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return decodeSnapshot(raw)
}

// ListGenerations retrieves all stored generations in ascending order.
func (s *SnapshotStore) ListGenerations(ctx context.Context) ([]int, error) {
	query := `
		SELECT generation
		FROM lab_snapshots
		ORDER BY generation ASC
	`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list generations: %w", err)
	}
	defer rows.Close()

	var gens []int
	for rows.Next() {
		var gen int
		if err := rows.Scan(&gen); err != nil {
			return nil, fmt.Errorf("scan generation: %w", err)
		}
		gens = append(gens, gen)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate generations: %w", err)
	}
	return gens, nil
}

func decodeSnapshot(raw []byte) (*domain.LabSnapshot, error) {
	var snap domain.LabSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("deserialize snapshot: %w", err)
	}
	return &snap, nil
}
