package storage

import (
	"context"

	"spread-strategy-lab/internal/domain"
)

// TickStore provides access to the raw tick archive.
type TickStore interface {
	// InsertBulk adds multiple ticks. Fails the entire batch on any
	// duplicate (instrument_id, venue, timestamp_ms).
	InsertBulk(ctx context.Context, ticks []*domain.Tick) error

	// GetByInstrument retrieves all ticks for an instrument, ordered by
	// timestamp ASC with venue as tie-break.
	GetByInstrument(ctx context.Context, instrumentID string) ([]*domain.Tick, error)

	// GetByTimeRange retrieves ticks for an instrument within [start, end]
	// (inclusive), ordered by timestamp ASC with venue as tie-break.
	GetByTimeRange(ctx context.Context, instrumentID string, start, end int64) ([]*domain.Tick, error)
}

// SnapshotStore provides access to persisted lab snapshots.
type SnapshotStore interface {
	// Insert adds a new snapshot. Returns ErrDuplicateKey if a snapshot
	// for the same generation exists.
	Insert(ctx context.Context, snap *domain.LabSnapshot) error

	// GetByGeneration retrieves the snapshot for a generation.
	// Returns ErrNotFound if not exists.
	GetByGeneration(ctx context.Context, generation int) (*domain.LabSnapshot, error)

	// GetLatest retrieves the snapshot with the highest generation.
	// Returns ErrNotFound when no snapshot exists.
	GetLatest(ctx context.Context) (*domain.LabSnapshot, error)

	// ListGenerations retrieves all stored generations in ascending order.
	ListGenerations(ctx context.Context) ([]int, error)
}

// TradeLogStore provides access to the immutable closed-trade log.
type TradeLogStore interface {
	// Insert adds a new trade. Returns ErrDuplicateKey if trade_id exists.
	Insert(ctx context.Context, t *domain.Trade) error

	// InsertBulk adds multiple trades atomically. Fails entire batch on any duplicate.
	InsertBulk(ctx context.Context, trades []*domain.Trade) error

	// GetByAgentID retrieves all trades for an agent, ordered by closed_at ASC.
	GetByAgentID(ctx context.Context, agentID string) ([]*domain.Trade, error)

	// GetByTimeRange retrieves trades for an agent closed within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, agentID string, start, end int64) ([]*domain.Trade, error)
}
