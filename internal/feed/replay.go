package feed

import (
	"context"
	"fmt"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

// ReplaySource delivers archived ticks in deterministic order: timestamp
// ascending with venue as tie-break, exactly as the archive returns them.
// Feeding the same range twice produces identical batches.
type ReplaySource struct {
	store     storage.TickStore
	batchSize int
}

// NewReplaySource creates a replay source over a tick archive. batchSize
// bounds the size of each delivered batch; zero or negative means a single
// batch for the whole range.
func NewReplaySource(store storage.TickStore, batchSize int) *ReplaySource {
	return &ReplaySource{store: store, batchSize: batchSize}
}

// Replay streams ticks for an instrument within [start, end] to fn in
// batches. Stops on the first error from fn or the context.
func (r *ReplaySource) Replay(ctx context.Context, instrumentID string, start, end int64, fn func([]*domain.Tick) error) error {
	ticks, err := r.store.GetByTimeRange(ctx, instrumentID, start, end)
	if err != nil {
		return fmt.Errorf("load ticks: %w", err)
	}

	size := r.batchSize
	if size <= 0 {
		size = len(ticks)
	}

	for off := 0; off < len(ticks); off += size {
		if err := ctx.Err(); err != nil {
			return err
		}
		hi := off + size
		if hi > len(ticks) {
			hi = len(ticks)
		}
		if err := fn(ticks[off:hi]); err != nil {
			return err
		}
	}
	return nil
}
