package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage/memory"
)

func seedTicks(t *testing.T, n int) *memory.TickStore {
	t.Helper()
	store := memory.NewTickStore()
	ticks := make([]*domain.Tick, 0, n)
	for i := 0; i < n; i++ {
		ticks = append(ticks, &domain.Tick{
			InstrumentID: "BTC-USD",
			Venue:        "venue_a",
			Price:        100 + float64(i)*0.01,
			TimestampMs:  int64(1000 + i*100),
		})
	}
	require.NoError(t, store.InsertBulk(context.Background(), ticks))
	return store
}

func TestReplay_DeliversBatchesInOrder(t *testing.T) {
	store := seedTicks(t, 10)
	src := NewReplaySource(store, 4)

	var batches [][]*domain.Tick
	err := src.Replay(context.Background(), "BTC-USD", 0, 10_000, func(batch []*domain.Tick) error {
		batches = append(batches, batch)
		return nil
	})
	require.NoError(t, err)

	// 10 ticks in batches of 4: 4 + 4 + 2.
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[2], 2)

	var last int64
	for _, batch := range batches {
		for _, tk := range batch {
			assert.GreaterOrEqual(t, tk.TimestampMs, last, "archive order violated")
			last = tk.TimestampMs
		}
	}
}

func TestReplay_HonorsTimeWindow(t *testing.T) {
	store := seedTicks(t, 10) // timestamps 1000..1900
	src := NewReplaySource(store, 100)

	var got []*domain.Tick
	err := src.Replay(context.Background(), "BTC-USD", 1200, 1500, func(batch []*domain.Tick) error {
		got = append(got, batch...)
		return nil
	})
	require.NoError(t, err)

	require.Len(t, got, 4) // 1200, 1300, 1400, 1500 inclusive
	assert.Equal(t, int64(1200), got[0].TimestampMs)
	assert.Equal(t, int64(1500), got[len(got)-1].TimestampMs)
}

func TestReplay_StopsOnCallbackError(t *testing.T) {
	store := seedTicks(t, 10)
	src := NewReplaySource(store, 3)

	wantErr := errors.New("halt")
	calls := 0
	err := src.Replay(context.Background(), "BTC-USD", 0, 10_000, func([]*domain.Tick) error {
		calls++
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, 1, calls)
}

func TestReplay_EmptyWindow(t *testing.T) {
	store := seedTicks(t, 10)
	src := NewReplaySource(store, 3)

	calls := 0
	err := src.Replay(context.Background(), "BTC-USD", 50_000, 60_000, func([]*domain.Tick) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Zero(t, calls)
}

func TestReplay_CanceledContext(t *testing.T) {
	store := seedTicks(t, 10)
	src := NewReplaySource(store, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := src.Replay(ctx, "BTC-USD", 0, 10_000, func([]*domain.Tick) error {
		t.Fatal("callback invoked after cancellation")
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
