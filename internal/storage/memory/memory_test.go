package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

func tick(venue domain.Venue, price float64, tsMs int64) *domain.Tick {
	return &domain.Tick{InstrumentID: "BTC-USD", Venue: venue, Price: price, TimestampMs: tsMs}
}

func TestTickStore_InsertBulkAndQuery(t *testing.T) {
	s := NewTickStore()
	ctx := context.Background()

	ticks := []*domain.Tick{
		tick("venue_b", 100.1, 2000),
		tick("venue_a", 100.0, 1000),
		tick("venue_a", 100.2, 3000),
	}
	require.NoError(t, s.InsertBulk(ctx, ticks))

	got, err := s.GetByInstrument(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, int64(3000), got[2].TimestampMs)

	ranged, err := s.GetByTimeRange(ctx, "BTC-USD", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, ranged, 2)

	empty, err := s.GetByInstrument(ctx, "ETH-USD")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTickStore_DuplicateFailsWholeBatch(t *testing.T) {
	s := NewTickStore()
	ctx := context.Background()

	require.NoError(t, s.InsertBulk(ctx, []*domain.Tick{tick("venue_a", 100.0, 1000)}))

	err := s.InsertBulk(ctx, []*domain.Tick{
		tick("venue_a", 200.0, 5000),
		tick("venue_a", 100.0, 1000), // same instrument/venue/timestamp
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	// Nothing from the failed batch landed.
	got, err := s.GetByInstrument(ctx, "BTC-USD")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestTickStore_IntraBatchDuplicate(t *testing.T) {
	s := NewTickStore()

	err := s.InsertBulk(context.Background(), []*domain.Tick{
		tick("venue_a", 100.0, 1000),
		tick("venue_a", 100.5, 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTickStore_SameTimestampDifferentVenue(t *testing.T) {
	s := NewTickStore()
	ctx := context.Background()

	require.NoError(t, s.InsertBulk(ctx, []*domain.Tick{
		tick("venue_a", 100.0, 1000),
		tick("venue_b", 100.1, 1000),
	}))

	got, err := s.GetByInstrument(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Venue breaks the timestamp tie.
	assert.Equal(t, domain.Venue("venue_a"), got[0].Venue)
	assert.Equal(t, domain.Venue("venue_b"), got[1].Venue)
}

func testSnapshot(generation int) *domain.LabSnapshot {
	return &domain.LabSnapshot{
		Generation: generation,
		Population: &domain.Population{Generation: generation},
		TakenAtMs:  int64(generation) * 1000,
	}
}

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testSnapshot(1)))
	require.NoError(t, s.Insert(ctx, testSnapshot(2)))

	got, err := s.GetByGeneration(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Generation)

	_, err = s.GetByGeneration(ctx, 99)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	latest, err := s.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Generation)

	gens, err := s.ListGenerations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, gens)
}

func TestSnapshotStore_GenerationIsAppendOnly(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testSnapshot(1)))
	assert.ErrorIs(t, s.Insert(ctx, testSnapshot(1)), storage.ErrDuplicateKey)
}

func TestSnapshotStore_GetLatestEmpty(t *testing.T) {
	s := NewSnapshotStore()
	_, err := s.GetLatest(context.Background())
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSnapshotStore_StoredCopyIsImmutable(t *testing.T) {
	s := NewSnapshotStore()
	ctx := context.Background()

	snap := testSnapshot(1)
	require.NoError(t, s.Insert(ctx, snap))
	snap.TakenAtMs = 999_999

	got, err := s.GetByGeneration(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.TakenAtMs, "stored snapshot mutated through caller pointer")

	// Mutating a retrieved snapshot must not affect later reads either.
	got.TakenAtMs = 0
	again, err := s.GetByGeneration(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), again.TakenAtMs)
}

func testTrade(id, agent string, closedAtMs int64) *domain.Trade {
	return &domain.Trade{
		TradeID:      id,
		AgentID:      agent,
		InstrumentID: "BTC-USD",
		EntryPrice:   100,
		ExitPrice:    100.1,
		Size:         10,
		OpenedAtMs:   closedAtMs - 5000,
		ClosedAtMs:   closedAtMs,
		PnL:          1,
		ExitReason:   domain.ExitReasonTakeProfit,
	}
}

func TestTradeLogStore_InsertAndQuery(t *testing.T) {
	s := NewTradeLogStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testTrade("t2", "agent-1", 2000)))
	require.NoError(t, s.Insert(ctx, testTrade("t1", "agent-1", 1000)))
	require.NoError(t, s.Insert(ctx, testTrade("t3", "agent-2", 1500)))

	got, err := s.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "t1", got[0].TradeID)
	assert.Equal(t, "t2", got[1].TradeID)

	ranged, err := s.GetByTimeRange(ctx, "agent-1", 1500, 3000)
	require.NoError(t, err)
	require.Len(t, ranged, 1)
	assert.Equal(t, "t2", ranged[0].TradeID)
}

func TestTradeLogStore_AppendOnly(t *testing.T) {
	s := NewTradeLogStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testTrade("t1", "agent-1", 1000)))

	// A second write under the same trade ID never updates in place.
	changed := testTrade("t1", "agent-1", 1000)
	changed.PnL = 999
	assert.ErrorIs(t, s.Insert(ctx, changed), storage.ErrDuplicateKey)

	got, err := s.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	assert.Equal(t, 1.0, got[0].PnL)
}

func TestTradeLogStore_InsertBulkAtomic(t *testing.T) {
	s := NewTradeLogStore()
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, testTrade("t1", "agent-1", 1000)))

	err := s.InsertBulk(ctx, []*domain.Trade{
		testTrade("t2", "agent-1", 2000),
		testTrade("t1", "agent-1", 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := s.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, got, 1, "failed batch left partial writes")
}

func TestTradeLogStore_RejectsInvalidInput(t *testing.T) {
	s := NewTradeLogStore()
	ctx := context.Background()

	assert.ErrorIs(t, s.Insert(ctx, nil), storage.ErrInvalidInput)
	assert.ErrorIs(t, s.Insert(ctx, &domain.Trade{TradeID: "t1"}), storage.ErrInvalidInput)
}
