package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

func testTrade(id, agent string, closedAtMs int64) *domain.Trade {
	return &domain.Trade{
		TradeID:      id,
		AgentID:      agent,
		InstrumentID: "BTC-USD",
		EntryPriceA:  100.0,
		EntryPriceB:  99.9,
		EntryPrice:   99.9,
		ExitPrice:    100.1,
		Size:         50.05,
		OpenedAtMs:   closedAtMs - 5000,
		ClosedAtMs:   closedAtMs,
		PnL:          10.01,
		PnLPct:       0.2,
		ExitReason:   domain.ExitReasonTakeProfit,
	}
}

func TestTradeLogStore_InsertAndGetByAgentID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeLogStore(pool)

	trade := testTrade("trade-1", "agent-1", 2000)
	require.NoError(t, store.Insert(ctx, trade))

	got, err := store.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, got, 1)

	assert.Equal(t, trade.TradeID, got[0].TradeID)
	assert.Equal(t, trade.AgentID, got[0].AgentID)
	assert.Equal(t, trade.InstrumentID, got[0].InstrumentID)
	assert.InDelta(t, trade.EntryPriceA, got[0].EntryPriceA, 1e-9)
	assert.InDelta(t, trade.EntryPriceB, got[0].EntryPriceB, 1e-9)
	assert.InDelta(t, trade.EntryPrice, got[0].EntryPrice, 1e-9)
	assert.InDelta(t, trade.ExitPrice, got[0].ExitPrice, 1e-9)
	assert.InDelta(t, trade.Size, got[0].Size, 1e-9)
	assert.Equal(t, trade.OpenedAtMs, got[0].OpenedAtMs)
	assert.Equal(t, trade.ClosedAtMs, got[0].ClosedAtMs)
	assert.InDelta(t, trade.PnL, got[0].PnL, 1e-9)
	assert.InDelta(t, trade.PnLPct, got[0].PnLPct, 1e-9)
	assert.Equal(t, trade.ExitReason, got[0].ExitReason)
}

func TestTradeLogStore_AppendOnly(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeLogStore(pool)

	require.NoError(t, store.Insert(ctx, testTrade("trade-1", "agent-1", 2000)))

	changed := testTrade("trade-1", "agent-1", 2000)
	changed.PnL = 999
	err := store.Insert(ctx, changed)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.InDelta(t, 10.01, got[0].PnL, 1e-9)
}

func TestTradeLogStore_InsertBulkAtomic(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeLogStore(pool)

	require.NoError(t, store.Insert(ctx, testTrade("trade-1", "agent-1", 1000)))

	// One duplicate fails the whole batch; the transaction rolls back.
	err := store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-2", "agent-1", 2000),
		testTrade("trade-1", "agent-1", 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	got, err := store.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-2", "agent-1", 2000),
		testTrade("trade-3", "agent-1", 3000),
	}))
	got, err = store.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestTradeLogStore_OrderedByCloseTime(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeLogStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-b", "agent-1", 3000),
		testTrade("trade-a", "agent-1", 1000),
		testTrade("trade-c", "agent-2", 2000),
	}))

	got, err := store.GetByAgentID(ctx, "agent-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "trade-a", got[0].TradeID)
	assert.Equal(t, "trade-b", got[1].TradeID)
}

func TestTradeLogStore_GetByTimeRange(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTradeLogStore(pool)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Trade{
		testTrade("trade-a", "agent-1", 1000),
		testTrade("trade-b", "agent-1", 2000),
		testTrade("trade-c", "agent-1", 3000),
	}))

	got, err := store.GetByTimeRange(ctx, "agent-1", 1500, 2500)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "trade-b", got[0].TradeID)

	// Bounds are inclusive.
	got, err = store.GetByTimeRange(ctx, "agent-1", 1000, 3000)
	require.NoError(t, err)
	assert.Len(t, got, 3)
}
