package clickhouse

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

func TestTickStore_InsertBulkAndGetByInstrument(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Tick{
		tick("venue_b", 100.1, 2000),
		tick("venue_a", 100.0, 1000),
		tick("venue_a", 100.2, 3000),
	}))

	got, err := store.GetByInstrument(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, domain.Venue("venue_a"), got[0].Venue)
	assert.InDelta(t, 100.0, got[0].Price, 1e-9)
	assert.Equal(t, int64(3000), got[2].TimestampMs)

	empty, err := store.GetByInstrument(ctx, "ETH-USD")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestTickStore_GetByTimeRange(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Tick{
		tick("venue_a", 100.0, 1000),
		tick("venue_a", 100.1, 2000),
		tick("venue_a", 100.2, 3000),
	}))

	got, err := store.GetByTimeRange(ctx, "BTC-USD", 1000, 2000)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1000), got[0].TimestampMs)
	assert.Equal(t, int64(2000), got[1].TimestampMs)
}

func TestTickStore_DuplicateRejectedExplicitly(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Tick{tick("venue_a", 100.0, 1000)}))

	// MergeTree does not enforce uniqueness; the store checks before it
	// writes, so a replayed batch fails instead of silently duplicating.
	err := store.InsertBulk(ctx, []*domain.Tick{
		tick("venue_a", 200.0, 5000),
		tick("venue_a", 100.0, 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTickStore_IntraBatchDuplicate(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTickStore(conn)
	err := store.InsertBulk(context.Background(), []*domain.Tick{
		tick("venue_a", 100.0, 1000),
		tick("venue_a", 100.5, 1000),
	})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTickStore_SameTimestampAcrossVenues(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewTickStore(conn)

	require.NoError(t, store.InsertBulk(ctx, []*domain.Tick{
		tick("venue_a", 100.0, 1000),
		tick("venue_b", 100.1, 1000),
	}))

	got, err := store.GetByInstrument(ctx, "BTC-USD")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, domain.Venue("venue_a"), got[0].Venue)
	assert.Equal(t, domain.Venue("venue_b"), got[1].Venue)
}
