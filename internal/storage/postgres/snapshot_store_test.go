package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/storage"
)

func testSnapshot(generation int) *domain.LabSnapshot {
	return &domain.LabSnapshot{
		Generation: generation,
		Population: &domain.Population{
			Generation: generation,
			Members: []*domain.Member{
				{
					Genome: &domain.Genome{
						ID:         "agent-1",
						Generation: generation,
						Params: domain.GenomeParams{
							MinSpreadThreshold: 0.08,
							StabilityTicks:     4,
							PositionSizePct:    5.0,
							TakeProfitPct:      0.12,
							StopLossPct:        0.18,
							MaxHoldSeconds:     60,
							PreferredSession:   domain.SessionAny,
						},
					},
					State: domain.NewAgentState("agent-1", 100_000),
				},
			},
			ChampionID: "agent-1",
		},
		Ledger: domain.RiskLedgerSnapshot{
			PerAgent: map[string]*domain.AgentLedger{
				"agent-1": {DailyLossUsed: 120.5, TradeCount: 3},
			},
		},
		EvoSeed:   1,
		TakenAtMs: int64(generation) * 1_000_000,
	}
}

func TestSnapshotStore_InsertAndGetByGeneration(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	require.NoError(t, store.Insert(ctx, testSnapshot(1)))

	got, err := store.GetByGeneration(ctx, 1)
	require.NoError(t, err)

	assert.Equal(t, 1, got.Generation)
	assert.Equal(t, int64(1_000_000), got.TakenAtMs)
	require.NotNil(t, got.Population)
	assert.Equal(t, "agent-1", got.Population.ChampionID)
	require.Len(t, got.Population.Members, 1)
	assert.Equal(t, 100_000.0, got.Population.Members[0].State.Capital)
	require.NotNil(t, got.Ledger.PerAgent["agent-1"])
	assert.InDelta(t, 120.5, got.Ledger.PerAgent["agent-1"].DailyLossUsed, 1e-9)
}

func TestSnapshotStore_DuplicateGeneration(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	require.NoError(t, store.Insert(ctx, testSnapshot(1)))
	err := store.Insert(ctx, testSnapshot(1))
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestSnapshotStore_GetLatest(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	_, err := store.GetLatest(ctx)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, store.Insert(ctx, testSnapshot(1)))
	require.NoError(t, store.Insert(ctx, testSnapshot(3)))
	require.NoError(t, store.Insert(ctx, testSnapshot(2)))

	latest, err := store.GetLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, latest.Generation)
}

func TestSnapshotStore_ListGenerations(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	store := NewSnapshotStore(pool)

	gens, err := store.ListGenerations(ctx)
	require.NoError(t, err)
	assert.Empty(t, gens)

	require.NoError(t, store.Insert(ctx, testSnapshot(2)))
	require.NoError(t, store.Insert(ctx, testSnapshot(1)))

	gens, err = store.ListGenerations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, gens)
}

func TestSnapshotStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewSnapshotStore(pool)
	_, err := store.GetByGeneration(context.Background(), 42)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}
