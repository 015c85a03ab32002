package simulation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/risk"
)

func newTestMirror() *Mirror {
	return NewMirror(MirrorOptions{
		InitialCapital: 100_000,
		Ledger:         risk.NewLedger(domain.DefaultRiskLimits()),
		VenueA:         venueA,
		VenueB:         venueB,
		Bounds:         domain.DefaultGenomeBounds(),
	})
}

func TestMirror_IdleBeforeFirstChampion(t *testing.T) {
	m := newTestMirror()

	assert.Nil(t, m.State())
	assert.Empty(t, m.ChampionID())

	// RunBatch is a no-op, not a panic.
	m.RunBatch([]*domain.SpreadSample{favorable(1000)})
	assert.Nil(t, m.State())
}

func TestMirror_TradesUnderChampionLogic(t *testing.T) {
	m := newTestMirror()
	champion := testGenome()
	require.NoError(t, m.SetChampion(champion, 100_000))

	require.NotNil(t, m.State())
	assert.Equal(t, MirrorAgentID, m.State().GenomeID)
	assert.Equal(t, champion.ID, m.ChampionID())

	m.RunBatch([]*domain.SpreadSample{
		favorable(1000), favorable(2000), favorable(3000),
		sample(4000, 100.0, 100.1),
	})
	require.Len(t, m.State().Trades, 1)
	// Mirror trades carry the fixed reference ID, never the champion's.
	assert.Equal(t, MirrorAgentID, m.State().Trades[0].AgentID)
}

func TestMirror_PortfolioCarriesAcrossChampionSwitch(t *testing.T) {
	m := newTestMirror()
	first := testGenome()
	require.NoError(t, m.SetChampion(first, 100_000))

	m.RunBatch([]*domain.SpreadSample{
		favorable(1000), favorable(2000), favorable(3000),
		sample(4000, 100.0, 100.1),
	})
	capital := m.State().Capital
	trades := len(m.State().Trades)
	require.Equal(t, 1, trades)

	second := testGenome()
	second.ID = "agent-next"
	second.Params.StabilityTicks = 5
	require.NoError(t, m.SetChampion(second, 100_000))

	assert.Equal(t, "agent-next", m.ChampionID())
	assert.Equal(t, capital, m.State().Capital, "capital reset on champion switch")
	assert.Len(t, m.State().Trades, trades, "trade log reset on champion switch")
	assert.Empty(t, m.State().Stability, "stale confirmation streak carried over")
}

func TestMirror_SetSameChampionIsNoop(t *testing.T) {
	m := newTestMirror()
	champion := testGenome()
	require.NoError(t, m.SetChampion(champion, 100_000))
	st := m.State()

	require.NoError(t, m.SetChampion(champion, 100_000))
	assert.Same(t, st, m.State())
}
