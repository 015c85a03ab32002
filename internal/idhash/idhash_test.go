package idhash

import (
	"testing"

	"spread-strategy-lab/internal/domain"
)

func testParams() domain.GenomeParams {
	return domain.GenomeParams{
		MinSpreadThreshold: 0.08,
		StabilityTicks:     4,
		PositionSizePct:    5.0,
		TakeProfitPct:      0.12,
		StopLossPct:        0.18,
		MaxHoldSeconds:     60,
		PreferredSession:   domain.SessionAny,
	}
}

func TestComputeGenomeID_Deterministic(t *testing.T) {
	a := ComputeGenomeID(1, []string{"p1", "p2"}, testParams())
	b := ComputeGenomeID(1, []string{"p1", "p2"}, testParams())

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != GenomeIDLen {
		t.Errorf("ID length = %d, want %d", len(a), GenomeIDLen)
	}
}

func TestComputeGenomeID_SensitiveToInputs(t *testing.T) {
	base := ComputeGenomeID(1, nil, testParams())

	if got := ComputeGenomeID(2, nil, testParams()); got == base {
		t.Error("generation change did not change the ID")
	}
	if got := ComputeGenomeID(1, []string{"p1"}, testParams()); got == base {
		t.Error("parent change did not change the ID")
	}

	p := testParams()
	p.StabilityTicks = 5
	if got := ComputeGenomeID(1, nil, p); got == base {
		t.Error("parameter change did not change the ID")
	}
}

func TestComputeTradeID_Deterministic(t *testing.T) {
	a := ComputeTradeID("agent-1", "BTC-USD", 1000, 2000)
	b := ComputeTradeID("agent-1", "BTC-USD", 1000, 2000)

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Errorf("ID length = %d, want 64 hex chars", len(a))
	}
	if got := ComputeTradeID("agent-1", "BTC-USD", 1000, 2001); got == a {
		t.Error("close timestamp change did not change the ID")
	}
}
