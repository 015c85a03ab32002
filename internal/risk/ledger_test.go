package risk

import (
	"testing"

	"spread-strategy-lab/internal/domain"
)

func newTestLedger() *Ledger {
	return NewLedger(domain.DefaultRiskLimits())
}

func TestCheckEntry_ApprovedWithinLimits(t *testing.T) {
	l := newTestLedger()

	d := l.CheckEntry(Proposal{
		AgentID:  "agent-1",
		Notional: 5_000,
		Capital:  100_000,
		DailyPnL: 0,
	})
	if !d.Approved {
		t.Fatalf("expected approval, got %s (%s)", d.Reason, d.Detail)
	}
	if d.Reason != ReasonApproved {
		t.Errorf("reason = %s, want %s", d.Reason, ReasonApproved)
	}
}

func TestCheckEntry_KillSwitchRejectsFirst(t *testing.T) {
	l := newTestLedger()
	l.EngageKillSwitch("test")

	// Proposal also violates the position limit; the kill switch level
	// must win because it is checked first.
	d := l.CheckEntry(Proposal{
		AgentID:  "agent-1",
		Notional: 50_000,
		Capital:  100_000,
		DailyPnL: -5_000,
	})
	if d.Approved {
		t.Fatal("expected rejection with kill switch engaged")
	}
	if d.Reason != ReasonKillSwitch {
		t.Errorf("reason = %s, want %s", d.Reason, ReasonKillSwitch)
	}
	if l.KillSwitchReason() != "test" {
		t.Errorf("kill switch reason = %q, want %q", l.KillSwitchReason(), "test")
	}
}

func TestCheckEntry_DailyLossCap(t *testing.T) {
	l := newTestLedger()

	// 2% of 100k is 2000; a daily PnL of -2100 blocks new entries.
	d := l.CheckEntry(Proposal{
		AgentID:  "agent-1",
		Notional: 5_000,
		Capital:  100_000,
		DailyPnL: -2_100,
	})
	if d.Approved {
		t.Fatal("expected rejection at daily loss cap")
	}
	if d.Reason != ReasonDailyLossCap {
		t.Errorf("reason = %s, want %s", d.Reason, ReasonDailyLossCap)
	}

	// Just inside the cap is still allowed.
	d = l.CheckEntry(Proposal{
		AgentID:  "agent-1",
		Notional: 5_000,
		Capital:  100_000,
		DailyPnL: -1_999,
	})
	if !d.Approved {
		t.Errorf("expected approval just inside the cap, got %s", d.Reason)
	}
}

func TestCheckEntry_PositionLimitRejectsOutright(t *testing.T) {
	l := newTestLedger()

	d := l.CheckEntry(Proposal{
		AgentID:  "agent-1",
		Notional: 10_001,
		Capital:  100_000,
	})
	if d.Approved {
		t.Fatal("expected rejection above position limit")
	}
	if d.Reason != ReasonPositionLimit {
		t.Errorf("reason = %s, want %s", d.Reason, ReasonPositionLimit)
	}
}

func TestCheckEntry_TradeFrequency(t *testing.T) {
	limits := domain.DefaultRiskLimits()
	limits.MaxTradesPerDay = 2
	l := NewLedger(limits)

	l.RecordEntry("agent-1", 1_000)
	l.RecordEntry("agent-1", 1_000)

	d := l.CheckEntry(Proposal{AgentID: "agent-1", Notional: 1_000, Capital: 100_000})
	if d.Approved {
		t.Fatal("expected rejection at trade frequency limit")
	}
	if d.Reason != ReasonTradeFrequency {
		t.Errorf("reason = %s, want %s", d.Reason, ReasonTradeFrequency)
	}

	// Another agent's counter is disjoint.
	d = l.CheckEntry(Proposal{AgentID: "agent-2", Notional: 1_000, Capital: 100_000})
	if !d.Approved {
		t.Errorf("unrelated agent rejected: %s", d.Reason)
	}

	// The daily reset clears the counter.
	l.ResetDaily()
	d = l.CheckEntry(Proposal{AgentID: "agent-1", Notional: 1_000, Capital: 100_000})
	if !d.Approved {
		t.Errorf("expected approval after daily reset, got %s", d.Reason)
	}
}

func TestResetDaily_LeavesKillSwitchEngaged(t *testing.T) {
	l := newTestLedger()
	l.EngageKillSwitch("manual")
	l.ResetDaily()

	if !l.KillSwitchEngaged() {
		t.Error("daily reset disengaged the kill switch")
	}
	l.ResetKillSwitch()
	if l.KillSwitchEngaged() {
		t.Error("explicit reset did not disengage the kill switch")
	}
}

func TestRecordClose_TracksExposureAndLoss(t *testing.T) {
	l := newTestLedger()

	l.RecordEntry("agent-1", 5_000)
	l.RecordClose("agent-1", 5_000, -250)

	snap := l.Snapshot()
	e := snap.PerAgent["agent-1"]
	if e == nil {
		t.Fatal("missing ledger entry for agent-1")
	}
	if e.PositionExposure != 0 {
		t.Errorf("exposure = %v, want 0", e.PositionExposure)
	}
	if e.DailyLossUsed != 250 {
		t.Errorf("daily loss used = %v, want 250", e.DailyLossUsed)
	}
	if e.TradeCount != 1 {
		t.Errorf("trade count = %d, want 1", e.TradeCount)
	}
}

func TestSnapshotRestore_RoundTrip(t *testing.T) {
	l := newTestLedger()
	l.RecordEntry("agent-1", 5_000)
	l.RecordClose("agent-1", 5_000, -100)
	l.EngageKillSwitch("incident")

	snap := l.Snapshot()

	restored := newTestLedger()
	restored.Restore(snap)

	if !restored.KillSwitchEngaged() {
		t.Error("kill switch state lost in restore")
	}
	got := restored.Snapshot().PerAgent["agent-1"]
	if got == nil || got.DailyLossUsed != 100 || got.TradeCount != 1 {
		t.Errorf("restored entry = %+v, want loss 100 and 1 trade", got)
	}

	// Snapshot is a copy: mutating the source afterwards must not leak.
	l.RecordEntry("agent-1", 1_000)
	if restored.Snapshot().PerAgent["agent-1"].TradeCount != 1 {
		t.Error("restored ledger shares state with its source")
	}
}

func TestDrop_RemovesRetiredEntries(t *testing.T) {
	l := newTestLedger()
	l.RecordEntry("agent-1", 1_000)
	l.RecordEntry("agent-2", 1_000)

	l.Drop([]string{"agent-1"})

	snap := l.Snapshot()
	if _, ok := snap.PerAgent["agent-1"]; ok {
		t.Error("dropped agent still present")
	}
	if _, ok := snap.PerAgent["agent-2"]; !ok {
		t.Error("unrelated agent dropped")
	}
}
