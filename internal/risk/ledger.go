package risk

import (
	"sync"
	"sync/atomic"

	"spread-strategy-lab/internal/domain"
)

// Ledger holds the global kill switch and per-agent risk counters.
//
// Per-agent entries are disjoint: each is mutated only on behalf of its own
// agent, so agents never contend on each other's counters. The kill switch
// is the single piece of process-wide shared mutable state; it is an atomic
// flag written by one controller and read by every agent on each step.
type Ledger struct {
	limits domain.RiskLimits

	killSwitch atomic.Bool

	mu         sync.RWMutex // guards the map and kill reason, not entry fields
	perAgent   map[string]*domain.AgentLedger
	killReason string
}

// NewLedger creates a ledger with the given limits.
func NewLedger(limits domain.RiskLimits) *Ledger {
	return &Ledger{
		limits:   limits,
		perAgent: make(map[string]*domain.AgentLedger),
	}
}

// Limits returns the configured risk limits.
func (l *Ledger) Limits() domain.RiskLimits { return l.limits }

// EngageKillSwitch engages the global kill switch. All trade admission is
// rejected and every open position is force-closed on the next simulation
// step. Recoverable only via ResetKillSwitch.
func (l *Ledger) EngageKillSwitch(reason string) {
	l.mu.Lock()
	l.killReason = reason
	l.mu.Unlock()
	l.killSwitch.Store(true)
}

// ResetKillSwitch disengages the kill switch. Explicit external action only.
func (l *Ledger) ResetKillSwitch() {
	l.killSwitch.Store(false)
	l.mu.Lock()
	l.killReason = ""
	l.mu.Unlock()
}

// KillSwitchEngaged reports whether the kill switch is engaged.
func (l *Ledger) KillSwitchEngaged() bool { return l.killSwitch.Load() }

// KillSwitchReason returns the reason recorded when the switch was engaged.
func (l *Ledger) KillSwitchReason() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.killReason
}

// RecordEntry records an accepted entry for an agent.
func (l *Ledger) RecordEntry(agentID string, notional float64) {
	e := l.entry(agentID)
	e.PositionExposure += notional
	e.TradeCount++
}

// RecordClose records a position close for an agent.
func (l *Ledger) RecordClose(agentID string, notional, pnl float64) {
	e := l.entry(agentID)
	e.PositionExposure -= notional
	if e.PositionExposure < 0 {
		e.PositionExposure = 0
	}
	if pnl < 0 {
		e.DailyLossUsed += -pnl
	}
}

// ResetDaily clears daily counters for all agents. The kill switch is
// unaffected; it resets only by explicit external action.
func (l *Ledger) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.perAgent {
		e.DailyLossUsed = 0
		e.TradeCount = 0
	}
}

// Drop removes the ledger entries of retired agents.
func (l *Ledger) Drop(agentIDs []string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range agentIDs {
		delete(l.perAgent, id)
	}
}

// Snapshot returns a serializable copy of the ledger.
func (l *Ledger) Snapshot() domain.RiskLedgerSnapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()
	per := make(map[string]*domain.AgentLedger, len(l.perAgent))
	for id, e := range l.perAgent {
		copied := *e
		per[id] = &copied
	}
	return domain.RiskLedgerSnapshot{
		KillSwitchEngaged: l.killSwitch.Load(),
		PerAgent:          per,
	}
}

// Restore replaces the ledger contents from a snapshot.
func (l *Ledger) Restore(snap domain.RiskLedgerSnapshot) {
	l.mu.Lock()
	l.perAgent = make(map[string]*domain.AgentLedger, len(snap.PerAgent))
	for id, e := range snap.PerAgent {
		copied := *e
		l.perAgent[id] = &copied
	}
	l.mu.Unlock()
	l.killSwitch.Store(snap.KillSwitchEngaged)
}

// entry returns the agent's ledger entry, creating it on first use.
func (l *Ledger) entry(agentID string) *domain.AgentLedger {
	l.mu.RLock()
	e := l.perAgent[agentID]
	l.mu.RUnlock()
	if e != nil {
		return e
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if e = l.perAgent[agentID]; e == nil {
		e = &domain.AgentLedger{}
		l.perAgent[agentID] = e
	}
	return e
}
