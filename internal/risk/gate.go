// Package risk implements the hierarchical admission control applied to
// every proposed trade, and the ledger that backs it. Levels are evaluated
// in a strict order and the first rejection wins: kill switch, daily loss
// cap, position limit, trade frequency. A rejection is an expected
// control-flow outcome, not an error.
package risk

import "fmt"

// Reason identifies the gate level that produced a decision.
type Reason string

// Decision reasons.
const (
	ReasonApproved       Reason = "APPROVED"
	ReasonKillSwitch     Reason = "KILL_SWITCH"
	ReasonDailyLossCap   Reason = "DAILY_LOSS_CAP"
	ReasonPositionLimit  Reason = "POSITION_LIMIT"
	ReasonTradeFrequency Reason = "TRADE_FREQUENCY"
)

// Decision is the outcome of a gate check.
type Decision struct {
	Approved bool
	Reason   Reason
	Detail   string
}

// Proposal describes a trade an agent wants to open.
type Proposal struct {
	AgentID  string
	Notional float64 // proposed position value
	Capital  float64 // agent capital at proposal time
	DailyPnL float64 // agent daily PnL at proposal time
}

// CheckEntry evaluates a new-entry proposal against the gate levels.
// It is pure given the current ledger and proposal snapshot: accepting a
// trade is the caller's responsibility (RecordEntry).
func (l *Ledger) CheckEntry(p Proposal) Decision {
	// Level 1: kill switch rejects everything.
	if l.KillSwitchEngaged() {
		return Decision{Reason: ReasonKillSwitch, Detail: "kill switch engaged"}
	}

	// Level 2: daily loss cap blocks new entries until the next daily reset.
	lossCap := l.limits.DailyLossCapPct / 100 * p.Capital
	if p.DailyPnL <= -lossCap {
		return Decision{
			Reason: ReasonDailyLossCap,
			Detail: fmt.Sprintf("daily pnl %.2f at or below cap -%.2f", p.DailyPnL, lossCap),
		}
	}

	// Level 3: position limit rejects outright, never resizes.
	maxNotional := l.limits.PositionLimitPct / 100 * p.Capital
	if p.Notional > maxNotional {
		return Decision{
			Reason: ReasonPositionLimit,
			Detail: fmt.Sprintf("notional %.2f exceeds limit %.2f", p.Notional, maxNotional),
		}
	}

	// Level 4: trade frequency.
	if l.entry(p.AgentID).TradeCount >= l.limits.MaxTradesPerDay {
		return Decision{
			Reason: ReasonTradeFrequency,
			Detail: fmt.Sprintf("daily trade count at limit %d", l.limits.MaxTradesPerDay),
		}
	}

	return Decision{Approved: true, Reason: ReasonApproved}
}
