package domain

// RiskLimits are the hard limits enforced by the risk gate.
// The daily loss cap is per-agent; the kill switch is global.
type RiskLimits struct {
	DailyLossCapPct  float64 `yaml:"daily_loss_cap_pct" json:"daily_loss_cap_pct"`   // % of capital
	PositionLimitPct float64 `yaml:"position_limit_pct" json:"position_limit_pct"`   // % of capital
	MaxTradesPerDay  int     `yaml:"max_trades_per_day" json:"max_trades_per_day"`   //
	ExtremeRegime    Regime  `yaml:"extreme_regime,omitempty" json:"extreme_regime"` // auto-engages kill switch; empty disables
}

// DefaultRiskLimits returns the standard risk limits.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		DailyLossCapPct:  2.0,
		PositionLimitPct: 10.0,
		MaxTradesPerDay:  50,
	}
}

// AgentLedger tracks per-agent risk counters. Entries for different agents
// are disjoint; each is mutated only by its own agent's accepted trades.
type AgentLedger struct {
	DailyLossUsed    float64 `json:"daily_loss_used"`   // accumulated daily loss (positive number)
	PositionExposure float64 `json:"position_exposure"` // open notional
	TradeCount       int     `json:"trade_count"`       // entries today
}

// RiskLedgerSnapshot is the serializable view of the risk ledger.
// The live ledger lives in the risk package; this form is used for
// persistence and the query surface.
type RiskLedgerSnapshot struct {
	KillSwitchEngaged bool                    `json:"kill_switch_engaged"`
	PerAgent          map[string]*AgentLedger `json:"per_agent"`
}
