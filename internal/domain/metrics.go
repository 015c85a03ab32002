package domain

// PerformanceMetrics are risk-adjusted metrics for one agent, recomputed
// fresh each evaluation cycle from the agent's state. Never persisted as
// authoritative; always derivable.
type PerformanceMetrics struct {
	AgentID        string  `json:"agent_id"`
	NetPnL         float64 `json:"net_pnl"`
	ReturnPct      float64 `json:"return_pct"`
	Sharpe         float64 `json:"sharpe"`
	Sortino        float64 `json:"sortino"`
	MaxDrawdown    float64 `json:"max_drawdown"` // fraction of peak equity, 0..1
	WinRate        float64 `json:"win_rate"`     // 0..1
	TotalTrades    int     `json:"total_trades"`
	CompositeScore float64 `json:"composite_score"`
}

// CompositeWeights are the fixed weights of the composite ranking score.
// Weights are configuration, never derived from data.
type CompositeWeights struct {
	Sharpe      float64 `yaml:"sharpe" json:"sharpe"`
	Sortino     float64 `yaml:"sortino" json:"sortino"`
	MaxDrawdown float64 `yaml:"max_drawdown" json:"max_drawdown"` // applied to inverted drawdown
	WinRate     float64 `yaml:"win_rate" json:"win_rate"`
}

// DefaultCompositeWeights returns the standard ranking weights.
func DefaultCompositeWeights() CompositeWeights {
	return CompositeWeights{
		Sharpe:      0.35,
		Sortino:     0.25,
		MaxDrawdown: 0.20,
		WinRate:     0.20,
	}
}
