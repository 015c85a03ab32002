package domain

// EquityPoint is one point of an agent's equity curve.
type EquityPoint struct {
	TimestampMs int64   `json:"timestamp_ms"`
	Equity      float64 `json:"equity"` // capital + unrealized PnL
}

// AgentState is the full mutable state of one simulated agent. It is owned
// exclusively by the simulation engine running that agent; no other
// component mutates it.
type AgentState struct {
	GenomeID       string            `json:"genome_id"`
	Capital        float64           `json:"capital"`
	InitialCapital float64           `json:"initial_capital"`
	PeakEquity     float64           `json:"peak_equity"`
	OpenPosition   *Position         `json:"open_position,omitempty"`
	Trades         []*Trade          `json:"trades"`       // append-only
	EquityCurve    []EquityPoint     `json:"equity_curve"` // append-only
	Stability      map[string]int    `json:"stability"`    // per-instrument favorable streak
	DailyPnL       float64           `json:"daily_pnl"`
	DailyTrades    int               `json:"daily_trades"`
	Faulted        bool              `json:"faulted"`
	FaultReason    string            `json:"fault_reason,omitempty"`
}

// NewAgentState creates a fresh state for a genome with the given capital.
func NewAgentState(genomeID string, capital float64) *AgentState {
	return &AgentState{
		GenomeID:       genomeID,
		Capital:        capital,
		InitialCapital: capital,
		PeakEquity:     capital,
		Stability:      make(map[string]int),
	}
}

// Equity returns current capital plus unrealized PnL of the open position.
func (s *AgentState) Equity() float64 {
	if s.OpenPosition != nil {
		return s.Capital + s.OpenPosition.UnrealizedPnL()
	}
	return s.Capital
}

// ResetDaily clears the daily PnL and trade counters.
func (s *AgentState) ResetDaily() {
	s.DailyPnL = 0
	s.DailyTrades = 0
}
