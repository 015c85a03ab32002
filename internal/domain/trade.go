package domain

// Exit reason codes.
const (
	ExitReasonTakeProfit = "TAKE_PROFIT"
	ExitReasonStopLoss   = "STOP_LOSS"
	ExitReasonMaxHold    = "MAX_HOLD"
	ExitReasonKillSwitch = "KILL_SWITCH"
)

// Trade is a completed round trip. Created on position close and immutable
// once written; trade logs are append-only.
type Trade struct {
	TradeID      string  `json:"trade_id"` // deterministic hash
	AgentID      string  `json:"agent_id"`
	InstrumentID string  `json:"instrument_id"`
	EntryPriceA  float64 `json:"entry_price_a"` // venue A price at entry
	EntryPriceB  float64 `json:"entry_price_b"` // venue B price at entry
	EntryPrice   float64 `json:"entry_price"`   // executed entry (cheaper venue)
	ExitPrice    float64 `json:"exit_price"`
	Size         float64 `json:"size"` // quantity in instrument units
	OpenedAtMs   int64   `json:"opened_at_ms"`
	ClosedAtMs   int64   `json:"closed_at_ms"`
	PnL          float64 `json:"pnl"`
	PnLPct       float64 `json:"pnl_pct"` // return on entry notional (%)
	ExitReason   string  `json:"exit_reason"`
}

// Position is an open simulated position. Owned exclusively by the agent's
// simulation engine.
type Position struct {
	InstrumentID string  `json:"instrument_id"`
	EntryPriceA  float64 `json:"entry_price_a"`
	EntryPriceB  float64 `json:"entry_price_b"`
	EntryPrice   float64 `json:"entry_price"` // cheaper venue at entry
	EntryVenue   Venue   `json:"entry_venue"`
	Size         float64 `json:"size"`
	Notional     float64 `json:"notional"` // entry price * size
	OpenedAtMs   int64   `json:"opened_at_ms"`
	CurrentPrice float64 `json:"current_price"` // last observed entry-venue price
}

// UnrealizedPnL returns the mark-to-market profit at the current price.
func (p *Position) UnrealizedPnL() float64 {
	return (p.CurrentPrice - p.EntryPrice) * p.Size
}

// UnrealizedReturnPct returns the mark-to-market return in percent.
func (p *Position) UnrealizedReturnPct() float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	return (p.CurrentPrice - p.EntryPrice) / p.EntryPrice * 100
}
