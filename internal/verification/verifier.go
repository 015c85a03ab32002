// Package verification checks that stored trades are reproducible: a lab
// restored from a snapshot and fed the archived tick sequence must
// regenerate the same trade log, field for field.
package verification

import (
	"math"

	"spread-strategy-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // field name
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// TradeResult contains the result of verifying a single trade.
type TradeResult struct {
	TradeID     string            // verified trade ID
	AgentID     string            //
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// Report contains results for one verification run.
type Report struct {
	Generation      int           // snapshot generation replayed from
	TotalTrades     int           // stored trades in the verified window
	MatchedTrades   int           // trades that matched exactly
	DivergentTrades int           // trades with divergences
	MissingTrades   int           // stored trades the replay never produced
	ExtraTrades     int           // replayed trades absent from the log
	Results         []TradeResult // individual results
}

// Clean reports whether the replay reproduced the stored log exactly.
func (r *Report) Clean() bool {
	return r.DivergentTrades == 0 && r.MissingTrades == 0 && r.ExtraTrades == 0
}

// CompareTrades compares a stored and a replayed trade and returns the
// divergent fields. Floats compare within FloatTolerance, everything else
// exactly.
func CompareTrades(stored, replayed *domain.Trade) []FieldDivergence {
	var divergences []FieldDivergence

	check := func(field string, expected, actual interface{}, equal bool) {
		if !equal {
			divergences = append(divergences, FieldDivergence{
				Field:    field,
				Expected: expected,
				Actual:   actual,
			})
		}
	}

	check("TradeID", stored.TradeID, replayed.TradeID, stored.TradeID == replayed.TradeID)
	check("AgentID", stored.AgentID, replayed.AgentID, stored.AgentID == replayed.AgentID)
	check("InstrumentID", stored.InstrumentID, replayed.InstrumentID, stored.InstrumentID == replayed.InstrumentID)
	check("EntryPriceA", stored.EntryPriceA, replayed.EntryPriceA, floatEquals(stored.EntryPriceA, replayed.EntryPriceA))
	check("EntryPriceB", stored.EntryPriceB, replayed.EntryPriceB, floatEquals(stored.EntryPriceB, replayed.EntryPriceB))
	check("EntryPrice", stored.EntryPrice, replayed.EntryPrice, floatEquals(stored.EntryPrice, replayed.EntryPrice))
	check("ExitPrice", stored.ExitPrice, replayed.ExitPrice, floatEquals(stored.ExitPrice, replayed.ExitPrice))
	check("Size", stored.Size, replayed.Size, floatEquals(stored.Size, replayed.Size))
	check("OpenedAtMs", stored.OpenedAtMs, replayed.OpenedAtMs, stored.OpenedAtMs == replayed.OpenedAtMs)
	check("ClosedAtMs", stored.ClosedAtMs, replayed.ClosedAtMs, stored.ClosedAtMs == replayed.ClosedAtMs)
	check("PnL", stored.PnL, replayed.PnL, floatEquals(stored.PnL, replayed.PnL))
	check("PnLPct", stored.PnLPct, replayed.PnLPct, floatEquals(stored.PnLPct, replayed.PnLPct))
	check("ExitReason", stored.ExitReason, replayed.ExitReason, stored.ExitReason == replayed.ExitReason)

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
// NaN equals NaN here; a faulting value must diverge the same way twice.
func floatEquals(a, b float64) bool {
	if math.IsNaN(a) && math.IsNaN(b) {
		return true
	}
	return math.Abs(a-b) <= FloatTolerance
}
