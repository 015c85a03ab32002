package domain

import (
	"errors"
	"fmt"
)

// ErrInvalidGenome is returned when genome parameters violate their bounds.
// An invalid genome is rejected at construction and never enters a population.
var ErrInvalidGenome = errors.New("invalid genome")

// GenomeParams is the parameter vector defining one strategy's behavior.
// Percentages are expressed in percent units (0.05 means 0.05%).
type GenomeParams struct {
	MinSpreadThreshold float64 `json:"min_spread_threshold"` // minimum spread to act on (%)
	StabilityTicks     int     `json:"stability_ticks"`      // favorable samples required before entry
	PositionSizePct    float64 `json:"position_size_pct"`    // % of capital per trade
	TakeProfitPct      float64 `json:"take_profit_pct"`      // exit at this unrealized gain (%)
	StopLossPct        float64 `json:"stop_loss_pct"`        // exit at this unrealized loss (%)
	MaxHoldSeconds     int     `json:"max_hold_seconds"`     // forced exit after this hold time
	PreferredSession   Session `json:"preferred_session"`    // session/regime gate
}

// Genome is an immutable strategy definition plus lineage metadata.
// Evolution produces new genomes; an existing genome is never altered.
type Genome struct {
	ID         string       `json:"id"`
	Generation int          `json:"generation"`
	ParentIDs  []string     `json:"parent_ids,omitempty"` // 0 for random, 1 for mutation, 2 for crossover
	Params     GenomeParams `json:"params"`
}

// ParamRange is the inclusive valid range of one numeric parameter.
type ParamRange struct {
	Min float64
	Max float64
}

// Span returns the width of the range.
func (r ParamRange) Span() float64 { return r.Max - r.Min }

// Clamp restricts v to [Min, Max].
func (r ParamRange) Clamp(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}

// Contains reports whether v lies within [Min, Max].
func (r ParamRange) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// GenomeBounds declares the valid range of every genome parameter.
type GenomeBounds struct {
	MinSpreadThreshold ParamRange
	StabilityTicks     ParamRange // integer-valued
	PositionSizePct    ParamRange
	TakeProfitPct      ParamRange
	StopLossPct        ParamRange
	MaxHoldSeconds     ParamRange // integer-valued
}

// DefaultGenomeBounds returns the standard parameter bounds.
func DefaultGenomeBounds() GenomeBounds {
	return GenomeBounds{
		MinSpreadThreshold: ParamRange{Min: 0.02, Max: 0.20},
		StabilityTicks:     ParamRange{Min: 1, Max: 10},
		PositionSizePct:    ParamRange{Min: 2.0, Max: 8.0},
		TakeProfitPct:      ParamRange{Min: 0.05, Max: 0.30},
		StopLossPct:        ParamRange{Min: 0.10, Max: 0.40},
		MaxHoldSeconds:     ParamRange{Min: 10, Max: 300},
	}
}

// Validate checks p against bounds. Returns ErrInvalidGenome (wrapped with
// the offending parameter) on the first violation.
func (p GenomeParams) Validate(bounds GenomeBounds) error {
	checks := []struct {
		name  string
		value float64
		rng   ParamRange
	}{
		{"min_spread_threshold", p.MinSpreadThreshold, bounds.MinSpreadThreshold},
		{"stability_ticks", float64(p.StabilityTicks), bounds.StabilityTicks},
		{"position_size_pct", p.PositionSizePct, bounds.PositionSizePct},
		{"take_profit_pct", p.TakeProfitPct, bounds.TakeProfitPct},
		{"stop_loss_pct", p.StopLossPct, bounds.StopLossPct},
		{"max_hold_seconds", float64(p.MaxHoldSeconds), bounds.MaxHoldSeconds},
	}
	for _, c := range checks {
		if !c.rng.Contains(c.value) {
			return fmt.Errorf("%w: %s=%v outside [%v, %v]",
				ErrInvalidGenome, c.name, c.value, c.rng.Min, c.rng.Max)
		}
	}
	if !p.PreferredSession.Valid() {
		return fmt.Errorf("%w: preferred_session=%q not a known session", ErrInvalidGenome, p.PreferredSession)
	}
	return nil
}
