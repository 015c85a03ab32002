// Package evaluation computes risk-adjusted performance metrics from agent
// trade and equity history, and ranks agents by a weighted composite score.
// Metrics are recomputed from scratch on every evaluation cycle; nothing is
// updated incrementally.
package evaluation

import (
	"math"

	"spread-strategy-lab/internal/domain"
)

// sortinoCap is the Sortino value reported when an agent has no negative
// period returns. With no downside observations the downside deviation is
// undefined; the ratio is treated as maximal and pinned to the value that
// normalizes to 1.0, rather than dividing by zero.
const sortinoCap = 10.0

// Config holds evaluator parameters.
type Config struct {
	Weights      domain.CompositeWeights `yaml:"weights"`
	RiskFreeRate float64                 `yaml:"risk_free_rate"` // per period, in % units
}

// DefaultConfig returns the standard evaluator configuration.
func DefaultConfig() Config {
	return Config{Weights: domain.DefaultCompositeWeights()}
}

// Compute calculates all metrics for one agent from its state.
func Compute(cfg Config, genomeID string, state *domain.AgentState) *domain.PerformanceMetrics {
	m := &domain.PerformanceMetrics{
		AgentID:     genomeID,
		NetPnL:      state.Capital - state.InitialCapital,
		TotalTrades: len(state.Trades),
	}
	if state.InitialCapital != 0 {
		m.ReturnPct = m.NetPnL / state.InitialCapital * 100
	}

	returns := periodReturns(state.EquityCurve)
	m.Sharpe = computeSharpe(returns, cfg.RiskFreeRate)
	m.Sortino = computeSortino(returns)
	m.MaxDrawdown = computeMaxDrawdown(state.EquityCurve)
	m.WinRate = computeWinRate(state.Trades)
	m.CompositeScore = compositeScore(cfg.Weights, m)
	return m
}

// periodReturns derives percentage returns between consecutive equity points.
func periodReturns(curve []domain.EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev == 0 {
			continue
		}
		returns = append(returns, (curve[i].Equity-prev)/prev*100)
	}
	return returns
}

// computeSharpe calculates mean(returns - rf) / stddev(returns).
// Zero when fewer than two returns exist or the deviation is zero.
func computeSharpe(returns []float64, riskFree float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := computeMean(returns)
	std := computeStddev(returns, mean)
	if std == 0 {
		return 0
	}
	return (mean - riskFree) / std
}

// computeSortino replaces the Sharpe denominator with downside deviation,
// the standard deviation of negative returns only. When no negative returns
// exist the ratio is pinned to sortinoCap (maximal risk adjustment) for a
// positive mean, and zero otherwise.
func computeSortino(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	mean := computeMean(returns)

	var negatives []float64
	for _, r := range returns {
		if r < 0 {
			negatives = append(negatives, r)
		}
	}
	if len(negatives) == 0 {
		if mean > 0 {
			return sortinoCap
		}
		return 0
	}

	downside := computeStddev(negatives, computeMean(negatives))
	if downside == 0 {
		return 0
	}
	s := mean / downside
	if s > sortinoCap {
		return sortinoCap
	}
	return s
}

// computeMaxDrawdown returns the worst peak-to-trough decline as a fraction
// of the running peak equity.
func computeMaxDrawdown(curve []domain.EquityPoint) float64 {
	if len(curve) == 0 {
		return 0
	}
	peak := curve[0].Equity
	maxDD := 0.0
	for _, pt := range curve {
		if pt.Equity > peak {
			peak = pt.Equity
		}
		if peak > 0 {
			dd := (peak - pt.Equity) / peak
			if dd > maxDD {
				maxDD = dd
			}
		}
	}
	return maxDD
}

// computeWinRate returns winning closed trades over total closed trades.
func computeWinRate(trades []*domain.Trade) float64 {
	if len(trades) == 0 {
		return 0
	}
	wins := 0
	for _, t := range trades {
		if t.PnL > 0 {
			wins++
		}
	}
	return float64(wins) / float64(len(trades))
}

// compositeScore computes the fixed weighted sum of normalized metrics on a
// 0-100 scale. Drawdown enters inverted: lower drawdown scores higher.
func compositeScore(w domain.CompositeWeights, m *domain.PerformanceMetrics) float64 {
	sharpeNorm := clamp01((m.Sharpe + 2) / 6)
	sortinoNorm := clamp01((m.Sortino + 2) / 12)
	ddNorm := 1 - clamp01(m.MaxDrawdown*2)
	winNorm := clamp01(m.WinRate)

	return 100 * (w.Sharpe*sharpeNorm +
		w.Sortino*sortinoNorm +
		w.MaxDrawdown*ddNorm +
		w.WinRate*winNorm)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func computeMean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// computeStddev calculates sample standard deviation (n-1 denominator).
func computeStddev(values []float64, mean float64) float64 {
	n := len(values)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, v := range values {
		d := v - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}
