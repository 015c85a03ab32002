package signal

import "spread-strategy-lab/internal/domain"

// RegimeConfig holds the thresholds of the regime classifier.
type RegimeConfig struct {
	HighVolThreshold float64 `yaml:"high_vol_threshold"` // stddev of % returns at or above → HIGH_VOL
	LowVolThreshold  float64 `yaml:"low_vol_threshold"`  // stddev of % returns at or below → LOW_VOL
	ThinTickCount    int     `yaml:"thin_tick_count"`    // ticks in density window below → THIN_LIQUIDITY
	DensityWindowMs  int64   `yaml:"density_window_ms"`  // trailing window for tick density
	OpeningWindowMs  int64   `yaml:"opening_window_ms"`  // session time below → OPENING
}

// DefaultRegimeConfig returns the standard classifier thresholds.
func DefaultRegimeConfig() RegimeConfig {
	return RegimeConfig{
		HighVolThreshold: 0.15,
		LowVolThreshold:  0.03,
		ThinTickCount:    5,
		DensityWindowMs:  60_000,
		OpeningWindowMs:  30 * 60_000,
	}
}

// ClassifyRegime maps volatility, tick density, and elapsed session time to
// a single regime tag. When several buckets apply the fixed priority order
// is volatility > liquidity > session. volReady is false while the return
// window has not filled yet; the volatility buckets are skipped then.
func ClassifyRegime(cfg RegimeConfig, vol float64, volReady bool, tickCount int, elapsedMs int64) domain.Regime {
	if volReady {
		if vol >= cfg.HighVolThreshold {
			return domain.RegimeHighVol
		}
		if vol <= cfg.LowVolThreshold {
			return domain.RegimeLowVol
		}
	}
	if tickCount < cfg.ThinTickCount {
		return domain.RegimeThinLiquidity
	}
	if elapsedMs < cfg.OpeningWindowMs {
		return domain.RegimeOpening
	}
	return domain.RegimeMidSession
}
