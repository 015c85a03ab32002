package genome

import "spread-strategy-lab/internal/domain"

// Preset genomes used to seed an initial population before random fill.
// They serve as fixed baselines for comparing evolved strategies against.

// Conservative returns a low-risk baseline: wide spread requirement, long
// confirmation, small positions.
func Conservative(generation int) *domain.Genome {
	return build(generation, nil, domain.GenomeParams{
		MinSpreadThreshold: 0.15,
		StabilityTicks:     6,
		PositionSizePct:    3.0,
		TakeProfitPct:      0.15,
		StopLossPct:        0.20,
		MaxHoldSeconds:     90,
		PreferredSession:   domain.SessionMidSession,
	})
}

// Aggressive returns a high-turnover baseline: tight spread requirement,
// quick entries, larger positions.
func Aggressive(generation int) *domain.Genome {
	return build(generation, nil, domain.GenomeParams{
		MinSpreadThreshold: 0.03,
		StabilityTicks:     2,
		PositionSizePct:    7.0,
		TakeProfitPct:      0.08,
		StopLossPct:        0.25,
		MaxHoldSeconds:     30,
		PreferredSession:   domain.SessionAny,
	})
}

// Balanced returns a middle-ground baseline.
func Balanced(generation int) *domain.Genome {
	return build(generation, nil, domain.GenomeParams{
		MinSpreadThreshold: 0.08,
		StabilityTicks:     4,
		PositionSizePct:    5.0,
		TakeProfitPct:      0.12,
		StopLossPct:        0.18,
		MaxHoldSeconds:     60,
		PreferredSession:   domain.SessionMidSession,
	})
}
