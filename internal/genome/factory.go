// Package genome implements the factory operations that create strategy
// genomes: random generation, mutation, and crossover. All operations are
// pure and deterministic given an explicit random source, never mutate
// their inputs, and always clamp results to the declared parameter bounds.
package genome

import (
	"math"
	"math/rand"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/idhash"
)

// sessions is the closed set of session preferences, in the fixed order
// used for random draws.
var sessions = []domain.Session{
	domain.SessionAny,
	domain.SessionOpening,
	domain.SessionMidSession,
}

// Random produces a genome with each parameter drawn uniformly from its
// bounds, tagged with the given generation and no parents.
func Random(rng *rand.Rand, bounds domain.GenomeBounds, generation int) *domain.Genome {
	p := domain.GenomeParams{
		MinSpreadThreshold: uniform(rng, bounds.MinSpreadThreshold),
		StabilityTicks:     uniformInt(rng, bounds.StabilityTicks),
		PositionSizePct:    uniform(rng, bounds.PositionSizePct),
		TakeProfitPct:      uniform(rng, bounds.TakeProfitPct),
		StopLossPct:        uniform(rng, bounds.StopLossPct),
		MaxHoldSeconds:     uniformInt(rng, bounds.MaxHoldSeconds),
		PreferredSession:   sessions[rng.Intn(len(sessions))],
	}
	return build(generation, nil, p)
}

// Mutate returns a new genome whose numeric parameters are each
// independently perturbed by up to ±rate of their range and clamped to
// bounds. The categorical session preference is re-drawn with probability
// rate. The parent is not modified.
func Mutate(rng *rand.Rand, bounds domain.GenomeBounds, parent *domain.Genome, rate float64, generation int) *domain.Genome {
	p := parent.Params

	p.MinSpreadThreshold = perturb(rng, bounds.MinSpreadThreshold, p.MinSpreadThreshold, rate)
	p.StabilityTicks = perturbInt(rng, bounds.StabilityTicks, p.StabilityTicks, rate)
	p.PositionSizePct = perturb(rng, bounds.PositionSizePct, p.PositionSizePct, rate)
	p.TakeProfitPct = perturb(rng, bounds.TakeProfitPct, p.TakeProfitPct, rate)
	p.StopLossPct = perturb(rng, bounds.StopLossPct, p.StopLossPct, rate)
	p.MaxHoldSeconds = perturbInt(rng, bounds.MaxHoldSeconds, p.MaxHoldSeconds, rate)
	if rng.Float64() < rate {
		p.PreferredSession = sessions[rng.Intn(len(sessions))]
	}

	return build(generation, []string{parent.ID}, p)
}

// Crossover returns a new genome whose parameters are each independently
// chosen from a or b (uniform per-parameter choice) and clamped to bounds.
// Neither parent is modified.
func Crossover(rng *rand.Rand, bounds domain.GenomeBounds, a, b *domain.Genome, generation int) *domain.Genome {
	pick := func() domain.GenomeParams {
		if rng.Intn(2) == 0 {
			return a.Params
		}
		return b.Params
	}

	p := domain.GenomeParams{
		MinSpreadThreshold: bounds.MinSpreadThreshold.Clamp(pick().MinSpreadThreshold),
		StabilityTicks:     clampInt(bounds.StabilityTicks, pick().StabilityTicks),
		PositionSizePct:    bounds.PositionSizePct.Clamp(pick().PositionSizePct),
		TakeProfitPct:      bounds.TakeProfitPct.Clamp(pick().TakeProfitPct),
		StopLossPct:        bounds.StopLossPct.Clamp(pick().StopLossPct),
		MaxHoldSeconds:     clampInt(bounds.MaxHoldSeconds, pick().MaxHoldSeconds),
		PreferredSession:   pick().PreferredSession,
	}

	return build(generation, []string{a.ID, b.ID}, p)
}

// New validates params against bounds and constructs a genome with a
// deterministic ID. Returns domain.ErrInvalidGenome on a bounds violation.
func New(generation int, parentIDs []string, p domain.GenomeParams, bounds domain.GenomeBounds) (*domain.Genome, error) {
	if err := p.Validate(bounds); err != nil {
		return nil, err
	}
	return build(generation, parentIDs, p), nil
}

func build(generation int, parentIDs []string, p domain.GenomeParams) *domain.Genome {
	return &domain.Genome{
		ID:         idhash.ComputeGenomeID(generation, parentIDs, p),
		Generation: generation,
		ParentIDs:  parentIDs,
		Params:     p,
	}
}

func uniform(rng *rand.Rand, r domain.ParamRange) float64 {
	return r.Min + rng.Float64()*r.Span()
}

func uniformInt(rng *rand.Rand, r domain.ParamRange) int {
	return int(r.Min) + rng.Intn(int(r.Max)-int(r.Min)+1)
}

func perturb(rng *rand.Rand, r domain.ParamRange, v, rate float64) float64 {
	delta := (rng.Float64()*2 - 1) * rate * r.Span()
	return r.Clamp(v + delta)
}

func perturbInt(rng *rand.Rand, r domain.ParamRange, v int, rate float64) int {
	delta := (rng.Float64()*2 - 1) * rate * r.Span()
	return clampInt(r, v+int(math.Round(delta)))
}

func clampInt(r domain.ParamRange, v int) int {
	return int(r.Clamp(float64(v)))
}
