// Package evolution implements the periodic control loop that ranks agents,
// retires underperformers, refills the population with offspring genomes,
// and designates a champion. A cycle runs only when explicitly invoked by
// an external scheduler; the controller keeps no internal clock.
package evolution

import (
	"errors"
	"fmt"
	"log"
	"math/rand"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/evaluation"
	"spread-strategy-lab/internal/genome"
)

// Phase is the controller's position in the evolution loop.
type Phase string

// Controller phases.
const (
	PhaseCollecting Phase = "COLLECTING"
	PhaseEvaluating Phase = "EVALUATING"
	PhaseReshaping  Phase = "RESHAPING"
)

// Controller errors.
var (
	ErrEmptyPopulation = errors.New("population has no members")
	ErrAllFaulted      = errors.New("all agents are faulted")
)

// Config holds evolution parameters.
type Config struct {
	PopulationSize int     `yaml:"population_size"`
	RetireFraction float64 `yaml:"retire_fraction"` // fraction retired per cycle
	CrossoverRate  float64 `yaml:"crossover_rate"`  // probability an offspring comes from crossover
	MutationRate   float64 `yaml:"mutation_rate"`   // ±fraction of parameter range per mutation
	InitialCapital float64 `yaml:"initial_capital"`
	Seed           int64   `yaml:"seed"` // base RNG seed; per-cycle RNG derives from seed + generation
}

// DefaultConfig returns the standard evolution parameters.
func DefaultConfig() Config {
	return Config{
		PopulationSize: 8,
		RetireFraction: 0.25,
		CrossoverRate:  0.3,
		MutationRate:   0.2,
		InitialCapital: 100_000,
		Seed:           1,
	}
}

// CycleResult summarizes one completed evolution cycle.
type CycleResult struct {
	Generation   int                          // generation after the cycle
	Ranked       []*domain.PerformanceMetrics // non-faulted agents, best first
	ChampionID   string
	RetiredIDs   []string
	OffspringIDs []string
	Champion     *domain.Genome
}

// Controller reshapes a population in place. The caller is responsible for
// serializing RunCycle against simulation advances; the cycle is atomic
// with respect to population size and champion designation.
type Controller struct {
	cfg    Config
	bounds domain.GenomeBounds
	eval   evaluation.Config
	logger *log.Logger
	phase  Phase
}

// Options configures a new Controller.
type Options struct {
	Config Config
	Bounds domain.GenomeBounds
	Eval   evaluation.Config
	Logger *log.Logger // optional
}

// New creates an evolution controller.
func New(opts Options) *Controller {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Controller{
		cfg:    opts.Config,
		bounds: opts.Bounds,
		eval:   opts.Eval,
		logger: logger,
		phase:  PhaseCollecting,
	}
}

// Phase returns the controller's current phase.
func (c *Controller) Phase() Phase { return c.phase }

// SetSeed replaces the base RNG seed. Used when restoring a snapshot so
// subsequent cycles breed the same offspring as the captured run would
// have, whatever seed this controller was constructed with.
func (c *Controller) SetSeed(seed int64) { c.cfg.Seed = seed }

// SeedPopulation builds the initial population: the three preset baselines
// followed by random genomes up to the configured size, all in generation 1
// with fresh agent states.
func (c *Controller) SeedPopulation() *domain.Population {
	rng := rand.New(rand.NewSource(c.cfg.Seed))

	genomes := []*domain.Genome{
		genome.Conservative(1),
		genome.Aggressive(1),
		genome.Balanced(1),
	}
	if len(genomes) > c.cfg.PopulationSize {
		genomes = genomes[:c.cfg.PopulationSize]
	}
	for len(genomes) < c.cfg.PopulationSize {
		genomes = append(genomes, genome.Random(rng, c.bounds, 1))
	}

	members := make([]*domain.Member, len(genomes))
	for i, g := range genomes {
		members[i] = &domain.Member{
			Genome: g,
			State:  domain.NewAgentState(g.ID, c.cfg.InitialCapital),
		}
	}
	return &domain.Population{Generation: 1, Members: members}
}

// RunCycle executes one evolution cycle on the population:
// evaluate non-faulted agents, rank, designate the champion, retire the
// bottom quartile (faulted agents first, counted toward the quota), and
// refill to exactly the configured size with offspring genomes carrying the
// next generation number. The population is reshaped in place.
func (c *Controller) RunCycle(pop *domain.Population) (*CycleResult, error) {
	if pop.Size() == 0 {
		return nil, ErrEmptyPopulation
	}
	defer func() { c.phase = PhaseCollecting }()

	// EVALUATING: compute fresh metrics for every non-faulted agent.
	c.phase = PhaseEvaluating
	var metrics []*domain.PerformanceMetrics
	var faulted []*domain.Member
	for _, m := range pop.Members {
		if m.State.Faulted {
			faulted = append(faulted, m)
			continue
		}
		metrics = append(metrics, evaluation.Compute(c.eval, m.Genome.ID, m.State))
	}
	if len(metrics) == 0 {
		return nil, ErrAllFaulted
	}
	ranked := evaluation.Rank(metrics)

	// RESHAPING: retire, refill, designate.
	c.phase = PhaseReshaping
	nextGen := pop.Generation + 1
	rng := rand.New(rand.NewSource(c.cfg.Seed + int64(nextGen)))

	quota := c.retireQuota(pop.Size())
	retired := c.selectRetirees(ranked, faulted, quota)

	retiredSet := make(map[string]struct{}, len(retired))
	retiredIDs := make([]string, 0, len(retired))
	for _, id := range retired {
		retiredSet[id] = struct{}{}
		retiredIDs = append(retiredIDs, id)
	}

	// Survivors keep their rank order; they are both the parent pool and
	// the head of the next generation's member list.
	var survivors []*domain.Member
	for _, rm := range ranked {
		if _, gone := retiredSet[rm.AgentID]; gone {
			continue
		}
		survivors = append(survivors, pop.MemberByID(rm.AgentID))
	}

	var offspringIDs []string
	members := make([]*domain.Member, 0, c.cfg.PopulationSize)
	members = append(members, survivors...)
	for len(members) < c.cfg.PopulationSize {
		child := c.breed(rng, survivors, nextGen)
		offspringIDs = append(offspringIDs, child.ID)
		members = append(members, &domain.Member{
			Genome: child,
			State:  domain.NewAgentState(child.ID, c.cfg.InitialCapital),
		})
	}
	if len(members) != c.cfg.PopulationSize {
		return nil, fmt.Errorf("population size %d after reshaping, want %d", len(members), c.cfg.PopulationSize)
	}

	champion := ranked[0].AgentID
	pop.Members = members
	pop.Generation = nextGen
	pop.ChampionID = champion

	c.logger.Printf("[evolution] cycle complete: gen %d, champion %s, retired %d, offspring %d",
		nextGen, champion, len(retiredIDs), len(offspringIDs))

	return &CycleResult{
		Generation:   nextGen,
		Ranked:       ranked,
		ChampionID:   champion,
		RetiredIDs:   retiredIDs,
		OffspringIDs: offspringIDs,
		Champion:     pop.MemberByID(champion).Genome,
	}, nil
}

// retireQuota returns the number of members to retire: the configured
// fraction rounded down, at least 1 when the population is larger than 4.
func (c *Controller) retireQuota(size int) int {
	quota := int(float64(size) * c.cfg.RetireFraction)
	if quota < 1 && size > 4 {
		quota = 1
	}
	return quota
}

// selectRetirees picks the agents to retire: every faulted agent first,
// then the lowest-ranked survivors until the quota is met. When faulted
// agents exceed the quota they are all retired regardless, since a faulted
// agent is only ever resolved by replacement.
func (c *Controller) selectRetirees(ranked []*domain.PerformanceMetrics, faulted []*domain.Member, quota int) []string {
	var ids []string
	for _, m := range faulted {
		ids = append(ids, m.Genome.ID)
	}
	for i := len(ranked) - 1; i >= 0 && len(ids) < quota; i-- {
		ids = append(ids, ranked[i].AgentID)
	}
	return ids
}

// breed creates one offspring from the survivor pool: crossover of two
// rank-weighted parents with the configured probability, otherwise a
// mutation of one. Falls back to mutation when only one survivor exists.
func (c *Controller) breed(rng *rand.Rand, survivors []*domain.Member, generation int) *domain.Genome {
	if len(survivors) >= 2 && rng.Float64() < c.cfg.CrossoverRate {
		a := c.pickParent(rng, survivors, nil)
		b := c.pickParent(rng, survivors, a)
		return genome.Crossover(rng, c.bounds, a.Genome, b.Genome, generation)
	}
	parent := c.pickParent(rng, survivors, nil)
	return genome.Mutate(rng, c.bounds, parent.Genome, c.cfg.MutationRate, generation)
}

// pickParent samples a survivor weighted toward higher rank: the member at
// rank i (0 = best) gets weight n-i. The excluded member, if any, is never
// returned (used to avoid self-crossover).
func (c *Controller) pickParent(rng *rand.Rand, survivors []*domain.Member, exclude *domain.Member) *domain.Member {
	pool := survivors
	if exclude != nil && len(survivors) > 1 {
		pool = make([]*domain.Member, 0, len(survivors)-1)
		for _, m := range survivors {
			if m != exclude {
				pool = append(pool, m)
			}
		}
	}

	n := len(pool)
	total := n * (n + 1) / 2
	draw := rng.Intn(total)
	for i, m := range pool {
		draw -= n - i
		if draw < 0 {
			return m
		}
	}
	return pool[n-1]
}
