// Package lab wires the signal pipeline, agent population, risk ledger,
// champion mirror, and evolution controller into one coordinated system.
// It coordinates: ticks → spread samples → parallel simulation → periodic
// evolution cycles.
package lab

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/evaluation"
	"spread-strategy-lab/internal/evolution"
	"spread-strategy-lab/internal/observability"
	"spread-strategy-lab/internal/risk"
	"spread-strategy-lab/internal/signal"
	"spread-strategy-lab/internal/simulation"
)

// Lab errors.
var (
	ErrPaused       = errors.New("lab is paused")
	ErrNoSnapshot   = errors.New("snapshot is nil")
	ErrUnknownAgent = errors.New("unknown agent")
)

// Lab owns the full system state. All mutating and reading methods are
// serialized by one mutex; a simulation batch and an evolution cycle never
// overlap, so population size, champion designation, and ledger state are
// always observed at a consistent point.
type Lab struct {
	mu sync.Mutex

	pipeline   *signal.Pipeline
	ledger     *risk.Ledger
	controller *evolution.Controller
	mirror     *simulation.Mirror

	pop     *domain.Population
	engines map[string]*simulation.Engine

	evoCfg evolution.Config
	bounds domain.GenomeBounds
	venueA domain.Venue
	venueB domain.Venue

	paused       bool
	lastSampleMs int64
	lastCycle    *evolution.CycleResult
	logger       *log.Logger
	verbose      bool
}

// Options for creating a Lab.
type Options struct {
	Signal    signal.PipelineConfig
	Risk      domain.RiskLimits
	Evolution evolution.Config
	Eval      evaluation.Config
	Bounds    domain.GenomeBounds

	Logger  *log.Logger // optional
	Verbose bool
}

// New creates a Lab with a freshly seeded population.
func New(opts Options) (*Lab, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	ledger := risk.NewLedger(opts.Risk)
	controller := evolution.New(evolution.Options{
		Config: opts.Evolution,
		Bounds: opts.Bounds,
		Eval:   opts.Eval,
		Logger: logger,
	})

	l := &Lab{
		pipeline: signal.NewPipeline(signal.PipelineOptions{
			Config: opts.Signal,
			Logger: logger,
		}),
		ledger:     ledger,
		controller: controller,
		mirror: simulation.NewMirror(simulation.MirrorOptions{
			InitialCapital: opts.Evolution.InitialCapital,
			Ledger:         ledger,
			VenueA:         opts.Signal.VenueA,
			VenueB:         opts.Signal.VenueB,
			Bounds:         opts.Bounds,
		}),
		pop:     controller.SeedPopulation(),
		evoCfg:  opts.Evolution,
		bounds:  opts.Bounds,
		venueA:  opts.Signal.VenueA,
		venueB:  opts.Signal.VenueB,
		logger:  logger,
		verbose: opts.Verbose,
	}
	if err := l.rebuildEngines(); err != nil {
		return nil, err
	}
	return l, nil
}

// AdvanceResult summarizes one Advance call.
type AdvanceResult struct {
	TicksIn      int
	Samples      int
	ClosedTrades []*domain.Trade // trades closed during this advance, across all agents and the mirror
	KillSwitch   bool            // kill switch state after the advance
}

// Advance pushes a tick batch through the signal pipeline and runs every
// live engine plus the champion mirror over the resulting samples. When a
// sample carries the configured extreme regime the kill switch engages
// before that sample is simulated, so open positions force-close on it.
// Returns ErrPaused without consuming ticks while the lab is paused.
func (l *Lab) Advance(ctx context.Context, ticks []*domain.Tick) (*AdvanceResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.paused {
		return nil, ErrPaused
	}

	res := &AdvanceResult{TicksIn: len(ticks)}
	before := l.tradeCounts()
	rejBefore := l.rejectionCounts()
	gapsBefore := l.pipeline.GapCount()

	samples := l.pipeline.PushBatch(ticks)
	res.Samples = len(samples)
	for _, t := range ticks {
		observability.RecordTick(string(t.Venue))
	}
	for n := l.pipeline.GapCount() - gapsBefore; n > 0; n-- {
		observability.RecordDataGap()
	}

	start := time.Now()
	var chunk []*domain.SpreadSample
	extreme := l.ledger.Limits().ExtremeRegime
	for _, s := range samples {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if extreme != "" && s.Regime == extreme && !l.ledger.KillSwitchEngaged() {
			l.runChunk(chunk)
			chunk = chunk[:0]
			l.engageKillSwitchLocked(fmt.Sprintf("extreme regime %s at %d", s.Regime, s.TimestampMs))
		}
		chunk = append(chunk, s)
		observability.RecordSample(string(s.Regime), s.TimestampMs)
		l.lastSampleMs = s.TimestampMs
	}
	l.runChunk(chunk)
	observability.RecordBatchDuration(time.Since(start).Seconds())

	res.ClosedTrades = l.tradesSince(before)
	res.KillSwitch = l.ledger.KillSwitchEngaged()
	l.publishHealth()
	for _, t := range res.ClosedTrades {
		observability.RecordTradeClosed(t.ExitReason)
	}
	for reason, n := range l.rejectionCounts() {
		for d := n - rejBefore[reason]; d > 0; d-- {
			observability.RecordTradeRejected(string(reason))
		}
	}
	return res, nil
}

// rejectionCounts sums the per-reason declined entry counters across all
// live engines.
func (l *Lab) rejectionCounts() map[risk.Reason]int64 {
	totals := make(map[risk.Reason]int64)
	for _, e := range l.engines {
		for reason, n := range e.Rejections() {
			totals[reason] += n
		}
	}
	return totals
}

// runChunk advances every engine and the mirror over one sample chunk.
func (l *Lab) runChunk(chunk []*domain.SpreadSample) {
	if len(chunk) == 0 {
		return
	}
	engines := make([]*simulation.Engine, 0, len(l.engines))
	for _, m := range l.pop.Members {
		if e, ok := l.engines[m.Genome.ID]; ok {
			engines = append(engines, e)
		}
	}
	simulation.RunBatch(engines, chunk)
	l.mirror.RunBatch(chunk)
}

// RunEvolutionCycle executes one evolution cycle: evaluate, rank, retire,
// refill, and point the mirror at the new champion. Retired agents lose
// their ledger entries; offspring start with fresh state and capital.
func (l *Lab) RunEvolutionCycle() (*evolution.CycleResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	result, err := l.controller.RunCycle(l.pop)
	if err != nil {
		return nil, err
	}

	l.ledger.Drop(result.RetiredIDs)
	if err := l.rebuildEngines(); err != nil {
		return nil, err
	}
	if err := l.mirror.SetChampion(result.Champion, l.evoCfg.InitialCapital); err != nil {
		return nil, err
	}

	l.lastCycle = result
	observability.RecordEvolutionCycle(result.Generation, len(result.RetiredIDs), result.Ranked[0].CompositeScore)
	l.publishHealth()
	return result, nil
}

// ResetDaily clears the per-agent daily risk counters, normally at a
// session boundary. The kill switch is unaffected.
func (l *Lab) ResetDaily() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.ledger.ResetDaily()
	for _, m := range l.pop.Members {
		m.State.ResetDaily()
	}
	if st := l.mirror.State(); st != nil {
		st.ResetDaily()
	}
	l.log("daily risk counters reset")
}

// Pause halts simulation. Ticks offered while paused are rejected.
func (l *Lab) Pause() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = true
	l.log("paused")
}

// Resume lifts a pause.
func (l *Lab) Resume() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.paused = false
	l.log("resumed")
}

// Paused reports whether the lab is paused.
func (l *Lab) Paused() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.paused
}

// EngageKillSwitch manually engages the global kill switch.
func (l *Lab) EngageKillSwitch(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.engageKillSwitchLocked(reason)
}

func (l *Lab) engageKillSwitchLocked(reason string) {
	l.ledger.EngageKillSwitch(reason)
	observability.SetKillSwitch(true)
	l.logger.Printf("[lab] kill switch engaged: %s", reason)
}

// ResetKillSwitch disengages the kill switch. Manual operation only.
func (l *Lab) ResetKillSwitch() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ledger.ResetKillSwitch()
	observability.SetKillSwitch(false)
	l.logger.Printf("[lab] kill switch reset")
}

// Generation returns the current generation number.
func (l *Lab) Generation() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pop.Generation
}

// ChampionID returns the current champion's genome ID, or empty before the
// first completed cycle.
func (l *Lab) ChampionID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pop.ChampionID
}

// LastCycle returns the most recent evolution cycle result, or nil.
func (l *Lab) LastCycle() *evolution.CycleResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastCycle
}

// MemberView is a read-only summary of one population member.
type MemberView struct {
	Genome     *domain.Genome `json:"genome"`
	Equity     float64        `json:"equity"`
	Capital    float64        `json:"capital"`
	TradeCount int            `json:"trade_count"`
	Faulted    bool           `json:"faulted"`
	IsChampion bool           `json:"is_champion"`
}

// PopulationView returns a summary of every member in rank-stable order.
func (l *Lab) PopulationView() []MemberView {
	l.mu.Lock()
	defer l.mu.Unlock()

	views := make([]MemberView, 0, l.pop.Size())
	for _, m := range l.pop.Members {
		views = append(views, MemberView{
			Genome:     m.Genome,
			Equity:     m.State.Equity(),
			Capital:    m.State.Capital,
			TradeCount: len(m.State.Trades),
			Faulted:    m.State.Faulted,
			IsChampion: m.Genome.ID == l.pop.ChampionID,
		})
	}
	return views
}

// RiskStatus returns the ledger snapshot plus the kill switch reason.
func (l *Lab) RiskStatus() (domain.RiskLedgerSnapshot, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ledger.Snapshot(), l.ledger.KillSwitchReason()
}

// AgentTrades returns the closed trades of one agent, oldest first.
// The mirror's trades are reachable under simulation.MirrorAgentID.
func (l *Lab) AgentTrades(agentID string) ([]*domain.Trade, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.agentState(agentID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.Trade, len(st.Trades))
	copy(out, st.Trades)
	return out, nil
}

// AgentEquity returns the equity curve of one agent, oldest first.
func (l *Lab) AgentEquity(agentID string) ([]domain.EquityPoint, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.agentState(agentID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.EquityPoint, len(st.EquityCurve))
	copy(out, st.EquityCurve)
	return out, nil
}

// MirrorState returns the champion reference portfolio state and the
// mirrored champion's ID, or nil before the first designation.
func (l *Lab) MirrorState() (*domain.AgentState, string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mirror.State(), l.mirror.ChampionID()
}

// PipelineStats returns the sample and gap counters.
func (l *Lab) PipelineStats() (samples, gaps int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pipeline.SampleCount(), l.pipeline.GapCount()
}

// Snapshot captures the full lab state as a deep copy, safe to persist
// while the lab keeps running.
func (l *Lab) Snapshot() (*domain.LabSnapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := &domain.LabSnapshot{
		Generation: l.pop.Generation,
		Population: l.pop,
		Ledger:     l.ledger.Snapshot(),
		Mirror:     l.mirror.State(),
		Pipeline:   l.pipeline.State(),
		EvoSeed:    l.evoCfg.Seed,
		Paused:     l.paused,
		TakenAtMs:  l.lastSampleMs,
	}

	raw, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("serialize snapshot: %w", err)
	}
	var out domain.LabSnapshot
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("deserialize snapshot: %w", err)
	}
	return &out, nil
}

// Restore reinstates a persisted snapshot: population, ledger, mirror,
// signal-pipeline state, and pause state. A restored lab fed the tick
// sequence that followed the snapshot behaves identically to the
// uninterrupted run, session clocks and volatility windows included.
func (l *Lab) Restore(snap *domain.LabSnapshot) error {
	if snap == nil {
		return ErrNoSnapshot
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pop = snap.Population
	l.ledger.Restore(snap.Ledger)
	l.paused = snap.Paused
	l.lastSampleMs = snap.TakenAtMs
	l.evoCfg.Seed = snap.EvoSeed
	l.controller.SetSeed(snap.EvoSeed)
	l.lastCycle = nil
	if snap.Pipeline != nil {
		l.pipeline.RestoreState(snap.Pipeline)
	}

	if err := l.rebuildEngines(); err != nil {
		return err
	}
	if snap.Mirror != nil {
		champion := l.pop.MemberByID(l.pop.ChampionID)
		if champion == nil {
			return fmt.Errorf("%w: champion %s missing from snapshot population", ErrUnknownAgent, l.pop.ChampionID)
		}
		if err := l.mirror.Restore(snap.Mirror, champion.Genome); err != nil {
			return err
		}
	}
	l.log("restored snapshot at generation %d", snap.Generation)
	return nil
}

// rebuildEngines recreates the engine set from the population, reusing
// nothing: every member gets an engine bound to its current state.
func (l *Lab) rebuildEngines() error {
	engines := make(map[string]*simulation.Engine, l.pop.Size())
	for _, m := range l.pop.Members {
		e, err := simulation.NewEngine(simulation.EngineOptions{
			Genome: m.Genome,
			State:  m.State,
			Ledger: l.ledger,
			VenueA: l.venueA,
			VenueB: l.venueB,
			Bounds: l.bounds,
		})
		if err != nil {
			return fmt.Errorf("engine for %s: %w", m.Genome.ID, err)
		}
		engines[m.Genome.ID] = e
	}
	l.engines = engines
	return nil
}

// tradeCounts records the per-agent trade log lengths, mirror included.
func (l *Lab) tradeCounts() map[string]int {
	counts := make(map[string]int, l.pop.Size()+1)
	for _, m := range l.pop.Members {
		counts[m.Genome.ID] = len(m.State.Trades)
	}
	if st := l.mirror.State(); st != nil {
		counts[simulation.MirrorAgentID] = len(st.Trades)
	}
	return counts
}

// tradesSince collects trades appended after the recorded counts.
func (l *Lab) tradesSince(before map[string]int) []*domain.Trade {
	var out []*domain.Trade
	for _, m := range l.pop.Members {
		out = append(out, m.State.Trades[before[m.Genome.ID]:]...)
	}
	if st := l.mirror.State(); st != nil {
		out = append(out, st.Trades[before[simulation.MirrorAgentID]:]...)
	}
	return out
}

// agentState resolves an agent ID to its state, mirror included.
func (l *Lab) agentState(agentID string) (*domain.AgentState, error) {
	if agentID == simulation.MirrorAgentID {
		if st := l.mirror.State(); st != nil {
			return st, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	m := l.pop.MemberByID(agentID)
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownAgent, agentID)
	}
	return m.State, nil
}

// publishHealth pushes the faulted and open position gauges.
func (l *Lab) publishHealth() {
	faulted, open := 0, 0
	for _, m := range l.pop.Members {
		if m.State.Faulted {
			faulted++
		}
		if m.State.OpenPosition != nil {
			open++
		}
	}
	observability.UpdatePopulationHealth(faulted, open)
}

func (l *Lab) log(format string, args ...interface{}) {
	if l.verbose {
		l.logger.Printf("[lab] "+format, args...)
	}
}
