package simulation

import (
	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/risk"
)

// MirrorAgentID is the fixed agent ID of the champion reference portfolio.
const MirrorAgentID = "reference"

// Mirror replays the current champion's decision logic into a long-lived
// reference portfolio. The portfolio persists across generations and is
// isolated from the experimental population: independent capital and trade
// log, never feeding back into the champion's own state. The mirror shares
// the risk ledger only for kill-switch visibility; its per-agent ledger
// entry is its own.
type Mirror struct {
	engine     *Engine
	championID string

	ledger *risk.Ledger
	venueA domain.Venue
	venueB domain.Venue
	bounds domain.GenomeBounds
}

// MirrorOptions configures a new Mirror.
type MirrorOptions struct {
	InitialCapital float64
	Ledger         *risk.Ledger
	VenueA         domain.Venue
	VenueB         domain.Venue
	Bounds         domain.GenomeBounds
}

// NewMirror creates an empty mirror. It stays idle until the first champion
// is designated.
func NewMirror(opts MirrorOptions) *Mirror {
	return &Mirror{
		ledger: opts.Ledger,
		venueA: opts.VenueA,
		venueB: opts.VenueB,
		bounds: opts.Bounds,
	}
}

// ChampionID returns the champion currently mirrored, or empty.
func (m *Mirror) ChampionID() string { return m.championID }

// State returns the reference portfolio state, or nil before the first
// champion designation.
func (m *Mirror) State() *domain.AgentState {
	if m.engine == nil {
		return nil
	}
	return m.engine.State()
}

// SetChampion switches the mirrored genome. The reference portfolio's
// capital, trade log, and equity curve carry over; only the decision logic
// changes. The champion's genome is copied by reference but never written.
func (m *Mirror) SetChampion(champion *domain.Genome, initialCapital float64) error {
	if champion == nil || champion.ID == m.championID {
		return nil
	}

	var state *domain.AgentState
	if m.engine != nil {
		state = m.engine.State()
		// Flat out any stale stability streaks; the new genome starts its
		// own confirmation from scratch.
		state.Stability = make(map[string]int)
	} else {
		state = domain.NewAgentState(MirrorAgentID, initialCapital)
	}

	mirrored := *champion
	mirrored.ID = MirrorAgentID

	engine, err := NewEngine(EngineOptions{
		Genome: &mirrored,
		State:  state,
		Ledger: m.ledger,
		VenueA: m.venueA,
		VenueB: m.venueB,
		Bounds: m.bounds,
	})
	if err != nil {
		return err
	}

	m.engine = engine
	m.championID = champion.ID
	return nil
}

// RunBatch advances the reference portfolio. No-op before the first
// champion designation.
func (m *Mirror) RunBatch(batch []*domain.SpreadSample) {
	if m.engine == nil {
		return
	}
	m.engine.RunBatch(batch)
}

// Restore reinstates a persisted reference portfolio state.
func (m *Mirror) Restore(state *domain.AgentState, champion *domain.Genome) error {
	if state == nil || champion == nil {
		return nil
	}
	mirrored := *champion
	mirrored.ID = MirrorAgentID
	engine, err := NewEngine(EngineOptions{
		Genome: &mirrored,
		State:  state,
		Ledger: m.ledger,
		VenueA: m.venueA,
		VenueB: m.venueB,
		Bounds: m.bounds,
	})
	if err != nil {
		return err
	}
	m.engine = engine
	m.championID = champion.ID
	return nil
}
