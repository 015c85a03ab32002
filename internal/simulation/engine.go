// Package simulation drives one simulated portfolio per agent against the
// shared spread sample stream. Every engine owns its agent's state
// exclusively; the only shared inputs are the read-only sample stream and
// the risk ledger, whose per-agent entries are disjoint.
package simulation

import (
	"errors"
	"fmt"
	"math"

	"spread-strategy-lab/internal/domain"
	"spread-strategy-lab/internal/idhash"
	"spread-strategy-lab/internal/risk"
)

// Engine errors.
var (
	ErrAgentFaulted = errors.New("agent is faulted")
)

// Engine simulates a single agent. Not safe for concurrent use; the batch
// runner gives each engine exactly one goroutine.
type Engine struct {
	genome *domain.Genome
	state  *domain.AgentState
	ledger *risk.Ledger
	venueA domain.Venue
	venueB domain.Venue

	rejections map[risk.Reason]int64
}

// EngineOptions configures a new Engine.
type EngineOptions struct {
	Genome *domain.Genome
	State  *domain.AgentState
	Ledger *risk.Ledger
	VenueA domain.Venue
	VenueB domain.Venue
	Bounds domain.GenomeBounds
}

// NewEngine creates a simulation engine for one agent. The genome is
// validated against bounds; an invalid genome is rejected here so it can
// never drive a simulation.
func NewEngine(opts EngineOptions) (*Engine, error) {
	if err := opts.Genome.Params.Validate(opts.Bounds); err != nil {
		return nil, err
	}
	return &Engine{
		genome:     opts.Genome,
		state:      opts.State,
		ledger:     opts.Ledger,
		venueA:     opts.VenueA,
		venueB:     opts.VenueB,
		rejections: make(map[risk.Reason]int64),
	}, nil
}

// Genome returns the genome driving this engine.
func (e *Engine) Genome() *domain.Genome { return e.genome }

// State returns the agent state owned by this engine.
func (e *Engine) State() *domain.AgentState { return e.state }

// Rejections returns a copy of the per-reason declined trade counters.
func (e *Engine) Rejections() map[risk.Reason]int64 {
	out := make(map[risk.Reason]int64, len(e.rejections))
	for r, n := range e.rejections {
		out[r] = n
	}
	return out
}

// RunBatch processes an ordered sample batch. A step error marks the agent
// faulted and stops its simulation; other agents are unaffected.
func (e *Engine) RunBatch(batch []*domain.SpreadSample) {
	for _, sample := range batch {
		if e.state.Faulted {
			return
		}
		if err := e.Step(sample); err != nil {
			e.state.Faulted = true
			e.state.FaultReason = err.Error()
			return
		}
	}
}

// Step advances the agent by one spread sample. Decisions depend only on
// data observed up to and including this sample.
func (e *Engine) Step(sample *domain.SpreadSample) error {
	if e.state.Faulted {
		return ErrAgentFaulted
	}

	// Kill switch: force-close any open position on this step, at the last
	// observed price, regardless of which instrument the sample is for.
	// Streaks do not survive a halt: after a reset an entry must re-confirm
	// stability from zero.
	if e.ledger.KillSwitchEngaged() {
		if pos := e.state.OpenPosition; pos != nil {
			e.closePosition(pos, pos.CurrentPrice, sample.TimestampMs, domain.ExitReasonKillSwitch)
		}
		for id := range e.state.Stability {
			delete(e.state.Stability, id)
		}
		e.recordEquity(sample.TimestampMs)
		return nil
	}

	// Mark the open position to the entry venue's latest price.
	if pos := e.state.OpenPosition; pos != nil && pos.InstrumentID == sample.InstrumentID {
		if pos.EntryVenue == e.venueA {
			pos.CurrentPrice = sample.PriceA
		} else {
			pos.CurrentPrice = sample.PriceB
		}
		if err := e.checkExit(pos, sample); err != nil {
			return err
		}
	}

	e.updateStability(sample)

	if e.state.OpenPosition == nil {
		if err := e.maybeEnter(sample); err != nil {
			return err
		}
	}

	e.recordEquity(sample.TimestampMs)
	return nil
}

// updateStability increments the instrument's favorable streak, or resets it
// to zero on any unfavorable sample.
func (e *Engine) updateStability(sample *domain.SpreadSample) {
	p := e.genome.Params
	favorable := sample.SpreadPct >= p.MinSpreadThreshold &&
		p.PreferredSession.Admits(sample.Regime)

	if favorable {
		e.state.Stability[sample.InstrumentID]++
	} else {
		e.state.Stability[sample.InstrumentID] = 0
	}
}

// maybeEnter proposes an entry when the stability requirement is met and
// records the outcome. The proposal is sized before the gate sees it; a
// rejected trade is simply not taken.
func (e *Engine) maybeEnter(sample *domain.SpreadSample) error {
	p := e.genome.Params
	if e.state.Stability[sample.InstrumentID] < p.StabilityTicks {
		return nil
	}

	notional := p.PositionSizePct / 100 * e.state.Capital
	if notional <= 0 || math.IsNaN(notional) || math.IsInf(notional, 0) {
		return fmt.Errorf("invalid proposed notional %v (capital %v)", notional, e.state.Capital)
	}

	decision := e.ledger.CheckEntry(risk.Proposal{
		AgentID:  e.genome.ID,
		Notional: notional,
		Capital:  e.state.Capital,
		DailyPnL: e.state.DailyPnL,
	})
	if !decision.Approved {
		e.rejections[decision.Reason]++
		return nil
	}

	entryVenue, entryPrice := e.venueA, sample.PriceA
	if sample.PriceB < sample.PriceA {
		entryVenue, entryPrice = e.venueB, sample.PriceB
	}
	if entryPrice <= 0 {
		return fmt.Errorf("non-positive entry price %v for %s", entryPrice, sample.InstrumentID)
	}

	e.state.OpenPosition = &domain.Position{
		InstrumentID: sample.InstrumentID,
		EntryPriceA:  sample.PriceA,
		EntryPriceB:  sample.PriceB,
		EntryPrice:   entryPrice,
		EntryVenue:   entryVenue,
		Size:         notional / entryPrice,
		Notional:     notional,
		OpenedAtMs:   sample.TimestampMs,
		CurrentPrice: entryPrice,
	}
	e.state.Stability[sample.InstrumentID] = 0
	e.state.DailyTrades++
	e.ledger.RecordEntry(e.genome.ID, notional)
	return nil
}

// checkExit closes the position when an exit rule fires.
func (e *Engine) checkExit(pos *domain.Position, sample *domain.SpreadSample) error {
	p := e.genome.Params
	ret := pos.UnrealizedReturnPct()
	heldMs := sample.TimestampMs - pos.OpenedAtMs

	switch {
	case ret >= p.TakeProfitPct:
		e.closePosition(pos, pos.CurrentPrice, sample.TimestampMs, domain.ExitReasonTakeProfit)
	case ret <= -p.StopLossPct:
		e.closePosition(pos, pos.CurrentPrice, sample.TimestampMs, domain.ExitReasonStopLoss)
	case heldMs >= int64(p.MaxHoldSeconds)*1000:
		e.closePosition(pos, pos.CurrentPrice, sample.TimestampMs, domain.ExitReasonMaxHold)
	}
	return nil
}

// closePosition records an immutable trade and updates capital and daily PnL.
func (e *Engine) closePosition(pos *domain.Position, exitPrice float64, closedAtMs int64, reason string) {
	pnl := (exitPrice - pos.EntryPrice) * pos.Size
	pnlPct := 0.0
	if pos.Notional != 0 {
		pnlPct = pnl / pos.Notional * 100
	}

	trade := &domain.Trade{
		TradeID:      idhash.ComputeTradeID(e.genome.ID, pos.InstrumentID, pos.OpenedAtMs, closedAtMs),
		AgentID:      e.genome.ID,
		InstrumentID: pos.InstrumentID,
		EntryPriceA:  pos.EntryPriceA,
		EntryPriceB:  pos.EntryPriceB,
		EntryPrice:   pos.EntryPrice,
		ExitPrice:    exitPrice,
		Size:         pos.Size,
		OpenedAtMs:   pos.OpenedAtMs,
		ClosedAtMs:   closedAtMs,
		PnL:          pnl,
		PnLPct:       pnlPct,
		ExitReason:   reason,
	}
	e.state.Trades = append(e.state.Trades, trade)
	e.state.Capital += pnl
	e.state.DailyPnL += pnl
	e.state.OpenPosition = nil
	e.ledger.RecordClose(e.genome.ID, pos.Notional, pnl)
}

// recordEquity appends an equity curve point and tracks the running peak.
func (e *Engine) recordEquity(timestampMs int64) {
	eq := e.state.Equity()
	if eq > e.state.PeakEquity {
		e.state.PeakEquity = eq
	}
	e.state.EquityCurve = append(e.state.EquityCurve, domain.EquityPoint{
		TimestampMs: timestampMs,
		Equity:      eq,
	})
}
