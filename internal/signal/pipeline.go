// Package signal converts paired two-venue price ticks into normalized
// spread samples tagged with a market regime. Ticks for the same instrument
// are matched across venues by nearest timestamp within a tolerance window;
// unmatched or stale ticks produce no sample and are counted as data gaps,
// never interpolated.
package signal

import (
	"log"

	"spread-strategy-lab/internal/domain"
)

// PipelineConfig holds the pipeline's matching and windowing parameters.
type PipelineConfig struct {
	VenueA        domain.Venue `yaml:"venue_a"`
	VenueB        domain.Venue `yaml:"venue_b"`
	PairTolerance int64        `yaml:"pair_tolerance_ms"` // max timestamp distance for a tick pair
	ReturnWindow  int          `yaml:"return_window"`     // K: rolling returns kept per instrument
	Regime        RegimeConfig `yaml:"regime"`
}

// DefaultPipelineConfig returns the standard pipeline parameters for the
// given venue pair.
func DefaultPipelineConfig(venueA, venueB domain.Venue) PipelineConfig {
	return PipelineConfig{
		VenueA:        venueA,
		VenueB:        venueB,
		PairTolerance: 500,
		ReturnWindow:  20,
		Regime:        DefaultRegimeConfig(),
	}
}

// instrumentState is the per-instrument matching and windowing state.
type instrumentState struct {
	lastA         *domain.Tick
	lastB         *domain.Tick
	lastSampleMs  int64
	window        *returnWindow
	tickTimesMs   []int64 // trailing tick timestamps for density, both venues
}

// Pipeline is the spread/regime signal pipeline. It is driven tick by tick
// and produces an ordered, append-only sequence of spread samples. Feeding
// the same tick sequence into a fresh pipeline reproduces the same samples.
//
// Pipeline is not safe for concurrent use; the caller owns the tick order.
type Pipeline struct {
	cfg            PipelineConfig
	logger         *log.Logger
	instruments    map[string]*instrumentState
	sessionStartMs int64
	started        bool
	gaps           int64
	samples        int64
}

// PipelineOptions configures a new Pipeline.
type PipelineOptions struct {
	Config PipelineConfig
	Logger *log.Logger // optional; log.Default() when nil
}

// NewPipeline creates a signal pipeline.
func NewPipeline(opts PipelineOptions) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	if opts.Config.ReturnWindow <= 0 {
		opts.Config.ReturnWindow = 20
	}
	return &Pipeline{
		cfg:         opts.Config,
		logger:      logger,
		instruments: make(map[string]*instrumentState),
	}
}

// GapCount returns the number of data-gap conditions observed so far.
func (p *Pipeline) GapCount() int64 { return p.gaps }

// SampleCount returns the number of samples produced so far.
func (p *Pipeline) SampleCount() int64 { return p.samples }

// Push processes one tick. It returns a SpreadSample when the tick
// completes a fresh cross-venue pair within tolerance, or nil otherwise.
func (p *Pipeline) Push(tick *domain.Tick) *domain.SpreadSample {
	if tick.Venue != p.cfg.VenueA && tick.Venue != p.cfg.VenueB {
		p.gap("unknown venue %q for %s", tick.Venue, tick.InstrumentID)
		return nil
	}
	if !p.started {
		p.sessionStartMs = tick.TimestampMs
		p.started = true
	}

	st := p.instruments[tick.InstrumentID]
	if st == nil {
		st = &instrumentState{window: newReturnWindow(p.cfg.ReturnWindow)}
		p.instruments[tick.InstrumentID] = st
	}

	st.tickTimesMs = append(st.tickTimesMs, tick.TimestampMs)
	p.pruneDensity(st, tick.TimestampMs)

	var other *domain.Tick
	if tick.Venue == p.cfg.VenueA {
		st.lastA = tick
		other = st.lastB
	} else {
		st.lastB = tick
		other = st.lastA
	}

	if other == nil {
		// No counterpart seen yet; not a gap, just no pair.
		return nil
	}

	dist := tick.TimestampMs - other.TimestampMs
	if dist < 0 {
		dist = -dist
	}
	if dist > p.cfg.PairTolerance {
		p.gap("stale pair for %s: venues %dms apart (tolerance %dms)",
			tick.InstrumentID, dist, p.cfg.PairTolerance)
		return nil
	}

	// One sample per pair: skip if this pair is not newer than the last
	// emitted sample for the instrument.
	pairMs := tick.TimestampMs
	if other.TimestampMs > pairMs {
		pairMs = other.TimestampMs
	}
	if st.lastSampleMs != 0 && pairMs <= st.lastSampleMs {
		return nil
	}
	st.lastSampleMs = pairMs

	var priceA, priceB float64
	if tick.Venue == p.cfg.VenueA {
		priceA, priceB = tick.Price, other.Price
	} else {
		priceA, priceB = other.Price, tick.Price
	}

	mid := (priceA + priceB) / 2
	st.window.observe(mid)

	regime := ClassifyRegime(
		p.cfg.Regime,
		st.window.volatility(),
		st.window.ready(),
		len(st.tickTimesMs),
		pairMs-p.sessionStartMs,
	)

	p.samples++
	return &domain.SpreadSample{
		InstrumentID: tick.InstrumentID,
		TimestampMs:  pairMs,
		PriceA:       priceA,
		PriceB:       priceB,
		SpreadPct:    domain.SpreadPct(priceA, priceB),
		Regime:       regime,
	}
}

// PushBatch processes ticks in order and returns the samples produced.
func (p *Pipeline) PushBatch(ticks []*domain.Tick) []*domain.SpreadSample {
	var samples []*domain.SpreadSample
	for _, t := range ticks {
		if s := p.Push(t); s != nil {
			samples = append(samples, s)
		}
	}
	return samples
}

// State captures the pipeline's full warm state as a deep copy: session
// origin, per-instrument pairing and window state, and the counters. A
// pipeline restored from it continues the session exactly where this one
// left off instead of re-opening it.
func (p *Pipeline) State() *domain.PipelineState {
	st := &domain.PipelineState{
		SessionStartMs: p.sessionStartMs,
		Started:        p.started,
		Gaps:           p.gaps,
		Samples:        p.samples,
		Instruments:    make(map[string]*domain.InstrumentPipelineState, len(p.instruments)),
	}
	for id, ins := range p.instruments {
		st.Instruments[id] = &domain.InstrumentPipelineState{
			LastA:        copyTick(ins.lastA),
			LastB:        copyTick(ins.lastB),
			LastSampleMs: ins.lastSampleMs,
			TickTimesMs:  append([]int64(nil), ins.tickTimesMs...),
			Window:       ins.window.state(),
		}
	}
	return st
}

// RestoreState replaces the pipeline's state with a previously captured
// one. The configured return window size must match the capturing run.
func (p *Pipeline) RestoreState(st *domain.PipelineState) {
	p.sessionStartMs = st.SessionStartMs
	p.started = st.Started
	p.gaps = st.Gaps
	p.samples = st.Samples
	p.instruments = make(map[string]*instrumentState, len(st.Instruments))
	for id, ins := range st.Instruments {
		p.instruments[id] = &instrumentState{
			lastA:        copyTick(ins.LastA),
			lastB:        copyTick(ins.LastB),
			lastSampleMs: ins.LastSampleMs,
			tickTimesMs:  append([]int64(nil), ins.TickTimesMs...),
			window:       restoreWindow(p.cfg.ReturnWindow, ins.Window),
		}
	}
}

func copyTick(t *domain.Tick) *domain.Tick {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// pruneDensity drops tick timestamps that fell out of the density window.
func (p *Pipeline) pruneDensity(st *instrumentState, nowMs int64) {
	cutoff := nowMs - p.cfg.Regime.DensityWindowMs
	i := 0
	for i < len(st.tickTimesMs) && st.tickTimesMs[i] < cutoff {
		i++
	}
	if i > 0 {
		st.tickTimesMs = st.tickTimesMs[i:]
	}
}

func (p *Pipeline) gap(format string, args ...interface{}) {
	p.gaps++
	p.logger.Printf("[signal] data gap: "+format, args...)
}
