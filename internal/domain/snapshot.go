package domain

// LabSnapshot is a full serialized state of the lab, keyed by generation.
// Restoring a snapshot and replaying the same subsequent tick sequence must
// reproduce identical behavior.
type LabSnapshot struct {
	Generation int                `json:"generation"`
	Population *Population        `json:"population"`
	Ledger     RiskLedgerSnapshot `json:"ledger"`
	Mirror     *AgentState        `json:"mirror,omitempty"` // champion reference portfolio
	Pipeline   *PipelineState     `json:"pipeline,omitempty"`
	EvoSeed    int64              `json:"evo_seed"` // base evolution RNG seed
	Paused     bool               `json:"paused"`
	TakenAtMs  int64              `json:"taken_at_ms"` // timestamp of last processed sample
}

// PipelineState is the signal pipeline's warm state: session origin,
// per-instrument pairing and windowing state, and the gap/sample counters.
// Without it a restored lab treats the next sample as the start of a new
// session and classifies regimes accordingly.
type PipelineState struct {
	SessionStartMs int64                               `json:"session_start_ms"`
	Started        bool                                `json:"started"`
	Gaps           int64                               `json:"gaps"`
	Samples        int64                               `json:"samples"`
	Instruments    map[string]*InstrumentPipelineState `json:"instruments,omitempty"`
}

// InstrumentPipelineState is one instrument's pairing and windowing state.
type InstrumentPipelineState struct {
	LastA        *Tick             `json:"last_a,omitempty"`
	LastB        *Tick             `json:"last_b,omitempty"`
	LastSampleMs int64             `json:"last_sample_ms"`
	TickTimesMs  []int64           `json:"tick_times_ms,omitempty"`
	Window       ReturnWindowState `json:"window"`
}

// ReturnWindowState is the rolling return window in serialized form.
type ReturnWindowState struct {
	Returns   []float64 `json:"returns,omitempty"`
	Next      int       `json:"next"`
	Full      bool      `json:"full"`
	LastPrice float64   `json:"last_price"`
	HasPrice  bool      `json:"has_price"`
}
