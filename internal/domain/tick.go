package domain

// Venue identifies the exchange a tick was observed on.
type Venue string

// Tick is a single observed price for an instrument on one venue.
// Ticks are produced externally and never modified by the core.
type Tick struct {
	InstrumentID string  `json:"instrument_id"`
	Venue        Venue   `json:"venue"`
	Price        float64 `json:"price"`
	TimestampMs  int64   `json:"timestamp_ms"` // Unix milliseconds, monotonic per venue
}
