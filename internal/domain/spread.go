package domain

// Regime classifies current market conditions into a closed tag set.
// Classification priority when several tags apply: volatility > liquidity > session.
type Regime string

// Regime tag constants.
const (
	RegimeHighVol       Regime = "HIGH_VOL"
	RegimeLowVol        Regime = "LOW_VOL"
	RegimeThinLiquidity Regime = "THIN_LIQUIDITY"
	RegimeOpening       Regime = "OPENING"
	RegimeMidSession    Regime = "MID_SESSION"
)

// Valid reports whether r is a member of the closed regime set.
func (r Regime) Valid() bool {
	switch r {
	case RegimeHighVol, RegimeLowVol, RegimeThinLiquidity, RegimeOpening, RegimeMidSession:
		return true
	}
	return false
}

// Session is a genome's session preference.
type Session string

// Session preference constants.
const (
	SessionAny        Session = "ANY"
	SessionOpening    Session = "OPENING"
	SessionMidSession Session = "MID_SESSION"
)

// Valid reports whether s is a member of the closed session set.
func (s Session) Valid() bool {
	switch s {
	case SessionAny, SessionOpening, SessionMidSession:
		return true
	}
	return false
}

// Admits reports whether the session preference allows trading under the
// given regime tag. SessionAny admits every regime; a restricted preference
// admits only the regime tag that names its session.
func (s Session) Admits(r Regime) bool {
	switch s {
	case SessionAny:
		return true
	case SessionOpening:
		return r == RegimeOpening
	case SessionMidSession:
		return r == RegimeMidSession
	}
	return false
}

// SpreadSample is one synchronized two-venue observation of an instrument.
// Derived from a matched tick pair; one sample per pair.
type SpreadSample struct {
	InstrumentID string  // instrument identifier
	TimestampMs  int64   // timestamp of the matched pair (venue A tick)
	PriceA       float64 // price on venue A
	PriceB       float64 // price on venue B
	SpreadPct    float64 // |priceA - priceB| / mean(priceA, priceB) * 100
	Regime       Regime  // regime tag at sample time
}

// SpreadPct computes the normalized percentage spread between two prices.
func SpreadPct(priceA, priceB float64) float64 {
	mean := (priceA + priceB) / 2
	if mean == 0 {
		return 0
	}
	diff := priceA - priceB
	if diff < 0 {
		diff = -diff
	}
	return diff / mean * 100
}
