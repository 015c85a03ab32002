package signal

import (
	"math"

	"spread-strategy-lab/internal/domain"
)

// returnWindow keeps a rolling window of the last K percentage returns and
// computes their sample standard deviation.
type returnWindow struct {
	size      int
	returns   []float64
	next      int
	full      bool
	lastPrice float64
	hasPrice  bool
}

func newReturnWindow(size int) *returnWindow {
	return &returnWindow{
		size:    size,
		returns: make([]float64, 0, size),
	}
}

// observe records a new price and, when a previous price exists, appends the
// percentage return to the window.
func (w *returnWindow) observe(price float64) {
	if w.hasPrice && w.lastPrice != 0 {
		r := (price - w.lastPrice) / w.lastPrice * 100
		if len(w.returns) < w.size {
			w.returns = append(w.returns, r)
		} else {
			w.returns[w.next] = r
			w.full = true
		}
		w.next = (w.next + 1) % w.size
		if len(w.returns) == w.size {
			w.full = true
		}
	}
	w.lastPrice = price
	w.hasPrice = true
}

// state returns the window's serializable form. Slices are copied.
func (w *returnWindow) state() domain.ReturnWindowState {
	return domain.ReturnWindowState{
		Returns:   append([]float64(nil), w.returns...),
		Next:      w.next,
		Full:      w.full,
		LastPrice: w.lastPrice,
		HasPrice:  w.hasPrice,
	}
}

// restoreWindow rebuilds a window from its serialized form. The size must
// match the capturing run's configured window.
func restoreWindow(size int, st domain.ReturnWindowState) *returnWindow {
	w := newReturnWindow(size)
	w.returns = append(w.returns, st.Returns...)
	w.next = st.Next
	w.full = st.Full
	w.lastPrice = st.LastPrice
	w.hasPrice = st.HasPrice
	return w
}

// ready reports whether the window holds K returns.
func (w *returnWindow) ready() bool { return w.full }

// volatility returns the sample standard deviation of the window
// (n-1 denominator). Zero when fewer than two returns are held.
func (w *returnWindow) volatility() float64 {
	n := len(w.returns)
	if n < 2 {
		return 0
	}
	sum := 0.0
	for _, r := range w.returns {
		sum += r
	}
	mean := sum / float64(n)

	sumSq := 0.0
	for _, r := range w.returns {
		d := r - mean
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}
