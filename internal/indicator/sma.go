package indicator

// SMA calculates Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer for zero-allocation hot path.
type SMA struct {
	period  int
	buf     []float64 // preallocated circular buffer
	idx     int       // current write position
	count   int       // total values received
	sum     float64
	current float64
}

// NewSMA creates a new SMA indicator with the given period.
func NewSMA(period int) *SMA {
	return &SMA{
		period: period,
		buf:    make([]float64, period),
	}
}

func (s *SMA) Name() string { return "SMA" }

func (s *SMA) Update(price float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		s.sum -= s.buf[s.idx]
	}

	s.buf[s.idx] = price
	s.sum += price
	s.idx = (s.idx + 1) % s.period
	s.count++

	if s.count >= s.period {
		s.current = s.sum / float64(s.period)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.count >= s.period }

// Reset clears the SMA state for reuse.
func (s *SMA) Reset() {
	s.idx = 0
	s.count = 0
	s.sum = 0
	s.current = 0
	for i := range s.buf {
		s.buf[i] = 0
	}
}

// WMA calculates Linearly Weighted Moving Average; the newest value has
// weight period, the oldest weight 1.
type WMA struct {
	win     *window
	divisor float64
	current float64
}

// NewWMA creates a new WMA indicator with the given period.
func NewWMA(period int) *WMA {
	return &WMA{
		win:     newWindow(period),
		divisor: float64(period*(period+1)) / 2,
	}
}

func (w *WMA) Name() string { return "WMA" }

func (w *WMA) Update(price float64) {
	w.win.push(price)
	if !w.win.full() {
		return
	}
	sum := 0.0
	for i := 0; i < w.win.len(); i++ {
		// at(0) is the oldest value
		sum += w.win.at(i) * float64(i+1)
	}
	w.current = sum / w.divisor
}

func (w *WMA) Value() float64 { return w.current }
func (w *WMA) Ready() bool    { return w.win.full() }

// TRIMA calculates Triangular Moving Average as an SMA of an SMA, with the
// TA-Lib split of the period between the two passes.
type TRIMA struct {
	inner, outer *SMA
}

// NewTRIMA creates a new TRIMA indicator with the given period.
func NewTRIMA(period int) *TRIMA {
	n1 := (period + 1) / 2
	n2 := n1
	if period%2 == 0 {
		n1 = period / 2
		n2 = n1 + 1
	}
	return &TRIMA{inner: NewSMA(n1), outer: NewSMA(n2)}
}

func (t *TRIMA) Name() string { return "TRIMA" }

func (t *TRIMA) Update(price float64) {
	t.inner.Update(price)
	if t.inner.Ready() {
		t.outer.Update(t.inner.Value())
	}
}

func (t *TRIMA) Value() float64 { return t.outer.Value() }
func (t *TRIMA) Ready() bool    { return t.outer.Ready() }
