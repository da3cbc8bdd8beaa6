package indicator

// EMA calculates Exponential Moving Average.
// O(1) per update; no window storage needed.
type EMA struct {
	period     int
	multiplier float64
	current    float64
	count      int
	sum        float64
}

// NewEMA creates a new EMA indicator with the given period.
func NewEMA(period int) *EMA {
	return &EMA{
		period:     period,
		multiplier: 2.0 / float64(period+1),
	}
}

func (e *EMA) Name() string { return "EMA" }

func (e *EMA) Update(price float64) {
	e.count++

	if e.count <= e.period {
		// Accumulate for initial SMA seed
		e.sum += price
		if e.count == e.period {
			e.current = e.sum / float64(e.period)
		}
		return
	}

	// EMA = EMA_prev + (Price - EMA_prev) * multiplier
	e.current = (price-e.current)*e.multiplier + e.current
}

func (e *EMA) Value() float64 { return e.current }
func (e *EMA) Ready() bool    { return e.count >= e.period }

// Reset clears the EMA state for reuse.
func (e *EMA) Reset() {
	e.current = 0
	e.count = 0
	e.sum = 0
}

// DEMA calculates Double Exponential Moving Average: 2*EMA - EMA(EMA).
type DEMA struct {
	e1, e2 *EMA
}

// NewDEMA creates a new DEMA indicator with the given period.
func NewDEMA(period int) *DEMA {
	return &DEMA{e1: NewEMA(period), e2: NewEMA(period)}
}

func (d *DEMA) Name() string { return "DEMA" }

func (d *DEMA) Update(price float64) {
	d.e1.Update(price)
	if d.e1.Ready() {
		d.e2.Update(d.e1.Value())
	}
}

func (d *DEMA) Value() float64 { return 2*d.e1.Value() - d.e2.Value() }
func (d *DEMA) Ready() bool    { return d.e2.Ready() }

// TEMA calculates Triple Exponential Moving Average:
// 3*EMA - 3*EMA(EMA) + EMA(EMA(EMA)).
type TEMA struct {
	e1, e2, e3 *EMA
}

// NewTEMA creates a new TEMA indicator with the given period.
func NewTEMA(period int) *TEMA {
	return &TEMA{e1: NewEMA(period), e2: NewEMA(period), e3: NewEMA(period)}
}

func (t *TEMA) Name() string { return "TEMA" }

func (t *TEMA) Update(price float64) {
	t.e1.Update(price)
	if !t.e1.Ready() {
		return
	}
	t.e2.Update(t.e1.Value())
	if t.e2.Ready() {
		t.e3.Update(t.e2.Value())
	}
}

func (t *TEMA) Value() float64 {
	return 3*t.e1.Value() - 3*t.e2.Value() + t.e3.Value()
}
func (t *TEMA) Ready() bool { return t.e3.Ready() }
