package indicator

import (
	"math"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// ROC calculates Rate of Change in percent over period values.
type ROC struct {
	prices  *window
	current float64
}

// NewROC creates a new ROC indicator with the given period.
func NewROC(period int) *ROC {
	return &ROC{prices: newWindow(period + 1)}
}

func (r *ROC) Name() string { return "ROC" }

func (r *ROC) Update(price float64) {
	r.prices.push(price)
	if !r.prices.full() {
		return
	}
	prev := r.prices.at(0)
	if prev == 0 {
		r.current = 0
		return
	}
	r.current = (price - prev) / prev * 100
}

func (r *ROC) Value() float64 { return r.current }
func (r *ROC) Ready() bool    { return r.prices.full() }

// MFI calculates Money Flow Index over period typical-price changes.
type MFI struct {
	pos, neg *window
	prevTP   float64
	count    int
	current  float64
}

// NewMFI creates a new MFI indicator with the given period.
func NewMFI(period int) *MFI {
	return &MFI{pos: newWindow(period), neg: newWindow(period)}
}

func (m *MFI) Name() string { return "MFI" }

func (m *MFI) Update(c model.Candle) {
	tp := (c.High + c.Low + c.Close) / 3
	m.count++
	if m.count == 1 {
		m.prevTP = tp
		return
	}
	flow := tp * c.Volume
	switch {
	case tp > m.prevTP:
		m.pos.push(flow)
		m.neg.push(0)
	case tp < m.prevTP:
		m.pos.push(0)
		m.neg.push(flow)
	default:
		m.pos.push(0)
		m.neg.push(0)
	}
	m.prevTP = tp
	if !m.pos.full() {
		return
	}
	var pos, neg float64
	for i := 0; i < m.pos.len(); i++ {
		pos += m.pos.at(i)
		neg += m.neg.at(i)
	}
	m.current = rsiValue(pos, neg)
}

func (m *MFI) Value() float64 { return m.current }
func (m *MFI) Ready() bool    { return m.pos.full() }

// trueRange returns the true range of c against the previous close.
func trueRange(c model.Candle, prevClose float64) float64 {
	tr := c.High - c.Low
	if d := math.Abs(c.High - prevClose); d > tr {
		tr = d
	}
	if d := math.Abs(c.Low - prevClose); d > tr {
		tr = d
	}
	return tr
}

// ATR calculates Average True Range with Wilder smoothing. The first value
// is the plain average of the first period true ranges.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a new ATR indicator with the given period.
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(c model.Candle) {
	a.count++
	if a.count == 1 {
		a.prevClose = c.Close
		return
	}
	tr := trueRange(c, a.prevClose)
	a.prevClose = c.Close

	n := a.count - 1 // true ranges seen
	p := float64(a.period)
	switch {
	case n < a.period:
		a.sum += tr
	case n == a.period:
		a.sum += tr
		a.current = a.sum / p
	default:
		a.current = (a.current*(p-1) + tr) / p
	}
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count > a.period }

// ADX calculates Average Directional Index with Wilder smoothing, laid out
// like TA-Lib: the first value appears after 2*period-1 candles.
type ADX struct {
	period                 int
	count                  int
	prev                   model.Candle
	trSum, plusSum, minSum float64
	dxSum                  float64
	current                float64
}

// NewADX creates a new ADX indicator with the given period.
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return "ADX" }

func (a *ADX) Update(c model.Candle) {
	a.count++
	if a.count == 1 {
		a.prev = c
		return
	}
	tr := trueRange(c, a.prev.Close)
	up := c.High - a.prev.High
	down := a.prev.Low - c.Low
	plusDM, minusDM := 0.0, 0.0
	if up > down && up > 0 {
		plusDM = up
	}
	if down > up && down > 0 {
		minusDM = down
	}
	a.prev = c

	n := a.count - 1 // directional movements seen
	p := float64(a.period)
	if n < a.period {
		a.trSum += tr
		a.plusSum += plusDM
		a.minSum += minusDM
		return
	}
	a.trSum = a.trSum - a.trSum/p + tr
	a.plusSum = a.plusSum - a.plusSum/p + plusDM
	a.minSum = a.minSum - a.minSum/p + minusDM

	dx := 0.0
	if a.trSum != 0 {
		plusDI := 100 * a.plusSum / a.trSum
		minusDI := 100 * a.minSum / a.trSum
		if sum := plusDI + minusDI; sum != 0 {
			dx = 100 * math.Abs(plusDI-minusDI) / sum
		}
	}

	switch k := n - a.period + 1; { // dx values seen
	case k < a.period:
		a.dxSum += dx
	case k == a.period:
		a.dxSum += dx
		a.current = a.dxSum / p
	default:
		a.current = (a.current*(p-1) + dx) / p
	}
}

func (a *ADX) Value() float64 { return a.current }
func (a *ADX) Ready() bool    { return a.count >= 2*a.period }

// buildAO builds the Awesome Oscillator: SMA(fast) - SMA(slow) of hl2.
func buildAO(o Options) (step, error) {
	fast, err := intOpt(o, "fast", 1)
	if err != nil {
		return nil, err
	}
	slow, err := intOpt(o, "slow", fast+1)
	if err != nil {
		return nil, err
	}
	f, s := NewSMA(fast), NewSMA(slow)
	return func(c model.Candle, _ float64) Value {
		hl2 := (c.High + c.Low) / 2
		f.Update(hl2)
		s.Update(hl2)
		return readyNum(s.Ready(), f.Value()-s.Value())
	}, nil
}

// stochastic computes %K over a rolling high/low range and smooths it
// into slow %K and %D.
type stochastic struct {
	highs, lows *window
	slowK, d    *SMA
}

func newStochastic(length, k, d int) *stochastic {
	return &stochastic{
		highs: newWindow(length),
		lows:  newWindow(length),
		slowK: NewSMA(k),
		d:     NewSMA(d),
	}
}

func (s *stochastic) update(high, low, close float64) Value {
	s.highs.push(high)
	s.lows.push(low)
	if !s.highs.full() {
		return None()
	}
	hh, ll := s.highs.max(), s.lows.min()
	fastK := 0.0
	if hh != ll {
		fastK = 100 * (close - ll) / (hh - ll)
	}
	s.slowK.Update(fastK)
	if !s.slowK.Ready() {
		return None()
	}
	s.d.Update(s.slowK.Value())
	if !s.d.Ready() {
		return None()
	}
	return Fields(map[string]float64{
		"stoch_k": s.slowK.Value(),
		"stoch_d": s.d.Value(),
	})
}

func stochOptions(o Options, lengthKey string) (length, k, d int, err error) {
	if length, err = intOpt(o, lengthKey, 1); err != nil {
		return
	}
	if k, err = intOpt(o, "k", 1); err != nil {
		return
	}
	d, err = intOpt(o, "d", 1)
	return
}

func buildStoch(o Options) (step, error) {
	length, k, d, err := stochOptions(o, "length")
	if err != nil {
		return nil, err
	}
	st := newStochastic(length, k, d)
	return func(c model.Candle, _ float64) Value {
		return st.update(c.High, c.Low, c.Close)
	}, nil
}

// buildStochRSI applies the stochastic formula to RSI values.
func buildStochRSI(o Options) (step, error) {
	rsiLen, err := intOpt(o, "rsi_length", 1)
	if err != nil {
		return nil, err
	}
	length, k, d, err := stochOptions(o, "stoch_length")
	if err != nil {
		return nil, err
	}
	rsi := NewRSI(rsiLen)
	st := newStochastic(length, k, d)
	return func(_ model.Candle, x float64) Value {
		rsi.Update(x)
		if !rsi.Ready() {
			return None()
		}
		v := rsi.Value()
		return st.update(v, v, v)
	}, nil
}
