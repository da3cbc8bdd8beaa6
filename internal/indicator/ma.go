package indicator

import (
	"fmt"
	"math"
	"strings"
)

// KAMA calculates Kaufman Adaptive Moving Average. The smoothing constant
// follows the efficiency ratio over period changes with the 2/30 bounds
// used by TA-Lib.
type KAMA struct {
	period  int
	prices  *window // last period+1 prices
	count   int
	current float64
}

const (
	kamaFast = 2.0 / 3.0
	kamaSlow = 2.0 / 31.0
)

// NewKAMA creates a new KAMA indicator with the given period.
func NewKAMA(period int) *KAMA {
	return &KAMA{period: period, prices: newWindow(period + 1)}
}

func (k *KAMA) Name() string { return "KAMA" }

func (k *KAMA) Update(price float64) {
	k.prices.push(price)
	k.count++
	if !k.prices.full() {
		return
	}
	if k.count == k.period+1 {
		k.current = k.prices.at(k.period - 1)
	}
	change := math.Abs(price - k.prices.at(0))
	volatility := 0.0
	for i := 1; i <= k.period; i++ {
		volatility += math.Abs(k.prices.at(i) - k.prices.at(i-1))
	}
	er := 0.0
	if volatility != 0 {
		er = change / volatility
	}
	sc := er*(kamaFast-kamaSlow) + kamaSlow
	sc *= sc
	k.current += sc * (price - k.current)
}

func (k *KAMA) Value() float64 { return k.current }
func (k *KAMA) Ready() bool    { return k.count > k.period }

// HMA calculates Hull Moving Average:
// WMA(2*WMA(period/2) - WMA(period), sqrt(period)).
type HMA struct {
	half, full, smooth *WMA
}

// NewHMA creates a new HMA indicator with the given period.
func NewHMA(period int) *HMA {
	half := period / 2
	if half < 1 {
		half = 1
	}
	sq := int(math.Sqrt(float64(period)))
	if sq < 1 {
		sq = 1
	}
	return &HMA{half: NewWMA(half), full: NewWMA(period), smooth: NewWMA(sq)}
}

func (h *HMA) Name() string { return "HMA" }

func (h *HMA) Update(price float64) {
	h.half.Update(price)
	h.full.Update(price)
	if h.half.Ready() && h.full.Ready() {
		h.smooth.Update(2*h.half.Value() - h.full.Value())
	}
}

func (h *HMA) Value() float64 { return h.smooth.Value() }
func (h *HMA) Ready() bool    { return h.smooth.Ready() }

// VWMA calculates Volume Weighted Moving Average over a rolling window.
// A window without volume falls back to the plain average.
type VWMA struct {
	prices, volumes *window
	current         float64
}

// NewVWMA creates a new VWMA indicator with the given period.
func NewVWMA(period int) *VWMA {
	return &VWMA{prices: newWindow(period), volumes: newWindow(period)}
}

func (v *VWMA) Name() string { return "VWMA" }

// Update feeds the next price together with its volume.
func (v *VWMA) Update(price, volume float64) {
	v.prices.push(price)
	v.volumes.push(volume)
	if !v.prices.full() {
		return
	}
	var pv, vol, sum float64
	for i := 0; i < v.prices.len(); i++ {
		pv += v.prices.at(i) * v.volumes.at(i)
		vol += v.volumes.at(i)
		sum += v.prices.at(i)
	}
	if vol == 0 {
		v.current = sum / float64(v.prices.len())
		return
	}
	v.current = pv / vol
}

func (v *VWMA) Value() float64 { return v.current }
func (v *VWMA) Ready() bool    { return v.prices.full() }

// NewMovingAverage builds a moving average by type name
// (SMA, EMA, WMA, DEMA, TEMA, TRIMA, KAMA, SMMA, HMA; case-insensitive).
func NewMovingAverage(kind string, period int) (Indicator, error) {
	if period < 1 {
		return nil, fmt.Errorf("moving average period must be >= 1, got %d", period)
	}
	switch strings.ToUpper(kind) {
	case "SMA":
		return NewSMA(period), nil
	case "EMA":
		return NewEMA(period), nil
	case "WMA":
		return NewWMA(period), nil
	case "DEMA":
		return NewDEMA(period), nil
	case "TEMA":
		return NewTEMA(period), nil
	case "TRIMA":
		return NewTRIMA(period), nil
	case "KAMA":
		return NewKAMA(period), nil
	case "SMMA":
		return NewSMMA(period), nil
	case "HMA":
		return NewHMA(period), nil
	}
	return nil, fmt.Errorf("unknown moving average type %q", kind)
}
