package indicator

import (
	"math"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// Ichimoku calculates the Ichimoku Cloud lines without forward
// displacement: each value describes the cloud as of its own period.
type Ichimoku struct {
	convHigh, convLow *window
	baseHigh, baseLow *window
	spanHigh, spanLow *window
}

// NewIchimoku creates an Ichimoku Cloud with the given line periods.
func NewIchimoku(conversion, base, span int) *Ichimoku {
	return &Ichimoku{
		convHigh: newWindow(conversion), convLow: newWindow(conversion),
		baseHigh: newWindow(base), baseLow: newWindow(base),
		spanHigh: newWindow(span), spanLow: newWindow(span),
	}
}

func (ic *Ichimoku) Name() string { return "ICHIMOKU" }

// Update feeds the next candle and returns conversion/base/spanA/spanB once
// every window is full.
func (ic *Ichimoku) Update(c model.Candle) Value {
	for _, w := range []*window{ic.convHigh, ic.baseHigh, ic.spanHigh} {
		w.push(c.High)
	}
	for _, w := range []*window{ic.convLow, ic.baseLow, ic.spanLow} {
		w.push(c.Low)
	}
	if !ic.convHigh.full() || !ic.baseHigh.full() || !ic.spanHigh.full() {
		return None()
	}
	conversion := (ic.convHigh.max() + ic.convLow.min()) / 2
	base := (ic.baseHigh.max() + ic.baseLow.min()) / 2
	return Fields(map[string]float64{
		"conversion": conversion,
		"base":       base,
		"spanA":      (conversion + base) / 2,
		"spanB":      (ic.spanHigh.max() + ic.spanLow.min()) / 2,
	})
}

func buildIchimoku(o Options) (step, error) {
	conv, err := intOpt(o, "conversion", 1)
	if err != nil {
		return nil, err
	}
	base, err := intOpt(o, "base", 1)
	if err != nil {
		return nil, err
	}
	span, err := intOpt(o, "span", 1)
	if err != nil {
		return nil, err
	}
	ic := NewIchimoku(conv, base, span)
	return func(c model.Candle, _ float64) Value { return ic.Update(c) }, nil
}

// PSAR calculates Wilder's Parabolic Stop and Reverse. The value reported
// for a candle is the stop in effect during that candle.
type PSAR struct {
	step, max float64

	count             int
	long              bool
	sar, ep, af       float64
	prevHigh, prevLow float64
	current           float64
}

// NewPSAR creates a Parabolic SAR with the acceleration step and maximum.
// A step above the maximum is lowered to it.
func NewPSAR(step, max float64) *PSAR {
	if step > max {
		step = max
	}
	return &PSAR{step: step, max: max}
}

func (p *PSAR) Name() string { return "PSAR" }

func (p *PSAR) Update(c model.Candle) {
	p.count++
	if p.count == 1 {
		p.prevHigh, p.prevLow = c.High, c.Low
		return
	}
	if p.count == 2 {
		// Initial direction from the first directional movement. The stop
		// starts at the first candle's extreme; the extreme point and the
		// first clamp use this candle only.
		up := c.High - p.prevHigh
		down := p.prevLow - c.Low
		p.long = !(down > 0 && down > up)
		p.af = p.step
		if p.long {
			p.sar, p.ep = p.prevLow, c.High
		} else {
			p.sar, p.ep = p.prevHigh, c.Low
		}
		p.prevHigh, p.prevLow = c.High, c.Low
	}

	if p.long {
		if c.Low <= p.sar {
			// Reverse to short
			p.long = false
			p.sar = math.Max(p.ep, math.Max(c.High, p.prevHigh))
			p.current = p.sar
			p.ep, p.af = c.Low, p.step
			p.sar += p.af * (p.ep - p.sar)
			p.sar = math.Max(p.sar, math.Max(c.High, p.prevHigh))
		} else {
			p.current = p.sar
			if c.High > p.ep {
				p.ep = c.High
				p.af = math.Min(p.af+p.step, p.max)
			}
			p.sar += p.af * (p.ep - p.sar)
			p.sar = math.Min(p.sar, math.Min(c.Low, p.prevLow))
		}
	} else {
		if c.High >= p.sar {
			// Reverse to long
			p.long = true
			p.sar = math.Min(p.ep, math.Min(c.Low, p.prevLow))
			p.current = p.sar
			p.ep, p.af = c.High, p.step
			p.sar += p.af * (p.ep - p.sar)
			p.sar = math.Min(p.sar, math.Min(c.Low, p.prevLow))
		} else {
			p.current = p.sar
			if c.Low < p.ep {
				p.ep = c.Low
				p.af = math.Min(p.af+p.step, p.max)
			}
			p.sar += p.af * (p.ep - p.sar)
			p.sar = math.Max(p.sar, math.Max(c.High, p.prevHigh))
		}
	}
	p.prevHigh, p.prevLow = c.High, c.Low
}

func (p *PSAR) Value() float64 { return p.current }
func (p *PSAR) Ready() bool    { return p.count >= 2 }

func buildPSAR(o Options) (step, error) {
	st, err := floatOpt(o, "step")
	if err != nil {
		return nil, err
	}
	mx, err := floatOpt(o, "max")
	if err != nil {
		return nil, err
	}
	ps := NewPSAR(st, mx)
	return func(c model.Candle, _ float64) Value {
		ps.Update(c)
		return readyNum(ps.Ready(), ps.Value())
	}, nil
}

// ZigZag tracks swings larger than a percentage deviation. A swing extreme
// is only known once price has moved away from it by the deviation, so the
// turning point is flagged on the confirming period rather than on the
// extreme itself.
type ZigZag struct {
	deviation float64 // fraction, 0.05 for 5%

	started bool
	trend   int // 1 up, -1 down, 0 undecided
	high    float64
	low     float64
	extreme float64
}

// NewZigZag creates a ZigZag with the deviation in percent.
func NewZigZag(percent float64) *ZigZag {
	return &ZigZag{deviation: percent / 100}
}

func (z *ZigZag) Name() string { return "ZIGZAG" }

// Update feeds the next price and returns price/extreme/deviation/
// turning_point. extreme is the swing extreme confirmed on a turning point,
// otherwise the extreme of the running swing.
func (z *ZigZag) Update(price float64) Value {
	if !z.started {
		z.started = true
		z.high, z.low, z.extreme = price, price, price
		return zigzagFields(price, price, 0, false)
	}

	turning := false
	confirmed := z.extreme
	switch z.trend {
	case 0:
		z.high = math.Max(z.high, price)
		z.low = math.Min(z.low, price)
		switch {
		case price >= z.low*(1+z.deviation) && z.low != price:
			turning, confirmed = true, z.low
			z.trend, z.extreme = 1, price
		case price <= z.high*(1-z.deviation) && z.high != price:
			turning, confirmed = true, z.high
			z.trend, z.extreme = -1, price
		}
	case 1:
		if price > z.extreme {
			z.extreme = price
		} else if price <= z.extreme*(1-z.deviation) {
			turning, confirmed = true, z.extreme
			z.trend, z.extreme = -1, price
		}
	case -1:
		if price < z.extreme {
			z.extreme = price
		} else if price >= z.extreme*(1+z.deviation) {
			turning, confirmed = true, z.extreme
			z.trend, z.extreme = 1, price
		}
	}

	ref := confirmed
	if !turning {
		ref = z.extreme
	}
	dev := 0.0
	if ref != 0 {
		dev = (price - ref) / ref * 100
	}
	return zigzagFields(price, ref, dev, turning)
}

func zigzagFields(price, extreme, deviation float64, turning bool) Value {
	tp := 0.0
	if turning {
		tp = 1
	}
	return Fields(map[string]float64{
		"price":         price,
		"extreme":       extreme,
		"deviation":     deviation,
		"turning_point": tp,
	})
}

func buildZigZag(o Options) (step, error) {
	dev, err := floatOpt(o, "deviation")
	if err != nil {
		return nil, err
	}
	z := NewZigZag(dev)
	return func(_ model.Candle, x float64) Value { return z.Update(x) }, nil
}
