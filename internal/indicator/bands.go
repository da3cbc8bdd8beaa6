package indicator

import (
	"context"
	"math"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// BollingerBands calculates an SMA with bands at k population standard
// deviations.
type BollingerBands struct {
	win *window
	k   float64
}

// NewBollingerBands creates Bollinger Bands over period values.
func NewBollingerBands(period int, k float64) *BollingerBands {
	return &BollingerBands{win: newWindow(period), k: k}
}

func (b *BollingerBands) Name() string { return "BB" }

// Update feeds the next price and returns lower/middle/upper/width once
// the window is full.
func (b *BollingerBands) Update(price float64) Value {
	b.win.push(price)
	if !b.win.full() {
		return None()
	}
	n := float64(b.win.len())
	sum := 0.0
	for i := 0; i < b.win.len(); i++ {
		sum += b.win.at(i)
	}
	mean := sum / n
	variance := 0.0
	for i := 0; i < b.win.len(); i++ {
		d := b.win.at(i) - mean
		variance += d * d
	}
	dev := b.k * math.Sqrt(variance/n)
	return bandFields(mean-dev, mean, mean+dev)
}

func bandFields(lower, middle, upper float64) Value {
	width := 0.0
	if middle != 0 {
		width = (upper - lower) / middle
	}
	return Fields(map[string]float64{
		"lower":  lower,
		"middle": middle,
		"upper":  upper,
		"width":  width,
	})
}

// BollingerPercent returns %B: where price sits between the bands, 0 at the
// lower band and 1 at the upper band.
func BollingerPercent(price, upper, lower float64) float64 {
	return (price - lower) / (upper - lower)
}

func checkBBOptions(o Options) (step, error) {
	if _, err := intOpt(o, "length", 1); err != nil {
		return nil, err
	}
	if _, err := floatOpt(o, "stddev"); err != nil {
		return nil, err
	}
	return nil, nil
}

func newBB(o Options) (*BollingerBands, error) {
	p, err := intOpt(o, "length", 1)
	if err != nil {
		return nil, err
	}
	k, err := floatOpt(o, "stddev")
	if err != nil {
		return nil, err
	}
	return NewBollingerBands(p, k), nil
}

func buildBB(o Options) (step, error) {
	bb, err := newBB(o)
	if err != nil {
		return nil, err
	}
	return func(_ model.Candle, x float64) Value { return bb.Update(x) }, nil
}

func buildBBPercent(o Options) (step, error) {
	bb, err := newBB(o)
	if err != nil {
		return nil, err
	}
	return func(_ model.Candle, x float64) Value {
		v := bb.Update(x)
		if !v.IsSet() {
			return None()
		}
		upper, _ := v.Field("upper")
		lower, _ := v.Field("lower")
		if upper == lower {
			return None()
		}
		return Num(BollingerPercent(x, upper, lower))
	}, nil
}

// bbLibrary computes Bollinger Bands through the external library's BBANDS.
func bbLibrary(ctx context.Context, lib Library, in Series, o Options) (Series, error) {
	p, _ := intOpt(o, "length", 1)
	k, _ := floatOpt(o, "stddev")
	outs, err := callLibrary(ctx, lib, "bbands", []Series{in}, []float64{float64(p), k})
	if err != nil {
		return nil, err
	}
	upper, middle, lower := outs[0], outs[1], outs[2]
	res := make(Series, len(in))
	for i := range res {
		u, ok := upper[i].Float()
		if !ok {
			continue
		}
		m, _ := middle[i].Float()
		l, _ := lower[i].Float()
		res[i] = bandFields(l, m, u)
	}
	return res, nil
}
