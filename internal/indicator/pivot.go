package indicator

import "github.com/egisz/crypto-trading-bot/internal/model"

// PivotPoints checks whether the center of prices is a strict extreme.
// prices must hold exactly left+right+1 values with left, right >= 1;
// otherwise, or when the center is no pivot, the result is empty. A pivot
// high yields {"high": center}, a pivot low {"low": center}.
func PivotPoints(prices []float64, left, right int) map[string]float64 {
	out := map[string]float64{}
	if left < 1 || right < 1 || len(prices) != left+right+1 {
		return out
	}
	center := prices[left]
	high, low := true, true
	for i, p := range prices {
		if i == left {
			continue
		}
		if p >= center {
			high = false
		}
		if p <= center {
			low = false
		}
	}
	if high {
		out["high"] = center
	}
	if low {
		out["low"] = center
	}
	return out
}

// PivotPointsWithWicks detects pivots on the given candle field (close
// when empty) and reports the wick as well: {"high.<field>", "high.high"}
// for a pivot high, {"low.<field>", "low.low"} for a pivot low.
func PivotPointsWithWicks(candles []model.Candle, left, right int, field string) map[string]float64 {
	if field == "" {
		field = model.FieldClose
	}
	prices := make([]float64, len(candles))
	for i := range candles {
		v, err := candles[i].Field(field)
		if err != nil {
			return map[string]float64{}
		}
		prices[i] = v
	}
	pp := PivotPoints(prices, left, right)
	out := make(map[string]float64, 2)
	if v, ok := pp["high"]; ok {
		out["high."+field] = v
		out["high.high"] = candles[left].High
	}
	if v, ok := pp["low"]; ok {
		out["low."+field] = v
		out["low.low"] = candles[left].Low
	}
	return out
}

func pivotOptions(o Options) (left, right int, err error) {
	if left, err = intOpt(o, "left", 1); err != nil {
		return
	}
	right, err = intOpt(o, "right", 1)
	return
}

// buildPivotPoints reports, once left+right+1 values are seen, whether the
// value right periods back is a pivot.
func buildPivotPoints(o Options) (step, error) {
	left, right, err := pivotOptions(o)
	if err != nil {
		return nil, err
	}
	win := newWindow(left + right + 1)
	buf := make([]float64, left+right+1)
	return func(_ model.Candle, x float64) Value {
		win.push(x)
		if !win.full() {
			return None()
		}
		for i := range buf {
			buf[i] = win.at(i)
		}
		return Fields(PivotPoints(buf, left, right))
	}, nil
}

func buildPivotPointsHighLow(o Options) (step, error) {
	left, right, err := pivotOptions(o)
	if err != nil {
		return nil, err
	}
	field := o.String("source", model.FieldClose)
	size := left + right + 1
	win := make([]model.Candle, 0, size)
	return func(c model.Candle, _ float64) Value {
		if len(win) == size {
			copy(win, win[1:])
			win = win[:size-1]
		}
		win = append(win, c)
		if len(win) < size {
			return None()
		}
		return Fields(PivotPointsWithWicks(win, left, right, field))
	}, nil
}
