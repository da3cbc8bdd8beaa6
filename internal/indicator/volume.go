package indicator

import (
	"math"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// OBV calculates On Balance Volume. The first period contributes its full
// volume, as TA-Lib does.
type OBV struct {
	count     int
	prevClose float64
	current   float64
}

func (o *OBV) Name() string { return "OBV" }

// Update feeds the next close together with its volume.
func (o *OBV) Update(price, volume float64) {
	o.count++
	switch {
	case o.count == 1:
		o.current = volume
	case price > o.prevClose:
		o.current += volume
	case price < o.prevClose:
		o.current -= volume
	}
	o.prevClose = price
}

func (o *OBV) Value() float64 { return o.current }
func (o *OBV) Ready() bool    { return o.count > 0 }

// VolumeByPrice splits the price range of candles into ranges equal
// buckets and distributes each candle's volume over the buckets its
// low-high span overlaps, proportionally to the overlap. A candle without
// span puts its volume into the bucket containing its price. The returned
// buckets are ordered by price, each with Low < High.
func VolumeByPrice(candles []model.Candle, ranges int) []PriceBucket {
	if len(candles) == 0 || ranges < 1 {
		return nil
	}
	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles[1:] {
		lo = math.Min(lo, c.Low)
		hi = math.Max(hi, c.High)
	}
	if hi <= lo {
		pad := math.Abs(lo) * 0.005
		if pad == 0 {
			pad = 0.5
		}
		lo, hi = lo-pad, hi+pad
	}
	width := (hi - lo) / float64(ranges)

	buckets := make([]PriceBucket, ranges)
	for i := range buckets {
		buckets[i].Low = lo + float64(i)*width
		buckets[i].High = lo + float64(i+1)*width
	}
	buckets[ranges-1].High = hi

	for _, c := range candles {
		if c.Volume == 0 {
			continue
		}
		span := c.High - c.Low
		if span <= 0 {
			idx := int((c.Close - lo) / width)
			if idx >= ranges {
				idx = ranges - 1
			}
			if idx < 0 {
				idx = 0
			}
			buckets[idx].Volume += c.Volume
			continue
		}
		for i := range buckets {
			overlap := math.Min(c.High, buckets[i].High) - math.Max(c.Low, buckets[i].Low)
			if overlap > 0 {
				buckets[i].Volume += c.Volume * overlap / span
			}
		}
	}
	return buckets
}

// buildVolumeByPrice profiles a rolling window of length candles.
func buildVolumeByPrice(o Options) (step, error) {
	length, err := intOpt(o, "length", 1)
	if err != nil {
		return nil, err
	}
	ranges, err := intOpt(o, "ranges", 1)
	if err != nil {
		return nil, err
	}
	win := make([]model.Candle, 0, length)
	return func(c model.Candle, _ float64) Value {
		if len(win) == length {
			copy(win, win[1:])
			win = win[:length-1]
		}
		win = append(win, c)
		if len(win) < length {
			return None()
		}
		return Buckets(VolumeByPrice(win, ranges))
	}, nil
}

// buildVolumeProfile profiles every candle seen so far.
func buildVolumeProfile(o Options) (step, error) {
	ranges, err := intOpt(o, "ranges", 1)
	if err != nil {
		return nil, err
	}
	var seen []model.Candle
	return func(c model.Candle, _ float64) Value {
		seen = append(seen, c)
		return Buckets(VolumeByPrice(seen, ranges))
	}, nil
}
