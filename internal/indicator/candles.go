package indicator

import (
	"math"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// HeikinAshi converts candles to Heikin-Ashi bars. Each bar keeps the
// timestamp and volume of the source candle.
type HeikinAshi struct {
	started             bool
	prevOpen, prevClose float64
}

// Update converts the next candle.
func (h *HeikinAshi) Update(c model.Candle) model.Candle {
	closeHA := (c.Open + c.High + c.Low + c.Close) / 4
	openHA := (c.Open + c.Close) / 2
	if h.started {
		openHA = (h.prevOpen + h.prevClose) / 2
	}
	h.started = true
	h.prevOpen, h.prevClose = openHA, closeHA
	return model.Candle{
		Time:   c.Time,
		Open:   openHA,
		High:   math.Max(c.High, math.Max(openHA, closeHA)),
		Low:    math.Min(c.Low, math.Min(openHA, closeHA)),
		Close:  closeHA,
		Volume: c.Volume,
	}
}
