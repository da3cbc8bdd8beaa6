package indicator

import (
	"fmt"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// MACD calculates Moving Average Convergence Divergence with TA-Lib's
// seeding. Both averages are SMA-seeded and start together. The line is
// counted as 0 until one period before the combined warm-up
// (slow-1 + signal-1), and the signal EMA is seeded from that zero-padded
// line, so the first output appears at period slow+signal-2 (0-based).
type MACD struct {
	fast, slow, signal *EMA
	lookback           int
	count              int
}

// NewMACD creates a MACD with the given fast, slow and signal periods.
// Periods given in the wrong order are swapped.
func NewMACD(fast, slow, signal int) *MACD {
	if slow < fast {
		fast, slow = slow, fast
	}
	return &MACD{
		fast:     NewEMA(fast),
		slow:     NewEMA(slow),
		signal:   NewEMA(signal),
		lookback: slow - 1 + signal - 1,
	}
}

func (m *MACD) Name() string { return "MACD" }

// Update feeds the next price and returns macd/signal/histogram once the
// signal line is ready.
func (m *MACD) Update(price float64) Value {
	idx := m.count
	m.count++
	m.fast.Update(price)
	m.slow.Update(price)

	var line float64
	if idx >= m.lookback-1 {
		line = readyOrZero(m.fast) - readyOrZero(m.slow)
	}
	m.signal.Update(line)
	if idx < m.lookback {
		return None()
	}
	sig := m.signal.Value()
	return Fields(map[string]float64{
		"macd":      line,
		"signal":    sig,
		"histogram": line - sig,
	})
}

func readyOrZero(ind Indicator) float64 {
	if !ind.Ready() {
		return 0
	}
	return ind.Value()
}

func macdFields(line float64, signal Indicator) Value {
	signal.Update(line)
	if !signal.Ready() {
		return None()
	}
	return Fields(map[string]float64{
		"macd":      line,
		"signal":    signal.Value(),
		"histogram": line - signal.Value(),
	})
}

func buildMACD(o Options) (step, error) {
	fast, err := intOpt(o, "fast_length", 1)
	if err != nil {
		return nil, err
	}
	slow, err := intOpt(o, "slow_length", fast+1)
	if err != nil {
		return nil, err
	}
	signal, err := intOpt(o, "signal_length", 1)
	if err != nil {
		return nil, err
	}
	m := NewMACD(fast, slow, signal)
	return func(_ model.Candle, x float64) Value { return m.Update(x) }, nil
}

// buildMACDExt builds a MACD whose three averages each take their type from
// fast_ma_type, slow_ma_type and signal_ma_type, falling back to
// default_ma_type.
func buildMACDExt(o Options) (step, error) {
	def := o.String("default_ma_type", "EMA")
	ma := func(periodKey, typeKey string) (Indicator, error) {
		p, err := intOpt(o, periodKey, 1)
		if err != nil {
			return nil, err
		}
		ind, err := NewMovingAverage(o.String(typeKey, def), p)
		if err != nil {
			return nil, fmt.Errorf("option %q: %w", typeKey, err)
		}
		return ind, nil
	}
	fast, err := ma("fast_period", "fast_ma_type")
	if err != nil {
		return nil, err
	}
	slow, err := ma("slow_period", "slow_ma_type")
	if err != nil {
		return nil, err
	}
	signal, err := ma("signal_period", "signal_ma_type")
	if err != nil {
		return nil, err
	}
	return func(_ model.Candle, x float64) Value {
		fast.Update(x)
		slow.Update(x)
		if !fast.Ready() || !slow.Ready() {
			return None()
		}
		return macdFields(fast.Value()-slow.Value(), signal)
	}, nil
}
