package strategy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/lookback"
)

// SMACrossover implements a simple SMA crossover strategy.
//
// Long signal: fast SMA crosses above slow SMA (golden cross)
// Short signal: fast SMA crosses below slow SMA (death cross)
//
// Optional RSI filter prevents going long when overbought
// or short when oversold.
type SMACrossover struct {
	log *slog.Logger
}

// NewSMACrossover creates a new SMA crossover strategy.
func NewSMACrossover() *SMACrossover {
	return &SMACrossover{log: slog.Default()}
}

func (s *SMACrossover) Name() string { return "sma_crossover" }

func (s *SMACrossover) DefaultOptions() Options {
	return Options{
		"fast_length": 9,
		"slow_length": 21,
		"rsi_enabled": false,
		"rsi_length":  14,
		"overbought":  70.0,
		"oversold":    30.0,
	}
}

func (s *SMACrossover) Columns() []Column {
	return []Column{
		{Label: "SMA fast", Value: "sma_fast"},
		{Label: "SMA slow", Value: "sma_slow"},
		{Label: "RSI", Value: "rsi", Type: "oscillator", Range: []float64{100, 0}},
	}
}

// DeclareIndicators registers both averages and, when enabled, the RSI.
// fast_length must be below slow_length (e.g., 9 and 21).
func (s *SMACrossover) DeclareIndicators(reg *indicator.Registry, opts Options) error {
	fast, slow := opts.Int("fast_length", 9), opts.Int("slow_length", 21)
	if fast >= slow {
		return fmt.Errorf("fast_length %d must be below slow_length %d", fast, slow)
	}
	if err := reg.Add("sma_fast", "sma", indicator.Options{"length": fast}); err != nil {
		return err
	}
	if err := reg.Add("sma_slow", "sma", indicator.Options{"length": slow}); err != nil {
		return err
	}
	if opts.Bool("rsi_enabled", false) {
		return reg.Add("rsi", "rsi", indicator.Options{"length": opts.Int("rsi_length", 14)})
	}
	return nil
}

func (s *SMACrossover) EvaluatePeriod(_ context.Context, snap *lookback.Snapshot, opts Options) (SignalResult, error) {
	b := NewBuilder()
	fast, okFast := snap.Float("sma_fast")
	slow, okSlow := snap.Float("sma_slow")
	if !okFast || !okSlow {
		return b.Build(), nil
	}
	b.AddDebug("sma_fast", fast).AddDebug("sma_slow", slow)

	rsi, okRSI := snap.Float("rsi")
	if okRSI {
		b.AddDebug("rsi", rsi)
	}

	prevFast, ok1 := snap.FloatBack("sma_fast", 1)
	prevSlow, ok2 := snap.FloatBack("sma_slow", 1)
	if !ok1 || !ok2 {
		return b.Build(), nil
	}

	rsiEnabled := opts.Bool("rsi_enabled", false)

	// Golden cross: fast crosses above slow
	if prevFast <= prevSlow && fast > slow {
		if limit := opts.Float("overbought", 70); rsiEnabled && okRSI && rsi > limit {
			s.log.Debug("golden cross filtered by RSI", "strategy", s.Name(), "rsi", rsi, "limit", limit)
			return b.Build(), nil
		}
		return b.SetSignal(SignalLong).Build(), nil
	}

	// Death cross: fast crosses below slow
	if prevFast >= prevSlow && fast < slow {
		if limit := opts.Float("oversold", 30); rsiEnabled && okRSI && rsi < limit {
			s.log.Debug("death cross filtered by RSI", "strategy", s.Name(), "rsi", rsi, "limit", limit)
			return b.Build(), nil
		}
		return b.SetSignal(SignalShort).Build(), nil
	}

	return b.Build(), nil
}
