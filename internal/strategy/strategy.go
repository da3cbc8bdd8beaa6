// Package strategy defines the contract between trading strategies and the
// indicator pipeline.
//
// A Strategy declares the indicators it needs into a Registry, then is
// asked once per period, oldest first, for a SignalResult. Each call sees
// a lookback.Snapshot of that period: the candle, every indicator value
// and earlier history, never anything later. The Runner drives both steps.
package strategy

import (
	"context"
	"fmt"
	"sort"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/lookback"
)

// Options carries strategy parameters; the same typed getters as
// indicator options.
type Options = indicator.Options

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// DeclareIndicators registers every indicator the strategy reads.
	// It must not compute anything.
	DeclareIndicators(reg *indicator.Registry, opts Options) error

	// EvaluatePeriod returns the signal for the snapshot's period. It may
	// only read the snapshot.
	EvaluatePeriod(ctx context.Context, snap *lookback.Snapshot, opts Options) (SignalResult, error)
}

// Column describes one debug value for report rendering.
type Column struct {
	Label string
	Value string    // debug key
	Type  string    // "", "oscillator", "cross", ...
	Range []float64 // display range for oscillators
}

// Describer is implemented by strategies that publish default options and
// report columns.
type Describer interface {
	DefaultOptions() Options
	Columns() []Column
}

// ResolveOptions overlays opts on the strategy's defaults.
func ResolveOptions(s Strategy, opts Options) Options {
	if d, ok := s.(Describer); ok {
		return opts.Merge(d.DefaultOptions())
	}
	return opts.Clone()
}

var factories = map[string]func() Strategy{
	"sma_crossover":             func() Strategy { return NewSMACrossover() },
	"example_custom_indicators": func() Strategy { return NewCustomIndicators() },
}

// Lookup returns a fresh instance of the named strategy.
func Lookup(name string) (Strategy, error) {
	f, ok := factories[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q", name)
	}
	return f(), nil
}

// Names lists the strategies Lookup knows, sorted.
func Names() []string {
	names := make([]string, 0, len(factories))
	for n := range factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
