package indicator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// Observer is notified after every spec computation, successful or not.
type Observer interface {
	SpecComputed(provider string, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) SpecComputed(string, time.Duration, error) {}

// Engine computes spec lists over candle series. It keeps no state between
// calls, so one Engine may serve concurrent runs.
type Engine struct {
	lib Library
	log *slog.Logger
	obs Observer
}

// NewEngine creates an engine. Without options it uses the TA-Lib port,
// slog.Default and no observer.
func NewEngine(opts ...Option) *Engine {
	s := newSettings(opts)
	return &Engine{lib: s.lib, log: s.log, obs: s.obs}
}

// Library returns the external library used for library providers.
func (e *Engine) Library() Library { return e.lib }

// Compute runs every spec once, in declaration order, over candles.
// The spec list is validated first, so a configuration error is reported
// before any numeric work. The first provider failure aborts the run; no
// partial result is returned. Cancellation is checked between specs.
func (e *Engine) Compute(ctx context.Context, candles *model.Series, specs []Spec) (*Result, error) {
	if candles == nil {
		candles = model.MustSeries(nil)
	}
	if err := Validate(specs, e.lib); err != nil {
		return nil, err
	}

	cs := candles.Candles()
	n := len(cs)
	res := &Result{
		candles: candles,
		keys:    make([]string, 0, len(specs)),
		series:  make(map[string]Series, len(specs)),
	}

	for _, s := range specs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		out, err := e.computeSpec(ctx, s, cs, res.series)
		if err == nil {
			err = checkOutputs(s, out, n)
		}
		e.obs.SpecComputed(s.Provider.kind.String(), time.Since(start), err)
		if err != nil {
			e.log.Error("indicator computation failed",
				"key", s.Key,
				"provider", s.Provider.kind.String(),
				"error", err,
			)
			return nil, err
		}
		for _, k := range s.outputKeys() {
			res.keys = append(res.keys, k)
			res.series[k] = out[k]
		}
		e.log.Debug("indicator computed",
			"key", s.Key,
			"provider", s.Provider.kind.String(),
			"periods", n,
			"elapsed", time.Since(start),
		)
	}
	return res, nil
}

// computeSpec dispatches one spec to its provider. Panics are reported as
// ComputationError.
func (e *Engine) computeSpec(ctx context.Context, s Spec, candles []model.Candle, done map[string]Series) (out map[string]Series, err error) {
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = &ComputationError{Key: s.Key, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	opts := s.options()
	var series Series
	switch s.Provider.kind {
	case ProviderBuiltin:
		series, err = runBuiltin(ctx, e.lib, s, opts, candles, done)
	case ProviderLibrary:
		series, err = runLibrary(ctx, e.lib, s, opts, candles, done)
	case ProviderCustom:
		return runCustom(ctx, s, opts, candles, done)
	}
	if err != nil {
		return nil, &ComputationError{Key: s.Key, Err: err}
	}
	return map[string]Series{s.Key: series}, nil
}

func runCustom(ctx context.Context, s Spec, opts Options, candles []model.Candle, done map[string]Series) (map[string]Series, error) {
	values, err := resolveValues(s, opts, candles, done)
	if err != nil {
		return nil, &ComputationError{Key: s.Key, Err: err}
	}
	src := Source{
		Candles: append([]model.Candle(nil), candles...),
		Values:  values,
	}
	got, err := s.Provider.fn(ctx, src, opts)
	if err != nil {
		return nil, &ComputationError{Key: s.Key, Err: err}
	}
	out := make(map[string]Series, len(got))
	for _, k := range s.outputKeys() {
		series, ok := got[k]
		if !ok {
			return nil, &ComputationError{Key: s.Key, Err: fmt.Errorf("missing output %q", k)}
		}
		out[k] = append(Series(nil), series...)
	}
	return out, nil
}

// checkOutputs enforces the length invariant on every declared output.
func checkOutputs(s Spec, out map[string]Series, n int) error {
	for _, k := range s.outputKeys() {
		if got := len(out[k]); got != n {
			return &ComputationError{Key: s.Key, Err: fmt.Errorf("output %q has length %d, want %d", k, got, n)}
		}
	}
	return nil
}
