package strategy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/logger"
	"github.com/egisz/crypto-trading-bot/internal/lookback"
	"github.com/egisz/crypto-trading-bot/internal/model"
)

// Mode selects how indicators are computed for a run.
type Mode uint8

const (
	// ModeBatch computes every indicator once over the whole series and
	// evaluates each period on a view ending at that period.
	ModeBatch Mode = iota
	// ModeStreaming recomputes every indicator on the candles up to and
	// including each period, as a live feed would.
	ModeStreaming
)

func (m Mode) String() string {
	if m == ModeStreaming {
		return "streaming"
	}
	return "batch"
}

// ParseMode converts "batch" (or "") and "streaming".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "batch":
		return ModeBatch, nil
	case "streaming":
		return ModeStreaming, nil
	}
	return ModeBatch, fmt.Errorf("unknown run mode %q", s)
}

// PeriodError reports a strategy failure while evaluating one period.
type PeriodError struct {
	Strategy string
	Period   int
	Time     int64
	Err      error
}

func (e *PeriodError) Error() string {
	return fmt.Sprintf("strategy %s: period %d (time %d): %v", e.Strategy, e.Period, e.Time, e.Err)
}

func (e *PeriodError) Unwrap() error { return e.Err }

// Observer is notified after every period evaluation.
type Observer interface {
	PeriodEvaluated(strategy string, sig Signal, elapsed time.Duration, err error)
}

type nopObserver struct{}

func (nopObserver) PeriodEvaluated(string, Signal, time.Duration, error) {}

// PeriodResult is the outcome of one evaluated period.
type PeriodResult struct {
	Period int
	Candle model.Candle
	Result SignalResult
}

// Report is the outcome of one strategy run.
type Report struct {
	RunID    string
	Strategy string
	Mode     Mode
	Options  Options
	Columns  []Column
	Periods  []PeriodResult
}

// Signals returns the periods that emitted a signal.
func (r *Report) Signals() []PeriodResult {
	var out []PeriodResult
	for _, p := range r.Periods {
		if p.Result.HasSignal() {
			out = append(out, p)
		}
	}
	return out
}

// Counts tallies emitted signals by kind.
func (r *Report) Counts() map[Signal]int {
	out := make(map[Signal]int)
	for _, p := range r.Periods {
		if p.Result.HasSignal() {
			out[p.Result.Signal()]++
		}
	}
	return out
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithLogger sets the runner's logger. A nil logger keeps the default.
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver sets the hook notified after every period.
func WithObserver(o Observer) RunnerOption {
	return func(r *Runner) {
		if o != nil {
			r.obs = o
		}
	}
}

// Runner drives strategies over candle series. It keeps no per-run state,
// so one Runner may serve concurrent runs.
type Runner struct {
	engine *indicator.Engine
	log    *slog.Logger
	obs    Observer
}

// NewRunner creates a runner computing indicators with engine
// (indicator.NewEngine() when nil).
func NewRunner(engine *indicator.Engine, opts ...RunnerOption) *Runner {
	if engine == nil {
		engine = indicator.NewEngine()
	}
	r := &Runner{engine: engine, log: slog.Default(), obs: nopObserver{}}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Declare resolves the strategy options and collects its indicator specs.
func (r *Runner) Declare(s Strategy, opts Options) ([]indicator.Spec, Options, error) {
	opts = ResolveOptions(s, opts)
	reg := indicator.NewRegistry(indicator.WithLibrary(r.engine.Library()))
	if err := s.DeclareIndicators(reg, opts); err != nil {
		return nil, nil, fmt.Errorf("strategy %s: declare indicators: %w", s.Name(), err)
	}
	return reg.All(), opts, nil
}

// Run evaluates s on every period of candles, oldest first. The first
// indicator or strategy error aborts the run.
func (r *Runner) Run(ctx context.Context, s Strategy, opts Options, candles *model.Series, mode Mode) (*Report, error) {
	specs, opts, err := r.Declare(s, opts)
	if err != nil {
		return nil, err
	}
	rep := &Report{
		RunID:    uuid.NewString(),
		Strategy: s.Name(),
		Mode:     mode,
		Options:  opts,
		Periods:  make([]PeriodResult, 0, candles.Len()),
	}
	if d, ok := s.(Describer); ok {
		rep.Columns = d.Columns()
	}
	ctx = logger.WithRunID(ctx, rep.RunID)
	log := r.log.With(logger.LogWithRun(ctx)...).With("strategy", rep.Strategy)
	log.Info("strategy run started", "mode", mode.String(), "periods", candles.Len(), "indicators", len(specs))

	start := time.Now()
	switch mode {
	case ModeBatch:
		err = r.runBatch(ctx, s, opts, candles, specs, rep)
	case ModeStreaming:
		err = r.runStreaming(ctx, s, opts, candles, specs, rep)
	default:
		err = fmt.Errorf("unknown run mode %d", mode)
	}
	if err != nil {
		log.Error("strategy run failed", "error", err)
		return nil, err
	}
	log.Info("strategy run finished",
		"signals", len(rep.Signals()),
		"elapsed", time.Since(start),
	)
	return rep, nil
}

func (r *Runner) runBatch(ctx context.Context, s Strategy, opts Options, candles *model.Series, specs []indicator.Spec, rep *Report) error {
	res, err := r.engine.Compute(ctx, candles, specs)
	if err != nil {
		return err
	}
	view := lookback.NewView(res)
	for i := 0; i < view.Len(); i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		v, err := view.Until(i)
		if err != nil {
			return err
		}
		pr, err := r.evaluate(ctx, s, opts, v)
		if err != nil {
			return err
		}
		rep.Periods = append(rep.Periods, pr)
	}
	return nil
}

func (r *Runner) runStreaming(ctx context.Context, s Strategy, opts Options, candles *model.Series, specs []indicator.Spec, rep *Report) error {
	for i := 0; i < candles.Len(); i++ {
		res, err := r.engine.Compute(ctx, candles.Slice(i+1), specs)
		if err != nil {
			return err
		}
		pr, err := r.evaluate(ctx, s, opts, lookback.NewView(res))
		if err != nil {
			return err
		}
		rep.Periods = append(rep.Periods, pr)
	}
	return nil
}

// evaluate asks the strategy about the most recent period of v. Panics
// are reported as PeriodError.
func (r *Runner) evaluate(ctx context.Context, s Strategy, opts Options, v *lookback.View) (pr PeriodResult, err error) {
	snap, err := v.SnapshotAt(0)
	if err != nil {
		return PeriodResult{}, err
	}
	c := snap.Candle()
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
		if err != nil {
			err = &PeriodError{Strategy: s.Name(), Period: snap.Period(), Time: c.Time, Err: err}
		}
		r.obs.PeriodEvaluated(s.Name(), pr.Result.Signal(), time.Since(start), err)
	}()

	res, err := s.EvaluatePeriod(ctx, snap, opts)
	if err != nil {
		return PeriodResult{}, err
	}
	if res.HasSignal() {
		r.log.Debug("signal",
			append(logger.LogWithRun(ctx),
				"strategy", s.Name(),
				"period", snap.Period(),
				"time", c.Time,
				"signal", res.Signal().String(),
			)...,
		)
	}
	return PeriodResult{Period: snap.Period(), Candle: c, Result: res}, nil
}

// Follow evaluates s on a live candle feed. Each received candle is
// appended to the history (trimmed to maxHistory when > 0), indicators are
// recomputed and the period's result is sent on out. Periods count from
// the start of the retained history. Candles that do not
// advance time are dropped. Follow blocks until ctx is cancelled or
// candleCh is closed; it never closes out.
func (r *Runner) Follow(ctx context.Context, s Strategy, opts Options, candleCh <-chan model.Candle, out chan<- PeriodResult, maxHistory int) error {
	specs, opts, err := r.Declare(s, opts)
	if err != nil {
		return err
	}
	var history []model.Candle
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-candleCh:
			if !ok {
				return nil
			}
			if n := len(history); n > 0 && c.Time <= history[n-1].Time {
				r.log.Warn("dropping out-of-order candle", "strategy", s.Name(), "time", c.Time)
				continue
			}
			history = append(history, c)
			if maxHistory > 0 && len(history) > maxHistory {
				history = append(history[:0:0], history[len(history)-maxHistory:]...)
			}
			series, err := model.NewSeries(history)
			if err != nil {
				return err
			}
			res, err := r.engine.Compute(ctx, series, specs)
			if err != nil {
				return fmt.Errorf("strategy %s: %w", s.Name(), err)
			}
			pr, err := r.evaluate(ctx, s, opts, lookback.NewView(res))
			if err != nil {
				return err
			}
			select {
			case out <- pr:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
