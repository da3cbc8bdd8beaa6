package indicator

import (
	"context"
	"fmt"
	"sort"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// input selects what a builtin consumes each period.
type input uint8

const (
	// valueInput: one scalar per period, from the source field or the
	// dependency series. Periods without a value are skipped.
	valueInput input = iota + 1
	// candleInput: the whole candle, or the dependency's bar.
	candleInput
)

// step consumes one period and returns that period's output. x is the
// selected source value of the period.
type step func(c model.Candle, x float64) Value

type builtin struct {
	input    input
	defaults Options
	build    func(o Options) (step, error)

	// batch replaces build for builtins computed over the whole input at once.
	batch func(ctx context.Context, lib Library, in Series, o Options) (Series, error)
}

var builtins = map[string]builtin{
	"sma":   movingAverage("SMA", 14),
	"ema":   movingAverage("EMA", 14),
	"wma":   movingAverage("WMA", 14),
	"dema":  movingAverage("DEMA", 14),
	"tema":  movingAverage("TEMA", 14),
	"trima": movingAverage("TRIMA", 14),
	"kama":  movingAverage("KAMA", 14),
	"smma":  movingAverage("SMMA", 14),
	"hma":   movingAverage("HMA", 9),
	"vwma": {
		input:    candleInput,
		defaults: Options{"length": 20},
		build: func(o Options) (step, error) {
			p, err := intOpt(o, "length", 1)
			if err != nil {
				return nil, err
			}
			v := NewVWMA(p)
			return func(c model.Candle, x float64) Value {
				v.Update(x, c.Volume)
				return readyNum(v.Ready(), v.Value())
			}, nil
		},
	},
	"rsi": scalarBuiltin(14, func(p int) Indicator { return NewRSI(p) }),
	"roc": scalarBuiltin(6, func(p int) Indicator { return NewROC(p) }),
	"mfi": {
		input:    candleInput,
		defaults: Options{"length": 14},
		build: func(o Options) (step, error) {
			p, err := intOpt(o, "length", 1)
			if err != nil {
				return nil, err
			}
			m := NewMFI(p)
			return func(c model.Candle, _ float64) Value {
				m.Update(c)
				return readyNum(m.Ready(), m.Value())
			}, nil
		},
	},
	"atr": candleScalar(func(p int) candleIndicator { return NewATR(p) }),
	"adx": candleScalar(func(p int) candleIndicator { return NewADX(p) }),
	"ao": {
		input:    candleInput,
		defaults: Options{"fast": 5, "slow": 34},
		build:    buildAO,
	},
	"stoch": {
		input:    candleInput,
		defaults: Options{"length": 14, "k": 3, "d": 3},
		build:    buildStoch,
	},
	"stoch_rsi": {
		input:    valueInput,
		defaults: Options{"rsi_length": 14, "stoch_length": 14, "k": 3, "d": 3},
		build:    buildStochRSI,
	},
	"macd": {
		input:    valueInput,
		defaults: Options{"fast_length": 12, "slow_length": 26, "signal_length": 9},
		build:    buildMACD,
	},
	"macd_ext": {
		input: valueInput,
		defaults: Options{
			"fast_period": 12, "slow_period": 26, "signal_period": 9,
			"default_ma_type": "EMA",
		},
		build: buildMACDExt,
	},
	"bb": {
		input:    valueInput,
		defaults: Options{"length": 20, "stddev": 2.0},
		build:    buildBB,
	},
	"bb_percent": {
		input:    valueInput,
		defaults: Options{"length": 20, "stddev": 2.0},
		build:    buildBBPercent,
	},
	"bb_talib": {
		input:    valueInput,
		defaults: Options{"length": 20, "stddev": 2.0},
		build:    checkBBOptions,
		batch:    bbLibrary,
	},
	"obv": {
		input: candleInput,
		build: func(Options) (step, error) {
			ob := &OBV{}
			return func(c model.Candle, x float64) Value {
				ob.Update(x, c.Volume)
				return Num(ob.Value())
			}, nil
		},
	},
	"ichimoku_cloud": {
		input:    candleInput,
		defaults: Options{"conversion": 9, "base": 26, "span": 52},
		build:    buildIchimoku,
	},
	"psar": {
		input:    candleInput,
		defaults: Options{"step": 0.02, "max": 0.2},
		build:    buildPSAR,
	},
	"zigzag": {
		input:    valueInput,
		defaults: Options{"deviation": 5.0},
		build:    buildZigZag,
	},
	"pivot_points": {
		input:    valueInput,
		defaults: Options{"left": 10, "right": 10},
		build:    buildPivotPoints,
	},
	"pivot_points_high_low": {
		input:    candleInput,
		defaults: Options{"left": 10, "right": 10},
		build:    buildPivotPointsHighLow,
	},
	"heikin_ashi": {
		input: candleInput,
		build: func(Options) (step, error) {
			ha := &HeikinAshi{}
			return func(c model.Candle, _ float64) Value { return Bar(ha.Update(c)) }, nil
		},
	},
	"volume_by_price": {
		input:    candleInput,
		defaults: Options{"length": 200, "ranges": 12},
		build:    buildVolumeByPrice,
	},
	"volume_profile": {
		input:    candleInput,
		defaults: Options{"ranges": 14},
		build:    buildVolumeProfile,
	},
	"candles": {
		input: candleInput,
		build: func(Options) (step, error) {
			return func(c model.Candle, _ float64) Value { return Bar(c) }, nil
		},
	},
}

// BuiltinNames lists the builtin catalog in sorted order.
func BuiltinNames() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// candleIndicator is a streaming scalar indicator fed whole candles.
type candleIndicator interface {
	Update(c model.Candle)
	Value() float64
	Ready() bool
}

func movingAverage(kind string, length int) builtin {
	return builtin{
		input:    valueInput,
		defaults: Options{"length": length},
		build: func(o Options) (step, error) {
			p, err := intOpt(o, "length", 1)
			if err != nil {
				return nil, err
			}
			ma, err := NewMovingAverage(kind, p)
			if err != nil {
				return nil, err
			}
			return scalar(ma), nil
		},
	}
}

func scalarBuiltin(length int, newInd func(p int) Indicator) builtin {
	return builtin{
		input:    valueInput,
		defaults: Options{"length": length},
		build: func(o Options) (step, error) {
			p, err := intOpt(o, "length", 1)
			if err != nil {
				return nil, err
			}
			return scalar(newInd(p)), nil
		},
	}
}

func candleScalar(newInd func(p int) candleIndicator) builtin {
	return builtin{
		input:    candleInput,
		defaults: Options{"length": 14},
		build: func(o Options) (step, error) {
			p, err := intOpt(o, "length", 1)
			if err != nil {
				return nil, err
			}
			ind := newInd(p)
			return func(c model.Candle, _ float64) Value {
				ind.Update(c)
				return readyNum(ind.Ready(), ind.Value())
			}, nil
		},
	}
}

func scalar(ind Indicator) step {
	return func(_ model.Candle, x float64) Value {
		ind.Update(x)
		return readyNum(ind.Ready(), ind.Value())
	}
}

func readyNum(ready bool, v float64) Value {
	if !ready {
		return None()
	}
	return Num(v)
}

// intOpt reads an integer option that must be at least min.
func intOpt(o Options, key string, min int) (int, error) {
	v := o.Int(key, min-1)
	if v < min {
		return 0, fmt.Errorf("option %q must be >= %d, got %v", key, min, o[key])
	}
	return v, nil
}

// floatOpt reads a float option that must be positive.
func floatOpt(o Options, key string) (float64, error) {
	v := o.Float(key, 0)
	if v <= 0 {
		return 0, fmt.Errorf("option %q must be > 0, got %v", key, o[key])
	}
	return v, nil
}

// runBuiltin feeds the builtin one period at a time in chronological order.
func runBuiltin(ctx context.Context, lib Library, s Spec, opts Options, candles []model.Candle, done map[string]Series) (Series, error) {
	def := builtins[s.Provider.name]
	opts = opts.Merge(def.defaults)
	source := opts.String("source", model.FieldClose)

	if def.batch != nil {
		in, err := resolveValues(s, opts, candles, done)
		if err != nil {
			return nil, err
		}
		return def.batch(ctx, lib, in, opts)
	}

	next, err := def.build(opts)
	if err != nil {
		return nil, err
	}
	out := make(Series, len(candles))

	if def.input == candleInput {
		var dep Series
		if s.DependsOn != "" {
			dep = done[s.DependsOn]
		}
		for i := range candles {
			c := candles[i]
			if dep != nil {
				bar, ok := dep[i].Bar()
				if !ok {
					continue
				}
				c = bar
			}
			x, err := c.Field(source)
			if err != nil {
				return nil, err
			}
			out[i] = next(c, x)
		}
		return out, nil
	}

	in, err := resolveValues(s, opts, candles, done)
	if err != nil {
		return nil, err
	}
	for i := range candles {
		x, ok := scalarOf(in[i], source)
		if !ok {
			continue
		}
		out[i] = next(candles[i], x)
	}
	return out, nil
}

// resolveValues returns the input series of a spec: the dependency series,
// optionally projected on option "field", or the candle field named by
// option "source". The returned series is always a fresh copy.
func resolveValues(s Spec, opts Options, candles []model.Candle, done map[string]Series) (Series, error) {
	if s.DependsOn != "" {
		dep := done[s.DependsOn]
		if field := opts.String("field", ""); field != "" {
			return dep.Project(field), nil
		}
		return append(Series(nil), dep...), nil
	}
	source := opts.String("source", model.FieldClose)
	out := make(Series, len(candles))
	for i := range candles {
		v, err := candles[i].Field(source)
		if err != nil {
			return nil, err
		}
		out[i] = Num(v)
	}
	return out, nil
}

// scalarOf reads a value as a scalar: numbers directly, bars through the
// source field.
func scalarOf(v Value, source string) (float64, bool) {
	if f, ok := v.Float(); ok {
		return f, true
	}
	if v.Kind() == KindBar {
		return v.Field(source)
	}
	return 0, false
}
