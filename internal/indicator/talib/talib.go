// Package talib adapts github.com/markcheno/go-talib to the positional
// calling convention used by library-backed indicator specs: ordered input
// arrays, ordered numeric options, ordered output arrays.
//
// The adapter only translates shapes. go-talib fills warm-up slots with
// zeros; Lookback reports how many leading slots are warm-up so callers can
// mark them instead of reading the zeros as values.
package talib

import (
	"context"
	"fmt"
	"sort"

	talib "github.com/markcheno/go-talib"
)

// Indicator describes one library function.
type Indicator struct {
	Name    string
	Sources []string // default input fields, in call order
	Options int      // number of positional options
	Outputs []string // output names, in library order

	lookback func(opts []int) int
	call     func(in [][]float64, opts []float64) [][]float64
}

// Lookback returns the number of leading warm-up slots for the options.
func (ind Indicator) Lookback(options []float64) int {
	return ind.lookback(ints(options))
}

var catalog = map[string]Indicator{
	"sma":   single("sma", func(in []float64, p int) []float64 { return talib.Sma(in, p) }, func(p int) int { return p - 1 }),
	"ema":   single("ema", func(in []float64, p int) []float64 { return talib.Ema(in, p) }, func(p int) int { return p - 1 }),
	"wma":   single("wma", func(in []float64, p int) []float64 { return talib.Wma(in, p) }, func(p int) int { return p - 1 }),
	"dema":  single("dema", func(in []float64, p int) []float64 { return talib.Dema(in, p) }, func(p int) int { return 2 * (p - 1) }),
	"tema":  single("tema", func(in []float64, p int) []float64 { return talib.Tema(in, p) }, func(p int) int { return 3 * (p - 1) }),
	"trima": single("trima", func(in []float64, p int) []float64 { return talib.Trima(in, p) }, func(p int) int { return p - 1 }),
	"kama":  single("kama", func(in []float64, p int) []float64 { return talib.Kama(in, p) }, func(p int) int { return p }),
	"rsi":   single("rsi", func(in []float64, p int) []float64 { return talib.Rsi(in, p) }, func(p int) int { return p }),
	"roc":   single("roc", func(in []float64, p int) []float64 { return talib.Roc(in, p) }, func(p int) int { return p }),
	"mom":   single("mom", func(in []float64, p int) []float64 { return talib.Mom(in, p) }, func(p int) int { return p }),

	"cci": hlc("cci", func(h, l, c []float64, p int) []float64 { return talib.Cci(h, l, c, p) }, func(p int) int { return p - 1 }),
	"willr": hlc("willr", func(h, l, c []float64, p int) []float64 { return talib.WillR(h, l, c, p) },
		func(p int) int { return p - 1 }),
	"atr": hlc("atr", func(h, l, c []float64, p int) []float64 { return talib.Atr(h, l, c, p) }, func(p int) int { return p }),
	"adx": hlc("adx", func(h, l, c []float64, p int) []float64 { return talib.Adx(h, l, c, p) }, func(p int) int { return 2*p - 1 }),

	"mfi": {
		Name:     "mfi",
		Sources:  []string{"high", "low", "close", "volume"},
		Options:  1,
		Outputs:  []string{"mfi"},
		lookback: func(o []int) int { return o[0] },
		call: func(in [][]float64, o []float64) [][]float64 {
			return [][]float64{talib.Mfi(in[0], in[1], in[2], in[3], int(o[0]))}
		},
	},
	"obv": {
		Name:     "obv",
		Sources:  []string{"close", "volume"},
		Options:  0,
		Outputs:  []string{"obv"},
		lookback: func([]int) int { return 0 },
		call: func(in [][]float64, _ []float64) [][]float64 {
			return [][]float64{talib.Obv(in[0], in[1])}
		},
	},
	"macd": {
		Name:     "macd",
		Sources:  []string{"close"},
		Options:  3,
		Outputs:  []string{"macd", "macd_signal", "macd_histogram"},
		lookback: func(o []int) int { return max(o[0], o[1]) - 1 + o[2] - 1 },
		call: func(in [][]float64, o []float64) [][]float64 {
			m, s, h := talib.Macd(in[0], int(o[0]), int(o[1]), int(o[2]))
			return [][]float64{m, s, h}
		},
	},
	"bbands": {
		Name:     "bbands",
		Sources:  []string{"close"},
		Options:  2,
		Outputs:  []string{"upper", "middle", "lower"},
		lookback: func(o []int) int { return o[0] - 1 },
		call: func(in [][]float64, o []float64) [][]float64 {
			u, m, l := talib.BBands(in[0], int(o[0]), o[1], o[1], talib.SMA)
			return [][]float64{u, m, l}
		},
	},
	"stoch": {
		Name:     "stoch",
		Sources:  []string{"high", "low", "close"},
		Options:  3,
		Outputs:  []string{"stoch_k", "stoch_d"},
		lookback: func(o []int) int { return o[0] - 1 + o[1] - 1 + o[2] - 1 },
		call: func(in [][]float64, o []float64) [][]float64 {
			k, d := talib.Stoch(in[0], in[1], in[2], int(o[0]), int(o[1]), talib.SMA, int(o[2]), talib.SMA)
			return [][]float64{k, d}
		},
	},
	"stochrsi": {
		Name:     "stochrsi",
		Sources:  []string{"close"},
		Options:  3,
		Outputs:  []string{"stoch_k", "stoch_d"},
		lookback: func(o []int) int { return o[0] + o[1] - 1 + o[2] - 1 },
		call: func(in [][]float64, o []float64) [][]float64 {
			k, d := talib.StochRsi(in[0], int(o[0]), int(o[1]), int(o[2]), talib.SMA)
			return [][]float64{k, d}
		},
	},
	"sar": {
		Name:     "sar",
		Sources:  []string{"high", "low"},
		Options:  2,
		Outputs:  []string{"sar"},
		lookback: func([]int) int { return 1 },
		call: func(in [][]float64, o []float64) [][]float64 {
			return [][]float64{talib.Sar(in[0], in[1], o[0], o[1])}
		},
	},
}

// Adapter exposes the catalog through the method set the indicator engine
// resolves library providers with.
type Adapter struct{}

// Signature reports default sources, option count and output names.
func (Adapter) Signature(name string) (sources []string, options int, outputs []string, ok bool) {
	ind, ok := catalog[name]
	if !ok {
		return nil, 0, nil, false
	}
	return append([]string(nil), ind.Sources...), ind.Options, append([]string(nil), ind.Outputs...), true
}

// Call forwards to the package-level Call.
func (Adapter) Call(ctx context.Context, name string, inputs [][]float64, options []float64) ([][]float64, int, error) {
	return Call(ctx, name, inputs, options)
}

// Describe returns the library signature for name.
func Describe(name string) (Indicator, bool) {
	ind, ok := catalog[name]
	return ind, ok
}

// Names lists the supported library indicators.
func Names() []string {
	names := make([]string, 0, len(catalog))
	for n := range catalog {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Call invokes the library function and returns its outputs in library
// order plus the warm-up length. Inputs no longer than the warm-up are not
// passed to the library; all outputs are then returned as zero arrays.
func Call(ctx context.Context, name string, inputs [][]float64, options []float64) (out [][]float64, lookback int, err error) {
	ind, ok := catalog[name]
	if !ok {
		return nil, 0, fmt.Errorf("talib: unknown indicator %q", name)
	}
	if len(inputs) != len(ind.Sources) {
		return nil, 0, fmt.Errorf("talib %s: expected %d inputs, got %d", name, len(ind.Sources), len(inputs))
	}
	if len(options) != ind.Options {
		return nil, 0, fmt.Errorf("talib %s: expected %d options, got %d", name, ind.Options, len(options))
	}
	for i, o := range options {
		if o <= 0 {
			return nil, 0, fmt.Errorf("talib %s: option %d must be positive, got %v", name, i, o)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	n := 0
	if len(inputs) > 0 {
		n = len(inputs[0])
	}
	for i, in := range inputs {
		if len(in) != n {
			return nil, 0, fmt.Errorf("talib %s: input %d has length %d, want %d", name, i, len(in), n)
		}
	}

	lookback = ind.Lookback(options)
	if n <= lookback {
		out = make([][]float64, len(ind.Outputs))
		for i := range out {
			out[i] = make([]float64, n)
		}
		return out, lookback, nil
	}

	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("talib %s: %v", name, r)
		}
	}()
	out = ind.call(inputs, options)
	if len(out) != len(ind.Outputs) {
		return nil, 0, fmt.Errorf("talib %s: library returned %d outputs, want %d", name, len(out), len(ind.Outputs))
	}
	for i, o := range out {
		if len(o) != n {
			return nil, 0, fmt.Errorf("talib %s: output %d has length %d, want %d", name, i, len(o), n)
		}
	}
	return out, lookback, nil
}

func single(name string, fn func([]float64, int) []float64, lb func(int) int) Indicator {
	return Indicator{
		Name:     name,
		Sources:  []string{"close"},
		Options:  1,
		Outputs:  []string{name},
		lookback: func(o []int) int { return lb(o[0]) },
		call: func(in [][]float64, o []float64) [][]float64 {
			return [][]float64{fn(in[0], int(o[0]))}
		},
	}
}

func hlc(name string, fn func(h, l, c []float64, p int) []float64, lb func(int) int) Indicator {
	return Indicator{
		Name:     name,
		Sources:  []string{"high", "low", "close"},
		Options:  1,
		Outputs:  []string{name},
		lookback: func(o []int) int { return lb(o[0]) },
		call: func(in [][]float64, o []float64) [][]float64 {
			return [][]float64{fn(in[0], in[1], in[2], int(o[0]))}
		},
	}
}

func ints(fs []float64) []int {
	out := make([]int, len(fs))
	for i, f := range fs {
		out[i] = int(f)
	}
	return out
}
