package indicator

import (
	"context"
	"fmt"

	"github.com/egisz/crypto-trading-bot/internal/indicator/talib"
	"github.com/egisz/crypto-trading-bot/internal/model"
)

// Library is an external numeric indicator library called with positional
// input arrays and options. Call returns one array per output, each as long
// as the inputs, plus the number of leading warm-up entries.
type Library interface {
	Signature(name string) (sources []string, options int, outputs []string, ok bool)
	Call(ctx context.Context, name string, inputs [][]float64, options []float64) ([][]float64, int, error)
}

// DefaultLibrary is the TA-Lib port used unless WithLibrary overrides it.
func DefaultLibrary() Library { return talib.Adapter{} }

// librarySignature resolves a library provider against the library's
// declared defaults.
func librarySignature(lib Library, p Provider) (sources, results []string, err error) {
	if lib == nil {
		return nil, nil, fmt.Errorf("no external library configured")
	}
	defSources, nopts, outputs, ok := lib.Signature(p.name)
	if !ok {
		return nil, nil, fmt.Errorf("unknown library indicator %q", p.name)
	}
	sources = p.sources
	if len(sources) == 0 {
		sources = defSources
	}
	if len(sources) != len(defSources) {
		return nil, nil, fmt.Errorf("library indicator %q takes %d sources, got %d", p.name, len(defSources), len(sources))
	}
	for _, s := range sources {
		if !model.IsField(s) {
			return nil, nil, fmt.Errorf("unknown source field %q", s)
		}
	}
	if len(p.params) != nopts {
		return nil, nil, fmt.Errorf("library indicator %q takes %d options, got %d", p.name, nopts, len(p.params))
	}
	results = p.outputs
	if len(results) == 0 {
		results = outputs
	}
	if len(results) != len(outputs) {
		return nil, nil, fmt.Errorf("library indicator %q returns %d results, got %d names", p.name, len(outputs), len(results))
	}
	return sources, results, nil
}

// runLibrary computes a library spec. A single result yields a scalar
// series; several results yield one composite series named by the result
// names.
func runLibrary(ctx context.Context, lib Library, s Spec, opts Options, candles []model.Candle, done map[string]Series) (Series, error) {
	sources, results, err := librarySignature(lib, s.Provider)
	if err != nil {
		return nil, err
	}

	var inputs []Series
	if s.DependsOn != "" {
		in, err := resolveValues(s, opts, candles, done)
		if err != nil {
			return nil, err
		}
		src := opts.String("source", model.FieldClose)
		for i, v := range in {
			if f, ok := scalarOf(v, src); ok {
				in[i] = Num(f)
			} else {
				in[i] = None()
			}
		}
		inputs = []Series{in}
	} else {
		for _, field := range sources {
			vals := make(Series, len(candles))
			for i := range candles {
				f, _ := candles[i].Field(field)
				vals[i] = Num(f)
			}
			inputs = append(inputs, vals)
		}
	}

	outs, err := callLibrary(ctx, lib, s.Provider.name, inputs, s.Provider.params)
	if err != nil {
		return nil, err
	}
	if len(outs) == 1 {
		return outs[0], nil
	}
	res := make(Series, len(candles))
	for i := range res {
		if !outs[0][i].IsSet() {
			continue
		}
		f := make(map[string]float64, len(results))
		for j, name := range results {
			f[name], _ = outs[j][i].Float()
		}
		res[i] = Fields(f)
	}
	return res, nil
}

// callLibrary hands dense arrays to the library. Leading periods where any
// input has no value are cut off before the call and come back as None; a
// gap after the first complete period is an error.
func callLibrary(ctx context.Context, lib Library, name string, inputs []Series, options []float64) ([]Series, error) {
	if lib == nil {
		return nil, fmt.Errorf("no external library configured")
	}
	_, _, outputs, ok := lib.Signature(name)
	if !ok {
		return nil, fmt.Errorf("unknown library indicator %q", name)
	}
	n := 0
	if len(inputs) > 0 {
		n = len(inputs[0])
	}
	res := make([]Series, len(outputs))
	for j := range res {
		res[j] = make(Series, n)
	}

	first := 0
	for first < n && !allSet(inputs, first) {
		first++
	}
	if first == n {
		return res, nil
	}

	raw := make([][]float64, len(inputs))
	for j, in := range inputs {
		raw[j] = make([]float64, n-first)
		for i := first; i < n; i++ {
			f, ok := in[i].Float()
			if !ok {
				return nil, fmt.Errorf("library input %d has no value at index %d", j, i)
			}
			raw[j][i-first] = f
		}
	}

	out, lookback, err := lib.Call(ctx, name, raw, options)
	if err != nil {
		return nil, err
	}
	if len(out) != len(outputs) {
		return nil, fmt.Errorf("library %s returned %d outputs, want %d", name, len(out), len(outputs))
	}
	for j := range out {
		if len(out[j]) != n-first {
			return nil, fmt.Errorf("library %s output %d has length %d, want %d", name, j, len(out[j]), n-first)
		}
		for i := lookback; i < len(out[j]); i++ {
			res[j][first+i] = Num(out[j][i])
		}
	}
	return res, nil
}

func allSet(inputs []Series, i int) bool {
	for _, in := range inputs {
		if _, ok := in[i].Float(); !ok {
			return false
		}
	}
	return true
}
