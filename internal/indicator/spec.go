package indicator

import (
	"context"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// ProviderKind tags the computation strategy behind a Spec.
type ProviderKind uint8

const (
	ProviderBuiltin ProviderKind = iota + 1
	ProviderCustom
	ProviderLibrary
)

func (k ProviderKind) String() string {
	switch k {
	case ProviderBuiltin:
		return "builtin"
	case ProviderCustom:
		return "custom"
	case ProviderLibrary:
		return "library"
	default:
		return "unknown"
	}
}

// Source is the resolved input handed to a provider.
// Candles is always the full (possibly truncated, in streaming mode)
// chronological candle list; Values is the selected candle field or the
// dependency's result series.
type Source struct {
	Candles []model.Candle
	Values  Series
}

// Len returns the series length N every output must match.
func (s Source) Len() int { return len(s.Candles) }

// CustomFunc computes user-defined outputs. It must return one full-length
// series per declared output name.
type CustomFunc func(ctx context.Context, src Source, opts Options) (map[string]Series, error)

// Provider is a closed variant over builtin, custom and library
// computation. Build it with Builtin, Custom or External.
type Provider struct {
	kind ProviderKind

	name    string // builtin or library indicator name
	fn      CustomFunc
	outputs []string // custom outputs, or library result keys

	sources []string  // library input fields
	params  []float64 // library positional options
}

// Builtin selects an indicator from the closed catalog.
func Builtin(name string) Provider {
	return Provider{kind: ProviderBuiltin, name: name}
}

// Custom wraps a user function. outputs lists the result series names it
// returns; when empty the spec key is the only output.
func Custom(fn CustomFunc, outputs ...string) Provider {
	return Provider{kind: ProviderCustom, fn: fn, outputs: append([]string(nil), outputs...)}
}

// External calls an indicator of the external numeric library. Empty
// sources or results fall back to the library's declared defaults.
func External(name string, sources []string, options []float64, results []string) Provider {
	return Provider{
		kind:    ProviderLibrary,
		name:    name,
		sources: append([]string(nil), sources...),
		params:  append([]float64(nil), options...),
		outputs: append([]string(nil), results...),
	}
}

func (p Provider) Kind() ProviderKind { return p.kind }
func (p Provider) Name() string       { return p.name }

// Spec declares one indicator output.
type Spec struct {
	Key        string
	Provider   Provider
	WindowSize int // default "length" when Options does not set one
	Options    Options
	DependsOn  string // key of an earlier spec used as source
}

// outputKeys lists every top-level result key this spec produces.
func (s Spec) outputKeys() []string {
	if s.Provider.kind == ProviderCustom && len(s.Provider.outputs) > 0 {
		return s.Provider.outputs
	}
	return []string{s.Key}
}

// options returns the spec options with WindowSize applied as default length.
func (s Spec) options() Options {
	opts := s.Options.Clone()
	if s.WindowSize > 0 && !opts.Has("length") {
		opts["length"] = s.WindowSize
	}
	return opts
}
