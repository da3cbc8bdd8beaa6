package strategy

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
)

// Signal is the trading intent a strategy emits for one period.
type Signal uint8

const (
	SignalNone Signal = iota
	SignalLong
	SignalShort
	SignalClose
)

func (s Signal) String() string {
	switch s {
	case SignalLong:
		return "long"
	case SignalShort:
		return "short"
	case SignalClose:
		return "close"
	default:
		return "none"
	}
}

// ParseSignal converts "long", "short", "close" or "" / "none".
func ParseSignal(s string) (Signal, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return SignalNone, nil
	case "long":
		return SignalLong, nil
	case "short":
		return SignalShort, nil
	case "close":
		return SignalClose, nil
	}
	return SignalNone, fmt.Errorf("unknown signal %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (s Signal) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Signal) UnmarshalText(b []byte) error {
	v, err := ParseSignal(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// DebugEntry is one named diagnostic value attached to a period.
// Value is usually a float64 or an indicator.Value.
type DebugEntry struct {
	Key   string
	Value any
}

// SignalResult is the immutable outcome of evaluating one period.
type SignalResult struct {
	signal Signal
	debug  []DebugEntry
}

// Empty returns a result with no signal and no debug values.
func Empty() SignalResult { return SignalResult{} }

// NewSignalResult builds a result directly. Later debug entries overwrite
// earlier ones with the same key.
func NewSignalResult(sig Signal, debug ...DebugEntry) SignalResult {
	b := NewBuilder()
	b.SetSignal(sig)
	for _, d := range debug {
		b.AddDebug(d.Key, d.Value)
	}
	return b.Build()
}

// Signal returns the emitted signal.
func (r SignalResult) Signal() Signal { return r.signal }

// HasSignal reports whether the period emitted anything.
func (r SignalResult) HasSignal() bool { return r.signal != SignalNone }

// Debug returns a copy of the debug entries in insertion order.
func (r SignalResult) Debug() []DebugEntry {
	return append([]DebugEntry(nil), r.debug...)
}

// DebugValue returns the debug value stored under key.
func (r SignalResult) DebugValue(key string) (any, bool) {
	for _, d := range r.debug {
		if d.Key == key {
			return d.Value, true
		}
	}
	return nil, false
}

// SignalBuilder accumulates a SignalResult during EvaluatePeriod.
// It is not safe for concurrent use.
type SignalBuilder struct {
	signal Signal
	debug  []DebugEntry
	index  map[string]int
}

// NewBuilder returns an empty builder.
func NewBuilder() *SignalBuilder {
	return &SignalBuilder{index: make(map[string]int)}
}

// SetSignal sets the signal; the last call wins.
func (b *SignalBuilder) SetSignal(s Signal) *SignalBuilder {
	b.signal = s
	return b
}

// AddDebug records a debug value. Re-adding a key replaces the value and
// keeps its original position.
func (b *SignalBuilder) AddDebug(key string, v any) *SignalBuilder {
	if i, ok := b.index[key]; ok {
		b.debug[i].Value = v
		return b
	}
	b.index[key] = len(b.debug)
	b.debug = append(b.debug, DebugEntry{Key: key, Value: v})
	return b
}

// Build returns the immutable result. The builder may keep being used.
func (b *SignalBuilder) Build() SignalResult {
	return SignalResult{signal: b.signal, debug: append([]DebugEntry(nil), b.debug...)}
}

// FormatValue renders a debug value with fixed precision: numbers as
// decimals, composites as sorted "name=value" pairs, None as "".
func FormatValue(v any, places int32) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return fixed(x, places)
	case float32:
		return fixed(float64(x), places)
	case int:
		return decimal.NewFromInt(int64(x)).String()
	case int64:
		return decimal.NewFromInt(x).String()
	case indicator.Value:
		return formatIndicatorValue(x, places)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

func formatIndicatorValue(v indicator.Value, places int32) string {
	switch v.Kind() {
	case indicator.KindNumber:
		f, _ := v.Float()
		return fixed(f, places)
	case indicator.KindBar:
		c, _ := v.Bar()
		return formatFields(map[string]float64{"open": c.Open, "high": c.High, "low": c.Low, "close": c.Close}, places)
	case indicator.KindFields:
		return formatFields(v.Map(), places)
	case indicator.KindBuckets:
		b, _ := v.Buckets()
		return fmt.Sprintf("%d buckets", len(b))
	}
	return ""
}

func formatFields(m map[string]float64, places int32) string {
	names := make([]string, 0, len(m))
	for k := range m {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, k := range names {
		parts[i] = k + "=" + fixed(m[k], places)
	}
	return strings.Join(parts, " ")
}

// fixed rounds f half away from zero; decimal cannot represent NaN or Inf.
func fixed(f float64, places int32) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return decimal.NewFromFloat(f).StringFixed(places)
}
