package indicator

import (
	"sort"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// Kind identifies what a Value holds.
type Kind uint8

const (
	KindNone    Kind = iota // not yet computable (warm-up)
	KindNumber              // scalar
	KindFields              // composite, e.g. macd/signal/histogram
	KindBar                 // synthetic candle, e.g. Heikin-Ashi
	KindBuckets             // volume-by-price buckets
)

// PriceBucket is one price range of a volume profile.
type PriceBucket struct {
	Low    float64 `json:"low"`
	High   float64 `json:"high"`
	Volume float64 `json:"volume"`
}

// Value is one entry of a result series. The zero Value is None, which is
// never confused with a computed zero: Num(0).IsSet() is true.
type Value struct {
	kind    Kind
	num     float64
	fields  map[string]float64
	bar     model.Candle
	buckets []PriceBucket
}

// None returns the "no value yet" marker.
func None() Value { return Value{} }

// Num wraps a computed scalar.
func Num(v float64) Value { return Value{kind: KindNumber, num: v} }

// Fields wraps a composite output. The map is copied.
func Fields(f map[string]float64) Value {
	cp := make(map[string]float64, len(f))
	for k, v := range f {
		cp[k] = v
	}
	return Value{kind: KindFields, fields: cp}
}

// Bar wraps a synthetic candle.
func Bar(c model.Candle) Value { return Value{kind: KindBar, bar: c} }

// Buckets wraps a volume profile. The slice is copied.
func Buckets(b []PriceBucket) Value {
	cp := make([]PriceBucket, len(b))
	copy(cp, b)
	return Value{kind: KindBuckets, buckets: cp}
}

func (v Value) Kind() Kind { return v.kind }

// IsSet reports whether the entry holds a computed value.
func (v Value) IsSet() bool { return v.kind != KindNone }

// Float returns the scalar, or false if the value is not a number.
func (v Value) Float() (float64, bool) {
	if v.kind != KindNumber {
		return 0, false
	}
	return v.num, true
}

// Field returns one named component of a composite, or of a bar
// (open/high/low/close/volume/time).
func (v Value) Field(name string) (float64, bool) {
	switch v.kind {
	case KindFields:
		f, ok := v.fields[name]
		return f, ok
	case KindBar:
		if name == "time" {
			return float64(v.bar.Time), true
		}
		f, err := v.bar.Field(name)
		return f, err == nil
	}
	return 0, false
}

// FieldNames returns the composite keys in sorted order.
func (v Value) FieldNames() []string {
	if v.kind != KindFields {
		return nil
	}
	names := make([]string, 0, len(v.fields))
	for k := range v.fields {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Map returns a copy of the composite fields.
func (v Value) Map() map[string]float64 {
	if v.kind != KindFields {
		return nil
	}
	cp := make(map[string]float64, len(v.fields))
	for k, f := range v.fields {
		cp[k] = f
	}
	return cp
}

// Bar returns the synthetic candle, if any.
func (v Value) Bar() (model.Candle, bool) {
	return v.bar, v.kind == KindBar
}

// Buckets returns a copy of the volume profile, if any.
func (v Value) Buckets() ([]PriceBucket, bool) {
	if v.kind != KindBuckets {
		return nil, false
	}
	cp := make([]PriceBucket, len(v.buckets))
	copy(cp, v.buckets)
	return cp, true
}

// Equal compares two values exactly, including float bit patterns.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNone:
		return true
	case KindNumber:
		return sameFloat(v.num, o.num)
	case KindFields:
		if len(v.fields) != len(o.fields) {
			return false
		}
		for k, f := range v.fields {
			g, ok := o.fields[k]
			if !ok || !sameFloat(f, g) {
				return false
			}
		}
		return true
	case KindBar:
		a, b := v.bar, o.bar
		return a.Time == b.Time && sameFloat(a.Open, b.Open) && sameFloat(a.High, b.High) &&
			sameFloat(a.Low, b.Low) && sameFloat(a.Close, b.Close) && sameFloat(a.Volume, b.Volume)
	case KindBuckets:
		if len(v.buckets) != len(o.buckets) {
			return false
		}
		for i := range v.buckets {
			a, b := v.buckets[i], o.buckets[i]
			if !sameFloat(a.Low, b.Low) || !sameFloat(a.High, b.High) || !sameFloat(a.Volume, b.Volume) {
				return false
			}
		}
		return true
	}
	return false
}

// Series is one indicator output aligned index-for-index with the candles.
type Series []Value

// Floats returns the scalar values with a parallel validity mask.
func (s Series) Floats() ([]float64, []bool) {
	vals := make([]float64, len(s))
	ok := make([]bool, len(s))
	for i, v := range s {
		vals[i], ok[i] = v.Float()
	}
	return vals, ok
}

// Project extracts one composite field as a scalar series.
// Entries lacking the field become None.
func (s Series) Project(field string) Series {
	out := make(Series, len(s))
	for i, v := range s {
		if f, ok := v.Field(field); ok {
			out[i] = Num(f)
		}
	}
	return out
}

// Equal reports bitwise equality of two series.
func (s Series) Equal(o Series) bool {
	if len(s) != len(o) {
		return false
	}
	for i := range s {
		if !s[i].Equal(o[i]) {
			return false
		}
	}
	return true
}

// NumSeries converts a dense float slice into a Series; indexes below
// warmup become None.
func NumSeries(vals []float64, warmup int) Series {
	out := make(Series, len(vals))
	for i := warmup; i < len(vals); i++ {
		if i >= 0 {
			out[i] = Num(vals[i])
		}
	}
	return out
}

func sameFloat(a, b float64) bool {
	// NaN == NaN for determinism comparisons
	return a == b || (a != a && b != b)
}
