package indicator

import "github.com/egisz/crypto-trading-bot/internal/model"

// Result holds every output series of one computation, in declaration
// order, next to the candles they were computed from. It is read-only.
type Result struct {
	candles *model.Series
	keys    []string
	series  map[string]Series
}

// Candles returns the candle series the result was computed from.
func (r *Result) Candles() *model.Series { return r.candles }

// Len returns the number of periods N.
func (r *Result) Len() int { return r.candles.Len() }

// Keys returns the output keys in declaration order.
func (r *Result) Keys() []string { return append([]string(nil), r.keys...) }

// Has reports whether key is an output of the computation.
func (r *Result) Has(key string) bool {
	_, ok := r.series[key]
	return ok
}

// Series returns a copy of the series stored under key.
func (r *Result) Series(key string) (Series, bool) {
	s, ok := r.series[key]
	if !ok {
		return nil, false
	}
	return append(Series(nil), s...), true
}

// At returns the value of key at chronological period i. Unknown keys and
// out-of-range periods report false.
func (r *Result) At(key string, i int) (Value, bool) {
	s, ok := r.series[key]
	if !ok || i < 0 || i >= len(s) {
		return None(), false
	}
	return s[i], true
}
