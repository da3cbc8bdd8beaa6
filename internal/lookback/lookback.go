// Package lookback exposes indicator results in reverse-chronological
// order: index 0 is the most recent period. A View fixes the "current"
// period; everything after it is invisible, so strategies evaluating a
// period can only reach the past.
package lookback

import (
	"errors"
	"fmt"
	"strings"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/model"
)

// ErrOutOfRange is returned for a period outside the visible history.
var ErrOutOfRange = errors.New("lookback: period out of range")

// Reverse returns a reversed copy of s.
func Reverse(s indicator.Series) indicator.Series {
	out := make(indicator.Series, len(s))
	for i, v := range s {
		out[len(s)-1-i] = v
	}
	return out
}

// View is a read-only window on a Result ending at one period.
// Views share the Result's storage and are cheap to create.
type View struct {
	res *indicator.Result
	end int // number of visible periods
}

// NewView returns a view on every period of res.
func NewView(res *indicator.Result) *View {
	return &View{res: res, end: res.Len()}
}

// Until returns the view as of chronological period i: periods after i are
// hidden.
func (v *View) Until(i int) (*View, error) {
	if i < 0 || i >= v.end {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, i, v.end)
	}
	return &View{res: v.res, end: i + 1}, nil
}

// Len returns the number of visible periods.
func (v *View) Len() int { return v.end }

// Keys returns the result keys in declaration order.
func (v *View) Keys() []string { return v.res.Keys() }

// Series returns the visible part of key, most recent first.
func (v *View) Series(key string) (indicator.Series, bool) {
	s, ok := v.res.Series(key)
	if !ok {
		return nil, false
	}
	return Reverse(s[:v.end]), true
}

// At returns the value of key k periods back from the most recent one.
func (v *View) At(key string, k int) (indicator.Value, error) {
	if k < 0 || k >= v.end {
		return indicator.None(), fmt.Errorf("%w: %d of %d", ErrOutOfRange, k, v.end)
	}
	val, ok := v.res.At(key, v.end-1-k)
	if !ok {
		return indicator.None(), fmt.Errorf("lookback: unknown key %q", key)
	}
	return val, nil
}

// SnapshotAt returns the snapshot k periods back; 0 is the most recent.
func (v *View) SnapshotAt(k int) (*Snapshot, error) {
	if k < 0 || k >= v.end {
		return nil, fmt.Errorf("%w: %d of %d", ErrOutOfRange, k, v.end)
	}
	return &Snapshot{res: v.res, period: v.end - 1 - k}, nil
}

// Snapshot is the immutable view of one period: its candle, every
// indicator value at that period, and access to earlier periods.
type Snapshot struct {
	res    *indicator.Result
	period int // chronological index
}

// Period returns the chronological index of the snapshot.
func (s *Snapshot) Period() int { return s.period }

// Candle returns the period's candle.
func (s *Snapshot) Candle() model.Candle { return s.res.Candles().At(s.period) }

// Time returns the period's candle time.
func (s *Snapshot) Time() int64 { return s.Candle().Time }

// Keys returns the available indicator keys in declaration order.
func (s *Snapshot) Keys() []string { return s.res.Keys() }

// Get returns the value of key at this period; None when unknown.
func (s *Snapshot) Get(key string) indicator.Value {
	return s.Back(key, 0)
}

// Back returns the value of key k periods before this one (k >= 0).
// History before the first period reads as None.
func (s *Snapshot) Back(key string, k int) indicator.Value {
	if k < 0 {
		return indicator.None()
	}
	v, _ := s.res.At(key, s.period-k)
	return v
}

// Float resolves a dotted path at this period: "rsi" for a scalar,
// "macd.histogram" for a composite field, "pp.high.close" when the field
// name itself contains dots.
func (s *Snapshot) Float(path string) (float64, bool) {
	return s.FloatBack(path, 0)
}

// FloatBack resolves path k periods before this one.
func (s *Snapshot) FloatBack(path string, k int) (float64, bool) {
	key, field := s.split(path)
	v := s.Back(key, k)
	if field == "" {
		return v.Float()
	}
	return v.Field(field)
}

// split finds the longest-known key prefix of path.
func (s *Snapshot) split(path string) (key, field string) {
	if s.res.Has(path) {
		return path, ""
	}
	for i := strings.LastIndex(path, "."); i > 0; i = strings.LastIndex(path[:i], ".") {
		if s.res.Has(path[:i]) {
			return path[:i], path[i+1:]
		}
	}
	head, rest, _ := strings.Cut(path, ".")
	return head, rest
}
