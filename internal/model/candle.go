package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

// Candle represents one OHLCV sample for a fixed period.
// Time is the bucket start as a unix timestamp (seconds or milliseconds,
// the series only requires it to be monotonic).
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

// Candle field names usable as indicator sources.
const (
	FieldOpen   = "open"
	FieldHigh   = "high"
	FieldLow    = "low"
	FieldClose  = "close"
	FieldVolume = "volume"
	FieldHL2    = "hl2"
	FieldHLC3   = "hlc3"
	FieldOHLC4  = "ohlc4"
)

// ErrDuplicateTime is returned when two candles share a timestamp.
var ErrDuplicateTime = errors.New("duplicate candle time")

// ErrUnknownField is returned for a source field that is not a candle field.
var ErrUnknownField = errors.New("unknown candle field")

// IsField reports whether name is a valid source field.
func IsField(name string) bool {
	switch name {
	case FieldOpen, FieldHigh, FieldLow, FieldClose, FieldVolume, FieldHL2, FieldHLC3, FieldOHLC4:
		return true
	}
	return false
}

// Field returns the named price/volume field of the candle.
func (c Candle) Field(name string) (float64, error) {
	switch name {
	case FieldOpen:
		return c.Open, nil
	case FieldHigh:
		return c.High, nil
	case FieldLow:
		return c.Low, nil
	case FieldClose:
		return c.Close, nil
	case FieldVolume:
		return c.Volume, nil
	case FieldHL2:
		return (c.High + c.Low) / 2, nil
	case FieldHLC3:
		return (c.High + c.Low + c.Close) / 3, nil
	case FieldOHLC4:
		return (c.Open + c.High + c.Low + c.Close) / 4, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// msThreshold separates second from millisecond timestamps (year 5138 in
// seconds, 1973 in milliseconds).
const msThreshold = 1e11

// IsMillis reports whether t is too large to be a unix time in seconds.
func IsMillis(t int64) bool { return t >= msThreshold || t <= -msThreshold }

// Timestamp returns the candle time in UTC, reading Time as milliseconds
// when it is too large to be seconds.
func (c Candle) Timestamp() time.Time {
	if IsMillis(c.Time) {
		return time.UnixMilli(c.Time).UTC()
	}
	return time.Unix(c.Time, 0).UTC()
}

// JSON returns the JSON-encoded candle (ignoring errors for hot-path usage).
func (c Candle) JSON() []byte {
	b, _ := json.Marshal(c)
	return b
}

// Series is an immutable, strictly ascending sequence of candles.
// It is safe to share between goroutines once constructed.
type Series struct {
	candles []Candle
}

// NewSeries copies candles, sorts them by time and rejects duplicates.
func NewSeries(candles []Candle) (*Series, error) {
	cs := make([]Candle, len(candles))
	copy(cs, candles)
	sort.SliceStable(cs, func(i, j int) bool { return cs[i].Time < cs[j].Time })
	for i := 1; i < len(cs); i++ {
		if cs[i].Time == cs[i-1].Time {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateTime, cs[i].Time)
		}
	}
	return &Series{candles: cs}, nil
}

// MustSeries is NewSeries for fixtures; it panics on invalid input.
func MustSeries(candles []Candle) *Series {
	s, err := NewSeries(candles)
	if err != nil {
		panic(err)
	}
	return s
}

// Len returns the number of candles.
func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.candles)
}

// At returns the candle at chronological index i.
func (s *Series) At(i int) Candle { return s.candles[i] }

// Candles returns a copy of the candles, oldest first.
func (s *Series) Candles() []Candle {
	out := make([]Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// Slice returns a series holding the first n candles.
// The backing array is shared; neither series ever writes to it.
func (s *Series) Slice(n int) *Series {
	if n > len(s.candles) {
		n = len(s.candles)
	}
	if n < 0 {
		n = 0
	}
	return &Series{candles: s.candles[:n:n]}
}

// Field extracts one field for every candle, oldest first.
func (s *Series) Field(name string) ([]float64, error) {
	if !IsField(name) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	out := make([]float64, len(s.candles))
	for i := range s.candles {
		out[i], _ = s.candles[i].Field(name)
	}
	return out, nil
}
