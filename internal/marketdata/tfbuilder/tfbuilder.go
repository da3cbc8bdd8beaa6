// Package tfbuilder resamples candles into a coarser timeframe.
//
// A Builder keeps one forming candle. Candles of the same bucket are merged
// into it in O(1); the first candle of a later bucket finalizes and returns
// it. Bucket boundaries are aligned to the unix epoch in the candles' own
// time unit (seconds or milliseconds).
package tfbuilder

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// ParsePeriod converts "1m", "15m", "1h", "4h", "1d" or "1w" to a duration.
// Go duration strings such as "90s" are accepted too.
func ParsePeriod(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		unit := map[byte]time.Duration{'d': 24 * time.Hour, 'w': 7 * 24 * time.Hour}[s[len(s)-1]]
		if unit > 0 {
			n, err := strconv.Atoi(s[:len(s)-1])
			if err != nil || n <= 0 {
				return 0, fmt.Errorf("invalid period %q", s)
			}
			return time.Duration(n) * unit, nil
		}
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < time.Second {
		return 0, fmt.Errorf("invalid period %q", s)
	}
	return d, nil
}

// Builder resamples one market's candles into one timeframe.
// It is not safe for concurrent use; run it in a single goroutine.
type Builder struct {
	period  time.Duration
	size    int64 // bucket size in candle time units, fixed by the first candle
	bucket  int64
	candle  model.Candle
	started bool

	// OnStaleCandle is called when a candle older than the forming bucket
	// is rejected (optional).
	OnStaleCandle func(c model.Candle)
}

// New creates a builder for period (at least one second).
func New(period time.Duration) (*Builder, error) {
	if period < time.Second {
		return nil, fmt.Errorf("period %v is shorter than one second", period)
	}
	return &Builder{period: period}, nil
}

// Add merges c into the forming candle. When c starts a later bucket, the
// previous candle is finalized and returned with ok set.
func (b *Builder) Add(c model.Candle) (final model.Candle, ok bool) {
	if b.size == 0 {
		b.size = int64(b.period / time.Second)
		if model.IsMillis(c.Time) {
			b.size = b.period.Milliseconds()
		}
	}
	bucket := c.Time - mod(c.Time, b.size)

	if b.started && bucket < b.bucket {
		if b.OnStaleCandle != nil {
			b.OnStaleCandle(c)
		}
		return model.Candle{}, false
	}

	if b.started && bucket > b.bucket {
		final, ok = b.candle, true
		b.started = false
	}

	if !b.started {
		b.bucket = bucket
		b.started = true
		b.candle = model.Candle{
			Time:   bucket,
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Volume,
		}
		return final, ok
	}

	// Same bucket: merge OHLCV
	fc := &b.candle
	if c.High > fc.High {
		fc.High = c.High
	}
	if c.Low < fc.Low {
		fc.Low = c.Low
	}
	fc.Close = c.Close
	fc.Volume += c.Volume
	return model.Candle{}, false
}

// Forming returns the candle currently being built.
func (b *Builder) Forming() (model.Candle, bool) {
	return b.candle, b.started
}

// Flush finalizes and returns the forming candle, if any.
func (b *Builder) Flush() (model.Candle, bool) {
	if !b.started {
		return model.Candle{}, false
	}
	b.started = false
	return b.candle, true
}

// Run consumes candles from in and sends finalized candles to out. The
// forming candle is flushed when in is closed. Blocks until ctx is
// cancelled or in is closed; it never closes out.
func (b *Builder) Run(ctx context.Context, in <-chan model.Candle, out chan<- model.Candle) error {
	send := func(c model.Candle) error {
		select {
		case out <- c:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case c, ok := <-in:
			if !ok {
				if f, ok := b.Flush(); ok {
					return send(f)
				}
				return nil
			}
			if f, ok := b.Add(c); ok {
				if err := send(f); err != nil {
					return err
				}
			}
		}
	}
}

// Resample converts s to period in one pass. The last bucket is included
// even when it may still be incomplete.
func Resample(s *model.Series, period time.Duration) (*model.Series, error) {
	b, err := New(period)
	if err != nil {
		return nil, err
	}
	out := make([]model.Candle, 0, s.Len())
	for i := 0; i < s.Len(); i++ {
		if f, ok := b.Add(s.At(i)); ok {
			out = append(out, f)
		}
	}
	if f, ok := b.Flush(); ok {
		out = append(out, f)
	}
	return model.NewSeries(out)
}

func mod(t, n int64) int64 {
	m := t % n
	if m < 0 {
		m += n
	}
	return m
}
