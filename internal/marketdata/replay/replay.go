// Package replay emits a historical candle series at a configurable speed,
// so follow-mode strategy runs can be exercised against stored data.
package replay

import (
	"context"
	"log/slog"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

// maxGap caps the sleep between two candles.
const maxGap = 5 * time.Second

// Replayer replays one candle series.
type Replayer struct {
	series *model.Series
	log    *slog.Logger

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Replayer for s. A nil logger uses slog.Default.
func New(s *model.Series, log *slog.Logger) *Replayer {
	if log == nil {
		log = slog.Default()
	}
	return &Replayer{series: s, log: log, sleep: sleepCtx}
}

// Run emits every candle into out in chronological order. speed controls the
// playback rate: 1.0 = real time, 10.0 = 10x, 0 = as fast as possible.
// Candles at or before fromTime are skipped (0 = all). Run does not close out.
func (r *Replayer) Run(ctx context.Context, fromTime int64, speed float64, out chan<- model.Candle) error {
	if r.series == nil || r.series.Len() == 0 {
		r.log.Warn("no candles to replay")
		return nil
	}
	r.log.Info("replay started", "candles", r.series.Len(), "speed", speed)

	var prev time.Time
	emitted := 0
	for i := 0; i < r.series.Len(); i++ {
		c := r.series.At(i)
		if fromTime != 0 && c.Time <= fromTime {
			continue
		}

		// Simulate time gaps between candles
		ts := c.Timestamp()
		if speed > 0 && !prev.IsZero() {
			if gap := ts.Sub(prev); gap > 0 {
				scaled := time.Duration(float64(gap) / speed)
				if scaled > maxGap {
					scaled = maxGap
				}
				if err := r.sleep(ctx, scaled); err != nil {
					r.log.Info("replay cancelled", "emitted", emitted)
					return err
				}
			}
		}
		prev = ts

		select {
		case out <- c:
			emitted++
		case <-ctx.Done():
			r.log.Info("replay cancelled", "emitted", emitted)
			return ctx.Err()
		}
	}

	r.log.Info("replay completed", "emitted", emitted)
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
