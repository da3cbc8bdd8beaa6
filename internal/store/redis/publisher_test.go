package redis

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/egisz/crypto-trading-bot/internal/model"
	"github.com/egisz/crypto-trading-bot/internal/strategy"
)

// fakeRedis records XADD / PUBLISH calls and fails while down is set.
type fakeRedis struct {
	down      bool
	streams   []string
	entries   []SignalEvent
	published []string
}

func (f *fakeRedis) XAdd(_ context.Context, a *goredis.XAddArgs) *goredis.StringCmd {
	if f.down {
		return goredis.NewStringResult("", errors.New("connection refused"))
	}
	values := a.Values.(map[string]interface{})
	var ev SignalEvent
	if err := json.Unmarshal([]byte(values["data"].(string)), &ev); err != nil {
		return goredis.NewStringResult("", err)
	}
	f.streams = append(f.streams, a.Stream)
	f.entries = append(f.entries, ev)
	return goredis.NewStringResult("1-0", nil)
}

func (f *fakeRedis) Publish(_ context.Context, channel string, _ interface{}) *goredis.IntCmd {
	if f.down {
		return goredis.NewIntResult(0, errors.New("connection refused"))
	}
	f.published = append(f.published, channel)
	return goredis.NewIntResult(1, nil)
}

func event(i int) SignalEvent {
	return SignalEvent{RunID: "r", Strategy: "s", Symbol: "BTC", Period: "1h", Time: int64(i), Index: i, Signal: "long"}
}

func TestPublisher_PublishesToStreamAndChannel(t *testing.T) {
	fake := &fakeRedis{}
	p := NewPublisher(fake, NewCircuitBreaker(3, time.Minute), "", 0)

	published := 0
	p.OnPublish = func(time.Duration) { published++ }
	if err := p.Publish(context.Background(), event(1)); err != nil {
		t.Fatal(err)
	}
	if len(fake.entries) != 1 || fake.streams[0] != "signals" || fake.entries[0].Time != 1 {
		t.Errorf("stream entries %v on %v", fake.entries, fake.streams)
	}
	if len(fake.published) != 1 || fake.published[0] != "pub:signal:s:BTC" {
		t.Errorf("published %v", fake.published)
	}
	if published != 1 {
		t.Errorf("OnPublish called %d times", published)
	}
}

func TestPublisher_BuffersWhileOpenAndFlushesInOrder(t *testing.T) {
	fake := &fakeRedis{down: true}
	cb, clock := newTestBreaker(1, time.Second)
	p := NewPublisher(fake, cb, "sig", 0)
	ctx := context.Background()

	if err := p.Publish(ctx, event(1)); err == nil {
		t.Fatal("expected the failing send to return an error")
	}
	if cb.CurrentState() != StateOpen {
		t.Fatalf("breaker %v, want open", cb.CurrentState())
	}
	for i := 2; i <= 3; i++ {
		if err := p.Publish(ctx, event(i)); err != nil {
			t.Fatalf("open circuit must buffer, got %v", err)
		}
	}
	if p.Buffered() != 3 {
		t.Fatalf("buffered %d, want 3", p.Buffered())
	}

	fake.down = false
	clock.advance(2 * time.Second)
	if err := p.Publish(ctx, event(4)); err != nil {
		t.Fatal(err)
	}
	if p.Buffered() != 0 {
		t.Errorf("buffer not drained: %d", p.Buffered())
	}
	if len(fake.entries) != 4 {
		t.Fatalf("entries %v", fake.entries)
	}
	for i, ev := range fake.entries {
		if ev.Time != int64(i+1) {
			t.Errorf("entry %d has time %d, want %d", i, ev.Time, i+1)
		}
	}
}

func TestPublisher_DropsOldestBeyondLimit(t *testing.T) {
	fake := &fakeRedis{down: true}
	cb, _ := newTestBreaker(1, time.Hour)
	p := NewPublisher(fake, cb, "", 2)
	dropped := 0
	p.OnDrop = func() { dropped++ }

	for i := 1; i <= 4; i++ {
		p.Publish(context.Background(), event(i))
	}
	if p.Buffered() != 2 || dropped != 2 {
		t.Errorf("buffered %d dropped %d, want 2 and 2", p.Buffered(), dropped)
	}
}

func TestPublisher_PublishReportOnlySignals(t *testing.T) {
	fake := &fakeRedis{}
	p := NewPublisher(fake, NewCircuitBreaker(3, time.Minute), "", 0)
	rep := &strategy.Report{
		RunID:    "run-9",
		Strategy: "sma_crossover",
		Periods: []strategy.PeriodResult{
			{Period: 0, Candle: model.Candle{Time: 10}, Result: strategy.Empty()},
			{Period: 1, Candle: model.Candle{Time: 20, Close: 101.5}, Result: strategy.NewSignalResult(strategy.SignalShort,
				strategy.DebugEntry{Key: "sma_fast", Value: 2.0 / 3})},
		},
	}
	n, err := p.PublishReport(context.Background(), "ETH", "15m", rep)
	if err != nil || n != 1 {
		t.Fatalf("PublishReport = %d, %v", n, err)
	}
	ev := fake.entries[0]
	if ev.RunID != "run-9" || ev.Signal != "short" || ev.Index != 1 || ev.Close != 101.5 || ev.Period != "15m" {
		t.Errorf("event %+v", ev)
	}
	if ev.Debug["sma_fast"] != "0.66666667" {
		t.Errorf("debug %v", ev.Debug)
	}
}

func TestPublisher_RunSkipsEmptyPeriods(t *testing.T) {
	fake := &fakeRedis{}
	p := NewPublisher(fake, NewCircuitBreaker(3, time.Minute), "", 0)
	ch := make(chan strategy.PeriodResult, 3)
	ch <- strategy.PeriodResult{Period: 0, Result: strategy.Empty()}
	ch <- strategy.PeriodResult{Period: 1, Result: strategy.NewSignalResult(strategy.SignalLong)}
	ch <- strategy.PeriodResult{Period: 2, Result: strategy.NewSignalResult(strategy.SignalClose)}
	close(ch)

	p.Run(context.Background(), "r", "s", "BTC", "1h", ch)
	if len(fake.entries) != 2 || fake.entries[1].Signal != "close" {
		t.Errorf("entries %+v", fake.entries)
	}
}
