package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/egisz/crypto-trading-bot/internal/strategy"
)

const (
	defaultStream       = "signals"
	defaultStreamMaxLen = 100000
	defaultMaxBuffered  = 10000

	// debugPlaces is the fixed precision of published debug values.
	debugPlaces = 8
)

// Config configures the signal publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
	Stream   string // stream key for XADD (default "signals")
}

// Cmdable is the subset of the Redis client used for publishing.
type Cmdable interface {
	XAdd(ctx context.Context, a *goredis.XAddArgs) *goredis.StringCmd
	Publish(ctx context.Context, channel string, message interface{}) *goredis.IntCmd
}

// SignalEvent is the published form of one emitted signal.
type SignalEvent struct {
	RunID    string            `json:"run_id"`
	Strategy string            `json:"strategy"`
	Symbol   string            `json:"symbol"`
	Period   string            `json:"period"`
	Time     int64             `json:"time"`
	Index    int               `json:"index"`
	Signal   string            `json:"signal"`
	Close    float64           `json:"close"`
	Debug    map[string]string `json:"debug,omitempty"`
}

// NewSignalEvent converts a period result. Debug values are rendered with
// fixed precision.
func NewSignalEvent(runID, strategyName, symbol, period string, p strategy.PeriodResult) SignalEvent {
	ev := SignalEvent{
		RunID:    runID,
		Strategy: strategyName,
		Symbol:   symbol,
		Period:   period,
		Time:     p.Candle.Time,
		Index:    p.Period,
		Signal:   p.Result.Signal().String(),
		Close:    p.Candle.Close,
	}
	if d := p.Result.Debug(); len(d) > 0 {
		ev.Debug = make(map[string]string, len(d))
		for _, e := range d {
			ev.Debug[e.Key] = strategy.FormatValue(e.Value, debugPlaces)
		}
	}
	return ev
}

// Channel returns the PubSub channel of the event.
func (e SignalEvent) Channel() string {
	return "pub:signal:" + e.Strategy + ":" + e.Symbol
}

// Publisher writes signal events to a Redis Stream (XADD) and announces
// them on PubSub. Calls go through a circuit breaker; while it is open,
// events are buffered locally (oldest dropped beyond the limit) and flushed
// once a publish succeeds again.
type Publisher struct {
	client Cmdable
	cb     *CircuitBreaker
	stream string
	maxLen int64

	mu     sync.Mutex
	buffer []SignalEvent
	maxBuf int

	// Callbacks (optional)
	OnPublish func(time.Duration) // latency of each successful publish
	OnDrop    func()              // an event was dropped from a full buffer
}

// New connects to Redis, pings it and returns a publisher with a
// 5-failure / 10s circuit breaker.
func New(cfg Config) (*Publisher, *goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewPublisher(client, NewCircuitBreaker(5, 10*time.Second), cfg.Stream, 0), client, nil
}

// NewPublisher wraps client. maxBuffered <= 0 selects the default limit.
func NewPublisher(client Cmdable, cb *CircuitBreaker, stream string, maxBuffered int) *Publisher {
	if stream == "" {
		stream = defaultStream
	}
	if maxBuffered <= 0 {
		maxBuffered = defaultMaxBuffered
	}
	return &Publisher{
		client: client,
		cb:     cb,
		stream: stream,
		maxLen: defaultStreamMaxLen,
		maxBuf: maxBuffered,
	}
}

// Breaker returns the publisher's circuit breaker.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

// Publish sends one event. Events buffered during an outage are sent
// first, in order. An open circuit is not an error: the event is buffered.
// A failed send returns the error and keeps the event buffered for retry.
func (p *Publisher) Publish(ctx context.Context, ev SignalEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buffer = append(p.buffer, ev)
	for len(p.buffer) > 0 {
		err := p.cb.Execute(func() error { return p.send(ctx, p.buffer[0]) })
		if err == ErrCircuitOpen {
			p.trimBuffer()
			return nil
		}
		if err != nil {
			p.trimBuffer()
			return err
		}
		p.buffer = p.buffer[1:]
	}
	p.buffer = nil
	return nil
}

// Buffered returns the number of events waiting for the circuit to close.
func (p *Publisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.buffer)
}

// PublishReport publishes every period of rep that emitted a signal.
func (p *Publisher) PublishReport(ctx context.Context, symbol, period string, rep *strategy.Report) (int, error) {
	n := 0
	for _, pr := range rep.Signals() {
		if err := p.Publish(ctx, NewSignalEvent(rep.RunID, rep.Strategy, symbol, period, pr)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Run publishes signal periods received on ch. Blocks until ctx is
// cancelled or ch is closed.
func (p *Publisher) Run(ctx context.Context, runID, strategyName, symbol, period string, ch <-chan strategy.PeriodResult) {
	for {
		select {
		case <-ctx.Done():
			return
		case pr, ok := <-ch:
			if !ok {
				return
			}
			if !pr.Result.HasSignal() {
				continue
			}
			if err := p.Publish(ctx, NewSignalEvent(runID, strategyName, symbol, period, pr)); err != nil {
				slog.Error("redis publish failed", "strategy", strategyName, "time", pr.Candle.Time, "error", err)
			}
		}
	}
}

func (p *Publisher) send(ctx context.Context, ev SignalEvent) error {
	start := time.Now()
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal signal: %w", err)
	}
	if err := p.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: p.stream,
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]interface{}{"data": string(data)},
	}).Err(); err != nil {
		return fmt.Errorf("redis xadd %s: %w", p.stream, err)
	}
	if err := p.client.Publish(ctx, ev.Channel(), string(data)).Err(); err != nil {
		return fmt.Errorf("redis publish %s: %w", ev.Channel(), err)
	}
	if p.OnPublish != nil {
		p.OnPublish(time.Since(start))
	}
	return nil
}

// trimBuffer drops the oldest events beyond the limit. Caller holds p.mu.
func (p *Publisher) trimBuffer() {
	for len(p.buffer) > p.maxBuf {
		p.buffer = p.buffer[1:]
		if p.OnDrop != nil {
			p.OnDrop()
		}
	}
}
