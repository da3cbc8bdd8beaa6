package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/model"
	"github.com/egisz/crypto-trading-bot/internal/strategy"
)

func openStore(t *testing.T) (*Writer, *Reader) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	w, err := New(WriterConfig{DBPath: path})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	r, err := NewReader(path)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return w, r
}

func TestCandles_SaveAndRead(t *testing.T) {
	w, r := openStore(t)
	ctx := context.Background()

	commits := 0
	w.OnCommit = func(time.Duration) { commits++ }

	batch := CandleBatch{Symbol: "BTCUSDT", Period: "1h", Candles: []model.Candle{
		{Time: 7200, Open: 2, High: 3, Low: 1.5, Close: 2.5, Volume: 20},
		{Time: 3600, Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10},
	}}
	if err := w.SaveCandles(ctx, batch); err != nil {
		t.Fatal(err)
	}
	// Upsert replaces the existing row
	batch.Candles = []model.Candle{{Time: 7200, Open: 2, High: 4, Low: 1.5, Close: 3, Volume: 25}}
	if err := w.SaveCandles(ctx, batch); err != nil {
		t.Fatal(err)
	}
	if commits != 2 {
		t.Errorf("OnCommit called %d times, want 2", commits)
	}

	s, err := r.ReadCandles(ctx, "BTCUSDT", "1h", 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.Len() != 2 || s.At(0).Time != 3600 || s.At(1).Close != 3 {
		t.Errorf("unexpected candles %+v", s.Candles())
	}

	last, err := w.GetLastTimestamp(ctx, "BTCUSDT", "1h")
	if err != nil || last != 7200 {
		t.Errorf("GetLastTimestamp = %d, %v", last, err)
	}
	if last, _ := w.GetLastTimestamp(ctx, "ETHUSDT", "1h"); last != 0 {
		t.Errorf("empty market last timestamp = %d", last)
	}

	after, err := r.ReadCandles(ctx, "BTCUSDT", "1h", 3600)
	if err != nil || after.Len() != 1 {
		t.Errorf("afterTS filter: %v %v", after.Candles(), err)
	}
}

func TestRun_BatchesFromChannel(t *testing.T) {
	w, r := openStore(t)
	ch := make(chan model.Candle, 3)
	for i := int64(1); i <= 3; i++ {
		ch <- model.Candle{Time: i, Open: 1, High: 1, Low: 1, Close: float64(i), Volume: 1}
	}
	close(ch)
	w.Run(context.Background(), "X", "1m", ch)

	s, err := r.ReadCandles(context.Background(), "X", "1m", 0)
	if err != nil || s.Len() != 3 {
		t.Fatalf("got %d candles, %v", s.Len(), err)
	}
}

func TestSaveReport_Journal(t *testing.T) {
	w, r := openStore(t)
	ctx := context.Background()

	rep := &strategy.Report{
		RunID:    "run-1",
		Strategy: "sma_crossover",
		Mode:     strategy.ModeStreaming,
		Options:  strategy.Options{"fast_length": 2},
		Periods: []strategy.PeriodResult{
			{Period: 0, Candle: model.Candle{Time: 100}, Result: strategy.Empty()},
			{Period: 1, Candle: model.Candle{Time: 200}, Result: strategy.NewSignalResult(strategy.SignalLong,
				strategy.DebugEntry{Key: "sma_fast", Value: 1.0 / 3},
				strategy.DebugEntry{Key: "sma_slow", Value: 2.0},
			)},
		},
	}
	if err := w.SaveReport(ctx, "BTCUSDT", "1h", rep); err != nil {
		t.Fatal(err)
	}

	run, err := r.ReadRun(ctx, "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if run.Strategy != "sma_crossover" || run.Mode != "streaming" || run.Periods != 2 || run.Options["fast_length"] != 2.0 {
		t.Errorf("run record %+v", run)
	}

	all, err := r.ReadSignals(ctx, "run-1", false)
	if err != nil || len(all) != 2 {
		t.Fatalf("ReadSignals: %v %v", all, err)
	}
	only, err := r.ReadSignals(ctx, "run-1", true)
	if err != nil || len(only) != 1 {
		t.Fatalf("ReadSignals(onlySignals): %v %v", only, err)
	}
	got := only[0]
	if got.Signal != strategy.SignalLong || got.Time != 200 || got.Period != 1 {
		t.Errorf("signal record %+v", got)
	}
	if len(got.Debug) != 2 || got.Debug[0].Key != "sma_fast" || got.Debug[0].Value != "0.33333333" {
		t.Errorf("debug %+v", got.Debug)
	}

	if err := w.SaveReport(ctx, "BTCUSDT", "1h", rep); err == nil {
		t.Error("expected error journaling the same run twice")
	}
}
