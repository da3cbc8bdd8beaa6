package strategy

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/model"
)

func assertClose(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol %.6f)", name, got, want, tol)
	}
}

func signalsByPeriod(rep *Report) map[int]Signal {
	out := map[int]Signal{}
	for _, p := range rep.Signals() {
		out[p.Period] = p.Result.Signal()
	}
	return out
}

// ────────────────────────────────────────────────────────────
// SMA crossover
// ────────────────────────────────────────────────────────────

// Closes 10,10,10,10,9,8,7,12,14 with SMA(2) / SMA(4):
//
//	i=4: fast 9.5 < slow 9.75, previous 10 <= 10   -> death cross
//	i=7: fast 9.5 > slow 9.0,  previous 7.5 <= 8.5 -> golden cross
var crossPrices = []float64{10, 10, 10, 10, 9, 8, 7, 12, 14}

func TestSMACrossover_Signals(t *testing.T) {
	rep, err := NewRunner(nil).Run(context.Background(), NewSMACrossover(),
		Options{"fast_length": 2, "slow_length": 4}, closes(crossPrices...), ModeBatch)
	if err != nil {
		t.Fatal(err)
	}
	got := signalsByPeriod(rep)
	if len(got) != 2 || got[4] != SignalShort || got[7] != SignalLong {
		t.Fatalf("signals %v, want short@4 long@7", got)
	}

	r := rep.Periods[7].Result
	fast, _ := r.DebugValue("sma_fast")
	slow, _ := r.DebugValue("sma_slow")
	assertClose(t, "sma_fast@7", fast.(float64), 9.5, 1e-12)
	assertClose(t, "sma_slow@7", slow.(float64), 9.0, 1e-12)

	if len(rep.Periods[2].Result.Debug()) != 0 {
		t.Error("warm-up periods must carry no debug values")
	}
}

// RSI(2) at i=4 is 0 (only losses) and at i=7 about 85.1, so the default
// 70/30 filter suppresses both crosses.
func TestSMACrossover_RSIFilter(t *testing.T) {
	opts := Options{"fast_length": 2, "slow_length": 4, "rsi_enabled": true, "rsi_length": 2}
	rep, err := NewRunner(nil).Run(context.Background(), NewSMACrossover(), opts, closes(crossPrices...), ModeBatch)
	if err != nil {
		t.Fatal(err)
	}
	if got := signalsByPeriod(rep); len(got) != 0 {
		t.Errorf("expected every cross filtered, got %v", got)
	}
	rsi, ok := rep.Periods[7].Result.DebugValue("rsi")
	if !ok {
		t.Fatal("rsi debug value missing")
	}
	assertClose(t, "rsi@7", rsi.(float64), 100*2.5/2.9375, 1e-9)

	opts["overbought"], opts["oversold"] = 90.0, -1.0
	rep, err = NewRunner(nil).Run(context.Background(), NewSMACrossover(), opts, closes(crossPrices...), ModeBatch)
	if err != nil {
		t.Fatal(err)
	}
	if got := signalsByPeriod(rep); len(got) != 2 {
		t.Errorf("relaxed filter: signals %v, want 2", got)
	}
}

// ────────────────────────────────────────────────────────────
// Custom indicators example
// ────────────────────────────────────────────────────────────

func TestCustomIndicators_WeekdaySignals(t *testing.T) {
	candles := dailyCandles(40)
	rep, err := NewRunner(nil).Run(context.Background(), NewCustomIndicators(), nil, candles, ModeBatch)
	if err != nil {
		t.Fatal(err)
	}
	for i, p := range rep.Periods {
		want := SignalNone
		switch candles.At(i).Timestamp().Weekday() {
		case time.Sunday:
			want = SignalLong
		case time.Tuesday:
			want = SignalShort
		}
		if p.Result.Signal() != want {
			t.Errorf("period %d: %v, want %v", i, p.Result.Signal(), want)
		}
	}
	if got := rep.Periods[0].Result.Signal(); got != SignalLong {
		t.Errorf("first candle is a Sunday, got %v", got)
	}
}

func TestCustomIndicators_DebugColumns(t *testing.T) {
	rep, err := NewRunner(nil).Run(context.Background(), NewCustomIndicators(), nil, dailyCandles(40), ModeBatch)
	if err != nil {
		t.Fatal(err)
	}
	keys := []string{"highpoint", "tema", "sma", "tulindStoch"}
	for _, p := range rep.Periods {
		d := p.Result.Debug()
		if len(d) != len(keys) {
			t.Fatalf("period %d: debug %v", p.Period, d)
		}
		for i, k := range keys {
			if d[i].Key != k {
				t.Errorf("period %d: debug[%d] = %s, want %s", p.Period, i, d[i].Key, k)
			}
		}
	}

	val := func(period int, key string) indicator.Value {
		v, _ := rep.Periods[period].Result.DebugValue(key)
		return v.(indicator.Value)
	}
	// TEMA(6) warms up for 3*(6-1) periods; STOCH(21,5,5) for 20+4+4.
	if val(14, "tema").IsSet() || !val(15, "tema").IsSet() {
		t.Error("tema warm-up boundary is not at 15")
	}
	if val(27, "tulindStoch").IsSet() || !val(28, "tulindStoch").IsSet() {
		t.Error("stoch warm-up boundary is not at 28")
	}
	if _, ok := val(28, "tulindStoch").Field("stoch_k"); !ok {
		t.Error("stoch must expose stoch_k")
	}
	if val(4, "sma").IsSet() || !val(5, "sma").IsSet() {
		t.Error("mySMA warm-up boundary is not at 5")
	}

	found := false
	for i := range rep.Periods {
		if val(i, "highpoint").IsSet() {
			found = true
			break
		}
	}
	if !found {
		t.Error("expected at least one pivot high in a sine series")
	}
	if cols := rep.Columns; len(cols) != 4 || cols[0].Type != "oscillator" {
		t.Errorf("columns %v", cols)
	}
}

func TestTVSMA_SkipsZeroAndMissing(t *testing.T) {
	src := indicator.Source{
		Candles: make([]model.Candle, 5),
		Values:  indicator.Series{indicator.Num(1), indicator.Num(0), indicator.Num(3), indicator.None(), indicator.Num(5)},
	}
	out, err := tvSMA(context.Background(), src, indicator.Options{"length": 2})
	if err != nil {
		t.Fatal(err)
	}
	// i=1 current is zero; i=2 averages only 3; i=4 averages only 5
	want := indicator.Series{indicator.None(), indicator.None(), indicator.Num(3), indicator.None(), indicator.Num(5)}
	if !out["mySMA"].Equal(want) {
		t.Errorf("got %v, want %v", out["mySMA"], want)
	}
}

func TestPivotHigh_ReadsWick(t *testing.T) {
	src := indicator.Source{
		Candles: make([]model.Candle, 3),
		Values: indicator.Series{
			indicator.None(),
			indicator.Fields(map[string]float64{"high.close": 10, "high.high": 11}),
			indicator.Fields(map[string]float64{"low.close": 5, "low.low": 4}),
		},
	}
	out, _ := pivotHigh(context.Background(), src, nil)
	want := indicator.Series{indicator.None(), indicator.Num(11), indicator.None()}
	if !out["highPoint"].Equal(want) {
		t.Errorf("got %v, want %v", out["highPoint"], want)
	}
}

func TestLookup(t *testing.T) {
	for _, name := range Names() {
		s, err := Lookup(name)
		if err != nil || s.Name() != name {
			t.Errorf("Lookup(%q) = %v, %v", name, s, err)
		}
	}
	if _, err := Lookup("missing"); err == nil {
		t.Error("expected error for unknown strategy")
	}
}

func TestResolveOptions_DefaultsUnderOverrides(t *testing.T) {
	opts := ResolveOptions(NewSMACrossover(), Options{"fast_length": 5})
	if opts.Int("fast_length", 0) != 5 || opts.Int("slow_length", 0) != 21 {
		t.Errorf("resolved %v", opts)
	}
}
