package lookback

import (
	"context"
	"errors"
	"testing"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/model"
)

func testResult(t *testing.T) *indicator.Result {
	t.Helper()
	cs := make([]model.Candle, 6)
	for i := range cs {
		p := float64(10 + i)
		cs[i] = model.Candle{Time: int64(100 * (i + 1)), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 1}
	}
	wicks := func(_ context.Context, src indicator.Source, _ indicator.Options) (map[string]indicator.Series, error) {
		out := make(indicator.Series, src.Len())
		for i := range out {
			out[i] = indicator.Fields(map[string]float64{"high.close": float64(i), "high.high": float64(i) + 0.5})
		}
		return map[string]indicator.Series{"pp": out}, nil
	}
	specs := []indicator.Spec{
		{Key: "sma", Provider: indicator.Builtin("sma"), Options: indicator.Options{"length": 2}},
		{Key: "macd", Provider: indicator.Builtin("macd"), Options: indicator.Options{"fast_length": 2, "slow_length": 3, "signal_length": 2}},
		{Key: "pp", Provider: indicator.Custom(wicks)},
	}
	res, err := indicator.NewEngine().Compute(context.Background(), model.MustSeries(cs), specs)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestReverse(t *testing.T) {
	s := indicator.Series{indicator.Num(1), indicator.None(), indicator.Num(3)}
	r := Reverse(s)
	want := indicator.Series{indicator.Num(3), indicator.None(), indicator.Num(1)}
	if !r.Equal(want) {
		t.Fatalf("got %v, want %v", r, want)
	}
	r[0] = indicator.Num(9)
	if f, _ := s[2].Float(); f != 3 {
		t.Error("Reverse must copy")
	}
}

func TestView_MostRecentFirst(t *testing.T) {
	v := NewView(testResult(t))
	s, ok := v.Series("sma")
	if !ok || len(s) != 6 {
		t.Fatalf("Series: %v %v", s, ok)
	}
	// closes 10..15, SMA(2) of the last period = 14.5
	if f, _ := s[0].Float(); f != 14.5 {
		t.Errorf("most recent SMA = %v, want 14.5", f)
	}
	if s[5].IsSet() {
		t.Error("oldest SMA must be warm-up")
	}

	val, err := v.At("sma", 1)
	if err != nil {
		t.Fatal(err)
	}
	if f, _ := val.Float(); f != 13.5 {
		t.Errorf("At(1) = %v, want 13.5", f)
	}
}

func TestView_UntilHidesLaterPeriods(t *testing.T) {
	v, err := NewView(testResult(t)).Until(2)
	if err != nil {
		t.Fatal(err)
	}
	if v.Len() != 3 {
		t.Fatalf("Len = %d, want 3", v.Len())
	}
	s, _ := v.Series("sma")
	if len(s) != 3 {
		t.Fatalf("visible series length %d, want 3", len(s))
	}
	snap, err := v.SnapshotAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if snap.Time() != 300 || snap.Period() != 2 {
		t.Errorf("snapshot at period %d time %d", snap.Period(), snap.Time())
	}
	if snap.Back("sma", -1).IsSet() {
		t.Error("negative offsets must not reach later periods")
	}
}

func TestView_OutOfRange(t *testing.T) {
	v := NewView(testResult(t))
	if _, err := v.SnapshotAt(6); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("SnapshotAt(6): %v", err)
	}
	if _, err := v.Until(-1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Until(-1): %v", err)
	}
	if _, err := v.At("sma", 6); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("At(6): %v", err)
	}
	if _, err := v.At("nope", 0); err == nil {
		t.Error("expected unknown key error")
	}
}

func TestSnapshot_PathsAndHistory(t *testing.T) {
	snap, err := NewView(testResult(t)).SnapshotAt(0)
	if err != nil {
		t.Fatal(err)
	}
	if c := snap.Candle(); c.Close != 15 {
		t.Errorf("candle close %v", c.Close)
	}
	if f, ok := snap.Float("sma"); !ok || f != 14.5 {
		t.Errorf("sma = %v %v", f, ok)
	}
	if _, ok := snap.Float("macd.histogram"); !ok {
		t.Error("macd.histogram not resolved")
	}
	if f, ok := snap.Float("pp.high.close"); !ok || f != 5 {
		t.Errorf("pp.high.close = %v %v", f, ok)
	}
	if f, ok := snap.FloatBack("pp.high.high", 2); !ok || f != 3.5 {
		t.Errorf("pp.high.high two back = %v %v", f, ok)
	}
	if _, ok := snap.Float("sma.nope"); ok {
		t.Error("unknown field must not resolve")
	}
	if snap.Back("sma", 10).IsSet() {
		t.Error("history before the first period must be None")
	}
	keys := snap.Keys()
	if len(keys) != 3 || keys[0] != "sma" || keys[2] != "pp" {
		t.Errorf("keys %v", keys)
	}
}
