package indicator

import (
	"math"
	"testing"

	"github.com/egisz/crypto-trading-bot/internal/model"
)

func TestValue_NoneIsNotZero(t *testing.T) {
	if None().IsSet() {
		t.Error("None must not be set")
	}
	if !Num(0).IsSet() {
		t.Error("a computed zero must be set")
	}
	if None().Equal(Num(0)) {
		t.Error("None must differ from Num(0)")
	}
}

func TestValue_FieldsAreCopied(t *testing.T) {
	src := map[string]float64{"a": 1}
	v := Fields(src)
	src["a"] = 2
	if f, _ := v.Field("a"); f != 1 {
		t.Errorf("Fields kept a reference to the input map: %v", f)
	}
	m := v.Map()
	m["a"] = 3
	if f, _ := v.Field("a"); f != 1 {
		t.Errorf("Map exposed internal storage: %v", f)
	}
}

func TestValue_BarFields(t *testing.T) {
	v := Bar(model.Candle{Time: 42, Open: 1, High: 3, Low: 0.5, Close: 2, Volume: 9})
	if f, ok := v.Field("time"); !ok || f != 42 {
		t.Errorf("time: %v %v", f, ok)
	}
	if f, ok := v.Field("hl2"); !ok || f != 1.75 {
		t.Errorf("hl2: %v %v", f, ok)
	}
	if _, ok := v.Float(); ok {
		t.Error("a bar is not a scalar")
	}
}

func TestSeries_ProjectAndEqual(t *testing.T) {
	s := Series{None(), Fields(map[string]float64{"x": 1}), Fields(map[string]float64{"y": 2}), Num(3)}
	p := s.Project("x")
	want := Series{None(), Num(1), None(), None()}
	if !p.Equal(want) {
		t.Errorf("Project: got %v, want %v", p, want)
	}

	nan := Series{Num(math.NaN())}
	if !nan.Equal(Series{Num(math.NaN())}) {
		t.Error("NaN entries must compare equal for determinism checks")
	}
}

func TestNumSeries_WarmUp(t *testing.T) {
	s := NumSeries([]float64{0, 0, 5, 6}, 2)
	if s[1].IsSet() || !s[2].IsSet() {
		t.Errorf("unexpected warm-up handling: %v", s)
	}
	vals, ok := s.Floats()
	if vals[3] != 6 || ok[0] {
		t.Errorf("Floats: %v %v", vals, ok)
	}
}

func TestOptions_Getters(t *testing.T) {
	o := Options{"a": 3.0, "b": "7", "c": int64(2), "s": 12}
	if o.Int("a", 0) != 3 || o.Int("b", 0) != 7 || o.Int("c", 0) != 2 || o.Int("missing", 9) != 9 {
		t.Error("Int conversions failed")
	}
	if o.Float("s", 0) != 12 || o.Float("b", 0) != 7 {
		t.Error("Float conversions failed")
	}
	if o.String("s", "") != "12" || o.String("missing", "d") != "d" {
		t.Error("String conversions failed")
	}

	flags := Options{"t": true, "y": "true", "n": 0, "one": 1.0, "bad": "maybe"}
	if !flags.Bool("t", false) || !flags.Bool("y", false) || flags.Bool("n", true) || !flags.Bool("one", false) {
		t.Error("Bool conversions failed")
	}
	if !flags.Bool("bad", true) || flags.Bool("missing", false) {
		t.Error("Bool must fall back to the default")
	}

	merged := Options{"a": 1}.Merge(Options{"a": 0, "z": 5})
	if merged.Int("a", 0) != 1 || merged.Int("z", 0) != 5 {
		t.Errorf("Merge: %v", merged)
	}
}
