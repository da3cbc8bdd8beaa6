package talib

import (
	"context"
	"math"
	"testing"
)

func closes(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 100 + 5*math.Sin(float64(i)/3)
	}
	return out
}

func TestCall_SMA(t *testing.T) {
	in := []float64{1, 2, 3, 4, 5}
	out, lookback, err := Call(context.Background(), "sma", [][]float64{in}, []float64{3})
	if err != nil {
		t.Fatal(err)
	}
	if lookback != 2 {
		t.Errorf("lookback = %d, want 2", lookback)
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if math.Abs(out[0][i+2]-w) > 1e-9 {
			t.Errorf("sma[%d] = %v, want %v", i+2, out[0][i+2], w)
		}
	}
}

func TestCall_ShortInputSkipsLibrary(t *testing.T) {
	out, lookback, err := Call(context.Background(), "macd", [][]float64{closes(5)}, []float64{12, 26, 9})
	if err != nil {
		t.Fatal(err)
	}
	if lookback != 33 {
		t.Errorf("lookback = %d, want 33", lookback)
	}
	if len(out) != 3 || len(out[0]) != 5 {
		t.Fatalf("unexpected shape %d x %d", len(out), len(out[0]))
	}
}

func TestCall_Validation(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		ind     string
		inputs  [][]float64
		options []float64
	}{
		{"unknown", "nope", [][]float64{closes(10)}, []float64{3}},
		{"input count", "atr", [][]float64{closes(10)}, []float64{3}},
		{"option count", "sma", [][]float64{closes(10)}, nil},
		{"non-positive option", "sma", [][]float64{closes(10)}, []float64{0}},
		{"ragged inputs", "sar", [][]float64{closes(10), closes(9)}, []float64{0.02, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Call(ctx, tt.ind, tt.inputs, tt.options); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestCall_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, _, err := Call(ctx, "ema", [][]float64{closes(30)}, []float64{5}); err == nil {
		t.Fatal("expected context error")
	}
}

func TestCall_EveryIndicatorKeepsLength(t *testing.T) {
	n := 120
	for _, name := range Names() {
		ind, _ := Describe(name)
		inputs := make([][]float64, len(ind.Sources))
		for i := range inputs {
			inputs[i] = closes(n)
		}
		// high >= low for the multi-input functions
		for i, src := range ind.Sources {
			for j := range inputs[i] {
				switch src {
				case "high":
					inputs[i][j] += 1
				case "low":
					inputs[i][j] -= 1
				case "volume":
					inputs[i][j] = 1000 + float64(j%5)
				}
			}
		}
		options := make([]float64, ind.Options)
		for i := range options {
			options[i] = 3
		}
		if name == "sar" {
			options = []float64{0.02, 0.2}
		}
		if name == "bbands" {
			options = []float64{5, 2}
		}
		out, _, err := Call(context.Background(), name, inputs, options)
		if err != nil {
			t.Errorf("%s: %v", name, err)
			continue
		}
		if len(out) != len(ind.Outputs) {
			t.Errorf("%s: %d outputs, want %d", name, len(out), len(ind.Outputs))
		}
		for j := range out {
			if len(out[j]) != n {
				t.Errorf("%s output %d: length %d, want %d", name, j, len(out[j]), n)
			}
		}
	}
}

func TestAdapter_Signature(t *testing.T) {
	sources, nopts, outputs, ok := Adapter{}.Signature("stoch")
	if !ok || len(sources) != 3 || nopts != 3 || len(outputs) != 2 {
		t.Fatalf("unexpected stoch signature %v %d %v %v", sources, nopts, outputs, ok)
	}
	sources[0] = "changed"
	again, _, _, _ := Adapter{}.Signature("stoch")
	if again[0] != "high" {
		t.Error("Signature exposed catalog storage")
	}
	if _, _, _, ok := (Adapter{}).Signature("nope"); ok {
		t.Error("expected unknown indicator")
	}
}
