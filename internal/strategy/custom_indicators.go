package strategy

import (
	"context"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/lookback"
)

// CustomIndicators shows every provider kind side by side: a builtin
// pivot detector, a custom indicator reading its output, a custom
// TradingView-style SMA, a builtin SMA and two external library calls.
// It goes long on Sundays and short on Tuesdays (UTC).
type CustomIndicators struct{}

func NewCustomIndicators() *CustomIndicators { return &CustomIndicators{} }

func (CustomIndicators) Name() string { return "example_custom_indicators" }

func (CustomIndicators) DefaultOptions() Options {
	return Options{
		"period":      "1h",
		"sma_length":  6,
		"tema_length": 6,
		"left":        5,
		"right":       5,
	}
}

func (CustomIndicators) Columns() []Column {
	return []Column{
		{Label: "SMA", Value: "sma", Type: "oscillator", Range: []float64{100, -100}},
		{Label: "highPoint", Value: "highpoint"},
		{Label: "tema", Value: "tema"},
		{Label: "tulindStoch", Value: "tulindStoch"},
	}
}

func (CustomIndicators) DeclareIndicators(reg *indicator.Registry, opts Options) error {
	temaLength := opts.Int("tema_length", 6)
	specs := []indicator.Spec{
		{
			Key:      "pivot_points",
			Provider: indicator.Builtin("pivot_points_high_low"),
			Options:  indicator.Options{"left": opts.Int("left", 5), "right": opts.Int("right", 5)},
		},
		{Key: "highPoint", Provider: indicator.Custom(pivotHigh, "highPoint"), DependsOn: "pivot_points"},
		{Key: "mySMA", Provider: indicator.Custom(tvSMA, "mySMA"), Options: indicator.Options{"length": opts.Int("sma_length", 6)}},
		{Key: "sma", Provider: indicator.Builtin("sma"), Options: indicator.Options{"length": temaLength}},
		{Key: "tema", Provider: indicator.External("tema", nil, []float64{float64(temaLength)}, nil)},
		{
			Key:      "tulindStoch",
			Provider: indicator.External("stoch", []string{"high", "low", "close"}, []float64{21, 5, 5}, []string{"stoch_k", "stoch_d"}),
		},
	}
	for _, s := range specs {
		if err := reg.Register(s); err != nil {
			return err
		}
	}
	return nil
}

func (CustomIndicators) EvaluatePeriod(_ context.Context, snap *lookback.Snapshot, _ Options) (SignalResult, error) {
	b := NewBuilder()
	c := snap.Candle()
	switch c.Timestamp().Weekday() {
	case time.Sunday:
		b.SetSignal(SignalLong)
	case time.Tuesday:
		b.SetSignal(SignalShort)
	}

	b.AddDebug("highpoint", snap.Get("highPoint"))
	b.AddDebug("tema", snap.Get("tema"))
	b.AddDebug("sma", snap.Get("mySMA"))
	b.AddDebug("tulindStoch", snap.Get("tulindStoch"))
	return b.Build(), nil
}

// pivotHigh extracts the wick of every pivot high found by
// pivot_points_high_low.
func pivotHigh(_ context.Context, src indicator.Source, _ indicator.Options) (map[string]indicator.Series, error) {
	out := make(indicator.Series, len(src.Values))
	for i, v := range src.Values {
		if h, ok := v.Field("high.high"); ok {
			out[i] = indicator.Num(h)
		}
	}
	return map[string]indicator.Series{"highPoint": out}, nil
}

// tvSMA averages the last length values like TradingView's ta.sma: zero
// and missing inputs are skipped, and a missing or zero current input
// yields no value.
func tvSMA(_ context.Context, src indicator.Source, opts indicator.Options) (map[string]indicator.Series, error) {
	length := opts.Int("length", 14)
	out := make(indicator.Series, len(src.Values))
	for i, v := range src.Values {
		cur, ok := v.Float()
		if i < length-1 || !ok || cur == 0 {
			continue
		}
		sum, n := 0.0, 0
		for _, w := range src.Values[max(0, i-length+1) : i+1] {
			if f, ok := w.Float(); ok && f != 0 {
				sum += f
				n++
			}
		}
		out[i] = indicator.Num(sum / float64(n))
	}
	return map[string]indicator.Series{"mySMA": out}, nil
}
