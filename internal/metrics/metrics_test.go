package metrics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/model"
	"github.com/egisz/crypto-trading-bot/internal/strategy"
)

func TestMetrics_SpecComputed(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.SpecComputed("builtin", time.Millisecond, nil)
	m.SpecComputed("builtin", time.Millisecond, errors.New("boom"))
	m.SpecComputed("library", time.Millisecond, nil)

	if got := testutil.ToFloat64(m.SpecsTotal.WithLabelValues("builtin")); got != 2 {
		t.Errorf("builtin specs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.SpecErrors.WithLabelValues("builtin")); got != 1 {
		t.Errorf("builtin errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SpecErrors.WithLabelValues("library")); got != 0 {
		t.Errorf("library errors = %v, want 0", got)
	}
}

func TestMetrics_PeriodEvaluated(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.PeriodEvaluated("s", strategy.SignalNone, time.Microsecond, nil)
	m.PeriodEvaluated("s", strategy.SignalLong, time.Microsecond, nil)
	m.PeriodEvaluated("s", strategy.SignalLong, time.Microsecond, errors.New("bad"))

	if got := testutil.ToFloat64(m.PeriodsTotal.WithLabelValues("s")); got != 3 {
		t.Errorf("periods = %v, want 3", got)
	}
	if got := testutil.ToFloat64(m.SignalsTotal.WithLabelValues("s", "long")); got != 1 {
		t.Errorf("long signals = %v, want 1 (failed periods emit nothing)", got)
	}
	if got := testutil.ToFloat64(m.PeriodErrors.WithLabelValues("s")); got != 1 {
		t.Errorf("period errors = %v, want 1", got)
	}
}

func TestMetrics_ObservesEngineAndRunner(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	cs := make([]model.Candle, 30)
	for i := range cs {
		p := 100 + float64(i%6)
		cs[i] = model.Candle{Time: int64(i + 1), Open: p, High: p + 1, Low: p - 1, Close: p, Volume: 10}
	}

	engine := indicator.NewEngine(indicator.WithObserver(m))
	runner := strategy.NewRunner(engine, strategy.WithObserver(m))
	opts := strategy.Options{"fast_length": 2, "slow_length": 4}
	if _, err := runner.Run(context.Background(), strategy.NewSMACrossover(), opts, model.MustSeries(cs), strategy.ModeBatch); err != nil {
		t.Fatal(err)
	}

	if got := testutil.ToFloat64(m.SpecsTotal.WithLabelValues("builtin")); got != 2 {
		t.Errorf("builtin specs = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.PeriodsTotal.WithLabelValues("sma_crossover")); got != 30 {
		t.Errorf("periods = %v, want 30", got)
	}
}

func TestHandler_Endpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	m.SpecComputed("custom", time.Millisecond, nil)
	health := NewHealthStatus()
	srv := httptest.NewServer(Handler(reg, health))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `indicator_specs_computed_total{provider="custom"} 1`) {
		t.Errorf("metrics output missing spec counter:\n%s", body)
	}

	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz = %d, want 200", resp.StatusCode)
	}

	health.RecordRun("run-1", errors.New("period failed"))
	resp, err = http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable || !strings.Contains(string(body), `"degraded"`) {
		t.Errorf("healthz after failed run = %d %s", resp.StatusCode, body)
	}
}
