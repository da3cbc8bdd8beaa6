package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/egisz/crypto-trading-bot/internal/strategy"
)

// Metrics holds all Prometheus metrics of the indicator pipeline.
type Metrics struct {
	// Indicator engine metrics
	SpecComputeDur *prometheus.HistogramVec // labels: provider
	SpecsTotal     *prometheus.CounterVec   // labels: provider
	SpecErrors     *prometheus.CounterVec   // labels: provider

	// Strategy runner metrics
	PeriodsTotal *prometheus.CounterVec   // labels: strategy
	PeriodErrors *prometheus.CounterVec   // labels: strategy
	SignalsTotal *prometheus.CounterVec   // labels: strategy, signal
	EvaluateDur  *prometheus.HistogramVec // labels: strategy

	// Sinks
	SQLiteCommitDur prometheus.Histogram
	RedisPublishDur prometheus.Histogram

	// Circuit breaker metrics
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
	RedisDroppedPublishes    prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg
// (prometheus.DefaultRegisterer when nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	fast := []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1}

	m := &Metrics{
		SpecComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "indicator_spec_compute_duration_seconds",
			Help:    "Time to compute one indicator spec over a candle series",
			Buckets: fast,
		}, []string{"provider"}),
		SpecsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_specs_computed_total",
			Help: "Indicator specs computed (by provider kind)",
		}, []string{"provider"}),
		SpecErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "indicator_spec_errors_total",
			Help: "Indicator specs that failed (by provider kind)",
		}, []string{"provider"}),

		PeriodsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_periods_evaluated_total",
			Help: "Periods evaluated by a strategy",
		}, []string{"strategy"}),
		PeriodErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_period_errors_total",
			Help: "Period evaluations that failed",
		}, []string{"strategy"}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "strategy_signals_total",
			Help: "Signals emitted (by strategy and signal)",
		}, []string{"strategy", "signal"}),
		EvaluateDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "strategy_evaluate_duration_seconds",
			Help:    "Time spent in EvaluatePeriod",
			Buckets: fast,
		}, []string{"strategy"}),

		SQLiteCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_sqlite_commit_duration_seconds",
			Help:    "SQLite batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
		RedisPublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "backtest_redis_publish_duration_seconds",
			Help:    "Redis signal publish latency",
			Buckets: prometheus.DefBuckets,
		}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
		RedisDroppedPublishes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_dropped_publishes_total",
			Help: "Signals not published because the circuit breaker was open",
		}),
	}

	reg.MustRegister(
		m.SpecComputeDur,
		m.SpecsTotal,
		m.SpecErrors,
		m.PeriodsTotal,
		m.PeriodErrors,
		m.SignalsTotal,
		m.EvaluateDur,
		m.SQLiteCommitDur,
		m.RedisPublishDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
		m.RedisDroppedPublishes,
	)

	return m
}

// SpecComputed implements indicator.Observer.
func (m *Metrics) SpecComputed(provider string, elapsed time.Duration, err error) {
	m.SpecComputeDur.WithLabelValues(provider).Observe(elapsed.Seconds())
	m.SpecsTotal.WithLabelValues(provider).Inc()
	if err != nil {
		m.SpecErrors.WithLabelValues(provider).Inc()
	}
}

// PeriodEvaluated implements strategy.Observer.
func (m *Metrics) PeriodEvaluated(name string, sig strategy.Signal, elapsed time.Duration, err error) {
	m.EvaluateDur.WithLabelValues(name).Observe(elapsed.Seconds())
	m.PeriodsTotal.WithLabelValues(name).Inc()
	if err != nil {
		m.PeriodErrors.WithLabelValues(name).Inc()
		return
	}
	if sig != strategy.SignalNone {
		m.SignalsTotal.WithLabelValues(name, sig.String()).Inc()
	}
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	RedisEnabled   bool   `json:"redis_enabled"`
	RedisConnected bool   `json:"redis_connected"`
	SQLiteEnabled  bool   `json:"sqlite_enabled"`
	SQLiteOK       bool   `json:"sqlite_ok"`
	LastRunID      string `json:"last_run_id"`
	LastRunErr     string `json:"last_run_error"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastRunAt       time.Time `json:"last_run_at"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// RecordRun stores the outcome of the latest strategy run.
func (h *HealthStatus) RecordRun(runID string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastRunID = runID
	h.LastRunAt = time.Now()
	h.LastRunErr = ""
	if err != nil {
		h.LastRunErr = err.Error()
	}
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are
// skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	redisDown := h.RedisEnabled && !h.RedisConnected
	sqliteDown := h.SQLiteEnabled && !h.SQLiteOK
	if redisDown || sqliteDown || h.LastRunErr != "" {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}
	if redisDown && sqliteDown {
		overallStatus = "unhealthy"
	}

	lastRunAt := ""
	if !h.LastRunAt.IsZero() {
		lastRunAt = h.LastRunAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastRunID       string  `json:"last_run_id"`
		LastRunAt       string  `json:"last_run_at"`
		LastRunErr      string  `json:"last_run_error,omitempty"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastRunID:       h.LastRunID,
		LastRunAt:       lastRunAt,
		LastRunErr:      h.LastRunErr,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. gatherer defaults to
// prometheus.DefaultGatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, health *HealthStatus) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		addr: addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           Handler(gatherer, health),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler returns the mux serving /metrics and /healthz.
func Handler(gatherer prometheus.Gatherer, health *HealthStatus) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	mux.Handle("/healthz", health)
	return mux
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
