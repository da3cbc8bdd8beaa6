// cmd/backtest runs strategies over historical candles: from a JSON fixture
// or from SQLite, in batch, streaming or follow (replayed feed) mode.
// Signals can be journaled to SQLite and published to Redis.
//
// Usage:
//
//	go run ./cmd/backtest --config=config.yaml --fixture=testdata/btc_1h.json
//	go run ./cmd/backtest --strategy=sma_crossover --symbol=BTCUSDT --period=4h --db=data/candles.db
//	go run ./cmd/backtest --strategy=sma_crossover --fixture=btc.json --mode=follow --speed=100
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/egisz/crypto-trading-bot/config"
	"github.com/egisz/crypto-trading-bot/internal/indicator"
	"github.com/egisz/crypto-trading-bot/internal/logger"
	"github.com/egisz/crypto-trading-bot/internal/marketdata/fixture"
	"github.com/egisz/crypto-trading-bot/internal/marketdata/replay"
	"github.com/egisz/crypto-trading-bot/internal/marketdata/tfbuilder"
	"github.com/egisz/crypto-trading-bot/internal/metrics"
	"github.com/egisz/crypto-trading-bot/internal/model"
	redisstore "github.com/egisz/crypto-trading-bot/internal/store/redis"
	sqlitestore "github.com/egisz/crypto-trading-bot/internal/store/sqlite"
	"github.com/egisz/crypto-trading-bot/internal/strategy"
)

// summaryPlaces is the precision of debug values in the printed summary.
const summaryPlaces = 4

type flags struct {
	configPath string
	strategy   string
	symbol     string
	period     string
	fixture    string
	db         string
	mode       string
	speed      float64
	maxHistory int
	resample   bool
	persist    bool
	publish    bool
	serve      bool
}

// app holds the sinks shared by every strategy run.
type app struct {
	log     *slog.Logger
	cfg     *config.Config
	runner  *strategy.Runner
	metrics *metrics.Metrics
	health  *metrics.HealthStatus

	reader *sqlitestore.Reader
	writer *sqlitestore.Writer
	pub    *redisstore.Publisher
	rdb    *goredis.Client
}

func main() {
	var f flags
	flag.StringVar(&f.configPath, "config", "config.yaml", "Path to YAML config (missing file is fine)")
	flag.StringVar(&f.strategy, "strategy", "", "Run only this strategy (overrides the config list)")
	flag.StringVar(&f.symbol, "symbol", "BTCUSDT", "Symbol for --strategy")
	flag.StringVar(&f.period, "period", "1h", "Candle period for --strategy (1m, 15m, 1h, 4h, 1d, 1w)")
	flag.StringVar(&f.fixture, "fixture", "", "JSON candle fixture; when empty candles are read from SQLite")
	flag.StringVar(&f.db, "db", "", "SQLite database (overrides sqlite_path)")
	flag.StringVar(&f.mode, "mode", "", "Run mode: batch, streaming or follow (overrides run_mode)")
	flag.Float64Var(&f.speed, "speed", 0, "Follow mode playback speed (0=max, 1=realtime, 100=100x)")
	flag.IntVar(&f.maxHistory, "max-history", 0, "Follow mode candle history limit (0=unbounded)")
	flag.BoolVar(&f.resample, "resample", true, "Resample input candles to the strategy period")
	flag.BoolVar(&f.persist, "persist", false, "Journal candles and signals to SQLite")
	flag.BoolVar(&f.publish, "publish", false, "Publish signals to Redis")
	flag.BoolVar(&f.serve, "serve", false, "Keep serving /metrics and /healthz after the runs finish")
	flag.Parse()

	if err := run(f); err != nil {
		slog.Error("backtest failed", "error", err)
		os.Exit(1)
	}
}

func run(f flags) error {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	follow := strings.EqualFold(f.mode, "follow")
	if f.mode != "" && !follow {
		cfg.RunMode = f.mode
	}
	if f.db != "" {
		cfg.SQLitePath = f.db
	}
	if f.strategy != "" {
		cfg.Strategies = []config.StrategyConfig{{Name: f.strategy, Symbol: f.symbol, Period: f.period}}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if len(cfg.Strategies) == 0 {
		return errors.New("no strategies configured (use --strategy or the strategies list)")
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.Init("backtest", level)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	// ---- Metrics & health ----
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()
	var srv *metrics.Server
	if cfg.MetricsAddr != "" {
		srv = metrics.NewServer(cfg.MetricsAddr, reg, health)
		srv.Start()
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := srv.Stop(shutdownCtx); err != nil {
				log.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}

	engine := indicator.NewEngine(indicator.WithLogger(log), indicator.WithObserver(m))
	a := &app{
		log:     log,
		cfg:     cfg,
		runner:  strategy.NewRunner(engine, strategy.WithLogger(log), strategy.WithObserver(m)),
		metrics: m,
		health:  health,
	}
	defer a.close()

	if err := a.openSinks(ctx, f); err != nil {
		return err
	}
	if db := a.sqlDB(); a.rdb != nil || db != nil {
		health.StartLivenessChecker(ctx, a.rdb, db, 15*time.Second)
	}

	var failed int
	for _, sc := range cfg.Strategies {
		if ctx.Err() != nil {
			break
		}
		if err := a.runStrategy(ctx, f, sc, follow); err != nil {
			failed++
			log.Error("strategy failed", "strategy", sc.Name, "symbol", sc.Symbol, "error", err)
		}
	}

	if f.serve && srv != nil {
		log.Info("runs finished, serving metrics until interrupted", "addr", cfg.MetricsAddr)
		<-ctx.Done()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d strategies failed", failed, len(cfg.Strategies))
	}
	return nil
}

// openSinks opens SQLite when candles come from it or signals are
// journaled, and Redis when signals are published.
func (a *app) openSinks(ctx context.Context, f flags) error {
	if f.fixture == "" || f.persist {
		if a.cfg.SQLitePath == "" {
			return errors.New("sqlite_path is required without --fixture or with --persist")
		}
	}
	if f.fixture == "" {
		r, err := sqlitestore.NewReader(a.cfg.SQLitePath)
		if err != nil {
			return err
		}
		a.reader = r
	}
	if f.persist {
		w, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: a.cfg.SQLitePath})
		if err != nil {
			return err
		}
		w.OnCommit = func(d time.Duration) { a.metrics.SQLiteCommitDur.Observe(d.Seconds()) }
		a.writer = w
		a.health.CheckSQLite(ctx, w.DB())
	}
	if f.publish {
		if a.cfg.RedisAddr == "" {
			return errors.New("redis_addr is required with --publish")
		}
		pub, rdb, err := redisstore.New(redisstore.Config{
			Addr:     a.cfg.RedisAddr,
			Password: a.cfg.RedisPassword,
			Stream:   a.cfg.RedisStream,
		})
		if err != nil {
			return err
		}
		pub.OnPublish = func(d time.Duration) { a.metrics.RedisPublishDur.Observe(d.Seconds()) }
		pub.OnDrop = func() { a.metrics.RedisDroppedPublishes.Inc() }
		pub.Breaker().OnStateChange = func(from, to redisstore.State) {
			a.metrics.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				a.metrics.RedisCircuitBreakerTrips.Inc()
			}
			a.log.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
		}
		a.pub, a.rdb = pub, rdb
		a.health.CheckRedis(ctx, rdb)
	}
	return nil
}

func (a *app) sqlDB() *sql.DB {
	switch {
	case a.writer != nil:
		return a.writer.DB()
	case a.reader != nil:
		return a.reader.DB()
	}
	return nil
}

func (a *app) close() {
	if a.rdb != nil {
		a.rdb.Close()
	}
	if a.writer != nil {
		a.writer.Close()
	}
	if a.reader != nil {
		a.reader.Close()
	}
}

// loadCandles reads the strategy's market and resamples it to the period.
func (a *app) loadCandles(ctx context.Context, f flags, sc config.StrategyConfig) (*model.Series, error) {
	var (
		series *model.Series
		err    error
	)
	if f.fixture != "" {
		series, err = fixture.Load(f.fixture)
	} else {
		series, err = a.reader.ReadCandles(ctx, sc.Symbol, sc.Period, 0)
	}
	if err != nil {
		return nil, err
	}
	if !f.resample {
		return series, nil
	}
	period, err := tfbuilder.ParsePeriod(sc.Period)
	if err != nil {
		return nil, err
	}
	in := series.Len()
	series, err = tfbuilder.Resample(series, period)
	if err != nil {
		return nil, err
	}
	a.log.Info("candles loaded", "symbol", sc.Symbol, "period", sc.Period, "input", in, "resampled", series.Len())
	return series, nil
}

func (a *app) runStrategy(ctx context.Context, f flags, sc config.StrategyConfig, follow bool) error {
	s, err := strategy.Lookup(sc.Name)
	if err != nil {
		return err
	}
	series, err := a.loadCandles(ctx, f, sc)
	if err != nil {
		return err
	}
	if a.writer != nil && f.fixture != "" {
		if err := a.writer.SaveCandles(ctx, sqlitestore.CandleBatch{Symbol: sc.Symbol, Period: sc.Period, Candles: series.Candles()}); err != nil {
			return fmt.Errorf("save candles: %w", err)
		}
	}

	var rep *strategy.Report
	if follow {
		rep, err = a.follow(ctx, f, s, sc, series)
	} else {
		mode, perr := strategy.ParseMode(a.cfg.RunMode)
		if perr != nil {
			return perr
		}
		rep, err = a.runner.Run(ctx, s, strategy.Options(sc.Options), series, mode)
	}
	runID := ""
	if rep != nil {
		runID = rep.RunID
	}
	a.health.RecordRun(runID, err)
	if err != nil {
		return err
	}

	printSummary(sc, rep)

	if a.writer != nil {
		if err := a.writer.SaveReport(ctx, sc.Symbol, sc.Period, rep); err != nil {
			return fmt.Errorf("save report: %w", err)
		}
	}
	if a.pub != nil && !follow {
		n, err := a.pub.PublishReport(ctx, sc.Symbol, sc.Period, rep)
		if err != nil {
			return fmt.Errorf("publish report: %w", err)
		}
		a.log.Info("signals published", "count", n, "buffered", a.pub.Buffered())
	}
	return nil
}

// follow replays series as a live feed through Runner.Follow and collects
// the emitted periods into a report. Signals are published as they arrive.
func (a *app) follow(ctx context.Context, f flags, s strategy.Strategy, sc config.StrategyConfig, series *model.Series) (*strategy.Report, error) {
	_, opts, err := a.runner.Declare(s, strategy.Options(sc.Options))
	if err != nil {
		return nil, err
	}
	rep := &strategy.Report{
		RunID:    uuid.NewString(),
		Strategy: s.Name(),
		Mode:     strategy.ModeStreaming,
		Options:  opts,
	}
	if d, ok := s.(strategy.Describer); ok {
		rep.Columns = d.Columns()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	candleCh := make(chan model.Candle, 256)
	outCh := make(chan strategy.PeriodResult, 256)
	var pubCh chan strategy.PeriodResult
	pubDone := make(chan struct{})
	if a.pub != nil {
		pubCh = make(chan strategy.PeriodResult, 256)
		go func() {
			defer close(pubDone)
			a.pub.Run(ctx, rep.RunID, rep.Strategy, sc.Symbol, sc.Period, pubCh)
		}()
	} else {
		close(pubDone)
	}

	go func() {
		defer close(candleCh)
		if err := replay.New(series, a.log).Run(ctx, 0, f.speed, candleCh); err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error("replay failed", "error", err)
		}
	}()

	followErr := make(chan error, 1)
	go func() {
		defer close(outCh)
		followErr <- a.runner.Follow(ctx, s, strategy.Options(sc.Options), candleCh, outCh, f.maxHistory)
	}()

	for pr := range outCh {
		rep.Periods = append(rep.Periods, pr)
		if pr.Result.HasSignal() {
			a.log.Info("signal",
				"strategy", rep.Strategy,
				"time", pr.Candle.Timestamp().Format(time.RFC3339),
				"signal", pr.Result.Signal().String(),
				"close", pr.Candle.Close,
			)
		}
		if pubCh != nil {
			select {
			case pubCh <- pr:
			case <-ctx.Done():
			}
		}
	}
	if pubCh != nil {
		close(pubCh)
	}
	<-pubDone

	if err := <-followErr; err != nil {
		return nil, err
	}
	return rep, nil
}

func printSummary(sc config.StrategyConfig, rep *strategy.Report) {
	counts := rep.Counts()
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════════════╗")
	fmt.Println("║              BACKTEST COMPLETE               ║")
	fmt.Println("╠══════════════════════════════════════════════╣")
	fmt.Printf("║  Strategy: %-33s ║\n", rep.Strategy)
	fmt.Printf("║  Market:   %-33s ║\n", sc.Symbol+" "+sc.Period)
	fmt.Printf("║  Mode:     %-33s ║\n", rep.Mode.String())
	fmt.Printf("║  Periods:  %-33d ║\n", len(rep.Periods))
	fmt.Printf("║  Long:     %-33d ║\n", counts[strategy.SignalLong])
	fmt.Printf("║  Short:    %-33d ║\n", counts[strategy.SignalShort])
	fmt.Printf("║  Close:    %-33d ║\n", counts[strategy.SignalClose])
	fmt.Printf("║  Run ID:   %-33s ║\n", rep.RunID)
	fmt.Println("╚══════════════════════════════════════════════╝")

	for _, pr := range rep.Signals() {
		line := fmt.Sprintf("  [%s] %-5s close=%s",
			pr.Candle.Timestamp().Format("2006-01-02 15:04"),
			pr.Result.Signal().String(),
			strategy.FormatValue(pr.Candle.Close, summaryPlaces),
		)
		for _, col := range rep.Columns {
			if v, ok := pr.Result.DebugValue(col.Value); ok {
				line += fmt.Sprintf(" %s=%s", col.Label, strategy.FormatValue(v, summaryPlaces))
			}
		}
		fmt.Println(line)
	}
}
