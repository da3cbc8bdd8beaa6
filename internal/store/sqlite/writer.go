package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/egisz/crypto-trading-bot/internal/model"
	"github.com/egisz/crypto-trading-bot/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond

	// debugPlaces is the fixed precision of journaled debug values.
	debugPlaces = 8
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/candles.db"
}

// Writer is a single-connection SQLite writer with transaction batching.
type Writer struct {
	db *sql.DB

	// OnCommit is called with the duration of every committed batch (optional).
	OnCommit func(time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "path", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			symbol     TEXT    NOT NULL,
			period     TEXT    NOT NULL,
			time       INTEGER NOT NULL,
			open       REAL    NOT NULL,
			high       REAL    NOT NULL,
			low        REAL    NOT NULL,
			close      REAL    NOT NULL,
			volume     REAL    NOT NULL,
			PRIMARY KEY (symbol, period, time)
		);

		CREATE TABLE IF NOT EXISTS signal_runs (
			run_id     TEXT    PRIMARY KEY,
			strategy   TEXT    NOT NULL,
			symbol     TEXT    NOT NULL,
			period     TEXT    NOT NULL,
			mode       TEXT    NOT NULL,
			options    TEXT    NOT NULL,
			periods    INTEGER NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE TABLE IF NOT EXISTS signals (
			run_id     TEXT    NOT NULL,
			idx        INTEGER NOT NULL,
			time       INTEGER NOT NULL,
			signal     TEXT    NOT NULL,
			debug      TEXT    NOT NULL,
			PRIMARY KEY (run_id, idx)
		);
	`)
	return err
}

// CandleBatch is a group of candles of one market.
type CandleBatch struct {
	Symbol  string
	Period  string
	Candles []model.Candle
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every batchSize candles OR every flushDelay, whichever first.
// Blocks until ctx is cancelled or candleCh is closed.
func (w *Writer) Run(ctx context.Context, symbol, period string, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.SaveCandles(context.Background(), CandleBatch{Symbol: symbol, Period: period, Candles: batch}); err != nil {
			slog.Error("sqlite batch insert failed", "symbol", symbol, "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case candle, ok := <-candleCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, candle)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

// SaveCandles upserts a batch of candles in a single transaction.
func (w *Writer) SaveCandles(ctx context.Context, b CandleBatch) error {
	return w.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT OR REPLACE INTO candles (symbol, period, time, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range b.Candles {
			if _, err := stmt.ExecContext(ctx, b.Symbol, b.Period, c.Time, c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
				return err
			}
		}
		return nil
	})
}

// GetLastTimestamp returns the last stored candle time for a market.
// Returns 0 if no candles exist.
func (w *Writer) GetLastTimestamp(ctx context.Context, symbol, period string) (int64, error) {
	var ts sql.NullInt64
	err := w.db.QueryRowContext(ctx,
		`SELECT MAX(time) FROM candles WHERE symbol = ? AND period = ?`,
		symbol, period,
	).Scan(&ts)
	if err != nil {
		return 0, err
	}
	if !ts.Valid {
		return 0, nil
	}
	return ts.Int64, nil
}

// debugEntry is the journaled form of a strategy debug value.
type debugEntry struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// SaveReport journals a strategy run: one signal_runs row and one signals
// row per evaluated period.
func (w *Writer) SaveReport(ctx context.Context, symbol, period string, rep *strategy.Report) error {
	opts, err := json.Marshal(rep.Options)
	if err != nil {
		return fmt.Errorf("marshal options: %w", err)
	}
	return w.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO signal_runs (run_id, strategy, symbol, period, mode, options, periods)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rep.RunID, rep.Strategy, symbol, period, rep.Mode.String(), string(opts), len(rep.Periods)); err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO signals (run_id, idx, time, signal, debug) VALUES (?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range rep.Periods {
			debug := p.Result.Debug()
			entries := make([]debugEntry, len(debug))
			for i, d := range debug {
				entries[i] = debugEntry{Key: d.Key, Value: strategy.FormatValue(d.Value, debugPlaces)}
			}
			data, err := json.Marshal(entries)
			if err != nil {
				return fmt.Errorf("marshal debug: %w", err)
			}
			if _, err := stmt.ExecContext(ctx, rep.RunID, p.Period, p.Candle.Time, p.Result.Signal().String(), string(data)); err != nil {
				return fmt.Errorf("insert signal %d: %w", p.Period, err)
			}
		}
		return nil
	})
}

func (w *Writer) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	if w.OnCommit != nil {
		w.OnCommit(time.Since(start))
	}
	return nil
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
