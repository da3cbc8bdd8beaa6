package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/egisz/crypto-trading-bot/internal/model"
	"github.com/egisz/crypto-trading-bot/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to stored candles and journaled signals.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Info("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// DB returns the underlying sql.DB for health checks.
func (r *Reader) DB() *sql.DB { return r.db }

// ReadCandles reads candles of one market after afterTS as a series,
// ordered by time ascending.
func (r *Reader) ReadCandles(ctx context.Context, symbol, period string, afterTS int64) (*model.Series, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT time, open, high, low, close, volume
		FROM candles
		WHERE symbol = ? AND period = ? AND time > ?
		ORDER BY time ASC
	`, symbol, period, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		if err := rows.Scan(&c.Time, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candles: %w", err)
		}
		candles = append(candles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return model.NewSeries(candles)
}

// RunRecord is one journaled strategy run.
type RunRecord struct {
	RunID    string
	Strategy string
	Symbol   string
	Period   string
	Mode     string
	Options  map[string]any
	Periods  int
}

// SignalRecord is one journaled period.
type SignalRecord struct {
	Period int
	Time   int64
	Signal strategy.Signal
	Debug  []strategy.DebugEntry // values are the formatted strings
}

// ReadRun loads a journaled run header.
func (r *Reader) ReadRun(ctx context.Context, runID string) (*RunRecord, error) {
	var (
		rec  RunRecord
		opts string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, strategy, symbol, period, mode, options, periods
		FROM signal_runs WHERE run_id = ?
	`, runID).Scan(&rec.RunID, &rec.Strategy, &rec.Symbol, &rec.Period, &rec.Mode, &opts, &rec.Periods)
	if err != nil {
		return nil, fmt.Errorf("sqlite read run %s: %w", runID, err)
	}
	if err := json.Unmarshal([]byte(opts), &rec.Options); err != nil {
		return nil, fmt.Errorf("unmarshal options: %w", err)
	}
	return &rec, nil
}

// ReadSignals loads the journaled periods of a run in period order. With
// onlySignals, periods without a signal are skipped.
func (r *Reader) ReadSignals(ctx context.Context, runID string, onlySignals bool) ([]SignalRecord, error) {
	query := `SELECT idx, time, signal, debug FROM signals WHERE run_id = ?`
	if onlySignals {
		query += ` AND signal <> 'none'`
	}
	rows, err := r.db.QueryContext(ctx, query+` ORDER BY idx ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var out []SignalRecord
	for rows.Next() {
		var (
			rec          SignalRecord
			signal, data string
		)
		if err := rows.Scan(&rec.Period, &rec.Time, &signal, &data); err != nil {
			return nil, fmt.Errorf("sqlite scan signals: %w", err)
		}
		if rec.Signal, err = strategy.ParseSignal(signal); err != nil {
			return nil, err
		}
		var entries []debugEntry
		if err := json.Unmarshal([]byte(data), &entries); err != nil {
			return nil, fmt.Errorf("unmarshal debug: %w", err)
		}
		rec.Debug = make([]strategy.DebugEntry, len(entries))
		for i, e := range entries {
			rec.Debug[i] = strategy.DebugEntry{Key: e.Key, Value: e.Value}
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
