// Package sqlite persists candle history and the signal journal in a local
// SQLite database, WAL mode, single writer.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"gatebotv1/internal/metrics"
	"gatebotv1/internal/model"
	"gatebotv1/internal/strategy"

	_ "github.com/mattn/go-sqlite3"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to the database file, e.g. "data/gatebot.db"
}

// Store owns the SQLite connection for candles and the signal journal.
type Store struct {
	db  *sql.DB
	met *metrics.Metrics // may be nil
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database, enables WAL mode, and creates the schema.
// met may be nil.
func New(cfg Config, met *metrics.Metrics) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer connection pool
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Store{db: db, met: met}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS candles (
			pair     TEXT    NOT NULL,
			interval TEXT    NOT NULL,
			ts       INTEGER NOT NULL,
			open     REAL    NOT NULL,
			high     REAL    NOT NULL,
			low      REAL    NOT NULL,
			close    REAL    NOT NULL,
			volume   REAL    NOT NULL,
			PRIMARY KEY (pair, interval, ts)
		);

		CREATE TABLE IF NOT EXISTS signals (
			id         INTEGER PRIMARY KEY AUTOINCREMENT,
			pair       TEXT    NOT NULL,
			kind       TEXT    NOT NULL,
			reason     TEXT    NOT NULL,
			price      REAL    NOT NULL,
			ts         INTEGER NOT NULL,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
		);

		CREATE INDEX IF NOT EXISTS idx_signals_pair_ts ON signals (pair, ts);
	`)
	return err
}

// WriteCandles inserts candles in a single transaction. Rows already present
// (same pair, interval, open time) are left untouched, so re-running a
// backfill over an overlapping range is safe.
func (s *Store) WriteCandles(ctx context.Context, candles []model.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	start := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite begin: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO candles (pair, interval, ts, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite prepare: %w", err)
	}
	defer stmt.Close()

	for _, c := range candles {
		if _, err := stmt.Exec(c.Pair, c.Interval, c.OpenTime.Unix(), c.Open, c.High, c.Low, c.Close, c.Volume); err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite insert candle: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite commit: %w", err)
	}
	if s.met != nil {
		s.met.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// Run reads candles from candleCh and inserts them in batched transactions.
// Flushes every defaultBatchSize candles or every defaultFlushDelay,
// whichever comes first. Blocks until ctx is cancelled or candleCh closes.
func (s *Store) Run(ctx context.Context, candleCh <-chan model.Candle) {
	batch := make([]model.Candle, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := s.WriteCandles(context.Background(), batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
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

// ReadCandles returns stored candles for a pair/interval within [from, to],
// ordered by open time ascending for correct replay order.
func (s *Store) ReadCandles(ctx context.Context, pair, interval string, from, to time.Time) ([]model.Candle, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair, interval, ts, open, high, low, close, volume
		FROM candles
		WHERE pair = ? AND interval = ? AND ts >= ? AND ts <= ?
		ORDER BY ts ASC
	`, pair, interval, from.Unix(), to.Unix())
	if err != nil {
		return nil, fmt.Errorf("sqlite query candles: %w", err)
	}
	defer rows.Close()

	var candles []model.Candle
	for rows.Next() {
		var c model.Candle
		var tsUnix int64
		if err := rows.Scan(&c.Pair, &c.Interval, &tsUnix, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("sqlite scan candle: %w", err)
		}
		c.OpenTime = time.Unix(tsUnix, 0).UTC()
		candles = append(candles, c)
	}
	return candles, rows.Err()
}

// LastCandleTime returns the most recent stored open time for a pair/interval.
// Returns the zero time if no candles exist.
func (s *Store) LastCandleTime(pair, interval string) (time.Time, error) {
	var ts sql.NullInt64
	err := s.db.QueryRow(
		`SELECT MAX(ts) FROM candles WHERE pair = ? AND interval = ?`,
		pair, interval,
	).Scan(&ts)
	if err != nil {
		return time.Time{}, err
	}
	if !ts.Valid {
		return time.Time{}, nil
	}
	return time.Unix(ts.Int64, 0).UTC(), nil
}

// RecordSignal appends an emitted signal to the journal.
func (s *Store) RecordSignal(pair string, sig strategy.Signal) error {
	start := time.Now()
	_, err := s.db.Exec(`
		INSERT INTO signals (pair, kind, reason, price, ts)
		VALUES (?, ?, ?, ?, ?)
	`, pair, string(sig.Kind), sig.Reason, sig.Price, sig.Time.Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert signal: %w", err)
	}
	if s.met != nil {
		s.met.SQLiteCommitDur.Observe(time.Since(start).Seconds())
	}
	return nil
}

// JournalEntry is one row of the signal journal.
type JournalEntry struct {
	Pair   string
	Kind   string
	Reason string
	Price  float64
	Time   time.Time
}

// ReadSignals returns the most recent journal entries for a pair, newest
// first, up to limit.
func (s *Store) ReadSignals(ctx context.Context, pair string, limit int) ([]JournalEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT pair, kind, reason, price, ts
		FROM signals
		WHERE pair = ?
		ORDER BY ts DESC
		LIMIT ?
	`, pair, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query signals: %w", err)
	}
	defer rows.Close()

	var entries []JournalEntry
	for rows.Next() {
		var e JournalEntry
		var tsUnix int64
		if err := rows.Scan(&e.Pair, &e.Kind, &e.Reason, &e.Price, &tsUnix); err != nil {
			return nil, fmt.Errorf("sqlite scan signal: %w", err)
		}
		e.Time = time.Unix(tsUnix, 0).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
