package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"tradesim/types"

	"github.com/google/uuid"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ RunStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	symbol     TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS trades (
	run_id          TEXT NOT NULL REFERENCES runs(id),
	seq             INTEGER NOT NULL,
	direction       TEXT NOT NULL,
	entry_time      TEXT NOT NULL,
	entry_price     TEXT NOT NULL,
	entry_reason    TEXT NOT NULL,
	exit_time       TEXT NOT NULL,
	exit_price      TEXT NOT NULL,
	exit_reason     TEXT NOT NULL,
	profit          TEXT NOT NULL,
	profit_pct      TEXT NOT NULL,
	risk_pct        TEXT,
	r_multiple      TEXT,
	holding_period  INTEGER NOT NULL,
	stop_price      TEXT,
	profit_target   TEXT,
	size            TEXT NOT NULL,
	leverage        TEXT NOT NULL,
	stop_series     TEXT NOT NULL,
	risk_series     TEXT NOT NULL,
	strategy        TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);`

// SQLiteStore stores runs in a SQLite database. Decimals are kept as TEXT so
// stored trades read back exactly.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and creates
// the tables it needs.
func NewSQLiteStore(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun writes a run and its trades in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, runID uuid.UUID, symbol string, trades []types.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs (id, symbol, created_at) VALUES (?, ?, ?)`,
		runID.String(), symbol, formatTime(time.Now())); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trades (
		run_id, seq, direction, entry_time, entry_price, entry_reason, exit_time, exit_price, exit_reason,
		profit, profit_pct, risk_pct, r_multiple, holding_period, stop_price, profit_target, size, leverage,
		stop_series, risk_series, strategy
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range trades {
		stopSeries, err := json.Marshal(seriesOrEmpty(t.StopPriceSeries))
		if err != nil {
			return err
		}
		riskSeries, err := json.Marshal(seriesOrEmpty(t.RiskSeries))
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			runID.String(), i, string(t.Direction),
			formatTime(t.EntryTime), t.EntryPrice, t.EntryReason,
			formatTime(t.ExitTime), t.ExitPrice, t.ExitReason,
			t.Profit, t.ProfitPct, t.RiskPct, t.RMultiple, t.HoldingPeriod,
			t.StopPrice, t.ProfitTarget, t.Size, t.Leverage,
			string(stopSeries), string(riskSeries), t.Strategy,
		); err != nil {
			return fmt.Errorf("insert trade %d: %w", i, err)
		}
	}
	return tx.Commit()
}

// LoadTrades returns the trades of a run in the order they were produced.
func (s *SQLiteStore) LoadTrades(ctx context.Context, runID uuid.UUID) ([]types.Trade, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID.String()).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists == 0 {
		return nil, fmt.Errorf("%s: %w", runID, ErrRunNotFound)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT
		direction, entry_time, entry_price, entry_reason, exit_time, exit_price, exit_reason,
		profit, profit_pct, risk_pct, r_multiple, holding_period, stop_price, profit_target, size, leverage,
		stop_series, risk_series, strategy
		FROM trades WHERE run_id = ? ORDER BY seq`, runID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trades := make([]types.Trade, 0)
	for rows.Next() {
		var (
			t                      types.Trade
			direction              string
			entryTime, exitTime    string
			stopSeries, riskSeries string
		)
		if err := rows.Scan(
			&direction, &entryTime, &t.EntryPrice, &t.EntryReason, &exitTime, &t.ExitPrice, &t.ExitReason,
			&t.Profit, &t.ProfitPct, &t.RiskPct, &t.RMultiple, &t.HoldingPeriod,
			&t.StopPrice, &t.ProfitTarget, &t.Size, &t.Leverage,
			&stopSeries, &riskSeries, &t.Strategy,
		); err != nil {
			return nil, err
		}
		t.Direction = types.Direction(direction)
		if t.EntryTime, err = parseTime(entryTime); err != nil {
			return nil, err
		}
		if t.ExitTime, err = parseTime(exitTime); err != nil {
			return nil, err
		}
		if t.StopPriceSeries, err = decodeSeries(stopSeries); err != nil {
			return nil, err
		}
		if t.RiskSeries, err = decodeSeries(riskSeries); err != nil {
			return nil, err
		}
		trades = append(trades, t)
	}
	return trades, rows.Err()
}

// ListRuns returns every stored run, oldest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT r.id, r.symbol, r.created_at, COUNT(t.seq)
		FROM runs r LEFT JOIN trades t ON t.run_id = r.id
		GROUP BY r.id, r.symbol, r.created_at
		ORDER BY r.created_at, r.id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r             Run
			id, createdAt string
		)
		if err := rows.Scan(&id, &r.Symbol, &createdAt, &r.NumTrades); err != nil {
			return nil, err
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func seriesOrEmpty(s []types.TimestampedValue) []types.TimestampedValue {
	if s == nil {
		return []types.TimestampedValue{}
	}
	return s
}

// decodeSeries maps an empty stored series back to nil, matching trades
// that never recorded one.
func decodeSeries(raw string) ([]types.TimestampedValue, error) {
	var s []types.TimestampedValue
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("decode series: %w", err)
	}
	if len(s) == 0 {
		return nil, nil
	}
	return s, nil
}
