// Package ledger keeps a sqlite record of every session counted toward a
// billing period. It covers the current and the immediately preceding
// period; older rows are pruned.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/wjarka/claude-session-monitor/internal/ccusage"
)

type Session struct {
	ID          string
	PeriodStart string
	StartTime   time.Time
	EndTime     time.Time
	TotalTokens int64
	CostUSD     float64
	CountedAt   time.Time
}

type PeriodSummary struct {
	PeriodStart string
	Sessions    int
	CostUSD     float64
	MaxTokens   int64
}

type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

func Open(path string) (*Ledger, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ledger: creating DB dir: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("ledger: opening DB: %w", err)
	}
	if err := configureSQLiteConnection(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("ledger: %w", err)
	}

	l := New(db)
	if err := l.Init(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

func (l *Ledger) Close() error {
	if l == nil || l.db == nil {
		return nil
	}
	return l.db.Close()
}

func (l *Ledger) Init(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS counted_sessions (
			session_id TEXT PRIMARY KEY,
			period_start TEXT NOT NULL,
			start_time TEXT NOT NULL,
			end_time TEXT NOT NULL,
			total_tokens INTEGER NOT NULL DEFAULT 0,
			cost_usd REAL NOT NULL DEFAULT 0,
			counted_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_counted_sessions_period ON counted_sessions(period_start, start_time);`,
	}
	for _, stmt := range stmts {
		if _, err := l.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ledger: init schema: %w", err)
		}
	}
	return nil
}

// Record adds blocks counted toward periodStart. Sessions already present
// are left untouched.
func (l *Ledger) Record(ctx context.Context, periodStart string, blocks []ccusage.Block) error {
	if len(blocks) == 0 {
		return nil
	}
	return l.withTx(ctx, func(tx *sql.Tx) error {
		return insertSessions(ctx, tx, periodStart, blocks, l.now().UTC())
	})
}

// ReplacePeriod rewrites every row of periodStart with blocks.
func (l *Ledger) ReplacePeriod(ctx context.Context, periodStart string, blocks []ccusage.Block) error {
	return l.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM counted_sessions WHERE period_start = ?`, periodStart); err != nil {
			return fmt.Errorf("ledger: clearing period %s: %w", periodStart, err)
		}
		return insertSessions(ctx, tx, periodStart, blocks, l.now().UTC())
	})
}

// Prune removes rows of periods that started before keepFrom.
func (l *Ledger) Prune(ctx context.Context, keepFrom string) (int64, error) {
	res, err := l.db.ExecContext(ctx, `DELETE FROM counted_sessions WHERE period_start < ?`, keepFrom)
	if err != nil {
		return 0, fmt.Errorf("ledger: pruning: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// PeriodSummaries returns per-period totals, newest period first.
func (l *Ledger) PeriodSummaries(ctx context.Context) ([]PeriodSummary, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT period_start, COUNT(*), COALESCE(SUM(cost_usd), 0), COALESCE(MAX(total_tokens), 0)
		FROM counted_sessions
		GROUP BY period_start
		ORDER BY period_start DESC`)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying summaries: %w", err)
	}
	defer rows.Close()

	var out []PeriodSummary
	for rows.Next() {
		var s PeriodSummary
		if err := rows.Scan(&s.PeriodStart, &s.Sessions, &s.CostUSD, &s.MaxTokens); err != nil {
			return nil, fmt.Errorf("ledger: scanning summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Sessions lists the sessions of one period ordered by start time.
func (l *Ledger) Sessions(ctx context.Context, periodStart string) ([]Session, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT session_id, period_start, start_time, end_time, total_tokens, cost_usd, counted_at
		FROM counted_sessions
		WHERE period_start = ?
		ORDER BY start_time`, periodStart)
	if err != nil {
		return nil, fmt.Errorf("ledger: querying sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var s Session
		var startRaw, endRaw, countRaw string
		if err := rows.Scan(&s.ID, &s.PeriodStart, &startRaw, &endRaw, &s.TotalTokens, &s.CostUSD, &countRaw); err != nil {
			return nil, fmt.Errorf("ledger: scanning session: %w", err)
		}
		s.StartTime, _ = time.Parse(time.RFC3339Nano, startRaw)
		s.EndTime, _ = time.Parse(time.RFC3339Nano, endRaw)
		s.CountedAt, _ = time.Parse(time.RFC3339Nano, countRaw)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (l *Ledger) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ledger: begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("ledger: commit: %w", err)
	}
	return nil
}

func insertSessions(ctx context.Context, tx *sql.Tx, periodStart string, blocks []ccusage.Block, countedAt time.Time) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO counted_sessions (session_id, period_start, start_time, end_time, total_tokens, cost_usd, counted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO NOTHING`)
	if err != nil {
		return fmt.Errorf("ledger: preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, b := range blocks {
		if _, err := stmt.ExecContext(ctx,
			b.ID,
			periodStart,
			b.StartTime.UTC().Format(time.RFC3339Nano),
			sessionEnd(b).UTC().Format(time.RFC3339Nano),
			b.TotalTokens,
			b.CostUSD,
			countedAt.Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("ledger: inserting %s: %w", b.ID, err)
		}
	}
	return nil
}

// sessionEnd is when the last entry of a block was recorded, falling back to
// the scheduled block end.
func sessionEnd(b ccusage.Block) time.Time {
	if b.ActualEndTime != nil {
		return *b.ActualEndTime
	}
	return b.EndTime
}
