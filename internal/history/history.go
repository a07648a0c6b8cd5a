// Package history stores suite runs in a local sqlite database.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/shyim/kvprobe/internal/suite"
	_ "modernc.org/sqlite"
)

const timeLayout = "2006-01-02 15:04:05"

const schema = `CREATE TABLE IF NOT EXISTS runs
(
    id          INTEGER PRIMARY KEY,
    suite       TEXT NOT NULL,
    case_id     TEXT NOT NULL,
    name        TEXT NOT NULL,
    command     TEXT NOT NULL,
    run_at      TEXT NOT NULL,
    passed      INTEGER NOT NULL,
    notice      INTEGER NOT NULL,
    status      INTEGER NULL,
    duration_ms INTEGER NOT NULL,
    detail      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS runs_case_id ON runs (case_id);

CREATE INDEX IF NOT EXISTS runs_run_at_index
    on runs (run_at desc);
`

type DB struct {
	db *sql.DB
}

type Entry struct {
	ID       int
	Suite    string
	CaseID   string
	Name     string
	Command  string
	RunAt    string
	Passed   bool
	Notice   bool
	Status   *int
	Duration time.Duration
	Detail   string
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)

	if err != nil {
		return nil, err
	}

	_, _ = db.Exec(`PRAGMA journal_mode = WAL`)
	_, _ = db.Exec(`PRAGMA synchronous = NORMAL`)
	_, _ = db.Exec(`PRAGMA busy_timeout = 5000`)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("cannot create history schema: %w", err)
	}

	return &DB{db: db}, nil
}

func (h *DB) Close() error {
	return h.db.Close()
}

// Record stores one row per case. The status is the one of the last
// response of the case, or NULL when no response arrived.
func (h *DB) Record(ctx context.Context, results *suite.Results) error {
	tx, err := h.db.BeginTx(ctx, nil)

	if err != nil {
		return err
	}

	runAt := results.StartedAt.Format(timeLayout)

	for _, c := range results.Cases() {
		var status *int

		if len(c.Outcomes) > 0 {
			code := c.Outcomes[len(c.Outcomes)-1].StatusCode
			status = &code
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO runs (suite, case_id, name, command, run_at, passed, notice, status, duration_ms, detail) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
			results.Suite, c.ID, c.Name, c.Command, runAt, c.Passed, c.Notice, status, c.Duration.Milliseconds(), c.Detail,
		)

		if err != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				log.Warnf("Could not roll back history: %s", rollbackErr)
			}

			return fmt.Errorf("cannot record case %s: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// List returns the newest runs first. An empty caseID lists all cases.
func (h *DB) List(ctx context.Context, caseID string, limit int) ([]Entry, error) {
	query := "SELECT id, suite, case_id, name, command, run_at, passed, notice, status, duration_ms, detail FROM runs"
	args := []any{}

	if caseID != "" {
		query += " WHERE case_id = ?"
		args = append(args, caseID)
	}

	query += " ORDER BY run_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.QueryContext(ctx, query, args...)

	if err != nil {
		return nil, err
	}

	defer rows.Close()

	var entries []Entry

	for rows.Next() {
		var e Entry
		var status sql.NullInt64
		var durationMs int64

		if err := rows.Scan(&e.ID, &e.Suite, &e.CaseID, &e.Name, &e.Command, &e.RunAt, &e.Passed, &e.Notice, &status, &durationMs, &e.Detail); err != nil {
			return nil, err
		}

		if status.Valid {
			code := int(status.Int64)
			e.Status = &code
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond

		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Prune deletes runs older than the given age.
func (h *DB) Prune(ctx context.Context, age time.Duration) (int64, error) {
	result, err := h.db.ExecContext(ctx, "DELETE FROM runs WHERE run_at < ?", time.Now().Add(-age).Format(timeLayout))

	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
