// Package runlog keeps a local SQLite ledger of import runs and the rows
// they rejected, so field imports stay reviewable without the central
// database. Ledger failures are never allowed to fail an import.
package runlog

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning  = "running"
	StatusComplete = "complete"
	StatusFailed   = "failed"
)

// Run is one recorded import invocation.
type Run struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Source     string     `json:"source"`
	Status     string     `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Imported   int        `json:"imported"`
	Skipped    int        `json:"skipped"`
	Error      string     `json:"error,omitempty"`
}

// Reject is one row an import skipped, with enough raw context to fix and
// replay it.
type Reject struct {
	ID        int64     `json:"id"`
	RunID     string    `json:"run_id"`
	Line      int       `json:"line"`
	Kind      string    `json:"kind"`
	Reason    string    `json:"reason"`
	Raw       string    `json:"raw"`
	CreatedAt time.Time `json:"created_at"`
}

// Ledger wraps the SQLite file holding runs and rejects.
type Ledger struct {
	db *sql.DB
}

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	kind        TEXT NOT NULL,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'running',
	started_at  DATETIME NOT NULL,
	finished_at DATETIME,
	imported    INTEGER NOT NULL DEFAULT 0,
	skipped     INTEGER NOT NULL DEFAULT 0,
	error       TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS rejects (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	line       INTEGER NOT NULL,
	kind       TEXT NOT NULL,
	reason     TEXT NOT NULL,
	raw        TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
CREATE INDEX IF NOT EXISTS idx_rejects_run_id ON rejects(run_id);
`

// Open opens (or creates) the ledger at path, configures WAL mode, and
// applies the schema.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "runlog: exec %s", pragma)
		}
	}
	if _, err := db.Exec(ledgerSchema); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "runlog: migrate")
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// StartRun opens a run in the running state and returns it.
func (l *Ledger) StartRun(ctx context.Context, kind, source string) (*Run, error) {
	r := &Run{
		ID:        uuid.New().String(),
		Kind:      kind,
		Source:    source,
		Status:    StatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, source, status, started_at) VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.Kind, r.Source, r.Status, r.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: insert run")
	}
	return r, nil
}

// FinishRun closes a run with its final counts. A non-nil runErr marks the
// run failed and stores the error text.
func (l *Ledger) FinishRun(ctx context.Context, runID string, imported, skipped int, runErr error) error {
	status := StatusComplete
	errText := ""
	if runErr != nil {
		status = StatusFailed
		errText = runErr.Error()
	}
	res, err := l.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ?, imported = ?, skipped = ?, error = ? WHERE id = ?`,
		status, time.Now().UTC(), imported, skipped, errText, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: finish run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "runlog: rows affected")
	}
	if n == 0 {
		return eris.Errorf("runlog: run not found: %s", runID)
	}
	return nil
}

// RecordReject stores one skipped row against a run.
func (l *Ledger) RecordReject(ctx context.Context, runID string, line int, kind, reason, raw string) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO rejects (run_id, line, kind, reason, raw, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, line, kind, reason, raw, time.Now().UTC(),
	)
	return eris.Wrapf(err, "runlog: record reject for run %s", runID)
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, kind, source, status, started_at, finished_at, imported, skipped, error
		 FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.Kind, &r.Source, &r.Status, &r.StartedAt,
			&finished, &r.Imported, &r.Skipped, &r.Error); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "runlog: list runs iterate")
}

// ListRejects returns a run's rejected rows in source order.
func (l *Ledger) ListRejects(ctx context.Context, runID string) ([]Reject, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, run_id, line, kind, reason, raw, created_at
		 FROM rejects WHERE run_id = ? ORDER BY line, id`, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: list rejects for run %s", runID)
	}
	defer rows.Close()

	var rejects []Reject
	for rows.Next() {
		var r Reject
		if err := rows.Scan(&r.ID, &r.RunID, &r.Line, &r.Kind, &r.Reason, &r.Raw, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "runlog: scan reject")
		}
		rejects = append(rejects, r)
	}
	return rejects, eris.Wrap(rows.Err(), "runlog: list rejects iterate")
}

// RunSink adapts one run into a reject sink for the importers. Ledger
// failures log at Warn so the import itself keeps going; a nil sink or
// ledger drops rejects silently.
type RunSink struct {
	Ledger *Ledger
	RunID  string
}

func (s *RunSink) Reject(ctx context.Context, line int, kind, reason, raw string) {
	if s == nil || s.Ledger == nil {
		return
	}
	if err := s.Ledger.RecordReject(ctx, s.RunID, line, kind, reason, raw); err != nil {
		zap.L().Warn("could not record reject", zap.String("run", s.RunID), zap.Error(err))
	}
}
