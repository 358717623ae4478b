// Package store keeps the run ledger: a SQLite record of every pipeline
// run, its per-batch outcomes and the table it produced.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"hydrofreq/internal/outcome"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Stages recorded against batch outcomes.
const (
	StageMeans     = "means"
	StageFrequency = "frequency"
)

var (
	// ErrUnknownRun is returned for a run id the ledger has never seen.
	ErrUnknownRun = errors.New("unknown run")
)

// Ledger is safe for concurrent use; pool workers record outcomes through
// the same instance.
type Ledger struct {
	db     *sql.DB
	mu     sync.Mutex
	dbPath string
}

// NewLedger opens (creating if needed) the ledger database at path.
// ":memory:" gives a private in-memory ledger.
func NewLedger(path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection keeps :memory: coherent and serialises writers.
	db.SetMaxOpenConns(1)

	l := &Ledger{db: db, dbPath: path}
	if err := l.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return l, nil
}

func (l *Ledger) initialize() error {
	runsTable := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		scenario TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		output TEXT,
		row_count INTEGER DEFAULT 0,
		error TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_runs_scenario ON runs(scenario, started_at);
	`

	outcomesTable := `
	CREATE TABLE IF NOT EXISTS batch_outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		stage TEXT NOT NULL,
		batch TEXT NOT NULL,
		kind TEXT NOT NULL,
		reason TEXT,
		models_used TEXT,
		models_absent TEXT,
		row_count INTEGER DEFAULT 0,
		dropped INTEGER DEFAULT 0,
		recovered INTEGER DEFAULT 0,
		groups_count INTEGER DEFAULT 0,
		duration_ms INTEGER DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON batch_outcomes(run_id, stage);
	`

	for _, table := range []string{runsTable, outcomesTable} {
		if _, err := l.db.Exec(table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

// Path is the database location.
func (l *Ledger) Path() string { return l.dbPath }

// StartRun opens a run for scenario and returns its id.
func (l *Ledger) StartRun(scenario string) (string, error) {
	id := uuid.NewString()
	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO runs (id, scenario, status, started_at) VALUES (?, ?, ?, ?)`,
		id, scenario, StatusRunning, formatTime(time.Now()),
	)
	if err != nil {
		return "", fmt.Errorf("failed to start run: %w", err)
	}
	return id, nil
}

// RecordOutcome stores one batch outcome under runID.
func (l *Ledger) RecordOutcome(runID, stage string, o outcome.Outcome) error {
	used, _ := json.Marshal(nonNil(o.ModelsUsed))
	absent, _ := json.Marshal(nonNil(o.ModelsAbsent))

	l.mu.Lock()
	defer l.mu.Unlock()

	_, err := l.db.Exec(
		`INSERT INTO batch_outcomes
		 (run_id, stage, batch, kind, reason, models_used, models_absent, row_count, dropped, recovered, groups_count, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, stage, o.Batch, o.Kind.String(), o.Reason(), string(used), string(absent),
		o.Rows, o.Dropped, o.Recovered, o.Groups, o.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("failed to record outcome: %w", err)
	}
	return nil
}

// FinishRun closes runID. An empty errMsg marks it succeeded.
func (l *Ledger) FinishRun(runID, output string, rows int, errMsg string) error {
	status := StatusSucceeded
	if errMsg != "" {
		status = StatusFailed
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	res, err := l.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ?, output = ?, row_count = ?, error = ? WHERE id = ?`,
		status, formatTime(time.Now()), output, rows, errMsg, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownRun, runID)
	}
	return nil
}

// RunSummary is one run with its batch-mean statistics rolled up.
type RunSummary struct {
	ID         string
	Scenario   string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Output     string
	Rows       int
	Error      string

	BatchesOK     int
	BatchesFailed int
	Dropped       int
	Recovered     int
}

// LatestRuns returns the most recent run of every scenario, ordered by
// scenario name.
func (l *Ledger) LatestRuns() ([]RunSummary, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`
		SELECT r.id, r.scenario, r.status, r.started_at,
		       COALESCE(r.finished_at, ''), COALESCE(r.output, ''), COALESCE(r.row_count, 0), COALESCE(r.error, '')
		FROM runs r
		WHERE r.rowid = (SELECT rowid FROM runs WHERE scenario = r.scenario ORDER BY started_at DESC, rowid DESC LIMIT 1)
		ORDER BY r.scenario`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished string
		if err := rows.Scan(&s.ID, &s.Scenario, &s.Status, &started, &finished, &s.Output, &s.Rows, &s.Error); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTime(started)
		s.FinishedAt = parseTime(finished)
		runs = append(runs, s)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		if err := l.rollup(&runs[i]); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (l *Ledger) rollup(s *RunSummary) error {
	row := l.db.QueryRow(`
		SELECT
			COALESCE(SUM(CASE WHEN kind IN ('success', 'partial') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN kind IN ('failed', 'fatal') THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(dropped), 0),
			COALESCE(SUM(recovered), 0)
		FROM batch_outcomes WHERE run_id = ? AND stage = ?`, s.ID, StageMeans)
	if err := row.Scan(&s.BatchesOK, &s.BatchesFailed, &s.Dropped, &s.Recovered); err != nil {
		return fmt.Errorf("failed to roll up run %s: %w", s.ID, err)
	}
	return nil
}

// OutcomeRecord is a stored batch outcome.
type OutcomeRecord struct {
	Stage        string
	Batch        string
	Kind         string
	Reason       string
	ModelsUsed   []string
	ModelsAbsent []string
	Rows         int
	Dropped      int
	Recovered    int
	Groups       int
	Duration     time.Duration
}

// Outcomes lists the outcomes of runID for stage ("" for all stages) in
// the order they were recorded.
func (l *Ledger) Outcomes(runID, stage string) ([]OutcomeRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rows, err := l.db.Query(`
		SELECT stage, batch, kind, COALESCE(reason, ''), COALESCE(models_used, '[]'), COALESCE(models_absent, '[]'),
		       row_count, dropped, recovered, groups_count, duration_ms
		FROM batch_outcomes
		WHERE run_id = ? AND (? = '' OR stage = ?)
		ORDER BY stage, id`, runID, stage, stage)
	if err != nil {
		return nil, fmt.Errorf("failed to query outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var r OutcomeRecord
		var used, absent string
		var ms int64
		if err := rows.Scan(&r.Stage, &r.Batch, &r.Kind, &r.Reason, &used, &absent,
			&r.Rows, &r.Dropped, &r.Recovered, &r.Groups, &ms); err != nil {
			return nil, fmt.Errorf("failed to scan outcome: %w", err)
		}
		_ = json.Unmarshal([]byte(used), &r.ModelsUsed)
		_ = json.Unmarshal([]byte(absent), &r.ModelsAbsent)
		r.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
