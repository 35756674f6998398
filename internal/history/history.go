// Package history persists suite runs in a local SQLite database so past
// results can be inspected without digging through report files.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/qaloop-dev/qaloop/internal/agent"
)

// Store wraps the history database. Safe for use from one process; the
// connection pool is pinned to a single connection as required by the
// serverless driver.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open creates or opens the history database at path and ensures the schema
// exists.
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, logger: logger.Named("history")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	stmts := []string{
		"PRAGMA foreign_keys=ON;",
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("apply pragma %q: %w", stmt, err)
		}
	}
	return nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS runs (
	id                TEXT PRIMARY KEY,
	started_at        TEXT NOT NULL,
	finished_at       TEXT NOT NULL,
	scenarios         INTEGER NOT NULL,
	passed            INTEGER NOT NULL,
	failed_steps      INTEGER NOT NULL,
	failed_assertions INTEGER NOT NULL,
	correct           INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS scenario_runs (
	run_id      TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position    INTEGER NOT NULL,
	name        TEXT NOT NULL,
	verdict     TEXT NOT NULL,
	detail      TEXT NOT NULL,
	steps       INTEGER NOT NULL,
	correct     INTEGER NOT NULL,
	duration_ms INTEGER NOT NULL,
	PRIMARY KEY (run_id, position)
);`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// SaveSuite records a completed suite and its scenario verdicts in one
// transaction.
func (s *Store) SaveSuite(ctx context.Context, suite *agent.SuiteResult) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin save suite: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO runs(id, started_at, finished_at, scenarios, passed, failed_steps, failed_assertions, correct)
		VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
		suite.RunID,
		suite.StartedAt.UTC().Format(time.RFC3339),
		suite.FinishedAt.UTC().Format(time.RFC3339),
		suite.Len(),
		suite.Passed(),
		suite.FailedSteps(),
		suite.FailedAssertions(),
		suite.CorrectCount(),
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for i, res := range suite.Results {
		detail := ""
		switch res.Verdict.Kind {
		case agent.VerdictFailedStep:
			detail = res.Verdict.Reason
		case agent.VerdictFailedAssertion:
			detail = fmt.Sprintf("observed: %s; expected: %s", res.Verdict.Observed, res.Verdict.Expected)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO scenario_runs(run_id, position, name, verdict, detail, steps, correct, duration_ms)
			VALUES(?, ?, ?, ?, ?, ?, ?, ?)`,
			suite.RunID, i, res.Scenario.Name, res.Verdict.Kind.String(), detail,
			len(res.Steps), boolToInt(res.Correct), res.Duration.Milliseconds(),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert scenario run %q: %w", res.Scenario.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit save suite: %w", err)
	}
	s.logger.Debug("Suite saved to history", zap.String("run_id", suite.RunID))
	return nil
}

// RunSummary is one row of the run history.
type RunSummary struct {
	ID               string
	StartedAt        time.Time
	FinishedAt       time.Time
	Scenarios        int
	Passed           int
	FailedSteps      int
	FailedAssertions int
	Correct          int
}

// RecentRuns returns up to n most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, n int) ([]RunSummary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, started_at, finished_at, scenarios, passed, failed_steps, failed_assertions, correct
		FROM runs ORDER BY started_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query recent runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var started, finished string
		if err := rows.Scan(&r.ID, &started, &finished, &r.Scenarios, &r.Passed, &r.FailedSteps, &r.FailedAssertions, &r.Correct); err != nil {
			return nil, fmt.Errorf("scan run row: %w", err)
		}
		r.StartedAt, _ = time.Parse(time.RFC3339, started)
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

// ScenarioRow is one scenario's outcome within a stored run.
type ScenarioRow struct {
	Name     string
	Verdict  string
	Detail   string
	Steps    int
	Correct  bool
	Duration time.Duration
}

// RunScenarios returns the scenario outcomes of one run in execution order.
func (s *Store) RunScenarios(ctx context.Context, runID string) ([]ScenarioRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, verdict, detail, steps, correct, duration_ms
		FROM scenario_runs WHERE run_id=? ORDER BY position ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run scenarios: %w", err)
	}
	defer rows.Close()

	var out []ScenarioRow
	for rows.Next() {
		var r ScenarioRow
		var correct int
		var durationMS int64
		if err := rows.Scan(&r.Name, &r.Verdict, &r.Detail, &r.Steps, &correct, &durationMS); err != nil {
			return nil, fmt.Errorf("scan scenario row: %w", err)
		}
		r.Correct = correct != 0
		r.Duration = time.Duration(durationMS) * time.Millisecond
		out = append(out, r)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
