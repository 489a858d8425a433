// Package ledger keeps a SQLite record of runs and the terminal state of every
// experiment, so partial batches can be audited and re-run.
package ledger

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	algorithm    TEXT NOT NULL,
	regime       TEXT,
	params_json  TEXT,
	planned      INTEGER NOT NULL,
	started_at   TEXT NOT NULL,
	finished_at  TEXT,
	written      INTEGER NOT NULL DEFAULT 0,
	skipped      INTEGER NOT NULL DEFAULT 0,
	failed       INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS experiments (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	descriptor   TEXT NOT NULL,
	input_path   TEXT,
	output_path  TEXT,
	state        TEXT NOT NULL,
	reason       TEXT,
	variables    INTEGER NOT NULL DEFAULT 0,
	row_count    INTEGER NOT NULL DEFAULT 0,
	edges        INTEGER NOT NULL DEFAULT 0,
	duration_ms  INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_experiments_run ON experiments(run_id);
`
// #endregion schema

// #region store-struct
// Store is the run ledger. Writes are serialised through one connection,
// so a Store may be shared by concurrent workers.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// NewStore opens (or creates) the ledger at dbPath and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion constructor

// #region begin-run
// BeginRun inserts a new run, assigning its id and start time.
func (s *Store) BeginRun(r Run) (Run, error) {
	r.RunID = uuid.New().String()
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, algorithm, regime, params_json, planned, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Algorithm, nullIfEmpty(r.Regime), nullIfEmpty(r.ParamsJSON), r.Planned,
		r.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return r, nil
}
// #endregion begin-run

// #region record
// RecordExperiment appends the terminal state of one experiment.
func (s *Store) RecordExperiment(e Experiment) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(
		`INSERT INTO experiments (run_id, descriptor, input_path, output_path, state, reason,
		                          variables, row_count, edges, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.RunID, e.Descriptor, nullIfEmpty(e.InputPath), nullIfEmpty(e.OutputPath), e.State,
		nullIfEmpty(e.Reason), e.Variables, e.Rows, e.Edges, e.Duration.Milliseconds(),
		e.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record experiment %s: %w", e.Descriptor, err)
	}
	return nil
}
// #endregion record

// #region finish-run
// FinishRun stamps the run with its end time and final counts.
func (s *Store) FinishRun(runID string, counts Counts) error {
	res, err := s.db.Exec(
		`UPDATE runs SET finished_at = ?, written = ?, skipped = ?, failed = ? WHERE run_id = ?`,
		time.Now().UTC().Format(time.RFC3339Nano), counts.Written, counts.Skipped, counts.Failed, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
// #endregion finish-run

// #region queries
const runColumns = `run_id, algorithm, regime, params_json, planned, started_at, finished_at, written, skipped, failed`

// GetRun retrieves one run by id.
func (s *Store) GetRun(runID string) (Run, error) {
	row := s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	return r, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Experiments returns the recorded experiments of a run in insertion order.
func (s *Store) Experiments(runID string) ([]Experiment, error) {
	rows, err := s.db.Query(
		`SELECT run_id, descriptor, input_path, output_path, state, reason,
		        variables, row_count, edges, duration_ms, created_at
		 FROM experiments WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var out []Experiment
	for rows.Next() {
		var e Experiment
		var input, output, reason sql.NullString
		var durMs int64
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Descriptor, &input, &output, &e.State, &reason,
			&e.Variables, &e.Rows, &e.Edges, &durMs, &createdStr); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		e.InputPath = input.String
		e.OutputPath = output.String
		e.Reason = reason.String
		e.Duration = time.Duration(durMs) * time.Millisecond
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var regime, params, finished sql.NullString
	var startedStr string
	err := sc.Scan(&r.RunID, &r.Algorithm, &regime, &params, &r.Planned, &startedStr, &finished,
		&r.Counts.Written, &r.Counts.Skipped, &r.Counts.Failed)
	if err != nil {
		return Run{}, err
	}
	r.Regime = regime.String
	r.ParamsJSON = params.String
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return r, nil
}
// #endregion queries

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
