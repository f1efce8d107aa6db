package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// RunSummary is one row of run history.
type RunSummary struct {
	ID         string
	Force      bool
	OK         *bool // nil while the run is still in progress
	StartedAt  time.Time
	FinishedAt *time.Time
}

// TaskRecord is one journaled task outcome.
type TaskRecord struct {
	RunID      string
	Seq        int64
	Rule       string
	Wildcard   string
	Output     string
	State      string
	ExitCode   int
	Reason     string
	DurationMS int64
}

// RecentRuns returns up to limit runs, newest first.
func (j *Journal) RecentRuns(limit int) ([]RunSummary, error) {
	rows, err := j.db.Query(
		`SELECT id, force, ok, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			r        RunSummary
			force    int
			ok       sql.NullInt64
			started  string
			finished sql.NullString
		)
		if err := rows.Scan(&r.ID, &force, &ok, &started, &finished); err != nil {
			return nil, fmt.Errorf("journal scan run: %w", err)
		}
		r.Force = force != 0
		if ok.Valid {
			v := ok.Int64 != 0
			r.OK = &v
		}
		if r.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("journal parse started_at: %w", err)
		}
		if finished.Valid {
			t, err := time.Parse(time.RFC3339Nano, finished.String)
			if err != nil {
				return nil, fmt.Errorf("journal parse finished_at: %w", err)
			}
			r.FinishedAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// TasksForRun returns the journaled task outcomes of one run in logical
// clock order.
func (j *Journal) TasksForRun(runID string) ([]TaskRecord, error) {
	rows, err := j.db.Query(
		`SELECT run_id, seq, rule, wildcard, output, state, exit_code, reason, duration_ms
		 FROM task_runs WHERE run_id = ? ORDER BY seq`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("journal query tasks: %w", err)
	}
	defer rows.Close()

	var out []TaskRecord
	for rows.Next() {
		var t TaskRecord
		if err := rows.Scan(&t.RunID, &t.Seq, &t.Rule, &t.Wildcard, &t.Output,
			&t.State, &t.ExitCode, &t.Reason, &t.DurationMS); err != nil {
			return nil, fmt.Errorf("journal scan task: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
