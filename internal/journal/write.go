package journal

import (
	"fmt"
	"time"

	"github.com/makina-run/makina/internal/resolve"
	"github.com/makina-run/makina/internal/rule"
)

// BeginRun opens a run record. Implements runner.Recorder.
func (j *Journal) BeginRun(runID string, force bool, startedAt time.Time) error {
	_, err := j.db.Exec(
		`INSERT INTO runs (id, force, started_at) VALUES (?, ?, ?)`,
		runID, boolInt(force), startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("journal begin run %s: %w", runID, err)
	}
	return nil
}

// RecordTask appends one terminal task outcome. Implements
// runner.Recorder.
func (j *Journal) RecordTask(runID string, seq int64, task rule.Task, state resolve.TaskState, exitCode int, reason string, duration time.Duration) error {
	_, err := j.db.Exec(
		`INSERT INTO task_runs (run_id, seq, rule, wildcard, output, state, exit_code, reason, duration_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, task.Rule, task.Wildcard, task.Output,
		string(state), exitCode, reason, duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("journal record task %s: %w", task.ID(), err)
	}
	return nil
}

// FinishRun closes a run record with its overall outcome. Implements
// runner.Recorder.
func (j *Journal) FinishRun(runID string, ok bool, finishedAt time.Time) error {
	res, err := j.db.Exec(
		`UPDATE runs SET ok = ?, finished_at = ? WHERE id = ?`,
		boolInt(ok), finishedAt.UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("journal finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err == nil && n == 0 {
		return fmt.Errorf("journal finish run %s: run was never begun", runID)
	}
	return nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
