package runner

import (
	"time"

	"github.com/makina-run/makina/internal/resolve"
	"github.com/makina-run/makina/internal/rule"
)

// TaskStatus is the per-task outcome of one run: Done, Failed with a
// reason, or Skipped (already satisfied).
type TaskStatus struct {
	Task     rule.Task         `json:"-"`
	ID       string            `json:"id"`
	State    resolve.TaskState `json:"state"`
	Reason   string            `json:"reason,omitempty"`
	ExitCode int               `json:"exit_code"`
	Duration time.Duration     `json:"duration_ns"`
}

// Report is the outcome of one batch run.
type Report struct {
	// RunID correlates the report with journal rows.
	RunID string `json:"run_id"`

	// Tasks lists per-task outcomes in plan order (producers before
	// consumers), regardless of the order completions arrived in.
	Tasks []TaskStatus `json:"tasks"`
}

// OK reports whether every task reached a satisfied terminal state.
func (r *Report) OK() bool {
	for _, ts := range r.Tasks {
		if ts.State == resolve.StateFailed {
			return false
		}
	}
	return true
}

// Counts returns the number of done, failed, and skipped tasks.
func (r *Report) Counts() (done, failed, skipped int) {
	for _, ts := range r.Tasks {
		switch ts.State {
		case resolve.StateDone:
			done++
		case resolve.StateFailed:
			failed++
		case resolve.StateSkipped:
			skipped++
		}
	}
	return done, failed, skipped
}
