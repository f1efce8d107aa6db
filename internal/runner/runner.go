package runner

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/makina-run/makina/internal/exec"
	"github.com/makina-run/makina/internal/resolve"
	"github.com/makina-run/makina/internal/rule"
)

// Recorder persists per-task outcomes for a run. Implemented by the
// sqlite journal; a nil Recorder disables persistence. The engine never
// reads the journal back for scheduling decisions: artifact existence
// remains the sole incremental signal.
type Recorder interface {
	BeginRun(runID string, force bool, startedAt time.Time) error
	RecordTask(runID string, seq int64, task rule.Task, state resolve.TaskState, exitCode int, reason string, duration time.Duration) error
	FinishRun(runID string, ok bool, finishedAt time.Time) error
}

// Runner executes plans.
type Runner struct {
	executor *exec.Executor
	recorder Recorder
	workers  int
	clock    *Clock
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the parallel worker limit. Values below 1 are
// treated as 1 (strictly serial, depth-first order).
func WithWorkers(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.workers = n
		}
	}
}

// WithRecorder attaches a run journal.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// New creates a Runner over the given executor. The default worker
// limit is 1.
func New(executor *exec.Executor, opts ...Option) *Runner {
	r := &Runner{
		executor: executor,
		workers:  1,
		clock:    NewClock(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// completion is delivered by a worker when a task reaches a terminal
// state.
type completion struct {
	id     string
	result exec.Result
	err    error
}

// Run executes every task in the plan and returns the per-task report.
//
// The returned error is non-nil only for infrastructure failures
// (journal writes, invalid state transitions); task failures are
// reported through the Report, per-task, so one failed target does not
// mask the outcome of its siblings.
func (r *Runner) Run(ctx context.Context, plan *resolve.Plan) (*Report, error) {
	runID := uuid.Must(uuid.NewV7()).String()
	report := &Report{RunID: runID}

	if r.recorder != nil {
		if err := r.recorder.BeginRun(runID, plan.Force, time.Now()); err != nil {
			return nil, err
		}
	}

	slog.Info("run starting",
		"run_id", runID,
		"tasks", len(plan.Tasks),
		"workers", r.workers,
		"force", plan.Force,
	)

	state := plan.InitialState()
	statuses := make(map[string]*TaskStatus, len(plan.Tasks))
	tasksByID := make(map[string]rule.Task, len(plan.Tasks))

	// dependents is the reverse of plan.Deps: producer ID to the
	// consumers waiting on it.
	dependents := make(map[string][]string)
	waiting := make(map[string]int)

	var ready []string
	done := 0

	for _, task := range plan.Tasks {
		id := task.ID()
		tasksByID[id] = task
		statuses[id] = &TaskStatus{Task: task, ID: id, State: state[id]}

		if state[id] == resolve.StateSkipped {
			done++
			slog.Info("task already satisfied, skipping",
				"task", id,
				"output", task.Output,
			)
			if err := r.record(runID, task, resolve.StateSkipped, 0, "", 0); err != nil {
				return nil, err
			}
			continue
		}

		if err := state.Transition(id, resolve.StateUnresolved, resolve.StateResolvingInputs); err != nil {
			return nil, err
		}
		waiting[id] = len(plan.Deps[id])
		for _, dep := range plan.Deps[id] {
			dependents[dep] = append(dependents[dep], id)
		}
		if waiting[id] == 0 {
			if err := state.Transition(id, resolve.StateResolvingInputs, resolve.StateReady); err != nil {
				return nil, err
			}
			ready = append(ready, id)
		}
	}

	var g errgroup.Group
	g.SetLimit(r.workers)
	completions := make(chan completion, len(plan.Tasks))

	running := 0
	halted := false // stop launching: a task failed or the context is done

	for done < len(plan.Tasks) {
		// Cancellation is honored between task launches.
		if !halted && ctx.Err() != nil {
			slog.Warn("run cancelled, waiting for in-flight tasks", "run_id", runID)
			halted = true
		}

		for !halted && len(ready) > 0 {
			id := ready[0]
			task := tasksByID[id]
			launched := g.TryGo(func() error {
				result, err := r.executor.Run(ctx, task)
				completions <- completion{id: id, result: result, err: err}
				return nil
			})
			if !launched {
				// Worker limit reached; drain a completion first.
				break
			}
			ready = ready[1:]
			running++
			if err := state.Transition(id, resolve.StateReady, resolve.StateRunning); err != nil {
				return nil, err
			}
		}

		if running == 0 {
			// Nothing in flight and nothing launchable: the remaining
			// tasks are stranded by a failure or cancellation.
			break
		}

		comp := <-completions
		running--
		done++

		status := statuses[comp.id]
		status.ExitCode = comp.result.ExitCode
		status.Duration = comp.result.Duration

		if comp.err != nil {
			if err := state.Transition(comp.id, resolve.StateRunning, resolve.StateFailed); err != nil {
				return nil, err
			}
			status.State = resolve.StateFailed
			status.Reason = comp.err.Error()
			halted = true
			if err := r.record(runID, status.Task, resolve.StateFailed, comp.result.ExitCode, status.Reason, comp.result.Duration); err != nil {
				return nil, err
			}
			continue
		}

		if err := state.Transition(comp.id, resolve.StateRunning, resolve.StateDone); err != nil {
			return nil, err
		}
		status.State = resolve.StateDone
		if err := r.record(runID, status.Task, resolve.StateDone, comp.result.ExitCode, "", comp.result.Duration); err != nil {
			return nil, err
		}

		// Release consumers whose producers are all satisfied.
		for _, consumer := range dependents[comp.id] {
			waiting[consumer]--
			if waiting[consumer] == 0 {
				if err := state.Transition(consumer, resolve.StateResolvingInputs, resolve.StateReady); err != nil {
					return nil, err
				}
				ready = append(ready, consumer)
			}
		}
	}

	_ = g.Wait()

	// Tasks stranded by a failure or cancellation are reported Failed
	// with the stranding reason; they were never dispatched.
	strandReason := "upstream task failed"
	if err := ctx.Err(); err != nil {
		strandReason = "run cancelled: " + err.Error()
	}
	for _, task := range plan.Tasks {
		id := task.ID()
		if resolve.IsTerminal(state[id]) {
			continue
		}
		state[id] = resolve.StateFailed
		statuses[id].State = resolve.StateFailed
		statuses[id].Reason = strandReason
		if err := r.record(runID, task, resolve.StateFailed, 0, strandReason, 0); err != nil {
			return nil, err
		}
	}

	for _, task := range plan.Tasks {
		report.Tasks = append(report.Tasks, *statuses[task.ID()])
	}

	if r.recorder != nil {
		if err := r.recorder.FinishRun(runID, report.OK(), time.Now()); err != nil {
			return nil, err
		}
	}

	doneCount, failed, skipped := report.Counts()
	slog.Info("run finished",
		"run_id", runID,
		"done", doneCount,
		"failed", failed,
		"skipped", skipped,
		"ok", report.OK(),
	)

	return report, nil
}

func (r *Runner) record(runID string, task rule.Task, st resolve.TaskState, exitCode int, reason string, d time.Duration) error {
	if r.recorder == nil {
		return nil
	}
	return r.recorder.RecordTask(runID, r.clock.Next(), task, st, exitCode, reason, d)
}
