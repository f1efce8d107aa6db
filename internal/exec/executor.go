package exec

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	osexec "os/exec"
	"path/filepath"
	"sort"
	"time"

	"github.com/makina-run/makina/internal/artifact"
	"github.com/makina-run/makina/internal/rule"
)

// Invoker launches one external command and reports its exit status and
// combined output. Implemented by ShellInvoker (production) and by test
// fakes.
type Invoker interface {
	Invoke(ctx context.Context, command string, env []string, dir string) (exitCode int, output []byte, err error)
}

// ShellInvoker runs commands through "sh -c", matching the declarative
// command-template surface: the template is a shell line, not an argv.
type ShellInvoker struct{}

// Invoke implements Invoker. A non-zero exit is reported through the
// exitCode return, not as an error; the error return is reserved for
// failures to launch at all.
func (ShellInvoker) Invoke(ctx context.Context, command string, env []string, dir string) (int, []byte, error) {
	cmd := osexec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = dir
	cmd.Env = env

	output, err := cmd.CombinedOutput()
	if err == nil {
		return 0, output, nil
	}
	var exitErr *osexec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode(), output, nil
	}
	return -1, output, fmt.Errorf("launch command: %w", err)
}

// Result describes one completed dispatch.
type Result struct {
	Task     rule.Task
	ExitCode int
	Output   string
	Duration time.Duration
}

// Executor runs tasks against the external environment.
type Executor struct {
	invoker   Invoker
	artifacts artifact.Store
	locks     *OutputLocks

	// root is the invocation root; rule workdirs are resolved against it.
	root string

	// force treats an existing output directory as overwritable: it is
	// removed before the command runs so a failed re-run cannot leave a
	// stale satisfied artifact behind.
	force bool
}

// New creates an Executor using the process-wide output lock table.
func New(invoker Invoker, artifacts artifact.Store, root string, force bool) *Executor {
	return NewWithLocks(invoker, artifacts, root, force, processLocks)
}

// NewWithLocks creates an Executor with an explicit lock table. Tests
// use this to observe lock behavior in isolation.
func NewWithLocks(invoker Invoker, artifacts artifact.Store, root string, force bool, locks *OutputLocks) *Executor {
	return &Executor{
		invoker:   invoker,
		artifacts: artifacts,
		locks:     locks,
		root:      root,
		force:     force,
	}
}

// Run dispatches the task's command and verifies its output contract.
//
// On non-zero exit it returns ExecutionError carrying the exit code and
// captured output. On zero exit it verifies the declared output artifact
// now exists; absence is ContractViolationError, which callers must not
// conflate with a command failure. The per-output lock is held for the
// whole dispatch.
func (e *Executor) Run(ctx context.Context, task rule.Task) (Result, error) {
	release := e.locks.Acquire(task.Output)
	defer release()

	if err := ctx.Err(); err != nil {
		return Result{Task: task}, err
	}

	if e.force {
		exists, err := e.artifacts.Exists(task.Output)
		if err != nil {
			return Result{Task: task}, err
		}
		if exists {
			slog.Debug("removing stale output for forced rebuild",
				"task", task.ID(),
				"output", task.Output,
			)
			if err := e.artifacts.Remove(task.Output); err != nil {
				return Result{Task: task}, err
			}
		}
	}

	dir := e.root
	if task.Workdir != "" {
		dir = filepath.Join(e.root, task.Workdir)
	}

	slog.Info("dispatching task",
		"task", task.ID(),
		"command", task.Command,
		"workdir", dir,
	)

	started := time.Now()
	exitCode, output, err := e.invoker.Invoke(ctx, task.Command, mergeEnv(task.Env), dir)
	result := Result{
		Task:     task,
		ExitCode: exitCode,
		Output:   string(output),
		Duration: time.Since(started),
	}
	if err != nil {
		return result, fmt.Errorf("task %s: %w", task.ID(), err)
	}

	if exitCode != 0 {
		slog.Error("task command failed",
			"task", task.ID(),
			"exit_code", exitCode,
		)
		return result, &rule.ExecutionError{
			Task:     task.ID(),
			ExitCode: exitCode,
			Output:   result.Output,
		}
	}

	exists, err := e.artifacts.Exists(task.Output)
	if err != nil {
		return result, err
	}
	if !exists {
		slog.Error("task violated its output contract",
			"task", task.ID(),
			"output", task.Output,
		)
		return result, &rule.ContractViolationError{Task: task.ID(), Output: task.Output}
	}

	slog.Info("task done",
		"task", task.ID(),
		"output", task.Output,
		"duration", result.Duration,
	)
	return result, nil
}

// mergeEnv layers the rule's overrides on top of the ambient
// environment. Override order is sorted by key so the child environment
// is deterministic for a given task.
func mergeEnv(overrides map[string]string) []string {
	env := os.Environ()
	keys := make([]string, 0, len(overrides))
	for k := range overrides {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		env = append(env, k+"="+overrides[k])
	}
	return env
}
