package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/makina-run/makina/internal/artifact"
	"github.com/makina-run/makina/internal/config"
	"github.com/makina-run/makina/internal/exec"
	"github.com/makina-run/makina/internal/expand"
	"github.com/makina-run/makina/internal/journal"
	"github.com/makina-run/makina/internal/resolve"
	"github.com/makina-run/makina/internal/runner"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Force   bool
	Jobs    int
	Journal string
	Root    string

	// Invoker allows overriding the command invoker (for testing).
	// If nil, defaults to ShellInvoker.
	Invoker exec.Invoker
}

// RunOutput is the machine-readable result of one run.
type RunOutput struct {
	RunID   string              `json:"run_id"`
	OK      bool                `json:"ok"`
	Done    int                 `json:"done"`
	Failed  int                 `json:"failed"`
	Skipped int                 `json:"skipped"`
	Tasks   []runner.TaskStatus `json:"tasks"`
	Errors  []string            `json:"errors,omitempty"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <pipeline.yaml> <rule> [value...]",
		Short: "Build a rule's targets and their missing dependencies",
		Long: `Build the targets of a rule, resolving and executing missing
dependencies first.

With explicit wildcard values, one target per value is built. Without
them, the rule's declared defaults are used. Targets whose output
already exists are skipped unless --force is given.

Example:
  makina run pipeline.yaml export bbh gaussian
  makina run pipeline.yaml infer --force --jobs 4 --journal runs.db`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "rebuild targets even if their output exists")
	cmd.Flags().IntVarP(&opts.Jobs, "jobs", "j", 1, "maximum number of tasks to run concurrently")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite run journal (optional)")
	cmd.Flags().StringVar(&opts.Root, "root", ".", "invocation root for artifact paths and commands")

	return cmd
}

func runPipeline(opts *RunOptions, pipelinePath, ruleName string, values []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	slog.Info("loading pipeline", "path", pipelinePath)
	registry, err := config.Load(pipelinePath)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, "failed to load pipeline: "+err.Error())
		return WrapExitError(ExitCommandError, "failed to load pipeline", err)
	}

	expander := expand.New(registry)
	targets, err := expandTargets(expander, ruleName, values)
	if err != nil {
		_ = formatter.Error(ErrCodeTarget, "failed to expand targets: "+err.Error())
		return WrapExitError(ExitCommandError, "failed to expand targets", err)
	}
	slog.Info("targets expanded", "rule", ruleName, "targets", len(targets))

	artifacts := &artifact.DirStore{Root: opts.Root}
	resolver := resolve.New(registry, expander, artifacts, opts.Force)
	plan, targetErrs := resolver.Plan(targets)
	for _, te := range targetErrs {
		slog.Error("target resolution failed", "target", te.Target, "error", te.Err)
	}
	slog.Info("plan resolved", "tasks", len(plan.Tasks), "unresolved_targets", len(targetErrs))

	invoker := opts.Invoker
	if invoker == nil {
		invoker = exec.ShellInvoker{}
	}
	executor := exec.New(invoker, artifacts, opts.Root, opts.Force)

	runnerOpts := []runner.Option{runner.WithWorkers(opts.Jobs)}
	if opts.Journal != "" {
		j, err := journal.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, "failed to open journal: "+err.Error())
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				slog.Error("error closing journal", "error", closeErr)
			}
		}()
		runnerOpts = append(runnerOpts, runner.WithRecorder(j))
	}
	batch := runner.New(executor, runnerOpts...)

	// Cancel the run on Ctrl-C or SIGTERM; in-flight tasks finish,
	// nothing new launches.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, cancelling run", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	report, err := batch.Run(ctx, plan)
	if err != nil {
		_ = formatter.Error(ErrCodeJournal, "run aborted: "+err.Error())
		return WrapExitError(ExitFailure, "run aborted", err)
	}

	out := buildRunOutput(report, targetErrs)
	if opts.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printRunText(formatter, out)
	}

	if !out.OK {
		return NewExitError(ExitFailure, "run failed")
	}
	return nil
}

func buildRunOutput(report *runner.Report, targetErrs []*resolve.TargetError) RunOutput {
	done, failed, skipped := report.Counts()
	out := RunOutput{
		RunID:   report.RunID,
		OK:      report.OK() && len(targetErrs) == 0,
		Done:    done,
		Failed:  failed,
		Skipped: skipped,
		Tasks:   report.Tasks,
	}
	for _, te := range targetErrs {
		out.Errors = append(out.Errors, te.Error())
	}
	return out
}

func printRunText(f *OutputFormatter, out RunOutput) {
	fmt.Fprintf(f.Writer, "run %s: %d done, %d failed, %d skipped\n",
		out.RunID, out.Done, out.Failed, out.Skipped)
	for _, ts := range out.Tasks {
		switch ts.State {
		case resolve.StateDone:
			fmt.Fprintf(f.Writer, "  done     %-24s (%s)\n", ts.ID, ts.Duration.Round(time.Millisecond))
		case resolve.StateFailed:
			fmt.Fprintf(f.Writer, "  failed   %-24s %s\n", ts.ID, ts.Reason)
		case resolve.StateSkipped:
			fmt.Fprintf(f.Writer, "  skipped  %s\n", ts.ID)
		}
	}
	for _, msg := range out.Errors {
		fmt.Fprintf(f.Writer, "  error    %s\n", msg)
	}
}
