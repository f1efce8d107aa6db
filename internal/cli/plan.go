package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makina-run/makina/internal/artifact"
	"github.com/makina-run/makina/internal/config"
	"github.com/makina-run/makina/internal/expand"
	"github.com/makina-run/makina/internal/resolve"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Force bool
	Root  string
}

// PlanTask is one entry of a resolved plan, in execution order.
type PlanTask struct {
	ID       string   `json:"id"`
	Rule     string   `json:"rule"`
	Wildcard string   `json:"wildcard"`
	Output   string   `json:"output"`
	Command  string   `json:"command"`
	Deps     []string `json:"deps,omitempty"`
	Skipped  bool     `json:"skipped,omitempty"`
}

// PlanOutput is the machine-readable resolved plan.
type PlanOutput struct {
	Tasks  []PlanTask `json:"tasks"`
	Errors []string   `json:"errors,omitempty"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <pipeline.yaml> <rule> [value...]",
		Short: "Show what a run would execute, without executing",
		Long: `Resolve a rule's targets into an execution plan and print it.

The plan lists every task in execution order (producers before
consumers), which tasks would be skipped because their output exists,
and any targets that cannot be resolved. Nothing is executed.`,
		Args:          cobra.MinimumNArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], args[1], args[2:], cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Force, "force", "f", false, "plan as if no outputs existed")
	cmd.Flags().StringVar(&opts.Root, "root", ".", "invocation root for artifact paths")

	return cmd
}

func runPlan(opts *PlanOptions, pipelinePath, ruleName string, values []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

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

	artifacts := &artifact.DirStore{Root: opts.Root}
	resolver := resolve.New(registry, expander, artifacts, opts.Force)
	plan, targetErrs := resolver.Plan(targets)

	out := buildPlanOutput(plan, targetErrs)
	if opts.Format == "json" {
		if err := formatter.Success(out); err != nil {
			return err
		}
	} else {
		printPlanText(formatter, out)
	}

	if len(targetErrs) > 0 {
		return NewExitError(ExitFailure, "some targets could not be resolved")
	}
	return nil
}

func buildPlanOutput(plan *resolve.Plan, targetErrs []*resolve.TargetError) PlanOutput {
	out := PlanOutput{Tasks: make([]PlanTask, 0, len(plan.Tasks))}
	for _, task := range plan.Tasks {
		out.Tasks = append(out.Tasks, PlanTask{
			ID:       task.ID(),
			Rule:     task.Rule,
			Wildcard: task.Wildcard,
			Output:   task.Output,
			Command:  task.Command,
			Deps:     plan.Deps[task.ID()],
			Skipped:  plan.Skipped[task.ID()],
		})
	}
	for _, te := range targetErrs {
		out.Errors = append(out.Errors, te.Error())
	}
	return out
}

func printPlanText(f *OutputFormatter, out PlanOutput) {
	execCount := 0
	for _, pt := range out.Tasks {
		if !pt.Skipped {
			execCount++
		}
	}
	fmt.Fprintf(f.Writer, "plan: %d task(s) to execute, %d skipped\n", execCount, len(out.Tasks)-execCount)
	step := 0
	for _, pt := range out.Tasks {
		if pt.Skipped {
			fmt.Fprintf(f.Writer, "  -. %s (skipped, output exists)\n", pt.ID)
			continue
		}
		step++
		fmt.Fprintf(f.Writer, "  %d. %s\n", step, pt.ID)
		fmt.Fprintf(f.Writer, "     output:  %s\n", pt.Output)
		fmt.Fprintf(f.Writer, "     command: %s\n", pt.Command)
		if len(pt.Deps) > 0 {
			fmt.Fprintf(f.Writer, "     after:   %v\n", pt.Deps)
		}
	}
	for _, msg := range out.Errors {
		fmt.Fprintf(f.Writer, "  error: %s\n", msg)
	}
}
