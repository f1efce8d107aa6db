package cli

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/makina-run/makina/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Journal string
	Limit   int
	RunID   string
}

// HistoryOutput is the machine-readable history payload.
type HistoryOutput struct {
	Runs  []journal.RunSummary `json:"runs,omitempty"`
	Tasks []journal.TaskRecord `json:"tasks,omitempty"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show journaled runs",
		Long: `Show past runs recorded in a run journal.

Without --run, lists recent runs newest first. With --run, lists the
journaled task outcomes of that run in execution order.

Example:
  makina history --journal runs.db
  makina history --journal runs.db --run 01890a5d-ac96-774b-bcce-b302099a8057`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite run journal (required)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 10, "maximum number of runs to list")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "show task outcomes for one run")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

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

	var out HistoryOutput
	if opts.RunID != "" {
		tasks, err := j.TasksForRun(opts.RunID)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, "failed to read run: "+err.Error())
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		out.Tasks = tasks
	} else {
		runs, err := j.RecentRuns(opts.Limit)
		if err != nil {
			_ = formatter.Error(ErrCodeJournal, "failed to read runs: "+err.Error())
			return WrapExitError(ExitCommandError, "failed to read runs", err)
		}
		out.Runs = runs
	}

	if opts.Format == "json" {
		return formatter.Success(out)
	}
	printHistoryText(formatter, out)
	return nil
}

func printHistoryText(f *OutputFormatter, out HistoryOutput) {
	for _, run := range out.Runs {
		status := "in progress"
		switch {
		case run.OK != nil && *run.OK:
			status = "ok"
		case run.OK != nil:
			status = "failed"
		}
		forced := ""
		if run.Force {
			forced = " (forced)"
		}
		fmt.Fprintf(f.Writer, "%s  %-11s %s%s\n",
			run.ID, status, run.StartedAt.Local().Format(time.RFC3339), forced)
	}
	for _, task := range out.Tasks {
		fmt.Fprintf(f.Writer, "%3d  %-8s %s:%s", task.Seq, task.State, task.Rule, task.Wildcard)
		if task.Reason != "" {
			fmt.Fprintf(f.Writer, "  %s", task.Reason)
		}
		fmt.Fprintln(f.Writer)
	}
	if len(out.Runs) == 0 && len(out.Tasks) == 0 {
		fmt.Fprintln(f.Writer, "no runs recorded")
	}
}
