package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/makina-run/makina/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Wildcard string   `json:"wildcard,omitempty"`
	Values   []string `json:"values,omitempty"`
	Rules    []string `json:"rules,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <pipeline.yaml>",
		Short: "Validate a pipeline file without running anything",
		Long: `Validate a pipeline declaration without resolving or executing.

Checks YAML structure, the wildcard domain, and every rule template:
unique names, output patterns containing the wildcard placeholder
exactly once, and per-rule parameter tables covering subsets of the
domain.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, pipelinePath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	registry, err := config.Load(pipelinePath)
	if err != nil {
		_ = formatter.Error(ErrCodeConfig, err.Error())
		return WrapExitError(ExitFailure, "pipeline invalid", err)
	}

	result := ValidationResult{
		Valid:    true,
		Wildcard: registry.Domain().Placeholder(),
		Values:   registry.Domain().Tokens(),
	}
	for _, tpl := range registry.Templates() {
		result.Rules = append(result.Rules, tpl.Name)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "pipeline valid: wildcard %s over %d value(s), %d rule(s)\n",
		result.Wildcard, len(result.Values), len(result.Rules))
	formatter.VerboseLog("values: %v", result.Values)
	formatter.VerboseLog("rules: %v", result.Rules)
	return nil
}
