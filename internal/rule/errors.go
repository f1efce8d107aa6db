package rule

import (
	"errors"
	"fmt"
	"strings"
)

// DomainError reports a wildcard value outside the legal set, or an
// invalid domain construction (empty token list, duplicate tokens).
//
// Domain errors are configuration errors: they abort the run before any
// execution starts.
type DomainError struct {
	// Value is the offending wildcard value, empty for construction errors.
	Value string

	// Reason is a human-readable description.
	Reason string
}

func (e *DomainError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("domain: value %q %s", e.Value, e.Reason)
	}
	return fmt.Sprintf("domain: %s", e.Reason)
}

// DuplicateRuleError reports a second registration under an existing name.
type DuplicateRuleError struct {
	Name string
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("rule %q already registered", e.Name)
}

// UnknownRuleError reports a lookup for a name that was never registered.
type UnknownRuleError struct {
	Name string
}

func (e *UnknownRuleError) Error() string {
	return fmt.Sprintf("unknown rule %q", e.Name)
}

// InvalidTemplateError reports a template that is inconsistent with the
// registry's domain: a malformed output pattern, a parameter table entry
// outside the domain, or a default value the rule cannot expand.
type InvalidTemplateError struct {
	Name   string
	Reason string
}

func (e *InvalidTemplateError) Error() string {
	return fmt.Sprintf("invalid rule %q: %s", e.Name, e.Reason)
}

// UnsupportedForRuleError reports a wildcard value that is legal in the
// domain but has no entry in this rule's parameter table.
//
// Omission from a parameter table is preserved as a detectable condition
// rather than silently defaulted: it is not clear from a pipeline
// definition whether the gap is intentional or an oversight, and guessing
// would mask either case.
type UnsupportedForRuleError struct {
	Rule  string
	Value string
}

func (e *UnsupportedForRuleError) Error() string {
	return fmt.Sprintf("rule %q does not support wildcard value %q", e.Rule, e.Value)
}

// MissingSourceError reports a declared input that no registered rule can
// produce and that is absent from the filesystem. Source inputs are never
// auto-produced.
type MissingSourceError struct {
	// Path is the concrete missing input path.
	Path string

	// Task identifies the consumer task that declared the input.
	Task string
}

func (e *MissingSourceError) Error() string {
	return fmt.Sprintf("task %s: source input %q does not exist and no rule produces it", e.Task, e.Path)
}

// DependencyCycleError reports a producer chain that feeds back into
// itself, directly or transitively.
type DependencyCycleError struct {
	// Path lists task IDs along the cycle, first element repeated last.
	Path []string
}

func (e *DependencyCycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Path, " -> "))
}

// ExecutionError reports a non-zero exit from an external command.
type ExecutionError struct {
	Task     string
	ExitCode int

	// Output holds the captured combined stdout/stderr of the command.
	Output string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("task %s: command exited with status %d", e.Task, e.ExitCode)
}

// ContractViolationError reports a command that exited zero without
// producing its declared output artifact.
//
// This is deliberately distinct from ExecutionError: callers must not
// treat "the command failed" and "the rule lied about its output" as
// equivalent conditions.
type ContractViolationError struct {
	Task   string
	Output string
}

func (e *ContractViolationError) Error() string {
	return fmt.Sprintf("task %s: command succeeded but declared output %q was not produced", e.Task, e.Output)
}

// IsConfigError reports whether err belongs to the configuration half of
// the taxonomy. Configuration errors indicate a broken pipeline
// definition and are fatal before any execution starts.
func IsConfigError(err error) bool {
	var de *DomainError
	var dup *DuplicateRuleError
	var unk *UnknownRuleError
	var inv *InvalidTemplateError
	return errors.As(err, &de) || errors.As(err, &dup) ||
		errors.As(err, &unk) || errors.As(err, &inv)
}
