package rule

import "sort"

// ParamResolver maps a bound wildcard value to the rule-specific
// parameter string passed to the external command.
//
// A resolver is a partial function: its accepted values may be a strict
// subset of the wildcard domain. Values reports the accepted subset so
// the registry can verify it against the domain at registration time.
type ParamResolver interface {
	// Resolve returns the parameter for value, or ok=false if the value
	// is outside the resolver's accepted subset.
	Resolve(value string) (param string, ok bool)

	// Values returns the accepted wildcard values in deterministic order.
	Values() []string
}

// ParamTable is a lookup-table ParamResolver.
//
// This mirrors the common pipeline declaration shape: a literal map from
// wildcard value to CLI parameter, frequently covering only a few of the
// domain's values.
type ParamTable map[string]string

// Resolve implements ParamResolver.
func (t ParamTable) Resolve(value string) (string, bool) {
	param, ok := t[value]
	return param, ok
}

// Values implements ParamResolver. Keys are returned sorted so
// registration checks and error messages are deterministic.
func (t ParamTable) Values() []string {
	out := make([]string, 0, len(t))
	for v := range t {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

// Template is a named, parameterized specification of one task: declared
// inputs, an output pattern containing the wildcard, a parameter
// resolver, and a command template.
//
// Path patterns reference the wildcard by the domain's placeholder, e.g.
// "output/export/{model}". The output pattern must contain the
// placeholder exactly once; input patterns may contain it or be literal
// source paths.
//
// The command template is rendered at expansion time with these
// placeholders:
//
//	{inputs}   all concrete input paths, space separated
//	{input}    the first concrete input path
//	{inputN}   the N-th concrete input path (zero based)
//	{output}   the concrete output path
//	{param}    the resolved parameter string
//	{<name>}   the bound wildcard value, using the domain's wildcard name
//
// Templates are registered once and never mutated afterwards.
type Template struct {
	// Name uniquely identifies the rule within a registry.
	Name string

	// Inputs are the declared input path patterns, in declaration order.
	Inputs []string

	// Output is the single output path pattern. The produced artifact is
	// a directory; its existence gates incremental re-execution.
	Output string

	// Params resolves a bound wildcard value to the rule's parameter.
	Params ParamResolver

	// Command is the command template dispatched for each bound task.
	Command string

	// Env holds environment overrides applied on top of the ambient
	// environment, e.g. device-selection variables.
	Env map[string]string

	// Workdir is the working directory for the command, relative to the
	// invocation root. Empty means the invocation root itself.
	Workdir string

	// Defaults is the curated wildcard subset used when the rule is
	// requested without explicit values. A rule may be defined over the
	// full domain but only exercised, by default, over a subset. Empty
	// means the rule has no default target.
	Defaults []string
}

// Task is a concrete, fully bound instance of a Template.
//
// Tasks are created by the expander, are immutable, and are owned by the
// run that created them; they are not persisted beyond it.
type Task struct {
	// Rule is the name of the template this task was bound from.
	Rule string

	// Wildcard is the bound domain value.
	Wildcard string

	// Inputs are the concrete input paths.
	Inputs []string

	// Output is the concrete output path.
	Output string

	// Param is the resolved parameter string.
	Param string

	// Command is the fully rendered command.
	Command string

	// Env and Workdir are carried over from the template.
	Env     map[string]string
	Workdir string
}

// ID returns the stable identity of the task within a run: rule name and
// bound wildcard value.
func (t Task) ID() string {
	return t.Rule + ":" + t.Wildcard
}
