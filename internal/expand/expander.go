package expand

import (
	"fmt"
	"strings"

	"github.com/makina-run/makina/internal/rule"
)

// Expander expands targets against a registry.
type Expander struct {
	registry *rule.Registry
}

// New creates an Expander over the given registry.
func New(registry *rule.Registry) *Expander {
	return &Expander{registry: registry}
}

// Expand produces one Task per wildcard value, in the order the values
// were given. Expansion order is preserved, not sorted, so execution
// order stays predictable for a given invocation.
//
// Per value it fails with:
//   - DomainError if the value is not in the wildcard domain
//   - UnsupportedForRuleError if the value is in the domain but the
//     rule's parameter resolver rejects it
func (e *Expander) Expand(ruleName string, values []string) ([]rule.Task, error) {
	tpl, err := e.registry.Lookup(ruleName)
	if err != nil {
		return nil, err
	}

	tasks := make([]rule.Task, 0, len(values))
	for _, value := range values {
		task, err := e.bind(tpl, value)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, nil
}

// ExpandDefault expands a rule over its declared default subset.
//
// The default subset is a deliberate narrowing: a rule may be defined
// over the full domain but only exercised, by default, over a curated
// few values. A rule without defaults cannot be expanded this way.
func (e *Expander) ExpandDefault(ruleName string) ([]rule.Task, error) {
	tpl, err := e.registry.Lookup(ruleName)
	if err != nil {
		return nil, err
	}
	if len(tpl.Defaults) == 0 {
		return nil, &rule.InvalidTemplateError{
			Name:   ruleName,
			Reason: "rule declares no default wildcard subset; pass explicit values",
		}
	}
	return e.Expand(ruleName, tpl.Defaults)
}

// bind produces the concrete Task for one wildcard value.
func (e *Expander) bind(tpl *rule.Template, value string) (rule.Task, error) {
	domain := e.registry.Domain()

	if !domain.Contains(value) {
		return rule.Task{}, &rule.DomainError{Value: value, Reason: "is not in the wildcard domain"}
	}

	var param string
	if tpl.Params != nil {
		p, ok := tpl.Params.Resolve(value)
		if !ok {
			return rule.Task{}, &rule.UnsupportedForRuleError{Rule: tpl.Name, Value: value}
		}
		param = p
	}

	ph := domain.Placeholder()
	inputs := make([]string, len(tpl.Inputs))
	for i, pattern := range tpl.Inputs {
		inputs[i] = strings.ReplaceAll(pattern, ph, value)
	}
	output := strings.ReplaceAll(tpl.Output, ph, value)

	return rule.Task{
		Rule:     tpl.Name,
		Wildcard: value,
		Inputs:   inputs,
		Output:   output,
		Param:    param,
		Command:  renderCommand(tpl.Command, domain.Name(), value, inputs, output, param),
		Env:      tpl.Env,
		Workdir:  tpl.Workdir,
	}, nil
}

// renderCommand substitutes the command template placeholders. Plain
// string substitution, matching the declarative pattern the engine
// re-expresses: no templating runtime, no escaping rules.
func renderCommand(command, wildcardName, value string, inputs []string, output, param string) string {
	replacements := []string{
		"{inputs}", strings.Join(inputs, " "),
		"{output}", output,
		"{param}", param,
		"{" + wildcardName + "}", value,
	}
	if len(inputs) > 0 {
		replacements = append(replacements, "{input}", inputs[0])
	}
	for i, in := range inputs {
		replacements = append(replacements, fmt.Sprintf("{input%d}", i), in)
	}
	return strings.NewReplacer(replacements...).Replace(command)
}
