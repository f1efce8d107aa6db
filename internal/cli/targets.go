package cli

import (
	"github.com/makina-run/makina/internal/expand"
	"github.com/makina-run/makina/internal/rule"
)

// expandTargets turns a rule name plus optional explicit wildcard
// values into target tasks. With no explicit values the rule's declared
// defaults are used.
func expandTargets(expander *expand.Expander, ruleName string, values []string) ([]rule.Task, error) {
	if len(values) > 0 {
		return expander.Expand(ruleName, values)
	}
	return expander.ExpandDefault(ruleName)
}
