package rule

import (
	"fmt"
	"strings"
)

// Registry owns the wildcard domain and all registered templates for the
// lifetime of one engine run. It is constructed fresh per invocation and
// passed explicitly to the components that need it; there is no ambient
// global registry state.
//
// Registration order is preserved: Templates and ProducerOf iterate in
// the order rules were registered, keeping producer matching and error
// reporting deterministic for a given pipeline definition.
type Registry struct {
	domain    *Domain
	order     []string
	templates map[string]*Template
}

// NewRegistry creates an empty registry over the given domain.
func NewRegistry(domain *Domain) *Registry {
	return &Registry{
		domain:    domain,
		templates: make(map[string]*Template),
	}
}

// Domain returns the registry's wildcard domain.
func (r *Registry) Domain() *Domain {
	return r.domain
}

// Register adds a template to the registry.
//
// Fails with DuplicateRuleError if a template with the same name already
// exists, and with InvalidTemplateError if the template is inconsistent
// with the registry's domain:
//
//   - the output pattern does not contain the wildcard placeholder
//     exactly once
//   - a parameter table value lies outside the domain
//   - a default value lies outside the domain or outside the rule's own
//     parameter coverage
func (r *Registry) Register(t *Template) error {
	if t.Name == "" {
		return &InvalidTemplateError{Name: t.Name, Reason: "rule name must not be empty"}
	}
	if _, exists := r.templates[t.Name]; exists {
		return &DuplicateRuleError{Name: t.Name}
	}

	ph := r.domain.Placeholder()
	if n := strings.Count(t.Output, ph); n != 1 {
		return &InvalidTemplateError{
			Name:   t.Name,
			Reason: fmt.Sprintf("output pattern %q must contain %s exactly once, found %d", t.Output, ph, n),
		}
	}
	if t.Command == "" {
		return &InvalidTemplateError{Name: t.Name, Reason: "command template must not be empty"}
	}

	// The parameter resolver's accepted subset must lie within the domain.
	if t.Params != nil {
		for _, v := range t.Params.Values() {
			if !r.domain.Contains(v) {
				return &InvalidTemplateError{
					Name:   t.Name,
					Reason: fmt.Sprintf("parameter table value %q is not in the wildcard domain", v),
				}
			}
		}
	}

	// Defaults must be expandable: in the domain and covered by params.
	for _, v := range t.Defaults {
		if !r.domain.Contains(v) {
			return &InvalidTemplateError{
				Name:   t.Name,
				Reason: fmt.Sprintf("default value %q is not in the wildcard domain", v),
			}
		}
		if t.Params != nil {
			if _, ok := t.Params.Resolve(v); !ok {
				return &InvalidTemplateError{
					Name:   t.Name,
					Reason: fmt.Sprintf("default value %q has no entry in the rule's parameter table", v),
				}
			}
		}
	}

	r.templates[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// Lookup returns the template registered under name, or UnknownRuleError.
func (r *Registry) Lookup(name string) (*Template, error) {
	t, ok := r.templates[name]
	if !ok {
		return nil, &UnknownRuleError{Name: name}
	}
	return t, nil
}

// Templates returns all registered templates in registration order.
func (r *Registry) Templates() []*Template {
	out := make([]*Template, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.templates[name])
	}
	return out
}

// ProducerOf reports which registered rule, if any, produces the given
// concrete path: the first rule (in registration order) whose output
// pattern the path instantiates with a domain value. The bound value is
// returned alongside the template.
//
// This is what turns the implicit file-naming convention of a pipeline
// definition into an explicit producer/consumer relationship: a rule's
// input happening to equal another rule's output pattern becomes an
// auditable dependency edge.
func (r *Registry) ProducerOf(path string) (*Template, string, bool) {
	ph := r.domain.Placeholder()
	for _, name := range r.order {
		t := r.templates[name]
		value, ok := matchPattern(t.Output, ph, path)
		if !ok {
			continue
		}
		if !r.domain.Contains(value) {
			continue
		}
		return t, value, true
	}
	return nil, "", false
}

// matchPattern matches path against a pattern containing placeholder
// exactly once and returns the substituted middle segment.
func matchPattern(pattern, placeholder, path string) (string, bool) {
	i := strings.Index(pattern, placeholder)
	if i < 0 {
		return "", false
	}
	prefix := pattern[:i]
	suffix := pattern[i+len(placeholder):]

	if len(path) < len(prefix)+len(suffix) {
		return "", false
	}
	if !strings.HasPrefix(path, prefix) || !strings.HasSuffix(path, suffix) {
		return "", false
	}
	value := path[len(prefix) : len(path)-len(suffix)]
	if value == "" {
		return "", false
	}
	return value, true
}
