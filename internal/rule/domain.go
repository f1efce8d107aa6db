package rule

import "fmt"

// Domain is the enumerated, closed set of values a wildcard may bind to.
//
// The domain is the single source of truth for legal wildcard bindings.
// No other component re-validates tokens independently: expansion,
// resolution, and registration all delegate membership checks here.
//
// Immutable after construction. Token order is preserved from
// construction and is the order Tokens returns.
type Domain struct {
	name   string
	tokens []string
	set    map[string]struct{}
}

// NewDomain constructs a domain named name over the given tokens.
//
// The name is the wildcard placeholder used in path patterns: a domain
// named "model" is referenced as {model} in rule inputs and outputs.
//
// Fails with DomainError if the token list is empty or contains
// duplicates. Membership is exact string match.
func NewDomain(name string, tokens []string) (*Domain, error) {
	if name == "" {
		return nil, &DomainError{Reason: "wildcard name must not be empty"}
	}
	if len(tokens) == 0 {
		return nil, &DomainError{Reason: "token list must not be empty"}
	}

	set := make(map[string]struct{}, len(tokens))
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if tok == "" {
			return nil, &DomainError{Reason: "token must not be empty"}
		}
		if _, dup := set[tok]; dup {
			return nil, &DomainError{Value: tok, Reason: "appears more than once"}
		}
		set[tok] = struct{}{}
		kept = append(kept, tok)
	}

	return &Domain{name: name, tokens: kept, set: set}, nil
}

// Name returns the wildcard name, e.g. "model".
func (d *Domain) Name() string {
	return d.name
}

// Placeholder returns the pattern placeholder for this domain, e.g.
// "{model}".
func (d *Domain) Placeholder() string {
	return fmt.Sprintf("{%s}", d.name)
}

// Contains reports whether value is a member of the domain.
func (d *Domain) Contains(value string) bool {
	_, ok := d.set[value]
	return ok
}

// Tokens returns the domain values in construction order.
// The returned slice is a copy.
func (d *Domain) Tokens() []string {
	out := make([]string, len(d.tokens))
	copy(out, d.tokens)
	return out
}

// Size returns the number of values in the domain.
func (d *Domain) Size() int {
	return len(d.tokens)
}
