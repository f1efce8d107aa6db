// Package expand turns abstract targets into concrete, fully bound tasks.
//
// A target is a rule name plus either an explicit set of wildcard values
// or a request to use the rule's declared default subset. Expansion is a
// pure function of the registry and the requested values: it validates
// each value against the wildcard domain and the rule's parameter
// coverage, substitutes the wildcard into every path pattern, and renders
// the command template. No filesystem access happens here.
package expand
