// Package rule defines the core vocabulary of the makina engine: the
// wildcard domain, parameterized rule templates, the rule registry, and
// fully bound tasks.
//
// A pipeline is declared as a set of rule templates over a single closed
// wildcard domain. Each template describes one kind of task: declared
// input patterns, a single output pattern containing the wildcard, a
// partial parameter table, and a command template. Binding a wildcard
// value produces a Task - a concrete, immutable unit of work.
//
// The registry is the single source of truth for legal wildcard bindings
// and registered templates. All registration errors are configuration
// errors: they indicate a broken pipeline definition and are fatal before
// any execution starts.
//
// This package has no side effects and no filesystem access. Expansion,
// resolution, and execution live in their own packages and consume the
// types defined here.
package rule
