// Package resolve walks a task's declared inputs backward through the
// rule registry, scheduling producer tasks for missing artifacts.
//
// The walk is depth-first, producers before consumers. An input that
// matches some rule's output pattern is an artifact a task can produce;
// if it is missing, its producer is resolved recursively. An input that
// matches no rule is a source file and is never auto-produced: if it is
// absent the affected target fails with MissingSourceError. Cycles are
// detected with a visiting set during the walk and reported as
// DependencyCycleError instead of recursing unboundedly.
//
// A target whose output already exists is short-circuited to Skipped
// without execution unless the force flag is set for the run.
package resolve
