// Package artifact abstracts the filesystem artifact namespace.
//
// Output artifacts are directories. The presence of the directory, not
// its contents, is the sole signal the engine uses to judge that a task's
// output is satisfied. Freshness comparison is deliberately out of scope.
//
// Source inputs follow a looser contract: they are consumed but never
// produced, and a plain file (a checkpoint, a dataset) satisfies them.
// The Store interface keeps the two checks separate.
package artifact
