package exec

import "sync"

// OutputLocks provides per-output-path mutual exclusion.
//
// The filesystem artifact namespace is the only shared mutable resource
// in the engine, so two tasks must never run concurrently against the
// same resolved output path. The lock table is keyed by output path and
// is shared process-wide, which covers otherwise-independent batches in
// the same process run.
type OutputLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOutputLocks creates an empty lock table.
func NewOutputLocks() *OutputLocks {
	return &OutputLocks{locks: make(map[string]*sync.Mutex)}
}

// processLocks is the table shared by every Executor in this process.
var processLocks = NewOutputLocks()

// Acquire blocks until the lock for path is held and returns the release
// function. Locks are never deleted from the table; the set of output
// paths in one process run is small and bounded by the pipeline.
func (l *OutputLocks) Acquire(path string) (release func()) {
	l.mu.Lock()
	m, ok := l.locks[path]
	if !ok {
		m = &sync.Mutex{}
		l.locks[path] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
