// Package runner schedules a resolved plan across bounded parallel
// workers.
//
// Tasks linked by a dependency edge are strictly ordered: a consumer
// never starts before its producer reaches a satisfied terminal state.
// Independent tasks may run concurrently up to the worker limit; their
// relative order across workers is unspecified. On the first failure,
// already-running tasks are allowed to finish but nothing new is
// launched, and the batch reports failure. The caller's context is
// checked before every launch.
package runner
