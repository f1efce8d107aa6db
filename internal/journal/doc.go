// Package journal persists per-run task outcomes to SQLite.
//
// Every run appends one row per task reaching a terminal state, ordered
// by an in-run logical clock rather than wall-clock timestamps. The
// journal exists for humans (the history command) and is never consulted
// by the engine for scheduling: re-running an expensive export or
// inference job is gated on artifact existence alone.
package journal
