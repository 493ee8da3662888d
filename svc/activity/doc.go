// Package activity records audit events in a fire-and-forget fashion.
//
// Log never blocks the caller's critical path and never returns storage
// errors: entries are queued on a buffered channel and written by a
// background goroutine; when the buffer is full the entry is written
// best-effort on a detached goroutine instead of being dropped. Storage
// failures are logged, not propagated.
package activity
