// Package queue implements a storage-backed delayed task queue used for
// deferred work such as trial expiration.
//
// Tasks are persisted through a pluggable repository (in-memory for tests,
// Postgres in production), claimed by workers under a time-bounded lock so a
// task has at most one active execution, retried with exponential backoff,
// and parked in a dead letter queue once retries are exhausted.
//
// A task may carry an idempotency key: while a pending task holds a given
// key, enqueueing another task with the same key fails with
// ErrDuplicateTaskKey. Claiming a task releases its key, so a running handler
// may schedule a successor under the same key. Pending keyed tasks can be
// removed with CancelByKey.
package queue
