// Package trial schedules and processes delayed trial-expiration jobs.
//
// Exactly one pending expiration job exists per account, enforced by a
// deterministic idempotency key on the task queue. The expiration handler
// tolerates early and duplicate delivery: it re-validates the trial window
// and the live subscription before downgrading anything, and reschedules
// itself when invoked ahead of the trial end.
package trial
