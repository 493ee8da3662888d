// Package cache provides a side-channel cache used for read-through caching
// of hot lookups such as the current subscription per account.
//
// The cache is strictly best-effort: implementations swallow and log their
// own failures, so a cache outage degrades to slower reads and never
// propagates errors into request handling.
package cache
