// Package postgres provides pgx-backed implementations of every store
// interface: accounts, users, subscriptions, invoices, activities and the
// task queue repository. Queue claims use FOR UPDATE SKIP LOCKED so
// multiple workers can poll the same queue safely.
package postgres
