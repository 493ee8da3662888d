// Package pg provides PostgreSQL connection pooling, healthchecks, goose
// migrations, and error classification helpers shared by the storage layer.
package pg
