// Package redis provides Redis connection management with retry logic and a
// healthcheck, configured from environment variables.
package redis
