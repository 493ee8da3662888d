// Package config loads environment-based configuration structs.
//
// Each configuration type is parsed once per process and cached; repeated
// Load calls for the same type return the cached copy. A .env file in the
// working directory is loaded on first use when present.
package config
