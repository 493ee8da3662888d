// Package sanitizer provides small, stateless input-normalisation helpers
// applied before validation and storage, so lookups like case-insensitive
// email uniqueness operate on canonical values.
package sanitizer
