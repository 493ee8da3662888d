// Package logger provides a configured slog factory with environment presets
// and typed attribute helpers shared across services.
//
// Production and staging presets emit JSON at info level for log aggregation;
// the development preset emits text at debug level. Attribute helpers keep
// log keys consistent ("account_id", "user_id", "component") so downstream
// queries never chase key drift.
package logger
