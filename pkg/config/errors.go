package config

import "errors"

var (
	// ErrParsingConfig wraps env-parsing failures from Load.
	ErrParsingConfig = errors.New("failed to parse environment variables into config")

	// ErrConfigNotLoaded signals a read of a config type that was never loaded.
	ErrConfigNotLoaded = errors.New("configuration has not been loaded")

	// ErrNilPointer signals a nil destination passed to Load.
	ErrNilPointer = errors.New("nil pointer provided to config loader")
)
