package httpserver

import "errors"

var (
	// ErrStart wraps listener startup failures.
	ErrStart = errors.New("httpserver: failed to start")
	// ErrShutdown wraps graceful-shutdown failures.
	ErrShutdown = errors.New("httpserver: shutdown incomplete")
)
