package activity

import "errors"

var (
	ErrStoreNil     = errors.New("activity store cannot be nil")
	ErrLoggerClosed = errors.New("activity logger is closed")
)
