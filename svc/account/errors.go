package account

import "errors"

var (
	ErrAccountNotFound       = errors.New("account not found")
	ErrSubdomainAlreadyTaken = errors.New("subdomain already taken")
	ErrInvalidTrialWindow    = errors.New("trial end must not precede trial start")
	ErrStoreNil              = errors.New("account store cannot be nil")
)
