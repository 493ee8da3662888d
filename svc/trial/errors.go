package trial

import "errors"

var (
	ErrEnqueuerNil      = errors.New("trial: enqueuer cannot be nil")
	ErrAccountsNil      = errors.New("trial: account service cannot be nil")
	ErrSubscriptionsNil = errors.New("trial: subscription service cannot be nil")
)
