package subscription

import "errors"

var (
	ErrSubscriptionNotFound      = errors.New("subscription not found")
	ErrSubscriptionAlreadyExists = errors.New("subscription already exists for account")
	ErrNotPendingCancellation    = errors.New("subscription is not pending cancellation")
	ErrProviderNotFound          = errors.New("payment provider not registered")
	ErrProviderNotLinked         = errors.New("subscription has no provider subscription id")
	ErrInvalidPlan               = errors.New("invalid plan type")
	ErrStoreNil                  = errors.New("subscription store cannot be nil")
)
