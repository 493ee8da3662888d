package subscription

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence contract for subscriptions.
type Store interface {
	// Create persists a new subscription. Returns
	// ErrSubscriptionAlreadyExists when the account already has one.
	Create(ctx context.Context, sub *Subscription) error

	// Get retrieves a subscription by ID.
	// Returns ErrSubscriptionNotFound on miss.
	Get(ctx context.Context, id uuid.UUID) (*Subscription, error)

	// GetByAccount retrieves the subscription belonging to an account.
	// Returns ErrSubscriptionNotFound on miss.
	GetByAccount(ctx context.Context, accountID uuid.UUID) (*Subscription, error)

	// Update persists changes to an existing subscription.
	// Returns ErrSubscriptionNotFound when the subscription does not exist.
	Update(ctx context.Context, sub *Subscription) error
}
