package account

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence contract for accounts.
type Store interface {
	// Create persists a new account. Returns ErrSubdomainAlreadyTaken when
	// the subdomain is set and already in use.
	Create(ctx context.Context, acc *Account) error

	// Get retrieves an account by ID. Returns ErrAccountNotFound on miss.
	Get(ctx context.Context, id uuid.UUID) (*Account, error)

	// GetBySubdomain retrieves an account by its subdomain.
	// Returns ErrAccountNotFound on miss.
	GetBySubdomain(ctx context.Context, subdomain string) (*Account, error)

	// Update persists changes to an existing account.
	// Returns ErrAccountNotFound when the account does not exist.
	Update(ctx context.Context, acc *Account) error
}
