package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines the persistence contract for users.
type Store interface {
	// CreateUser persists a new user. Returns ErrEmailAlreadyExists when the
	// email is already registered (case-insensitive).
	CreateUser(ctx context.Context, user *User) error

	// GetUserByID retrieves a user by ID. Returns ErrUserNotFound on miss.
	GetUserByID(ctx context.Context, id uuid.UUID) (*User, error)

	// GetUserByEmail retrieves a user by normalized email.
	// Returns ErrUserNotFound on miss.
	GetUserByEmail(ctx context.Context, email string) (*User, error)

	// GetUserByResetTokenHash retrieves the user holding the given reset-token
	// hash whose token has not expired at the given time. Expiry is enforced
	// here, in the lookup predicate, so expired tokens behave exactly like
	// unknown ones. Returns ErrUserNotFound on miss.
	GetUserByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*User, error)

	// UpdateUser persists changes to an existing user.
	// Returns ErrUserNotFound when the user does not exist and
	// ErrEmailAlreadyExists when an email change collides.
	UpdateUser(ctx context.Context, user *User) error

	// DeleteUser removes a user, for cleanup when registration partially fails.
	DeleteUser(ctx context.Context, id uuid.UUID) error
}
