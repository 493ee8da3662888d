package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialbase/trialbase/pkg/pg"
	"github.com/trialbase/trialbase/svc/auth"
)

// UserStore implements auth.Store on PostgreSQL.
type UserStore struct {
	pool *pgxpool.Pool
}

// NewUserStore creates a PostgreSQL-backed user store.
func NewUserStore(pool *pgxpool.Pool) *UserStore {
	return &UserStore{pool: pool}
}

const userColumns = `id, account_id, email, password_hash, role, first_name, last_name,
	onboarding_complete, reset_token_hash, reset_token_expires, mfa_enabled, mfa_secret,
	created_at, updated_at`

func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11, NULLIF($12, ''), $13, $14)`,
		user.ID, user.AccountID, user.Email, user.PasswordHash, user.Role,
		user.FirstName, user.LastName, user.OnboardingComplete,
		user.ResetTokenHash, user.ResetTokenExpires, user.MFAEnabled, user.MFASecret,
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return auth.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

func (s *UserStore) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	return s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (s *UserStore) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	return s.scanOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// GetUserByResetTokenHash enforces token expiry in the query predicate, so
// expired tokens are indistinguishable from unknown ones.
func (s *UserStore) GetUserByResetTokenHash(ctx context.Context, tokenHash string, now time.Time) (*auth.User, error) {
	if tokenHash == "" {
		return nil, auth.ErrUserNotFound
	}
	return s.scanOne2(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE reset_token_hash = $1 AND reset_token_expires > $2`,
		tokenHash, now)
}

func (s *UserStore) UpdateUser(ctx context.Context, user *auth.User) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE users
		SET email = $2, password_hash = $3, role = $4, first_name = $5, last_name = $6,
		    onboarding_complete = $7, reset_token_hash = NULLIF($8, ''),
		    reset_token_expires = $9, mfa_enabled = $10, mfa_secret = NULLIF($11, ''),
		    updated_at = $12
		WHERE id = $1`,
		user.ID, user.Email, user.PasswordHash, user.Role, user.FirstName, user.LastName,
		user.OnboardingComplete, user.ResetTokenHash, user.ResetTokenExpires,
		user.MFAEnabled, user.MFASecret, user.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return auth.ErrEmailAlreadyExists
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) DeleteUser(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) scanOne(ctx context.Context, query string, arg any) (*auth.User, error) {
	return s.scanRow(s.pool.QueryRow(ctx, query, arg))
}

func (s *UserStore) scanOne2(ctx context.Context, query string, arg1, arg2 any) (*auth.User, error) {
	return s.scanRow(s.pool.QueryRow(ctx, query, arg1, arg2))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *UserStore) scanRow(row rowScanner) (*auth.User, error) {
	var (
		user           auth.User
		resetTokenHash *string
		mfaSecret      *string
	)
	err := row.Scan(
		&user.ID, &user.AccountID, &user.Email, &user.PasswordHash, &user.Role,
		&user.FirstName, &user.LastName, &user.OnboardingComplete,
		&resetTokenHash, &user.ResetTokenExpires, &user.MFAEnabled, &mfaSecret,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, auth.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	if resetTokenHash != nil {
		user.ResetTokenHash = *resetTokenHash
	}
	if mfaSecret != nil {
		user.MFASecret = *mfaSecret
	}
	return &user, nil
}
