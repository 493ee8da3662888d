package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialbase/trialbase/pkg/pg"
	"github.com/trialbase/trialbase/svc/account"
)

// AccountStore implements account.Store on PostgreSQL.
type AccountStore struct {
	pool *pgxpool.Pool
}

// NewAccountStore creates a PostgreSQL-backed account store.
func NewAccountStore(pool *pgxpool.Pool) *AccountStore {
	return &AccountStore{pool: pool}
}

const accountColumns = `id, name, subdomain, plan, status, is_trial, trial_start, trial_end, created_at, updated_at`

func (s *AccountStore) Create(ctx context.Context, acc *account.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (`+accountColumns+`)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7, $8, $9, $10)`,
		acc.ID, acc.Name, acc.Subdomain, acc.Plan, acc.Status,
		acc.IsTrial, acc.TrialStart, acc.TrialEnd, acc.CreatedAt, acc.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return account.ErrSubdomainAlreadyTaken
		}
		return fmt.Errorf("failed to insert account: %w", err)
	}
	return nil
}

func (s *AccountStore) Get(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.scanOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (s *AccountStore) GetBySubdomain(ctx context.Context, subdomain string) (*account.Account, error) {
	return s.scanOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE subdomain = $1`, subdomain)
}

func (s *AccountStore) Update(ctx context.Context, acc *account.Account) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE accounts
		SET name = $2, subdomain = NULLIF($3, ''), plan = $4, status = $5,
		    is_trial = $6, trial_start = $7, trial_end = $8, updated_at = $9
		WHERE id = $1`,
		acc.ID, acc.Name, acc.Subdomain, acc.Plan, acc.Status,
		acc.IsTrial, acc.TrialStart, acc.TrialEnd, acc.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return account.ErrSubdomainAlreadyTaken
		}
		return fmt.Errorf("failed to update account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return account.ErrAccountNotFound
	}
	return nil
}

func (s *AccountStore) scanOne(ctx context.Context, query string, arg any) (*account.Account, error) {
	var (
		acc       account.Account
		subdomain *string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&acc.ID, &acc.Name, &subdomain, &acc.Plan, &acc.Status,
		&acc.IsTrial, &acc.TrialStart, &acc.TrialEnd, &acc.CreatedAt, &acc.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, account.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to query account: %w", err)
	}
	if subdomain != nil {
		acc.Subdomain = *subdomain
	}
	return &acc, nil
}
