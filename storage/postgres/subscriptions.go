package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialbase/trialbase/pkg/pg"
	"github.com/trialbase/trialbase/svc/subscription"
)

// SubscriptionStore implements subscription.Store on PostgreSQL.
// Features are stored as JSONB since their shape follows the plan.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore creates a PostgreSQL-backed subscription store.
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

const subscriptionColumns = `id, account_id, plan, status, features,
	current_period_start, current_period_end, cancel_at_period_end, cancelled_at,
	provider, provider_customer_id, provider_sub_id, created_at, updated_at`

func (s *SubscriptionStore) Create(ctx context.Context, sub *subscription.Subscription) error {
	features, err := json.Marshal(sub.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO subscriptions (`+subscriptionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''), NULLIF($12, ''), $13, $14)`,
		sub.ID, sub.AccountID, sub.Plan, sub.Status, features,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd, sub.CancelAtPeriodEnd, sub.CancelledAt,
		sub.Provider, sub.ProviderCustomerID, sub.ProviderSubID, sub.CreatedAt, sub.UpdatedAt,
	)
	if err != nil {
		// The unique index on account_id enforces one subscription per account.
		if pg.IsDuplicateKeyError(err) {
			return subscription.ErrSubscriptionAlreadyExists
		}
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

func (s *SubscriptionStore) Get(ctx context.Context, id uuid.UUID) (*subscription.Subscription, error) {
	return s.scanOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
}

func (s *SubscriptionStore) GetByAccount(ctx context.Context, accountID uuid.UUID) (*subscription.Subscription, error) {
	return s.scanOne(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE account_id = $1`, accountID)
}

func (s *SubscriptionStore) Update(ctx context.Context, sub *subscription.Subscription) error {
	features, err := json.Marshal(sub.Features)
	if err != nil {
		return fmt.Errorf("failed to marshal features: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions
		SET plan = $2, status = $3, features = $4,
		    current_period_start = $5, current_period_end = $6,
		    cancel_at_period_end = $7, cancelled_at = $8,
		    provider = $9, provider_customer_id = NULLIF($10, ''),
		    provider_sub_id = NULLIF($11, ''), updated_at = $12
		WHERE id = $1`,
		sub.ID, sub.Plan, sub.Status, features,
		sub.CurrentPeriodStart, sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd, sub.CancelledAt,
		sub.Provider, sub.ProviderCustomerID, sub.ProviderSubID, sub.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return subscription.ErrSubscriptionNotFound
	}
	return nil
}

func (s *SubscriptionStore) scanOne(ctx context.Context, query string, arg any) (*subscription.Subscription, error) {
	var (
		sub                subscription.Subscription
		features           []byte
		providerCustomerID *string
		providerSubID      *string
	)
	err := s.pool.QueryRow(ctx, query, arg).Scan(
		&sub.ID, &sub.AccountID, &sub.Plan, &sub.Status, &features,
		&sub.CurrentPeriodStart, &sub.CurrentPeriodEnd, &sub.CancelAtPeriodEnd, &sub.CancelledAt,
		&sub.Provider, &providerCustomerID, &providerSubID, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, subscription.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("failed to query subscription: %w", err)
	}
	if err := json.Unmarshal(features, &sub.Features); err != nil {
		return nil, fmt.Errorf("failed to unmarshal features: %w", err)
	}
	if providerCustomerID != nil {
		sub.ProviderCustomerID = *providerCustomerID
	}
	if providerSubID != nil {
		sub.ProviderSubID = *providerSubID
	}
	return &sub, nil
}
