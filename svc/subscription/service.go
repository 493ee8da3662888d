package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/pkg/cache"
	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/svc/account"
)

const cacheTTL = 5 * time.Minute

// Service implements the subscription state machine.
type Service struct {
	store    Store
	registry *Registry
	cache    cache.Cache
	log      *slog.Logger
	now      func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithCache sets the side-channel cache for per-account subscription reads.
func WithCache(c cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a subscription service.
// Panics on nil store or registry to fail fast during wiring.
func NewService(store Store, registry *Registry, opts ...Option) *Service {
	if store == nil {
		panic("subscription: store is required")
	}
	if registry == nil {
		panic("subscription: provider registry is required")
	}

	s := &Service{
		store:    store,
		registry: registry,
		cache:    cache.Noop{},
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the inputs for creating a subscription.
type CreateParams struct {
	AccountID     uuid.UUID
	Plan          account.PlanType
	Provider      string // registry key, e.g. "stripe"
	CustomerEmail string
	TrialEnd      *time.Time
	SkipProvider  bool // skip remote provider calls entirely
}

// Create creates the account's subscription. Fails with
// ErrSubscriptionAlreadyExists when the account already has one.
//
// When SkipProvider is false the configured provider is called to create the
// remote customer and subscription; if the provider fails the subscription is
// still created locally under the "local" sentinel with status trialing, so
// trial signup never blocks on a third-party outage.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Subscription, error) {
	if !params.Plan.Valid() {
		return nil, ErrInvalidPlan
	}

	if _, err := s.store.GetByAccount(ctx, params.AccountID); err == nil {
		return nil, ErrSubscriptionAlreadyExists
	} else if !errors.Is(err, ErrSubscriptionNotFound) {
		return nil, fmt.Errorf("failed to check existing subscription: %w", err)
	}

	now := s.now()
	sub := &Subscription{
		ID:                 uuid.New(),
		AccountID:          params.AccountID,
		Plan:               params.Plan,
		Status:             StatusTrialing,
		Features:           DefaultFeatures(params.Plan),
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now,
		Provider:           LocalProviderName,
		CreatedAt:          now,
		UpdatedAt:          now,
	}

	if !params.SkipProvider {
		if remote, err := s.createRemote(ctx, params); err != nil {
			// Graceful degradation: keep the local sentinel subscription
			// instead of failing signup on a provider outage.
			s.log.ErrorContext(ctx, "provider subscription creation failed, falling back to local",
				logger.AccountID(params.AccountID.String()),
				logger.Provider(params.Provider),
				logger.Error(err),
				logger.Component("subscription"),
			)
		} else {
			sub.Provider = params.Provider
			sub.ProviderCustomerID = remote.CustomerID
			sub.ProviderSubID = remote.ID
			sub.Status = remote.Status
			sub.CurrentPeriodStart = remote.PeriodStart
			sub.CurrentPeriodEnd = remote.PeriodEnd
		}
	}

	if err := s.store.Create(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidate(ctx, sub.AccountID)
	return sub, nil
}

func (s *Service) createRemote(ctx context.Context, params CreateParams) (*ProviderSubscription, error) {
	provider, err := s.registry.Get(params.Provider)
	if err != nil {
		return nil, err
	}

	customerID, err := provider.CreateCustomer(ctx, params.AccountID.String(), params.CustomerEmail)
	if err != nil {
		return nil, err
	}

	return provider.CreateSubscription(ctx, CreateSubscriptionParams{
		CustomerID: customerID,
		Plan:       params.Plan,
		TrialEnd:   params.TrialEnd,
	})
}

// Get retrieves a subscription by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	return s.store.Get(ctx, id)
}

// GetByAccount retrieves the account's subscription through the cache.
// Cache failures degrade to a direct store read.
func (s *Service) GetByAccount(ctx context.Context, accountID uuid.UUID) (*Subscription, error) {
	key := cacheKey(accountID)

	if data, ok := s.cache.Get(ctx, key); ok {
		var sub Subscription
		if err := json.Unmarshal(data, &sub); err == nil {
			return &sub, nil
		}
		s.cache.Delete(ctx, key)
	}

	sub, err := s.store.GetByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(sub); err == nil {
		s.cache.Set(ctx, key, data, cacheTTL)
	}
	return sub, nil
}

// UpdatePlan changes the subscription's plan. When a remote provider
// subscription is linked, the provider is updated first and its returned
// status and period bounds are adopted; otherwise the plan and feature set
// change locally only.
func (s *Service) UpdatePlan(ctx context.Context, id uuid.UUID, plan account.PlanType) (*Subscription, error) {
	if !plan.Valid() {
		return nil, ErrInvalidPlan
	}

	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.HasProviderLink() {
		provider, err := s.registry.Get(sub.Provider)
		if err != nil {
			return nil, err
		}
		remote, err := provider.UpdateSubscription(ctx, sub.ProviderSubID, plan)
		if err != nil {
			return nil, fmt.Errorf("provider plan update failed: %w", err)
		}
		sub.Status = remote.Status
		sub.CurrentPeriodStart = remote.PeriodStart
		sub.CurrentPeriodEnd = remote.PeriodEnd
	}

	sub.Plan = plan
	sub.Features = DefaultFeatures(plan)
	sub.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidate(ctx, sub.AccountID)
	return sub, nil
}

// Cancel cancels the subscription. With atPeriodEnd the subscription stays
// in its current status until the period closes; otherwise it is cancelled
// immediately. Delegates to the provider when linked.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, atPeriodEnd bool) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if sub.HasProviderLink() {
		provider, err := s.registry.Get(sub.Provider)
		if err != nil {
			return nil, err
		}
		remote, err := provider.CancelSubscription(ctx, sub.ProviderSubID, atPeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("provider cancellation failed: %w", err)
		}
		sub.Status = remote.Status
		sub.CurrentPeriodStart = remote.PeriodStart
		sub.CurrentPeriodEnd = remote.PeriodEnd
	}

	now := s.now()
	if atPeriodEnd {
		sub.CancelAtPeriodEnd = true
	} else {
		sub.Status = StatusCancelled
		sub.CancelledAt = &now
	}
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidate(ctx, sub.AccountID)
	return sub, nil
}

// Resume reverts a pending cancellation. Fails with
// ErrNotPendingCancellation unless CancelAtPeriodEnd is set.
func (s *Service) Resume(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !sub.CancelAtPeriodEnd {
		return nil, ErrNotPendingCancellation
	}

	if sub.HasProviderLink() {
		provider, err := s.registry.Get(sub.Provider)
		if err != nil {
			return nil, err
		}
		remote, err := provider.ResumeSubscription(ctx, sub.ProviderSubID)
		if err != nil {
			return nil, fmt.Errorf("provider resume failed: %w", err)
		}
		sub.Status = remote.Status
		sub.CurrentPeriodStart = remote.PeriodStart
		sub.CurrentPeriodEnd = remote.PeriodEnd
	} else {
		sub.Status = StatusActive
	}

	sub.CancelAtPeriodEnd = false
	sub.CancelledAt = nil
	sub.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidate(ctx, sub.AccountID)
	return sub, nil
}

// ExpireTrial downgrades the subscription to the free plan at trial end.
// The subscription leaves the trialing status and continues as an active
// free subscription, tracked locally.
func (s *Service) ExpireTrial(ctx context.Context, id uuid.UUID) (*Subscription, error) {
	sub, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	sub.Plan = account.PlanFree
	sub.Features = DefaultFeatures(account.PlanFree)
	sub.Status = StatusActive
	sub.UpdatedAt = s.now()

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, err
	}

	s.invalidate(ctx, sub.AccountID)
	return sub, nil
}

func (s *Service) invalidate(ctx context.Context, accountID uuid.UUID) {
	s.cache.Delete(ctx, cacheKey(accountID))
}

func cacheKey(accountID uuid.UUID) string {
	return "subscription:account:" + accountID.String()
}
