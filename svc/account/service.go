package account

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/pkg/sanitizer"
)

// DefaultTrialDays is the trial length granted to new accounts.
const DefaultTrialDays = 14

// Service manages account lifecycle and trial state.
type Service struct {
	store Store
	log   *slog.Logger
	now   func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an account service backed by the given store.
// Panics on a nil store to fail fast during wiring.
func NewService(store Store, opts ...Option) *Service {
	if store == nil {
		panic("account: store is required")
	}

	s := &Service{
		store: store,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the inputs for creating an account.
type CreateParams struct {
	Name      string
	Subdomain string   // optional
	Plan      PlanType // defaults to PlanPro during trial when empty
	TrialDays int      // defaults to DefaultTrialDays when <= 0
}

// Create registers a new account with a running trial.
// New accounts always start on trial; the plan defaults to pro so the trial
// exercises the paid tier.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Account, error) {
	plan := params.Plan
	if plan == "" {
		plan = PlanPro
	}
	trialDays := params.TrialDays
	if trialDays <= 0 {
		trialDays = DefaultTrialDays
	}

	now := s.now()
	trialEnd := now.Add(time.Duration(trialDays) * 24 * time.Hour)

	acc := &Account{
		ID:         uuid.New(),
		Name:       params.Name,
		Subdomain:  sanitizer.NormalizeSubdomain(params.Subdomain),
		Plan:       plan,
		Status:     StatusActive,
		IsTrial:    true,
		TrialStart: &now,
		TrialEnd:   &trialEnd,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Create(ctx, acc); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.log.InfoContext(ctx, "account created",
		logger.AccountID(acc.ID.String()),
		slog.String("plan", string(acc.Plan)),
		slog.Time("trial_end", trialEnd),
		logger.Component("account"),
	)

	return acc, nil
}

// Get retrieves an account by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Account, error) {
	return s.store.Get(ctx, id)
}

// EndTrial flips the account out of trial state. Calling it on an account
// whose trial already ended is a no-op; a trial never restarts.
func (s *Service) EndTrial(ctx context.Context, id uuid.UUID) error {
	acc, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}

	if !acc.IsTrial {
		return nil
	}

	acc.IsTrial = false
	acc.UpdatedAt = s.now()

	if err := s.store.Update(ctx, acc); err != nil {
		return fmt.Errorf("failed to end trial: %w", err)
	}

	s.log.InfoContext(ctx, "trial ended",
		logger.AccountID(acc.ID.String()),
		logger.Component("account"),
	)

	return nil
}
