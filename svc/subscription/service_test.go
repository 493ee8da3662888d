package subscription_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/pkg/cache"
	"github.com/trialbase/trialbase/svc/account"
	"github.com/trialbase/trialbase/svc/subscription"
)

// stubProvider lets tests script remote provider behavior per call.
type stubProvider struct {
	name         string
	createErr    error
	remoteStatus subscription.Status
	periodStart  time.Time
	periodEnd    time.Time
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) CreateCustomer(_ context.Context, accountID, _ string) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	return "cus_" + accountID, nil
}

func (p *stubProvider) CreateSubscription(_ context.Context, params subscription.CreateSubscriptionParams) (*subscription.ProviderSubscription, error) {
	if p.createErr != nil {
		return nil, p.createErr
	}
	return p.remote("sub_new", params.CustomerID), nil
}

func (p *stubProvider) UpdateSubscription(_ context.Context, providerSubID string, _ account.PlanType) (*subscription.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) CancelSubscription(_ context.Context, providerSubID string, _ bool) (*subscription.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) ResumeSubscription(_ context.Context, providerSubID string) (*subscription.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) GetSubscription(_ context.Context, providerSubID string) (*subscription.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) CreateInvoice(_ context.Context, _ subscription.CreateInvoiceParams) (*subscription.ProviderInvoice, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) GetInvoicePDFURL(_ context.Context, _ string) (string, error) {
	return "", errors.New("not implemented")
}

func (p *stubProvider) remote(id, customerID string) *subscription.ProviderSubscription {
	return &subscription.ProviderSubscription{
		ID:          id,
		CustomerID:  customerID,
		Status:      p.remoteStatus,
		PeriodStart: p.periodStart,
		PeriodEnd:   p.periodEnd,
	}
}

func newTestService(t *testing.T, opts ...subscription.Option) (*subscription.Service, *subscription.Registry) {
	t.Helper()

	registry := subscription.NewRegistry()
	registry.Register(subscription.NewLocalProvider())
	return subscription.NewService(subscription.NewMemoryStore(), registry, opts...), registry
}

func TestService_Create_InvalidPlan(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), subscription.CreateParams{
		AccountID: uuid.New(),
		Plan:      "platinum",
	})
	assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
}

func TestService_Create_OnePerAccount(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()
	accountID := uuid.New()

	_, err := svc.Create(ctx, subscription.CreateParams{
		AccountID:    accountID,
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	_, err = svc.Create(ctx, subscription.CreateParams{
		AccountID:    accountID,
		Plan:         account.PlanFree,
		SkipProvider: true,
	})
	assert.ErrorIs(t, err, subscription.ErrSubscriptionAlreadyExists)
}

func TestService_Create_SkipProvider(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, _ := newTestService(t, subscription.WithClock(func() time.Time { return now }))

	sub, err := svc.Create(context.Background(), subscription.CreateParams{
		AccountID:    uuid.New(),
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusTrialing, sub.Status)
	assert.Equal(t, subscription.LocalProviderName, sub.Provider)
	assert.Empty(t, sub.ProviderSubID)
	assert.False(t, sub.HasProviderLink())
	assert.Equal(t, now, sub.CurrentPeriodStart)
	assert.Equal(t, now, sub.CurrentPeriodEnd)
	assert.Equal(t, subscription.DefaultFeatures(account.PlanPro), sub.Features)
}

func TestService_Create_TrialViaLocalProvider(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	trialEnd := time.Now().UTC().Add(14 * 24 * time.Hour)

	sub, err := svc.Create(context.Background(), subscription.CreateParams{
		AccountID: uuid.New(),
		Plan:      account.PlanPro,
		Provider:  subscription.LocalProviderName,
		TrialEnd:  &trialEnd,
	})
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusTrialing, sub.Status)
	assert.Equal(t, trialEnd, sub.CurrentPeriodEnd)
	// The local sentinel never counts as a remote link.
	assert.False(t, sub.HasProviderLink())
}

func TestService_Create_ProviderFailureFallsBackToLocal(t *testing.T) {
	t.Parallel()

	svc, registry := newTestService(t)
	registry.Register(&stubProvider{name: "stripe", createErr: errors.New("stripe is down")})

	sub, err := svc.Create(context.Background(), subscription.CreateParams{
		AccountID:     uuid.New(),
		Plan:          account.PlanPro,
		Provider:      "stripe",
		CustomerEmail: "owner@example.com",
	})
	require.NoError(t, err, "a provider outage must not block signup")

	assert.Equal(t, subscription.LocalProviderName, sub.Provider)
	assert.Equal(t, subscription.StatusTrialing, sub.Status)
	assert.Empty(t, sub.ProviderSubID)
}

func TestService_Create_UnknownProviderFallsBackToLocal(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	sub, err := svc.Create(context.Background(), subscription.CreateParams{
		AccountID: uuid.New(),
		Plan:      account.PlanPro,
		Provider:  "nonexistent",
	})
	require.NoError(t, err)
	assert.Equal(t, subscription.LocalProviderName, sub.Provider)
}

func TestService_UpdatePlan_Local(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, subscription.CreateParams{
		AccountID:    uuid.New(),
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePlan(ctx, sub.ID, account.PlanEnterprise)
	require.NoError(t, err)

	assert.Equal(t, account.PlanEnterprise, updated.Plan)
	assert.Equal(t, subscription.DefaultFeatures(account.PlanEnterprise), updated.Features)
	assert.Equal(t, subscription.Unlimited, updated.Features.ItemsPerMonth)

	_, err = svc.UpdatePlan(ctx, sub.ID, "platinum")
	assert.ErrorIs(t, err, subscription.ErrInvalidPlan)
}

func TestService_UpdatePlan_AdoptsProviderState(t *testing.T) {
	t.Parallel()

	periodStart := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	periodEnd := periodStart.AddDate(0, 1, 0)

	svc, registry := newTestService(t)
	registry.Register(&stubProvider{
		name:         "stripe",
		remoteStatus: subscription.StatusActive,
		periodStart:  periodStart,
		periodEnd:    periodEnd,
	})

	ctx := context.Background()
	sub, err := svc.Create(ctx, subscription.CreateParams{
		AccountID: uuid.New(),
		Plan:      account.PlanPro,
		Provider:  "stripe",
	})
	require.NoError(t, err)
	require.True(t, sub.HasProviderLink())

	updated, err := svc.UpdatePlan(ctx, sub.ID, account.PlanEnterprise)
	require.NoError(t, err)

	assert.Equal(t, subscription.StatusActive, updated.Status)
	assert.Equal(t, periodStart, updated.CurrentPeriodStart)
	assert.Equal(t, periodEnd, updated.CurrentPeriodEnd)
}

func TestService_CancelAndResume(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, subscription.CreateParams{
		AccountID:    uuid.New(),
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	// Resuming without a pending cancellation is a conflict.
	_, err = svc.Resume(ctx, sub.ID)
	assert.ErrorIs(t, err, subscription.ErrNotPendingCancellation)

	cancelled, err := svc.Cancel(ctx, sub.ID, true)
	require.NoError(t, err)
	assert.True(t, cancelled.CancelAtPeriodEnd)
	assert.Equal(t, subscription.StatusTrialing, cancelled.Status, "status holds until the period closes")
	assert.Nil(t, cancelled.CancelledAt)

	resumed, err := svc.Resume(ctx, sub.ID)
	require.NoError(t, err)
	assert.False(t, resumed.CancelAtPeriodEnd)
	assert.Equal(t, subscription.StatusActive, resumed.Status)
	assert.Nil(t, resumed.CancelledAt)
}

func TestService_Cancel_Immediate(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, subscription.CreateParams{
		AccountID:    uuid.New(),
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, sub.ID, false)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.False(t, cancelled.CancelAtPeriodEnd)
}

func TestService_ExpireTrial(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	ctx := context.Background()

	sub, err := svc.Create(ctx, subscription.CreateParams{
		AccountID:    uuid.New(),
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)
	require.Equal(t, subscription.StatusTrialing, sub.Status)

	expired, err := svc.ExpireTrial(ctx, sub.ID)
	require.NoError(t, err)

	assert.Equal(t, account.PlanFree, expired.Plan)
	assert.Equal(t, subscription.StatusActive, expired.Status)
	assert.Equal(t, subscription.DefaultFeatures(account.PlanFree), expired.Features)
	assert.Equal(t, 5, expired.Features.ItemsPerMonth)
	assert.False(t, expired.Features.PrioritySupport)
}

func TestService_GetByAccount_CacheInvalidation(t *testing.T) {
	t.Parallel()

	registry := subscription.NewRegistry()
	registry.Register(subscription.NewLocalProvider())
	svc := subscription.NewService(subscription.NewMemoryStore(), registry,
		subscription.WithCache(cache.NewMemoryCache()))

	ctx := context.Background()
	accountID := uuid.New()

	sub, err := svc.Create(ctx, subscription.CreateParams{
		AccountID:    accountID,
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	// Warm the cache, then verify a plan change is visible afterwards.
	got, err := svc.GetByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanPro, got.Plan)

	_, err = svc.UpdatePlan(ctx, sub.ID, account.PlanEnterprise)
	require.NoError(t, err)

	got, err = svc.GetByAccount(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanEnterprise, got.Plan)
}

func TestService_GetByAccount_NotFound(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)

	_, err := svc.GetByAccount(context.Background(), uuid.New())
	assert.ErrorIs(t, err, subscription.ErrSubscriptionNotFound)
}

func TestDefaultFeatures(t *testing.T) {
	t.Parallel()

	free := subscription.DefaultFeatures(account.PlanFree)
	assert.Equal(t, 5, free.ItemsPerMonth)
	assert.Equal(t, []subscription.ExportOption{subscription.ExportPDF}, free.ExportOptions)
	assert.False(t, free.PrioritySupport)

	pro := subscription.DefaultFeatures(account.PlanPro)
	assert.Equal(t, 50, pro.ItemsPerMonth)
	assert.True(t, pro.PrioritySupport)

	enterprise := subscription.DefaultFeatures(account.PlanEnterprise)
	assert.Equal(t, subscription.Unlimited, enterprise.ItemsPerMonth)
	assert.True(t, enterprise.PrioritySupport)
}
