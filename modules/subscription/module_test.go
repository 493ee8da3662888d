package subscription_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/core"
	subscriptionmod "github.com/trialbase/trialbase/modules/subscription"
	"github.com/trialbase/trialbase/pkg/jwt"
	"github.com/trialbase/trialbase/pkg/queue"
	"github.com/trialbase/trialbase/svc/account"
	authsvc "github.com/trialbase/trialbase/svc/auth"
	subsvc "github.com/trialbase/trialbase/svc/subscription"
	"github.com/trialbase/trialbase/svc/trial"
)

type moduleFixture struct {
	router        http.Handler
	subscriptions *subsvc.Service
	registry      *subsvc.Registry
	trials        *trial.Scheduler
	enqueuer      *queue.Enqueuer
	tokens        *jwt.Service
}

// newModuleFixture mounts the subscription module the way the server binary
// does, backed by in-memory stores and the in-memory queue.
func newModuleFixture(t *testing.T) *moduleFixture {
	t.Helper()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })
	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)
	trials, err := trial.NewScheduler(enqueuer)
	require.NoError(t, err)

	registry := subsvc.NewRegistry()
	registry.Register(subsvc.NewLocalProvider())
	subscriptions := subsvc.NewService(subsvc.NewMemoryStore(), registry)

	tokens, err := jwt.NewFromString("test-signing-key")
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Mount("/subscriptions", subscriptionmod.NewModule(subscriptions, trials, tokens, nil).Handle())

	return &moduleFixture{
		router:        r,
		subscriptions: subscriptions,
		registry:      registry,
		trials:        trials,
		enqueuer:      enqueuer,
		tokens:        tokens,
	}
}

func (fx *moduleFixture) sessionToken(t *testing.T, accountID uuid.UUID) string {
	t.Helper()

	userID := uuid.New()
	token, err := fx.tokens.Generate(authsvc.SessionClaims{
		StandardClaims: jwt.NewStandardClaims(userID.String(), time.Hour),
		UserID:         userID.String(),
		AccountID:      accountID.String(),
		Email:          "owner@example.com",
		Role:           string(authsvc.RoleOwner),
	})
	require.NoError(t, err)
	return token
}

func (fx *moduleFixture) do(t *testing.T, method, path, token string, payload any) (*httptest.ResponseRecorder, core.JSONResponse) {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Authorization", "Bearer "+token)

	rec := httptest.NewRecorder()
	fx.router.ServeHTTP(rec, req)

	var resp core.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

// trialSubscription creates a trialing subscription and schedules its
// expiration job the way registration does.
func (fx *moduleFixture) trialSubscription(t *testing.T, accountID uuid.UUID, params subsvc.CreateParams) *subsvc.Subscription {
	t.Helper()

	ctx := context.Background()
	params.AccountID = accountID
	sub, err := fx.subscriptions.Create(ctx, params)
	require.NoError(t, err)

	trialEnd := time.Now().UTC().Add(14 * 24 * time.Hour)
	require.NoError(t, fx.trials.Schedule(ctx, accountID, sub.ID, trialEnd))
	return sub
}

// expirationJobPending reports whether a pending task still holds the
// account's expiration key. Checking consumes the task, so call it once at
// the end of a test.
func (fx *moduleFixture) expirationJobPending(t *testing.T, accountID uuid.UUID) bool {
	t.Helper()

	err := fx.enqueuer.CancelByKey(context.Background(), trial.ExpirationKey(accountID))
	if errors.Is(err, queue.ErrTaskNotFound) {
		return false
	}
	require.NoError(t, err)
	return true
}

func TestModule_Cancel_ImmediateDropsExpirationJob(t *testing.T) {
	t.Parallel()

	fx := newModuleFixture(t)
	accountID := uuid.New()
	sub := fx.trialSubscription(t, accountID, subsvc.CreateParams{Plan: account.PlanPro, SkipProvider: true})
	token := fx.sessionToken(t, accountID)

	rec, resp := fx.do(t, http.MethodPost, "/subscriptions/"+sub.ID.String()+"/cancel", token,
		map[string]bool{"at_period_end": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "subscription_cancelled", resp.Code)

	assert.False(t, fx.expirationJobPending(t, accountID),
		"immediate cancel must release the expiration job")
}

func TestModule_Cancel_AtPeriodEndKeepsExpirationJob(t *testing.T) {
	t.Parallel()

	fx := newModuleFixture(t)
	accountID := uuid.New()
	sub := fx.trialSubscription(t, accountID, subsvc.CreateParams{Plan: account.PlanPro, SkipProvider: true})
	token := fx.sessionToken(t, accountID)

	rec, resp := fx.do(t, http.MethodPost, "/subscriptions/"+sub.ID.String()+"/cancel", token,
		map[string]bool{"at_period_end": true})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "subscription_cancelled", resp.Code)

	// The trial still runs to its end date, so the job stays scheduled.
	assert.True(t, fx.expirationJobPending(t, accountID))
}

func TestModule_UpdatePlan_TrialingKeepsExpirationJob(t *testing.T) {
	t.Parallel()

	fx := newModuleFixture(t)
	accountID := uuid.New()
	sub := fx.trialSubscription(t, accountID, subsvc.CreateParams{Plan: account.PlanPro, SkipProvider: true})
	token := fx.sessionToken(t, accountID)

	rec, resp := fx.do(t, http.MethodPatch, "/subscriptions/"+sub.ID.String()+"/plan", token,
		map[string]string{"plan": "enterprise"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plan_updated", resp.Code)

	// A plan switch during the trial does not end it.
	assert.True(t, fx.expirationJobPending(t, accountID))
}

func TestModule_UpdatePlan_ActivatedDropsExpirationJob(t *testing.T) {
	t.Parallel()

	fx := newModuleFixture(t)

	// Provider reports the subscription active after the plan change, e.g.
	// the customer added a payment method and converted mid-trial.
	fx.registry.Register(&stubProvider{
		name:         "stub",
		remoteStatus: subsvc.StatusActive,
		periodStart:  time.Now().UTC(),
		periodEnd:    time.Now().UTC().Add(30 * 24 * time.Hour),
	})

	accountID := uuid.New()
	sub := fx.trialSubscription(t, accountID, subsvc.CreateParams{
		Plan:          account.PlanPro,
		Provider:      "stub",
		CustomerEmail: "owner@example.com",
	})
	token := fx.sessionToken(t, accountID)

	rec, resp := fx.do(t, http.MethodPatch, "/subscriptions/"+sub.ID.String()+"/plan", token,
		map[string]string{"plan": "enterprise"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "plan_updated", resp.Code)

	assert.False(t, fx.expirationJobPending(t, accountID),
		"conversion out of trialing must release the expiration job")
}

// stubProvider returns scripted remote state for provider-linked flows.
type stubProvider struct {
	name         string
	remoteStatus subsvc.Status
	periodStart  time.Time
	periodEnd    time.Time
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) CreateCustomer(_ context.Context, accountID, _ string) (string, error) {
	return "cus_" + accountID, nil
}

func (p *stubProvider) CreateSubscription(_ context.Context, params subsvc.CreateSubscriptionParams) (*subsvc.ProviderSubscription, error) {
	return p.remote("sub_new", params.CustomerID), nil
}

func (p *stubProvider) UpdateSubscription(_ context.Context, providerSubID string, _ account.PlanType) (*subsvc.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) CancelSubscription(_ context.Context, providerSubID string, _ bool) (*subsvc.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) ResumeSubscription(_ context.Context, providerSubID string) (*subsvc.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) GetSubscription(_ context.Context, providerSubID string) (*subsvc.ProviderSubscription, error) {
	return p.remote(providerSubID, ""), nil
}

func (p *stubProvider) CreateInvoice(_ context.Context, _ subsvc.CreateInvoiceParams) (*subsvc.ProviderInvoice, error) {
	return nil, errors.New("not implemented")
}

func (p *stubProvider) GetInvoicePDFURL(_ context.Context, _ string) (string, error) {
	return "", errors.New("not implemented")
}

func (p *stubProvider) remote(id, customerID string) *subsvc.ProviderSubscription {
	return &subsvc.ProviderSubscription{
		ID:          id,
		CustomerID:  customerID,
		Status:      p.remoteStatus,
		PeriodStart: p.periodStart,
		PeriodEnd:   p.periodEnd,
	}
}
