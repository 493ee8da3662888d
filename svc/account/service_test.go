package account_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/svc/account"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestService_Create_Defaults(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := account.NewService(account.NewMemoryStore(), account.WithClock(fixedClock(now)))

	acc, err := svc.Create(context.Background(), account.CreateParams{Name: "Acme"})
	require.NoError(t, err)

	assert.Equal(t, account.PlanPro, acc.Plan, "trial runs on the paid tier by default")
	assert.Equal(t, account.StatusActive, acc.Status)
	assert.True(t, acc.IsTrial)
	require.NotNil(t, acc.TrialStart)
	require.NotNil(t, acc.TrialEnd)
	assert.Equal(t, now, *acc.TrialStart)
	assert.Equal(t, now.Add(14*24*time.Hour), *acc.TrialEnd)
}

func TestService_Create_CustomTrialLength(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := account.NewService(account.NewMemoryStore(), account.WithClock(fixedClock(now)))

	acc, err := svc.Create(context.Background(), account.CreateParams{
		Name:      "Acme",
		Plan:      account.PlanEnterprise,
		TrialDays: 30,
	})
	require.NoError(t, err)

	assert.Equal(t, account.PlanEnterprise, acc.Plan)
	assert.Equal(t, now.Add(30*24*time.Hour), *acc.TrialEnd)
}

func TestService_Create_SubdomainConflict(t *testing.T) {
	t.Parallel()

	svc := account.NewService(account.NewMemoryStore())
	ctx := context.Background()

	_, err := svc.Create(ctx, account.CreateParams{Name: "First", Subdomain: "Acme"})
	require.NoError(t, err)

	// Normalization lowercases, so the mixed-case variant collides.
	_, err = svc.Create(ctx, account.CreateParams{Name: "Second", Subdomain: "ACME"})
	assert.ErrorIs(t, err, account.ErrSubdomainAlreadyTaken)

	// Accounts without a subdomain never collide.
	_, err = svc.Create(ctx, account.CreateParams{Name: "Third"})
	assert.NoError(t, err)
	_, err = svc.Create(ctx, account.CreateParams{Name: "Fourth"})
	assert.NoError(t, err)
}

func TestService_Get_NotFound(t *testing.T) {
	t.Parallel()

	svc := account.NewService(account.NewMemoryStore())

	_, err := svc.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, account.ErrAccountNotFound)
}

func TestService_EndTrial(t *testing.T) {
	t.Parallel()

	svc := account.NewService(account.NewMemoryStore())
	ctx := context.Background()

	acc, err := svc.Create(ctx, account.CreateParams{Name: "Acme"})
	require.NoError(t, err)

	require.NoError(t, svc.EndTrial(ctx, acc.ID))

	got, err := svc.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, got.IsTrial)

	// Ending an already ended trial is a no-op, not an error.
	assert.NoError(t, svc.EndTrial(ctx, acc.ID))

	assert.ErrorIs(t, svc.EndTrial(ctx, uuid.New()), account.ErrAccountNotFound)
}
