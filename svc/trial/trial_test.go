package trial_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialbase/trialbase/pkg/queue"
	"github.com/trialbase/trialbase/svc/account"
	"github.com/trialbase/trialbase/svc/subscription"
	"github.com/trialbase/trialbase/svc/trial"
)

func newScheduler(t *testing.T) (*trial.Scheduler, *queue.MemoryStorage) {
	t.Helper()

	storage := queue.NewMemoryStorage()
	t.Cleanup(func() { _ = storage.Close() })

	enqueuer, err := queue.NewEnqueuer(storage)
	require.NoError(t, err)

	scheduler, err := trial.NewScheduler(enqueuer)
	require.NoError(t, err)

	return scheduler, storage
}

type trialFixture struct {
	scheduler     *trial.Scheduler
	storage       *queue.MemoryStorage
	accounts      *account.Service
	subscriptions *subscription.Service
	handler       *trial.ExpirationHandler
}

func newTrialFixture(t *testing.T, now time.Time) *trialFixture {
	t.Helper()

	scheduler, storage := newScheduler(t)

	clock := func() time.Time { return now }
	accounts := account.NewService(account.NewMemoryStore(), account.WithClock(clock))

	registry := subscription.NewRegistry()
	registry.Register(subscription.NewLocalProvider())
	subscriptions := subscription.NewService(subscription.NewMemoryStore(), registry,
		subscription.WithClock(clock))

	handler, err := trial.NewExpirationHandler(scheduler, accounts, subscriptions, nil,
		trial.WithHandlerClock(clock))
	require.NoError(t, err)

	return &trialFixture{
		scheduler:     scheduler,
		storage:       storage,
		accounts:      accounts,
		subscriptions: subscriptions,
		handler:       handler,
	}
}

func TestExpirationKey(t *testing.T) {
	t.Parallel()

	id := uuid.New()
	assert.Equal(t, "trial-expiration-"+id.String(), trial.ExpirationKey(id))
}

func TestScheduler_Schedule_OneJobPerAccount(t *testing.T) {
	t.Parallel()

	scheduler, _ := newScheduler(t)
	ctx := context.Background()
	accountID := uuid.New()
	trialEnd := time.Now().UTC().Add(time.Hour)

	require.NoError(t, scheduler.Schedule(ctx, accountID, uuid.New(), trialEnd))

	// Scheduling again while a job is pending is absorbed silently.
	assert.NoError(t, scheduler.Schedule(ctx, accountID, uuid.New(), trialEnd))
}

func TestScheduler_Schedule_PastTrialEndStillQueued(t *testing.T) {
	t.Parallel()

	scheduler, storage := newScheduler(t)
	ctx := context.Background()

	require.NoError(t, scheduler.Schedule(ctx, uuid.New(), uuid.New(), time.Now().UTC().Add(-time.Hour)))

	// Delay clamps to zero so the job is claimable right away.
	task, err := storage.ClaimTask(ctx, uuid.New(), []string{trial.QueueName}, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, trial.TaskName, task.TaskName)
	assert.EqualValues(t, 3, task.MaxRetries)
}

func TestScheduler_Cancel(t *testing.T) {
	t.Parallel()

	scheduler, _ := newScheduler(t)
	ctx := context.Background()
	accountID := uuid.New()

	require.NoError(t, scheduler.Schedule(ctx, accountID, uuid.New(), time.Now().UTC().Add(time.Hour)))
	require.NoError(t, scheduler.Cancel(ctx, accountID))

	// Cancelling when nothing is pending is a no-op.
	assert.NoError(t, scheduler.Cancel(ctx, accountID))
}

func TestExpirationHandler_DowngradesAtTrialEnd(t *testing.T) {
	t.Parallel()

	trialEnd := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	fx := newTrialFixture(t, trialEnd.Add(time.Minute))
	ctx := context.Background()

	acc, err := fx.accounts.Create(ctx, account.CreateParams{Name: "Acme"})
	require.NoError(t, err)
	sub, err := fx.subscriptions.Create(ctx, subscription.CreateParams{
		AccountID:    acc.ID,
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	require.NoError(t, fx.handler.Handle(ctx, trial.ExpirationPayload{
		AccountID:      acc.ID,
		SubscriptionID: sub.ID,
		TrialEnd:       trialEnd,
	}))

	gotSub, err := fx.subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanFree, gotSub.Plan)
	assert.Equal(t, subscription.StatusActive, gotSub.Status)

	gotAcc, err := fx.accounts.Get(ctx, acc.ID)
	require.NoError(t, err)
	assert.False(t, gotAcc.IsTrial)
}

func TestExpirationHandler_EarlyDeliveryReschedules(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	trialEnd := now.Add(48 * time.Hour)
	fx := newTrialFixture(t, now)
	ctx := context.Background()

	acc, err := fx.accounts.Create(ctx, account.CreateParams{Name: "Acme"})
	require.NoError(t, err)
	sub, err := fx.subscriptions.Create(ctx, subscription.CreateParams{
		AccountID:    acc.ID,
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)

	require.NoError(t, fx.handler.Handle(ctx, trial.ExpirationPayload{
		AccountID:      acc.ID,
		SubscriptionID: sub.ID,
		TrialEnd:       trialEnd,
	}))

	// Nothing was downgraded and a new job is pending for the account.
	gotSub, err := fx.subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanPro, gotSub.Plan)
	assert.Equal(t, subscription.StatusTrialing, gotSub.Status)

	// The rescheduled job holds the account's idempotency key.
	enqueuer, err := queue.NewEnqueuer(fx.storage)
	require.NoError(t, err)
	err = enqueuer.Enqueue(ctx, trial.ExpirationPayload{AccountID: acc.ID},
		queue.WithKey(trial.ExpirationKey(acc.ID)))
	assert.ErrorIs(t, err, queue.ErrDuplicateTaskKey)
}

func TestExpirationHandler_MissingSubscriptionCompletes(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	fx := newTrialFixture(t, now)

	err := fx.handler.Handle(context.Background(), trial.ExpirationPayload{
		AccountID:      uuid.New(),
		SubscriptionID: uuid.New(),
		TrialEnd:       now.Add(-time.Hour),
	})
	assert.NoError(t, err, "nothing to downgrade must not trigger retries")
}

func TestExpirationHandler_CancelledSubscriptionUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	fx := newTrialFixture(t, now)
	ctx := context.Background()

	acc, err := fx.accounts.Create(ctx, account.CreateParams{Name: "Acme"})
	require.NoError(t, err)
	sub, err := fx.subscriptions.Create(ctx, subscription.CreateParams{
		AccountID:    acc.ID,
		Plan:         account.PlanPro,
		SkipProvider: true,
	})
	require.NoError(t, err)
	_, err = fx.subscriptions.Cancel(ctx, sub.ID, false)
	require.NoError(t, err)

	require.NoError(t, fx.handler.Handle(ctx, trial.ExpirationPayload{
		AccountID:      acc.ID,
		SubscriptionID: sub.ID,
		TrialEnd:       now.Add(-time.Hour),
	}))

	gotSub, err := fx.subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, gotSub.Status)
	assert.Equal(t, account.PlanPro, gotSub.Plan, "cancelled subscriptions keep their plan")
}

func TestExpirationHandler_ExtendedPeriodUntouched(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	fx := newTrialFixture(t, now)
	ctx := context.Background()

	acc, err := fx.accounts.Create(ctx, account.CreateParams{Name: "Acme"})
	require.NoError(t, err)

	// Simulate a converted trial: the subscription is trialing via the local
	// provider with a period end well past the original trial end.
	extendedEnd := now.Add(30 * 24 * time.Hour)
	sub, err := fx.subscriptions.Create(ctx, subscription.CreateParams{
		AccountID: acc.ID,
		Plan:      account.PlanPro,
		Provider:  subscription.LocalProviderName,
		TrialEnd:  &extendedEnd,
	})
	require.NoError(t, err)

	require.NoError(t, fx.handler.Handle(ctx, trial.ExpirationPayload{
		AccountID:      acc.ID,
		SubscriptionID: sub.ID,
		TrialEnd:       now.Add(-time.Hour), // stale payload from before the extension
	}))

	gotSub, err := fx.subscriptions.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, account.PlanPro, gotSub.Plan)
	assert.Equal(t, subscription.StatusTrialing, gotSub.Status)
}
