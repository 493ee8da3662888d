package trial

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/pkg/queue"
)

// QueueName is the dedicated queue for trial-expiration jobs.
const QueueName = "trial"

// TaskName identifies the expiration task for handler registration.
const TaskName = "trial.expiration"

// ExpirationPayload is carried by a scheduled trial-expiration task.
type ExpirationPayload struct {
	AccountID      uuid.UUID `json:"account_id"`
	SubscriptionID uuid.UUID `json:"subscription_id"`
	TrialEnd       time.Time `json:"trial_end"`
}

// ExpirationKey returns the deterministic idempotency key guaranteeing one
// pending expiration job per account.
func ExpirationKey(accountID uuid.UUID) string {
	return "trial-expiration-" + accountID.String()
}

// Scheduler enqueues and cancels trial-expiration jobs.
type Scheduler struct {
	enqueuer *queue.Enqueuer
	now      func() time.Time
}

// NewScheduler creates a trial-expiration scheduler.
func NewScheduler(enqueuer *queue.Enqueuer) (*Scheduler, error) {
	if enqueuer == nil {
		return nil, ErrEnqueuerNil
	}
	return &Scheduler{
		enqueuer: enqueuer,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Schedule enqueues the expiration job with a delay equal to the time left
// in the trial, clamped to zero when the trial end is already past. A past
// end date still goes through the queue so execution always happens on the
// worker path.
func (s *Scheduler) Schedule(ctx context.Context, accountID, subscriptionID uuid.UUID, trialEnd time.Time) error {
	delay := max(time.Duration(0), trialEnd.Sub(s.now()))

	err := s.enqueuer.Enqueue(ctx, ExpirationPayload{
		AccountID:      accountID,
		SubscriptionID: subscriptionID,
		TrialEnd:       trialEnd,
	},
		queue.WithTaskName(TaskName),
		queue.WithQueue(QueueName),
		queue.WithKey(ExpirationKey(accountID)),
		queue.WithDelay(delay),
		queue.WithMaxRetries(3),
	)
	if err != nil {
		// A pending job for this account already exists; the invariant of
		// one expiration job per account is already satisfied.
		if errors.Is(err, queue.ErrDuplicateTaskKey) {
			return nil
		}
		return fmt.Errorf("failed to schedule trial expiration: %w", err)
	}
	return nil
}

// Cancel removes the pending expiration job for the account, if any.
// A missing job is a no-op.
func (s *Scheduler) Cancel(ctx context.Context, accountID uuid.UUID) error {
	err := s.enqueuer.CancelByKey(ctx, ExpirationKey(accountID))
	if err != nil && !errors.Is(err, queue.ErrTaskNotFound) {
		return fmt.Errorf("failed to cancel trial expiration: %w", err)
	}
	return nil
}
