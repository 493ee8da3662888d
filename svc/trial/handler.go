package trial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/pkg/queue"
	"github.com/trialbase/trialbase/svc/account"
	"github.com/trialbase/trialbase/svc/activity"
	"github.com/trialbase/trialbase/svc/subscription"
)

// ExpirationHandler processes trial-expiration tasks. Returned errors feed
// the queue's retry policy; a nil return marks the task completed.
type ExpirationHandler struct {
	scheduler     *Scheduler
	accounts      *account.Service
	subscriptions *subscription.Service
	activities    *activity.Logger
	log           *slog.Logger
	now           func() time.Time
}

// HandlerOption configures the ExpirationHandler.
type HandlerOption func(*ExpirationHandler)

// WithHandlerLogger sets a custom logger for the handler.
func WithHandlerLogger(log *slog.Logger) HandlerOption {
	return func(h *ExpirationHandler) { h.log = log }
}

// WithHandlerClock overrides the time source, for tests.
func WithHandlerClock(now func() time.Time) HandlerOption {
	return func(h *ExpirationHandler) { h.now = now }
}

// NewExpirationHandler creates the expiration handler. The activity logger
// is optional; all other dependencies are required.
func NewExpirationHandler(
	scheduler *Scheduler,
	accounts *account.Service,
	subscriptions *subscription.Service,
	activities *activity.Logger,
	opts ...HandlerOption,
) (*ExpirationHandler, error) {
	if scheduler == nil {
		return nil, ErrEnqueuerNil
	}
	if accounts == nil {
		return nil, ErrAccountsNil
	}
	if subscriptions == nil {
		return nil, ErrSubscriptionsNil
	}

	h := &ExpirationHandler{
		scheduler:     scheduler,
		accounts:      accounts,
		subscriptions: subscriptions,
		activities:    activities,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// QueueHandler returns the handler wired for worker registration under TaskName.
func (h *ExpirationHandler) QueueHandler() queue.Handler {
	return queue.NewNamedTaskHandler(TaskName, h.Handle)
}

// Handle runs one expiration attempt. Defensive re-checks make it safe
// against early delivery, duplicate delivery and stale payloads:
//
//  1. Delivered before the trial end: reschedule with the remaining delay.
//  2. Live subscription no longer trialing or active: already processed.
//  3. Live period end still in the future: the trial was extended or
//     converted; leave it alone.
//
// Only when every check passes does it downgrade the plan, end the account
// trial and record the activity.
func (h *ExpirationHandler) Handle(ctx context.Context, payload ExpirationPayload) error {
	now := h.now()

	if now.Before(payload.TrialEnd) {
		h.log.InfoContext(ctx, "expiration delivered early, rescheduling",
			logger.AccountID(payload.AccountID.String()),
			slog.Time("trial_end", payload.TrialEnd),
			logger.Component("trial"),
		)
		return h.scheduler.Schedule(ctx, payload.AccountID, payload.SubscriptionID, payload.TrialEnd)
	}

	sub, err := h.subscriptions.Get(ctx, payload.SubscriptionID)
	if err != nil {
		if errors.Is(err, subscription.ErrSubscriptionNotFound) {
			// Nothing left to downgrade; the account was likely deleted.
			h.log.WarnContext(ctx, "expiration target subscription missing",
				logger.SubscriptionID(payload.SubscriptionID.String()),
				logger.Component("trial"),
			)
			return nil
		}
		return fmt.Errorf("failed to load subscription: %w", err)
	}

	if sub.Status != subscription.StatusTrialing && sub.Status != subscription.StatusActive {
		return nil
	}

	if sub.CurrentPeriodEnd.After(now) {
		return nil
	}

	if _, err := h.subscriptions.ExpireTrial(ctx, sub.ID); err != nil {
		return fmt.Errorf("failed to downgrade subscription: %w", err)
	}

	if err := h.accounts.EndTrial(ctx, payload.AccountID); err != nil {
		return fmt.Errorf("failed to end account trial: %w", err)
	}

	if h.activities != nil {
		h.activities.Log(ctx, activity.Entry{
			AccountID:   payload.AccountID,
			Type:        activity.TypeTrialExpired,
			Description: "trial expired, subscription downgraded to free plan",
			Metadata: map[string]string{
				"subscription_id": sub.ID.String(),
			},
		})
	}

	h.log.InfoContext(ctx, "trial expired",
		logger.AccountID(payload.AccountID.String()),
		logger.SubscriptionID(sub.ID.String()),
		logger.Component("trial"),
	)

	return nil
}
