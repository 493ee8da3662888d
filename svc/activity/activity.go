package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the kind of event being recorded.
type Type string

const (
	TypeAccountCreated        Type = "account.created"
	TypeUserRegistered        Type = "user.registered"
	TypeUserLoggedIn          Type = "user.logged_in"
	TypeTrialStarted          Type = "trial.started"
	TypeTrialExpired          Type = "trial.expired"
	TypePasswordReset         Type = "user.password_reset"
	TypeMFAEnabled            Type = "user.mfa_enabled"
	TypeMFADisabled           Type = "user.mfa_disabled"
	TypePlanChanged           Type = "subscription.plan_changed"
	TypeSubscriptionCancelled Type = "subscription.cancelled"
	TypeInvoiceCreated        Type = "invoice.created"
)

// Entry is a single recorded activity.
type Entry struct {
	ID          uuid.UUID
	UserID      uuid.UUID // zero when the actor is the system
	AccountID   uuid.UUID
	Type        Type
	Description string
	Metadata    map[string]string
	CreatedAt   time.Time
}

// Store persists activity entries.
type Store interface {
	Insert(ctx context.Context, entry Entry) error
	ListByAccount(ctx context.Context, accountID uuid.UUID, limit int) ([]Entry, error)
}
