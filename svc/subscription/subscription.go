package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/svc/account"
)

// Subscription is the billing-plan record for an account.
// Each account has exactly one subscription; creation fails when one exists.
type Subscription struct {
	ID                 uuid.UUID        `json:"id"`
	AccountID          uuid.UUID        `json:"account_id"`
	Plan               account.PlanType `json:"plan"`
	Status             Status           `json:"status"`
	Features           Features         `json:"features"`
	CurrentPeriodStart time.Time        `json:"current_period_start"`
	CurrentPeriodEnd   time.Time        `json:"current_period_end"`
	CancelAtPeriodEnd  bool             `json:"cancel_at_period_end"`
	CancelledAt        *time.Time       `json:"cancelled_at,omitempty"`
	Provider           string           `json:"provider"`
	ProviderCustomerID string           `json:"provider_customer_id,omitempty"`
	ProviderSubID      string           `json:"provider_sub_id,omitempty"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsTrialing reports whether the subscription is in trial status.
func (s *Subscription) IsTrialing() bool {
	return s.Status == StatusTrialing
}

// IsActive reports whether the subscription is active (paid).
func (s *Subscription) IsActive() bool {
	return s.Status == StatusActive
}

// IsCancelled reports whether the subscription is cancelled.
func (s *Subscription) IsCancelled() bool {
	return s.Status == StatusCancelled
}

// HasProviderLink reports whether the subscription is backed by a remote
// provider subscription, as opposed to being tracked locally only.
func (s *Subscription) HasProviderLink() bool {
	return s.ProviderSubID != "" && s.Provider != LocalProviderName
}
