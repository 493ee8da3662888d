package account

import (
	"time"

	"github.com/google/uuid"
)

// PlanType identifies the pricing tier an account is on.
type PlanType string

const (
	PlanFree       PlanType = "free"
	PlanPro        PlanType = "pro"
	PlanEnterprise PlanType = "enterprise"
)

// Valid reports whether the plan type is one of the known tiers.
func (p PlanType) Valid() bool {
	switch p {
	case PlanFree, PlanPro, PlanEnterprise:
		return true
	}
	return false
}

// Status represents the lifecycle state of an account.
type Status string

const (
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusCancelled Status = "cancelled"
)

// Account is a tenant in the multi-tenant system.
// If IsTrial is true, both TrialStart and TrialEnd are set and
// TrialEnd is never before TrialStart.
type Account struct {
	ID         uuid.UUID
	Name       string
	Subdomain  string // optional, unique when set
	Plan       PlanType
	Status     Status
	IsTrial    bool
	TrialStart *time.Time
	TrialEnd   *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsTrialActiveAt reports whether the account is on a trial that has not
// yet ended at the given time.
func (a *Account) IsTrialActiveAt(now time.Time) bool {
	if !a.IsTrial || a.TrialEnd == nil {
		return false
	}
	return now.Before(*a.TrialEnd)
}

// IsTrialActive reports whether the account is on a currently running trial.
func (a *Account) IsTrialActive() bool {
	return a.IsTrialActiveAt(time.Now().UTC())
}

// IsTrialExpiredAt reports whether the account is still flagged as trialing
// but its trial window has passed at the given time.
func (a *Account) IsTrialExpiredAt(now time.Time) bool {
	if !a.IsTrial || a.TrialEnd == nil {
		return false
	}
	return !now.Before(*a.TrialEnd)
}

// IsTrialExpired reports whether the trial window has passed.
func (a *Account) IsTrialExpired() bool {
	return a.IsTrialExpiredAt(time.Now().UTC())
}

// TrialDaysRemainingAt returns the number of whole days left in the trial at
// the given time, rounding partial days up. Returns 0 when the account is not
// on trial or the trial has ended.
// This variant exists so tests can pin the clock.
func (a *Account) TrialDaysRemainingAt(now time.Time) int {
	if !a.IsTrial || a.TrialEnd == nil {
		return 0
	}

	remaining := a.TrialEnd.Sub(now)
	if remaining <= 0 {
		return 0
	}

	const day = 24 * time.Hour
	days := int(remaining / day)
	if remaining%day > 0 {
		days++
	}
	return days
}

// TrialDaysRemaining returns the number of whole days left in the trial.
func (a *Account) TrialDaysRemaining() int {
	return a.TrialDaysRemainingAt(time.Now().UTC())
}
