package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/trialbase/trialbase/svc/account"
)

// ProviderSubscription is the normalized result of a provider subscription call.
type ProviderSubscription struct {
	ID          string
	CustomerID  string
	Status      Status
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// ProviderInvoice is the normalized result of a provider invoice call.
type ProviderInvoice struct {
	ID              string
	PaymentIntentID string
	Status          string
	AmountDue       int64 // smallest currency unit
	Currency        string
}

// CreateSubscriptionParams carries the inputs for a provider subscription creation.
type CreateSubscriptionParams struct {
	CustomerID string
	Plan       account.PlanType
	TrialEnd   *time.Time
}

// CreateInvoiceParams carries the inputs for a provider invoice creation.
type CreateInvoiceParams struct {
	CustomerID  string
	Amount      int64 // smallest currency unit
	Currency    string
	Description string
}

// Provider is the payment-provider capability interface. Implementations
// must be safe for concurrent use; the same instance is shared process-wide.
type Provider interface {
	Name() string

	CreateCustomer(ctx context.Context, accountID, email string) (string, error)
	CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*ProviderSubscription, error)
	UpdateSubscription(ctx context.Context, providerSubID string, plan account.PlanType) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, providerSubID string, atPeriodEnd bool) (*ProviderSubscription, error)
	ResumeSubscription(ctx context.Context, providerSubID string) (*ProviderSubscription, error)
	GetSubscription(ctx context.Context, providerSubID string) (*ProviderSubscription, error)

	CreateInvoice(ctx context.Context, params CreateInvoiceParams) (*ProviderInvoice, error)
	GetInvoicePDFURL(ctx context.Context, providerInvoiceID string) (string, error)
}

// Registry is a name-keyed collection of payment providers, populated at
// the wiring root instead of through a global factory.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds a provider under its own name, replacing any previous
// registration with the same name.
func (r *Registry) Register(p Provider) {
	if p == nil {
		panic("subscription: cannot register nil provider")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get returns the provider registered under the given name.
// Returns ErrProviderNotFound when no provider is registered.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, ErrProviderNotFound
	}
	return p, nil
}
