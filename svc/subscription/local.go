package subscription

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/svc/account"
)

// LocalProviderName is the sentinel provider for subscriptions tracked
// without a remote billing backend (trial fallbacks, development).
const LocalProviderName = "local"

// LocalProvider satisfies the Provider interface without any remote calls.
// It is used as the graceful-degradation fallback when the configured
// provider is unavailable during trial signup.
type LocalProvider struct{}

// NewLocalProvider creates a local sentinel provider.
func NewLocalProvider() *LocalProvider {
	return &LocalProvider{}
}

func (p *LocalProvider) Name() string { return LocalProviderName }

func (p *LocalProvider) CreateCustomer(_ context.Context, accountID, _ string) (string, error) {
	return "local_cus_" + accountID, nil
}

func (p *LocalProvider) CreateSubscription(_ context.Context, params CreateSubscriptionParams) (*ProviderSubscription, error) {
	now := time.Now().UTC()
	status := StatusActive
	periodEnd := now
	if params.TrialEnd != nil {
		status = StatusTrialing
		periodEnd = *params.TrialEnd
	}
	return &ProviderSubscription{
		ID:          "local_sub_" + uuid.NewString(),
		CustomerID:  params.CustomerID,
		Status:      status,
		PeriodStart: now,
		PeriodEnd:   periodEnd,
	}, nil
}

func (p *LocalProvider) UpdateSubscription(_ context.Context, providerSubID string, _ account.PlanType) (*ProviderSubscription, error) {
	return nil, fmt.Errorf("local provider cannot update subscription %s remotely", providerSubID)
}

func (p *LocalProvider) CancelSubscription(_ context.Context, providerSubID string, _ bool) (*ProviderSubscription, error) {
	return nil, fmt.Errorf("local provider cannot cancel subscription %s remotely", providerSubID)
}

func (p *LocalProvider) ResumeSubscription(_ context.Context, providerSubID string) (*ProviderSubscription, error) {
	return nil, fmt.Errorf("local provider cannot resume subscription %s remotely", providerSubID)
}

func (p *LocalProvider) GetSubscription(_ context.Context, providerSubID string) (*ProviderSubscription, error) {
	return nil, fmt.Errorf("local provider cannot fetch subscription %s remotely", providerSubID)
}

func (p *LocalProvider) CreateInvoice(_ context.Context, _ CreateInvoiceParams) (*ProviderInvoice, error) {
	return nil, fmt.Errorf("local provider cannot issue invoices")
}

func (p *LocalProvider) GetInvoicePDFURL(_ context.Context, providerInvoiceID string) (string, error) {
	return "", fmt.Errorf("local provider has no PDF for invoice %s", providerInvoiceID)
}
