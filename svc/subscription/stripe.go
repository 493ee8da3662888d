package subscription

import (
	"context"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/invoice"
	"github.com/stripe/stripe-go/v82/invoiceitem"
	stripesub "github.com/stripe/stripe-go/v82/subscription"

	"github.com/trialbase/trialbase/svc/account"
)

// StripeProviderName is the registry key for the Stripe provider.
const StripeProviderName = "stripe"

// StripePlanPrices maps plan types to Stripe price IDs. The IDs must match
// price objects configured in the Stripe dashboard.
type StripePlanPrices map[account.PlanType]string

// StripeProvider implements Provider using the Stripe API.
type StripeProvider struct {
	planPrices StripePlanPrices
}

// NewStripeProvider creates a StripeProvider with the given API key and
// plan-to-price mapping.
func NewStripeProvider(apiKey string, planPrices StripePlanPrices) *StripeProvider {
	stripe.Key = apiKey
	return &StripeProvider{planPrices: planPrices}
}

func (p *StripeProvider) Name() string { return StripeProviderName }

func (p *StripeProvider) CreateCustomer(_ context.Context, accountID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"account_id": accountID,
		},
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateSubscription(_ context.Context, in CreateSubscriptionParams) (*ProviderSubscription, error) {
	priceID, ok := p.planPrices[in.Plan]
	if !ok {
		return nil, fmt.Errorf("no stripe price configured for plan %q", in.Plan)
	}

	params := &stripe.SubscriptionParams{
		Customer: stripe.String(in.CustomerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
	}
	if in.TrialEnd != nil {
		params.TrialEnd = stripe.Int64(in.TrialEnd.Unix())
	}

	sub, err := stripesub.New(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe subscription: %w", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (p *StripeProvider) UpdateSubscription(_ context.Context, providerSubID string, plan account.PlanType) (*ProviderSubscription, error) {
	priceID, ok := p.planPrices[plan]
	if !ok {
		return nil, fmt.Errorf("no stripe price configured for plan %q", plan)
	}

	current, err := stripesub.Get(providerSubID, nil)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription: %w", err)
	}
	if len(current.Items.Data) == 0 {
		return nil, fmt.Errorf("stripe subscription %s has no items", providerSubID)
	}

	params := &stripe.SubscriptionParams{
		Items: []*stripe.SubscriptionItemsParams{
			{
				ID:    stripe.String(current.Items.Data[0].ID),
				Price: stripe.String(priceID),
			},
		},
		ProrationBehavior: stripe.String("create_prorations"),
	}

	sub, err := stripesub.Update(providerSubID, params)
	if err != nil {
		return nil, fmt.Errorf("update stripe subscription: %w", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (p *StripeProvider) CancelSubscription(_ context.Context, providerSubID string, atPeriodEnd bool) (*ProviderSubscription, error) {
	if atPeriodEnd {
		sub, err := stripesub.Update(providerSubID, &stripe.SubscriptionParams{
			CancelAtPeriodEnd: stripe.Bool(true),
		})
		if err != nil {
			return nil, fmt.Errorf("schedule stripe cancellation: %w", err)
		}
		return normalizeStripeSubscription(sub), nil
	}

	sub, err := stripesub.Cancel(providerSubID, nil)
	if err != nil {
		return nil, fmt.Errorf("cancel stripe subscription: %w", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (p *StripeProvider) ResumeSubscription(_ context.Context, providerSubID string) (*ProviderSubscription, error) {
	sub, err := stripesub.Update(providerSubID, &stripe.SubscriptionParams{
		CancelAtPeriodEnd: stripe.Bool(false),
	})
	if err != nil {
		return nil, fmt.Errorf("resume stripe subscription: %w", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (p *StripeProvider) GetSubscription(_ context.Context, providerSubID string) (*ProviderSubscription, error) {
	sub, err := stripesub.Get(providerSubID, nil)
	if err != nil {
		return nil, fmt.Errorf("get stripe subscription: %w", err)
	}
	return normalizeStripeSubscription(sub), nil
}

func (p *StripeProvider) CreateInvoice(_ context.Context, in CreateInvoiceParams) (*ProviderInvoice, error) {
	_, err := invoiceitem.New(&stripe.InvoiceItemParams{
		Customer:    stripe.String(in.CustomerID),
		Amount:      stripe.Int64(in.Amount),
		Currency:    stripe.String(in.Currency),
		Description: stripe.String(in.Description),
	})
	if err != nil {
		return nil, fmt.Errorf("create stripe invoice item: %w", err)
	}

	inv, err := invoice.New(&stripe.InvoiceParams{
		Customer:    stripe.String(in.CustomerID),
		AutoAdvance: stripe.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("create stripe invoice: %w", err)
	}

	return normalizeStripeInvoice(inv), nil
}

func (p *StripeProvider) GetInvoicePDFURL(_ context.Context, providerInvoiceID string) (string, error) {
	inv, err := invoice.Get(providerInvoiceID, nil)
	if err != nil {
		return "", fmt.Errorf("get stripe invoice: %w", err)
	}
	return inv.InvoicePDF, nil
}

// normalizeStripeSubscription maps a Stripe subscription to the provider-
// neutral shape. Period bounds live on the subscription items in current
// Stripe API versions.
func normalizeStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:     sub.ID,
		Status: mapStripeStatus(sub.Status),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		out.PeriodStart = time.Unix(item.CurrentPeriodStart, 0).UTC()
		out.PeriodEnd = time.Unix(item.CurrentPeriodEnd, 0).UTC()
	}
	return out
}

// normalizeStripeInvoice maps a Stripe invoice to the provider-neutral shape.
// Current Stripe API versions no longer embed the payment intent on the
// invoice object, so PaymentIntentID stays empty here; the intent surfaces
// later through payment webhooks.
func normalizeStripeInvoice(inv *stripe.Invoice) *ProviderInvoice {
	return &ProviderInvoice{
		ID:        inv.ID,
		Status:    string(inv.Status),
		AmountDue: inv.AmountDue,
		Currency:  string(inv.Currency),
	}
}

func mapStripeStatus(s stripe.SubscriptionStatus) Status {
	switch s {
	case stripe.SubscriptionStatusTrialing:
		return StatusTrialing
	case stripe.SubscriptionStatusActive:
		return StatusActive
	case stripe.SubscriptionStatusPastDue, stripe.SubscriptionStatusUnpaid:
		return StatusPastDue
	case stripe.SubscriptionStatusCanceled:
		return StatusCancelled
	default:
		return StatusExpired
	}
}
