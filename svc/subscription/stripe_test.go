package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	stripe "github.com/stripe/stripe-go/v82"
)

var _ Provider = (*StripeProvider)(nil)

func TestMapStripeStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   stripe.SubscriptionStatus
		want Status
	}{
		{stripe.SubscriptionStatusTrialing, StatusTrialing},
		{stripe.SubscriptionStatusActive, StatusActive},
		{stripe.SubscriptionStatusPastDue, StatusPastDue},
		{stripe.SubscriptionStatusUnpaid, StatusPastDue},
		{stripe.SubscriptionStatusCanceled, StatusCancelled},
		{stripe.SubscriptionStatusIncompleteExpired, StatusExpired},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, mapStripeStatus(tc.in), "status %s", tc.in)
	}
}

func TestNormalizeStripeSubscription(t *testing.T) {
	t.Parallel()

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	sub := &stripe.Subscription{
		ID:       "sub_123",
		Status:   stripe.SubscriptionStatusActive,
		Customer: &stripe.Customer{ID: "cus_123"},
		Items: &stripe.SubscriptionItemList{
			Data: []*stripe.SubscriptionItem{
				{CurrentPeriodStart: start.Unix(), CurrentPeriodEnd: end.Unix()},
			},
		},
	}

	got := normalizeStripeSubscription(sub)
	assert.Equal(t, "sub_123", got.ID)
	assert.Equal(t, StatusActive, got.Status)
	assert.Equal(t, "cus_123", got.CustomerID)
	assert.True(t, got.PeriodStart.Equal(start))
	assert.True(t, got.PeriodEnd.Equal(end))
}

func TestNormalizeStripeSubscription_SparseObject(t *testing.T) {
	t.Parallel()

	got := normalizeStripeSubscription(&stripe.Subscription{
		ID:     "sub_456",
		Status: stripe.SubscriptionStatusCanceled,
	})
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Empty(t, got.CustomerID)
	assert.True(t, got.PeriodStart.IsZero())
	assert.True(t, got.PeriodEnd.IsZero())
}

func TestNormalizeStripeInvoice(t *testing.T) {
	t.Parallel()

	got := normalizeStripeInvoice(&stripe.Invoice{
		ID:        "in_123",
		Status:    stripe.InvoiceStatusOpen,
		AmountDue: 2900,
		Currency:  stripe.CurrencyUSD,
	})
	assert.Equal(t, "in_123", got.ID)
	assert.Equal(t, "open", got.Status)
	assert.EqualValues(t, 2900, got.AmountDue)
	assert.Equal(t, "usd", got.Currency)
	// The invoice object carries no payment intent; it arrives later via
	// payment webhooks.
	assert.Empty(t, got.PaymentIntentID)
}
