package billing

import (
	"time"

	"github.com/google/uuid"
)

// Currency is an ISO 4217 code from the supported closed set.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyINR Currency = "INR"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
)

// Valid reports whether the currency is in the supported set.
func (c Currency) Valid() bool {
	switch c {
	case CurrencyUSD, CurrencyEUR, CurrencyGBP, CurrencyINR, CurrencyCAD, CurrencyAUD:
		return true
	}
	return false
}

// Status represents the payment state of an invoice.
type Status string

const (
	StatusPaid      Status = "paid"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// Invoice is a recorded billing document. Immutable after creation except
// for the PDF URL.
type Invoice struct {
	ID                uuid.UUID
	AccountID         uuid.UUID
	SubscriptionID    *uuid.UUID // optional link
	Number            string     // unique, generated when absent
	Date              time.Time
	Description       string
	Amount            int64 // smallest currency unit
	Currency          Currency
	Status            Status
	PDFURL            string
	Provider          string
	ProviderInvoiceID string
	PaymentIntentID   string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
