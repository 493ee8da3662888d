package billing

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/trialbase/trialbase/pkg/logger"
	"github.com/trialbase/trialbase/svc/activity"
	"github.com/trialbase/trialbase/svc/subscription"
)

// Service records invoices issued through payment providers.
type Service struct {
	store         Store
	subscriptions *subscription.Service
	registry      *subscription.Registry
	activities    *activity.Logger
	log           *slog.Logger
	now           func() time.Time
}

// Option configures the Service.
type Option func(*Service)

// WithLogger sets a custom logger for the service.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates the billing service.
// Panics on nil required dependencies to fail fast during wiring.
func NewService(
	store Store,
	subscriptions *subscription.Service,
	registry *subscription.Registry,
	activities *activity.Logger,
	opts ...Option,
) *Service {
	if store == nil {
		panic("billing: store is required")
	}
	if subscriptions == nil {
		panic("billing: subscription service is required")
	}
	if registry == nil {
		panic("billing: provider registry is required")
	}

	s := &Service{
		store:         store,
		subscriptions: subscriptions,
		registry:      registry,
		activities:    activities,
		log:           slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:           func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams carries the inputs for recording an invoice.
type CreateParams struct {
	AccountID   uuid.UUID
	Number      string // generated when empty
	Description string
	Amount      int64 // smallest currency unit
	Currency    Currency
}

// Create issues an invoice through the account's subscription provider and
// records it. Provider failures propagate: this is an explicit billing
// action, not a best-effort path.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Invoice, error) {
	if !params.Currency.Valid() {
		return nil, ErrInvalidCurrency
	}
	if params.Amount <= 0 {
		return nil, ErrInvalidAmount
	}

	sub, err := s.subscriptions.GetByAccount(ctx, params.AccountID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	inv := &Invoice{
		ID:          uuid.New(),
		AccountID:   params.AccountID,
		Number:      params.Number,
		Date:        now,
		Description: params.Description,
		Amount:      params.Amount,
		Currency:    params.Currency,
		Status:      StatusPending,
		Provider:    sub.Provider,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	inv.SubscriptionID = &sub.ID
	if inv.Number == "" {
		number, err := generateInvoiceNumber(now)
		if err != nil {
			return nil, err
		}
		inv.Number = number
	}

	if sub.HasProviderLink() {
		provider, err := s.registry.Get(sub.Provider)
		if err != nil {
			return nil, err
		}
		remote, err := provider.CreateInvoice(ctx, subscription.CreateInvoiceParams{
			CustomerID:  sub.ProviderCustomerID,
			Amount:      params.Amount,
			Currency:    string(params.Currency),
			Description: params.Description,
		})
		if err != nil {
			return nil, fmt.Errorf("provider invoice creation failed: %w", err)
		}
		inv.ProviderInvoiceID = remote.ID
		inv.PaymentIntentID = remote.PaymentIntentID
		if remote.Status == "paid" {
			inv.Status = StatusPaid
		}
	}

	if err := s.store.Create(ctx, inv); err != nil {
		return nil, err
	}

	if s.activities != nil {
		s.activities.Log(ctx, activity.Entry{
			AccountID:   params.AccountID,
			Type:        activity.TypeInvoiceCreated,
			Description: "invoice " + inv.Number + " created",
			Metadata: map[string]string{
				"invoice_id": inv.ID.String(),
				"amount":     fmt.Sprintf("%d", inv.Amount),
				"currency":   string(inv.Currency),
			},
		})
	}

	s.log.InfoContext(ctx, "invoice created",
		logger.AccountID(params.AccountID.String()),
		logger.InvoiceID(inv.ID.String()),
		slog.String("number", inv.Number),
		logger.Component("billing"),
	)

	return inv, nil
}

// Get retrieves an invoice by ID.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.store.Get(ctx, id)
}

// ListByAccount returns the account's invoices, newest first.
func (s *Service) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Invoice, error) {
	return s.store.ListByAccount(ctx, accountID)
}

// AttachPDF fetches the provider's PDF URL and stores it on the invoice.
// This is the only mutation an invoice supports after creation.
func (s *Service) AttachPDF(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.PDFURL != "" {
		return inv, nil
	}

	provider, err := s.registry.Get(inv.Provider)
	if err != nil {
		return nil, err
	}

	url, err := provider.GetInvoicePDFURL(ctx, inv.ProviderInvoiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch invoice pdf url: %w", err)
	}

	inv.PDFURL = url
	inv.UpdatedAt = s.now()
	if err := s.store.Update(ctx, inv); err != nil {
		return nil, err
	}
	return inv, nil
}

// generateInvoiceNumber builds a number like INV-2026-1a2b3c4d.
func generateInvoiceNumber(now time.Time) (string, error) {
	raw := make([]byte, 4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate invoice number: %w", err)
	}
	return fmt.Sprintf("INV-%d-%s", now.Year(), hex.EncodeToString(raw)), nil
}
