package billing

import (
	"context"

	"github.com/google/uuid"
)

// Store defines the persistence contract for invoices.
type Store interface {
	// Create persists a new invoice. Returns ErrDuplicateInvoiceNumber when
	// the invoice number is already in use.
	Create(ctx context.Context, inv *Invoice) error

	// Get retrieves an invoice by ID. Returns ErrInvoiceNotFound on miss.
	Get(ctx context.Context, id uuid.UUID) (*Invoice, error)

	// GetByNumber retrieves an invoice by its number.
	// Returns ErrInvoiceNotFound on miss.
	GetByNumber(ctx context.Context, number string) (*Invoice, error)

	// ListByAccount returns the account's invoices, newest first.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]Invoice, error)

	// Update persists changes to an existing invoice.
	// Returns ErrInvoiceNotFound when the invoice does not exist.
	Update(ctx context.Context, inv *Invoice) error
}
