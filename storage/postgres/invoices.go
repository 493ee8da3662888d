package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/trialbase/trialbase/pkg/pg"
	"github.com/trialbase/trialbase/svc/billing"
)

// InvoiceStore implements billing.Store on PostgreSQL.
type InvoiceStore struct {
	pool *pgxpool.Pool
}

// NewInvoiceStore creates a PostgreSQL-backed invoice store.
func NewInvoiceStore(pool *pgxpool.Pool) *InvoiceStore {
	return &InvoiceStore{pool: pool}
}

const invoiceColumns = `id, account_id, subscription_id, number, date, description,
	amount, currency, status, pdf_url, provider, provider_invoice_id, payment_intent_id,
	created_at, updated_at`

func (s *InvoiceStore) Create(ctx context.Context, inv *billing.Invoice) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9,
		        NULLIF($10, ''), $11, NULLIF($12, ''), NULLIF($13, ''), $14, $15)`,
		inv.ID, inv.AccountID, inv.SubscriptionID, inv.Number, inv.Date, inv.Description,
		inv.Amount, inv.Currency, inv.Status, inv.PDFURL, inv.Provider,
		inv.ProviderInvoiceID, inv.PaymentIntentID, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		if pg.IsDuplicateKeyError(err) {
			return billing.ErrDuplicateInvoiceNumber
		}
		return fmt.Errorf("failed to insert invoice: %w", err)
	}
	return nil
}

func (s *InvoiceStore) Get(ctx context.Context, id uuid.UUID) (*billing.Invoice, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id)
	return scanInvoice(row)
}

func (s *InvoiceStore) GetByNumber(ctx context.Context, number string) (*billing.Invoice, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number = $1`, number)
	return scanInvoice(row)
}

func (s *InvoiceStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]billing.Invoice, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE account_id = $1
		ORDER BY created_at DESC`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer rows.Close()

	var out []billing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func (s *InvoiceStore) Update(ctx context.Context, inv *billing.Invoice) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE invoices
		SET status = $2, pdf_url = NULLIF($3, ''), updated_at = $4
		WHERE id = $1`,
		inv.ID, inv.Status, inv.PDFURL, inv.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return billing.ErrInvoiceNotFound
	}
	return nil
}

func scanInvoice(row pgx.Row) (*billing.Invoice, error) {
	var (
		inv               billing.Invoice
		pdfURL            *string
		providerInvoiceID *string
		paymentIntentID   *string
	)
	err := row.Scan(
		&inv.ID, &inv.AccountID, &inv.SubscriptionID, &inv.Number, &inv.Date, &inv.Description,
		&inv.Amount, &inv.Currency, &inv.Status, &pdfURL, &inv.Provider,
		&providerInvoiceID, &paymentIntentID, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if pg.IsNotFoundError(err) {
			return nil, billing.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("failed to query invoice: %w", err)
	}
	if pdfURL != nil {
		inv.PDFURL = *pdfURL
	}
	if providerInvoiceID != nil {
		inv.ProviderInvoiceID = *providerInvoiceID
	}
	if paymentIntentID != nil {
		inv.PaymentIntentID = *paymentIntentID
	}
	return &inv, nil
}
