package billing

import "errors"

var (
	ErrInvoiceNotFound        = errors.New("invoice not found")
	ErrDuplicateInvoiceNumber = errors.New("invoice number already exists")
	ErrInvalidCurrency        = errors.New("unsupported currency")
	ErrInvalidAmount          = errors.New("amount must be positive")
	ErrStoreNil               = errors.New("billing store cannot be nil")
)
