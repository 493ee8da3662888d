// Package billing records provider-issued invoices against accounts.
//
// Invoices are immutable once created except for attaching the PDF URL when
// the provider makes it available. Provider failures during invoice creation
// propagate to the caller: unlike trial signup, issuing an invoice is an
// explicit user-initiated billing action.
package billing
