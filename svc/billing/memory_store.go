package billing

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu       sync.RWMutex
	invoices map[uuid.UUID]*Invoice
	byNumber map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory invoice store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoices: make(map[uuid.UUID]*Invoice),
		byNumber: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Create(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byNumber[inv.Number]; taken {
		return ErrDuplicateInvoiceNumber
	}

	cp := *inv
	m.invoices[inv.ID] = &cp
	m.byNumber[inv.Number] = inv.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	inv, ok := m.invoices[id]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *inv
	return &cp, nil
}

func (m *MemoryStore) GetByNumber(_ context.Context, number string) (*Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byNumber[number]
	if !ok {
		return nil, ErrInvoiceNotFound
	}
	cp := *m.invoices[id]
	return &cp, nil
}

func (m *MemoryStore) ListByAccount(_ context.Context, accountID uuid.UUID) ([]Invoice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []Invoice
	for _, inv := range m.invoices {
		if inv.AccountID == accountID {
			out = append(out, *inv)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *MemoryStore) Update(_ context.Context, inv *Invoice) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.invoices[inv.ID]; !ok {
		return ErrInvoiceNotFound
	}

	cp := *inv
	m.invoices[inv.ID] = &cp
	return nil
}
