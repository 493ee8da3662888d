package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu          sync.RWMutex
	accounts    map[uuid.UUID]*Account
	bySubdomain map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory account store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:    make(map[uuid.UUID]*Account),
		bySubdomain: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) Create(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if acc.Subdomain != "" {
		if _, taken := m.bySubdomain[acc.Subdomain]; taken {
			return ErrSubdomainAlreadyTaken
		}
	}

	cp := *acc
	m.accounts[acc.ID] = &cp
	if acc.Subdomain != "" {
		m.bySubdomain[acc.Subdomain] = acc.ID
	}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	acc, ok := m.accounts[id]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *acc
	return &cp, nil
}

func (m *MemoryStore) GetBySubdomain(_ context.Context, subdomain string) (*Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.bySubdomain[subdomain]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *m.accounts[id]
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, acc *Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.accounts[acc.ID]
	if !ok {
		return ErrAccountNotFound
	}

	if acc.Subdomain != existing.Subdomain {
		if acc.Subdomain != "" {
			if owner, taken := m.bySubdomain[acc.Subdomain]; taken && owner != acc.ID {
				return ErrSubdomainAlreadyTaken
			}
		}
		if existing.Subdomain != "" {
			delete(m.bySubdomain, existing.Subdomain)
		}
		if acc.Subdomain != "" {
			m.bySubdomain[acc.Subdomain] = acc.ID
		}
	}

	cp := *acc
	m.accounts[acc.ID] = &cp
	return nil
}
