package subscription

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu        sync.RWMutex
	subs      map[uuid.UUID]*Subscription
	byAccount map[uuid.UUID]uuid.UUID
}

// NewMemoryStore creates an empty in-memory subscription store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subs:      make(map[uuid.UUID]*Subscription),
		byAccount: make(map[uuid.UUID]uuid.UUID),
	}
}

func (m *MemoryStore) Create(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.byAccount[sub.AccountID]; exists {
		return ErrSubscriptionAlreadyExists
	}

	cp := *sub
	m.subs[sub.ID] = &cp
	m.byAccount[sub.AccountID] = sub.ID
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sub, ok := m.subs[id]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *sub
	return &cp, nil
}

func (m *MemoryStore) GetByAccount(_ context.Context, accountID uuid.UUID) (*Subscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byAccount[accountID]
	if !ok {
		return nil, ErrSubscriptionNotFound
	}
	cp := *m.subs[id]
	return &cp, nil
}

func (m *MemoryStore) Update(_ context.Context, sub *Subscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}

	cp := *sub
	m.subs[sub.ID] = &cp
	return nil
}
