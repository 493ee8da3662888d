package auth

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store implementation for tests and development.
type MemoryStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*User
	byEmail map[string]uuid.UUID
}

// NewMemoryStore creates an empty in-memory user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:   make(map[uuid.UUID]*User),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (m *MemoryStore) CreateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.byEmail[user.Email]; taken {
		return ErrEmailAlreadyExists
	}

	cp := *user
	m.users[user.ID] = &cp
	m.byEmail[user.Email] = user.ID
	return nil
}

func (m *MemoryStore) GetUserByID(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *user
	return &cp, nil
}

func (m *MemoryStore) GetUserByEmail(_ context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	cp := *m.users[id]
	return &cp, nil
}

func (m *MemoryStore) GetUserByResetTokenHash(_ context.Context, tokenHash string, now time.Time) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if tokenHash == "" {
		return nil, ErrUserNotFound
	}

	for _, user := range m.users {
		if user.ResetTokenHash != tokenHash {
			continue
		}
		// Expired tokens are indistinguishable from unknown ones.
		if user.ResetTokenExpires == nil || !now.Before(*user.ResetTokenExpires) {
			return nil, ErrUserNotFound
		}
		cp := *user
		return &cp, nil
	}
	return nil, ErrUserNotFound
}

func (m *MemoryStore) UpdateUser(_ context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.users[user.ID]
	if !ok {
		return ErrUserNotFound
	}

	if user.Email != existing.Email {
		if owner, taken := m.byEmail[user.Email]; taken && owner != user.ID {
			return ErrEmailAlreadyExists
		}
		delete(m.byEmail, existing.Email)
		m.byEmail[user.Email] = user.ID
	}

	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *MemoryStore) DeleteUser(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	delete(m.byEmail, user.Email)
	delete(m.users, id)
	return nil
}
