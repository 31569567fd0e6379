// Package memory provides an in-memory directory.Repository. Used when no
// DATABASE_URL is configured (registrations do not survive restarts) and
// as a fake in tests.
package memory

import (
	"context"
	"sync"

	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/domain"
)

// RecipientRepo is a mutex-guarded map implementation of
// directory.Repository. The lock serializes register/lookup pairs so a
// concurrent delivery never observes a half-written registration.
type RecipientRepo struct {
	mu         sync.RWMutex
	recipients map[string]domain.Recipient // keyed by email
}

// NewRecipientRepo creates an empty in-memory recipient repository.
func NewRecipientRepo() *RecipientRepo {
	return &RecipientRepo{recipients: make(map[string]domain.Recipient)}
}

func (r *RecipientRepo) FindByEmail(_ context.Context, email string) (*domain.Recipient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.recipients[email]
	if !ok {
		return nil, directory.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

func (r *RecipientRepo) Upsert(_ context.Context, rec *domain.Recipient) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recipients[rec.Email] = *rec
	return nil
}

// Len returns the number of stored registrations.
func (r *RecipientRepo) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.recipients)
}
