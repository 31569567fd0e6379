package directory

import (
	"context"

	"github.com/ignite/delivery-relay/internal/domain"
)

// Repository is the persistence contract for recipient registrations.
// Implementations must guarantee read-after-write consistency per email:
// a FindByEmail after an Upsert for the same email sees the new channel.
type Repository interface {
	// FindByEmail returns the registration for an exact (already
	// normalized) email, or ErrNotFound.
	FindByEmail(ctx context.Context, email string) (*domain.Recipient, error)

	// Upsert inserts or replaces the registration for rec.Email
	// atomically (last write wins).
	Upsert(ctx context.Context, rec *domain.Recipient) error
}
