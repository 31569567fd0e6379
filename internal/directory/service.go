package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/ignite/delivery-relay/internal/domain"
	"github.com/ignite/delivery-relay/internal/pkg/logger"
)

// Service implements recipient directory business logic. Safe for
// concurrent use when the underlying repository is; the Postgres
// implementation serializes concurrent writes per email through its
// atomic upsert.
type Service struct {
	repo Repository
}

// NewService creates a directory service backed by the given repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// FindChannel resolves an email to its channel identity. The stored key is
// matched case-sensitively; no normalization happens here so the lookup
// stays a pure read.
func (s *Service) FindChannel(ctx context.Context, email string) (domain.RecipientIdentity, error) {
	rec, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return domain.RecipientIdentity{}, err
	}
	return domain.RecipientIdentity{ChannelID: rec.ChannelID}, nil
}

// Register records an email → channel mapping. Registering the same email
// again overwrites the prior channel (a customer re-registering from a new
// device). The email is trimmed and lowercased here, at the write boundary.
func (s *Service) Register(ctx context.Context, email, channelID string) (*domain.Recipient, error) {
	email = NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return nil, ErrInvalidChannel
	}

	rec := &domain.Recipient{
		ID:        uuid.New().String(),
		Email:     email,
		ChannelID: channelID,
	}
	if err := s.repo.Upsert(ctx, rec); err != nil {
		return nil, fmt.Errorf("register recipient: %w", err)
	}

	logger.Info("recipient registered", "email", email, "channel_id", channelID)
	return rec, nil
}

// NormalizeEmail applies the registration-boundary normalization: trim
// whitespace, lowercase. Webhook intake applies the same rule before
// building a PurchaseEvent so lookups match.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
