package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/ignite/delivery-relay/internal/directory"
	"github.com/ignite/delivery-relay/internal/domain"
)

// RecipientRepo implements directory.Repository against PostgreSQL.
type RecipientRepo struct{ db *sql.DB }

// NewRecipientRepo creates a Postgres-backed recipient repository.
func NewRecipientRepo(db *sql.DB) *RecipientRepo { return &RecipientRepo{db: db} }

func (r *RecipientRepo) FindByEmail(ctx context.Context, email string) (*domain.Recipient, error) {
	var rec domain.Recipient
	err := r.db.QueryRowContext(ctx, `
		SELECT id, email, channel_id, created_at, updated_at
		FROM delivery_recipients
		WHERE email = $1
	`, email).Scan(&rec.ID, &rec.Email, &rec.ChannelID, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find recipient: %w", err)
	}
	return &rec, nil
}

func (r *RecipientRepo) Upsert(ctx context.Context, rec *domain.Recipient) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO delivery_recipients (id, email, channel_id, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (email) DO UPDATE SET channel_id = $3, updated_at = NOW()
	`, rec.ID, rec.Email, rec.ChannelID)
	if err != nil {
		return fmt.Errorf("upsert recipient: %w", err)
	}
	return nil
}
