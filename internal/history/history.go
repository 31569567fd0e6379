// Package history records delivery outcomes for operator visibility. The
// main consumer is the follow-up queue: purchases that arrived before the
// customer registered need a human to finish the delivery.
package history

import (
	"context"
	"time"

	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/domain"
)

// Entry is one recorded delivery outcome.
type Entry struct {
	ID                string                `json:"id"`
	EventID           string                `json:"event_id,omitempty"`
	ExternalProductID string                `json:"external_product_id"`
	CustomerEmail     string                `json:"customer_email"`
	Status            domain.DeliveryStatus `json:"status"`
	Detail            string                `json:"detail"`
	Steps             []domain.StepResult   `json:"steps,omitempty"`
	RecordedAt        time.Time             `json:"recorded_at"`
}

// Store keeps recent delivery outcomes.
type Store interface {
	// Record stores an outcome. Failures here must not fail the delivery.
	Record(ctx context.Context, e Entry) error

	// Recent returns up to limit outcomes, newest first.
	Recent(ctx context.Context, limit int) []Entry

	// FollowUps returns recent outcomes needing manual attention
	// (recipient not registered), newest first.
	FollowUps(ctx context.Context, limit int) []Entry
}

// New builds the history store: always an in-memory ring, with a DynamoDB
// sink layered on when a table is configured.
func New(ctx context.Context, cfg config.HistoryConfig) (Store, error) {
	mem := NewMemoryStore(cfg.MaxEntries)
	if cfg.DynamoDBTable == "" {
		return mem, nil
	}
	return NewDynamoStore(ctx, mem, cfg)
}

// FromOutcome builds an Entry from an event and its outcome.
func FromOutcome(event domain.PurchaseEvent, outcome domain.DeliveryOutcome) Entry {
	return Entry{
		ID:                outcome.ID,
		EventID:           event.EventID,
		ExternalProductID: event.ExternalProductID,
		CustomerEmail:     event.CustomerEmail,
		Status:            outcome.Status,
		Detail:            outcome.Detail,
		Steps:             outcome.Steps,
		RecordedAt:        outcome.CompletedAt,
	}
}
