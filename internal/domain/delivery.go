package domain

import "time"

// DeliveryStatus is the terminal classification of one delivery attempt.
type DeliveryStatus string

const (
	StatusDelivered         DeliveryStatus = "delivered"
	StatusProductNotFound   DeliveryStatus = "product_not_found"
	StatusRecipientNotFound DeliveryStatus = "recipient_not_found"
	StatusPartialFailure    DeliveryStatus = "partial_failure"
	StatusError             DeliveryStatus = "error"
)

// PurchaseEvent is a validated inbound purchase. The HTTP boundary verifies
// provider authenticity and normalizes the email before constructing one;
// the orchestrator trusts it as-is.
type PurchaseEvent struct {
	EventID           string `json:"event_id"`
	ExternalProductID string `json:"external_product_id"`
	CustomerEmail     string `json:"customer_email"`
	CustomerName      string `json:"customer_name"`
}

// StepResult records a single gateway call made during a delivery.
type StepResult struct {
	Step  string `json:"step"`            // "welcome", "file", "confirmation"
	Label string `json:"label,omitempty"` // filename for file steps
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// DeliveryOutcome is the result of one orchestration run. Request-scoped;
// the history store keeps its own copy for operator visibility.
type DeliveryOutcome struct {
	ID          string         `json:"id"`
	Status      DeliveryStatus `json:"status"`
	Detail      string         `json:"detail"`
	Steps       []StepResult   `json:"steps,omitempty"`
	CompletedAt time.Time      `json:"completed_at"`
}
