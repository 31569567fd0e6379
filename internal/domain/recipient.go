package domain

import "time"

// RecipientIdentity is the delivery address on the messaging platform.
// The core only compares channel IDs for equality.
type RecipientIdentity struct {
	ChannelID string `json:"channel_id"`
}

// Recipient is a stored email → channel registration.
type Recipient struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	ChannelID string    `json:"channel_id" db:"channel_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
