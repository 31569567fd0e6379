package directory

import "errors"

// Sentinel errors for the directory service layer.
var (
	// ErrNotFound means the email has no registration yet. This is a
	// routine business condition (purchase before registration), not a
	// defect — callers surface it for manual follow-up.
	ErrNotFound = errors.New("recipient not registered")

	ErrInvalidEmail   = errors.New("invalid email")
	ErrInvalidChannel = errors.New("invalid channel id")
)
