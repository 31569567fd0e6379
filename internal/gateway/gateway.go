// Package gateway defines the messaging capability the orchestrator
// depends on. The core never sees a wire format — only these two
// operations and the TransportError they may return.
package gateway

import (
	"context"
	"fmt"

	"github.com/ignite/delivery-relay/internal/domain"
)

// Gateway sends messages and files to a channel identity. Implementations
// must be safe for concurrent use, apply a bounded timeout per call, and
// perform no retries — retry policy belongs to the caller.
type Gateway interface {
	SendText(ctx context.Context, channelID, text string) error
	SendFile(ctx context.Context, channelID string, ref domain.FileRef) error
}

// TransportError is a network or provider-API failure on a single send.
// Label identifies the failed unit (filename for file sends) so partial
// completion can be reported precisely.
type TransportError struct {
	Op    string // "send_text" or "send_file"
	Label string
	Err   error
}

func (e *TransportError) Error() string {
	if e.Label != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Label, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
