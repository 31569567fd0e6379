// Package dedup claims inbound purchase event IDs in Redis so provider
// webhook retries do not trigger a second delivery. A claim is SET NX with
// a TTL; the first caller wins, later callers see the event as already
// processed until the TTL lapses.
package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Claimer claims event IDs. A nil Redis client disables deduplication:
// every claim succeeds and the relay processes events at-least-once.
type Claimer struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates a Claimer. ttl bounds how long a processed event ID stays
// claimed; 0 falls back to 24h.
func New(client *redis.Client, ttl time.Duration) *Claimer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Claimer{client: client, ttl: ttl}
}

// Claim tries to claim the event ID. Returns true if this caller is the
// first to see it. An empty ID is never deduplicated (the provider did not
// send one), so it always claims successfully.
func (c *Claimer) Claim(ctx context.Context, eventID string) (bool, error) {
	if c.client == nil || eventID == "" {
		return true, nil
	}
	ok, err := c.client.SetNX(ctx, key(eventID), time.Now().UTC().Format(time.RFC3339), c.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim event %s: %w", eventID, err)
	}
	return ok, nil
}

// Release drops a claim, letting the event be processed again. Used when
// orchestration could not start after a successful claim.
func (c *Claimer) Release(ctx context.Context, eventID string) error {
	if c.client == nil || eventID == "" {
		return nil
	}
	return c.client.Del(ctx, key(eventID)).Err()
}

func key(eventID string) string {
	return fmt.Sprintf("delivery:event:%s", eventID)
}
