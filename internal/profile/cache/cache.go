// Package cache keeps public profile cards in Redis so profile-page reads do
// not recompute aggregate counters from the edge and ledger tables. Entries
// are invalidated by the mutation that changes a counter; the TTL only bounds
// staleness if an invalidation is lost.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"medigraph/internal/profile/models"
	"medigraph/pkg/domain"
	"medigraph/pkg/platform/sentinel"
)

const cardKeyPrefix = "profile:card:"

// Cards is a Redis-backed card cache.
type Cards struct {
	client *redis.Client
	ttl    time.Duration
}

func New(client *redis.Client, ttl time.Duration) *Cards {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Cards{client: client, ttl: ttl}
}

// GetCard returns a cached card or sentinel.ErrNotFound on miss.
func (c *Cards) GetCard(ctx context.Context, id domain.ProfileID) (models.Card, error) {
	payload, err := c.client.Get(ctx, cardKeyPrefix+id.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return models.Card{}, sentinel.ErrNotFound
	}
	if err != nil {
		return models.Card{}, fmt.Errorf("get cached card: %w", err)
	}
	var card models.Card
	if err := json.Unmarshal(payload, &card); err != nil {
		// A corrupt entry is treated as a miss; the caller will repopulate.
		return models.Card{}, sentinel.ErrNotFound
	}
	return card, nil
}

// SetCard stores a card with the configured TTL.
func (c *Cards) SetCard(ctx context.Context, card models.Card) error {
	payload, err := json.Marshal(card)
	if err != nil {
		return fmt.Errorf("marshal card: %w", err)
	}
	if err := c.client.Set(ctx, cardKeyPrefix+card.ID.String(), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("set cached card: %w", err)
	}
	return nil
}

// Invalidate drops the cached card for a profile.
func (c *Cards) Invalidate(ctx context.Context, id domain.ProfileID) error {
	if err := c.client.Del(ctx, cardKeyPrefix+id.String()).Err(); err != nil {
		return fmt.Errorf("invalidate cached card: %w", err)
	}
	return nil
}
