package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const itemSnapshotPrefix = "auction:item:"

// ItemSnapshot is the cached public pricing state served to item browsers.
// It is display-only; bid admission always reads the database under the
// item lock.
type ItemSnapshot struct {
	ItemID       uuid.UUID  `json:"item_id"`
	Title        string     `json:"title"`
	CurrentPrice string     `json:"current_price"`
	LeaderID     *uuid.UUID `json:"leader_id,omitempty"`
	EndTime      time.Time  `json:"end_time"`
	Status       string     `json:"status"`
	Highlighted  bool       `json:"highlighted"`
}

// ItemSnapshotCache caches item snapshots in Redis with a short TTL.
// Every committed bid invalidates the item's entry, so readers see at most
// one TTL of staleness and usually none.
type ItemSnapshotCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewItemSnapshotCache creates a snapshot cache
func NewItemSnapshotCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *ItemSnapshotCache {
	return &ItemSnapshotCache{client: client, ttl: ttl, logger: logger}
}

// Get returns the cached snapshot, or nil on a miss
func (c *ItemSnapshotCache) Get(ctx context.Context, itemID uuid.UUID) (*ItemSnapshot, error) {
	data, err := c.client.Get(ctx, itemSnapshotPrefix+itemID.String()).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("snapshot get failed: %w", err)
	}

	var snapshot ItemSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		// A corrupt entry is treated as a miss and overwritten.
		c.logger.Warn("discarding corrupt item snapshot", zap.String("item_id", itemID.String()))
		return nil, nil
	}
	return &snapshot, nil
}

// Set stores the snapshot
func (c *ItemSnapshotCache) Set(ctx context.Context, snapshot *ItemSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("snapshot marshal failed: %w", err)
	}

	if err := c.client.Set(ctx, itemSnapshotPrefix+snapshot.ItemID.String(), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("snapshot set failed: %w", err)
	}
	return nil
}

// Invalidate drops the item's cached snapshot
func (c *ItemSnapshotCache) Invalidate(ctx context.Context, itemID uuid.UUID) error {
	if err := c.client.Del(ctx, itemSnapshotPrefix+itemID.String()).Err(); err != nil {
		return fmt.Errorf("snapshot invalidate failed: %w", err)
	}
	return nil
}
