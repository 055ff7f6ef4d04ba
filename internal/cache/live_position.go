// Package cache keeps the "where is this agent now" answer hot in
// Redis so supervision screens never scan the GPS table for it.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"rutero-field/internal/domain"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

const positionKeyPrefix = "agent:pos:"

// LivePosition latest known position of one agent.
type LivePosition struct {
	AgentID    string            `json:"agent_id"`
	Coordinate domain.Coordinate `json:"coordinate"`
	RecordedAt time.Time         `json:"recorded_at"`
	SpeedKmh   float64           `json:"speed_kmh"`
	Heading    float64           `json:"heading"`
	BatteryPct int               `json:"battery_pct"`
	IsMock     bool              `json:"is_mock"`
}

// LivePositionCache Redis-backed last-known-position store.
type LivePositionCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewLivePositionCache creates the cache with the configured TTL.
func NewLivePositionCache(client *redis.Client, ttl time.Duration, logger *zap.Logger) *LivePositionCache {
	return &LivePositionCache{client: client, ttl: ttl, logger: logger}
}

// Update refreshes the agent's cached position.
func (c *LivePositionCache) Update(ctx context.Context, pos *LivePosition) error {
	key := positionKeyPrefix + pos.AgentID

	jsonData, err := json.Marshal(pos)
	if err != nil {
		return fmt.Errorf("failed to marshal live position: %w", err)
	}

	if err := c.client.Set(ctx, key, string(jsonData), c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set live position: %w", err)
	}

	c.logger.Debug("Updated live position cache",
		zap.String("agent_id", pos.AgentID),
		zap.String("key", key))

	return nil
}

// Get returns the agent's cached position, or (nil, nil) when the
// entry is missing or expired.
func (c *LivePositionCache) Get(ctx context.Context, agentID string) (*LivePosition, error) {
	key := positionKeyPrefix + agentID

	raw, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get live position: %w", err)
	}

	var pos LivePosition
	if err := json.Unmarshal([]byte(raw), &pos); err != nil {
		return nil, fmt.Errorf("failed to unmarshal live position: %w", err)
	}
	return &pos, nil
}
