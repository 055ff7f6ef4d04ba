package cache

import (
	"context"
	"testing"
	"time"

	"rutero-field/internal/domain"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestCache(t *testing.T) (*miniredis.Miniredis, *LivePositionCache) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	return mr, NewLivePositionCache(client, 5*time.Minute, zap.NewNop())
}

func TestLivePositionCache_UpdateAndGet(t *testing.T) {
	_, c := setupTestCache(t)
	ctx := context.Background()

	pos := &LivePosition{
		AgentID:    "agent-1",
		Coordinate: domain.Coordinate{Latitude: -12.0464, Longitude: -77.0428},
		RecordedAt: time.Date(2025, 3, 10, 9, 15, 0, 0, time.UTC),
		SpeedKmh:   4.2,
		BatteryPct: 81,
	}

	require.NoError(t, c.Update(ctx, pos))

	got, err := c.Get(ctx, "agent-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, pos.Coordinate, got.Coordinate)
	assert.Equal(t, 81, got.BatteryPct)
	assert.True(t, pos.RecordedAt.Equal(got.RecordedAt))
}

func TestLivePositionCache_MissingAgent(t *testing.T) {
	_, c := setupTestCache(t)

	got, err := c.Get(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLivePositionCache_Expiry(t *testing.T) {
	mr, c := setupTestCache(t)
	ctx := context.Background()

	pos := &LivePosition{AgentID: "agent-2", Coordinate: domain.Coordinate{Latitude: 1, Longitude: 2}}
	require.NoError(t, c.Update(ctx, pos))

	mr.FastForward(10 * time.Minute)

	got, err := c.Get(ctx, "agent-2")
	require.NoError(t, err)
	assert.Nil(t, got)
}
