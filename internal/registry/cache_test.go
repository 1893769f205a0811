package registry

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, redisClient
}

func TestRedisDeviceCache_SetGet(t *testing.T) {
	_, redisClient := setupTestRedis(t)
	cache := NewRedisDeviceCache(redisClient, zap.NewNop())
	ctx := context.Background()

	err := cache.SetDeviceID(ctx, "device-123")
	require.NoError(t, err)

	deviceID, err := cache.GetDeviceID(ctx)
	require.NoError(t, err)
	assert.Equal(t, "device-123", deviceID)
}

func TestRedisDeviceCache_Miss(t *testing.T) {
	_, redisClient := setupTestRedis(t)
	cache := NewRedisDeviceCache(redisClient, zap.NewNop())

	_, err := cache.GetDeviceID(context.Background())

	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisDeviceCache_Delete(t *testing.T) {
	_, redisClient := setupTestRedis(t)
	cache := NewRedisDeviceCache(redisClient, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.SetDeviceID(ctx, "device-123"))
	require.NoError(t, cache.DeleteDeviceID(ctx))

	_, err := cache.GetDeviceID(ctx)
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCooldownCache_SetGet(t *testing.T) {
	_, redisClient := setupTestRedis(t)
	cache := NewRedisCooldownCache(redisClient, 30*time.Second, zap.NewNop())
	ctx := context.Background()

	at := time.Now().Truncate(time.Millisecond)
	err := cache.SetLastAlert(ctx, "device-123", at)
	require.NoError(t, err)

	got, err := cache.GetLastAlert(ctx, "device-123")
	require.NoError(t, err)
	assert.True(t, at.Equal(got))
}

func TestRedisCooldownCache_Miss(t *testing.T) {
	_, redisClient := setupTestRedis(t)
	cache := NewRedisCooldownCache(redisClient, 30*time.Second, zap.NewNop())

	_, err := cache.GetLastAlert(context.Background(), "device-unknown")

	assert.ErrorIs(t, err, ErrCacheMiss)
}

// TTL 到期后冷却记录自动消失
func TestRedisCooldownCache_Expires(t *testing.T) {
	mr, redisClient := setupTestRedis(t)
	cache := NewRedisCooldownCache(redisClient, 30*time.Second, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, cache.SetLastAlert(ctx, "device-123", time.Now()))

	mr.FastForward(31 * time.Second)

	_, err := cache.GetLastAlert(ctx, "device-123")
	assert.ErrorIs(t, err, ErrCacheMiss)
}
