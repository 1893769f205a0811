package registry

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ErrCacheMiss 缓存中没有对应的键
var ErrCacheMiss = errors.New("cache miss")

// DeviceCache 设备身份缓存接口（可注入的键值持久化能力，替代浏览器 localStorage）
type DeviceCache interface {
	GetDeviceID(ctx context.Context) (string, error)
	SetDeviceID(ctx context.Context, deviceID string) error
	DeleteDeviceID(ctx context.Context) error
}

// 缓存键（与参考实现的 localStorage 键对应）
const (
	deviceIDKey       = "resq:ml-device:id"
	cooldownKeyPrefix = "resq:cooldown:"
)

// RedisDeviceCache Redis 实现的设备身份缓存
// 无 TTL：设备身份跨会话长期保留，仅在 Registry 中失效时删除
type RedisDeviceCache struct {
	redisClient *redis.Client
	logger      *zap.Logger
}

// NewRedisDeviceCache 创建设备身份缓存
func NewRedisDeviceCache(redisClient *redis.Client, logger *zap.Logger) *RedisDeviceCache {
	return &RedisDeviceCache{
		redisClient: redisClient,
		logger:      logger,
	}
}

// GetDeviceID 读取缓存的设备 id
func (c *RedisDeviceCache) GetDeviceID(ctx context.Context) (string, error) {
	val, err := c.redisClient.Get(ctx, deviceIDKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get cached device id: %w", err)
	}
	return val, nil
}

// SetDeviceID 缓存设备 id
func (c *RedisDeviceCache) SetDeviceID(ctx context.Context, deviceID string) error {
	if err := c.redisClient.Set(ctx, deviceIDKey, deviceID, 0).Err(); err != nil {
		return fmt.Errorf("failed to cache device id: %w", err)
	}
	return nil
}

// DeleteDeviceID 清除失效的设备 id 缓存
func (c *RedisDeviceCache) DeleteDeviceID(ctx context.Context) error {
	if err := c.redisClient.Del(ctx, deviceIDKey).Err(); err != nil {
		return fmt.Errorf("failed to delete cached device id: %w", err)
	}
	return nil
}

// RedisCooldownCache 冷却时间缓存：按设备保留最近一次报警时间
// TTL 等于冷却窗口，过期后键自动消失（重启后的会话不会在冷却窗口内重复报警）
type RedisCooldownCache struct {
	redisClient *redis.Client
	cooldown    time.Duration
	logger      *zap.Logger
}

// NewRedisCooldownCache 创建冷却时间缓存
func NewRedisCooldownCache(redisClient *redis.Client, cooldown time.Duration, logger *zap.Logger) *RedisCooldownCache {
	return &RedisCooldownCache{
		redisClient: redisClient,
		cooldown:    cooldown,
		logger:      logger,
	}
}

// GetLastAlert 读取设备最近一次报警时间；没有记录时返回 ErrCacheMiss
func (c *RedisCooldownCache) GetLastAlert(ctx context.Context, deviceID string) (time.Time, error) {
	val, err := c.redisClient.Get(ctx, cooldownKeyPrefix+deviceID).Result()
	if err != nil {
		if err == redis.Nil {
			return time.Time{}, ErrCacheMiss
		}
		return time.Time{}, fmt.Errorf("failed to get cooldown timestamp: %w", err)
	}

	millis, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cooldown timestamp: %q", val)
	}

	return time.UnixMilli(millis), nil
}

// SetLastAlert 记录设备最近一次报警时间（实现 engine.CooldownStore）
func (c *RedisCooldownCache) SetLastAlert(ctx context.Context, deviceID string, at time.Time) error {
	val := strconv.FormatInt(at.UnixMilli(), 10)
	if err := c.redisClient.Set(ctx, cooldownKeyPrefix+deviceID, val, c.cooldown).Err(); err != nil {
		return fmt.Errorf("failed to set cooldown timestamp: %w", err)
	}
	return nil
}
