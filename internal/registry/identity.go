package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"resq-firewatch/internal/models"
	"resq-firewatch/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DeviceStore 身份解析所需的设备持久化操作（由 repository.DeviceRepository 实现）
type DeviceStore interface {
	GetDevice(ctx context.Context, deviceID string) (*models.Device, error)
	CreateDevice(ctx context.Context, device *models.Device) error
	UpdateDeviceStatus(ctx context.Context, deviceID, status string) error
}

// DefaultLocation 新注册设备的默认位置
type DefaultLocation struct {
	Text string
	Lat  float64
	Lng  float64
}

// Identity 设备身份解析器：为当前监控会话 find-or-create 一个稳定的设备身份
type Identity struct {
	devices  DeviceStore
	cache    DeviceCache
	location DefaultLocation
	logger   *zap.Logger
}

// NewIdentity 创建身份解析器
func NewIdentity(devices DeviceStore, cache DeviceCache, location DefaultLocation, logger *zap.Logger) *Identity {
	return &Identity{
		devices:  devices,
		cache:    cache,
		location: location,
		logger:   logger,
	}
}

// Resolve 解析会话的设备身份
// 先查缓存的设备 id；命中且在 Registry 中存在则刷新心跳并复用；
// 缓存失效（设备已删除）或无缓存则注册新设备并更新缓存。
// 任何 Registry I/O 失败都如实返回错误，绝不伪造设备 id。
func (i *Identity) Resolve(ctx context.Context) (*models.Device, error) {
	cachedID, err := i.cache.GetDeviceID(ctx)
	if err != nil && !errors.Is(err, ErrCacheMiss) {
		// 缓存故障视为未命中：宁可多注册一个设备也不让会话无法启动
		i.logger.Warn("Device cache unavailable, treating as miss",
			zap.Error(err),
		)
		cachedID = ""
	}

	if cachedID != "" {
		device, err := i.devices.GetDevice(ctx, cachedID)
		if err == nil {
			// 复用已有设备，刷新上线状态和心跳
			if updateErr := i.devices.UpdateDeviceStatus(ctx, device.ID, models.DeviceStatusOnline); updateErr != nil {
				i.logger.Warn("Failed to refresh device heartbeat",
					zap.String("device_id", device.ID),
					zap.Error(updateErr),
				)
			}
			i.logger.Info("Using existing ML camera device",
				zap.String("device_id", device.ID),
				zap.String("device_name", device.Name),
			)
			return device, nil
		}

		if !errors.Is(err, repository.ErrDeviceNotFound) {
			return nil, fmt.Errorf("failed to look up cached device: %w", err)
		}

		// 缓存指向的设备已不存在，清除后重新注册
		i.logger.Warn("Cached device not found in registry, registering new one",
			zap.String("cached_device_id", cachedID),
		)
		if delErr := i.cache.DeleteDeviceID(ctx); delErr != nil {
			i.logger.Warn("Failed to clear stale device cache",
				zap.Error(delErr),
			)
		}
	}

	return i.register(ctx)
}

// register 注册新设备并缓存其 id
func (i *Identity) register(ctx context.Context) (*models.Device, error) {
	now := time.Now()
	device := &models.Device{
		ID:              uuid.New().String(),
		Name:            generateDeviceName(now),
		Kind:            "camera",
		LocationText:    i.location.Text,
		Lat:             i.location.Lat,
		Lng:             i.location.Lng,
		Status:          models.DeviceStatusOnline,
		LastHeartbeatAt: &now,
	}

	if err := i.devices.CreateDevice(ctx, device); err != nil {
		return nil, fmt.Errorf("failed to register device: %w", err)
	}

	if err := i.cache.SetDeviceID(ctx, device.ID); err != nil {
		// 缓存写失败不影响本次会话，只是下次会话会重复注册
		i.logger.Warn("Failed to cache device id",
			zap.String("device_id", device.ID),
			zap.Error(err),
		)
	}

	i.logger.Info("Registered new ML camera device",
		zap.String("device_id", device.ID),
		zap.String("device_name", device.Name),
	)

	return device, nil
}

// Release 会话结束时将设备置为离线（尽力而为，失败只记日志）
func (i *Identity) Release(ctx context.Context, deviceID string) {
	if deviceID == "" {
		return
	}
	if err := i.devices.UpdateDeviceStatus(ctx, deviceID, models.DeviceStatusOffline); err != nil {
		i.logger.Warn("Failed to set device offline",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}
}

// generateDeviceName 生成人类可读的诊断用设备名
// 格式：ML-CAM-<UUID前6位大写>-<unix时间戳>
func generateDeviceName(now time.Time) string {
	short := strings.ToUpper(uuid.New().String()[:6])
	return fmt.Sprintf("ML-CAM-%s-%d", short, now.Unix())
}
