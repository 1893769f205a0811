package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"resq-firewatch/internal/models"

	"go.uber.org/zap"
)

// ErrDeviceNotFound 设备不存在（区别于数据库 I/O 失败，缓存失效判定依赖此错误）
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository 设备仓库（对应 devices 表）
type DeviceRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *sql.DB, logger *zap.Logger) *DeviceRepository {
	return &DeviceRepository{
		db:     db,
		logger: logger,
	}
}

// GetDevice 根据 id 获取设备
func (r *DeviceRepository) GetDevice(ctx context.Context, deviceID string) (*models.Device, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("device_id is required")
	}

	query := `
		SELECT
			id,
			name,
			type,
			location_text,
			lat,
			lng,
			status,
			last_heartbeat
		FROM devices
		WHERE id = $1
	`

	var device models.Device
	var heartbeat sql.NullTime

	err := r.db.QueryRowContext(ctx, query, deviceID).Scan(
		&device.ID,
		&device.Name,
		&device.Kind,
		&device.LocationText,
		&device.Lat,
		&device.Lng,
		&device.Status,
		&heartbeat,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	if heartbeat.Valid {
		device.LastHeartbeatAt = &heartbeat.Time
	}

	return &device, nil
}

// CreateDevice 创建设备记录
func (r *DeviceRepository) CreateDevice(ctx context.Context, device *models.Device) error {
	if device == nil {
		return fmt.Errorf("device is required")
	}
	if device.ID == "" {
		return fmt.Errorf("device.id is required")
	}

	query := `
		INSERT INTO devices (
			id,
			name,
			type,
			location_text,
			lat,
			lng,
			status,
			last_heartbeat
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		device.ID,
		device.Name,
		device.Kind,
		device.LocationText,
		device.Lat,
		device.Lng,
		device.Status,
		device.LastHeartbeatAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create device: %w", err)
	}

	return nil
}

// UpdateDeviceStatus 更新设备状态并刷新心跳时间
func (r *DeviceRepository) UpdateDeviceStatus(ctx context.Context, deviceID, status string) error {
	if deviceID == "" {
		return fmt.Errorf("device_id is required")
	}
	if status == "" {
		return fmt.Errorf("status is required")
	}

	query := `
		UPDATE devices
		SET status = $2, last_heartbeat = $3
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, deviceID, status, time.Now())
	if err != nil {
		return fmt.Errorf("failed to update device status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("device not found: %s", deviceID)
	}

	return nil
}

// ListCameras 列出所有摄像头设备
func (r *DeviceRepository) ListCameras(ctx context.Context) ([]models.Device, error) {
	query := `
		SELECT
			id,
			name,
			type,
			location_text,
			lat,
			lng,
			status,
			last_heartbeat
		FROM devices
		WHERE type = 'camera'
		ORDER BY name
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list cameras: %w", err)
	}
	defer rows.Close()

	var devices []models.Device
	for rows.Next() {
		var device models.Device
		var heartbeat sql.NullTime

		if err := rows.Scan(
			&device.ID,
			&device.Name,
			&device.Kind,
			&device.LocationText,
			&device.Lat,
			&device.Lng,
			&device.Status,
			&heartbeat,
		); err != nil {
			return nil, fmt.Errorf("failed to scan device: %w", err)
		}

		if heartbeat.Valid {
			device.LastHeartbeatAt = &heartbeat.Time
		}

		devices = append(devices, device)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate devices: %w", err)
	}

	return devices, nil
}
