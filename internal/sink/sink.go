package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"resq-firewatch/internal/engine"
	"resq-firewatch/internal/models"
	"resq-firewatch/internal/registry"
	"resq-firewatch/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrAlertCreationFailed 部分失败：incident 已落库但 alert 创建失败
// 调用方拿到的 outcome 中 IncidentID 有值、AlertID 为空，事件记录不会丢失
var ErrAlertCreationFailed = errors.New("alert creation failed after incident was created")

// Notifier 报警通知接口（MQTT 推送等，可选）
type Notifier interface {
	PublishFireAlert(incident *models.Incident, alert *models.Alert) error
}

// RegistrySink 基于 PostgreSQL 的事件/报警持久化实现
// 保证顺序：incident 落库成功（或确认失败）之后才尝试创建 alert
type RegistrySink struct {
	devices   *repository.DeviceRepository
	incidents *repository.IncidentRepository
	alerts    *repository.AlertRepository
	notifier  Notifier // nil 表示不推送
	location  registry.DefaultLocation
	logger    *zap.Logger
}

// NewRegistrySink 创建持久化 sink
func NewRegistrySink(
	devices *repository.DeviceRepository,
	incidents *repository.IncidentRepository,
	alerts *repository.AlertRepository,
	notifier Notifier,
	location registry.DefaultLocation,
	logger *zap.Logger,
) *RegistrySink {
	return &RegistrySink{
		devices:   devices,
		incidents: incidents,
		alerts:    alerts,
		notifier:  notifier,
		location:  location,
		logger:    logger,
	}
}

// CreateFireAlert 为确认的火情创建 incident + alert
func (s *RegistrySink) CreateFireAlert(ctx context.Context, deviceID string, result *models.ClassificationResult) (*engine.FireAlertOutcome, error) {
	now := time.Now()

	// 取设备位置；查询失败时退回默认位置，不阻塞报警落库
	locationText := s.location.Text
	lat, lng := s.location.Lat, s.location.Lng
	if device, err := s.devices.GetDevice(ctx, deviceID); err == nil {
		locationText = device.LocationText
		lat, lng = device.Lat, device.Lng
	} else {
		s.logger.Warn("Failed to get device location, using default",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
	}

	snapshot, err := json.Marshal(models.SensorSnapshot{
		Confidence: result.HighestConfidence,
		Threshold:  result.Threshold,
		Detections: result.Detections,
		CapturedAt: result.CapturedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sensor snapshot: %w", err)
	}

	incident := &models.Incident{
		ID:              uuid.New().String(),
		DeviceID:        deviceID,
		LocationText:    locationText,
		Lat:             lat,
		Lng:             lng,
		DetectionMethod: models.DetectionMethodML,
		DetectedAt:      now,
		Snapshot:        string(snapshot),
	}

	if err := s.incidents.CreateIncident(ctx, incident); err != nil {
		return nil, fmt.Errorf("failed to create incident: %w", err)
	}

	alert := &models.Alert{
		ID:         uuid.New().String(),
		IncidentID: incident.ID,
		Status:     models.AlertStatusNew,
		CreatedAt:  now,
	}

	if err := s.alerts.CreateAlert(ctx, alert); err != nil {
		// 部分失败：incident 已存在，向上暴露 incident id 而不是整体失败
		return &engine.FireAlertOutcome{IncidentID: incident.ID},
			fmt.Errorf("%w: %v", ErrAlertCreationFailed, err)
	}

	// 推送是尽力而为，失败不影响已落库的报警
	if s.notifier != nil {
		if err := s.notifier.PublishFireAlert(incident, alert); err != nil {
			s.logger.Warn("Failed to publish fire alert notification",
				zap.String("incident_id", incident.ID),
				zap.Error(err),
			)
		}
	}

	return &engine.FireAlertOutcome{
		IncidentID: incident.ID,
		AlertID:    alert.ID,
	}, nil
}
