package models

import "time"

// 设备状态
const (
	DeviceStatusOnline      = "online"
	DeviceStatusOffline     = "offline"
	DeviceStatusMaintenance = "maintenance"
)

// 报警状态
const (
	AlertStatusNew          = "new"
	AlertStatusAcknowledged = "acknowledged"
)

// DetectionMethodML 本检测管线写入 incident 的固定标识
const DetectionMethodML = "YOLOv8"

// Device 监控设备（对应 devices 表）
type Device struct {
	ID              string     `json:"id" db:"id"`
	Name            string     `json:"name" db:"name"` // 生成格式：ML-CAM-<6位HEX>-<unix时间戳>
	Kind            string     `json:"type" db:"type"` // 本管线固定为 "camera"
	LocationText    string     `json:"location_text" db:"location_text"`
	Lat             float64    `json:"lat" db:"lat"`
	Lng             float64    `json:"lng" db:"lng"`
	Status          string     `json:"status" db:"status"` // online, offline, maintenance
	LastHeartbeatAt *time.Time `json:"last_heartbeat,omitempty" db:"last_heartbeat"`
}

// Incident 火情事件（对应 incidents 表）
type Incident struct {
	ID              string    `json:"id" db:"id"`
	DeviceID        string    `json:"device_id" db:"device_id"`
	LocationText    string    `json:"location_text" db:"location_text"`
	Lat             float64   `json:"lat" db:"lat"`
	Lng             float64   `json:"lng" db:"lng"`
	DetectionMethod string    `json:"detection_method" db:"detection_method"`
	DetectedAt      time.Time `json:"detected_at" db:"detected_at"`
	Snapshot        string    `json:"sensor_snapshot" db:"sensor_snapshot"` // JSONB
}

// Alert 报警记录（对应 alerts 表，与 incident 1:1）
type Alert struct {
	ID             string     `json:"id" db:"id"`
	IncidentID     string     `json:"incident_id" db:"incident_id"`
	Status         string     `json:"status" db:"status"` // new, acknowledged
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty" db:"acknowledged_at"`
	AcknowledgedBy *string    `json:"acknowledged_by,omitempty" db:"acknowledged_by"`
}
