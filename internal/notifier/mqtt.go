package notifier

import (
	"encoding/json"
	"fmt"
	"time"

	"resq-firewatch/internal/models"

	"go.uber.org/zap"
)

// Publisher MQTT发布操作（由 pkg/mqttclient.Client 实现）
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AlertMessage 推送到 MQTT 的报警消息体
type AlertMessage struct {
	AlertID      string    `json:"alert_id"`
	IncidentID   string    `json:"incident_id"`
	DeviceID     string    `json:"device_id"`
	LocationText string    `json:"location_text"`
	Lat          float64   `json:"lat"`
	Lng          float64   `json:"lng"`
	Method       string    `json:"detection_method"`
	DetectedAt   time.Time `json:"detected_at"`
	CreatedAt    time.Time `json:"created_at"`
}

// MQTTNotifier 将确认的火情报警推送到 MQTT broker
// 主题格式：<topicPrefix>/<device_id>
type MQTTNotifier struct {
	publisher   Publisher
	topicPrefix string
	qos         byte
	logger      *zap.Logger
}

// NewMQTTNotifier 创建MQTT报警推送器
func NewMQTTNotifier(publisher Publisher, topicPrefix string, qos byte, logger *zap.Logger) *MQTTNotifier {
	return &MQTTNotifier{
		publisher:   publisher,
		topicPrefix: topicPrefix,
		qos:         qos,
		logger:      logger,
	}
}

// PublishFireAlert 推送一条报警消息
func (n *MQTTNotifier) PublishFireAlert(incident *models.Incident, alert *models.Alert) error {
	message := AlertMessage{
		AlertID:      alert.ID,
		IncidentID:   incident.ID,
		DeviceID:     incident.DeviceID,
		LocationText: incident.LocationText,
		Lat:          incident.Lat,
		Lng:          incident.Lng,
		Method:       incident.DetectionMethod,
		DetectedAt:   incident.DetectedAt,
		CreatedAt:    alert.CreatedAt,
	}

	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal alert message: %w", err)
	}

	topic := fmt.Sprintf("%s/%s", n.topicPrefix, incident.DeviceID)
	if err := n.publisher.Publish(topic, n.qos, false, payload); err != nil {
		return fmt.Errorf("failed to publish alert: %w", err)
	}

	n.logger.Info("Published fire alert",
		zap.String("topic", topic),
		zap.String("alert_id", alert.ID),
		zap.String("incident_id", incident.ID),
	)

	return nil
}
