package notifier

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"resq-firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakePublisher 记录发布的消息
type fakePublisher struct {
	topic   string
	qos     byte
	payload []byte
	err     error
}

func (p *fakePublisher) Publish(topic string, qos byte, retained bool, payload []byte) error {
	p.topic = topic
	p.qos = qos
	p.payload = payload
	return p.err
}

func testIncidentAndAlert() (*models.Incident, *models.Alert) {
	now := time.Now()
	incident := &models.Incident{
		ID:              "incident-1",
		DeviceID:        "device-123",
		LocationText:    "USTP CDO Campus",
		Lat:             8.4857,
		Lng:             124.6565,
		DetectionMethod: models.DetectionMethodML,
		DetectedAt:      now,
	}
	alert := &models.Alert{
		ID:         "alert-1",
		IncidentID: incident.ID,
		Status:     models.AlertStatusNew,
		CreatedAt:  now,
	}
	return incident, alert
}

func TestMQTTNotifier_PublishesToDeviceTopic(t *testing.T) {
	publisher := &fakePublisher{}
	notifier := NewMQTTNotifier(publisher, "resq/alerts", 1, zap.NewNop())

	incident, alert := testIncidentAndAlert()
	err := notifier.PublishFireAlert(incident, alert)

	require.NoError(t, err)
	assert.Equal(t, "resq/alerts/device-123", publisher.topic)
	assert.Equal(t, byte(1), publisher.qos)

	var message AlertMessage
	require.NoError(t, json.Unmarshal(publisher.payload, &message))
	assert.Equal(t, "alert-1", message.AlertID)
	assert.Equal(t, "incident-1", message.IncidentID)
	assert.Equal(t, "device-123", message.DeviceID)
	assert.Equal(t, models.DetectionMethodML, message.Method)
}

func TestMQTTNotifier_PublishFailure(t *testing.T) {
	publisher := &fakePublisher{err: errors.New("broker unreachable")}
	notifier := NewMQTTNotifier(publisher, "resq/alerts", 1, zap.NewNop())

	incident, alert := testIncidentAndAlert()
	err := notifier.PublishFireAlert(incident, alert)

	assert.Error(t, err)
}
