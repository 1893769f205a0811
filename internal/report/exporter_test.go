package report

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"resq-firewatch/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testSnapshot(t *testing.T, confidence float64) string {
	snapshot, err := json.Marshal(models.SensorSnapshot{
		Confidence: confidence,
		Threshold:  0.9,
		CapturedAt: time.Now(),
	})
	require.NoError(t, err)
	return string(snapshot)
}

func TestGenerate_HeaderOnly(t *testing.T) {
	content, err := Generate(nil)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, IncidentExportHeader, rows[0])
}

func TestGenerate_IncidentRows(t *testing.T) {
	detectedAt := time.Date(2026, 3, 15, 10, 30, 0, 0, time.UTC)
	ackBy := "operator-1"
	ackAt := detectedAt.Add(5 * time.Minute)

	content, err := Generate([]Row{
		{
			Incident: models.Incident{
				ID:              "incident-1",
				DeviceID:        "device-123",
				LocationText:    "USTP CDO Campus",
				Lat:             8.4857,
				Lng:             124.6565,
				DetectionMethod: models.DetectionMethodML,
				DetectedAt:      detectedAt,
				Snapshot:        testSnapshot(t, 0.95),
			},
			Alert: &models.Alert{
				ID:             "alert-1",
				IncidentID:     "incident-1",
				Status:         models.AlertStatusAcknowledged,
				CreatedAt:      detectedAt,
				AcknowledgedBy: &ackBy,
				AcknowledgedAt: &ackAt,
			},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	row := rows[1]
	assert.Equal(t, "incident-1", row[0])
	assert.Equal(t, "device-123", row[1])
	assert.Equal(t, "USTP CDO Campus", row[2])
	assert.Equal(t, models.DetectionMethodML, row[5])
	assert.Equal(t, "2026-03-15 10:30:00", row[7])
	assert.Equal(t, models.AlertStatusAcknowledged, row[8])
	assert.Equal(t, "operator-1", row[9])
}

// 缺失报警记录的事件仍然导出，报警列留空
func TestGenerate_MissingAlertLeavesColumnsEmpty(t *testing.T) {
	content, err := Generate([]Row{
		{
			Incident: models.Incident{
				ID:              "incident-1",
				DeviceID:        "device-123",
				LocationText:    "USTP CDO Campus",
				DetectionMethod: models.DetectionMethodML,
				DetectedAt:      time.Now(),
				Snapshot:        testSnapshot(t, 0.92),
			},
		},
	})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	row := rows[1]
	assert.Equal(t, "incident-1", row[0])
	if len(row) > 8 {
		assert.Empty(t, row[8])
	}
}
