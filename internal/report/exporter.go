package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"resq-firewatch/internal/models"
	"resq-firewatch/internal/repository"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// IncidentExportHeader 事件导出表头
var IncidentExportHeader = []string{
	"Incident ID",
	"Device ID",
	"Location",
	"Lat",
	"Lng",
	"Detection Method",
	"Confidence",
	"Detected At",
	"Alert Status",
	"Acknowledged By",
	"Acknowledged At",
}

const sheetName = "Fire Incidents"

// Exporter 火情事件 Excel 导出器
type Exporter struct {
	incidents *repository.IncidentRepository
	alerts    *repository.AlertRepository
	logger    *zap.Logger
}

// NewExporter 创建导出器
func NewExporter(incidents *repository.IncidentRepository, alerts *repository.AlertRepository, logger *zap.Logger) *Exporter {
	return &Exporter{
		incidents: incidents,
		alerts:    alerts,
		logger:    logger,
	}
}

// Export 按过滤条件导出火情事件为 Excel 文件内容
// 单个事件查不到报警记录时留空对应列，不中断整体导出
func (e *Exporter) Export(ctx context.Context, filters repository.IncidentFilters) ([]byte, error) {
	incidents, err := e.incidents.ListIncidents(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}

	rows := make([]Row, 0, len(incidents))
	for _, incident := range incidents {
		row := Row{Incident: incident}

		alert, err := e.alerts.GetAlertByIncident(ctx, incident.ID)
		if err != nil {
			e.logger.Warn("Failed to get alert for incident, exporting without alert columns",
				zap.String("incident_id", incident.ID),
				zap.Error(err),
			)
		} else {
			row.Alert = alert
		}

		rows = append(rows, row)
	}

	return Generate(rows)
}

// Row 导出的一行：事件及其（可能缺失的）报警
type Row struct {
	Incident models.Incident
	Alert    *models.Alert
}

// Generate 生成 Excel 文件内容
func Generate(rows []Row) ([]byte, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#FFE6E6"},
			Pattern: 1,
		},
		Alignment: &excelize.Alignment{
			Horizontal: "center",
			Vertical:   "center",
		},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create header style: %w", err)
	}

	for col, header := range IncidentExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert coordinates: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to set header style: %w", err)
		}
	}

	columnWidths := []float64{
		38, // Incident ID
		38, // Device ID
		25, // Location
		12, // Lat
		12, // Lng
		18, // Detection Method
		12, // Confidence
		20, // Detected At
		14, // Alert Status
		20, // Acknowledged By
		20, // Acknowledged At
	}
	for i := range IncidentExportHeader {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to convert column number: %w", err)
		}
		if i < len(columnWidths) {
			if err := f.SetColWidth(sheetName, col, col, columnWidths[i]); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set column width: %w", err)
			}
		}
	}

	for rowIdx, row := range rows {
		values := rowValues(row)
		for colIdx, value := range values {
			if value == nil || value == "" {
				continue
			}
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to set cell %s: %w", cell, err)
			}
		}
	}

	// 冻结表头行
	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write to buffer: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close file: %w", err)
	}

	return buf.Bytes(), nil
}

// rowValues 按表头顺序展开一行的值
func rowValues(row Row) []interface{} {
	values := []interface{}{
		row.Incident.ID,
		row.Incident.DeviceID,
		row.Incident.LocationText,
		row.Incident.Lat,
		row.Incident.Lng,
		row.Incident.DetectionMethod,
		snapshotConfidence(row.Incident.Snapshot),
		row.Incident.DetectedAt.Format("2006-01-02 15:04:05"),
	}

	if row.Alert != nil {
		values = append(values, row.Alert.Status)
		if row.Alert.AcknowledgedBy != nil {
			values = append(values, *row.Alert.AcknowledgedBy)
		} else {
			values = append(values, "")
		}
		if row.Alert.AcknowledgedAt != nil {
			values = append(values, row.Alert.AcknowledgedAt.Format("2006-01-02 15:04:05"))
		} else {
			values = append(values, "")
		}
	} else {
		values = append(values, "", "", "")
	}

	return values
}

// snapshotConfidence 从传感器快照 JSON 中提取置信度；解析失败留空
func snapshotConfidence(snapshot string) interface{} {
	if snapshot == "" {
		return ""
	}
	var parsed models.SensorSnapshot
	if err := json.Unmarshal([]byte(snapshot), &parsed); err != nil {
		return ""
	}
	return parsed.Confidence
}
