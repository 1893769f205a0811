package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"resq-firewatch/internal/models"

	"go.uber.org/zap"
)

// IncidentRepository 火情事件仓库（对应 incidents 表）
type IncidentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewIncidentRepository 创建火情事件仓库
func NewIncidentRepository(db *sql.DB, logger *zap.Logger) *IncidentRepository {
	return &IncidentRepository{
		db:     db,
		logger: logger,
	}
}

// IncidentFilters 事件查询过滤条件
type IncidentFilters struct {
	StartTime *time.Time // detected_at >= StartTime
	EndTime   *time.Time // detected_at <= EndTime
	DeviceID  *string
}

// CreateIncident 创建火情事件
func (r *IncidentRepository) CreateIncident(ctx context.Context, incident *models.Incident) error {
	if incident == nil {
		return fmt.Errorf("incident is required")
	}
	if incident.ID == "" {
		return fmt.Errorf("incident.id is required")
	}
	if incident.DeviceID == "" {
		return fmt.Errorf("incident.device_id is required")
	}

	query := `
		INSERT INTO incidents (
			id,
			device_id,
			location_text,
			lat,
			lng,
			detection_method,
			detected_at,
			sensor_snapshot
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		incident.ID,
		incident.DeviceID,
		incident.LocationText,
		incident.Lat,
		incident.Lng,
		incident.DetectionMethod,
		incident.DetectedAt,
		incident.Snapshot,
	)

	if err != nil {
		return fmt.Errorf("failed to create incident: %w", err)
	}

	return nil
}

// GetIncident 根据 id 获取事件
func (r *IncidentRepository) GetIncident(ctx context.Context, incidentID string) (*models.Incident, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id is required")
	}

	query := `
		SELECT
			id,
			device_id,
			location_text,
			lat,
			lng,
			detection_method,
			detected_at,
			sensor_snapshot
		FROM incidents
		WHERE id = $1
	`

	var incident models.Incident
	var snapshot []byte

	err := r.db.QueryRowContext(ctx, query, incidentID).Scan(
		&incident.ID,
		&incident.DeviceID,
		&incident.LocationText,
		&incident.Lat,
		&incident.Lng,
		&incident.DetectionMethod,
		&incident.DetectedAt,
		&snapshot,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("incident not found: %s", incidentID)
		}
		return nil, fmt.Errorf("failed to get incident: %w", err)
	}

	if len(snapshot) > 0 {
		incident.Snapshot = string(snapshot)
	} else {
		incident.Snapshot = "{}"
	}

	return &incident, nil
}

// ListIncidents 按过滤条件列出事件（按检测时间倒序）
func (r *IncidentRepository) ListIncidents(ctx context.Context, filters IncidentFilters) ([]models.Incident, error) {
	whereParts := []string{}
	args := []interface{}{}
	argN := 1

	if filters.StartTime != nil {
		whereParts = append(whereParts, fmt.Sprintf("detected_at >= $%d", argN))
		args = append(args, *filters.StartTime)
		argN++
	}
	if filters.EndTime != nil {
		whereParts = append(whereParts, fmt.Sprintf("detected_at <= $%d", argN))
		args = append(args, *filters.EndTime)
		argN++
	}
	if filters.DeviceID != nil {
		whereParts = append(whereParts, fmt.Sprintf("device_id = $%d", argN))
		args = append(args, *filters.DeviceID)
		argN++
	}

	whereClause := ""
	if len(whereParts) > 0 {
		whereClause = "WHERE " + strings.Join(whereParts, " AND ")
	}

	query := fmt.Sprintf(`
		SELECT
			id,
			device_id,
			location_text,
			lat,
			lng,
			detection_method,
			detected_at,
			sensor_snapshot
		FROM incidents
		%s
		ORDER BY detected_at DESC
	`, whereClause)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	defer rows.Close()

	var incidents []models.Incident
	for rows.Next() {
		var incident models.Incident
		var snapshot []byte

		if err := rows.Scan(
			&incident.ID,
			&incident.DeviceID,
			&incident.LocationText,
			&incident.Lat,
			&incident.Lng,
			&incident.DetectionMethod,
			&incident.DetectedAt,
			&snapshot,
		); err != nil {
			return nil, fmt.Errorf("failed to scan incident: %w", err)
		}

		if len(snapshot) > 0 {
			incident.Snapshot = string(snapshot)
		} else {
			incident.Snapshot = "{}"
		}

		incidents = append(incidents, incident)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate incidents: %w", err)
	}

	return incidents, nil
}
