package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"resq-firewatch/internal/models"

	"go.uber.org/zap"
)

// AlertRepository 报警仓库（对应 alerts 表，与 incident 1:1）
type AlertRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRepository 创建报警仓库
func NewAlertRepository(db *sql.DB, logger *zap.Logger) *AlertRepository {
	return &AlertRepository{
		db:     db,
		logger: logger,
	}
}

// CreateAlert 为事件创建报警（必须在 incident 落库之后调用）
func (r *AlertRepository) CreateAlert(ctx context.Context, alert *models.Alert) error {
	if alert == nil {
		return fmt.Errorf("alert is required")
	}
	if alert.ID == "" {
		return fmt.Errorf("alert.id is required")
	}
	if alert.IncidentID == "" {
		return fmt.Errorf("alert.incident_id is required")
	}

	query := `
		INSERT INTO alerts (
			id,
			incident_id,
			status,
			created_at
		) VALUES (
			$1, $2, $3, $4
		)
	`

	_, err := r.db.ExecContext(ctx,
		query,
		alert.ID,
		alert.IncidentID,
		alert.Status,
		alert.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create alert: %w", err)
	}

	return nil
}

// AcknowledgeAlert 确认报警
func (r *AlertRepository) AcknowledgeAlert(ctx context.Context, alertID, userID string) error {
	if alertID == "" {
		return fmt.Errorf("alert_id is required")
	}
	if userID == "" {
		return fmt.Errorf("user_id is required")
	}

	query := `
		UPDATE alerts
		SET status = $2, acknowledged_by = $3, acknowledged_at = $4
		WHERE id = $1 AND status = 'new'
	`

	result, err := r.db.ExecContext(ctx, query, alertID, models.AlertStatusAcknowledged, userID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to acknowledge alert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("alert not found or already acknowledged: %s", alertID)
	}

	return nil
}

// ListAlertsByStatus 按状态列出报警（按创建时间倒序）
func (r *AlertRepository) ListAlertsByStatus(ctx context.Context, status string) ([]models.Alert, error) {
	if status == "" {
		return nil, fmt.Errorf("status is required")
	}

	query := `
		SELECT
			id,
			incident_id,
			status,
			created_at,
			acknowledged_at,
			acknowledged_by
		FROM alerts
		WHERE status = $1
		ORDER BY created_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list alerts: %w", err)
	}
	defer rows.Close()

	var alerts []models.Alert
	for rows.Next() {
		var alert models.Alert
		var ackAt sql.NullTime
		var ackBy sql.NullString

		if err := rows.Scan(
			&alert.ID,
			&alert.IncidentID,
			&alert.Status,
			&alert.CreatedAt,
			&ackAt,
			&ackBy,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}

		if ackAt.Valid {
			alert.AcknowledgedAt = &ackAt.Time
		}
		if ackBy.Valid {
			alert.AcknowledgedBy = &ackBy.String
		}

		alerts = append(alerts, alert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alerts: %w", err)
	}

	return alerts, nil
}

// GetAlertByIncident 根据 incident_id 获取报警
func (r *AlertRepository) GetAlertByIncident(ctx context.Context, incidentID string) (*models.Alert, error) {
	if incidentID == "" {
		return nil, fmt.Errorf("incident_id is required")
	}

	query := `
		SELECT
			id,
			incident_id,
			status,
			created_at,
			acknowledged_at,
			acknowledged_by
		FROM alerts
		WHERE incident_id = $1
	`

	var alert models.Alert
	var ackAt sql.NullTime
	var ackBy sql.NullString

	err := r.db.QueryRowContext(ctx, query, incidentID).Scan(
		&alert.ID,
		&alert.IncidentID,
		&alert.Status,
		&alert.CreatedAt,
		&ackAt,
		&ackBy,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("alert not found for incident: %s", incidentID)
		}
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}

	if ackAt.Valid {
		alert.AcknowledgedAt = &ackAt.Time
	}
	if ackBy.Valid {
		alert.AcknowledgedBy = &ackBy.String
	}

	return &alert, nil
}
