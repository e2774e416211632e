package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// EventTypeRepository 事件类型仓库
type EventTypeRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventTypeRepository 创建事件类型仓库
func NewEventTypeRepository(db *sql.DB, logger *zap.Logger) *EventTypeRepository {
	return &EventTypeRepository{
		db:     db,
		logger: logger,
	}
}

// GetByValue 按标识取事件类型
func (r *EventTypeRepository) GetByValue(ctx context.Context, value string) (*models.EventType, error) {
	query := `
		SELECT id, value, display, schema
		FROM event_types
		WHERE value = $1
	`

	var et models.EventType
	err := r.db.QueryRowContext(ctx, query, value).Scan(
		&et.ID,
		&et.Value,
		&et.Display,
		&et.Schema,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event type %q not found", value)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event type: %w", err)
	}

	return &et, nil
}

// ListByValues 按标识列表取事件类型（用于规则范围的变量集构建）
func (r *EventTypeRepository) ListByValues(ctx context.Context, values []string) ([]models.EventType, error) {
	query := `
		SELECT id, value, display, schema
		FROM event_types
		WHERE value = ANY($1)
		ORDER BY value
	`

	rows, err := r.db.QueryContext(ctx, query, pq.Array(values))
	if err != nil {
		return nil, fmt.Errorf("failed to query event types: %w", err)
	}
	defer rows.Close()

	var eventTypes []models.EventType
	for rows.Next() {
		var et models.EventType
		if err := rows.Scan(&et.ID, &et.Value, &et.Display, &et.Schema); err != nil {
			return nil, fmt.Errorf("failed to scan event type: %w", err)
		}
		eventTypes = append(eventTypes, et)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate event types: %w", err)
	}

	return eventTypes, nil
}
