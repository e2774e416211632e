package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// EventRepository 事件仓库
type EventRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewEventRepository 创建事件仓库
func NewEventRepository(db *sql.DB, logger *zap.Logger) *EventRepository {
	return &EventRepository{
		db:     db,
		logger: logger,
	}
}

// GetEvent 取单个事件，含自定义字段与最近修订动作（用于状态推断）
func (r *EventRepository) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	query := `
		SELECT
			e.id, e.title, e.message, e.state, e.priority,
			e.event_type, e.event_time, e.reported_by,
			e.longitude, e.latitude, e.event_details,
			COALESCE((
				SELECT rev.action FROM revisions rev
				WHERE rev.entity_kind = 'event' AND rev.entity_id = e.id
				ORDER BY rev.sequence DESC
				LIMIT 1
			), '') AS latest_revision_action
		FROM events e
		WHERE e.id = $1
	`

	var event models.Event
	var message, reportedBy sql.NullString
	var longitude, latitude sql.NullFloat64
	var detailsRaw []byte

	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&event.ID,
		&event.Title,
		&message,
		&event.State,
		&event.Priority,
		&event.EventType,
		&event.EventTime,
		&reportedBy,
		&longitude,
		&latitude,
		&detailsRaw,
		&event.LatestRevisionAction,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("event %q not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query event: %w", err)
	}

	event.Message = message.String
	event.ReportedBy = reportedBy.String
	if longitude.Valid && latitude.Valid {
		event.Location = &models.Location{
			Longitude: longitude.Float64,
			Latitude:  latitude.Float64,
		}
	}
	if len(detailsRaw) > 0 {
		if err := json.Unmarshal(detailsRaw, &event.Details); err != nil {
			return nil, fmt.Errorf("failed to parse event details: %w", err)
		}
	}

	subjects, err := r.relatedSubjects(ctx, id)
	if err != nil {
		return nil, err
	}
	event.RelatedSubjects = subjects

	return &event, nil
}

// relatedSubjects 事件关联对象及其分组（subject_group 变量的取值来源）
func (r *EventRepository) relatedSubjects(ctx context.Context, eventID string) ([]models.RelatedSubject, error) {
	query := `
		SELECT s.id, s.name,
			COALESCE(array_agg(m.group_id) FILTER (WHERE m.group_id IS NOT NULL), '{}')
		FROM event_related_subjects ers
		JOIN subjects s ON s.id = ers.subject_id
		LEFT JOIN subject_group_members m ON m.subject_id = s.id
		WHERE ers.event_id = $1
		GROUP BY s.id, s.name
		ORDER BY s.name
	`

	rows, err := r.db.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to query related subjects: %w", err)
	}
	defer rows.Close()

	var subjects []models.RelatedSubject
	for rows.Next() {
		var subject models.RelatedSubject
		var groupIDs pq.StringArray
		if err := rows.Scan(&subject.ID, &subject.Name, &groupIDs); err != nil {
			return nil, fmt.Errorf("failed to scan related subject: %w", err)
		}
		subject.GroupIDs = groupIDs
		subjects = append(subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate related subjects: %w", err)
	}

	return subjects, nil
}
