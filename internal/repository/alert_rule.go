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

// AlertRuleRepository 报警规则仓库
type AlertRuleRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAlertRuleRepository 创建报警规则仓库
func NewAlertRuleRepository(db *sql.DB, logger *zap.Logger) *AlertRuleRepository {
	return &AlertRuleRepository{
		db:     db,
		logger: logger,
	}
}

// ListActiveForEventType 列出适用于指定事件类型的启用规则
// event_types 为空数组的规则适用于所有类型；结果按 ordernum, title 排序，
// 该顺序即评估顺序
func (r *AlertRuleRepository) ListActiveForEventType(ctx context.Context, eventType string) ([]models.AlertRule, error) {
	query := `
		SELECT id, owner_id, title, ordernum, is_active, event_types, conditions, schedule
		FROM alert_rules
		WHERE is_active = true
		  AND (event_types = '{}' OR $1 = ANY(event_types))
		ORDER BY ordernum, title
	`

	rows, err := r.db.QueryContext(ctx, query, eventType)
	if err != nil {
		return nil, fmt.Errorf("failed to query alert rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AlertRule
	for rows.Next() {
		rule, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate alert rules: %w", err)
	}

	return rules, nil
}

// GetAlertRule 取单条规则
func (r *AlertRuleRepository) GetAlertRule(ctx context.Context, id string) (*models.AlertRule, error) {
	query := `
		SELECT id, owner_id, title, ordernum, is_active, event_types, conditions, schedule
		FROM alert_rules
		WHERE id = $1
	`

	row := r.db.QueryRowContext(ctx, query, id)
	rule, err := scanAlertRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert rule %q not found", id)
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// scanner 兼容 *sql.Row 和 *sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAlertRule(row scanner) (*models.AlertRule, error) {
	var rule models.AlertRule
	var eventTypes pq.StringArray
	var conditionsRaw, scheduleRaw []byte

	err := row.Scan(
		&rule.ID,
		&rule.OwnerID,
		&rule.Title,
		&rule.OrderNum,
		&rule.IsActive,
		&eventTypes,
		&conditionsRaw,
		&scheduleRaw,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan alert rule: %w", err)
	}

	rule.EventTypes = eventTypes
	rule.Conditions = json.RawMessage(conditionsRaw)
	rule.Schedule = json.RawMessage(scheduleRaw)
	return &rule, nil
}
