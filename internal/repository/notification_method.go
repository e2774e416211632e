package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/models"
)

// NotificationMethodRepository 通知方式仓库
// 对评估核心而言通知方式只是投递目标，这里只读
type NotificationMethodRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewNotificationMethodRepository 创建通知方式仓库
func NewNotificationMethodRepository(db *sql.DB, logger *zap.Logger) *NotificationMethodRepository {
	return &NotificationMethodRepository{
		db:     db,
		logger: logger,
	}
}

// ListForAlertRule 取规则关联的启用通知方式
func (r *NotificationMethodRepository) ListForAlertRule(ctx context.Context, alertRuleID string) ([]models.NotificationMethod, error) {
	query := `
		SELECT nm.id, nm.owner_id, nm.title, nm.method, nm.value, nm.is_active
		FROM notification_methods nm
		JOIN alert_rule_notification_methods link ON link.notification_method_id = nm.id
		WHERE link.alert_rule_id = $1 AND nm.is_active = true
		ORDER BY nm.title
	`

	rows, err := r.db.QueryContext(ctx, query, alertRuleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query notification methods: %w", err)
	}
	defer rows.Close()

	var methods []models.NotificationMethod
	for rows.Next() {
		var nm models.NotificationMethod
		if err := rows.Scan(&nm.ID, &nm.OwnerID, &nm.Title, &nm.Method, &nm.Value, &nm.IsActive); err != nil {
			return nil, fmt.Errorf("failed to scan notification method: %w", err)
		}
		methods = append(methods, nm)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notification methods: %w", err)
	}

	return methods, nil
}
