package repository

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/variables"
)

// ChoicesRepository 参考数据仓库（动态选项表、静态选项表、对象分组）
// 为 schema 的 query/table 替换字段提供选项解析，只读
type ChoicesRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChoicesRepository 创建参考数据仓库
func NewChoicesRepository(db *sql.DB, logger *zap.Logger) *ChoicesRepository {
	return &ChoicesRepository{
		db:     db,
		logger: logger,
	}
}

// ResolveQueryChoices 解析 query 类替换字段的选项（动态条件查询的物化结果）
func (r *ChoicesRepository) ResolveQueryChoices(ctx context.Context, choiceID string) ([]variables.Option, error) {
	query := `
		SELECT value, display
		FROM dynamic_choices
		WHERE choice_id = $1
		ORDER BY display
	`
	return r.queryOptions(ctx, query, choiceID)
}

// ResolveTableChoices 解析 table 类替换字段的选项（静态选项表）
func (r *ChoicesRepository) ResolveTableChoices(ctx context.Context, tableID string) ([]variables.Option, error) {
	query := `
		SELECT value, display
		FROM choices
		WHERE field = $1
		ORDER BY display
	`
	return r.queryOptions(ctx, query, tableID)
}

// ResolveSubjectGroups 所有对象分组（subject_group 内置变量的选项）
func (r *ChoicesRepository) ResolveSubjectGroups(ctx context.Context) ([]variables.Option, error) {
	query := `
		SELECT id, name
		FROM subject_groups
		ORDER BY name
	`
	return r.queryOptions(ctx, query)
}

func (r *ChoicesRepository) queryOptions(ctx context.Context, query string, args ...interface{}) ([]variables.Option, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query choices: %w", err)
	}
	defer rows.Close()

	var options []variables.Option
	for rows.Next() {
		var opt variables.Option
		if err := rows.Scan(&opt.Value, &opt.Display); err != nil {
			return nil, fmt.Errorf("failed to scan choice: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate choices: %w", err)
	}

	return options, nil
}
