package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/conditions"
	"github.com/PADAS/er-server-sub001/internal/models"
	"github.com/PADAS/er-server-sub001/internal/schedule"
	"github.com/PADAS/er-server-sub001/internal/variables"
)

// EventTypeLister 规则范围内事件类型加载接口
type EventTypeLister interface {
	ListByValues(ctx context.Context, values []string) ([]models.EventType, error)
}

// AlertRuleValidator 规则保存时的校验器
// 排期/条件/schema 的校验错误原样抛给调用方，让规则作者立刻得到反馈，
// 而不是保存成功后在评估时静默不触发
type AlertRuleValidator struct {
	eventTypeRepo EventTypeLister
	projector     *variables.Projector
	logger        *zap.Logger
}

// NewAlertRuleValidator 创建校验器
func NewAlertRuleValidator(eventTypeRepo EventTypeLister, projector *variables.Projector, logger *zap.Logger) *AlertRuleValidator {
	return &AlertRuleValidator{
		eventTypeRepo: eventTypeRepo,
		projector:     projector,
		logger:        logger,
	}
}

// ValidateAlertRule 校验一条规则
// 1) 排期文档合法；2) 条件树合法；3) 条件引用的变量在规则范围的变量集内
func (v *AlertRuleValidator) ValidateAlertRule(ctx context.Context, rule *models.AlertRule) error {
	if _, err := schedule.NewOneWeekSchedule(rule.Schedule); err != nil {
		return err
	}

	tree, err := conditions.ParseTree(rule.Conditions)
	if err != nil {
		return err
	}
	if tree.IsEmpty() {
		return nil
	}

	// 范围为空（通配）时只有内置变量可用
	var eventTypes []models.EventType
	if len(rule.EventTypes) > 0 {
		eventTypes, err = v.eventTypeRepo.ListByValues(ctx, rule.EventTypes)
		if err != nil {
			return fmt.Errorf("failed to load event types for rule scope: %w", err)
		}
		if len(eventTypes) != len(rule.EventTypes) {
			return fmt.Errorf("rule references unknown event types")
		}
	}

	vs, err := v.projector.UnionVariableSet(ctx, eventTypes)
	if err != nil {
		return err
	}

	return tree.Validate(vs.Names())
}
