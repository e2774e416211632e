package evaluator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/conditions"
	"github.com/PADAS/er-server-sub001/internal/models"
	"github.com/PADAS/er-server-sub001/internal/schedule"
	"github.com/PADAS/er-server-sub001/internal/variables"
)

// Match 一条命中的规则
type Match struct {
	RuleID    string `json:"alert_rule_id"`
	RuleTitle string `json:"alert_rule_title,omitempty"`
	EventID   string `json:"event_id"`
}

// RuleError 单条规则评估失败
// 失败被逐规则隔离：一条损坏/过期的规则不能中断同一事件其余规则的评估
type RuleError struct {
	RuleID string
	Err    error
}

func (e *RuleError) Error() string {
	return "rule " + e.RuleID + ": " + e.Err.Error()
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// cachedVariableSet 按事件类型缓存的变量集，schema 文本变化即失效
type cachedVariableSet struct {
	schema string
	vs     *variables.VariableSet
}

// Evaluator 报警规则匹配器
type Evaluator struct {
	projector *variables.Projector
	logger    *zap.Logger

	mu    sync.RWMutex
	cache map[string]cachedVariableSet
}

// NewEvaluator 创建匹配器
func NewEvaluator(projector *variables.Projector, logger *zap.Logger) *Evaluator {
	return &Evaluator{
		projector: projector,
		logger:    logger,
		cache:     map[string]cachedVariableSet{},
	}
}

// EvaluateEvent 以当前时间评估事件
func (e *Evaluator) EvaluateEvent(ctx context.Context, event *models.Event, eventType *models.EventType, rules []models.AlertRule) ([]Match, []RuleError) {
	return e.EvaluateEventAt(ctx, event, eventType, rules, time.Now())
}

// EvaluateEventAt 对一个事件评估一组候选规则
// 每条规则依次通过三道检查：类型范围、排期、条件树；
// 命中规则按输入顺序返回。now 可注入，便于测试排期语义
func (e *Evaluator) EvaluateEventAt(ctx context.Context, event *models.Event, eventType *models.EventType, rules []models.AlertRule, now time.Time) ([]Match, []RuleError) {
	var matches []Match
	var ruleErrors []RuleError

	// 变量集与取值对所有规则共享，按需构建一次
	var values map[string][]string
	var vs *variables.VariableSet

	for _, rule := range rules {
		// 1. 范围检查：空 event_types 表示适用于所有类型
		if !rule.AppliesTo(event.EventType) {
			continue
		}

		// 2. 排期检查：未定义时间段的排期视为“不关心”，直接放行
		sched, err := schedule.NewOneWeekSchedule(rule.Schedule)
		if err != nil {
			e.logger.Warn("Skipping rule with invalid schedule",
				zap.String("alert_rule_id", rule.ID),
				zap.Error(err),
			)
			ruleErrors = append(ruleErrors, RuleError{RuleID: rule.ID, Err: err})
			continue
		}
		if sched.HasPeriods() && !sched.Contains(now) {
			continue
		}

		// 3. 条件检查：空条件树的规则无条件触发
		tree, err := conditions.ParseTree(rule.Conditions)
		if err != nil {
			e.logger.Warn("Skipping rule with malformed conditions",
				zap.String("alert_rule_id", rule.ID),
				zap.Error(err),
			)
			ruleErrors = append(ruleErrors, RuleError{RuleID: rule.ID, Err: err})
			continue
		}

		if !tree.IsEmpty() {
			if values == nil {
				vs, err = e.variableSetFor(ctx, eventType)
				if err != nil {
					// schema 渲染失败影响所有含条件的规则，但无条件规则仍应评估
					e.logger.Error("Failed to build variable set for event type",
						zap.String("event_type", eventType.Value),
						zap.Error(err),
					)
					ruleErrors = append(ruleErrors, RuleError{RuleID: rule.ID, Err: err})
					continue
				}
				values = variables.ExtractValues(event, vs)
			}

			ok, err := conditions.Evaluate(tree, values)
			if err != nil {
				e.logger.Warn("Rule evaluation failed, treating as non-matching",
					zap.String("alert_rule_id", rule.ID),
					zap.String("event_id", event.ID),
					zap.Error(err),
				)
				ruleErrors = append(ruleErrors, RuleError{RuleID: rule.ID, Err: err})
				continue
			}
			if !ok {
				continue
			}
		}

		matches = append(matches, Match{
			RuleID:    rule.ID,
			RuleTitle: rule.Title,
			EventID:   event.ID,
		})
	}

	return matches, ruleErrors
}

// variableSetFor 获取（或构建并缓存）事件类型的变量集
// 缓存仅是性能优化，schema 文本一旦变化立即失效重建
func (e *Evaluator) variableSetFor(ctx context.Context, eventType *models.EventType) (*variables.VariableSet, error) {
	e.mu.RLock()
	entry, ok := e.cache[eventType.Value]
	e.mu.RUnlock()
	if ok && entry.schema == eventType.Schema {
		return entry.vs, nil
	}

	vs, err := e.projector.UnionVariableSet(ctx, []models.EventType{*eventType})
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[eventType.Value] = cachedVariableSet{schema: eventType.Schema, vs: vs}
	e.mu.Unlock()
	return vs, nil
}
