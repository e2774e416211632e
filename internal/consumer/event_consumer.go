package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/config"
	"github.com/PADAS/er-server-sub001/internal/evaluator"
	"github.com/PADAS/er-server-sub001/internal/models"
	"github.com/PADAS/er-server-sub001/internal/redis"
)

// EventLoader 事件加载接口
type EventLoader interface {
	GetEvent(ctx context.Context, id string) (*models.Event, error)
}

// EventTypeLoader 事件类型加载接口
type EventTypeLoader interface {
	GetByValue(ctx context.Context, value string) (*models.EventType, error)
}

// RuleLoader 候选规则加载接口
type RuleLoader interface {
	ListActiveForEventType(ctx context.Context, eventType string) ([]models.AlertRule, error)
}

// Evaluator 规则匹配接口（由 evaluator.Evaluator 实现）
type Evaluator interface {
	EvaluateEvent(ctx context.Context, event *models.Event, eventType *models.EventType, rules []models.AlertRule) ([]evaluator.Match, []evaluator.RuleError)
}

// Dispatcher 命中分发接口（由 notifier.AlertDispatcher 实现）
type Dispatcher interface {
	DispatchMatches(ctx context.Context, event *models.Event, matches []evaluator.Match) error
}

// EventChangeMessage 事件变更消息
// 上游在事件创建/更新时写入事件流
type EventChangeMessage struct {
	EventID string `json:"event_id"`
	Action  string `json:"action"` // "created" 或 "updated"
}

// EventConsumer 事件变更消费者
// 从 Redis Streams 消费事件变更并触发规则评估
type EventConsumer struct {
	config      *config.Config
	redisClient *goredis.Client
	events      EventLoader
	eventTypes  EventTypeLoader
	rules       RuleLoader
	evaluator   Evaluator
	dispatcher  Dispatcher
	logger      *zap.Logger
}

// NewEventConsumer 创建事件变更消费者
func NewEventConsumer(
	cfg *config.Config,
	redisClient *goredis.Client,
	events EventLoader,
	eventTypes EventTypeLoader,
	rules RuleLoader,
	eval Evaluator,
	dispatcher Dispatcher,
	logger *zap.Logger,
) *EventConsumer {
	return &EventConsumer{
		config:      cfg,
		redisClient: redisClient,
		events:      events,
		eventTypes:  eventTypes,
		rules:       rules,
		evaluator:   eval,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Start 启动消费循环
func (c *EventConsumer) Start(ctx context.Context) error {
	// 创建消费者组
	if err := redis.CreateConsumerGroup(ctx, c.redisClient, c.config.Alert.EventStream, c.config.Alert.ConsumerGroup); err != nil {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("Event consumer started",
		zap.String("stream", c.config.Alert.EventStream),
		zap.String("consumer_group", c.config.Alert.ConsumerGroup),
		zap.String("consumer_name", c.config.Alert.ConsumerName),
	)

	// 消费事件（带指数退避）
	backoffDuration := time.Second
	maxBackoff := 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Event consumer stopped")
			return nil
		default:
			if err := c.consumeOnce(ctx); err != nil {
				c.logger.Error("Failed to consume events",
					zap.Error(err),
					zap.Duration("backoff", backoffDuration),
				)

				// 指数退避
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoffDuration):
					backoffDuration *= 2
					if backoffDuration > maxBackoff {
						backoffDuration = maxBackoff
					}
				}
			} else {
				// 成功时重置退避时间
				backoffDuration = time.Second
			}
		}
	}
}

// consumeOnce 读取并处理一批消息
func (c *EventConsumer) consumeOnce(ctx context.Context) error {
	messages, err := redis.ReadFromStream(
		ctx,
		c.redisClient,
		c.config.Alert.EventStream,
		c.config.Alert.ConsumerGroup,
		c.config.Alert.ConsumerName,
		c.config.Alert.BatchSize,
	)
	if err != nil {
		return fmt.Errorf("failed to read from stream: %w", err)
	}

	for _, msg := range messages {
		if err := c.processMessage(ctx, msg); err != nil {
			c.logger.Error("Failed to process event change",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
			// 继续处理下一条消息，不中断
			continue
		}
		// 处理成功后确认消息
		if err := redis.AckMessage(ctx, c.redisClient, c.config.Alert.EventStream, c.config.Alert.ConsumerGroup, msg.ID); err != nil {
			c.logger.Warn("Failed to ack message",
				zap.String("message_id", msg.ID),
				zap.Error(err),
			)
		}
	}

	return nil
}

// processMessage 处理单条事件变更
func (c *EventConsumer) processMessage(ctx context.Context, msg redis.StreamMessage) error {
	change, err := parseMessage(msg)
	if err != nil {
		return err
	}

	event, err := c.events.GetEvent(ctx, change.EventID)
	if err != nil {
		return fmt.Errorf("failed to load event: %w", err)
	}

	eventType, err := c.eventTypes.GetByValue(ctx, event.EventType)
	if err != nil {
		return fmt.Errorf("failed to load event type: %w", err)
	}

	rules, err := c.rules.ListActiveForEventType(ctx, event.EventType)
	if err != nil {
		return fmt.Errorf("failed to load alert rules: %w", err)
	}

	matches, ruleErrors := c.evaluator.EvaluateEvent(ctx, event, eventType, rules)
	for _, ruleErr := range ruleErrors {
		// 持续损坏的规则在这里暴露，不阻断其余规则的报警
		c.logger.Warn("Alert rule failed to evaluate",
			zap.String("alert_rule_id", ruleErr.RuleID),
			zap.String("event_id", event.ID),
			zap.Error(ruleErr.Err),
		)
	}

	c.logger.Debug("Event evaluated",
		zap.String("event_id", event.ID),
		zap.String("action", change.Action),
		zap.Int("candidate_rules", len(rules)),
		zap.Int("matches", len(matches)),
	)

	if len(matches) == 0 {
		return nil
	}
	return c.dispatcher.DispatchMatches(ctx, event, matches)
}

func parseMessage(msg redis.StreamMessage) (*EventChangeMessage, error) {
	raw, ok := msg.Values["data"].(string)
	if !ok {
		return nil, fmt.Errorf("message %s has no data field", msg.ID)
	}

	var change EventChangeMessage
	if err := json.Unmarshal([]byte(raw), &change); err != nil {
		return nil, fmt.Errorf("failed to parse event change message: %w", err)
	}
	if change.EventID == "" {
		return nil, fmt.Errorf("event change message missing event_id")
	}
	return &change, nil
}
