package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/config"
	"github.com/PADAS/er-server-sub001/internal/evaluator"
	"github.com/PADAS/er-server-sub001/internal/history"
	"github.com/PADAS/er-server-sub001/internal/models"
	"github.com/PADAS/er-server-sub001/internal/redis"
)

// NotificationMethodLister 规则的通知方式加载接口
type NotificationMethodLister interface {
	ListForAlertRule(ctx context.Context, alertRuleID string) ([]models.NotificationMethod, error)
}

// RevisionLister 实体修订日志加载接口
type RevisionLister interface {
	ListForEntity(ctx context.Context, entityKind, entityID string) ([]models.Revision, error)
}

// MQTTPublisher MQTT发布接口
type MQTTPublisher interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
}

// AlertMessage 报警分发消息
// 写入分发流后由外部通知服务消费并完成实际投递
type AlertMessage struct {
	ID                    string               `json:"id"`
	AlertRuleID           string               `json:"alert_rule_id"`
	AlertRuleTitle        string               `json:"alert_rule_title,omitempty"`
	EventID               string               `json:"event_id"`
	EventTitle            string               `json:"event_title"`
	EventType             string               `json:"event_type"`
	State                 string               `json:"state"`
	Priority              string               `json:"priority"`
	NotificationMethodIDs []string             `json:"notification_method_ids"`
	Updates               []models.UpdateEntry `json:"updates,omitempty"`
	FiredAt               time.Time            `json:"fired_at"`
}

// AlertDispatcher 报警分发器
// 把命中的规则转成分发消息：入 Redis 分发流，并按需镜像到 MQTT 主题
type AlertDispatcher struct {
	config           *config.Config
	redisClient      *goredis.Client
	mqttClient       MQTTPublisher // 为 nil 时跳过 MQTT
	notificationRepo NotificationMethodLister
	revisionRepo     RevisionLister
	logger           *zap.Logger
}

// NewAlertDispatcher 创建报警分发器
func NewAlertDispatcher(
	cfg *config.Config,
	redisClient *goredis.Client,
	mqttClient MQTTPublisher,
	notificationRepo NotificationMethodLister,
	revisionRepo RevisionLister,
	logger *zap.Logger,
) *AlertDispatcher {
	return &AlertDispatcher{
		config:           cfg,
		redisClient:      redisClient,
		mqttClient:       mqttClient,
		notificationRepo: notificationRepo,
		revisionRepo:     revisionRepo,
		logger:           logger,
	}
}

// DispatchMatches 分发一个事件的全部命中规则
// 单条失败不影响其余命中的分发
func (d *AlertDispatcher) DispatchMatches(ctx context.Context, event *models.Event, matches []evaluator.Match) error {
	var firstErr error
	for _, match := range matches {
		if err := d.dispatch(ctx, event, match); err != nil {
			d.logger.Error("Failed to dispatch alert",
				zap.String("alert_rule_id", match.RuleID),
				zap.String("event_id", event.ID),
				zap.Error(err),
			)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (d *AlertDispatcher) dispatch(ctx context.Context, event *models.Event, match evaluator.Match) error {
	methods, err := d.notificationRepo.ListForAlertRule(ctx, match.RuleID)
	if err != nil {
		return fmt.Errorf("failed to load notification methods: %w", err)
	}
	methodIDs := make([]string, 0, len(methods))
	for _, m := range methods {
		methodIDs = append(methodIDs, m.ID)
	}

	// 变更历史随消息带出，通知模板直接可用
	revisions, err := d.revisionRepo.ListForEntity(ctx, models.EntityEvent, event.ID)
	if err != nil {
		return fmt.Errorf("failed to load revisions: %w", err)
	}

	msg := AlertMessage{
		ID:                    uuid.New().String(),
		AlertRuleID:           match.RuleID,
		AlertRuleTitle:        match.RuleTitle,
		EventID:               event.ID,
		EventTitle:            event.Title,
		EventType:             event.EventType,
		State:                 models.StateDisplay(event.InferredState()),
		Priority:              models.PriorityDisplay(event.Priority),
		NotificationMethodIDs: methodIDs,
		Updates:               history.RenderUpdates(revisions),
		FiredAt:               time.Now().UTC(),
	}

	if _, err := redis.PublishJSONToStream(ctx, d.redisClient, d.config.Alert.DispatchStream, msg); err != nil {
		return fmt.Errorf("failed to publish alert to dispatch stream: %w", err)
	}

	if d.mqttClient != nil {
		payload, err := json.Marshal(msg)
		if err != nil {
			return err
		}
		topic := fmt.Sprintf("%s/%s", d.config.Alert.MQTTTopicPrefix, match.RuleID)
		if err := d.mqttClient.Publish(topic, d.config.MQTT.QoS, false, payload); err != nil {
			// MQTT 只是镜像通道，失败不算分发失败
			d.logger.Warn("Failed to mirror alert to MQTT",
				zap.String("topic", topic),
				zap.Error(err),
			)
		}
	}

	d.logger.Info("Alert dispatched",
		zap.String("alert_rule_id", match.RuleID),
		zap.String("event_id", event.ID),
		zap.Int("notification_methods", len(methodIDs)),
	)
	return nil
}
