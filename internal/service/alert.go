package service

import (
	"context"
	"database/sql"
	"fmt"

	goredis "github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/config"
	"github.com/PADAS/er-server-sub001/internal/consumer"
	"github.com/PADAS/er-server-sub001/internal/database"
	"github.com/PADAS/er-server-sub001/internal/evaluator"
	"github.com/PADAS/er-server-sub001/internal/mqtt"
	"github.com/PADAS/er-server-sub001/internal/notifier"
	"github.com/PADAS/er-server-sub001/internal/redis"
	"github.com/PADAS/er-server-sub001/internal/repository"
	"github.com/PADAS/er-server-sub001/internal/variables"
)

// AlertService 报警评估服务（整合各层）
type AlertService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *goredis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	eventRepo        *repository.EventRepository
	eventTypeRepo    *repository.EventTypeRepository
	alertRuleRepo    *repository.AlertRuleRepository
	choicesRepo      *repository.ChoicesRepository
	revisionRepo     *repository.RevisionRepository
	notificationRepo *repository.NotificationMethodRepository
	projector        *variables.Projector
	evaluator        *evaluator.Evaluator
	dispatcher       *notifier.AlertDispatcher
	eventConsumer    *consumer.EventConsumer
	historyService   *EventHistoryService
	validator        *AlertRuleValidator
}

// NewAlertService 创建报警评估服务
func NewAlertService(cfg *config.Config, logger *zap.Logger) (*AlertService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redis.NewRedisClient(&cfg.Redis)
	ctx := context.Background()
	if err := redis.Ping(ctx, redisClient); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT（可选）
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.NewClient(&cfg.MQTT, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT: %w", err)
		}
	}

	// 4. 创建 Repository 层
	eventRepo := repository.NewEventRepository(db, logger)
	eventTypeRepo := repository.NewEventTypeRepository(db, logger)
	alertRuleRepo := repository.NewAlertRuleRepository(db, logger)
	choicesRepo := repository.NewChoicesRepository(db, logger)
	revisionRepo := repository.NewRevisionRepository(db, logger)
	notificationRepo := repository.NewNotificationMethodRepository(db, logger)

	// 5. 创建评估层
	projector := variables.NewProjector(choicesRepo, logger)
	eval := evaluator.NewEvaluator(projector, logger)

	// 6. 创建分发器与消费者
	var mqttPublisher notifier.MQTTPublisher
	if mqttClient != nil {
		mqttPublisher = mqttClient
	}
	dispatcher := notifier.NewAlertDispatcher(cfg, redisClient, mqttPublisher, notificationRepo, revisionRepo, logger)
	eventConsumer := consumer.NewEventConsumer(cfg, redisClient, eventRepo, eventTypeRepo, alertRuleRepo, eval, dispatcher, logger)

	return &AlertService{
		config:           cfg,
		db:               db,
		redisClient:      redisClient,
		mqttClient:       mqttClient,
		logger:           logger,
		eventRepo:        eventRepo,
		eventTypeRepo:    eventTypeRepo,
		alertRuleRepo:    alertRuleRepo,
		choicesRepo:      choicesRepo,
		revisionRepo:     revisionRepo,
		notificationRepo: notificationRepo,
		projector:        projector,
		evaluator:        eval,
		dispatcher:       dispatcher,
		eventConsumer:    eventConsumer,
		historyService:   NewEventHistoryService(revisionRepo, logger),
		validator:        NewAlertRuleValidator(eventTypeRepo, projector, logger),
	}, nil
}

// Start 启动服务
func (s *AlertService) Start(ctx context.Context) error {
	s.logger.Info("Starting alert service",
		zap.String("event_stream", s.config.Alert.EventStream),
		zap.String("dispatch_stream", s.config.Alert.DispatchStream),
	)

	if err := s.eventConsumer.Start(ctx); err != nil {
		return fmt.Errorf("failed to start event consumer: %w", err)
	}

	return nil
}

// Stop 停止服务
func (s *AlertService) Stop() error {
	s.logger.Info("Stopping alert service")

	if s.mqttClient != nil {
		s.mqttClient.Disconnect()
	}

	if err := redis.Close(s.redisClient); err != nil {
		s.logger.Error("Failed to close redis client",
			zap.Error(err),
		)
	}

	if err := database.Close(s.db); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}

	return nil
}

// History 变更历史服务
func (s *AlertService) History() *EventHistoryService {
	return s.historyService
}

// Validator 规则保存校验器
func (s *AlertService) Validator() *AlertRuleValidator {
	return s.validator
}
