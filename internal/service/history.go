package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/PADAS/er-server-sub001/internal/history"
	"github.com/PADAS/er-server-sub001/internal/models"
)

// RevisionLister 实体修订日志加载接口
type RevisionLister interface {
	ListForEntity(ctx context.Context, entityKind, entityID string) ([]models.Revision, error)
}

// EventHistoryService 变更历史服务
// 加载实体的修订日志并渲染为消费端可用的变更列表（审计轨迹）
type EventHistoryService struct {
	revisionRepo RevisionLister
	logger       *zap.Logger
}

// NewEventHistoryService 创建变更历史服务
func NewEventHistoryService(revisionRepo RevisionLister, logger *zap.Logger) *EventHistoryService {
	return &EventHistoryService{
		revisionRepo: revisionRepo,
		logger:       logger,
	}
}

// GetEntityUpdates 取一个实体的变更历史（最新在前）
func (s *EventHistoryService) GetEntityUpdates(ctx context.Context, entityKind, entityID string) ([]models.UpdateEntry, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity_id is required")
	}
	switch entityKind {
	case models.EntityEvent, models.EntityNote, models.EntityPhoto, models.EntityFile:
	default:
		return nil, fmt.Errorf("unknown entity kind %q", entityKind)
	}

	revisions, err := s.revisionRepo.ListForEntity(ctx, entityKind, entityID)
	if err != nil {
		s.logger.Error("Failed to load revisions",
			zap.String("entity_kind", entityKind),
			zap.String("entity_id", entityID),
			zap.Error(err),
		)
		return nil, fmt.Errorf("failed to load revisions: %w", err)
	}

	return history.RenderUpdates(revisions), nil
}
