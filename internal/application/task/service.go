// Package task 提供生成任务的应用服务：入队、查询、取消
package task

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/domain/repository"
	"inkwell-ai-api/internal/generation"
	"inkwell-ai-api/internal/infrastructure/messaging"
	redisinfra "inkwell-ai-api/internal/infrastructure/persistence/redis"
	"inkwell-ai-api/pkg/errors"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/tracer"
)

// ErrTaskNotFound 任务不存在
var ErrTaskNotFound = stderrors.New("task not found")

// Service 任务应用服务
type Service struct {
	repo      repository.TaskRepository
	producer  *messaging.Producer
	snapshots *redisinfra.SnapshotCache // 可为 nil，此时直接读库
}

// NewService 创建任务服务
func NewService(repo repository.TaskRepository, producer *messaging.Producer, snapshots *redisinfra.SnapshotCache) *Service {
	return &Service{
		repo:      repo,
		producer:  producer,
		snapshots: snapshots,
	}
}

// Submit 创建任务并投递到分发流
func (s *Service) Submit(ctx context.Context, op entity.Operation, req *generation.Request) (*entity.GenerationTask, error) {
	if !entity.KnownOperations[op] {
		return nil, errors.New(errors.KindUnknown, fmt.Sprintf("unknown operation: %s", op))
	}

	params, err := req.TaskParams()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindUnknown)
	}

	t := entity.NewGenerationTask(req.ProjectID, op, params)
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}

	if _, err := s.producer.PublishTask(ctx, &messaging.TaskMessage{
		TaskID:    t.ID,
		ProjectID: t.ProjectID,
		Operation: string(op),
		TraceID:   tracer.TraceID(ctx),
	}); err != nil {
		// 入库成功但投递失败：标记失败，避免任务永远停在 queued
		t.Fail("failed to dispatch task: " + err.Error())
		if updateErr := s.repo.Update(ctx, t); updateErr != nil {
			logger.Error(ctx, "failed to mark undispatched task as failed", updateErr, "task_id", t.ID)
		}
		return nil, errors.Wrap(err, errors.KindRemoteUnavailable)
	}

	logger.Info(ctx, "generation task submitted",
		"task_id", t.ID,
		"operation", string(op),
		"project_id", t.ProjectID,
	)
	return t, nil
}

// Get 查询任务，优先走快照缓存；未找到时返回 (nil, nil)
func (s *Service) Get(ctx context.Context, id string) (*entity.GenerationTask, error) {
	if s.snapshots == nil {
		return s.repo.GetByID(ctx, id)
	}

	data, err := s.snapshots.GetOrLoad(ctx, id, func(ctx context.Context) (any, error) {
		t, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, ErrTaskNotFound
		}
		return t, nil
	})
	if err != nil {
		if stderrors.Is(err, ErrTaskNotFound) {
			return nil, nil
		}
		return nil, err
	}

	var t entity.GenerationTask
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to decode task snapshot: %w", err)
	}
	return &t, nil
}

// Cancel 取消任务。终态任务不可取消。
func (s *Service) Cancel(ctx context.Context, id string) error {
	t, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if t == nil {
		return ErrTaskNotFound
	}
	if t.Status.Terminal() {
		return errors.New(errors.KindUnknown, fmt.Sprintf("task already %s", t.Status))
	}

	t.Cancel()
	if err := s.repo.Update(ctx, t); err != nil {
		return err
	}
	if s.snapshots != nil {
		s.snapshots.Invalidate(ctx, id)
	}

	logger.Info(ctx, "generation task cancelled", "task_id", id)
	return nil
}

// List 列出项目下的任务
func (s *Service) List(ctx context.Context, projectID string, limit, offset int) ([]*entity.GenerationTask, int64, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.ListByProject(ctx, projectID, limit, offset)
}
