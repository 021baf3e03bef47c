package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/domain/repository"
)

// TaskRepository 生成任务仓储实现
type TaskRepository struct {
	client *Client
}

// NewTaskRepository 创建任务仓储
func NewTaskRepository(client *Client) *TaskRepository {
	return &TaskRepository{client: client}
}

var _ repository.TaskRepository = (*TaskRepository)(nil)

// Create 创建任务，空 ID 时自动分配
func (r *TaskRepository) Create(ctx context.Context, task *entity.GenerationTask) error {
	ctx, span := tracer.Start(ctx, "postgres.TaskRepository.Create")
	defer span.End()

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if err := r.client.db.WithContext(ctx).Create(task).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务，未找到时返回 (nil, nil)
func (r *TaskRepository) GetByID(ctx context.Context, id string) (*entity.GenerationTask, error) {
	ctx, span := tracer.Start(ctx, "postgres.TaskRepository.GetByID")
	defer span.End()

	var task entity.GenerationTask
	if err := r.client.db.WithContext(ctx).First(&task, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return &task, nil
}

// Update 整体更新任务
func (r *TaskRepository) Update(ctx context.Context, task *entity.GenerationTask) error {
	ctx, span := tracer.Start(ctx, "postgres.TaskRepository.Update")
	defer span.End()

	if err := r.client.db.WithContext(ctx).Save(task).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update task: %w", err)
	}
	return nil
}

// UpdateProgress 仅更新任务进度
func (r *TaskRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	ctx, span := tracer.Start(ctx, "postgres.TaskRepository.UpdateProgress")
	defer span.End()

	if err := r.client.db.WithContext(ctx).
		Model(&entity.GenerationTask{}).
		Where("id = ?", id).
		Update("progress", progress).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to update task progress: %w", err)
	}
	return nil
}

// ListByProject 列出项目下的任务，按创建时间倒序
func (r *TaskRepository) ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*entity.GenerationTask, int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.TaskRepository.ListByProject")
	defer span.End()

	query := r.client.db.WithContext(ctx).
		Model(&entity.GenerationTask{}).
		Where("project_id = ?", projectID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to count tasks: %w", err)
	}

	var tasks []*entity.GenerationTask
	if err := query.Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&tasks).Error; err != nil {
		span.RecordError(err)
		return nil, 0, fmt.Errorf("failed to list tasks: %w", err)
	}
	return tasks, total, nil
}
