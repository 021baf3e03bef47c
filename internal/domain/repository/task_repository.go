// Package repository 定义领域仓储接口
package repository

import (
	"context"

	"inkwell-ai-api/internal/domain/entity"
)

// TaskRepository 生成任务仓储接口
type TaskRepository interface {
	// Create 创建任务
	Create(ctx context.Context, task *entity.GenerationTask) error

	// GetByID 根据 ID 获取任务
	GetByID(ctx context.Context, id string) (*entity.GenerationTask, error)

	// Update 更新任务
	Update(ctx context.Context, task *entity.GenerationTask) error

	// UpdateProgress 仅更新任务进度，避免覆盖 worker 写入的其他字段
	UpdateProgress(ctx context.Context, id string, progress int) error

	// ListByProject 列出项目下的任务，按创建时间倒序
	ListByProject(ctx context.Context, projectID string, limit, offset int) ([]*entity.GenerationTask, int64, error)
}
