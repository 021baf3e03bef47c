// Package worker 消费任务分发流并在本地执行生成任务
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/domain/repository"
	"inkwell-ai-api/internal/generation"
	"inkwell-ai-api/internal/infrastructure/messaging"
	redisinfra "inkwell-ai-api/internal/infrastructure/persistence/redis"
	"inkwell-ai-api/pkg/logger"
)

// Worker 任务执行器。从分发流取任务，用本地生成通道执行，
// 把进度与结果写回任务仓储。
type Worker struct {
	consumer  *messaging.Consumer
	repo      repository.TaskRepository
	engine    *generation.Engine
	snapshots *redisinfra.SnapshotCache // 可为 nil
}

// New 创建任务执行器
func New(consumer *messaging.Consumer, repo repository.TaskRepository, engine *generation.Engine, snapshots *redisinfra.SnapshotCache) *Worker {
	return &Worker{
		consumer:  consumer,
		repo:      repo,
		engine:    engine,
		snapshots: snapshots,
	}
}

// Start 注册处理器并启动消费
func (w *Worker) Start(ctx context.Context) error {
	w.consumer.RegisterHandler(messaging.MsgTypeGenerationTask, w.handleTask)
	return w.consumer.Start(ctx)
}

// Stop 停止消费
func (w *Worker) Stop() {
	w.consumer.Stop()
}

// handleTask 执行单个生成任务。
// 返回错误会让消息留在 pending 重投，因此只有基础设施故障才返回错误；
// 生成本身失败会落到任务的 failed 终态并确认消息。
func (w *Worker) handleTask(ctx context.Context, msg *messaging.Message) error {
	var tm messaging.TaskMessage
	if err := msg.UnmarshalPayload(&tm); err != nil {
		logger.Error(ctx, "invalid task message payload, dropping", err, "message_id", msg.ID)
		return nil
	}

	ctx = logger.WithContext(ctx, logger.TaskIDKey, tm.TaskID)
	ctx = logger.WithContext(ctx, logger.OperationKey, tm.Operation)

	t, err := w.repo.GetByID(ctx, tm.TaskID)
	if err != nil {
		return fmt.Errorf("failed to load task %s: %w", tm.TaskID, err)
	}
	if t == nil {
		logger.Warn(ctx, "task not found, dropping message", "task_id", tm.TaskID)
		return nil
	}
	if t.Status.Terminal() {
		// 重投的消息可能对应已取消或已完成的任务
		logger.Info(ctx, "task already terminal, skipping", "status", string(t.Status))
		return nil
	}

	t.Start()
	if err := w.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to mark task running: %w", err)
	}
	w.invalidate(ctx, t.ID)

	var req generation.Request
	if err := json.Unmarshal(t.InputParams, &req); err != nil {
		w.fail(ctx, t, "invalid task input params: "+err.Error())
		return nil
	}

	result, err := w.engine.Generate(ctx, &req, w.progressFunc(ctx, t.ID))
	if err != nil {
		w.fail(ctx, t, err.Error())
		return nil
	}

	raw, err := json.Marshal(result)
	if err != nil {
		w.fail(ctx, t, "failed to encode generation result: "+err.Error())
		return nil
	}

	t.Complete(raw)
	t.SetUsage(result.Usage)
	if err := w.repo.Update(ctx, t); err != nil {
		return fmt.Errorf("failed to persist task result: %w", err)
	}
	w.invalidate(ctx, t.ID)

	logger.Info(ctx, "generation task completed",
		"task_id", t.ID,
		"duration_ms", t.DurationMs,
		"input_tokens", t.InputTokens,
		"output_tokens", t.OutputTokens,
	)
	return nil
}

// progressFunc 把生成进度写回任务记录，失败只记日志不打断生成
func (w *Worker) progressFunc(ctx context.Context, taskID string) generation.ProgressFunc {
	return func(ev generation.ProgressEvent) {
		if err := w.repo.UpdateProgress(ctx, taskID, ev.Percent); err != nil {
			logger.Warn(ctx, "failed to update task progress",
				"task_id", taskID,
				"percent", ev.Percent,
				"error", err.Error(),
			)
			return
		}
		w.invalidate(ctx, taskID)
	}
}

func (w *Worker) fail(ctx context.Context, t *entity.GenerationTask, errMsg string) {
	t.Fail(errMsg)
	if err := w.repo.Update(ctx, t); err != nil {
		logger.Error(ctx, "failed to persist task failure", err, "task_id", t.ID)
		return
	}
	w.invalidate(ctx, t.ID)
	logger.Warn(ctx, "generation task failed", "task_id", t.ID, "reason", errMsg)
}

func (w *Worker) invalidate(ctx context.Context, taskID string) {
	if w.snapshots != nil {
		w.snapshots.Invalidate(ctx, taskID)
	}
}
