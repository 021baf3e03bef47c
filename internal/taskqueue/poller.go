package taskqueue

import (
	"context"
	"encoding/json"
	"time"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/pkg/errors"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/metrics"
)

// TaskFetcher 轮询器对客户端的最小依赖
type TaskFetcher interface {
	GetTask(ctx context.Context, taskID string) (*TaskSnapshot, error)
}

// SnapshotFunc 每次拿到任务快照时的回调
type SnapshotFunc func(snap *TaskSnapshot)

// Poller 固定间隔轮询任务状态直到终态或次数耗尽。
// 对 UI 状态客户端足够；大规模并发长任务需要自适应退避，这里不做。
type Poller struct {
	fetcher     TaskFetcher
	interval    time.Duration
	maxAttempts int

	// 测试注入点
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPoller 创建轮询器
func NewPoller(fetcher TaskFetcher, interval time.Duration, maxAttempts int) *Poller {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAttempts <= 0 {
		maxAttempts = 60
	}
	return &Poller{
		fetcher:     fetcher,
		interval:    interval,
		maxAttempts: maxAttempts,
		sleep:       sleepCtx,
	}
}

// Poll 轮询到终态。completed 立即返回结果；failed/cancelled 立即
// 报错不再轮询；次数耗尽报超时类错误。
func (p *Poller) Poll(ctx context.Context, taskID string, onSnapshot SnapshotFunc) (json.RawMessage, error) {
	for attempt := 0; attempt < p.maxAttempts; attempt++ {
		snap, err := p.fetcher.GetTask(ctx, taskID)
		if err != nil {
			metrics.TaskPollTotal.WithLabelValues("error").Inc()
			return nil, err
		}
		metrics.TaskPollTotal.WithLabelValues(string(snap.Status)).Inc()

		if onSnapshot != nil {
			onSnapshot(snap)
		}

		switch snap.Status {
		case entity.TaskStatusCompleted:
			return snap.Result, nil
		case entity.TaskStatusFailed:
			msg := snap.Error
			if msg == "" {
				msg = "remote task failed without error message"
			}
			return nil, errors.New(errors.KindRemoteUnavailable, msg)
		case entity.TaskStatusCancelled:
			return nil, errors.New(errors.KindRemoteUnavailable, "remote task was cancelled")
		}

		logger.Debug(ctx, "task not terminal yet, waiting",
			"task_id", taskID,
			"status", string(snap.Status),
			"progress", snap.Progress,
			"attempt", attempt+1,
		)
		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, errors.Wrap(err, errors.KindRemoteUnavailable)
		}
	}

	return nil, errors.New(errors.KindExhausted, "task polling attempts exhausted before completion")
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
