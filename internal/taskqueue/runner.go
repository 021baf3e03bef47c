package taskqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"inkwell-ai-api/internal/generation"
	"inkwell-ai-api/pkg/errors"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/metrics"
)

// Runner 把「提交 + 轮询」组合成一条远端执行通道，
// 供生成路由当作远端路径使用。
type Runner struct {
	client *Client
	poller *Poller
}

// NewRunner 创建远端执行通道
func NewRunner(client *Client, interval time.Duration, maxAttempts int) *Runner {
	return &Runner{
		client: client,
		poller: NewPoller(client, interval, maxAttempts),
	}
}

// Run 提交任务并轮询到终态，轮询进度映射到整体进度的中段区间
func (r *Runner) Run(ctx context.Context, req *generation.Request, onProgress generation.ProgressFunc) (*generation.Result, error) {
	params, err := req.TaskParams()
	if err != nil {
		return nil, errors.Wrap(err, errors.KindRemoteUnavailable)
	}

	start := time.Now()
	taskID, err := r.client.Submit(ctx, req.Operation, params)
	if err != nil {
		return nil, err
	}
	logger.Info(ctx, "remote task submitted",
		"task_id", taskID,
		"operation", string(req.Operation),
	)

	raw, err := r.poller.Poll(ctx, taskID, func(snap *TaskSnapshot) {
		if onProgress == nil {
			return
		}
		onProgress(generation.ProgressEvent{
			Stage:   "remote_" + string(snap.Status),
			Percent: generation.RemapRemoteProgress(snap.Progress),
		})
	})

	status := "completed"
	if err != nil {
		status = "failed"
	}
	metrics.TaskDuration.WithLabelValues(string(req.Operation), status).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	var result generation.Result
	if unmarshalErr := json.Unmarshal(raw, &result); unmarshalErr != nil {
		return nil, errors.New(errors.KindMalformedResponse,
			fmt.Sprintf("remote task result is not a generation result: %v", unmarshalErr))
	}
	return &result, nil
}

var _ generation.RemoteRunner = (*Runner)(nil)
