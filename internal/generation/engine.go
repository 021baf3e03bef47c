package generation

import (
	"context"

	"inkwell-ai-api/pkg/errors"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/metrics"
)

// 执行模式
const (
	ModeAuto  = "auto"  // 先远端任务队列，失败后本地兜底
	ModeLocal = "local" // 仅本地直连模型
)

// RemoteRunner 远端执行通道：提交任务并轮询到终态
type RemoteRunner interface {
	Run(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error)
}

// Engine 生成执行路由。对每个逻辑操作决定走远端任务队列
// 还是本地直连，远端失败时无条件降级到本地。
type Engine struct {
	mode    string
	remote  RemoteRunner
	invoker *Invoker
	retrier *Retrier
}

// NewEngine 创建执行路由。remote 为 nil 时等同于 local 模式。
func NewEngine(mode string, remote RemoteRunner, invoker *Invoker, retrier *Retrier) *Engine {
	if remote == nil {
		mode = ModeLocal
	}
	return &Engine{
		mode:    mode,
		remote:  remote,
		invoker: invoker,
		retrier: retrier,
	}
}

// Generate 执行一次逻辑操作。成功时进度回调最后一次 percent 恒为 100。
func (e *Engine) Generate(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error) {
	op := string(req.Operation)

	result, path, err := e.dispatch(ctx, req, onProgress)
	if err != nil {
		metrics.GenerationTotal.WithLabelValues(op, path, "error").Inc()
		return nil, errors.Classify(err)
	}

	metrics.GenerationTotal.WithLabelValues(op, path, "success").Inc()
	notify(onProgress, ProgressEvent{
		Stage:   "done",
		Percent: 100,
		Usage:   &result.Usage,
	})
	return result, nil
}

// dispatch 返回结果及实际执行路径（remote/local）
func (e *Engine) dispatch(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, string, error) {
	if e.mode == ModeLocal {
		result, err := e.runLocal(ctx, req, onProgress)
		return result, "local", err
	}

	return attemptRemoteElseLocal(ctx,
		func(ctx context.Context) (*Result, error) {
			notify(onProgress, ProgressEvent{Stage: "submitting", Percent: 5})
			return e.remote.Run(ctx, req, onProgress)
		},
		func(ctx context.Context) (*Result, error) {
			return e.runLocal(ctx, req, onProgress)
		},
		func(remoteErr error) {
			classified := errors.Classify(remoteErr)
			// 内容安全拦截在本地重发大概率同样失败，但为保持
			// 降级策略的无条件语义仍然放行，仅留痕便于排查。
			if classified.Kind == errors.KindContentFiltered {
				logger.Warn(ctx, "remote task blocked by content filter, local retry will likely fail the same way",
					"operation", string(req.Operation))
			}
			logger.Warn(ctx, "remote generation path failed, falling back to local",
				"operation", string(req.Operation),
				"kind", string(classified.Kind),
				"error", classified.Detail,
			)
			metrics.RemoteFallbackTotal.WithLabelValues(string(req.Operation)).Inc()
			notify(onProgress, ProgressEvent{
				Stage:   "local_fallback",
				Percent: remoteProgressFloor,
				Log:     "remote path unavailable, retrying locally",
			})
		},
	)
}

func (e *Engine) runLocal(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error) {
	notify(onProgress, ProgressEvent{Stage: "generating", Percent: remoteProgressFloor})
	return Retry(ctx, e.retrier, func(ctx context.Context) (*Result, error) {
		return e.invoker.Invoke(ctx, req, onProgress)
	})
}

// attemptRemoteElseLocal 先远端后本地的通用降级组合子。
// 远端任何失败（提交、轮询、任务终态 failed/cancelled、轮询耗尽）
// 都会被吞掉并触发一次本地执行；本地的结果或错误才是调用方所见。
func attemptRemoteElseLocal[T any](
	ctx context.Context,
	remote func(ctx context.Context) (T, error),
	local func(ctx context.Context) (T, error),
	onFallback func(remoteErr error),
) (T, string, error) {
	result, err := remote(ctx)
	if err == nil {
		return result, "remote", nil
	}

	if onFallback != nil {
		onFallback(err)
	}
	result, err = local(ctx)
	return result, "local", err
}
