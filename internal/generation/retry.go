package generation

import (
	"context"
	"math/rand"
	"time"

	"inkwell-ai-api/pkg/errors"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/metrics"
)

// jitterRange 每次退避附加的随机抖动上限
const jitterRange = time.Second

// RetryPolicy 退避重试策略。调用期内消费完毕，不做持久化。
type RetryPolicy struct {
	MaxAttempts         int           // 重试次数上限（不含首次调用）
	BaseDelay           time.Duration // 初始退避
	MaxDelay            time.Duration // 单次退避上限，0 表示不设上限
	Multiplier          float64       // 每轮重试后基础退避的倍增系数
	RateLimitMultiplier float64       // 限流错误的额外延长系数
}

// DefaultRetryPolicy 默认重试策略
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:         3,
		BaseDelay:           3 * time.Second,
		MaxDelay:            60 * time.Second,
		Multiplier:          2.0,
		RateLimitMultiplier: 2.0,
	}
}

// Retrier 指数退避重试器
type Retrier struct {
	policy RetryPolicy

	// 测试注入点
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewRetrier 创建重试器
func NewRetrier(policy RetryPolicy) *Retrier {
	if policy.Multiplier < 1 {
		policy.Multiplier = 1
	}
	if policy.RateLimitMultiplier < 1 {
		policy.RateLimitMultiplier = 1
	}
	return &Retrier{
		policy: policy,
		sleep:  sleepCtx,
		jitter: func() time.Duration { return time.Duration(rand.Int63n(int64(jitterRange))) },
	}
}

// Retry 执行 op，失败时按策略退避重试。
// 不可重试的错误立即透传；重试耗尽后透传最后一次的分类错误。
// 显式循环实现，避免递归在高重试次数下增长调用栈。
func Retry[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	base := r.policy.BaseDelay
	remaining := r.policy.MaxAttempts

	for {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		classified := errors.Classify(err)
		if !classified.Retryable || remaining <= 0 {
			return zero, classified
		}

		delay := base
		if classified.RateLimited {
			delay = time.Duration(float64(delay) * r.policy.RateLimitMultiplier)
		}
		delay += r.jitter()
		if r.policy.MaxDelay > 0 && delay > r.policy.MaxDelay {
			delay = r.policy.MaxDelay
		}

		logger.Warn(ctx, "generation attempt failed, backing off",
			"kind", string(classified.Kind),
			"remaining_attempts", remaining,
			"delay", delay.String(),
			"error", classified.Detail,
		)
		metrics.GenerationRetries.WithLabelValues(string(classified.Kind)).Inc()

		if err := r.sleep(ctx, delay); err != nil {
			return zero, errors.Wrap(err, errors.KindTransient)
		}

		remaining--
		base = time.Duration(float64(base) * r.policy.Multiplier)
		if r.policy.MaxDelay > 0 && base > r.policy.MaxDelay {
			base = r.policy.MaxDelay
		}
	}
}

// sleepCtx 可被 context 取消的休眠
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
