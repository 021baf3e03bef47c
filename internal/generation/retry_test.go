package generation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "inkwell-ai-api/pkg/errors"
)

// newTestRetrier 返回不实际休眠的重试器，并记录每次调度的退避时长
func newTestRetrier(policy RetryPolicy) (*Retrier, *[]time.Duration) {
	r := NewRetrier(policy)
	delays := &[]time.Duration{}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		*delays = append(*delays, d)
		return nil
	}
	r.jitter = func() time.Duration { return 0 }
	return r, delays
}

func TestRetrySucceedsFirstTry(t *testing.T) {
	r, delays := newTestRetrier(DefaultRetryPolicy())

	calls := 0
	result, err := Retry(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)
}

func TestRetryExactInvocationCount(t *testing.T) {
	policy := DefaultRetryPolicy()
	policy.MaxAttempts = 3
	r, _ := newTestRetrier(policy)

	calls := 0
	_, err := Retry(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("503 service unavailable")
	})

	require.Error(t, err)
	// N 次重试 + 首次调用
	assert.Equal(t, 4, calls)
}

func TestRetryNonRetryableFailsFast(t *testing.T) {
	r, delays := newTestRetrier(DefaultRetryPolicy())

	calls := 0
	_, err := Retry(context.Background(), r, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("invalid api key")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Empty(t, *delays)

	var ce *apperrors.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.False(t, ce.Retryable)
}

func TestRetryBackoffMonotonic(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:         4,
		BaseDelay:           time.Second,
		Multiplier:          2.0,
		RateLimitMultiplier: 2.0,
	}
	r, delays := newTestRetrier(policy)

	_, err := Retry(context.Background(), r, func(ctx context.Context) (string, error) {
		return "", errors.New("request timeout")
	})
	require.Error(t, err)

	require.Len(t, *delays, 4)
	for i := 1; i < len(*delays); i++ {
		assert.GreaterOrEqual(t, (*delays)[i], (*delays)[i-1])
	}
	// 无上限时基础退避逐轮翻倍
	assert.Equal(t, []time.Duration{
		1 * time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second,
	}, *delays)
}

func TestRetryRateLimitedDelayLonger(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:         1,
		BaseDelay:           time.Second,
		Multiplier:          2.0,
		RateLimitMultiplier: 2.0,
	}

	run := func(errMsg string) time.Duration {
		r, delays := newTestRetrier(policy)
		_, _ = Retry(context.Background(), r, func(ctx context.Context) (string, error) {
			return "", errors.New(errMsg)
		})
		require.Len(t, *delays, 1)
		return (*delays)[0]
	}

	rateLimited := run("429 resource_exhausted")
	transient := run("request timeout")
	assert.Greater(t, rateLimited, transient)
}

func TestRetryRespectsMaxDelay(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:         5,
		BaseDelay:           10 * time.Second,
		MaxDelay:            15 * time.Second,
		Multiplier:          2.0,
		RateLimitMultiplier: 2.0,
	}
	r, delays := newTestRetrier(policy)

	_, _ = Retry(context.Background(), r, func(ctx context.Context) (string, error) {
		return "", errors.New("network unreachable")
	})

	for _, d := range *delays {
		assert.LessOrEqual(t, d, policy.MaxDelay)
	}
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	r := NewRetrier(DefaultRetryPolicy())
	r.jitter = func() time.Duration { return 0 }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, err := Retry(ctx, r, func(ctx context.Context) (string, error) {
		calls++
		return "", errors.New("503 overloaded")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
