package errors

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyRetryable(t *testing.T) {
	cases := []struct {
		name      string
		err       error
		retryable bool
	}{
		{"http 429", fmt.Errorf("provider returned 429"), true},
		{"quota", fmt.Errorf("Quota exceeded for model"), true},
		{"econnreset uppercase", fmt.Errorf("read tcp: ECONNRESET"), true},
		{"resource exhausted", fmt.Errorf("rpc error: RESOURCE_EXHAUSTED"), true},
		{"server overloaded", fmt.Errorf("model is overloaded, retry later"), true},
		{"gateway timeout", fmt.Errorf("HTTP 504: gateway timeout"), true},
		{"invalid key", fmt.Errorf("invalid api key"), false},
		{"bad request", fmt.Errorf("request body malformed"), false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.retryable, Classify(tc.err).Retryable)
		})
	}
}

func TestClassifyRateLimitedSubset(t *testing.T) {
	assert.True(t, Classify(fmt.Errorf("429 too many requests")).RateLimited)
	assert.True(t, Classify(fmt.Errorf("quota exhausted")).RateLimited)

	// 可重试但不属于限流类
	c := Classify(fmt.Errorf("connection timeout"))
	assert.True(t, c.Retryable)
	assert.False(t, c.RateLimited)
}

func TestKindMappingOrder(t *testing.T) {
	cases := []struct {
		detail string
		kind   Kind
	}{
		{"429 resource_exhausted", KindRateLimited},
		{"fetch failed: network unreachable", KindTransient},
		{"candidate blocked by SAFETY", KindContentFiltered},
		{"unexpected end of json input", KindMalformedResponse},
		{"something completely different", KindUnknown},
		// 限流优先于网络类
		{"quota exceeded due to network burst", KindRateLimited},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.kind, Classify(fmt.Errorf("%s", tc.detail)).Kind, tc.detail)
	}
}

func TestErrorFormatTruncatesDetail(t *testing.T) {
	long := strings.Repeat("x", 1000)
	c := Classify(fmt.Errorf("timeout %s", long))

	msg := c.Error()
	require.Contains(t, msg, "[detail]: ")
	assert.True(t, strings.HasSuffix(msg, "..."))

	tail := msg[strings.Index(msg, "[detail]: ")+len("[detail]: "):]
	assert.LessOrEqual(t, len(tail), detailLimit+len("..."))
}

func TestErrorFormatKeepsValidUTF8(t *testing.T) {
	// 中文诊断串超过截断上限时不能从多字节序列中间切开
	long := strings.Repeat("模型超时，", 100)
	c := Classify(fmt.Errorf("timeout %s", long))

	msg := c.Error()
	assert.True(t, utf8.ValidString(msg))

	tail := msg[strings.Index(msg, "[detail]: ")+len("[detail]: "):]
	assert.LessOrEqual(t, len(tail), detailLimit+len("..."))
}

func TestNormalizeNestedProviderJSON(t *testing.T) {
	raw := `{"error":{"code":429,"status":"RESOURCE_EXHAUSTED","message":"Quota exceeded"}}`
	detail := Normalize(fmt.Errorf("%s", raw))

	assert.Contains(t, detail, "429")
	assert.Contains(t, detail, "resource_exhausted")

	c := Classify(fmt.Errorf("%s", raw))
	assert.Equal(t, KindRateLimited, c.Kind)
	assert.True(t, c.Retryable)
}

func TestNormalizeNeverPanics(t *testing.T) {
	assert.NotPanics(t, func() {
		_ = Normalize(nil)
		_ = Normalize("plain string error")
		_ = Normalize(map[string]any{"weird": []int{1, 2, 3}})
		_ = Normalize(make(chan int)) // json.Marshal 失败，走字符串强转
	})
}

func TestClassifyIdempotent(t *testing.T) {
	c := Classify(fmt.Errorf("quota exceeded"))
	assert.Same(t, c, Classify(c))

	// 包一层也要能穿透
	wrapped := fmt.Errorf("run generation: %w", c)
	assert.Same(t, c, Classify(wrapped))
}

func TestWrapKeepsKindAndCause(t *testing.T) {
	cause := fmt.Errorf("post http://queue: connection refused")
	c := Wrap(cause, KindRemoteUnavailable)

	assert.Equal(t, KindRemoteUnavailable, c.Kind)
	assert.ErrorIs(t, c, cause)
	assert.True(t, IsKind(c, KindRemoteUnavailable))
}
