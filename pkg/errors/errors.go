// Package errors 提供生成链路统一的错误分类
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// Kind 错误类别
type Kind string

// 预定义错误类别
const (
	KindRateLimited       Kind = "rate_limited"       // 配额 / 429
	KindTransient         Kind = "transient"          // 网络 / 超时 / 5xx
	KindContentFiltered   Kind = "content_filtered"   // 安全策略拦截
	KindMalformedResponse Kind = "malformed_response" // 模型输出无法解析
	KindRemoteUnavailable Kind = "remote_unavailable" // 远端任务通道失败
	KindExhausted         Kind = "exhausted"          // 重试 / 轮询次数耗尽
	KindUnknown           Kind = "unknown"
)

// 面向用户的错误文案（按类别）
const (
	msgRateLimited     = "AI service quota exceeded, please try again later"
	msgTransient       = "network connection to the AI service failed, please retry"
	msgContentFiltered = "the request was blocked by the content safety filter"
	msgMalformed       = "the model returned a response that could not be parsed"
	msgExhausted       = "the generation did not finish in time, please try again"
	msgUnknown         = "an unexpected error occurred during generation"
)

// detailLimit 透出给用户的原始诊断截断长度
const detailLimit = 300

// retryableMarkers 可重试错误的特征子串（诊断串已统一为小写）
var retryableMarkers = []string{
	"429", "resource_exhausted", "quota",
	"503", "504", "500", "overloaded",
	"fetch failed", "timeout", "network", "econnreset",
}

// rateLimitMarkers 限流类错误的特征子串，退避时延长等待
var rateLimitMarkers = []string{"429", "quota", "resource_exhausted"}

// ClassifiedError 带类别标签的错误。整个系统只在模型调用边界
// 做一次归一化，其余代码只接触该类型，不再解析原始异常。
type ClassifiedError struct {
	Kind        Kind
	Retryable   bool
	RateLimited bool
	Message     string // 面向用户的文案
	Detail      string // 归一化后的完整诊断串
	Err         error
}

// Error 实现 error 接口，格式为「用户文案 + 截断诊断」
func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%s\n\n[detail]: %s...", e.Message, truncate(e.Detail, detailLimit))
}

// Unwrap 返回底层错误
func (e *ClassifiedError) Unwrap() error {
	return e.Err
}

// Classify 将任意错误归一化为 ClassifiedError。
// 已分类的错误原样返回，保证边界只归一化一次。
func Classify(err error) *ClassifiedError {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce
	}

	detail := Normalize(err)

	c := &ClassifiedError{
		Kind:        kindOf(detail),
		Retryable:   containsAny(detail, retryableMarkers),
		RateLimited: containsAny(detail, rateLimitMarkers),
		Detail:      detail,
		Err:         err,
	}
	c.Message = MessageFor(c.Kind)
	return c
}

// New 构造指定类别的分类错误
func New(kind Kind, detail string) *ClassifiedError {
	return &ClassifiedError{
		Kind:        kind,
		Retryable:   containsAny(strings.ToLower(detail), retryableMarkers),
		RateLimited: containsAny(strings.ToLower(detail), rateLimitMarkers),
		Message:     MessageFor(kind),
		Detail:      strings.ToLower(detail),
	}
}

// Wrap 包装底层错误为指定类别
func Wrap(err error, kind Kind) *ClassifiedError {
	c := New(kind, Normalize(err))
	c.Err = err
	return c
}

// Normalize 将任意值转成可做子串匹配的小写诊断串。
// 错误消息本身可能是提供商返回的 JSON，解析后拼接嵌套的
// code/status/message 字段；任何失败都退回字符串强转，绝不 panic。
func Normalize(v any) string {
	var parts []string

	switch val := v.(type) {
	case nil:
		return ""
	case error:
		parts = append(parts, val.Error())
		parts = append(parts, jsonFields(val.Error())...)
		for inner := errors.Unwrap(val); inner != nil; inner = errors.Unwrap(inner) {
			parts = append(parts, inner.Error())
		}
	case string:
		parts = append(parts, val)
	default:
		if b, err := json.Marshal(val); err == nil {
			parts = append(parts, string(b))
		} else {
			parts = append(parts, fmt.Sprint(val))
		}
	}

	return strings.ToLower(strings.Join(parts, " | "))
}

// jsonFields 尝试把消息按 JSON 解析，抽取嵌套的错误字段
func jsonFields(msg string) []string {
	msg = strings.TrimSpace(msg)
	if !strings.HasPrefix(msg, "{") {
		return nil
	}

	var m map[string]any
	if err := json.Unmarshal([]byte(msg), &m); err != nil {
		return nil
	}

	var out []string
	collectErrorFields(m, &out)
	return out
}

func collectErrorFields(m map[string]any, out *[]string) {
	for _, key := range []string{"code", "status", "message", "error"} {
		switch v := m[key].(type) {
		case map[string]any:
			collectErrorFields(v, out)
		case nil:
		default:
			*out = append(*out, fmt.Sprint(v))
		}
	}
}

// kindOf 按固定优先级把诊断串映射到类别（先命中先生效）
func kindOf(detail string) Kind {
	switch {
	case containsAny(detail, rateLimitMarkers):
		return KindRateLimited
	case containsAny(detail, []string{"timeout", "network", "fetch"}):
		return KindTransient
	case containsAny(detail, []string{"safety", "blocked", "finishreason"}):
		return KindContentFiltered
	case strings.Contains(detail, "json"):
		return KindMalformedResponse
	default:
		return KindUnknown
	}
}

// MessageFor 返回类别对应的用户文案
func MessageFor(kind Kind) string {
	switch kind {
	case KindRateLimited:
		return msgRateLimited
	case KindTransient, KindRemoteUnavailable:
		return msgTransient
	case KindContentFiltered:
		return msgContentFiltered
	case KindMalformedResponse:
		return msgMalformed
	case KindExhausted:
		return msgExhausted
	default:
		return msgUnknown
	}
}

// HTTPStatus 类别到 HTTP 状态码的映射（供任务服务透出）
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindRateLimited:
		return http.StatusTooManyRequests
	case KindTransient, KindRemoteUnavailable:
		return http.StatusServiceUnavailable
	case KindContentFiltered:
		return http.StatusUnprocessableEntity
	case KindExhausted:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsRetryable 判断错误是否可重试
func IsRetryable(err error) bool {
	return Classify(err).Retryable
}

// IsRateLimited 判断错误是否属于限流类
func IsRateLimited(err error) bool {
	return Classify(err).RateLimited
}

// IsKind 判断错误是否属于指定类别
func IsKind(err error, kind Kind) bool {
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Kind == kind
	}
	return false
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// truncate 按字节上限截断，回退到 rune 边界避免切出非法 UTF-8
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
