package generation

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"time"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/generation/contextcache"
	"inkwell-ai-api/internal/infrastructure/llm"
	apperrors "inkwell-ai-api/pkg/errors"
	"inkwell-ai-api/pkg/logger"
	"inkwell-ai-api/pkg/metrics"
)

// ChatModelFactory 按提供商名称获取 ChatModel
type ChatModelFactory interface {
	Get(ctx context.Context, name string) (model.BaseChatModel, error)
}

// minContextCacheChars 低于该长度的上下文不值得走缓存路由
const minContextCacheChars = 2048

// Invoker 单次模型调用。自身不做重试，由调用方用 Retrier 包裹。
type Invoker struct {
	factory ChatModelFactory
	cache   *contextcache.Cache // 可为 nil
}

// InvokerOption Invoker 可选配置
type InvokerOption func(*Invoker)

// WithContextCache 启用大上下文的缓存路由
func WithContextCache(c *contextcache.Cache) InvokerOption {
	return func(i *Invoker) { i.cache = c }
}

// NewInvoker 创建模型调用器
func NewInvoker(factory ChatModelFactory, opts ...InvokerOption) *Invoker {
	i := &Invoker{factory: factory}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Invoke 发起一次生成请求并抽取使用指标。
// 结构化请求优先带 response_format=json_schema；提供商不支持时
// 降级为纯 Prompt 约束重发一次，这不算重试。
func (i *Invoker) Invoke(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error) {
	chatModel, err := i.factory.Get(ctx, req.Provider)
	if err != nil {
		return nil, err
	}

	msgs, err := buildMessages(req)
	if err != nil {
		return nil, err
	}
	cacheKey := i.contextCacheKey(ctx, req)

	start := time.Now()
	var outMsg *schema.Message
	if req.Stream {
		outMsg, err = i.streamOnce(ctx, chatModel, req, msgs, cacheKey, onProgress)
	} else {
		outMsg, err = i.generateOnce(ctx, chatModel, req, msgs, cacheKey)
	}
	latency := time.Since(start)

	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.LLMCallTotal.WithLabelValues(req.Provider, req.Model, status).Inc()
	metrics.LLMCallDuration.WithLabelValues(req.Provider, req.Model).Observe(latency.Seconds())

	if err != nil {
		return nil, err
	}
	if outMsg == nil || strings.TrimSpace(outMsg.Content) == "" {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "empty llm response")
	}

	usage := extractUsage(req, outMsg, latency)
	metrics.LLMTokensUsed.WithLabelValues(req.Provider, usage.Model, "prompt").Add(float64(usage.InputTokens))
	metrics.LLMTokensUsed.WithLabelValues(req.Provider, usage.Model, "completion").Add(float64(usage.OutputTokens))

	result := &Result{Text: outMsg.Content, Usage: usage}
	if req.Structured() {
		cleaned := SanitizeJSON(outMsg.Content)
		if !json.Valid([]byte(cleaned)) {
			return nil, apperrors.New(apperrors.KindMalformedResponse,
				"json parse failed after sanitize: "+truncateForDetail(cleaned))
		}
		result.JSON = json.RawMessage(cleaned)
	}
	return result, nil
}

// contextCacheKey 为大体量上下文计算缓存路由键。
// 缓存仅作建议：命中说明同样的上下文刚发给过提供商，
// 带相同的路由键可提高提供商侧 prompt cache 的命中率。
func (i *Invoker) contextCacheKey(ctx context.Context, req *Request) string {
	if i.cache == nil || len(req.Context) < minContextCacheChars {
		return ""
	}
	key := contextcache.Key(req.Context, req.Model)
	if _, ok := i.cache.Get(key); ok {
		logger.Debug(ctx, "context cache hit", "model", req.Model, "key", key)
	} else {
		i.cache.Set(key, req.Model)
	}
	return key
}

func (i *Invoker) generateOnce(ctx context.Context, chatModel model.BaseChatModel, req *Request, msgs []*schema.Message, cacheKey string) (*schema.Message, error) {
	outMsg, err := chatModel.Generate(ctx, msgs, buildModelOptions(req, true, cacheKey)...)
	if err != nil && req.Structured() && llm.IsResponseFormatUnsupportedError(err) {
		logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
			"provider", req.Provider,
			"model", req.Model,
			"error", err.Error(),
		)
		outMsg, err = chatModel.Generate(ctx, msgs, buildModelOptions(req, false, cacheKey)...)
	}
	return outMsg, err
}

// streamOnce 消费流式输出，经进度回调透出增量文本。
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息。
func (i *Invoker) streamOnce(ctx context.Context, chatModel model.BaseChatModel, req *Request, msgs []*schema.Message, cacheKey string, onProgress ProgressFunc) (*schema.Message, error) {
	reader, err := chatModel.Stream(ctx, msgs, buildModelOptions(req, true, cacheKey)...)
	if err != nil && req.Structured() && llm.IsResponseFormatUnsupportedError(err) {
		if reader != nil {
			reader.Close()
		}
		logger.Warn(ctx, "llm json_schema not supported for stream, fallback to prompt-only",
			"provider", req.Provider,
			"model", req.Model,
			"error", err.Error(),
		)
		reader, err = chatModel.Stream(ctx, msgs, buildModelOptions(req, false, cacheKey)...)
	}
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var chunks []*schema.Message
	for {
		chunk, recvErr := reader.Recv()
		if recvErr != nil {
			if errors.Is(recvErr, io.EOF) {
				break
			}
			return nil, recvErr
		}
		chunks = append(chunks, chunk)
		if chunk.Content != "" {
			notify(onProgress, ProgressEvent{
				Stage:   "streaming",
				Percent: remoteProgressFloor,
				Log:     chunk.Content,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, apperrors.New(apperrors.KindMalformedResponse, "empty llm stream")
	}
	return schema.ConcatMessages(chunks)
}

func buildModelOptions(req *Request, enableSchema bool, cacheKey string) []model.Option {
	opts := make([]model.Option, 0, 2)
	if strings.TrimSpace(req.Model) != "" {
		opts = append(opts, model.WithModel(strings.TrimSpace(req.Model)))
	}

	extra := make(map[string]any, 2)
	if cacheKey != "" {
		extra["prompt_cache_key"] = cacheKey
	}
	if enableSchema && req.Structured() {
		// 优先使用 response_format=json_schema 强约束；失败时降级为纯 Prompt 约束。
		extra["response_format"] = map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   string(req.Operation) + "_result",
				"strict": false,
				"schema": req.ResponseSchema,
			},
		}
	}
	if len(extra) > 0 {
		opts = append(opts, openaiopts.WithExtraFields(extra))
	}
	return opts
}

// extractUsage 从响应元数据抽取使用指标，缺失的计数按零处理
func extractUsage(req *Request, outMsg *schema.Message, latency time.Duration) entity.UsageMetrics {
	usage := entity.UsageMetrics{
		Provider:  req.Provider,
		Model:     req.Model,
		LatencyMs: latency.Milliseconds(),
	}
	if outMsg.ResponseMeta != nil && outMsg.ResponseMeta.Usage != nil {
		usage.InputTokens = int64(outMsg.ResponseMeta.Usage.PromptTokens)
		usage.OutputTokens = int64(outMsg.ResponseMeta.Usage.CompletionTokens)
		usage.TotalTokens = int64(outMsg.ResponseMeta.Usage.TotalTokens)
	}
	return usage
}

func truncateForDetail(s string) string {
	if len(s) > 120 {
		return s[:120]
	}
	return s
}
