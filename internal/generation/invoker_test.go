package generation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/generation/contextcache"
	apperrors "inkwell-ai-api/pkg/errors"
)

// chunkedChatModel 按给定分片吐流式输出
type chunkedChatModel struct {
	chunks []string
}

func (f *chunkedChatModel) Generate(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return &schema.Message{Role: schema.Assistant, Content: strings.Join(f.chunks, "")}, nil
}

func (f *chunkedChatModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](len(f.chunks) + 1)
	go func() {
		for _, c := range f.chunks {
			sw.Send(&schema.Message{Role: schema.Assistant, Content: c}, nil)
		}
		sw.Close()
	}()
	return sr, nil
}

func TestInvokerStreamAccumulatesChunks(t *testing.T) {
	cm := &chunkedChatModel{chunks: []string{"夜色", "渐深，", "钟楼敲响。"}}
	invoker := NewInvoker(&fakeFactory{m: cm})

	var events []ProgressEvent
	result, err := invoker.Invoke(context.Background(),
		&Request{Operation: entity.OperationChapter, ChapterOutline: "第一章", Stream: true},
		func(ev ProgressEvent) { events = append(events, ev) })

	require.NoError(t, err)
	assert.Equal(t, "夜色渐深，钟楼敲响。", result.Text)

	// 每个分片各透出一次流式事件，顺序与产出一致
	var logs []string
	for _, ev := range events {
		if ev.Stage == "streaming" {
			logs = append(logs, ev.Log)
		}
	}
	assert.Equal(t, []string{"夜色", "渐深，", "钟楼敲响。"}, logs)
}

func TestInvokerStreamEmptyIsMalformed(t *testing.T) {
	cm := &chunkedChatModel{}
	invoker := NewInvoker(&fakeFactory{m: cm})

	_, err := invoker.Invoke(context.Background(),
		&Request{Operation: entity.OperationIdeas, Prompt: "点子", Stream: true}, nil)

	require.Error(t, err)
	assert.True(t, apperrors.IsKind(err, apperrors.KindMalformedResponse))
	assert.Contains(t, err.Error(), "empty llm stream")
}

func TestInvokerStreamStructuredSanitized(t *testing.T) {
	cm := &chunkedChatModel{chunks: []string{"```json\n", `{"ideas":[`, `]}`, "\n```"}}
	invoker := NewInvoker(&fakeFactory{m: cm})

	result, err := invoker.Invoke(context.Background(), &Request{
		Operation:      entity.OperationIdeas,
		Prompt:         "点子",
		Stream:         true,
		ResponseSchema: map[string]any{"type": "object"},
	}, nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ideas":[]}`, string(result.JSON))
}

func TestInvokerContextCachePopulatedOnLargeContext(t *testing.T) {
	cache := contextcache.New(16, time.Minute)
	cm := &fakeChatModel{content: "ok"}
	invoker := NewInvoker(&fakeFactory{m: cm}, WithContextCache(cache))

	req := &Request{
		Operation: entity.OperationChapter,
		Model:     "gpt-4o",
		Context:   strings.Repeat("前情提要。", 1024),
	}
	_, err := invoker.Invoke(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())

	// 同样的上下文第二次调用命中同一条目，不新增
	_, err = invoker.Invoke(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, cache.Len())
}

func TestInvokerContextCacheSkipsSmallContext(t *testing.T) {
	cache := contextcache.New(16, time.Minute)
	cm := &fakeChatModel{content: "ok"}
	invoker := NewInvoker(&fakeFactory{m: cm}, WithContextCache(cache))

	req := &Request{
		Operation: entity.OperationIdeas,
		Prompt:    "一句话点子",
		Context:   "很短的上下文",
	}
	_, err := invoker.Invoke(context.Background(), req, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, cache.Len())
}
