package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell-ai-api/internal/domain/entity"
)

// fakeChatModel 返回固定内容并统计调用次数
type fakeChatModel struct {
	content string
	err     error
	calls   int
}

func (f *fakeChatModel) Generate(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &schema.Message{Role: schema.Assistant, Content: f.content}, nil
}

func (f *fakeChatModel) Stream(ctx context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	sr, sw := schema.Pipe[*schema.Message](1)
	go func() {
		sw.Send(&schema.Message{Role: schema.Assistant, Content: f.content}, nil)
		sw.Close()
	}()
	return sr, nil
}

type fakeFactory struct {
	m model.BaseChatModel
}

func (f *fakeFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	return f.m, nil
}

// fakeRemote 可配置为成功或失败的远端通道
type fakeRemote struct {
	result *Result
	err    error
	calls  int
	lastOp entity.Operation
}

func (f *fakeRemote) Run(ctx context.Context, req *Request, onProgress ProgressFunc) (*Result, error) {
	f.calls++
	f.lastOp = req.Operation
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func newLocalParts(content string) (*Invoker, *Retrier, *fakeChatModel) {
	cm := &fakeChatModel{content: content}
	invoker := NewInvoker(&fakeFactory{m: cm})
	retrier := NewRetrier(RetryPolicy{MaxAttempts: 0, BaseDelay: 0, Multiplier: 1, RateLimitMultiplier: 1})
	return invoker, retrier, cm
}

func TestEngineRemoteSuccessSkipsLocal(t *testing.T) {
	invoker, retrier, cm := newLocalParts("unused")
	remote := &fakeRemote{result: &Result{Text: "remote text"}}
	engine := NewEngine(ModeAuto, remote, invoker, retrier)

	result, err := engine.Generate(context.Background(), &Request{Operation: entity.OperationIdeas}, nil)
	require.NoError(t, err)
	assert.Equal(t, "remote text", result.Text)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, 0, cm.calls)
}

func TestEngineFallbackToLocalOnRemoteFailure(t *testing.T) {
	invoker, retrier, cm := newLocalParts("local text")
	remote := &fakeRemote{err: errors.New("connection refused")}
	engine := NewEngine(ModeAuto, remote, invoker, retrier)

	req := &Request{Operation: entity.OperationChapter, ChapterOutline: "第一章大纲"}
	result, err := engine.Generate(context.Background(), req, nil)

	require.NoError(t, err)
	// 远端失败对调用方不可见，本地恰好执行一次且拿到同一份请求
	assert.Equal(t, "local text", result.Text)
	assert.Equal(t, 1, cm.calls)
	assert.Equal(t, entity.OperationChapter, remote.lastOp)
}

func TestEngineLocalFailurePropagates(t *testing.T) {
	cm := &fakeChatModel{err: errors.New("invalid api key")}
	invoker := NewInvoker(&fakeFactory{m: cm})
	retrier := NewRetrier(RetryPolicy{MaxAttempts: 0, Multiplier: 1, RateLimitMultiplier: 1})
	remote := &fakeRemote{err: errors.New("remote down")}
	engine := NewEngine(ModeAuto, remote, invoker, retrier)

	_, err := engine.Generate(context.Background(), &Request{Operation: entity.OperationRewrite}, nil)
	require.Error(t, err)
	// 透出的是本地错误，而不是被吞掉的远端错误
	assert.NotContains(t, err.Error(), "remote down")
}

func TestEngineLocalModeNeverCallsRemote(t *testing.T) {
	invoker, retrier, _ := newLocalParts("local only")
	remote := &fakeRemote{result: &Result{Text: "unused"}}
	engine := NewEngine(ModeLocal, remote, invoker, retrier)

	result, err := engine.Generate(context.Background(), &Request{Operation: entity.OperationIdeas}, nil)
	require.NoError(t, err)
	assert.Equal(t, "local only", result.Text)
	assert.Equal(t, 0, remote.calls)
}

func TestEngineFinalProgressIsHundred(t *testing.T) {
	invoker, retrier, _ := newLocalParts("done")
	engine := NewEngine(ModeLocal, nil, invoker, retrier)

	var events []ProgressEvent
	_, err := engine.Generate(context.Background(), &Request{Operation: entity.OperationIdeas},
		func(ev ProgressEvent) { events = append(events, ev) })

	require.NoError(t, err)
	require.NotEmpty(t, events)
	assert.Equal(t, 100, events[len(events)-1].Percent)
}

func TestEngineStructuredResultParsed(t *testing.T) {
	invoker, retrier, _ := newLocalParts("```json\n{\"nodes\":[]}\n```")
	engine := NewEngine(ModeLocal, nil, invoker, retrier)

	req := &Request{
		Operation:      entity.OperationIdeas,
		ResponseSchema: map[string]any{"type": "object"},
	}
	result, err := engine.Generate(context.Background(), req, nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[]}`, string(result.JSON))
}
