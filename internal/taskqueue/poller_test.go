package taskqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell-ai-api/internal/domain/entity"
	apperrors "inkwell-ai-api/pkg/errors"
)

// scriptedFetcher 依次返回预置的快照序列，超出后停在最后一个
type scriptedFetcher struct {
	snapshots []*TaskSnapshot
	calls     int
}

func (f *scriptedFetcher) GetTask(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	idx := f.calls
	if idx >= len(f.snapshots) {
		idx = len(f.snapshots) - 1
	}
	f.calls++
	return f.snapshots[idx], nil
}

func newTestPoller(fetcher TaskFetcher, maxAttempts int) *Poller {
	p := NewPoller(fetcher, time.Millisecond, maxAttempts)
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}

func TestPollReturnsOnFirstCompleted(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*TaskSnapshot{
		{Status: entity.TaskStatusQueued, Progress: 0},
		{Status: entity.TaskStatusRunning, Progress: 40},
		{Status: entity.TaskStatusCompleted, Progress: 100, Result: json.RawMessage(`{"text":"done"}`)},
	}}
	p := newTestPoller(fetcher, 60)

	result, err := p.Poll(context.Background(), "t1", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"text":"done"}`, string(result))
	assert.Equal(t, 3, fetcher.calls)
}

func TestPollFailsImmediatelyOnFailed(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*TaskSnapshot{
		{Status: entity.TaskStatusFailed, Error: "model exploded"},
	}}
	p := newTestPoller(fetcher, 60)

	_, err := p.Poll(context.Background(), "t1", nil)
	require.Error(t, err)
	assert.Equal(t, 1, fetcher.calls)

	var ce *apperrors.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, apperrors.KindRemoteUnavailable, ce.Kind)
	assert.Contains(t, ce.Detail, "model exploded")
}

func TestPollFailsImmediatelyOnCancelled(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*TaskSnapshot{
		{Status: entity.TaskStatusCancelled},
	}}
	p := newTestPoller(fetcher, 60)

	_, err := p.Poll(context.Background(), "t1", nil)
	require.Error(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestPollTimesOutAfterMaxAttempts(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*TaskSnapshot{
		{Status: entity.TaskStatusRunning, Progress: 10},
	}}
	p := newTestPoller(fetcher, 5)

	_, err := p.Poll(context.Background(), "t1", nil)
	require.Error(t, err)
	// 恰好 maxAttempts 次非终态观测后超时
	assert.Equal(t, 5, fetcher.calls)

	var ce *apperrors.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, apperrors.KindExhausted, ce.Kind)
}

func TestPollInvokesSnapshotCallback(t *testing.T) {
	fetcher := &scriptedFetcher{snapshots: []*TaskSnapshot{
		{Status: entity.TaskStatusRunning, Progress: 30},
		{Status: entity.TaskStatusCompleted, Progress: 100, Result: json.RawMessage(`{}`)},
	}}
	p := newTestPoller(fetcher, 60)

	var seen []entity.TaskStatus
	_, err := p.Poll(context.Background(), "t1", func(snap *TaskSnapshot) {
		seen = append(seen, snap.Status)
	})
	require.NoError(t, err)
	assert.Equal(t, []entity.TaskStatus{entity.TaskStatusRunning, entity.TaskStatusCompleted}, seen)
}
