package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTaskLifecycle(t *testing.T) {
	task := NewGenerationTask("proj-1", OperationChapter, json.RawMessage(`{"chapter":1}`))
	assert.Equal(t, TaskStatusQueued, task.Status)
	assert.False(t, task.Status.Terminal())

	task.Start()
	assert.Equal(t, TaskStatusRunning, task.Status)
	assert.NotNil(t, task.StartedAt)

	task.Complete(json.RawMessage(`{"content":"..."}`))
	assert.Equal(t, TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.True(t, task.Status.Terminal())
	assert.NotNil(t, task.CompletedAt)
}

func TestTaskFail(t *testing.T) {
	task := NewGenerationTask("proj-1", OperationIdeas, nil)
	task.Start()
	task.Fail("model overloaded")

	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "model overloaded", task.ErrorMessage)
	assert.True(t, task.Status.Terminal())
}

func TestTaskCancel(t *testing.T) {
	task := NewGenerationTask("proj-1", OperationTrends, nil)
	task.Cancel()
	assert.Equal(t, TaskStatusCancelled, task.Status)
	assert.True(t, task.Status.Terminal())
}

func TestUpdateProgressClamps(t *testing.T) {
	task := NewGenerationTask("proj-1", OperationRewrite, nil)

	task.UpdateProgress(-5)
	assert.Equal(t, 0, task.Progress)

	task.UpdateProgress(55)
	assert.Equal(t, 55, task.Progress)

	task.UpdateProgress(150)
	assert.Equal(t, 100, task.Progress)
}
