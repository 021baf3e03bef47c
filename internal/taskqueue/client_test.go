package taskqueue

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"inkwell-ai-api/internal/domain/entity"
	apperrors "inkwell-ai-api/pkg/errors"
)

func TestClientSubmit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate/chapter", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "chapter", body["operation"])

		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"taskId": "task-42", "status": "queued"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	taskID, err := c.Submit(context.Background(), entity.OperationChapter,
		json.RawMessage(`{"operation":"chapter"}`))
	require.NoError(t, err)
	assert.Equal(t, "task-42", taskID)
}

func TestClientGetTask(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/tasks/task-42", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data": map[string]any{
				"status":   "running",
				"progress": 55,
			},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	snap, err := c.GetTask(context.Background(), "task-42")
	require.NoError(t, err)
	assert.Equal(t, entity.TaskStatusRunning, snap.Status)
	assert.Equal(t, 55, snap.Progress)
	assert.Equal(t, "task-42", snap.TaskID)
}

func TestClientNon2xxWithErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "quota exceeded for project"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.Submit(context.Background(), entity.OperationIdeas, json.RawMessage(`{}`))
	require.Error(t, err)

	var ce *apperrors.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Detail, "quota exceeded")
}

func TestClientNon2xxWithoutBodyFallsBackToStatusText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	_, err := c.GetTask(context.Background(), "task-1")
	require.Error(t, err)

	var ce *apperrors.ClassifiedError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Detail, "http 502: bad gateway")
}

func TestClientCancel(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	require.NoError(t, c.Cancel(context.Background(), "task-9"))
	assert.Equal(t, http.MethodDelete, gotMethod)
	assert.Equal(t, "/api/tasks/task-9", gotPath)
}
