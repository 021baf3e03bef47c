// Package taskqueue 提供远端任务队列的 HTTP 客户端与轮询器
package taskqueue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/pkg/errors"
)

// TaskSnapshot 任务的最近一次只读快照
type TaskSnapshot struct {
	TaskID   string            `json:"task_id"`
	Status   entity.TaskStatus `json:"status"`
	Progress int               `json:"progress"`
	Result   json.RawMessage   `json:"result,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// envelope 任务服务的统一响应包装
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error,omitempty"`
}

// Client 任务队列 HTTP 客户端
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 创建任务队列客户端
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit 提交生成任务，返回任务 ID
func (c *Client) Submit(ctx context.Context, op entity.Operation, params json.RawMessage) (string, error) {
	var data struct {
		TaskID string `json:"taskId"`
		Status string `json:"status"`
	}
	url := fmt.Sprintf("%s/api/generate/%s", c.baseURL, op)
	if err := c.do(ctx, http.MethodPost, url, params, &data); err != nil {
		return "", err
	}
	if data.TaskID == "" {
		return "", errors.New(errors.KindRemoteUnavailable, "task queue returned empty task id")
	}
	return data.TaskID, nil
}

// GetTask 获取任务当前快照
func (c *Client) GetTask(ctx context.Context, taskID string) (*TaskSnapshot, error) {
	var snap TaskSnapshot
	url := fmt.Sprintf("%s/api/tasks/%s", c.baseURL, taskID)
	if err := c.do(ctx, http.MethodGet, url, nil, &snap); err != nil {
		return nil, err
	}
	snap.TaskID = taskID
	return &snap, nil
}

// Cancel 取消任务
func (c *Client) Cancel(ctx context.Context, taskID string) error {
	url := fmt.Sprintf("%s/api/tasks/%s", c.baseURL, taskID)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

// do 发送请求并解包统一响应。非 2xx 时优先取响应体里的
// error 字段，取不到则退回「HTTP <status>: <statusText>」。
func (c *Client) do(ctx context.Context, method, url string, body json.RawMessage, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return errors.Wrap(err, errors.KindRemoteUnavailable)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, errors.KindRemoteUnavailable)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, errors.KindRemoteUnavailable)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		if json.Unmarshal(respBody, &env) == nil && env.Error != "" {
			return errors.New(errors.KindRemoteUnavailable, env.Error)
		}
		return errors.New(errors.KindRemoteUnavailable,
			fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return errors.Wrap(err, errors.KindRemoteUnavailable)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = "task queue reported failure without message"
		}
		return errors.New(errors.KindRemoteUnavailable, msg)
	}
	if out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return errors.Wrap(err, errors.KindRemoteUnavailable)
		}
	}
	return nil
}
