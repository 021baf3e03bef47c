package dto

import (
	"encoding/json"

	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/generation"
)

// GenerateRequest 提交生成任务的请求体，操作类型取自 URL
type GenerateRequest struct {
	ProjectID         string              `json:"project_id"`
	Provider          string              `json:"provider,omitempty"`
	Model             string              `json:"model,omitempty"`
	Language          string              `json:"language,omitempty"`
	SystemInstruction string              `json:"system_instruction,omitempty"`
	Context           string              `json:"context,omitempty"`
	Prompt            string              `json:"prompt,omitempty"`
	ChapterOutline    string              `json:"chapter_outline,omitempty"`
	TargetWordCount   int                 `json:"target_word_count,omitempty"`
	Node              *entity.OutlineNode `json:"node,omitempty"`
	SourceText        string              `json:"source_text,omitempty"`
	Instruction       string              `json:"instruction,omitempty"`
	ResponseSchema    map[string]any      `json:"response_schema,omitempty"`
}

// ToGenerationRequest 转换为内部生成请求
func (r *GenerateRequest) ToGenerationRequest(op entity.Operation) *generation.Request {
	return &generation.Request{
		Operation:         op,
		ProjectID:         r.ProjectID,
		Provider:          r.Provider,
		Model:             r.Model,
		Language:          r.Language,
		SystemInstruction: r.SystemInstruction,
		Context:           r.Context,
		Prompt:            r.Prompt,
		ChapterOutline:    r.ChapterOutline,
		TargetWordCount:   r.TargetWordCount,
		Node:              r.Node,
		SourceText:        r.SourceText,
		Instruction:       r.Instruction,
		ResponseSchema:    r.ResponseSchema,
	}
}

// SubmitTaskData 任务提交响应
type SubmitTaskData struct {
	TaskID string `json:"taskId"`
	Status string `json:"status"`
}

// TaskStatusData 任务状态查询响应
type TaskStatusData struct {
	Status   string          `json:"status"`
	Progress int             `json:"progress"`
	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// NewTaskStatusData 从任务实体构造状态响应
func NewTaskStatusData(task *entity.GenerationTask) TaskStatusData {
	return TaskStatusData{
		Status:   string(task.Status),
		Progress: task.Progress,
		Result:   task.OutputResult,
		Error:    task.ErrorMessage,
	}
}

// TaskListItem 任务列表项
type TaskListItem struct {
	TaskID    string `json:"taskId"`
	Operation string `json:"operation"`
	Status    string `json:"status"`
	Progress  int    `json:"progress"`
	CreatedAt string `json:"created_at"`
}

// TaskListData 任务列表响应
type TaskListData struct {
	Items []TaskListItem `json:"items"`
	Total int64          `json:"total"`
}
