// Package entity 定义领域实体
package entity

import (
	"encoding/json"
	"time"
)

// Operation 生成操作类型
type Operation string

const (
	OperationIdeas        Operation = "ideas"         // 每日灵感 / 故事创意
	OperationArchitecture Operation = "architecture"  // 小说架构
	OperationChapter      Operation = "chapter"       // 章节正文
	OperationOutlineRegen Operation = "outline_regen" // 大纲节点重生成
	OperationOutlineGrow  Operation = "outline_grow"  // 大纲节点扩写
	OperationRewrite      Operation = "rewrite"       // 自由改写
	OperationTrends       Operation = "trends"        // 趋势分析
)

// KnownOperations 所有可提交到任务队列的操作
var KnownOperations = map[Operation]bool{
	OperationIdeas:        true,
	OperationArchitecture: true,
	OperationChapter:      true,
	OperationOutlineRegen: true,
	OperationOutlineGrow:  true,
	OperationRewrite:      true,
	OperationTrends:       true,
}

// TaskStatus 任务状态
type TaskStatus string

const (
	TaskStatusQueued    TaskStatus = "queued"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// Terminal 判断状态是否为终态
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// GenerationTask 生成任务。远端队列侧拥有该实体；
// 客户端只持有任务 ID，通过轮询读取快照，从不直接修改。
type GenerationTask struct {
	ID           string          `json:"id"`
	ProjectID    string          `json:"project_id"`
	Operation    Operation       `json:"operation"`
	Status       TaskStatus      `json:"status"`
	Progress     int             `json:"progress"` // 0-100
	InputParams  json.RawMessage `json:"input_params"`
	OutputResult json.RawMessage `json:"output_result,omitempty"`
	ErrorMessage string          `json:"error_message,omitempty"`
	Provider     string          `json:"provider,omitempty"`
	Model        string          `json:"model,omitempty"`
	InputTokens  int             `json:"input_tokens,omitempty"`
	OutputTokens int             `json:"output_tokens,omitempty"`
	DurationMs   int             `json:"duration_ms,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	StartedAt    *time.Time      `json:"started_at,omitempty"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}

// NewGenerationTask 创建新任务
func NewGenerationTask(projectID string, op Operation, inputParams json.RawMessage) *GenerationTask {
	return &GenerationTask{
		ProjectID:   projectID,
		Operation:   op,
		Status:      TaskStatusQueued,
		InputParams: inputParams,
		CreatedAt:   time.Now(),
	}
}

// Start 开始执行任务
func (t *GenerationTask) Start() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// Complete 完成任务
func (t *GenerationTask) Complete(result json.RawMessage) {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.OutputResult = result
	t.Progress = 100
	t.CompletedAt = &now
	if t.StartedAt != nil {
		t.DurationMs = int(now.Sub(*t.StartedAt).Milliseconds())
	}
}

// Fail 任务失败
func (t *GenerationTask) Fail(errMsg string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.ErrorMessage = errMsg
	t.CompletedAt = &now
	if t.StartedAt != nil {
		t.DurationMs = int(now.Sub(*t.StartedAt).Milliseconds())
	}
}

// Cancel 取消任务
func (t *GenerationTask) Cancel() {
	now := time.Now()
	t.Status = TaskStatusCancelled
	t.CompletedAt = &now
}

// SetUsage 记录 LLM 使用指标
func (t *GenerationTask) SetUsage(u UsageMetrics) {
	t.Provider = u.Provider
	t.Model = u.Model
	t.InputTokens = int(u.InputTokens)
	t.OutputTokens = int(u.OutputTokens)
}

// UpdateProgress 更新任务进度，越界值截断到 [0,100]
func (t *GenerationTask) UpdateProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	t.Progress = progress
}
