package generation

import (
	"encoding/json"

	"inkwell-ai-api/internal/domain/entity"
)

// Request 一次逻辑生成请求。按操作类型携带不同载荷，
// 构造后不可变，随用户动作逐次创建。
type Request struct {
	Operation entity.Operation `json:"operation"`
	ProjectID string           `json:"project_id,omitempty"`

	// 模型选路
	Provider          string `json:"provider,omitempty"`
	Model             string `json:"model,omitempty"`
	Language          string `json:"language,omitempty"`
	SystemInstruction string `json:"system_instruction,omitempty"`

	// Context 随请求附带的参考上下文（前情、设定集等），
	// 体量大时经上下文缓存做提供商侧的缓存路由
	Context string `json:"context,omitempty"`

	// 操作载荷（按 Operation 取用对应字段）
	Prompt          string              `json:"prompt,omitempty"`           // ideas / architecture / rewrite / trends
	ChapterOutline  string              `json:"chapter_outline,omitempty"`  // chapter
	TargetWordCount int                 `json:"target_word_count,omitempty"` // chapter
	Node            *entity.OutlineNode `json:"node,omitempty"`             // outline_regen / outline_grow
	SourceText      string              `json:"source_text,omitempty"`      // rewrite
	Instruction     string              `json:"instruction,omitempty"`      // rewrite / outline_grow

	// ResponseSchema 非空时要求模型直接输出符合该 JSON Schema 的结构化结果
	ResponseSchema map[string]any `json:"response_schema,omitempty"`

	// Stream 为真时走流式通道，经进度回调透出增量文本
	Stream bool `json:"stream,omitempty"`
}

// Result 一次生成的最终产物
type Result struct {
	Text  string              `json:"text"`
	JSON  json.RawMessage     `json:"json,omitempty"` // 结构化操作清洗并校验后的 JSON
	Usage entity.UsageMetrics `json:"usage"`
}

// Structured 判断该操作是否期望结构化 JSON 输出
func (r *Request) Structured() bool {
	return r.ResponseSchema != nil
}

// TaskParams 序列化为远端任务队列的入参
func (r *Request) TaskParams() (json.RawMessage, error) {
	return json.Marshal(r)
}
