package entity

// UsageMetrics LLM 调用使用指标
type UsageMetrics struct {
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	InputTokens  int64  `json:"input_tokens"`
	OutputTokens int64  `json:"output_tokens"`
	TotalTokens  int64  `json:"total_tokens"`
	LatencyMs    int64  `json:"latency_ms"`
}

// Add 累加另一次调用的使用量
func (u *UsageMetrics) Add(other UsageMetrics) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.TotalTokens += other.TotalTokens
	u.LatencyMs += other.LatencyMs
	if other.Model != "" {
		u.Model = other.Model
	}
	if other.Provider != "" {
		u.Provider = other.Provider
	}
}
