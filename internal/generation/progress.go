package generation

import "inkwell-ai-api/internal/domain/entity"

// 远端轮询阶段在整体进度中占用的区间，前后留给提交与结果处理阶段。
const (
	remoteProgressFloor = 20
	remoteProgressCeil  = 90
)

// ProgressFunc 进度回调。每个逻辑操作会被调用零到多次；
// 成功结束时最后一次调用的 percent 恒为 100。
type ProgressFunc func(event ProgressEvent)

// ProgressEvent 单次进度通知
type ProgressEvent struct {
	Stage   string               `json:"stage"`
	Percent int                  `json:"percent"` // 0-100
	Log     string               `json:"log,omitempty"`
	Usage   *entity.UsageMetrics `json:"usage,omitempty"`
}

// notify 空回调安全的进度上报
func notify(fn ProgressFunc, event ProgressEvent) {
	if fn != nil {
		fn(event)
	}
}

// RemapRemoteProgress 把远端任务自身的 0-100 进度映射到
// [remoteProgressFloor, remoteProgressCeil] 区间，
// 给提交前与结果处理阶段留出头尾余量
func RemapRemoteProgress(taskProgress int) int {
	if taskProgress < 0 {
		taskProgress = 0
	}
	if taskProgress > 100 {
		taskProgress = 100
	}
	span := remoteProgressCeil - remoteProgressFloor
	return remoteProgressFloor + taskProgress*span/100
}
