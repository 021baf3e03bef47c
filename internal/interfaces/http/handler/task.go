package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"inkwell-ai-api/internal/application/task"
	"inkwell-ai-api/internal/interfaces/http/dto"
)

// TaskHandler 任务查询与取消处理器
type TaskHandler struct {
	service *task.Service
}

// NewTaskHandler 创建任务处理器
func NewTaskHandler(service *task.Service) *TaskHandler {
	return &TaskHandler{service: service}
}

// Get 查询任务状态
// GET /api/tasks/:taskId
func (h *TaskHandler) Get(c *gin.Context) {
	t, err := h.service.Get(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		dto.FromError(c, err)
		return
	}
	if t == nil {
		dto.NotFound(c, "task not found")
		return
	}
	dto.Success(c, dto.NewTaskStatusData(t))
}

// Cancel 取消任务
// DELETE /api/tasks/:taskId
func (h *TaskHandler) Cancel(c *gin.Context) {
	err := h.service.Cancel(c.Request.Context(), c.Param("taskId"))
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			dto.NotFound(c, "task not found")
			return
		}
		dto.FromError(c, err)
		return
	}
	dto.Success(c, gin.H{"cancelled": true})
}

// ListByProject 列出项目下的任务
// GET /api/projects/:projectId/tasks
func (h *TaskHandler) ListByProject(c *gin.Context) {
	var query struct {
		Limit  int `form:"limit"`
		Offset int `form:"offset"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		dto.BadRequest(c, "invalid query parameters: "+err.Error())
		return
	}

	tasks, total, err := h.service.List(c.Request.Context(), c.Param("projectId"), query.Limit, query.Offset)
	if err != nil {
		dto.FromError(c, err)
		return
	}

	items := make([]dto.TaskListItem, 0, len(tasks))
	for _, t := range tasks {
		items = append(items, dto.TaskListItem{
			TaskID:    t.ID,
			Operation: string(t.Operation),
			Status:    string(t.Status),
			Progress:  t.Progress,
			CreatedAt: t.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	dto.Success(c, dto.TaskListData{Items: items, Total: total})
}
