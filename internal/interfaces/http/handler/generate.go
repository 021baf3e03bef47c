// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"inkwell-ai-api/internal/application/task"
	"inkwell-ai-api/internal/domain/entity"
	"inkwell-ai-api/internal/interfaces/http/dto"
	"inkwell-ai-api/pkg/logger"
)

// GenerateHandler 生成任务提交处理器
type GenerateHandler struct {
	service *task.Service
}

// NewGenerateHandler 创建生成处理器
func NewGenerateHandler(service *task.Service) *GenerateHandler {
	return &GenerateHandler{service: service}
}

// Submit 提交生成任务
// POST /api/generate/:operation
func (h *GenerateHandler) Submit(c *gin.Context) {
	op := entity.Operation(c.Param("operation"))
	if !entity.KnownOperations[op] {
		dto.BadRequest(c, "unknown operation: "+string(op))
		return
	}

	var req dto.GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	ctx := logger.WithContext(c.Request.Context(), logger.OperationKey, string(op))
	t, err := h.service.Submit(ctx, op, req.ToGenerationRequest(op))
	if err != nil {
		dto.FromError(c, err)
		return
	}

	dto.Accepted(c, dto.SubmitTaskData{
		TaskID: t.ID,
		Status: string(t.Status),
	})
}
