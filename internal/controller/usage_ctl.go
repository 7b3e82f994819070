package controller

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"caption_dev_v1/internal/api/dto"
	"caption_dev_v1/internal/service"
)

const defaultUsageDays = 7

// UsageReporter 用量查询能力
type UsageReporter interface {
	GetUsage(ctx context.Context, days int) (*service.UsageReport, error)
}

// UsageController AI 调用用量
type UsageController struct {
	usage UsageReporter
}

func NewUsageController(usage UsageReporter) *UsageController {
	return &UsageController{usage: usage}
}

// GetUsage 查询最近 N 天的调用与 token 用量
// @Summary 查询 AI 调用用量
// @Tags Usage
// @Produce json
// @Param days query int false "统计天数（1-90，默认 7）"
// @Success 200 {object} service.UsageReport
// @Failure 400 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /api/ai/usage [get]
func (ctrl *UsageController) GetUsage(c *gin.Context) {
	var query dto.UsageQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid days parameter"})
		return
	}
	if query.Days == 0 {
		query.Days = defaultUsageDays
	}

	report, err := ctrl.usage.GetUsage(c.Request.Context(), query.Days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to query usage"})
		return
	}

	c.JSON(http.StatusOK, report)
}

// Health 健康检查
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} dto.HealthResponse
// @Router /healthz [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{Status: "ok"})
}
