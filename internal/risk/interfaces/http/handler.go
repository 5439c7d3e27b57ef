// Package http 风险上下文的 HTTP 接口
package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/oiltrading/riskengine/internal/risk/application"
	"github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/logger"
	"github.com/oiltrading/riskengine/pkg/response"
)

// RiskHandler 负责处理风险计算相关的 HTTP 请求
type RiskHandler struct {
	svc *application.RiskApplicationService
}

// NewRiskHandler 创建 HTTP 处理器
func NewRiskHandler(svc *application.RiskApplicationService) *RiskHandler {
	return &RiskHandler{svc: svc}
}

// RegisterRoutes 注册路由
func (h *RiskHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/risk")
	{
		api.POST("/metrics", h.CalculateMetrics)
		api.POST("/var", h.CalculateVaR)
		api.POST("/concentration", h.AnalyzeConcentration)
		api.POST("/stress", h.RunStressTest)
		api.GET("/reports", h.ListReports)
		api.GET("/reports/:id", h.GetReport)
	}
}

// CalculateMetrics 计算完整的组合风险指标
func (h *RiskHandler) CalculateMetrics(c *gin.Context) {
	var req application.CalculateRiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.svc.CalculateMetrics(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to calculate risk metrics", err)
		return
	}

	response.Success(c, result)
}

// CalculateVaR 单方法 VaR 计算
func (h *RiskHandler) CalculateVaR(c *gin.Context) {
	var req application.CalculateRiskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	result, err := h.svc.CalculateVaR(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to calculate VaR", err)
		return
	}

	response.Success(c, result)
}

// AnalyzeConcentration 集中度分析
func (h *RiskHandler) AnalyzeConcentration(c *gin.Context) {
	var req application.ConcentrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	report, err := h.svc.AnalyzeConcentration(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to analyze concentration", err)
		return
	}

	response.Success(c, report)
}

// RunStressTest 压力测试
func (h *RiskHandler) RunStressTest(c *gin.Context) {
	var req application.StressTestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, err.Error(), "")
		return
	}

	results, err := h.svc.RunStressTest(c.Request.Context(), &req)
	if err != nil {
		h.writeError(c, "Failed to run stress test", err)
		return
	}

	response.Success(c, results)
}

// GetReport 按 ID 查询历史报告
func (h *RiskHandler) GetReport(c *gin.Context) {
	reportID := c.Param("id")

	result, err := h.svc.GetReport(c.Request.Context(), reportID)
	if err != nil {
		h.writeError(c, "Failed to get risk report", err)
		return
	}
	if result == nil {
		response.ErrorWithStatus(c, http.StatusNotFound, "risk report not found", reportID)
		return
	}

	response.Success(c, result)
}

// ListReports 分页查询历史报告
func (h *RiskHandler) ListReports(c *gin.Context) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid page", "")
		return
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	if err != nil {
		response.ErrorWithStatus(c, http.StatusBadRequest, "invalid page_size", "")
		return
	}

	reports, err := h.svc.ListReports(c.Request.Context(), page, pageSize)
	if err != nil {
		h.writeError(c, "Failed to list risk reports", err)
		return
	}

	response.Success(c, reports)
}

// writeError 统一错误映射：校验错误 400，预算耗尽 504，其余 500
func (h *RiskHandler) writeError(c *gin.Context, msg string, err error) {
	status := statusForError(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), msg, "error", err)
	}
	response.ErrorWithStatus(c, status, err.Error(), "")
}

func statusForError(err error) int {
	switch {
	case domain.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrTimeBudgetExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
