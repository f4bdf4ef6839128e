package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/switchreport/addone/collect"
	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/internal/service"
	"github.com/sshcollectorpro/switchreport/pkg/render"
)

// ReportHandler 报告处理器
type ReportHandler struct {
	reports *service.ReportService
}

// NewReportHandler 创建报告处理器
func NewReportHandler(reports *service.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

// GenerateRequest 报告生成请求
type GenerateRequest struct {
	SerialNumber string `json:"serial_number" binding:"required"`
}

// Generate 为设备生成报告
// @Summary 生成报告
// @Description 按模板采集设备并生成报告，format=text 时返回纯文本
// @Tags report
// @Accept json
// @Produce json
// @Param template path string true "报告模板"
// @Param request body GenerateRequest true "设备序列号"
// @Success 200 {object} service.RunResult
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Failure 404 {object} ErrorResponse "设备不存在"
// @Router /api/v1/reports/{template} [post]
func (h *ReportHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "请求参数无效: " + err.Error(),
		})
		return
	}

	result, err := h.reports.Run(c.Request.Context(), c.Param("template"), req.SerialNumber, model.TriggerAPI)
	if err != nil {
		writeError(c, err)
		return
	}
	if c.Query("format") == render.FormatText {
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(result.Text))
		return
	}
	c.JSON(http.StatusOK, result)
}

// Templates 已注册的报告模板
// @Summary 报告模板列表
// @Tags report
// @Produce json
// @Router /api/v1/reports/templates [get]
func (h *ReportHandler) Templates(c *gin.Context) {
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取成功", Data: collect.Names()})
}

// GetRun 查询运行记录
// @Summary 报告运行记录
// @Tags report
// @Produce json
// @Param id path string true "运行ID"
// @Success 200 {object} model.ReportRun
// @Failure 404 {object} ErrorResponse "记录不存在"
// @Router /api/v1/reports/runs/{id} [get]
func (h *ReportHandler) GetRun(c *gin.Context) {
	run, err := h.reports.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, run)
}

// ListRuns 运行记录列表，可按 serial 过滤
// @Summary 报告运行记录列表
// @Tags report
// @Produce json
// @Param serial query string false "设备序列号"
// @Param limit query int false "条数，默认 100"
// @Router /api/v1/reports/runs [get]
func (h *ReportHandler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	runs, err := h.reports.ListRuns(c.Request.Context(), c.Query("serial"), limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取成功",
		Data: gin.H{
			"runs":  runs,
			"total": len(runs),
		},
	})
}
