package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sshcollectorpro/switchreport/internal/model"
	"github.com/sshcollectorpro/switchreport/internal/service"
	"github.com/sshcollectorpro/switchreport/pkg/logger"
)

// DeviceHandler 设备清单处理器
type DeviceHandler struct {
	inventory *service.InventoryService
}

// NewDeviceHandler 创建设备处理器
func NewDeviceHandler(inventory *service.InventoryService) *DeviceHandler {
	return &DeviceHandler{inventory: inventory}
}

// CreateDevice 新增或按序列号更新设备
// @Summary 新增设备
// @Tags device
// @Accept json
// @Produce json
// @Param device body model.Device true "设备信息"
// @Success 201 {object} SuccessResponse "保存成功"
// @Failure 400 {object} ErrorResponse "请求参数错误"
// @Router /api/v1/devices [post]
func (h *DeviceHandler) CreateDevice(c *gin.Context) {
	var device model.Device
	if err := c.ShouldBindJSON(&device); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Code:    "INVALID_PARAMS",
			Message: "设备参数无效: " + err.Error(),
		})
		return
	}
	if err := h.inventory.Upsert(c.Request.Context(), &device); err != nil {
		writeError(c, err)
		return
	}
	logger.WithDevice(device.SerialNumber).WithField("ip", device.IP).Info("Device saved")
	c.JSON(http.StatusCreated, SuccessResponse{
		Code:    "SUCCESS",
		Message: "设备已保存",
		Data:    device.Redacted(),
	})
}

// ListDevices 设备列表
// @Summary 获取设备列表
// @Tags device
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/devices [get]
func (h *DeviceHandler) ListDevices(c *gin.Context) {
	devices, err := h.inventory.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]model.Device, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Redacted())
	}
	c.JSON(http.StatusOK, SuccessResponse{
		Code:    "SUCCESS",
		Message: "获取成功",
		Data: gin.H{
			"devices": out,
			"total":   len(out),
		},
	})
}

// GetDevice 按序列号查询设备
// @Summary 获取设备详情
// @Tags device
// @Produce json
// @Param serial path string true "设备序列号"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse "设备不存在"
// @Router /api/v1/devices/{serial} [get]
func (h *DeviceHandler) GetDevice(c *gin.Context) {
	device, err := h.inventory.Get(c.Request.Context(), c.Param("serial"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "获取成功", Data: device.Redacted()})
}

// DeleteDevice 删除设备
// @Summary 删除设备
// @Tags device
// @Param serial path string true "设备序列号"
// @Success 200 {object} SuccessResponse
// @Failure 404 {object} ErrorResponse "设备不存在"
// @Router /api/v1/devices/{serial} [delete]
func (h *DeviceHandler) DeleteDevice(c *gin.Context) {
	serial := c.Param("serial")
	if err := h.inventory.Delete(c.Request.Context(), serial); err != nil {
		writeError(c, err)
		return
	}
	logger.WithDevice(serial).Info("Device deleted")
	c.JSON(http.StatusOK, SuccessResponse{Code: "SUCCESS", Message: "设备已删除"})
}
