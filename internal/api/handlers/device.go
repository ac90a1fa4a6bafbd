package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/langchou/speedgazer/internal/models"
)

const resourceDevice = "device"

// ListDevices 设备列表，按名称排序
func (h *Handler) ListDevices(c *gin.Context) {
	devices, err := h.devices.List(c.Request.Context())
	if err != nil {
		h.handleError(c, err, "devices", "fetch")
		return
	}

	respond(c, http.StatusOK, "", devices)
}

// GetDevice 获取设备详情
func (h *Handler) GetDevice(c *gin.Context) {
	device, err := h.devices.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, resourceDevice, "fetch")
		return
	}

	respond(c, http.StatusOK, "", device)
}

// CreateDevice 注册设备，响应中包含生成的 API key
func (h *Handler) CreateDevice(c *gin.Context) {
	var req deviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), resourceDevice, "create")
		return
	}

	device, err := h.deviceService.Register(c.Request.Context(), &models.NewDevice{
		DeviceID: req.DeviceID,
		Name:     req.Name,
		Location: emptyToNil(req.Location),
	})
	if err != nil {
		h.handleError(c, err, resourceDevice, "create")
		return
	}

	respond(c, http.StatusCreated, "Device created successfully", device)
}

// UpdateDevice 更新设备名称、位置及状态
func (h *Handler) UpdateDevice(c *gin.Context) {
	var req deviceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), resourceDevice, "update")
		return
	}

	device, err := h.deviceService.Update(c.Request.Context(), c.Param("id"), &models.DeviceUpdate{
		Name:     req.Name,
		Location: emptyToNil(req.Location),
		Status:   models.DeviceStatus(req.Status),
	})
	if err != nil {
		h.handleError(c, err, resourceDevice, "update")
		return
	}

	respond(c, http.StatusOK, "Device updated successfully", device)
}

// RegenerateDeviceKey 重置设备 API key，旧 key 立即失效
func (h *Handler) RegenerateDeviceKey(c *gin.Context) {
	key, err := h.deviceService.RotateAPIKey(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err, resourceDevice, "regenerate API key for")
		return
	}

	respond(c, http.StatusOK, "API key regenerated successfully", key)
}
