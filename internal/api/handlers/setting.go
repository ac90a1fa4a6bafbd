package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

const resourceSetting = "setting"

// ListSettings 全局配置
func (h *Handler) ListSettings(c *gin.Context) {
	h.listSettings(c, nil)
}

// ListDeviceSettings 设备生效的配置，标记是否为设备自定义
func (h *Handler) ListDeviceSettings(c *gin.Context) {
	deviceID := c.Param("deviceId")
	h.listSettings(c, &deviceID)
}

func (h *Handler) listSettings(c *gin.Context, deviceID *string) {
	settings, err := h.settings.List(c.Request.Context(), deviceID)
	if err != nil {
		h.handleError(c, err, "settings", "fetch")
		return
	}

	respond(c, http.StatusOK, "", settings)
}

// GetSetting 获取全局配置项
func (h *Handler) GetSetting(c *gin.Context) {
	h.getSetting(c, nil)
}

// GetDeviceSetting 获取设备配置项，不存在时回退到全局值
func (h *Handler) GetDeviceSetting(c *gin.Context) {
	deviceID := c.Param("deviceId")
	h.getSetting(c, &deviceID)
}

func (h *Handler) getSetting(c *gin.Context, deviceID *string) {
	key := c.Param("key")
	value, err := h.settings.Get(c.Request.Context(), key, deviceID)
	if err != nil {
		h.handleError(c, err, resourceSetting, "fetch")
		return
	}

	data := gin.H{"key": key, "value": value}
	if deviceID != nil {
		data["device_id"] = *deviceID
	}
	respond(c, http.StatusOK, "", data)
}

// SaveSetting 新增或更新全局配置
func (h *Handler) SaveSetting(c *gin.Context) {
	h.saveSetting(c, nil)
}

// SaveDeviceSetting 新增或更新设备配置
func (h *Handler) SaveDeviceSetting(c *gin.Context) {
	deviceID := c.Param("deviceId")
	h.saveSetting(c, &deviceID)
}

func (h *Handler) saveSetting(c *gin.Context, deviceID *string) {
	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), resourceSetting, "save")
		return
	}

	setting, err := h.settings.Set(c.Request.Context(), req.Key, req.Value, deviceID)
	if err != nil {
		h.handleError(c, err, resourceSetting, "save")
		return
	}

	message := "Setting saved successfully"
	if deviceID != nil {
		message = "Device setting saved successfully"
	}
	respond(c, http.StatusCreated, message, setting)
}

// DeleteSetting 删除全局配置
func (h *Handler) DeleteSetting(c *gin.Context) {
	h.deleteSetting(c, nil)
}

// DeleteDeviceSetting 删除设备配置，全局值不受影响
func (h *Handler) DeleteDeviceSetting(c *gin.Context) {
	deviceID := c.Param("deviceId")
	h.deleteSetting(c, &deviceID)
}

func (h *Handler) deleteSetting(c *gin.Context, deviceID *string) {
	setting, err := h.settings.Delete(c.Request.Context(), c.Param("key"), deviceID)
	if err != nil {
		h.handleError(c, err, resourceSetting, "delete")
		return
	}

	message := "Setting deleted successfully"
	if deviceID != nil {
		message = "Device setting deleted successfully"
	}
	respond(c, http.StatusOK, message, setting)
}
