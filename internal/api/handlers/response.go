package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/repository"
	"github.com/langchou/speedgazer/internal/service"
)

// Response 统一响应结构
type Response struct {
	Success    bool             `json:"success"`
	Message    string           `json:"message,omitempty"`
	Data       interface{}      `json:"data"`
	Pagination *models.PageInfo `json:"pagination,omitempty"`
	Meta       interface{}      `json:"meta,omitempty"`
}

func respond(c *gin.Context, status int, message string, data interface{}) {
	c.JSON(status, Response{Success: true, Message: message, Data: data})
}

func respondPage(c *gin.Context, data interface{}, page models.PageInfo, meta interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Pagination: &page, Meta: meta})
}

func respondMeta(c *gin.Context, data, meta interface{}) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data, Meta: meta})
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "message": message})
}

// handleError 将错误映射为响应，resource 与 action 用于拼接提示信息
func (h *Handler) handleError(c *gin.Context, err error, resource, action string) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		fail(c, http.StatusBadRequest, verr.Message)
	case errors.Is(err, repository.ErrNotFound):
		fail(c, http.StatusNotFound, capitalize(resource)+" not found")
	case errors.Is(err, repository.ErrConflict):
		fail(c, http.StatusConflict, capitalize(resource)+" already exists")
	default:
		h.logger.Error("Failed to "+action+" "+resource,
			zap.String("request_id", requestID(c)),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		body := gin.H{"success": false, "message": "Failed to " + action + " " + resource}
		if h.development {
			body["error"] = err.Error()
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, body)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
