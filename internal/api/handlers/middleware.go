package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/metrics"
	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/repository"
)

const (
	apiKeyHeader    = "x-api-key"
	requestIDHeader = "X-Request-ID"

	ctxRequestID = "request_id"
	ctxDevice    = "device"
)

// RequestID 为每个请求分配 ID，优先沿用上游传入的 X-Request-ID
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

func requestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}

// AccessLog 每个请求记录一条访问日志
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("request_id", requestID(c)),
		}
		if d := deviceFrom(c); d != nil {
			fields = append(fields, zap.String("device_id", d.DeviceID))
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			logger.Error("Request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Warn("Request rejected", fields...)
		default:
			logger.Info("Request handled", fields...)
		}
	}
}

// Metrics 记录请求数与耗时，按路由模板聚合
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		metrics.RecordAPIRequest(c.Request.Method, c.FullPath(), c.Writer.Status(), time.Since(start))
	}
}

// Recovery 将 panic 转换为 500 响应
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		logger.Error("Panic recovered",
			zap.Any("panic", recovered),
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", requestID(c)),
		)
		fail(c, http.StatusInternalServerError, "Internal server error")
	})
}

// AdminAuth 校验管理端 API key
func (h *Handler) AdminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.isAdminKey(c.GetHeader(apiKeyHeader)) {
			fail(c, http.StatusForbidden, "Forbidden")
			return
		}
		c.Next()
	}
}

func (h *Handler) isAdminKey(key string) bool {
	if key == "" || h.adminKey == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), []byte(h.adminKey)) == 1
}

// DeviceAuth 校验设备 API key，只接受状态为 active 的设备
func (h *Handler) DeviceAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(apiKeyHeader)
		if key == "" {
			fail(c, http.StatusUnauthorized, "API key required")
			return
		}

		device, err := h.devices.GetActiveByAPIKey(c.Request.Context(), key)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				fail(c, http.StatusUnauthorized, "Invalid or inactive API key")
				return
			}
			h.handleError(c, err, "device", "authenticate")
			return
		}

		c.Set(ctxDevice, device)
		c.Next()
	}
}

func deviceFrom(c *gin.Context) *models.Device {
	v, ok := c.Get(ctxDevice)
	if !ok {
		return nil
	}
	d, _ := v.(*models.Device)
	return d
}
