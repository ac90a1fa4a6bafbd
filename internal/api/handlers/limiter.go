package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/langchou/speedgazer/internal/metrics"
)

// RateLimiterStore 按设备分配令牌桶: device_id -> limiter
type RateLimiterStore struct {
	limiters     map[string]*rate.Limiter
	mu           sync.Mutex
	defaultRate  rate.Limit
	defaultBurst int
}

// NewRateLimiterStore 创建限流器集合，perSecond <= 0 时不限流
func NewRateLimiterStore(perSecond float64, burst int) *RateLimiterStore {
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimiterStore{
		limiters:     make(map[string]*rate.Limiter),
		defaultRate:  limit,
		defaultBurst: burst,
	}
}

// GetLimiter 获取设备的限流器，不存在时创建
func (s *RateLimiterStore) GetLimiter(deviceID string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	limiter, exists := s.limiters[deviceID]
	if !exists {
		limiter = rate.NewLimiter(s.defaultRate, s.defaultBurst)
		s.limiters[deviceID] = limiter
	}
	return limiter
}

// IngestRateLimit 设备上报限流，需在 DeviceAuth 之后使用
func (h *Handler) IngestRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		device := deviceFrom(c)
		if device == nil {
			c.Next()
			return
		}

		if !h.limiters.GetLimiter(device.DeviceID).Allow() {
			metrics.IngestRateLimited.Inc()
			h.logger.Warn("Ingest rate limited", zap.String("device_id", device.DeviceID))
			fail(c, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
