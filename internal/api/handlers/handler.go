package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/pkg/ws"
)

// SpeedEventStore 测速事件查询
type SpeedEventStore interface {
	List(ctx context.Context, f models.SpeedEventFilter, p models.Page) ([]*models.SpeedEvent, models.PageInfo, error)
	GetByID(ctx context.Context, id int64) (*models.SpeedEvent, error)
	Recent(ctx context.Context, f models.SpeedEventFilter, limit int) ([]*models.SpeedEvent, error)
	LiveFeed(ctx context.Context, f models.SpeedEventFilter, limit int) ([]*models.LiveEvent, error)
	WithLocations(ctx context.Context, f models.SpeedEventFilter) (*models.MapView, error)
	Gallery(ctx context.Context, f models.SpeedEventFilter, p models.Page) (*models.GalleryView, error)
	Stats(ctx context.Context, f models.SpeedEventFilter) (*models.SpeedStats, error)
	Distribution(ctx context.Context, f models.SpeedEventFilter, interval models.Interval) ([]models.DistributionBucket, error)
}

// EventManager 测速事件写操作
type EventManager interface {
	Ingest(ctx context.Context, in *models.NewSpeedEvent) (*models.SpeedEvent, error)
	MarkProcessed(ctx context.Context, id int64) (*models.SpeedEvent, error)
	BulkMarkProcessed(ctx context.Context, ids []int64) ([]int64, error)
}

// DeviceStore 设备查询
type DeviceStore interface {
	List(ctx context.Context) ([]*models.Device, error)
	GetByID(ctx context.Context, deviceID string) (*models.Device, error)
	GetActiveByAPIKey(ctx context.Context, apiKey string) (*models.Device, error)
}

// DeviceManager 设备注册与更新
type DeviceManager interface {
	Register(ctx context.Context, d *models.NewDevice) (*models.Device, error)
	Update(ctx context.Context, deviceID string, u *models.DeviceUpdate) (*models.Device, error)
	RotateAPIKey(ctx context.Context, deviceID string) (*models.DeviceKey, error)
}

// SettingStore 配置读写，deviceID 为 nil 表示全局
type SettingStore interface {
	Get(ctx context.Context, key string, deviceID *string) (string, error)
	List(ctx context.Context, deviceID *string) ([]models.SettingEntry, error)
	Set(ctx context.Context, key, value string, deviceID *string) (*models.Setting, error)
	Delete(ctx context.Context, key string, deviceID *string) (*models.Setting, error)
}

// RetentionSweeper 过期事件清理
type RetentionSweeper interface {
	RetentionDays(ctx context.Context) int
	Sweep(ctx context.Context, days int) (int64, error)
}

// Pinger 数据库连通性检查
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps 处理器依赖
type Deps struct {
	Logger        *zap.Logger
	Events        SpeedEventStore
	EventService  EventManager
	Devices       DeviceStore
	DeviceService DeviceManager
	Settings      SettingStore
	Retention     RetentionSweeper
	DB            Pinger
	Hub           *ws.Hub

	AdminAPIKey string
	Development bool // 500 响应是否附带错误详情

	IngestRate  float64
	IngestBurst int
}

// Handler HTTP 处理器
type Handler struct {
	logger        *zap.Logger
	events        SpeedEventStore
	eventService  EventManager
	devices       DeviceStore
	deviceService DeviceManager
	settings      SettingStore
	retention     RetentionSweeper
	db            Pinger
	wsHub         *ws.Hub
	adminKey      string
	development   bool
	limiters      *RateLimiterStore
	upgrader      websocket.Upgrader
}

// NewHandler 创建处理器
func NewHandler(d Deps) *Handler {
	registerValidation()

	return &Handler{
		logger:        d.Logger,
		events:        d.Events,
		eventService:  d.EventService,
		devices:       d.Devices,
		deviceService: d.DeviceService,
		settings:      d.Settings,
		retention:     d.Retention,
		db:            d.DB,
		wsHub:         d.Hub,
		adminKey:      d.AdminAPIKey,
		development:   d.Development,
		limiters:      NewRateLimiterStore(d.IngestRate, d.IngestBurst),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 由 admin key 鉴权，不限制来源
			},
		},
	}
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		// 设备上报
		api.POST("/speedEvents", h.DeviceAuth(), h.IngestRateLimit(), h.CreateSpeedEvent)

		admin := api.Group("", h.AdminAuth())

		// 测速事件，静态路径需先于 :id 注册
		events := admin.Group("/speedEvents")
		{
			events.GET("", h.ListSpeedEvents)
			events.GET("/stats", h.GetSpeedEventStats)
			events.GET("/distribution", h.GetSpeedDistribution)
			events.GET("/recent", h.ListRecentSpeedEvents)
			events.GET("/live", h.GetLiveFeed)
			events.GET("/map", h.GetSpeedEventMap)
			events.GET("/gallery", h.GetSpeedEventGallery)
			events.PUT("/bulk/process", h.BulkProcessSpeedEvents)
			events.DELETE("/retention", h.SweepRetention)
			events.GET("/:id", h.GetSpeedEvent)
			events.PUT("/:id/process", h.ProcessSpeedEvent)
		}

		// 设备
		devices := admin.Group("/devices")
		{
			devices.GET("", h.ListDevices)
			devices.POST("", h.CreateDevice)
			devices.GET("/:id", h.GetDevice)
			devices.PUT("/:id", h.UpdateDevice)
			devices.POST("/:id/regenerate-key", h.RegenerateDeviceKey)
		}

		// 配置
		settings := admin.Group("/settings")
		{
			settings.GET("", h.ListSettings)
			settings.POST("", h.SaveSetting)
			settings.GET("/device/:deviceId", h.ListDeviceSettings)
			settings.POST("/device/:deviceId", h.SaveDeviceSetting)
			settings.GET("/device/:deviceId/:key", h.GetDeviceSetting)
			settings.DELETE("/device/:deviceId/:key", h.DeleteDeviceSetting)
			settings.GET("/:key", h.GetSetting)
			settings.DELETE("/:key", h.DeleteSetting)
		}
	}

	// WebSocket
	r.GET("/ws/live", h.HandleWebSocket)

	r.GET("/health", h.HealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	if err := h.db.Ping(c.Request.Context()); err != nil {
		h.logger.Error("Health check failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unavailable",
			"database": "down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"database":   "up",
		"ws_clients": h.wsHub.ClientCount(),
	})
}
