package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/langchou/speedgazer/internal/api/handlers"
	"github.com/langchou/speedgazer/internal/config"
	"github.com/langchou/speedgazer/internal/geocoder"
	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/repository"
	"github.com/langchou/speedgazer/internal/service"
	"github.com/langchou/speedgazer/pkg/ws"
)

// initFeedSize 新连接推送的最近事件数
const initFeedSize = 20

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug, cfg.LogFile)
	defer logger.Sync()

	logger.Info("Starting Speedgazer", zap.String("port", cfg.ServerPort), zap.String("env", cfg.AppEnv))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 连接数据库
	db, err := repository.New(ctx, cfg.DatabaseURL, repository.PoolOptions{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	})
	if err != nil {
		logger.Fatal("Failed to connect database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate database", zap.Error(err))
	}
	logger.Info("Database migrated successfully")

	// 创建 Repository
	deviceRepo := repository.NewDeviceRepository(db)
	eventRepo := repository.NewSpeedEventRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	// 创建 WebSocket Hub，新连接先收到最近的事件
	wsHub := ws.NewHub(logger)
	wsHub.SetInitDataProvider(func(ctx context.Context, deviceID string) *ws.InitData {
		events, err := eventRepo.LiveFeed(ctx, models.SpeedEventFilter{DeviceID: deviceID}, initFeedSize)
		if err != nil {
			logger.Warn("Failed to load live feed for websocket client", zap.Error(err))
			return nil
		}
		return &ws.InitData{Events: events}
	})
	go wsHub.Run(ctx)

	// 逆地理编码（可选）
	var geo service.Geocoder
	if cfg.GeocoderEnabled {
		client := geocoder.NewClient(cfg.AmapAPIKey, logger)
		geo = client
		logger.Info("Geocoding enabled", zap.String("provider", client.Provider()))
	}

	// 创建服务
	eventService := service.NewEventService(logger, eventRepo, geo, wsHub)
	deviceService := service.NewDeviceService(logger, deviceRepo)
	retentionService := service.NewRetentionService(logger, eventRepo, settingRepo, cfg.RetentionDays, cfg.RetentionInterval)
	retentionService.Start(ctx)

	// 创建 HTTP 处理器
	handler := handlers.NewHandler(handlers.Deps{
		Logger:        logger,
		Events:        eventRepo,
		EventService:  eventService,
		Devices:       deviceRepo,
		DeviceService: deviceService,
		Settings:      settingRepo,
		Retention:     retentionService,
		DB:            db,
		Hub:           wsHub,
		AdminAPIKey:   cfg.AdminAPIKey,
		Development:   cfg.IsDevelopment(),
		IngestRate:    cfg.IngestRate,
		IngestBurst:   cfg.IngestBurst,
	})

	// 设置 Gin 模式
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(handlers.RequestID())
	router.Use(handlers.Recovery(logger))
	router.Use(handlers.AccessLog(logger.Named("http")))
	router.Use(handlers.Metrics())
	router.Use(corsMiddleware(cfg.CORSAllowOrigin))

	// 注册路由
	handler.RegisterRoutes(router)

	// 启动 HTTP 服务器
	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	logger.Info("Server started", zap.String("addr", server.Addr))

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// 停止定时清理
	retentionService.Stop()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	// 关闭 WebSocket 连接
	cancel()

	logger.Info("Server exited")
}

// initLogger 初始化日志，logFile 不为空时同时写入滚动日志文件
func initLogger(debug bool, logFile string) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	if logFile == "" {
		return logger
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	fileCore := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}),
		config.Level,
	)

	return logger.WithOptions(zap.WrapCore(func(core zapcore.Core) zapcore.Core {
		return zapcore.NewTee(core, fileCore)
	}))
}

// corsMiddleware CORS 中间件
func corsMiddleware(allowOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", allowOrigin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
		c.Header("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
