package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/metrics"
	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/repository"
)

// EventPurger 按时间删除事件
type EventPurger interface {
	DeleteOlderThan(ctx context.Context, days int) (int64, error)
}

// SettingReader 读取配置
type SettingReader interface {
	Get(ctx context.Context, key string, deviceID *string) (string, error)
}

// RetentionService 定期清理过期的测速事件
type RetentionService struct {
	logger      *zap.Logger
	events      EventPurger
	settings    SettingReader
	defaultDays int
	interval    time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// NewRetentionService 创建清理服务
func NewRetentionService(logger *zap.Logger, events EventPurger, settings SettingReader, defaultDays int, interval time.Duration) *RetentionService {
	return &RetentionService{
		logger:      logger.Named("retention"),
		events:      events,
		settings:    settings,
		defaultDays: defaultDays,
		interval:    interval,
		stopCh:      make(chan struct{}),
	}
}

// Start 启动定时清理，interval 为 0 时不启动
func (s *RetentionService) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running || s.interval <= 0 {
		return
	}
	s.stopCh = make(chan struct{})
	s.running = true

	s.wg.Add(1)
	go s.sweepLoop(ctx)
	s.logger.Info("Retention sweeper started", zap.Duration("interval", s.interval))
}

// Stop 停止定时清理
func (s *RetentionService) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("Retention sweeper stopped")
}

func (s *RetentionService) sweepLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx, 0); err != nil {
				s.logger.Error("Retention sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep 删除早于 days 天的事件，days <= 0 时使用生效的保留天数
func (s *RetentionService) Sweep(ctx context.Context, days int) (int64, error) {
	if days <= 0 {
		days = s.RetentionDays(ctx)
	}

	deleted, err := s.events.DeleteOlderThan(ctx, days)
	metrics.RecordRetention(deleted, err)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}

	s.logger.Info("Retention sweep completed", zap.Int("days", days), zap.Int64("deleted", deleted))
	return deleted, nil
}

// RetentionDays 全局配置 retention_days 优先，缺失或非法时使用默认值
func (s *RetentionService) RetentionDays(ctx context.Context) int {
	if s.settings == nil {
		return s.defaultDays
	}

	value, err := s.settings.Get(ctx, models.SettingRetentionDays, nil)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("Failed to read retention setting, using default", zap.Error(err))
		}
		return s.defaultDays
	}

	days, err := strconv.Atoi(value)
	if err != nil || days <= 0 {
		s.logger.Warn("Invalid retention setting, using default", zap.String("value", value))
		return s.defaultDays
	}
	return days
}
