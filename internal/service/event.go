package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/metrics"
	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/state"
	"github.com/langchou/speedgazer/pkg/ws"
)

// geocodeTimeout 单次逆地理编码的最长等待时间
const geocodeTimeout = 5 * time.Second

// EventWriter 测速事件写操作
type EventWriter interface {
	Create(ctx context.Context, e *models.NewSpeedEvent) (*models.SpeedEvent, error)
	MarkAsProcessed(ctx context.Context, id int64) (*models.SpeedEvent, bool, error)
	BulkMarkAsProcessed(ctx context.Context, ids []int64) ([]int64, error)
}

// Geocoder 逆地理编码
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lng float64) (string, error)
}

// Broadcaster 实时推送
type Broadcaster interface {
	BroadcastMessage(msgType, deviceID string, data interface{})
}

// ProcessedNotice 事件处理通知
type ProcessedNotice struct {
	IDs []int64 `json:"ids"`
}

// EventService 测速事件服务
type EventService struct {
	logger      *zap.Logger
	events      EventWriter
	geocoder    Geocoder    // 可选
	broadcaster Broadcaster // 可选
}

// NewEventService 创建事件服务，geocoder 与 broadcaster 可以为 nil
func NewEventService(logger *zap.Logger, events EventWriter, geocoder Geocoder, broadcaster Broadcaster) *EventService {
	return &EventService{
		logger:      logger.Named("events"),
		events:      events,
		geocoder:    geocoder,
		broadcaster: broadcaster,
	}
}

// Ingest 写入设备上报的事件并推送到实时流
func (s *EventService) Ingest(ctx context.Context, in *models.NewSpeedEvent) (*models.SpeedEvent, error) {
	if in.DeviceID == "" {
		return nil, &ValidationError{Field: "device_id", Message: "device_id is required"}
	}
	if in.Speed < 0 {
		return nil, &ValidationError{Field: "speed", Message: "speed must be greater than or equal to 0"}
	}
	if in.SpeedLimit < 0 {
		return nil, &ValidationError{Field: "speed_limit", Message: "speed_limit must be greater than or equal to 0"}
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return nil, &ValidationError{Field: "latitude", Message: "latitude and longitude must be provided together"}
	}

	s.enrichAddress(ctx, in)

	event, err := s.events.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("ingest speed event: %w", err)
	}

	metrics.RecordIngest(string(event.ViolationCategory))
	s.logger.Debug("Speed event ingested",
		zap.Int64("id", event.ID),
		zap.String("device_id", event.DeviceID),
		zap.Float64("speed", event.Speed),
		zap.Float64("speed_limit", event.SpeedLimit),
		zap.String("category", string(event.ViolationCategory)))

	if s.broadcaster != nil {
		live := &models.LiveEvent{SpeedEvent: *event}
		live.Decorate()
		s.broadcaster.BroadcastMessage(ws.MsgTypeSpeedEvent, event.DeviceID, live)
	}
	return event, nil
}

// enrichAddress 有坐标无地址时尝试补全地址，失败不影响写入
func (s *EventService) enrichAddress(ctx context.Context, in *models.NewSpeedEvent) {
	if s.geocoder == nil || in.LocationAddress != nil || in.Latitude == nil || in.Longitude == nil {
		return
	}

	gctx, cancel := context.WithTimeout(ctx, geocodeTimeout)
	defer cancel()

	addr, err := s.geocoder.ReverseGeocode(gctx, *in.Latitude, *in.Longitude)
	metrics.RecordGeocode(err)
	if err != nil {
		s.logger.Warn("Failed to geocode speed event location",
			zap.String("device_id", in.DeviceID),
			zap.Float64("lat", *in.Latitude),
			zap.Float64("lng", *in.Longitude),
			zap.Error(err))
		return
	}
	in.LocationAddress = &addr
}

// MarkProcessed 标记单个事件为已处理，重复调用不报错
func (s *EventService) MarkProcessed(ctx context.Context, id int64) (*models.SpeedEvent, error) {
	event, wasProcessed, err := s.events.MarkAsProcessed(ctx, id)
	if err != nil {
		return nil, err
	}

	machine := state.NewProcessingMachine(id, wasProcessed, func(subject, from, to string) {
		metrics.RecordProcessed(1)
		s.logger.Info("Speed event processed", zap.String("subject", subject), zap.String("from", from), zap.String("to", to))
		s.notifyProcessed(event.DeviceID, []int64{id})
	})
	if _, err := machine.TransitionTo(ctx, state.StateProcessed); err != nil {
		return nil, fmt.Errorf("process speed event %d: %w", id, err)
	}
	return event, nil
}

// BulkMarkProcessed 批量标记，返回实际存在的 ID
func (s *EventService) BulkMarkProcessed(ctx context.Context, ids []int64) ([]int64, error) {
	if len(ids) == 0 {
		return nil, &ValidationError{Field: "ids", Message: "ids must contain at least 1 items"}
	}

	updated, err := s.events.BulkMarkAsProcessed(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(updated) > 0 {
		metrics.RecordProcessed(len(updated))
		s.notifyProcessed("", updated)
	}
	s.logger.Info("Bulk processed speed events", zap.Int("requested", len(ids)), zap.Int("updated", len(updated)))
	return updated, nil
}

func (s *EventService) notifyProcessed(deviceID string, ids []int64) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.BroadcastMessage(ws.MsgTypeEventProcessed, deviceID, ProcessedNotice{IDs: ids})
}
