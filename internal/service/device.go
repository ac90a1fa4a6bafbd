package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/models"
	"github.com/langchou/speedgazer/internal/state"
)

// apiKeyBytes 生成的 api_key 随机字节数 (192 bit)
const apiKeyBytes = 24

// DeviceWriter 设备写操作
type DeviceWriter interface {
	Create(ctx context.Context, d *models.NewDevice, apiKey string) (*models.Device, error)
	GetByID(ctx context.Context, deviceID string) (*models.Device, error)
	Update(ctx context.Context, deviceID string, u *models.DeviceUpdate) (*models.Device, error)
	RotateAPIKey(ctx context.Context, deviceID, apiKey string) (*models.DeviceKey, error)
}

// DeviceService 设备注册与状态管理
type DeviceService struct {
	logger  *zap.Logger
	devices DeviceWriter
	keyGen  func() (string, error)
}

// NewDeviceService 创建设备服务
func NewDeviceService(logger *zap.Logger, devices DeviceWriter) *DeviceService {
	return &DeviceService{
		logger:  logger.Named("devices"),
		devices: devices,
		keyGen:  GenerateAPIKey,
	}
}

// GenerateAPIKey 使用加密安全的随机源生成 api_key
func GenerateAPIKey() (string, error) {
	b := make([]byte, apiKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Register 注册设备，api_key 由服务端生成
func (s *DeviceService) Register(ctx context.Context, d *models.NewDevice) (*models.Device, error) {
	if d.DeviceID == "" {
		return nil, &ValidationError{Field: "device_id", Message: "device_id is required"}
	}
	if d.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}

	key, err := s.keyGen()
	if err != nil {
		return nil, err
	}

	device, err := s.devices.Create(ctx, d, key)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Device registered", zap.String("device_id", device.DeviceID), zap.String("name", device.Name))
	return device, nil
}

// Update 整体更新设备，状态变化经由状态机校验
func (s *DeviceService) Update(ctx context.Context, deviceID string, u *models.DeviceUpdate) (*models.Device, error) {
	if u.Name == "" {
		return nil, &ValidationError{Field: "name", Message: "name is required"}
	}
	current, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		return nil, err
	}

	machine, err := state.NewDeviceMachine(deviceID, current.Status, func(subject, from, to string) {
		s.logger.Info("Device status changed", zap.String("subject", subject), zap.String("from", from), zap.String("to", to))
	})
	if err != nil {
		return nil, err
	}
	// 状态机决定目标状态是否可达，未知状态同样不可达
	if _, err := machine.TransitionTo(ctx, string(u.Status)); err != nil {
		if errors.Is(err, state.ErrInvalidTransition) {
			return nil, &ValidationError{Field: "status", Message: "status must be one of [active inactive]"}
		}
		return nil, err
	}

	return s.devices.Update(ctx, deviceID, u)
}

// RotateAPIKey 重新生成 api_key，旧 key 立即失效
func (s *DeviceService) RotateAPIKey(ctx context.Context, deviceID string) (*models.DeviceKey, error) {
	key, err := s.keyGen()
	if err != nil {
		return nil, err
	}

	rotated, err := s.devices.RotateAPIKey(ctx, deviceID, key)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Device api key rotated", zap.String("device_id", deviceID))
	return rotated, nil
}
