package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/langchou/speedgazer/internal/models"
)

type mockEventWriter struct{ mock.Mock }

func (m *mockEventWriter) Create(ctx context.Context, e *models.NewSpeedEvent) (*models.SpeedEvent, error) {
	args := m.Called(ctx, e)
	ev, _ := args.Get(0).(*models.SpeedEvent)
	return ev, args.Error(1)
}

func (m *mockEventWriter) MarkAsProcessed(ctx context.Context, id int64) (*models.SpeedEvent, bool, error) {
	args := m.Called(ctx, id)
	ev, _ := args.Get(0).(*models.SpeedEvent)
	return ev, args.Bool(1), args.Error(2)
}

func (m *mockEventWriter) BulkMarkAsProcessed(ctx context.Context, ids []int64) ([]int64, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]int64)
	return out, args.Error(1)
}

type mockGeocoder struct{ mock.Mock }

func (m *mockGeocoder) ReverseGeocode(ctx context.Context, lat, lng float64) (string, error) {
	args := m.Called(ctx, lat, lng)
	return args.String(0), args.Error(1)
}

type mockBroadcaster struct{ mock.Mock }

func (m *mockBroadcaster) BroadcastMessage(msgType, deviceID string, data interface{}) {
	m.Called(msgType, deviceID, data)
}

type mockDeviceWriter struct{ mock.Mock }

func (m *mockDeviceWriter) Create(ctx context.Context, d *models.NewDevice, apiKey string) (*models.Device, error) {
	args := m.Called(ctx, d, apiKey)
	dev, _ := args.Get(0).(*models.Device)
	return dev, args.Error(1)
}

func (m *mockDeviceWriter) GetByID(ctx context.Context, deviceID string) (*models.Device, error) {
	args := m.Called(ctx, deviceID)
	dev, _ := args.Get(0).(*models.Device)
	return dev, args.Error(1)
}

func (m *mockDeviceWriter) Update(ctx context.Context, deviceID string, u *models.DeviceUpdate) (*models.Device, error) {
	args := m.Called(ctx, deviceID, u)
	dev, _ := args.Get(0).(*models.Device)
	return dev, args.Error(1)
}

func (m *mockDeviceWriter) RotateAPIKey(ctx context.Context, deviceID, apiKey string) (*models.DeviceKey, error) {
	args := m.Called(ctx, deviceID, apiKey)
	key, _ := args.Get(0).(*models.DeviceKey)
	return key, args.Error(1)
}

type mockPurger struct{ mock.Mock }

func (m *mockPurger) DeleteOlderThan(ctx context.Context, days int) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

type mockSettingReader struct{ mock.Mock }

func (m *mockSettingReader) Get(ctx context.Context, key string, deviceID *string) (string, error) {
	args := m.Called(ctx, key, deviceID)
	return args.String(0), args.Error(1)
}
