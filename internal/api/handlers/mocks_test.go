package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/langchou/speedgazer/internal/models"
)

type mockEventStore struct{ mock.Mock }

func (m *mockEventStore) List(ctx context.Context, f models.SpeedEventFilter, p models.Page) ([]*models.SpeedEvent, models.PageInfo, error) {
	args := m.Called(ctx, f, p)
	events, _ := args.Get(0).([]*models.SpeedEvent)
	return events, args.Get(1).(models.PageInfo), args.Error(2)
}

func (m *mockEventStore) GetByID(ctx context.Context, id int64) (*models.SpeedEvent, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.SpeedEvent)
	return e, args.Error(1)
}

func (m *mockEventStore) Recent(ctx context.Context, f models.SpeedEventFilter, limit int) ([]*models.SpeedEvent, error) {
	args := m.Called(ctx, f, limit)
	events, _ := args.Get(0).([]*models.SpeedEvent)
	return events, args.Error(1)
}

func (m *mockEventStore) LiveFeed(ctx context.Context, f models.SpeedEventFilter, limit int) ([]*models.LiveEvent, error) {
	args := m.Called(ctx, f, limit)
	events, _ := args.Get(0).([]*models.LiveEvent)
	return events, args.Error(1)
}

func (m *mockEventStore) WithLocations(ctx context.Context, f models.SpeedEventFilter) (*models.MapView, error) {
	args := m.Called(ctx, f)
	v, _ := args.Get(0).(*models.MapView)
	return v, args.Error(1)
}

func (m *mockEventStore) Gallery(ctx context.Context, f models.SpeedEventFilter, p models.Page) (*models.GalleryView, error) {
	args := m.Called(ctx, f, p)
	v, _ := args.Get(0).(*models.GalleryView)
	return v, args.Error(1)
}

func (m *mockEventStore) Stats(ctx context.Context, f models.SpeedEventFilter) (*models.SpeedStats, error) {
	args := m.Called(ctx, f)
	s, _ := args.Get(0).(*models.SpeedStats)
	return s, args.Error(1)
}

func (m *mockEventStore) Distribution(ctx context.Context, f models.SpeedEventFilter, interval models.Interval) ([]models.DistributionBucket, error) {
	args := m.Called(ctx, f, interval)
	b, _ := args.Get(0).([]models.DistributionBucket)
	return b, args.Error(1)
}

type mockEventManager struct{ mock.Mock }

func (m *mockEventManager) Ingest(ctx context.Context, in *models.NewSpeedEvent) (*models.SpeedEvent, error) {
	args := m.Called(ctx, in)
	e, _ := args.Get(0).(*models.SpeedEvent)
	return e, args.Error(1)
}

func (m *mockEventManager) MarkProcessed(ctx context.Context, id int64) (*models.SpeedEvent, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.SpeedEvent)
	return e, args.Error(1)
}

func (m *mockEventManager) BulkMarkProcessed(ctx context.Context, ids []int64) ([]int64, error) {
	args := m.Called(ctx, ids)
	out, _ := args.Get(0).([]int64)
	return out, args.Error(1)
}

type mockDeviceStore struct{ mock.Mock }

func (m *mockDeviceStore) List(ctx context.Context) ([]*models.Device, error) {
	args := m.Called(ctx)
	d, _ := args.Get(0).([]*models.Device)
	return d, args.Error(1)
}

func (m *mockDeviceStore) GetByID(ctx context.Context, deviceID string) (*models.Device, error) {
	args := m.Called(ctx, deviceID)
	d, _ := args.Get(0).(*models.Device)
	return d, args.Error(1)
}

func (m *mockDeviceStore) GetActiveByAPIKey(ctx context.Context, apiKey string) (*models.Device, error) {
	args := m.Called(ctx, apiKey)
	d, _ := args.Get(0).(*models.Device)
	return d, args.Error(1)
}

type mockDeviceManager struct{ mock.Mock }

func (m *mockDeviceManager) Register(ctx context.Context, d *models.NewDevice) (*models.Device, error) {
	args := m.Called(ctx, d)
	dev, _ := args.Get(0).(*models.Device)
	return dev, args.Error(1)
}

func (m *mockDeviceManager) Update(ctx context.Context, deviceID string, u *models.DeviceUpdate) (*models.Device, error) {
	args := m.Called(ctx, deviceID, u)
	dev, _ := args.Get(0).(*models.Device)
	return dev, args.Error(1)
}

func (m *mockDeviceManager) RotateAPIKey(ctx context.Context, deviceID string) (*models.DeviceKey, error) {
	args := m.Called(ctx, deviceID)
	k, _ := args.Get(0).(*models.DeviceKey)
	return k, args.Error(1)
}

type mockSettingStore struct{ mock.Mock }

func (m *mockSettingStore) Get(ctx context.Context, key string, deviceID *string) (string, error) {
	args := m.Called(ctx, key, deviceID)
	return args.String(0), args.Error(1)
}

func (m *mockSettingStore) List(ctx context.Context, deviceID *string) ([]models.SettingEntry, error) {
	args := m.Called(ctx, deviceID)
	s, _ := args.Get(0).([]models.SettingEntry)
	return s, args.Error(1)
}

func (m *mockSettingStore) Set(ctx context.Context, key, value string, deviceID *string) (*models.Setting, error) {
	args := m.Called(ctx, key, value, deviceID)
	s, _ := args.Get(0).(*models.Setting)
	return s, args.Error(1)
}

func (m *mockSettingStore) Delete(ctx context.Context, key string, deviceID *string) (*models.Setting, error) {
	args := m.Called(ctx, key, deviceID)
	s, _ := args.Get(0).(*models.Setting)
	return s, args.Error(1)
}

type mockRetention struct{ mock.Mock }

func (m *mockRetention) RetentionDays(ctx context.Context) int {
	return m.Called(ctx).Int(0)
}

func (m *mockRetention) Sweep(ctx context.Context, days int) (int64, error) {
	args := m.Called(ctx, days)
	return args.Get(0).(int64), args.Error(1)
}

type mockPinger struct{ mock.Mock }

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
