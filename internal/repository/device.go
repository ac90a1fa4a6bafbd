package repository

import (
	"context"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"

	"github.com/langchou/speedgazer/internal/models"
)

// 列表与详情不返回 api_key
const deviceColumns = `device_id, name, location, status, created_at, updated_at`

// DeviceRepository 设备数据仓库
type DeviceRepository struct {
	db *DB
}

// NewDeviceRepository 创建设备仓库
func NewDeviceRepository(db *DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// Create 注册设备，返回包含 api_key 的完整记录
func (r *DeviceRepository) Create(ctx context.Context, d *models.NewDevice, apiKey string) (*models.Device, error) {
	query := `
		INSERT INTO devices (device_id, name, location, api_key)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + deviceColumns + `, api_key
	`
	var device models.Device
	if err := pgxscan.Get(ctx, r.db.Pool, &device, query, d.DeviceID, d.Name, d.Location, apiKey); err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("create device: %w", err)
	}
	return &device, nil
}

// List 获取所有设备，按名称排序
func (r *DeviceRepository) List(ctx context.Context) ([]*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices ORDER BY name ASC`

	var devices []*models.Device
	if err := pgxscan.Select(ctx, r.db.Pool, &devices, query); err != nil {
		return nil, fmt.Errorf("list devices: %w", err)
	}
	return nonNil(devices), nil
}

// GetByID 根据 device_id 获取设备
func (r *DeviceRepository) GetByID(ctx context.Context, deviceID string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE device_id = $1`

	var device models.Device
	if err := pgxscan.Get(ctx, r.db.Pool, &device, query, deviceID); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device: %w", err)
	}
	return &device, nil
}

// GetActiveByAPIKey 根据 api_key 查找启用状态的设备
func (r *DeviceRepository) GetActiveByAPIKey(ctx context.Context, apiKey string) (*models.Device, error) {
	query := `SELECT ` + deviceColumns + ` FROM devices WHERE api_key = $1 AND status = $2`

	var device models.Device
	if err := pgxscan.Get(ctx, r.db.Pool, &device, query, apiKey, models.DeviceStatusActive); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get device by api key: %w", err)
	}
	return &device, nil
}

// Update 整体替换可变字段
func (r *DeviceRepository) Update(ctx context.Context, deviceID string, u *models.DeviceUpdate) (*models.Device, error) {
	query := `
		UPDATE devices
		SET name = $2, location = $3, status = $4, updated_at = NOW()
		WHERE device_id = $1
		RETURNING ` + deviceColumns

	var device models.Device
	if err := pgxscan.Get(ctx, r.db.Pool, &device, query, deviceID, u.Name, u.Location, u.Status); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update device: %w", err)
	}
	return &device, nil
}

// RotateAPIKey 替换设备的 api_key，旧 key 立即失效
func (r *DeviceRepository) RotateAPIKey(ctx context.Context, deviceID, apiKey string) (*models.DeviceKey, error) {
	query := `
		UPDATE devices
		SET api_key = $2, updated_at = NOW()
		WHERE device_id = $1
		RETURNING device_id, api_key
	`
	var key models.DeviceKey
	if err := pgxscan.Get(ctx, r.db.Pool, &key, query, deviceID, apiKey); err != nil {
		if isNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("rotate device api key: %w", err)
	}
	return &key, nil
}
