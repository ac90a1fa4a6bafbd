package models

import "time"

// DeviceStatus 设备状态
type DeviceStatus string

const (
	DeviceStatusActive   DeviceStatus = "active"
	DeviceStatusInactive DeviceStatus = "inactive"
)

// Valid 是否为合法状态
func (s DeviceStatus) Valid() bool {
	return s == DeviceStatusActive || s == DeviceStatusInactive
}

// Device 测速设备
type Device struct {
	DeviceID  string       `json:"device_id" db:"device_id"`
	Name      string       `json:"name" db:"name"`
	Location  *string      `json:"location" db:"location"`
	Status    DeviceStatus `json:"status" db:"status"`
	APIKey    string       `json:"api_key,omitempty" db:"api_key"` // 仅在注册和重置时返回
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// NewDevice 注册设备请求
type NewDevice struct {
	DeviceID string
	Name     string
	Location *string
}

// DeviceUpdate 设备更新内容
type DeviceUpdate struct {
	Name     string
	Location *string
	Status   DeviceStatus
}

// DeviceKey 重置后的设备凭证
type DeviceKey struct {
	DeviceID string `json:"device_id" db:"device_id"`
	APIKey   string `json:"api_key" db:"api_key"`
}
