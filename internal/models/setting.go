package models

import "time"

// Setting 配置项，DeviceID 为空表示全局配置
type Setting struct {
	DeviceID  *string   `json:"device_id" db:"device_id"`
	Key       string    `json:"key" db:"key"`
	Value     string    `json:"value" db:"value"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// SettingEntry 生效的配置值
type SettingEntry struct {
	Key      string `json:"key" db:"key"`
	Value    string `json:"value" db:"value"`
	IsCustom *bool  `json:"is_custom,omitempty" db:"is_custom"` // 仅设备维度查询时返回
}

// SettingRetentionDays 事件保留天数
const SettingRetentionDays = "retention_days"
