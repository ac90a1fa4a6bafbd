package models

import "time"

// SpeedEvent 测速事件
type SpeedEvent struct {
	ID              int64     `json:"id" db:"id"`
	DeviceID        string    `json:"device_id" db:"device_id"`
	VehicleID       *string   `json:"vehicle_id" db:"vehicle_id"`             // 车牌等车辆标识
	Speed           float64   `json:"speed" db:"speed"`                       // 实测速度
	SpeedLimit      float64   `json:"speed_limit" db:"speed_limit"`           // 限速
	ImageURL        *string   `json:"image_url" db:"image_url"`               // 抓拍图片
	Latitude        *float64  `json:"latitude" db:"latitude"`
	Longitude       *float64  `json:"longitude" db:"longitude"`
	LocationAddress *string   `json:"location_address" db:"location_address"` // 地址描述
	Processed       bool      `json:"processed" db:"processed"`               // 是否已人工审核
	CreatedAt       time.Time `json:"created_at" db:"created_at"`

	// 派生字段，不落库
	SpeedExcess       float64           `json:"speed_excess" db:"-"`
	IsViolation       bool              `json:"is_violation" db:"-"`
	ViolationCategory ViolationCategory `json:"violation_category" db:"-"`
}

// Severity 事件的超速严重程度
func (e *SpeedEvent) Severity() Severity {
	return Classify(e.Speed - e.SpeedLimit)
}

// Derive 填充派生字段
func (e *SpeedEvent) Derive() {
	e.SpeedExcess = e.Speed - e.SpeedLimit
	e.IsViolation = e.Speed > e.SpeedLimit
	e.ViolationCategory = e.Severity().Category()
}

// HasLocation 经纬度是否齐全
func (e *SpeedEvent) HasLocation() bool {
	return e.Latitude != nil && e.Longitude != nil
}

// NewSpeedEvent 设备上报的测速数据
type NewSpeedEvent struct {
	DeviceID        string
	VehicleID       *string
	Speed           float64
	SpeedLimit      float64
	ImageURL        *string
	Latitude        *float64
	Longitude       *float64
	LocationAddress *string
}

// LiveEvent 实时流中的事件
type LiveEvent struct {
	SpeedEvent
	SecondsAgo float64    `json:"seconds_ago" db:"seconds_ago"`
	TimeAgo    string     `json:"time_ago" db:"-"`
	AlertLevel AlertLevel `json:"alert_level" db:"-"`
}

// Decorate 填充派生字段及相对时间
func (e *LiveEvent) Decorate() {
	e.Derive()
	e.TimeAgo = FormatTimeAgo(e.SecondsAgo)
	e.AlertLevel = e.Severity().AlertLevel()
}

// MapEvent 地图视图中的事件
type MapEvent struct {
	SpeedEvent
	MarkerColor MarkerColor `json:"marker_color" db:"-"`
}

// Decorate 填充派生字段及标记颜色
func (e *MapEvent) Decorate() {
	e.Derive()
	e.MarkerColor = e.Severity().MarkerColor()
}

// GalleryImage 图库中的带图事件
type GalleryImage struct {
	SpeedEvent
	ThumbnailURL string `json:"thumbnail_url" db:"-"`
	FullSizeURL  string `json:"full_size_url" db:"-"`
}

// Decorate 填充派生字段及缩略图地址
func (g *GalleryImage) Decorate() {
	g.Derive()
	if g.ImageURL != nil {
		g.FullSizeURL = *g.ImageURL
		g.ThumbnailURL = ThumbnailURL(*g.ImageURL)
	}
}
