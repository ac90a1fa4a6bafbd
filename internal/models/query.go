package models

import (
	"math"
	"time"
)

// SpeedEventFilter 测速事件查询条件，零值字段不参与过滤
type SpeedEventFilter struct {
	DeviceID        string
	MinSpeed        *float64
	DateFrom        *time.Time
	DateTo          *time.Time
	Processed       *bool
	ViolationsOnly  bool       // 仅 speed > speed_limit
	Since           *time.Time // 严格晚于该时间
	UnprocessedOnly bool
}

// Page 分页参数
type Page struct {
	Page  int
	Limit int
}

// Offset 计算偏移量，溢出时取 math.MaxInt
func (p Page) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// PageInfo 分页信息
type PageInfo struct {
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	TotalPages int   `json:"totalPages"`
	Limit      int   `json:"limit"`
}

// NewPageInfo 根据总数生成分页信息
func NewPageInfo(total int64, p Page) PageInfo {
	pages := 0
	if p.Limit > 0 {
		pages = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	}
	return PageInfo{Total: total, Page: p.Page, TotalPages: pages, Limit: p.Limit}
}

// Interval 时间分布的聚合粒度
type Interval string

const (
	IntervalHour Interval = "hour"
	IntervalDay  Interval = "day"
)

// Valid 是否为支持的粒度
func (i Interval) Valid() bool {
	return i == IntervalHour || i == IntervalDay
}
