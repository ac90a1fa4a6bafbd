package models

import (
	"math"
	"time"
)

// StatsOverview 总览统计
type StatsOverview struct {
	TotalEvents        int64   `json:"total_events" db:"total_events"`
	UnprocessedEvents  int64   `json:"unprocessed_events" db:"unprocessed_events"`
	SpeedingViolations int64   `json:"speeding_violations" db:"speeding_violations"`
	ViolationRate      float64 `json:"violation_rate" db:"-"` // 百分比，保留两位小数
	AvgSpeed           float64 `json:"avg_speed" db:"avg_speed"`
	MaxSpeed           float64 `json:"max_speed" db:"max_speed"`
	MinSpeed           float64 `json:"min_speed" db:"min_speed"`
	AvgSpeedLimit      float64 `json:"avg_speed_limit" db:"avg_speed_limit"`
	AvgSpeedExcess     float64 `json:"avg_speed_excess" db:"avg_speed_excess"`
	MedianSpeed        float64 `json:"median_speed" db:"median_speed"`
	P95Speed           float64 `json:"p95_speed" db:"p95_speed"`
}

// CategoryBucket 违章类别分布
type CategoryBucket struct {
	ViolationCategory ViolationCategory `json:"violation_category" db:"violation_category"`
	Count             int64             `json:"count" db:"count"`
	AvgExcess         float64           `json:"avg_excess" db:"avg_excess"`
}

// TrendPoint 按天的趋势
type TrendPoint struct {
	Date       string  `json:"date" db:"date"`
	Count      int64   `json:"count" db:"count"`
	AvgSpeed   float64 `json:"avg_speed" db:"avg_speed"`
	Violations int64   `json:"violations" db:"violations"`
}

// DeviceBreakdown 按设备的统计
type DeviceBreakdown struct {
	DeviceID      string  `json:"device_id" db:"device_id"`
	EventCount    int64   `json:"event_count" db:"event_count"`
	AvgSpeed      float64 `json:"avg_speed" db:"avg_speed"`
	MaxSpeed      float64 `json:"max_speed" db:"max_speed"`
	Violations    int64   `json:"violations" db:"violations"`
	ViolationRate float64 `json:"violation_rate" db:"violation_rate"`
}

// SpeedStats 统计结果
type SpeedStats struct {
	Overview     StatsOverview     `json:"overview"`
	Distribution []CategoryBucket  `json:"distribution"`
	Trend        []TrendPoint      `json:"trend"`
	ByDevice     []DeviceBreakdown `json:"by_device"`
}

// DistributionBucket 时间分布桶
type DistributionBucket struct {
	TimePeriod time.Time `json:"time_period" db:"time_period"`
	Count      int64     `json:"count" db:"count"`
	AvgSpeed   float64   `json:"avg_speed" db:"avg_speed"`
	MaxSpeed   float64   `json:"max_speed" db:"max_speed"`
	Violations int64     `json:"violations" db:"violations"`
}

// MapView 地图视图
type MapView struct {
	Events   []*MapEvent        `json:"individual_events"`
	Clusters []*LocationCluster `json:"location_clusters"`
}

// GalleryStats 图库统计
type GalleryStats struct {
	TotalImages       int64 `json:"total_images" db:"total_images"`
	ViolationImages   int64 `json:"violation_images" db:"violation_images"`
	UnprocessedImages int64 `json:"unprocessed_images" db:"unprocessed_images"`
}

// GalleryView 图库分页结果
type GalleryView struct {
	Images []*GalleryImage `json:"images"`
	Stats  GalleryStats    `json:"stats"`
	Page   PageInfo        `json:"-"`
}

// ViolationRate 违章率百分比，保留两位小数，total 为 0 时返回 0
func ViolationRate(violations, total int64) float64 {
	if total == 0 {
		return 0
	}
	return Round2(float64(violations) / float64(total) * 100)
}

// Round2 保留两位小数
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
