package models

// Severity 超速严重程度，按超出限速的幅度分级
type Severity int

const (
	SeverityWithinLimit Severity = iota // 未超速
	SeverityMinor                       // 轻微超速
	SeverityModerate                    // 中度超速
	SeveritySevere                      // 严重超速
)

// ExcessThresholds 各等级的超速上限 (含边界)，超过最后一个阈值即为严重超速
var ExcessThresholds = [...]float64{0, 10, 20}

// ViolationCategory 违章类别
type ViolationCategory string

const (
	CategoryWithinLimit       ViolationCategory = "within_limit"
	CategoryMinorViolation    ViolationCategory = "minor_violation"
	CategoryModerateViolation ViolationCategory = "moderate_violation"
	CategorySevereViolation   ViolationCategory = "severe_violation"
)

// AlertLevel 实时推送的告警级别
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertDanger   AlertLevel = "danger"
	AlertCritical AlertLevel = "critical"
)

// MarkerColor 地图标记颜色
type MarkerColor string

const (
	MarkerGreen  MarkerColor = "green"
	MarkerYellow MarkerColor = "yellow"
	MarkerOrange MarkerColor = "orange"
	MarkerRed    MarkerColor = "red"
)

var (
	severityCategories = [...]ViolationCategory{CategoryWithinLimit, CategoryMinorViolation, CategoryModerateViolation, CategorySevereViolation}
	severityAlerts     = [...]AlertLevel{AlertInfo, AlertWarning, AlertDanger, AlertCritical}
	severityColors     = [...]MarkerColor{MarkerGreen, MarkerYellow, MarkerOrange, MarkerRed}
)

// Classify 根据超速幅度 (speed - speed_limit) 计算严重程度
func Classify(excess float64) Severity {
	for i, t := range ExcessThresholds {
		if excess <= t {
			return Severity(i)
		}
	}
	return SeveritySevere
}

func (s Severity) valid() bool {
	return s >= SeverityWithinLimit && s <= SeveritySevere
}

// Category 违章类别
func (s Severity) Category() ViolationCategory {
	if !s.valid() {
		return CategorySevereViolation
	}
	return severityCategories[s]
}

// AlertLevel 告警级别
func (s Severity) AlertLevel() AlertLevel {
	if !s.valid() {
		return AlertCritical
	}
	return severityAlerts[s]
}

// MarkerColor 地图标记颜色
func (s Severity) MarkerColor() MarkerColor {
	if !s.valid() {
		return MarkerRed
	}
	return severityColors[s]
}

// Categories 按严重程度排序的全部违章类别
func Categories() []ViolationCategory {
	out := make([]ViolationCategory, len(severityCategories))
	copy(out, severityCategories[:])
	return out
}
