package models

import (
	"fmt"
	"math"
	"regexp"
)

// FormatTimeAgo 将秒数格式化为相对时间 (向下取整)
func FormatTimeAgo(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	s := int64(math.Floor(seconds))
	switch {
	case s < 60:
		return fmt.Sprintf("%ds ago", s)
	case s < 3600:
		return fmt.Sprintf("%dm ago", s/60)
	case s < 86400:
		return fmt.Sprintf("%dh ago", s/3600)
	default:
		return fmt.Sprintf("%dd ago", s/86400)
	}
}

var imageExtRe = regexp.MustCompile(`(?i)\.(jpg|jpeg|png)$`)

// ThumbnailURL 在图片扩展名前插入 _thumb，不识别的扩展名原样返回
func ThumbnailURL(url string) string {
	return imageExtRe.ReplaceAllString(url, "_thumb.$1")
}
