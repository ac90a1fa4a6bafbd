package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/speedgazer/internal/models"
)

const resourceSpeedEvent = "speed event"

// CreateSpeedEvent 设备上报测速事件
func (h *Handler) CreateSpeedEvent(c *gin.Context) {
	device := deviceFrom(c)
	if device == nil {
		fail(c, http.StatusUnauthorized, "API key required")
		return
	}

	var req speedEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.handleError(c, bindError(err), resourceSpeedEvent, "record")
		return
	}

	event, err := h.eventService.Ingest(c.Request.Context(), req.toModel(device.DeviceID))
	if err != nil {
		h.handleError(c, err, resourceSpeedEvent, "record")
		return
	}

	respond(c, http.StatusCreated, "Speed event recorded successfully", event)
}

// ListSpeedEvents 分页查询测速事件
func (h *Handler) ListSpeedEvents(c *gin.Context) {
	var q listQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "speed events", "fetch")
		return
	}
	f, err := q.Filter()
	if err != nil {
		h.handleError(c, err, "speed events", "fetch")
		return
	}

	events, page, err := h.events.List(c.Request.Context(), f, models.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		h.handleError(c, err, "speed events", "fetch")
		return
	}

	respondPage(c, events, page, nil)
}

// GetSpeedEventStats 统计总览、类别分布、趋势及设备排行
func (h *Handler) GetSpeedEventStats(c *gin.Context) {
	var q statsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "speed event statistics", "fetch")
		return
	}
	f, err := q.Filter()
	if err != nil {
		h.handleError(c, err, "speed event statistics", "fetch")
		return
	}

	stats, err := h.events.Stats(c.Request.Context(), f)
	if err != nil {
		h.handleError(c, err, "speed event statistics", "fetch")
		return
	}

	respond(c, http.StatusOK, "", stats)
}

// GetSpeedDistribution 按小时或天聚合的时间分布
func (h *Handler) GetSpeedDistribution(c *gin.Context) {
	var q distributionQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "speed distribution", "fetch")
		return
	}
	if q.DeviceID == "" || q.DateFrom == "" || q.DateTo == "" {
		fail(c, http.StatusBadRequest, "device_id, date_from, and date_to are required")
		return
	}
	f, err := q.Filter()
	if err != nil {
		h.handleError(c, err, "speed distribution", "fetch")
		return
	}

	interval := models.Interval(q.Interval)
	buckets, err := h.events.Distribution(c.Request.Context(), f, interval)
	if err != nil {
		h.handleError(c, err, "speed distribution", "fetch")
		return
	}

	respondMeta(c, buckets, gin.H{
		"device_id":     q.DeviceID,
		"date_from":     q.DateFrom,
		"date_to":       q.DateTo,
		"interval":      interval,
		"total_periods": len(buckets),
	})
}

// ListRecentSpeedEvents 最近的测速事件
func (h *Handler) ListRecentSpeedEvents(c *gin.Context) {
	var q recentQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "recent speed events", "fetch")
		return
	}

	f := models.SpeedEventFilter{DeviceID: q.DeviceID, ViolationsOnly: q.ViolationsOnly}
	events, err := h.events.Recent(c.Request.Context(), f, q.Limit)
	if err != nil {
		h.handleError(c, err, "recent speed events", "fetch")
		return
	}

	respond(c, http.StatusOK, "", events)
}

// GetLiveFeed 实时事件流，since 之后的新事件
func (h *Handler) GetLiveFeed(c *gin.Context) {
	var q liveQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "live feed", "fetch")
		return
	}
	since, err := parseTime("since", q.Since)
	if err != nil {
		h.handleError(c, err, "live feed", "fetch")
		return
	}

	f := models.SpeedEventFilter{
		DeviceID:        q.DeviceID,
		Since:           since,
		UnprocessedOnly: q.UnprocessedOnly,
		ViolationsOnly:  q.ViolationsOnly,
	}
	events, err := h.events.LiveFeed(c.Request.Context(), f, q.Limit)
	if err != nil {
		h.handleError(c, err, "live feed", "fetch")
		return
	}

	respondMeta(c, events, gin.H{"count": len(events), "limit": q.Limit})
}

// GetSpeedEventMap 带坐标的事件及按位置的聚合
func (h *Handler) GetSpeedEventMap(c *gin.Context) {
	var q FilterQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "map data", "fetch")
		return
	}
	f, err := q.Filter()
	if err != nil {
		h.handleError(c, err, "map data", "fetch")
		return
	}

	view, err := h.events.WithLocations(c.Request.Context(), f)
	if err != nil {
		h.handleError(c, err, "map data", "fetch")
		return
	}

	respondMeta(c, view, gin.H{
		"total_events":    len(view.Events),
		"total_locations": len(view.Clusters),
	})
}

// GetSpeedEventGallery 带抓拍图片的事件
func (h *Handler) GetSpeedEventGallery(c *gin.Context) {
	var q galleryQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.handleError(c, bindError(err), "gallery", "fetch")
		return
	}
	f, err := q.FilterQuery.Filter()
	if err != nil {
		h.handleError(c, err, "gallery", "fetch")
		return
	}
	f.Processed = q.Processed

	view, err := h.events.Gallery(c.Request.Context(), f, models.Page{Page: q.Page, Limit: q.Limit})
	if err != nil {
		h.handleError(c, err, "gallery", "fetch")
		return
	}

	respondPage(c, view.Images, view.Page, view.Stats)
}

// GetSpeedEvent 获取单个事件
func (h *Handler) GetSpeedEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	event, err := h.events.GetByID(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, resourceSpeedEvent, "fetch")
		return
	}

	respond(c, http.StatusOK, "", event)
}

// ProcessSpeedEvent 标记事件为已处理
func (h *Handler) ProcessSpeedEvent(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	event, err := h.eventService.MarkProcessed(c.Request.Context(), id)
	if err != nil {
		h.handleError(c, err, resourceSpeedEvent, "update")
		return
	}

	respond(c, http.StatusOK, "Speed event marked as processed", event)
}

// BulkProcessSpeedEvents 批量标记为已处理，不存在的 id 忽略
func (h *Handler) BulkProcessSpeedEvents(c *gin.Context) {
	var req bulkProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "ids array is required and cannot be empty")
		return
	}

	ids, err := h.eventService.BulkMarkProcessed(c.Request.Context(), req.IDs)
	if err != nil {
		h.handleError(c, err, "speed events", "bulk update")
		return
	}

	respond(c, http.StatusOK,
		fmt.Sprintf("%d speed events marked as processed", len(ids)),
		gin.H{"processed_ids": ids},
	)
}

// SweepRetention 按生效的保留天数立即清理一次过期事件
func (h *Handler) SweepRetention(c *gin.Context) {
	days := h.retention.RetentionDays(c.Request.Context())

	deleted, err := h.retention.Sweep(c.Request.Context(), days)
	if err != nil {
		h.handleError(c, err, "speed events", "delete")
		return
	}

	h.logger.Info("Manual retention sweep",
		zap.Int("days", days),
		zap.Int64("deleted", deleted),
		zap.String("request_id", requestID(c)),
	)
	respond(c, http.StatusOK,
		fmt.Sprintf("%d speed events older than %d days deleted", deleted, days),
		gin.H{"deleted_count": deleted, "days": days},
	)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, `"id" must be a positive integer`)
		return 0, false
	}
	return id, true
}
