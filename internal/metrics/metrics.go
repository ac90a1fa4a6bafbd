package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// API 指标
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedgazer_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "speedgazer_api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// 测速事件指标
	SpeedEventsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedgazer_speed_events_ingested_total",
			Help: "Total number of speed events ingested, by violation category",
		},
		[]string{"category"},
	)

	SpeedEventsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedgazer_speed_events_processed_total",
			Help: "Total number of speed events transitioned to processed",
		},
	)

	IngestRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedgazer_ingest_rate_limited_total",
			Help: "Total number of ingest requests rejected by the per-device rate limiter",
		},
	)

	// 数据保留指标
	RetentionDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedgazer_retention_deleted_total",
			Help: "Total number of speed events deleted by retention sweeps",
		},
	)

	RetentionLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedgazer_retention_last_success_timestamp",
			Help: "Unix timestamp of the last successful retention sweep",
		},
	)

	RetentionErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "speedgazer_retention_errors_total",
			Help: "Total number of failed retention sweeps",
		},
	)

	// 逆地理编码指标
	GeocodeRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "speedgazer_geocode_requests_total",
			Help: "Total number of reverse geocoding lookups",
		},
		[]string{"result"}, // "success", "error"
	)

	// WebSocket 指标
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "speedgazer_websocket_connections",
			Help: "Current number of live feed websocket clients",
		},
	)
)

// RecordAPIRequest 记录一次 API 请求
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	if endpoint == "" {
		endpoint = "unmatched"
	}
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordIngest 记录一条写入的测速事件
func RecordIngest(category string) {
	SpeedEventsIngested.WithLabelValues(category).Inc()
}

// RecordProcessed 记录状态转换为已处理的事件数
func RecordProcessed(n int) {
	SpeedEventsProcessed.Add(float64(n))
}

// RecordRetention 记录一次保留清理
func RecordRetention(deleted int64, err error) {
	if err != nil {
		RetentionErrors.Inc()
		return
	}
	RetentionDeleted.Add(float64(deleted))
	RetentionLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordGeocode 记录一次逆地理编码
func RecordGeocode(err error) {
	if err != nil {
		GeocodeRequests.WithLabelValues("error").Inc()
		return
	}
	GeocodeRequests.WithLabelValues("success").Inc()
}
