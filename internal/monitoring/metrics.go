// Package monitoring 提供 Prometheus 指标采集。
package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 监控指标
type Metrics struct {
	// HTTP 请求指标
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// 邮箱会话指标
	AddressesGenerated prometheus.Counter
	SessionsActive     prometheus.Gauge
	RefreshesTotal     prometheus.Counter

	// 自定义地址指标
	CustomAddressesRegistered prometheus.Counter
	CustomAddressRejections   *prometheus.CounterVec

	// 过滤规则指标
	FilterOperations *prometheus.CounterVec

	// 通知与连接指标
	NotificationsDelivered prometheus.Counter
	WebsocketConnections   prometheus.Gauge
}

// NewMetrics 创建监控指标
func NewMetrics() *Metrics {
	return &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tempmail_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		AddressesGenerated: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_addresses_generated_total",
				Help: "Total number of random addresses generated",
			},
		),
		SessionsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_inbox_sessions_active",
				Help: "Number of active inbox sessions",
			},
		),
		RefreshesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_message_refreshes_total",
				Help: "Total number of message list refreshes",
			},
		),
		CustomAddressesRegistered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_custom_addresses_registered_total",
				Help: "Total number of custom addresses registered",
			},
		),
		CustomAddressRejections: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_custom_address_rejections_total",
				Help: "Total number of rejected custom address registrations",
			},
			[]string{"reason"},
		),
		FilterOperations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tempmail_filter_operations_total",
				Help: "Total number of filter management operations",
			},
			[]string{"operation"},
		),
		NotificationsDelivered: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "tempmail_notifications_delivered_total",
				Help: "Total number of notifications delivered to clients",
			},
		),
		WebsocketConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "tempmail_websocket_connections",
				Help: "Number of open websocket connections",
			},
		),
	}
}

// Middleware 记录 HTTP 请求指标的 gin 中间件
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()
		m.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

// Handler 返回 /metrics 端点处理器
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
