// Package metrics 定义服务的 Prometheus 指标.
// HTTP 指标由 middleware 记录，业务指标由 service 与 jobs 直接递增.
package metrics

import (
	"net/http"
	"net/http/pprof"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 正在处理的请求数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	// UploadsTotal 成功写入的文件数，mode 为 server 或 signed.
	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_uploads_total",
			Help: "Number of files stored",
		},
		[]string{"mode"},
	)

	// UploadBytes 成功写入的字节数.
	UploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_upload_bytes_total",
			Help: "Bytes stored by uploads",
		},
	)

	// QuotaRejections 因配额不足被拒绝的请求.
	QuotaRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cloudvault_quota_rejections_total",
			Help: "Requests rejected because the storage quota would be exceeded",
		},
	)

	// BlobDeleteFailures 提交后尽力删除对象失败的次数.
	BlobDeleteFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_blob_delete_failures_total",
			Help: "Best-effort blob deletes that failed",
		},
		[]string{"reason"},
	)

	// EventsPublished 已发布的领域事件.
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_events_published_total",
			Help: "Domain events published",
		},
		[]string{"topic"},
	)

	// EventPublishFailures 发布失败的领域事件.
	EventPublishFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_event_publish_failures_total",
			Help: "Domain events that failed to publish",
		},
		[]string{"topic"},
	)

	// JobRuns 定时任务执行次数.
	JobRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cloudvault_job_runs_total",
			Help: "Scheduled job runs",
		},
		[]string{"job", "result"},
	)

	// BreakerState 熔断器状态：0 闭合，1 半开，2 打开.
	BreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cloudvault_circuit_breaker_state",
			Help: "Circuit breaker state per route (0 closed, 1 half-open, 2 open)",
		},
		[]string{"route"},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
)

var registerOnce sync.Once

// InitMetrics 注册全部指标，配置中的 labels 作为常量标签附加.
// 重复调用只有第一次生效.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	registerOnce.Do(func() {
		reg := prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)

		if config.RuntimeMetrics {
			reg.MustRegister(
				collectors.NewGoCollector(),
				collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			)
		}

		reg.MustRegister(
			RequestCounter, RequestDuration, ActiveConnections,
			UploadsTotal, UploadBytes, QuotaRejections, BlobDeleteFailures,
			EventsPublished, EventPublishFailures, JobRuns, BreakerState,
		)
	})

	return nil
}

// Handler 导出本包注册表与默认注册表，后者承载 gorm 插件的连接池指标.
func Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{ErrorHandling: promhttp.ContinueOnError},
	)
}

// StartMetricsServer 在主路由上挂载指标端点，可选挂载 pprof.
func StartMetricsServer(config configs.MetricsConfig, engine *gin.Engine) error {
	if !config.Enabled {
		return nil
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	engine.GET(path, gin.WrapH(Handler()))

	if config.Pprof {
		engine.GET("/debug/pprof/*name", pprofHandler)
	}

	return nil
}

func pprofHandler(c *gin.Context) {
	switch name := strings.TrimPrefix(c.Param("name"), "/"); name {
	case "":
		pprof.Index(c.Writer, c.Request)
	case "cmdline":
		pprof.Cmdline(c.Writer, c.Request)
	case "profile":
		pprof.Profile(c.Writer, c.Request)
	case "symbol":
		pprof.Symbol(c.Writer, c.Request)
	case "trace":
		pprof.Trace(c.Writer, c.Request)
	default:
		pprof.Handler(name).ServeHTTP(c.Writer, c.Request)
	}
}

// GetRegistry 返回本服务的 Prometheus 注册表.
func GetRegistry() *prometheus.Registry {
	return registry
}
