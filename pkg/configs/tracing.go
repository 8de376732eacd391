package configs

import (
	"time"

	"github.com/spf13/viper"
)

// TracingExporter 链路导出器类型.
type TracingExporter string

const (
	ExporterOTLPHTTP TracingExporter = "otlp-http"
	ExporterOTLPGRPC TracingExporter = "otlp-grpc"
	ExporterZipkin   TracingExporter = "zipkin"
)

// TracingConfig OpenTelemetry 链路追踪.
// 关闭时仍注册 W3C 传播器，上游 traceparent 会进入日志字段.
type TracingConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	ServiceName    string            `mapstructure:"service_name"    rule:"required"`
	ServiceVersion string            `mapstructure:"service_version"`
	ExporterType   TracingExporter   `mapstructure:"exporter_type"   rule:"oneof=otlp-http otlp-grpc zipkin"`
	Endpoint       string            `mapstructure:"endpoint"`
	Insecure       bool              `mapstructure:"insecure"` // 仅 otlp-grpc
	SampleRate     float64           `mapstructure:"sample_rate"     rule:"min=0,max=1"`
	BatchTimeout   time.Duration     `mapstructure:"batch_timeout"`
	MaxBatchSize   int               `mapstructure:"max_batch_size"  rule:"min=0"`
	MaxQueueSize   int               `mapstructure:"max_queue_size"  rule:"min=0"`
	ResourceLabels map[string]string `mapstructure:"resource_labels"`
}

func (c *TracingConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "cloudvault")
	v.SetDefault("tracing.service_version", AppVersion)
	v.SetDefault("tracing.exporter_type", ExporterOTLPHTTP)
	v.SetDefault("tracing.endpoint", "http://localhost:4318")
	v.SetDefault("tracing.insecure", true)
	v.SetDefault("tracing.sample_rate", 1.0)
	v.SetDefault("tracing.batch_timeout", "5s")
	v.SetDefault("tracing.max_batch_size", 512)
	v.SetDefault("tracing.max_queue_size", 2048)
	v.SetDefault("tracing.resource_labels", map[string]string{"deployment.environment": "dev"})
}
