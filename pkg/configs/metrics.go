package configs

import "github.com/spf13/viper"

// MetricsConfig Prometheus 指标.
// 指标挂在主 HTTP 服务上，path 默认 /metrics.
type MetricsConfig struct {
	Enabled        bool              `mapstructure:"enabled"`
	Path           string            `mapstructure:"path"            rule:"omitempty,startswith=/"`
	RuntimeMetrics bool              `mapstructure:"runtime_metrics"`
	Pprof          bool              `mapstructure:"pprof"`
	Labels         map[string]string `mapstructure:"labels"` // 附加到全部指标上的常量标签
}

func (c *MetricsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.runtime_metrics", true)
	v.SetDefault("metrics.pprof", false)
	v.SetDefault("metrics.labels", map[string]string{"service": "cloudvault"})
}
