package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultCBFailureRate       = 0.5
	DefaultCBMinRequests       = 20
	DefaultCBInterval          = time.Minute
	DefaultCBOpenTimeout       = 30 * time.Second
	DefaultCBMaxRequestsInHalf = 5
)

// CircuitBreakerConfig HTTP 入口熔断，5xx 响应计为失败.
// 后端存储自身的熔断见 BlobConfig.Breaker.
type CircuitBreakerConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	FailureRate float64 `mapstructure:"failure_rate" rule:"min=0,max=1"`
	// MinRequests 统计周期内请求数达到该值才会判定熔断
	MinRequests uint32 `mapstructure:"min_requests"`
	// Interval 闭合状态下计数清零的周期，0 表示不清零
	Interval time.Duration `mapstructure:"interval"     rule:"min=0"`
	// OpenTimeout 打开状态持续多久后进入半开
	OpenTimeout       time.Duration `mapstructure:"open_timeout" rule:"min=0"`
	MaxRequestsInHalf uint32        `mapstructure:"max_requests_in_half"`
	// ExcludePaths 不计入熔断统计的路径前缀，健康检查需要在熔断时仍可访问
	ExcludePaths []string `mapstructure:"exclude_paths"`
}

func (c *CircuitBreakerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("circuit_breaker.enabled", false)
	v.SetDefault("circuit_breaker.failure_rate", DefaultCBFailureRate)
	v.SetDefault("circuit_breaker.min_requests", DefaultCBMinRequests)
	v.SetDefault("circuit_breaker.interval", DefaultCBInterval)
	v.SetDefault("circuit_breaker.open_timeout", DefaultCBOpenTimeout)
	v.SetDefault("circuit_breaker.max_requests_in_half", DefaultCBMaxRequestsInHalf)
	v.SetDefault("circuit_breaker.exclude_paths", []string{"/api/v1/health", "/metrics"})
}
