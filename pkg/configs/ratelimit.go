package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultRateLimitRPS     = 50.0
	DefaultRateLimitBurst   = 100
	DefaultRateLimitKey     = "ip"
	DefaultRateLimitIdleTTL = 10 * time.Minute
)

// RateLimitConfig 令牌桶限流.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"      rule:"min=0"`
	Burst   int     `mapstructure:"burst"    rule:"min=0"`
	// Key 限流维度：global、ip、user（匿名退回 ip）、header:Header-Name
	Key string `mapstructure:"key"`
	// IdleTTL 按键 limiter 闲置超过该时长后回收
	IdleTTL time.Duration `mapstructure:"idle_ttl" rule:"min=0"`
	// ExcludePaths 不限流的路径前缀
	ExcludePaths []string `mapstructure:"exclude_paths"`
}

func (c *RateLimitConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("rate_limit.enabled", false)
	v.SetDefault("rate_limit.rps", DefaultRateLimitRPS)
	v.SetDefault("rate_limit.burst", DefaultRateLimitBurst)
	v.SetDefault("rate_limit.key", DefaultRateLimitKey)
	v.SetDefault("rate_limit.idle_ttl", DefaultRateLimitIdleTTL)
	v.SetDefault("rate_limit.exclude_paths", []string{"/api/v1/health"})
}
