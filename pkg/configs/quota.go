package configs

import "github.com/spf13/viper"

// DefaultQuotaBytes 新用户默认配额 5GiB.
const DefaultQuotaBytes int64 = 5 * 1024 * 1024 * 1024

// QuotaConfig 存储配额配置.
type QuotaConfig struct {
	DefaultBytes int64 `mapstructure:"default_bytes" rule:"min=0"`
}

func (c *QuotaConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("quota.default_bytes", DefaultQuotaBytes)
}
