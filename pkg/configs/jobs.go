package configs

import "github.com/spf13/viper"

const (
	DefaultOrphanGCCron       = "*/15 * * * *"
	DefaultShareSweepCron     = "0 * * * *"
	DefaultQuotaReconcileCron = "20 3 * * *"
)

// JobsConfig 定时任务配置，cron 表达式为空则不注册该任务.
type JobsConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	OrphanGCCron       string `mapstructure:"orphan_gc_cron"`
	ShareSweepCron     string `mapstructure:"share_sweep_cron"`
	QuotaReconcileCron string `mapstructure:"quota_reconcile_cron"`
}

func (c *JobsConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("jobs.enabled", true)
	v.SetDefault("jobs.orphan_gc_cron", DefaultOrphanGCCron)
	v.SetDefault("jobs.share_sweep_cron", DefaultShareSweepCron)
	v.SetDefault("jobs.quota_reconcile_cron", DefaultQuotaReconcileCron)
}
