package configs

import "github.com/spf13/viper"

// EventsConfig 控制领域事件发布的开关（全局与分主题）.
type EventsConfig struct {
	Enabled bool               `mapstructure:"enabled"` // 总开关
	File    FileEventsConfig   `mapstructure:"file"`
	Folder  FolderEventsConfig `mapstructure:"folder"`
	Share   ShareEventsConfig  `mapstructure:"share"`
	Upload  UploadEventsConfig `mapstructure:"upload"`
	Quota   QuotaEventsConfig  `mapstructure:"quota"`
	User    UserEventsConfig   `mapstructure:"user"`
}

// FileEventsConfig 文件事件.
type FileEventsConfig struct {
	Stored      bool `mapstructure:"stored"`
	Deleted     bool `mapstructure:"deleted"`
	Moved       bool `mapstructure:"moved"`
	Transferred bool `mapstructure:"transferred"`
}

// FolderEventsConfig 文件夹事件.
type FolderEventsConfig struct {
	Created bool `mapstructure:"created"`
	Deleted bool `mapstructure:"deleted"`
}

// ShareEventsConfig 共享事件.
type ShareEventsConfig struct {
	Granted bool `mapstructure:"granted"`
	Revoked bool `mapstructure:"revoked"`
}

// UploadEventsConfig 上传事件.
type UploadEventsConfig struct {
	Orphaned bool `mapstructure:"orphaned"`
}

// QuotaEventsConfig 配额事件.
type QuotaEventsConfig struct {
	Exceeded bool `mapstructure:"exceeded"`
}

// UserEventsConfig 用户事件.
type UserEventsConfig struct {
	Provisioned bool `mapstructure:"provisioned"`
}

func (c *EventsConfig) setDefaults(v *viper.Viper) {
	// 总开关：默认启用事件系统
	v.SetDefault("events.enabled", true)

	// 最小必要集默认开启
	v.SetDefault("events.file.stored", true)
	v.SetDefault("events.file.deleted", true)
	v.SetDefault("events.folder.deleted", true)
	v.SetDefault("events.share.granted", true)
	v.SetDefault("events.share.revoked", true)
	v.SetDefault("events.user.provisioned", true)

	// 可选事件：默认关闭，按需开启
	v.SetDefault("events.file.moved", false)
	v.SetDefault("events.file.transferred", false)
	v.SetDefault("events.folder.created", false)
	v.SetDefault("events.upload.orphaned", false)
	v.SetDefault("events.quota.exceeded", false) // 告警事件，量可能较大
}
