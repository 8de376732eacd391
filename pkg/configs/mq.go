package configs

import (
	"time"

	"github.com/spf13/viper"
)

// MQType 领域事件总线后端.
type MQType string

const (
	MQTypeNATS  MQType = "nats"
	MQTypeRedis MQType = "redis"
	// MQTypeMemory 进程内 gochannel，单实例部署与测试使用
	MQTypeMemory MQType = "memory"
)

// MQConfig 消息队列配置，只有 type 对应的子配置生效.
type MQConfig struct {
	Type          MQType         `mapstructure:"type"           rule:"oneof=nats redis memory"`
	EnableMetrics bool           `mapstructure:"enable_metrics"`
	NATS          MQNATSConfig   `mapstructure:"nats"`
	Redis         MQRedisConfig  `mapstructure:"redis"`
	Memory        MQMemoryConfig `mapstructure:"memory"`
}

// MQNATSConfig NATS / JetStream.
type MQNATSConfig struct {
	URL         string   `mapstructure:"url"`
	ClusterURLs []string `mapstructure:"cluster_urls"`
	ClientName  string   `mapstructure:"client_name"`

	// 认证优先级 credentials > nkey_seed > user/password
	Credentials string `mapstructure:"credentials"` // .creds 文件路径
	NKeySeed    string `mapstructure:"nkey_seed"`   // nkey 种子文件路径
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`

	MaxReconnects   int           `mapstructure:"max_reconnects"   rule:"min=-1"`
	ReconnectWait   time.Duration `mapstructure:"reconnect_wait"`
	PingInterval    time.Duration `mapstructure:"ping_interval"`
	ReconnectBuffer int           `mapstructure:"reconnect_buffer" rule:"min=0"`

	JetStream     bool          `mapstructure:"jetstream"`
	AutoProvision bool          `mapstructure:"auto_provision"`
	TrackMsgID    bool          `mapstructure:"track_msg_id"`
	AckAsync      bool          `mapstructure:"ack_async"`
	DurablePrefix string        `mapstructure:"durable_prefix"`
	AckWait       time.Duration `mapstructure:"ack_wait"`
	// QueueGroup 非空时多个实例按队列组分摊消息
	QueueGroup string `mapstructure:"queue_group"`
}

// MQRedisConfig Redis Pub/Sub，消息不持久.
type MQRedisConfig struct {
	Addr       string `mapstructure:"addr"        rule:"hostname_port"`
	Password   string `mapstructure:"password"`
	DB         int    `mapstructure:"db"          rule:"min=0,max=15"`
	ChanBuffer int    `mapstructure:"chan_buffer" rule:"min=1"`
}

// MQMemoryConfig 进程内 MQ 配置.
type MQMemoryConfig struct {
	OutputBuffer int64 `mapstructure:"output_buffer" rule:"min=0"`
	Persistent   bool  `mapstructure:"persistent"`
}

func (c *MQConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("mq.type", MQTypeMemory)
	v.SetDefault("mq.enable_metrics", true)

	v.SetDefault("mq.nats.url", "nats://localhost:4222")
	v.SetDefault("mq.nats.client_name", "cloudvault")
	v.SetDefault("mq.nats.max_reconnects", 5)
	v.SetDefault("mq.nats.reconnect_wait", "5s")
	v.SetDefault("mq.nats.ping_interval", "20s")
	v.SetDefault("mq.nats.reconnect_buffer", 32*1024)
	v.SetDefault("mq.nats.jetstream", true)
	v.SetDefault("mq.nats.auto_provision", true)
	v.SetDefault("mq.nats.track_msg_id", true)
	v.SetDefault("mq.nats.ack_async", false)
	v.SetDefault("mq.nats.durable_prefix", "cloudvault")
	v.SetDefault("mq.nats.ack_wait", "30s")
	v.SetDefault("mq.nats.queue_group", "cloudvault")

	v.SetDefault("mq.redis.addr", "localhost:6379")
	v.SetDefault("mq.redis.db", 0)
	v.SetDefault("mq.redis.chan_buffer", 100)

	v.SetDefault("mq.memory.output_buffer", 256)
	v.SetDefault("mq.memory.persistent", false)
}
