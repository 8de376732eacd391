package configs

import (
	"time"

	"github.com/spf13/viper"
)

// KVConfig 选择 KV 后端，只有 Type 对应的配置段生效.
// 缓存、会话、下载令牌与限流计数共用同一个后端.
type KVConfig struct {
	Type       string             `mapstructure:"type"       rule:"oneof=memory redis nats groupcache badger"`
	Redis      RedisKVConfig      `mapstructure:"redis"`
	NATS       NATSKVConfig       `mapstructure:"nats"`
	Groupcache GroupcacheKVConfig `mapstructure:"groupcache"`
	Badger     BadgerKVConfig     `mapstructure:"badger"`
}

type RedisKVConfig struct {
	Addr        string        `mapstructure:"addr"         rule:"hostname_port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"           rule:"min=0,max=15"`
	KeyPrefix   string        `mapstructure:"key_prefix"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	PoolSize    int           `mapstructure:"pool_size"    rule:"min=0"` // 0 使用 go-redis 默认值
}

// NATSKVConfig JetStream KeyValue；bucket 不存在时按 MaxAge/Replicas 创建.
type NATSKVConfig struct {
	URL      string        `mapstructure:"url"      rule:"required"`
	User     string        `mapstructure:"user"`
	Password string        `mapstructure:"password"`
	Bucket   string        `mapstructure:"bucket"   rule:"required"`
	MaxAge   time.Duration `mapstructure:"max_age"`
	Replicas int           `mapstructure:"replicas" rule:"min=0,max=5"`
}

// GroupcacheKVConfig Peers 为空时退化为单节点内存缓存.
type GroupcacheKVConfig struct {
	Name       string   `mapstructure:"name"        rule:"required"`
	CacheBytes int64    `mapstructure:"cache_bytes" rule:"min=1048576"`
	Peers      []string `mapstructure:"peers"`
	Self       string   `mapstructure:"self"        rule:"omitempty,url"`
	BasePath   string   `mapstructure:"base_path"   rule:"startswith=/,endswith=/"`
}

type BadgerKVConfig struct {
	Dir      string `mapstructure:"dir"`
	InMemory bool   `mapstructure:"in_memory"` // 为 true 时忽略 Dir
}

const (
	KVTypeMemory     = "memory"
	KVTypeRedis      = "redis"
	KVTypeNATS       = "nats"
	KVTypeGroupcache = "groupcache"
	KVTypeBadger     = "badger"

	DefaultKVType               = KVTypeMemory
	DefaultBadgerDir            = "data/kv"
	DefaultGroupcacheCacheBytes = 64 << 20
)

func (c *KVConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("kv.type", DefaultKVType)

	v.SetDefault("kv.redis.addr", "localhost:6379")
	v.SetDefault("kv.redis.db", 0)
	v.SetDefault("kv.redis.key_prefix", "cloudvault:")
	v.SetDefault("kv.redis.dial_timeout", 5*time.Second)
	v.SetDefault("kv.redis.pool_size", 0)

	v.SetDefault("kv.nats.url", "nats://localhost:4222")
	v.SetDefault("kv.nats.bucket", "cloudvault-kv")
	v.SetDefault("kv.nats.max_age", 0)
	v.SetDefault("kv.nats.replicas", 1)

	v.SetDefault("kv.groupcache.name", "cloudvault-cache")
	v.SetDefault("kv.groupcache.cache_bytes", DefaultGroupcacheCacheBytes)
	v.SetDefault("kv.groupcache.peers", []string{})
	v.SetDefault("kv.groupcache.base_path", "/_groupcache/")

	v.SetDefault("kv.badger.dir", DefaultBadgerDir)
	v.SetDefault("kv.badger.in_memory", false)
}
