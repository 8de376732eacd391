// Package configs 以 viper 读取 yaml/json/toml/dotenv 配置，每个子配置自带默认值与 rule 校验标签.
//
//	if err := configs.InitConfig("./"); err != nil {
//		return err
//	}
//	limit := configs.GetConfig().Upload.MaxFileSize
//
// 环境变量使用 CLOUDVAULT_ 前缀，层级以下划线分隔，例如 CLOUDVAULT_DB_TYPE=postgresql.
package configs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/yeisme/cloudvault/pkg/rule"
)

// AppVersion 应用版本号.
const AppVersion = "0.3.0"

// EnvPrefix 环境变量前缀.
const EnvPrefix = "CLOUDVAULT"

type (
	// AppConfig 全局应用程序配置.
	AppConfig struct {
		Server         ServerConfig         `mapstructure:"server"`          // ServerConfig 服务器配置，端口、调试模式等
		Log            LogConfig            `mapstructure:"log"`             // LogConfig 日志相关配置
		DB             DBConfig             `mapstructure:"db"`              // DBConfig 数据库配置
		Blob           BlobConfig           `mapstructure:"blob"`            // BlobConfig 文件内容存储后端
		KV             KVConfig             `mapstructure:"kv"`              // KVConfig 缓存配置
		MQ             MQConfig             `mapstructure:"mq"`              // MQConfig 消息队列配置
		Auth           AuthConfig           `mapstructure:"auth"`            // AuthConfig 身份认证
		Upload         UploadConfig         `mapstructure:"upload"`          // UploadConfig 上传/下载
		Quota          QuotaConfig          `mapstructure:"quota"`           // QuotaConfig 存储配额
		Events         EventsConfig         `mapstructure:"events"`          // EventsConfig 事件开关
		Jobs           JobsConfig           `mapstructure:"jobs"`            // JobsConfig 定时任务
		Tracing        TracingConfig        `mapstructure:"tracing"`         // TracingConfig 链路追踪
		Metrics        MetricsConfig        `mapstructure:"metrics"`         // MetricsConfig 监控指标
		RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`      // RateLimitConfig 限流
		CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"` // CircuitBreakerConfig 熔断
	}
)

// defaulter 每个子配置都实现 setDefaults.
type defaulter interface {
	setDefaults(v *viper.Viper)
}

// ReloadHook 配置文件变更且新配置通过校验后调用.
type ReloadHook func(prev, next *AppConfig)

var (
	current  atomic.Pointer[AppConfig]
	appViper *viper.Viper

	hooksMu sync.Mutex
	hooks   []ReloadHook
)

func init() {
	current.Store(&AppConfig{})
}

// InitConfig path 可以是配置文件或所在目录；找不到配置文件时只用默认值与环境变量.
func InitConfig(path string) error {
	v := viper.New()
	setAllDefaults(v)
	locate(v, path)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg := new(AppConfig)
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}

	appViper = v
	current.Store(cfg)

	if cfg.Server.ReloadConfig && v.ConfigFileUsed() != "" {
		watch(v)
	}

	return nil
}

// locate 目录下按扩展名顺序取第一个 config.*，也会查找 configs/ 子目录.
func locate(v *viper.Viper, path string) {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		v.SetConfigFile(path)
		return
	}

	v.SetConfigName("config")
	v.AddConfigPath(path)
	v.AddConfigPath(filepath.Join(path, "configs"))

	for _, ext := range []string{"yaml", "yml", "json", "toml", "env", "dotenv"} {
		f := filepath.Join(path, "config."+ext)
		if _, err := os.Stat(f); err == nil {
			v.SetConfigFile(f)
			return
		}
	}
}

func setAllDefaults(v *viper.Viper) {
	sections := []defaulter{
		&ServerConfig{},
		&LogConfig{},
		&DBConfig{},
		&BlobConfig{},
		&KVConfig{},
		&MQConfig{},
		&AuthConfig{},
		&UploadConfig{},
		&QuotaConfig{},
		&EventsConfig{},
		&JobsConfig{},
		&TracingConfig{},
		&MetricsConfig{},
		&RateLimitConfig{},
		&CircuitBreakerConfig{},
	}

	for _, s := range sections {
		s.setDefaults(v)
	}
}

// watch 新配置整体替换旧配置，校验失败时保留旧配置.
// 已建立的连接（数据库、KV、MQ）不会重建，生效范围取决于 ReloadHook.
func watch(v *viper.Viper) {
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := reload(v); err != nil {
			fmt.Fprintf(os.Stderr, "config reload %s: %v\n", e.Name, err)
		}
	})
	v.WatchConfig()
}

func reload(v *viper.Viper) error {
	next := new(AppConfig)
	if err := v.Unmarshal(next); err != nil {
		return err
	}

	if err := rule.ValidateStruct(next); err != nil {
		return err
	}

	prev := current.Swap(next)

	hooksMu.Lock()
	hs := slices.Clone(hooks)
	hooksMu.Unlock()

	for _, h := range hs {
		h(prev, next)
	}

	return nil
}

// OnReload 注册热重载回调.
func OnReload(h ReloadHook) {
	hooksMu.Lock()
	hooks = append(hooks, h)
	hooksMu.Unlock()
}

// Validate 按 rule 标签校验当前配置.
func Validate() error {
	if err := rule.ValidateStruct(GetConfig()); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}

// GetConfig 当前配置；热重载后返回新实例，调用方不要长期持有.
func GetConfig() *AppConfig {
	return current.Load()
}

// GetViper 未初始化时为 nil.
func GetViper() *viper.Viper {
	return appViper
}
