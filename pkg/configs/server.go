package configs

import (
	"net"
	"strconv"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig HTTP 服务.
type ServerConfig struct {
	Host         string `mapstructure:"host"          rule:"ip"`
	Port         int    `mapstructure:"port"          rule:"min=1,max=65535"`
	Debug        bool   `mapstructure:"debug"`
	ReloadConfig bool   `mapstructure:"reload_config"`

	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	// ShutdownGrace 收到退出信号后等待在途请求的时间
	ShutdownGrace time.Duration `mapstructure:"shutdown_grace"`

	// CORSOrigins 允许携带凭据的前端来源，为空时允许任意来源但不携带 cookie
	CORSOrigins []string `mapstructure:"cors_origins"`
	// TrustedProxies 为空时不信任任何代理头，ClientIP 取连接地址
	TrustedProxies []string `mapstructure:"trusted_proxies" rule:"dive,cidr|ip"`

	// Gzip 压缩级别，0 关闭；文件内容下载与上传目标不压缩
	Gzip int `mapstructure:"gzip" rule:"min=-1,max=9"`
}

// Addr 监听地址 host:port.
func (s *ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

func (s *ServerConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.debug", false)
	v.SetDefault("server.reload_config", true)
	v.SetDefault("server.read_header_timeout", "10s")
	v.SetDefault("server.idle_timeout", "60s")
	v.SetDefault("server.shutdown_grace", "15s")
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.trusted_proxies", []string{})
	v.SetDefault("server.gzip", 5)
}
