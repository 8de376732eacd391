package configs

import (
	"time"

	"github.com/spf13/viper"
)

// AuthMode 身份校验方式.
type AuthMode string

const (
	// AuthModeRemote 调用外部认证服务的 /verify-token.
	AuthModeRemote AuthMode = "remote"
	// AuthModeJWT 本地 HS256 签发与校验.
	AuthModeJWT AuthMode = "jwt"
	// AuthModeHeader 信任 oauth2-proxy 等反向代理注入的请求头.
	AuthModeHeader AuthMode = "header"

	DefaultAuthMode          = AuthModeJWT
	DefaultAuthCookieName    = "accessToken"
	DefaultAuthVerifyTimeout = 5  // 秒
	DefaultAuthCacheTTL      = 30 // 秒，0 表示不缓存
	DefaultAuthJWTTTLHours   = 24
)

// AuthConfig 控制统一身份认证.
type AuthConfig struct {
	Enabled       bool     `mapstructure:"enabled"` // 开启认证校验
	Mode          AuthMode `mapstructure:"mode"           rule:"oneof=remote jwt header"`
	RemoteURL     string   `mapstructure:"remote_url"` // remote 模式下认证服务地址
	CookieName    string   `mapstructure:"cookie_name"    rule:"required"`
	VerifyTimeout int      `mapstructure:"verify_timeout" rule:"min=1,max=60"`
	CacheTTL      int      `mapstructure:"cache_ttl"      rule:"min=0"`
	JWTSecret     string   `mapstructure:"jwt_secret"`
	JWTTTLHours   int      `mapstructure:"jwt_ttl_hours"  rule:"min=1"`
	SkipPaths     []string `mapstructure:"skip_paths"`     // 完全跳过认证的路径前缀（如 /metrics、/api/v1/health）
	OptionalPaths []string `mapstructure:"optional_paths"` // 尝试识别身份但允许匿名访问
	AdminEmails   []string `mapstructure:"admin_emails"`   // 可以操作调度器的管理员
}

// GetCookieName 返回会话 cookie 名称.
func (c *AuthConfig) GetCookieName() string {
	if c.CookieName == "" {
		return DefaultAuthCookieName
	}

	return c.CookieName
}

// GetVerifyTimeout 返回认证服务调用超时.
func (c *AuthConfig) GetVerifyTimeout() time.Duration {
	return time.Duration(c.VerifyTimeout) * time.Second
}

// GetCacheTTL 返回身份缓存时长.
func (c *AuthConfig) GetCacheTTL() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// GetJWTTTL 返回签发令牌的有效期.
func (c *AuthConfig) GetJWTTTL() time.Duration {
	return time.Duration(c.JWTTTLHours) * time.Hour
}

func (c *AuthConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("auth.enabled", true)
	v.SetDefault("auth.mode", DefaultAuthMode)
	v.SetDefault("auth.remote_url", "http://localhost:3001")
	v.SetDefault("auth.cookie_name", DefaultAuthCookieName)
	v.SetDefault("auth.verify_timeout", DefaultAuthVerifyTimeout)
	v.SetDefault("auth.cache_ttl", DefaultAuthCacheTTL)
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.jwt_ttl_hours", DefaultAuthJWTTTLHours)
	v.SetDefault("auth.skip_paths", []string{
		"/metrics",
		"/debug/pprof",
		"/api/v1/health",
		"/api/v1/auth/signup",
		"/api/v1/auth/signin",
		"/api/v1/auth/signout",
		"/swagger",
	})
	v.SetDefault("auth.optional_paths", []string{
		"/api/v1/public",
	})
	v.SetDefault("auth.admin_emails", []string{})
}
