package configs

import (
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultMaxFileSize     int64 = 10 * 1024 * 1024 * 1024 // 10GiB
	DefaultSignedURLExpiry       = 3600                    // 秒
	DefaultDeleteParallel        = 8                       // 批量删除对象的并发上限
)

// UploadConfig 上传与下载配置.
type UploadConfig struct {
	MaxFileSize     int64 `mapstructure:"max_file_size"     rule:"min=1"`
	SignedURLExpiry int   `mapstructure:"signed_url_expiry" rule:"min=60,max=604800"`
	// DownloadSecret 下载令牌的 HMAC 密钥，更换即吊销全部令牌
	DownloadSecret string `mapstructure:"download_secret"`
	DeleteParallel int    `mapstructure:"delete_parallel" rule:"min=1,max=64"`
}

// GetSignedURLExpiry 返回签名上传有效期.
func (c *UploadConfig) GetSignedURLExpiry() time.Duration {
	return time.Duration(c.SignedURLExpiry) * time.Second
}

func (c *UploadConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("upload.max_file_size", DefaultMaxFileSize)
	v.SetDefault("upload.signed_url_expiry", DefaultSignedURLExpiry)
	v.SetDefault("upload.download_secret", "")
	v.SetDefault("upload.delete_parallel", DefaultDeleteParallel)
}
