package configs

import (
	"time"

	"github.com/spf13/viper"
)

// BlobType 文件内容存储后端类型.
type BlobType string

const (
	BlobTypeB2    BlobType = "b2"
	BlobTypeMinio BlobType = "minio"
	BlobTypeS3    BlobType = "s3"
	BlobTypeLocal BlobType = "local"

	DefaultBlobType          = BlobTypeLocal
	DefaultBlobBucket        = "cloudvault"
	DefaultBlobPresignExpiry = 3600 // 秒
	DefaultBlobTimeout       = 30   // 秒
	DefaultB2APIURL          = "https://api.backblazeb2.com"
	DefaultLocalRoot         = "data/blobs"
	DefaultBlobRegion        = "us-east-1"

	DefaultBlobBreakerEnabled     = true
	DefaultBlobBreakerFailureRate = 0.6
	DefaultBlobBreakerMinRequests = 10
	DefaultBlobBreakerTimeout     = 30 // 秒
)

// BlobConfig 文件内容存储配置，只有 type 对应的子配置生效.
type BlobConfig struct {
	Type          BlobType          `mapstructure:"type"           rule:"oneof=b2 minio s3 local"`
	Bucket        string            `mapstructure:"bucket"         rule:"required"`
	PresignExpiry int               `mapstructure:"presign_expiry" rule:"min=60,max=604800"`
	Timeout       int               `mapstructure:"timeout"        rule:"min=1,max=300"`
	B2            B2BlobConfig      `mapstructure:"b2"`
	Local         LocalBlobConfig   `mapstructure:"local"`
	AWS           AWSBlobConfig     `mapstructure:"aws"`
	Minio         MinioBlobConfig   `mapstructure:"minio"`
	Breaker       BlobBreakerConfig `mapstructure:"breaker"`
}

// B2BlobConfig Backblaze B2 原生 API 配置.
type B2BlobConfig struct {
	APIURL         string `mapstructure:"api_url"         rule:"url"`
	KeyID          string `mapstructure:"key_id"`
	ApplicationKey string `mapstructure:"application_key"`
	// Private 私有桶的下载地址附带临时授权
	Private bool `mapstructure:"private"`
}

// LocalBlobConfig 本地磁盘存储，开发与测试使用.
type LocalBlobConfig struct {
	Root string `mapstructure:"root"`
	// BaseURL 为空时下载经服务端流式转发
	BaseURL string `mapstructure:"base_url"`
	// UploadURL 签名上传时返回给客户端的 PUT 地址前缀
	UploadURL string `mapstructure:"upload_url"`
}

// AWSBlobConfig AWS S3（或兼容服务）配置.
type AWSBlobConfig struct {
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UsePathStyle    bool   `mapstructure:"use_path_style"`
}

// MinioBlobConfig MinIO 或其他 S3 兼容服务，经 minio-go 访问.
type MinioBlobConfig struct {
	// Endpoint host:port，带 https:// 前缀时自动启用 TLS
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	Region          string `mapstructure:"region"`
	// CreateBucket 启动时 bucket 不存在则创建
	CreateBucket bool `mapstructure:"create_bucket"`
}

// BlobBreakerConfig 后端熔断配置.
type BlobBreakerConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	FailureRate    float64 `mapstructure:"failure_rate"    rule:"min=0,max=1"`
	MinRequests    uint32  `mapstructure:"min_requests"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds" rule:"min=0"`
}

// GetTimeout 返回单次后端调用超时.
func (c *BlobConfig) GetTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// GetPresignExpiry 返回签名 URL 有效期.
func (c *BlobConfig) GetPresignExpiry() time.Duration {
	return time.Duration(c.PresignExpiry) * time.Second
}

func (c *BlobConfig) setDefaults(v *viper.Viper) {
	v.SetDefault("blob.type", DefaultBlobType)
	v.SetDefault("blob.bucket", DefaultBlobBucket)
	v.SetDefault("blob.presign_expiry", DefaultBlobPresignExpiry)
	v.SetDefault("blob.timeout", DefaultBlobTimeout)

	v.SetDefault("blob.b2.api_url", DefaultB2APIURL)
	v.SetDefault("blob.b2.key_id", "")
	v.SetDefault("blob.b2.application_key", "")
	v.SetDefault("blob.b2.private", false)

	v.SetDefault("blob.local.root", DefaultLocalRoot)
	v.SetDefault("blob.local.base_url", "")
	v.SetDefault("blob.local.upload_url", "/api/v1/files/upload/local")

	v.SetDefault("blob.aws.region", DefaultBlobRegion)
	v.SetDefault("blob.aws.endpoint", "")
	v.SetDefault("blob.aws.access_key_id", "")
	v.SetDefault("blob.aws.secret_access_key", "")
	v.SetDefault("blob.aws.use_path_style", false)

	v.SetDefault("blob.minio.endpoint", "localhost:9000")
	v.SetDefault("blob.minio.access_key_id", "minioadmin")
	v.SetDefault("blob.minio.secret_access_key", "minioadmin")
	v.SetDefault("blob.minio.use_ssl", false)
	v.SetDefault("blob.minio.region", DefaultBlobRegion)
	v.SetDefault("blob.minio.create_bucket", true)

	v.SetDefault("blob.breaker.enabled", DefaultBlobBreakerEnabled)
	v.SetDefault("blob.breaker.failure_rate", DefaultBlobBreakerFailureRate)
	v.SetDefault("blob.breaker.min_requests", DefaultBlobBreakerMinRequests)
	v.SetDefault("blob.breaker.timeout_seconds", DefaultBlobBreakerTimeout)
}
