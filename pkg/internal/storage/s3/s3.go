// Package s3 建立 MinIO/S3 兼容服务的连接，blob 的 minio 后端在此之上实现.
package s3

import (
	"context"
	"fmt"
	"net/url"

	minio "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/yeisme/cloudvault/pkg/configs"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

// Client 包装 MinIO 客户端.
type Client struct {
	*minio.Client

	region string
}

// New 连接 endpoint，create_bucket 开启时确保 buckets 存在.
func New(ctx context.Context, cfg configs.MinioBlobConfig, buckets ...string) (*Client, error) {
	endpoint, secure, err := splitEndpoint(cfg.Endpoint, cfg.UseSSL)
	if err != nil {
		return nil, err
	}

	cli, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("create minio client: %w", err)
	}

	cli.SetAppInfo("cloudvault", configs.AppVersion)

	c := &Client{Client: cli, region: cfg.Region}

	if cfg.CreateBucket {
		for _, b := range buckets {
			if err := c.EnsureBucket(ctx, b); err != nil {
				return nil, err
			}
		}
	}

	l := nlog.Component("s3")
	l.Info().Str("endpoint", endpoint).Bool("tls", secure).Strs("buckets", buckets).Msg("s3 connected")

	return c, nil
}

// splitEndpoint 接受 host:port 或带 scheme 的 URL.
func splitEndpoint(raw string, useSSL bool) (string, bool, error) {
	if raw == "" {
		return "", false, fmt.Errorf("minio endpoint is empty")
	}

	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw, useSSL, nil //nolint:nilerr // 非 URL 形式按 host:port 处理
	}

	switch u.Scheme {
	case "https":
		return u.Host, true, nil
	case "http":
		return u.Host, false, nil
	default:
		return "", false, fmt.Errorf("unsupported minio endpoint scheme %q", u.Scheme)
	}
}

// EnsureBucket bucket 不存在时创建.
func (c *Client) EnsureBucket(ctx context.Context, bucket string) error {
	if bucket == "" {
		return nil
	}

	exists, err := c.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", bucket, err)
	}

	if exists {
		return nil
	}

	if err := c.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: c.region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", bucket, err)
	}

	l := nlog.Component("s3")
	l.Info().Str("bucket", bucket).Msg("bucket created")

	return nil
}
