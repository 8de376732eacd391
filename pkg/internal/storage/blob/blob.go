// Package blob 定义文件内容存储的统一接口，并提供 B2、MinIO、AWS S3 与本地磁盘实现.
//
// 元数据保存在数据库中，blob 只负责字节的上传、读取与删除.
// 对象键统一为 users/{userId}/{timestamp}-{random}-{filename}，见 BuildKey.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// ErrNotFound 对象不存在.
var ErrNotFound = errors.New("blob: object not found")

// Object 对象信息.
type Object struct {
	Key         string    `json:"key"`
	Size        int64     `json:"size"`
	ContentType string    `json:"content_type,omitempty"`
	ObjectID    string    `json:"object_id,omitempty"` // 后端版本标识，如 B2 fileId、S3 VersionId
	ETag        string    `json:"etag,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UploadSlot 客户端直传所需的信息.
type UploadSlot struct {
	URL       string            `json:"upload_url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// Store 文件内容存储.
type Store interface {
	// Name 后端名称，如 b2、minio.
	Name() string
	// Bucket 当前使用的存储桶.
	Bucket() string
	// Authenticate 验证凭据并准备会话.
	Authenticate(ctx context.Context) error
	// PresignUpload 为 key 签发直传地址.
	PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*UploadSlot, error)
	// Put 上传内容，size 为内容长度.
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error)
	// Stat 查询对象，不存在时返回 ErrNotFound.
	Stat(ctx context.Context, key string) (*Object, error)
	// Open 打开对象读取流，调用方负责关闭.
	Open(ctx context.Context, key string) (io.ReadCloser, *Object, error)
	// ObjectURL 返回可直接下载的地址，后端不支持时返回空串.
	ObjectURL(ctx context.Context, key string) (string, error)
	// Delete 删除对象，objectID 为空时由后端自行查找，对象不存在不视为错误.
	Delete(ctx context.Context, key, objectID string) error
	// List 按前缀列出对象，limit<=0 表示使用后端默认值.
	List(ctx context.Context, prefix string, limit int) ([]Object, error)
}

// Factory 根据配置创建 Store.
type Factory func(ctx context.Context, cfg *configs.BlobConfig) (Store, error)

var factories = map[configs.BlobType]Factory{}

// RegisterFactory 注册后端工厂.
func RegisterFactory(t configs.BlobType, f Factory) {
	factories[t] = f
}

// GetRegisteredBlobTypes 返回已注册的后端类型.
func GetRegisteredBlobTypes() []configs.BlobType {
	types := make([]configs.BlobType, 0, len(factories))
	for t := range factories {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// New 按全局配置创建 Store，开启熔断时自动包装.
func New(ctx context.Context) (Store, error) {
	cfg := configs.GetConfig().Blob

	return NewFromConfig(ctx, &cfg)
}

// NewFromConfig 按给定配置创建 Store.
func NewFromConfig(ctx context.Context, cfg *configs.BlobConfig) (Store, error) {
	factory, ok := factories[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported blob type: %s", cfg.Type)
	}

	store, err := factory(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init blob store (%s): %w", cfg.Type, err)
	}

	if cfg.Breaker.Enabled {
		store = WithBreaker(store, cfg.Breaker)
	}

	return store, nil
}
