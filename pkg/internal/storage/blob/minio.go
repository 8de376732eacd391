package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	minio "github.com/minio/minio-go/v7"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	s3c "github.com/yeisme/cloudvault/pkg/internal/storage/s3"
)

const minioDefaultList = 1000

func init() {
	RegisterFactory(configs.BlobTypeMinio, func(ctx context.Context, cfg *configs.BlobConfig) (Store, error) {
		cli, err := s3c.New(ctx, cfg.Minio, cfg.Bucket)
		if err != nil {
			return nil, err
		}

		return NewMinioStore(cli, cfg), nil
	})
}

// MinioStore 基于 minio-go 的 S3 兼容实现.
type MinioStore struct {
	cli     *s3c.Client
	bucket  string
	timeout time.Duration
	expiry  time.Duration
}

func NewMinioStore(cli *s3c.Client, cfg *configs.BlobConfig) *MinioStore {
	return &MinioStore{
		cli:     cli,
		bucket:  cfg.Bucket,
		timeout: cfg.GetTimeout(),
		expiry:  cfg.GetPresignExpiry(),
	}
}

func (s *MinioStore) Name() string   { return string(configs.BlobTypeMinio) }
func (s *MinioStore) Bucket() string { return s.bucket }

func (s *MinioStore) Authenticate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ok, err := s.cli.BucketExists(ctx, s.bucket)
	if err != nil {
		return minioErr(err)
	}

	if !ok {
		return fmt.Errorf("bucket %s does not exist", s.bucket)
	}

	return nil
}

func (s *MinioStore) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*UploadSlot, error) {
	u, err := s.cli.PresignedPutObject(ctx, s.bucket, key, expiry)
	if err != nil {
		return nil, minioErr(err)
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	return &UploadSlot{
		URL:       u.String(),
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

func (s *MinioStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.cli.PutObject(ctx, s.bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return nil, minioErr(err)
	}

	return &Object{
		Key:         key,
		Size:        info.Size,
		ContentType: contentType,
		ObjectID:    info.VersionID,
		ETag:        info.ETag,
		UpdatedAt:   time.Now(),
	}, nil
}

func (s *MinioStore) Stat(ctx context.Context, key string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	info, err := s.cli.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, minioErr(err)
	}

	return objectFromInfo(info), nil
}

// Open 读取流的生命周期长于单次调用超时，不设置 deadline.
func (s *MinioStore) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	obj, err := s.cli.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, nil, minioErr(err)
	}

	info, err := obj.Stat()
	if err != nil {
		_ = obj.Close()
		return nil, nil, minioErr(err)
	}

	return obj, objectFromInfo(info), nil
}

func (s *MinioStore) ObjectURL(ctx context.Context, key string) (string, error) {
	u, err := s.cli.PresignedGetObject(ctx, s.bucket, key, s.expiry, nil)
	if err != nil {
		return "", minioErr(err)
	}

	return u.String(), nil
}

func (s *MinioStore) Delete(ctx context.Context, key, objectID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.cli.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{VersionID: objectID})
	if err != nil {
		if err = minioErr(err); errors.Is(err, ErrNotFound) {
			return nil
		}

		return err
	}

	return nil
}

func (s *MinioStore) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = minioDefaultList
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	objs := make([]Object, 0)

	for info := range s.cli.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: prefix, Recursive: true}) {
		if info.Err != nil {
			return nil, minioErr(info.Err)
		}

		objs = append(objs, *objectFromInfo(info))
		if len(objs) >= limit {
			break
		}
	}

	return objs, nil
}

func objectFromInfo(info minio.ObjectInfo) *Object {
	return &Object{
		Key:         info.Key,
		Size:        info.Size,
		ContentType: info.ContentType,
		ObjectID:    info.VersionID,
		ETag:        info.ETag,
		UpdatedAt:   info.LastModified,
	}
}

// minioErr 将 minio 错误归类为 ErrNotFound 或统一的 errs 类型.
func minioErr(err error) error {
	resp := minio.ToErrorResponse(err)

	switch {
	case resp.Code == "NoSuchKey" || resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusServiceUnavailable || resp.StatusCode == http.StatusTooManyRequests:
		return errs.Unavailable("storage service unavailable", err)
	}

	return classify("minio", err)
}
