package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/yeisme/cloudvault/pkg/configs"
)

const localDefaultList = 1000

func init() {
	RegisterFactory(configs.BlobTypeLocal, func(_ context.Context, cfg *configs.BlobConfig) (Store, error) {
		return NewLocalStore(cfg)
	})
}

// LocalStore 本地磁盘实现，开发与测试使用.
// 签名上传指向服务自身的 PUT 端点.
type LocalStore struct {
	root      string
	bucket    string
	baseURL   string
	uploadURL string
}

// NewLocalStore 创建本地存储，根目录不存在时自动创建.
func NewLocalStore(cfg *configs.BlobConfig) (*LocalStore, error) {
	root := cfg.Local.Root
	if root == "" {
		root = configs.DefaultLocalRoot
	}

	root = filepath.Join(root, cfg.Bucket)
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create blob root: %w", err)
	}

	return &LocalStore{
		root:      root,
		bucket:    cfg.Bucket,
		baseURL:   strings.TrimRight(cfg.Local.BaseURL, "/"),
		uploadURL: strings.TrimRight(cfg.Local.UploadURL, "/"),
	}, nil
}

func (s *LocalStore) Name() string   { return string(configs.BlobTypeLocal) }
func (s *LocalStore) Bucket() string { return s.bucket }

func (s *LocalStore) Authenticate(_ context.Context) error {
	_, err := os.Stat(s.root)
	return err
}

// path 将对象键映射为磁盘路径，拒绝越界.
func (s *LocalStore) path(key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || clean != "/"+key {
		return "", fmt.Errorf("invalid object key %q", key)
	}

	return filepath.Join(s.root, filepath.FromSlash(clean[1:])), nil
}

func (s *LocalStore) PresignUpload(_ context.Context, key, contentType string, expiry time.Duration) (*UploadSlot, error) {
	if _, err := s.path(key); err != nil {
		return nil, err
	}

	headers := map[string]string{}
	if contentType != "" {
		headers["Content-Type"] = contentType
	}

	return &UploadSlot{
		URL:       s.uploadURL + "/" + encodeB2Name(key),
		Method:    http.MethodPut,
		Headers:   headers,
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// Put 先写临时文件再重命名，避免读到半成品.
func (s *LocalStore) Put(_ context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return nil, fmt.Errorf("create object dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	n, err := io.Copy(tmp, io.LimitReader(r, size))
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}

	if err == nil && n != size {
		err = fmt.Errorf("short write: got %d of %d bytes", n, size)
	}

	if err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("write object: %w", err)
	}

	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, fmt.Errorf("commit object: %w", err)
	}

	if contentType == "" {
		contentType = mime.TypeByExtension(path.Ext(key))
	}

	return &Object{Key: key, Size: n, ContentType: contentType, UpdatedAt: time.Now()}, nil
}

func (s *LocalStore) Stat(_ context.Context, key string) (*Object, error) {
	p, err := s.path(key)
	if err != nil {
		return nil, err
	}

	fi, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}

	if err != nil {
		return nil, err
	}

	return &Object{
		Key:         key,
		Size:        fi.Size(),
		ContentType: mime.TypeByExtension(path.Ext(key)),
		UpdatedAt:   fi.ModTime(),
	}, nil
}

func (s *LocalStore) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	obj, err := s.Stat(ctx, key)
	if err != nil {
		return nil, nil, err
	}

	p, _ := s.path(key)

	f, err := os.Open(p) //nolint:gosec // 路径已校验
	if err != nil {
		return nil, nil, fmt.Errorf("open object: %w", err)
	}

	return f, obj, nil
}

// ObjectURL 未配置 base_url 时返回空串，由服务端流式转发.
func (s *LocalStore) ObjectURL(_ context.Context, key string) (string, error) {
	if s.baseURL == "" {
		return "", nil
	}

	return s.baseURL + "/" + encodeB2Name(key), nil
}

func (s *LocalStore) Delete(_ context.Context, key, _ string) error {
	p, err := s.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}

	return nil
}

func (s *LocalStore) List(_ context.Context, prefix string, limit int) ([]Object, error) {
	if limit <= 0 {
		limit = localDefaultList
	}

	objs := make([]Object, 0)
	errStop := errors.New("stop")

	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}

		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}

		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}

		objs = append(objs, Object{Key: key, Size: info.Size(), UpdatedAt: info.ModTime()})
		if len(objs) >= limit {
			return errStop
		}

		return nil
	})
	if err != nil && !errors.Is(err, errStop) {
		return nil, err
	}

	return objs, nil
}

// DecodeKey 还原 URL 路径中的对象键.
func DecodeKey(escaped string) (string, error) {
	return url.PathUnescape(strings.TrimPrefix(escaped, "/"))
}
