package blob

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sony/gobreaker"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

// breakerStore 为后端调用加熔断，打开状态下直接返回 Unavailable.
type breakerStore struct {
	Store
	cb *gobreaker.CircuitBreaker
}

// WithBreaker 包装 Store，后端持续失败时快速失败.
func WithBreaker(store Store, cfg configs.BlobBreakerConfig) Store {
	settings := gobreaker.Settings{
		Name:    "blob-" + store.Name(),
		Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}

			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRate
		},
		// 对象不存在与参数错误不计入失败
		IsSuccessful: func(err error) bool {
			if err == nil || errors.Is(err, ErrNotFound) {
				return true
			}

			kind := errs.KindOf(err)

			return kind != errs.KindUnavailable && kind != errs.KindInternal
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			nlog.Logger().Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("blob breaker state changed")
		},
	}

	return &breakerStore{Store: store, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerStore) run(fn func() (any, error)) (any, error) {
	out, err := b.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errs.Unavailable("storage service unavailable", err)
	}

	return out, err
}

func (b *breakerStore) Authenticate(ctx context.Context) error {
	_, err := b.run(func() (any, error) { return nil, b.Store.Authenticate(ctx) })
	return err
}

func (b *breakerStore) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*UploadSlot, error) {
	out, err := b.run(func() (any, error) { return b.Store.PresignUpload(ctx, key, contentType, expiry) })
	if err != nil {
		return nil, err
	}

	return out.(*UploadSlot), nil
}

func (b *breakerStore) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	out, err := b.run(func() (any, error) { return b.Store.Put(ctx, key, r, size, contentType) })
	if err != nil {
		return nil, err
	}

	return out.(*Object), nil
}

func (b *breakerStore) Stat(ctx context.Context, key string) (*Object, error) {
	out, err := b.run(func() (any, error) { return b.Store.Stat(ctx, key) })
	if err != nil {
		return nil, err
	}

	return out.(*Object), nil
}

func (b *breakerStore) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	var obj *Object

	out, err := b.run(func() (any, error) {
		rc, o, err := b.Store.Open(ctx, key)
		obj = o

		return rc, err
	})
	if err != nil {
		return nil, nil, err
	}

	return out.(io.ReadCloser), obj, nil
}

func (b *breakerStore) ObjectURL(ctx context.Context, key string) (string, error) {
	out, err := b.run(func() (any, error) { return b.Store.ObjectURL(ctx, key) })
	if err != nil {
		return "", err
	}

	return out.(string), nil
}

func (b *breakerStore) Delete(ctx context.Context, key, objectID string) error {
	_, err := b.run(func() (any, error) { return nil, b.Store.Delete(ctx, key, objectID) })
	return err
}

func (b *breakerStore) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	out, err := b.run(func() (any, error) { return b.Store.List(ctx, prefix, limit) })
	if err != nil {
		return nil, err
	}

	return out.([]Object), nil
}
