// Package cache 在 KVStore 之上提供带命名空间的泛型缓存.
//
// 值使用 sonic 编码为 JSON，TTL 由底层 KVStore 负责.
// 同一个 Cache 上对同一 key 的并发 GetOrSet 只调用一次 loader.
//
//	c := cache.NewCache(store, cache.WithNamespace("link"))
//	rec, err := cache.GetOrSet(ctx, c, id, func(ctx context.Context) (Record, error) {
//		return loadRecord(ctx, id)
//	}, time.Minute)
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
)

// Cache 基于 KVStore 的缓存，所有键都带 namespace 前缀.
type Cache struct {
	store kv.KVStore
	ns    string
	group singleflight.Group
}

// Option 配置 Cache.
type Option func(*Cache)

// WithNamespace 设置键前缀，实际键为 ns + ":" + key.
func WithNamespace(ns string) Option {
	return func(c *Cache) { c.ns = ns }
}

// NewCache 创建缓存实例.
func NewCache(store kv.KVStore, opts ...Option) *Cache {
	c := &Cache{store: store}
	for _, o := range opts {
		o(c)
	}

	return c
}

// IsMiss 缓存未命中或已过期.
func IsMiss(err error) bool {
	return errors.Is(err, kv.ErrKeyNotFound)
}

func (c *Cache) key(k string) string {
	if c.ns == "" {
		return k
	}

	return c.ns + ":" + k
}

// Get 读取并解码，未命中返回 kv.ErrKeyNotFound.
func Get[T any](ctx context.Context, c *Cache, key string) (T, error) {
	var value T

	data, err := c.store.Get(ctx, c.key(key))
	if err != nil {
		return value, err
	}

	if err := sonic.Unmarshal(data, &value); err != nil {
		return value, fmt.Errorf("decode cache value %s: %w", key, err)
	}

	return value, nil
}

// Set 编码并写入，ttl<=0 表示不过期.
func Set[T any](ctx context.Context, c *Cache, key string, value T, ttl time.Duration) error {
	data, err := sonic.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode cache value %s: %w", key, err)
	}

	return c.store.Set(ctx, c.key(key), data, ttl)
}

// GetOrSet 命中直接返回，否则调用 loader 并写回.
// 写回失败不影响返回值，loader 的错误原样返回且不缓存.
func GetOrSet[T any](ctx context.Context, c *Cache, key string, loader func(ctx context.Context) (T, error), ttl time.Duration) (T, error) {
	if v, err := Get[T](ctx, c, key); err == nil {
		return v, nil
	}

	v, err, _ := c.group.Do(c.key(key), func() (any, error) {
		loaded, lerr := loader(ctx)
		if lerr != nil {
			return loaded, lerr
		}

		_ = Set(context.WithoutCancel(ctx), c, key, loaded, ttl)

		return loaded, nil
	})

	out, _ := v.(T)

	return out, err
}

// Delete 删除若干键，不存在的键忽略.
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	var errList []error

	for _, k := range keys {
		if err := c.store.Delete(ctx, c.key(k)); err != nil && !IsMiss(err) {
			errList = append(errList, err)
		}
	}

	return errors.Join(errList...)
}

// Exists 检查键是否存在.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	return c.store.Exists(ctx, c.key(key))
}

// Clear 删除当前命名空间下的全部键，没有命名空间时清空整个 store.
// 返回删除的键数量.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	pattern := ""
	if c.ns != "" {
		pattern = c.ns + ":*"
	}

	keys, err := c.store.Keys(ctx, pattern)
	if err != nil {
		return 0, err
	}

	n := 0

	for _, k := range keys {
		if err := c.store.Delete(ctx, k); err != nil && !IsMiss(err) {
			return n, err
		}

		n++
	}

	return n, nil
}
