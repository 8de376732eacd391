//go:build !no_redis

package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/yeisme/cloudvault/pkg/configs"
)

const scanBatch = 256

// RedisKV 过期交给 Redis 原生 TTL；共享实例时靠 prefix 隔离，对外的键不带 prefix.
type RedisKV struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisKV(ctx context.Context, config any) (KVStore, error) {
	cfg, ok := config.(*configs.RedisKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid redis kv config: %T", config)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		PoolSize:    cfg.PoolSize,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}

	return &RedisKV{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (r *RedisKV) key(k string) string { return r.prefix + k }

func redisErr(op, key string, err error) error {
	if err == nil {
		return nil
	}

	return fmt.Errorf("redis %s %s: %w", op, key, err)
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, notFound(key)
	}

	return b, redisErr("get", key, err)
}

// Set ttl<=0 表示不过期.
func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return redisErr("set", key, r.rdb.Set(ctx, r.key(key), value, max(ttl, 0)).Err())
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return redisErr("del", key, r.rdb.Del(ctx, r.key(key)).Err())
}

func (r *RedisKV) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.rdb.Exists(ctx, r.key(key)).Result()

	return n > 0, redisErr("exists", key, err)
}

// Keys 用 SCAN 迭代，不阻塞服务端.
func (r *RedisKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = "*"
	}

	var keys []string

	it := r.rdb.Scan(ctx, 0, r.key(pattern), scanBatch).Iterator()
	for it.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(it.Val(), r.prefix))
	}

	return keys, redisErr("scan", pattern, it.Err())
}

func (r *RedisKV) Close() error {
	return r.rdb.Close()
}

func init() {
	RegisterKVFactory(KVTypeRedis, NewRedisKV)
}
