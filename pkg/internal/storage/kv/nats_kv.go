package kv

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// NATSKV 基于 JetStream KeyValue 的实现.
// NATS 的键只允许 [-/_=.a-zA-Z0-9]，应用键先做 base64url 编码.
// 过期时间写在值里，读取时惰性删除.
type NATSKV struct {
	kv   nats.KeyValue
	conn *nats.Conn
}

var natsKeyEnc = base64.RawURLEncoding

// NewNATSKV 连接 NATS 并创建或打开 bucket.
func NewNATSKV(_ context.Context, config any) (KVStore, error) {
	cfg, ok := config.(*configs.NATSKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid nats kv config: %T", config)
	}

	opts := []nats.Option{nats.Name("cloudvault-kv")}
	if cfg.User != "" {
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", cfg.URL, err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	bucket, err := js.KeyValue(cfg.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		bucket, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket:   cfg.Bucket,
			History:  1,
			TTL:      cfg.MaxAge,
			Replicas: max(cfg.Replicas, 1),
		})
	}

	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("open kv bucket %s: %w", cfg.Bucket, err)
	}

	return &NATSKV{kv: bucket, conn: nc}, nil
}

// entry 读取并处理过期，不存在或已过期返回 ErrKeyNotFound.
func (n *NATSKV) entry(key string) ([]byte, error) {
	e, err := n.kv.Get(natsKeyEnc.EncodeToString([]byte(key)))
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, notFound(key)
	}

	if err != nil {
		return nil, fmt.Errorf("nats kv get %s: %w", key, err)
	}

	val, expired, err := unwrapTTL(e.Value(), time.Now())
	if err != nil {
		return nil, err
	}

	if expired {
		_ = n.kv.Delete(natsKeyEnc.EncodeToString([]byte(key)))
		return nil, notFound(key)
	}

	return val, nil
}

func (n *NATSKV) Get(_ context.Context, key string) ([]byte, error) {
	return n.entry(key)
}

func (n *NATSKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if _, err := n.kv.Put(natsKeyEnc.EncodeToString([]byte(key)), wrapTTL(value, ttl, time.Now())); err != nil {
		return fmt.Errorf("nats kv put %s: %w", key, err)
	}

	return nil
}

func (n *NATSKV) Delete(_ context.Context, key string) error {
	err := n.kv.Delete(natsKeyEnc.EncodeToString([]byte(key)))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("nats kv delete %s: %w", key, err)
	}

	return nil
}

func (n *NATSKV) Exists(_ context.Context, key string) (bool, error) {
	_, err := n.entry(key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}

	return err == nil, err
}

// Keys 列出全部键后按 glob 过滤，过期的键顺带删除.
func (n *NATSKV) Keys(_ context.Context, pattern string) ([]string, error) {
	raw, err := n.kv.Keys()
	if errors.Is(err, nats.ErrNoKeysFound) {
		return []string{}, nil
	}

	if err != nil {
		return nil, fmt.Errorf("nats kv keys: %w", err)
	}

	out := make([]string, 0, len(raw))

	for _, enc := range raw {
		b, derr := natsKeyEnc.DecodeString(enc)
		if derr != nil {
			// 不是本实现写入的键
			continue
		}

		key := string(b)
		if !matchKey(pattern, key) {
			continue
		}

		if _, err := n.entry(key); err != nil {
			continue
		}

		out = append(out, key)
	}

	return out, nil
}

func (n *NATSKV) Close() error {
	n.conn.Close()
	return nil
}

func init() {
	RegisterKVFactory(KVTypeNATS, NewNATSKV)
}
