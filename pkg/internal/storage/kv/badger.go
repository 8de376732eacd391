package kv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/yeisme/cloudvault/pkg/configs"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

// BadgerKV 基于 Badger 的嵌入式 KV 实现，TTL 由 Badger 原生支持.
type BadgerKV struct {
	db *badger.DB
}

// NewBadgerKV 创建 Badger KV 实例.
func NewBadgerKV(_ context.Context, config any) (KVStore, error) {
	bc, ok := config.(*configs.BadgerKVConfig)
	if !ok || bc == nil {
		return nil, fmt.Errorf("invalid Badger config")
	}

	opts := badger.DefaultOptions(bc.Dir)
	if bc.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}

	opts = opts.WithLogger(badgerLogger{l: nlog.Logger().With().Str("component", "badger").Logger()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger: %w", err)
	}

	return &BadgerKV{db: db}, nil
}

// Get 获取键的值.
func (b *BadgerKV) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte

	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}

		out, err = item.ValueCopy(nil)

		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, notFound(key)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get key: %w", err)
	}

	return out, nil
}

// Set 设置键的值.
func (b *BadgerKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}

		return txn.SetEntry(e)
	})
	if err != nil {
		return fmt.Errorf("failed to set key: %w", err)
	}

	return nil
}

// Delete 删除键.
func (b *BadgerKV) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("failed to delete key: %w", err)
	}

	return nil
}

// Exists 检查键是否存在.
func (b *BadgerKV) Exists(ctx context.Context, key string) (bool, error) {
	_, err := b.Get(ctx, key)
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}

	return err == nil, err
}

// Keys 获取匹配模式的键.
func (b *BadgerKV) Keys(_ context.Context, pattern string) ([]string, error) {
	keys := make([]string, 0)

	// glob 前缀部分用于缩小迭代范围
	prefix := pattern
	if i := strings.IndexAny(pattern, "*?["); i >= 0 {
		prefix = pattern[:i]
	}

	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			k := string(it.Item().KeyCopy(nil))
			if matchKey(pattern, k) {
				keys = append(keys, k)
			}
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get keys: %w", err)
	}

	return keys, nil
}

// Close 关闭数据库.
func (b *BadgerKV) Close() error {
	return b.db.Close()
}

// badgerLogger 把 Badger 日志转发到 zerolog.
type badgerLogger struct {
	l zerolog.Logger
}

func (g badgerLogger) Errorf(f string, v ...any)   { g.l.Error().Msgf(strings.TrimSpace(f), v...) }
func (g badgerLogger) Warningf(f string, v ...any) { g.l.Warn().Msgf(strings.TrimSpace(f), v...) }
func (g badgerLogger) Infof(f string, v ...any)    { g.l.Debug().Msgf(strings.TrimSpace(f), v...) }
func (g badgerLogger) Debugf(f string, v ...any)   { g.l.Trace().Msgf(strings.TrimSpace(f), v...) }

func init() {
	RegisterKVFactory(KVTypeBadger, NewBadgerKV)
}
