// Package kv 定义带过期时间的字节 KV 接口，后端有 memory、redis、nats、groupcache 与 badger.
// 缓存、身份会话与下载令牌都建立在它之上.
package kv

import (
	"context"
	"errors"
	"fmt"
	"path"
	"sort"
	"time"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// ErrKeyNotFound 键不存在或已过期.
var ErrKeyNotFound = errors.New("key not found")

// Client 全局配置选定的 KV 后端.
type Client struct {
	KVStore

	kind KVType
}

// KVStore 定义键值存储接口.
type KVStore interface {
	// Get 获取键的值，不存在时返回 ErrKeyNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set 设置键的值，可选过期时间.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete 删除键.
	Delete(ctx context.Context, key string) error
	// Exists 检查键是否存在.
	Exists(ctx context.Context, key string) (bool, error)
	// Keys 获取匹配 pattern 的键，pattern 使用 glob 语法，空串表示全部.
	Keys(ctx context.Context, pattern string) ([]string, error)
	// Close 关闭存储连接.
	Close() error
}

// KVType 键值存储类型.
type KVType string

const (
	KVTypeMemory     KVType = configs.KVTypeMemory
	KVTypeRedis      KVType = configs.KVTypeRedis
	KVTypeNATS       KVType = configs.KVTypeNATS
	KVTypeGroupcache KVType = configs.KVTypeGroupcache
	KVTypeBadger     KVType = configs.KVTypeBadger
)

// KVFactory 定义创建 KVStore 的工厂函数类型.
type KVFactory func(ctx context.Context, config any) (KVStore, error)

// kvFactories 存储 KV 类型到工厂的映射.
var kvFactories = make(map[KVType]KVFactory)

// RegisterKVFactory 注册 KV 工厂函数.
func RegisterKVFactory(kvType KVType, factory KVFactory) {
	kvFactories[kvType] = factory
}

// GetRegisteredKVTypes 返回已注册的 KV 类型列表.
func GetRegisteredKVTypes() []KVType {
	types := make([]KVType, 0, len(kvFactories))
	for kvType := range kvFactories {
		types = append(types, kvType)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// NewKVStore 根据类型创建 KVStore 实例.
func NewKVStore(ctx context.Context, kvType KVType, config any) (KVStore, error) {
	factory, exists := kvFactories[kvType]
	if !exists {
		return nil, fmt.Errorf("unsupported KV type: %s", kvType)
	}

	return factory(ctx, config)
}

// section 取出后端自己的配置段，memory 不需要配置.
func section(cfg *configs.KVConfig) any {
	switch KVType(cfg.Type) {
	case KVTypeRedis:
		return &cfg.Redis
	case KVTypeNATS:
		return &cfg.NATS
	case KVTypeGroupcache:
		return &cfg.Groupcache
	case KVTypeBadger:
		return &cfg.Badger
	case KVTypeMemory:
		fallthrough
	default:
		return nil
	}
}

// NewKVClient 按全局配置创建客户端.
func NewKVClient(ctx context.Context) (*Client, error) {
	cfg := configs.GetConfig().KV

	store, err := NewKVStore(ctx, KVType(cfg.Type), section(&cfg))
	if err != nil {
		return nil, fmt.Errorf("kv %s: %w", cfg.Type, err)
	}

	return &Client{KVStore: store, kind: KVType(cfg.Type)}, nil
}

// Type 后端类型.
func (c *Client) Type() KVType {
	return c.kind
}

// Healthy 写入并读回探测键.
func (c *Client) Healthy(ctx context.Context) error {
	const checkKey = "health:check"

	if err := c.Set(ctx, checkKey, []byte("ok"), time.Minute); err != nil {
		return err
	}

	_, err := c.Get(ctx, checkKey)

	return err
}

// notFound 包装 ErrKeyNotFound.
func notFound(key string) error {
	return fmt.Errorf("%w: %s", ErrKeyNotFound, key)
}

// matchKey 判断 key 是否匹配 glob pattern.
func matchKey(pattern, key string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}

	ok, err := path.Match(pattern, key)

	return err == nil && ok
}
