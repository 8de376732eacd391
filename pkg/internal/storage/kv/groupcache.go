package kv

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/groupcache"

	"github.com/yeisme/cloudvault/pkg/configs"
)

// DefaultGroupcacheBasePath 节点间互取数据的 HTTP 路径前缀.
const DefaultGroupcacheBasePath = "/_groupcache/"

// GroupcacheKV 写入只落在本节点的 MemoryKV；本地未命中时经 groupcache 按一致性哈希向属主节点取值.
// 远端取回的值带过期头，删除不会同步到其他节点的 hot cache，条目在 TTL 到期后失效.
type GroupcacheKV struct {
	local *MemoryKV
	group *groupcache.Group
	pool  *groupcache.HTTPPool
}

var (
	gcMu     sync.Mutex
	gcGroups = map[string]*GroupcacheKV{}

	// HTTPPool 会注册到 http.DefaultServeMux，进程内只能创建一次
	gcPoolOnce sync.Once
	gcPool     *groupcache.HTTPPool
)

// NewGroupcacheKV 同名 group 在进程内复用同一个实例.
func NewGroupcacheKV(_ context.Context, config any) (KVStore, error) {
	cfg, ok := config.(*configs.GroupcacheKVConfig)
	if !ok {
		return nil, fmt.Errorf("invalid groupcache kv config: %T", config)
	}

	gcMu.Lock()
	defer gcMu.Unlock()

	if g, ok := gcGroups[cfg.Name]; ok {
		return g, nil
	}

	g := &GroupcacheKV{local: &MemoryKV{data: map[string]memEntry{}, now: time.Now}}
	g.group = groupcache.NewGroup(cfg.Name, cfg.CacheBytes, groupcache.GetterFunc(g.load))

	if len(cfg.Peers) > 0 {
		if cfg.Self == "" {
			return nil, errors.New("groupcache: self is required when peers are set")
		}

		gcPoolOnce.Do(func() {
			base := cfg.BasePath
			if base == "" {
				base = DefaultGroupcacheBasePath
			}

			gcPool = groupcache.NewHTTPPoolOpts(cfg.Self, &groupcache.HTTPPoolOptions{BasePath: base})
		})
		gcPool.Set(cfg.Peers...)
		g.pool = gcPool
	}

	gcGroups[cfg.Name] = g

	return g, nil
}

// load 供属主节点响应 groupcache 请求，值以剩余 TTL 重新加上过期头.
func (g *GroupcacheKV) load(_ context.Context, key string, dest groupcache.Sink) error {
	now := g.local.now()

	g.local.mu.RLock()
	e, ok := g.local.data[key]
	g.local.mu.RUnlock()

	if !ok || e.expired(now) {
		return notFound(key)
	}

	var ttl time.Duration
	if !e.expireAt.IsZero() {
		ttl = e.expireAt.Sub(now)
	}

	return dest.SetBytes(wrapTTL(e.val, ttl, now))
}

// PeerHandler 节点间互取的 HTTP 入口，未配置 peers 时为 nil.
func (g *GroupcacheKV) PeerHandler() http.Handler {
	if g.pool == nil {
		return nil
	}

	return g.pool
}

func (g *GroupcacheKV) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := g.local.Get(ctx, key)
	if err == nil || !errors.Is(err, ErrKeyNotFound) || g.pool == nil {
		return v, err
	}

	var data []byte
	if err := g.group.Get(ctx, key, groupcache.AllocatingByteSliceSink(&data)); err != nil {
		return nil, notFound(key)
	}

	val, expired, err := unwrapTTL(data, g.local.now())
	if err != nil {
		return nil, err
	}

	if expired {
		return nil, notFound(key)
	}

	return val, nil
}

func (g *GroupcacheKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return g.local.Set(ctx, key, value, ttl)
}

func (g *GroupcacheKV) Delete(ctx context.Context, key string) error {
	return g.local.Delete(ctx, key)
}

// Exists 只看本节点.
func (g *GroupcacheKV) Exists(ctx context.Context, key string) (bool, error) {
	return g.local.Exists(ctx, key)
}

// Keys 只列本节点.
func (g *GroupcacheKV) Keys(ctx context.Context, pattern string) ([]string, error) {
	return g.local.Keys(ctx, pattern)
}

// Close 为空操作，group 无法从 groupcache 注销.
func (g *GroupcacheKV) Close() error {
	return nil
}

func init() {
	RegisterKVFactory(KVTypeGroupcache, NewGroupcacheKV)
}
