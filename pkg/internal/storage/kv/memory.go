package kv

import (
	"context"
	"sort"
	"sync"
	"time"
)

func init() {
	RegisterKVFactory(KVTypeMemory, NewMemoryKV)
}

type memEntry struct {
	val      []byte
	expireAt time.Time // 零值表示永不过期
}

func (e memEntry) expired(now time.Time) bool {
	return !e.expireAt.IsZero() && !now.Before(e.expireAt)
}

// MemoryKV 单进程 KV，过期键在读取或列举时清理.
type MemoryKV struct {
	mu   sync.RWMutex
	data map[string]memEntry
	now  func() time.Time
}

// NewMemoryKV 不需要配置，config 被忽略.
func NewMemoryKV(_ context.Context, _ any) (KVStore, error) {
	return &MemoryKV{data: make(map[string]memEntry), now: time.Now}, nil
}

func (m *MemoryKV) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, notFound(key)
	}

	if e.expired(m.now()) {
		m.mu.Lock()
		// 期间可能被重新写入
		if cur, ok := m.data[key]; ok && cur.expired(m.now()) {
			delete(m.data, key)
		}
		m.mu.Unlock()

		return nil, notFound(key)
	}

	return append([]byte(nil), e.val...), nil
}

func (m *MemoryKV) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memEntry{val: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expireAt = m.now().Add(ttl)
	}

	m.mu.Lock()
	m.data[key] = e
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()

	return nil
}

func (m *MemoryKV) Exists(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	return ok && !e.expired(m.now()), nil
}

// Keys 顺带清理已过期的键，结果按字典序返回.
func (m *MemoryKV) Keys(_ context.Context, pattern string) ([]string, error) {
	now := m.now()
	keys := make([]string, 0)

	m.mu.Lock()
	for k, e := range m.data {
		if e.expired(now) {
			delete(m.data, k)
			continue
		}

		if matchKey(pattern, k) {
			keys = append(keys, k)
		}
	}
	m.mu.Unlock()

	sort.Strings(keys)

	return keys, nil
}

func (m *MemoryKV) Close() error {
	return nil
}
