package kv_test

import (
	"context"
	"crypto/rand"
	"fmt"
	"os"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
)

func newStores(t *testing.T) map[string]kv.KVStore {
	t.Helper()

	ctx := context.Background()
	stores := map[string]kv.KVStore{}

	mem, err := kv.NewKVStore(ctx, kv.KVTypeMemory, nil)
	require.NoError(t, err)

	stores["memory"] = mem

	gc, err := kv.NewKVStore(ctx, kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{
		Name:       "test-" + t.Name(),
		CacheBytes: 1 << 20,
	})
	require.NoError(t, err)

	stores["groupcache"] = gc

	bg, err := kv.NewKVStore(ctx, kv.KVTypeBadger, &configs.BadgerKVConfig{InMemory: true})
	require.NoError(t, err)

	stores["badger"] = bg

	t.Cleanup(func() {
		for _, s := range stores {
			_ = s.Close()
		}
	})

	return stores
}

func TestKVStoreContract(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(ctx, "missing")
			require.ErrorIs(t, err, kv.ErrKeyNotFound)

			require.NoError(t, store.Set(ctx, "auth:a", []byte("1"), 0))
			require.NoError(t, store.Set(ctx, "auth:b", []byte("2"), time.Minute))
			require.NoError(t, store.Set(ctx, "resp:c", []byte("3"), 0))

			v, err := store.Get(ctx, "auth:b")
			require.NoError(t, err)
			assert.Equal(t, []byte("2"), v)

			ok, err := store.Exists(ctx, "auth:a")
			require.NoError(t, err)
			assert.True(t, ok)

			keys, err := store.Keys(ctx, "auth:*")
			require.NoError(t, err)
			sort.Strings(keys)
			assert.Equal(t, []string{"auth:a", "auth:b"}, keys)

			require.NoError(t, store.Delete(ctx, "auth:a"))

			_, err = store.Get(ctx, "auth:a")
			require.ErrorIs(t, err, kv.ErrKeyNotFound)
		})
	}
}

func TestKVStoreTTLExpires(t *testing.T) {
	ctx := context.Background()

	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.Set(ctx, "short", []byte("x"), time.Second))

			assert.Eventually(t, func() bool {
				_, err := store.Get(ctx, "short")

				return err != nil
			}, 3*time.Second, 100*time.Millisecond)

			ok, err := store.Exists(ctx, "short")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestRegisteredKVTypes(t *testing.T) {
	types := kv.GetRegisteredKVTypes()

	assert.Contains(t, types, kv.KVTypeMemory)
	assert.Contains(t, types, kv.KVTypeBadger)
	assert.Contains(t, types, kv.KVTypeGroupcache)
}

func TestGroupcacheWithoutPeers(t *testing.T) {
	s, err := kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{
		Name:       "solo-" + t.Name(),
		CacheBytes: 1 << 20,
	})
	require.NoError(t, err)

	gc, ok := s.(*kv.GroupcacheKV)
	require.True(t, ok)
	assert.Nil(t, gc.PeerHandler())

	// 同名 group 复用同一实例
	again, err := kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{
		Name:       "solo-" + t.Name(),
		CacheBytes: 1 << 20,
	})
	require.NoError(t, err)
	assert.Same(t, gc, again)

	_, err = kv.NewKVStore(context.Background(), kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{
		Name:       "peers-" + t.Name(),
		CacheBytes: 1 << 20,
		Peers:      []string{"http://10.0.0.2:8080"},
	})
	assert.ErrorContains(t, err, "self is required")
}

// benchBackends 外部后端通过环境变量开启：KV_BENCH_REDIS=addr、KV_BENCH_NATS=url.
func benchBackends(b *testing.B) map[string]kv.KVStore {
	b.Helper()

	ctx := context.Background()
	out := map[string]kv.KVStore{}

	open := func(name string, typ kv.KVType, cfg any) {
		s, err := kv.NewKVStore(ctx, typ, cfg)
		if err != nil {
			b.Logf("skip %s: %v", name, err)
			return
		}

		out[name] = s
	}

	open("memory", kv.KVTypeMemory, nil)
	open("groupcache", kv.KVTypeGroupcache, &configs.GroupcacheKVConfig{Name: "bench", CacheBytes: 32 << 20})
	open("badger", kv.KVTypeBadger, &configs.BadgerKVConfig{InMemory: true})

	if addr := os.Getenv("KV_BENCH_REDIS"); addr != "" {
		open("redis", kv.KVTypeRedis, &configs.RedisKVConfig{Addr: addr, KeyPrefix: "bench:"})
	}

	if url := os.Getenv("KV_BENCH_NATS"); url != "" {
		open("nats", kv.KVTypeNATS, &configs.NATSKVConfig{URL: url, Bucket: "bench-kv"})
	}

	b.Cleanup(func() {
		for _, s := range out {
			_ = s.Close()
		}
	})

	return out
}

func BenchmarkKV(b *testing.B) {
	ctx := context.Background()

	for name, store := range benchBackends(b) {
		for _, size := range []int{32, 1 << 10, 64 << 10} {
			payload := make([]byte, size)
			_, _ = rand.Read(payload)

			for _, ttl := range []time.Duration{0, 5 * time.Second} {
				b.Run(fmt.Sprintf("%s/size=%d/ttl=%s", name, size, ttl), func(b *testing.B) {
					b.ReportAllocs()

					for i := 0; b.Loop(); i++ {
						roundTrip(ctx, b, store, fmt.Sprintf("bench-%d", i), payload, ttl)
					}
				})
			}
		}

		var seq atomic.Uint64

		b.Run(name+"/parallel", func(b *testing.B) {
			payload := make([]byte, 1<<10)

			b.ReportAllocs()
			b.RunParallel(func(pb *testing.PB) {
				for pb.Next() {
					roundTrip(ctx, b, store, fmt.Sprintf("bench-p-%d", seq.Add(1)), payload, 0)
				}
			})
		})
	}
}

func roundTrip(ctx context.Context, b *testing.B, s kv.KVStore, key string, v []byte, ttl time.Duration) {
	if err := s.Set(ctx, key, v, ttl); err != nil {
		b.Fatalf("set %s: %v", key, err)
	}

	if _, err := s.Get(ctx, key); err != nil {
		b.Fatalf("get %s: %v", key, err)
	}

	if err := s.Delete(ctx, key); err != nil {
		b.Fatalf("delete %s: %v", key, err)
	}
}
