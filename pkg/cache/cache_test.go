package cache_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/cache"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
)

type record struct {
	ID   string `json:"id"`
	Size int64  `json:"size"`
}

func newStore(t *testing.T) kv.KVStore {
	t.Helper()

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return store
}

func TestGetSet(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	_, err := cache.Get[record](ctx, c, "missing")
	assert.True(t, cache.IsMiss(err))

	require.NoError(t, cache.Set(ctx, c, "r1", record{ID: "r1", Size: 42}, time.Minute))

	got, err := cache.Get[record](ctx, c, "r1")
	require.NoError(t, err)
	assert.Equal(t, record{ID: "r1", Size: 42}, got)

	ok, err := c.Exists(ctx, "r1")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, c.Delete(ctx, "r1", "never-set"))

	_, err = cache.Get[record](ctx, c, "r1")
	assert.True(t, cache.IsMiss(err))
}

func TestExpiry(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	require.NoError(t, cache.Set(ctx, c, "short", "v", 20*time.Millisecond))

	require.Eventually(t, func() bool {
		_, err := cache.Get[string](ctx, c, "short")
		return cache.IsMiss(err)
	}, time.Second, 10*time.Millisecond)
}

func TestDecodeError(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c := cache.NewCache(store)

	require.NoError(t, store.Set(ctx, "bad", []byte("{not json"), 0))

	_, err := cache.Get[record](ctx, c, "bad")
	require.Error(t, err)
	assert.False(t, cache.IsMiss(err))
}

func TestNamespaceIsolation(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)

	links := cache.NewCache(store, cache.WithNamespace("link"))
	resp := cache.NewCache(store, cache.WithNamespace("resp"))

	require.NoError(t, cache.Set(ctx, links, "a", 1, 0))
	require.NoError(t, cache.Set(ctx, links, "b", 2, 0))
	require.NoError(t, cache.Set(ctx, resp, "a", 3, 0))

	v, err := cache.Get[int](ctx, resp, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)

	ok, err := store.Exists(ctx, "link:a")
	require.NoError(t, err)
	assert.True(t, ok)

	n, err := links.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	_, err = cache.Get[int](ctx, links, "a")
	assert.True(t, cache.IsMiss(err))

	v, err = cache.Get[int](ctx, resp, "a")
	require.NoError(t, err)
	assert.Equal(t, 3, v)
}

func TestGetOrSet(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	var calls atomic.Int32

	load := func(context.Context) (record, error) {
		calls.Add(1)
		return record{ID: "x", Size: 7}, nil
	}

	got, err := cache.GetOrSet(ctx, c, "x", load, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.Size)

	got, err = cache.GetOrSet(ctx, c, "x", load, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, "x", got.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetOrSetLoaderError(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	boom := errors.New("boom")

	_, err := cache.GetOrSet(ctx, c, "e", func(context.Context) (int, error) { return 0, boom }, time.Minute)
	require.ErrorIs(t, err, boom)

	// 错误不缓存
	_, err = cache.Get[int](ctx, c, "e")
	assert.True(t, cache.IsMiss(err))
}

func TestGetOrSetConcurrentLoadOnce(t *testing.T) {
	ctx := context.Background()
	c := cache.NewCache(newStore(t))

	var (
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)

	load := func(context.Context) (int, error) {
		calls.Add(1)
		<-release

		return 99, nil
	}

	const workers = 8

	results := make([]int, workers)

	for i := range workers {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			v, err := cache.GetOrSet(ctx, c, "hot", load, time.Minute)
			assert.NoError(t, err)

			results[i] = v
		}(i)
	}

	// 等待第一个 loader 进入后放行
	require.Eventually(t, func() bool { return calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, v := range results {
		assert.Equal(t, 99, v)
	}

	assert.LessOrEqual(t, calls.Load(), int32(2))
}
