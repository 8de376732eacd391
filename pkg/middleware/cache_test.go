package middleware_test

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appcache "github.com/yeisme/cloudvault/pkg/cache"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	"github.com/yeisme/cloudvault/pkg/middleware"
)

func TestPerUserCache(t *testing.T) {
	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	require.NoError(t, err)

	var hits atomic.Int32

	stored := make(chan string, 8)
	cfg := middleware.PerUserCacheConfig(appcache.NewCache(store), time.Minute)
	cfg.OnStore = func(key string, err error) {
		assert.NoError(t, err)
		stored <- key
	}

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if u := c.GetHeader("X-Test-User"); u != "" {
			c.Request = c.Request.WithContext(ctxPkg.WithIdentity(c.Request.Context(), &identity.Identity{UserID: u}))
		}

		c.Next()
	})
	r.GET("/api/v1/stats/summary",
		middleware.CacheMiddleware(cfg),
		func(c *gin.Context) {
			n := hits.Add(1)
			c.JSON(http.StatusOK, gin.H{"n": n})
		})

	as := func(user string) func(*http.Request) {
		return func(req *http.Request) {
			if user != "" {
				req.Header.Set("X-Test-User", user)
			}
		}
	}

	w := do(r, "/api/v1/stats/summary", as("u-1"))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	// 写缓存是异步的，等待写入完成
	select {
	case key := <-stored:
		assert.Contains(t, key, "u:u-1:")
	case <-time.After(time.Second):
		t.Fatal("response was not stored")
	}

	w = do(r, "/api/v1/stats/summary", as("u-1"))
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.JSONEq(t, `{"n":1}`, w.Body.String())
	assert.Equal(t, int32(1), hits.Load())

	// 其他用户不共享缓存
	w = do(r, "/api/v1/stats/summary", as("u-2"))
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))

	// 匿名请求不缓存
	before := hits.Load()
	do(r, "/api/v1/stats/summary", as(""))
	do(r, "/api/v1/stats/summary", as(""))
	assert.Equal(t, before+2, hits.Load())
}
