package middleware

import (
	"bytes"
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/gin-gonic/gin"

	appcache "github.com/yeisme/cloudvault/pkg/cache"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/log"
)

const (
	DefaultMaxBodyBytes = 1 << 20
	defaultCacheTTL     = 30 * time.Second
	// CacheBypassHeader 请求带该头时不读也不写缓存
	CacheBypassHeader = "X-Cache-Bypass"
)

// CacheConfig 响应缓存配置，只缓存 GET/HEAD 的 200 响应.
type CacheConfig struct {
	Cache *appcache.Cache
	TTL   time.Duration

	// KeyFunc 生成缓存键，默认按路由模板与排序后的 query
	KeyFunc func(*gin.Context) string
	// Skipper 返回 true 时跳过缓存
	Skipper func(*gin.Context) bool

	// MaxBodyBytes 超过该大小的响应不缓存，0 表示不限制
	MaxBodyBytes int

	// OnStore 异步写缓存完成后回调
	OnStore func(key string, err error)
}

// CacheMiddleware 响应缓存.命中时带 X-Cache: HIT 与 Age，If-None-Match 匹配时返回 304.
// 响应带 Cache-Control: no-store 或 private 时不缓存.缓存读写失败不影响请求本身.
func CacheMiddleware(cfg CacheConfig) gin.HandlerFunc {
	if cfg.Cache == nil {
		panic("CacheMiddleware: Cache cannot be nil")
	}

	if cfg.TTL <= 0 {
		cfg.TTL = defaultCacheTTL
	}

	if cfg.KeyFunc == nil {
		cfg.KeyFunc = responseKey
	}

	return func(c *gin.Context) {
		if bypassCache(c, cfg) {
			c.Next()
			return
		}

		key := cfg.KeyFunc(c)
		if serveCached(c, cfg.Cache, key) {
			return
		}

		bw := &bodyCaptureWriter{ResponseWriter: c.Writer, max: cfg.MaxBodyBytes}
		c.Writer = bw
		c.Header("X-Cache", "MISS")
		c.Next()

		storeResponse(c, cfg, key, bw)
	}
}

// PerUserCacheConfig 按调用方隔离的缓存，匿名请求不缓存.
func PerUserCacheConfig(c *appcache.Cache, ttl time.Duration) CacheConfig {
	return CacheConfig{
		Cache:        c,
		TTL:          ttl,
		MaxBodyBytes: DefaultMaxBodyBytes,
		Skipper:      func(gc *gin.Context) bool { return ctxPkg.GetIdentity(gc.Request.Context()) == nil },
		KeyFunc: func(gc *gin.Context) string {
			return "u:" + ctxPkg.GetIdentity(gc.Request.Context()).UserID + ":" + responseKey(gc)
		},
	}
}

type cachedResponse struct {
	Status   int               `json:"s"`
	Header   map[string]string `json:"h,omitempty"`
	Body     []byte            `json:"b,omitempty"`
	ETag     string            `json:"e,omitempty"`
	StoredAt int64             `json:"t"`
}

// responseKey 方法、路由模板与排序后的 query 的哈希.
func responseKey(c *gin.Context) string {
	var b strings.Builder

	b.WriteString(c.Request.Method)
	b.WriteByte(':')

	if route := c.FullPath(); route != "" {
		b.WriteString(route)
	} else {
		b.WriteString(c.Request.URL.Path)
	}

	// 路由参数不在模板里
	for _, p := range c.Params {
		b.WriteByte('/')
		b.WriteString(p.Key)
		b.WriteByte('=')
		b.WriteString(p.Value)
	}

	if q := c.Request.URL.Query(); len(q) > 0 {
		keys := make([]string, 0, len(q))
		for k := range q {
			keys = append(keys, k)
		}

		sort.Strings(keys)
		b.WriteByte('?')

		for i, k := range keys {
			if i > 0 {
				b.WriteByte('&')
			}

			b.WriteString(k)
			b.WriteByte('=')
			b.WriteString(strings.Join(q[k], ","))
		}
	}

	return "rc:" + strconv.FormatUint(xxhash.Sum64String(b.String()), 16)
}

func bypassCache(c *gin.Context, cfg CacheConfig) bool {
	if m := c.Request.Method; m != http.MethodGet && m != http.MethodHead {
		return true
	}

	if c.GetHeader(CacheBypassHeader) != "" {
		return true
	}

	return cfg.Skipper != nil && cfg.Skipper(c)
}

// serveCached 命中时写出缓存的响应并中止后续处理.
func serveCached(c *gin.Context, cache *appcache.Cache, key string) bool {
	entry, err := appcache.Get[cachedResponse](c.Request.Context(), cache, key)
	if err != nil {
		return false
	}

	h := c.Writer.Header()
	for k, v := range entry.Header {
		h.Set(k, v)
	}

	h.Set("ETag", entry.ETag)
	h.Set("Age", strconv.FormatInt(int64(time.Since(time.Unix(0, entry.StoredAt)).Seconds()), 10))
	h.Set("X-Cache", "HIT")

	switch {
	case entry.ETag != "" && c.GetHeader("If-None-Match") == entry.ETag:
		c.AbortWithStatus(http.StatusNotModified)
	case c.Request.Method == http.MethodHead:
		c.AbortWithStatus(entry.Status)
	default:
		c.Status(entry.Status)
		_, _ = c.Writer.Write(entry.Body)
		c.Abort()
	}

	return true
}

func noStore(h http.Header) bool {
	cc := strings.ToLower(h.Get("Cache-Control"))

	return strings.Contains(cc, "no-store") || strings.Contains(cc, "private")
}

// storeResponse 异步写入缓存，请求结束后 context 取消不影响写入.
func storeResponse(c *gin.Context, cfg CacheConfig, key string, bw *bodyCaptureWriter) {
	if c.Writer.Status() != http.StatusOK || bw.truncated || c.Request.Method != http.MethodGet {
		return
	}

	if noStore(c.Writer.Header()) {
		return
	}

	body := bytes.Clone(bw.buf.Bytes())

	hdr := make(map[string]string, len(c.Writer.Header()))
	for k, v := range c.Writer.Header() {
		if len(v) > 0 && k != "X-Cache" {
			hdr[k] = v[0]
		}
	}

	etag := hdr["Etag"]
	if etag == "" {
		etag = `"` + strconv.FormatUint(xxhash.Sum64(body), 16) + `"`
	}

	entry := cachedResponse{
		Status:   http.StatusOK,
		Header:   hdr,
		Body:     body,
		ETag:     etag,
		StoredAt: time.Now().UnixNano(),
	}

	ctx := context.WithoutCancel(c.Request.Context())

	go func() {
		err := appcache.Set(ctx, cfg.Cache, key, entry, cfg.TTL)
		if err != nil {
			log.Logger().Debug().Err(err).Str("key", key).Msg("store response cache failed")
		}

		if cfg.OnStore != nil {
			cfg.OnStore(key, err)
		}
	}()
}

// bodyCaptureWriter 透传响应并复制前 max 字节.
type bodyCaptureWriter struct {
	gin.ResponseWriter

	buf       bytes.Buffer
	max       int
	truncated bool
}

func (w *bodyCaptureWriter) Write(b []byte) (int, error) {
	if !w.truncated {
		if w.max > 0 && w.buf.Len()+len(b) > w.max {
			w.truncated = true
			w.buf.Reset()
		} else {
			w.buf.Write(b)
		}
	}

	return w.ResponseWriter.Write(b)
}

func (w *bodyCaptureWriter) WriteString(s string) (int, error) {
	return w.Write([]byte(s))
}
