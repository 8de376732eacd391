// Package identity 校验调用方凭据，支持外部认证服务、本地 JWT 与可信代理请求头三种方式.
package identity

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cespare/xxhash/v2"
	"golang.org/x/sync/singleflight"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

// Identity 已认证的调用方.
type Identity struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}

// Credential 从请求中提取的凭据，不同模式使用不同字段.
type Credential struct {
	// Token 会话 cookie 或 Bearer 令牌
	Token string
	// 代理注入的请求头
	User  string
	Email string
	Name  string
}

// Empty 没有任何凭据.
func (c Credential) Empty() bool {
	return c.Token == "" && c.User == "" && c.Email == ""
}

// Verifier 校验凭据.
// 凭据无效返回 Unauthorized，认证服务不可达返回 Unavailable.
type Verifier interface {
	Verify(ctx context.Context, cred Credential) (*Identity, error)
}

var errMissing = errs.Unauthorized("missing credentials")

// New 按配置创建 Verifier，cache 不为空且 cache_ttl > 0 时对 token 结果做短期缓存.
func New(cfg *configs.AuthConfig, cache kv.KVStore) (Verifier, error) {
	var v Verifier

	switch cfg.Mode {
	case configs.AuthModeRemote:
		if cfg.RemoteURL == "" {
			return nil, fmt.Errorf("auth.remote_url is required in remote mode")
		}

		v = NewRemoteVerifier(cfg.RemoteURL, cfg.CookieName, cfg.GetVerifyTimeout())
	case configs.AuthModeJWT:
		j, err := NewJWTVerifier(cfg.JWTSecret, cfg.GetJWTTTL())
		if err != nil {
			return nil, err
		}

		v = j
	case configs.AuthModeHeader:
		return HeaderVerifier{}, nil
	default:
		return nil, fmt.Errorf("unsupported auth mode: %s", cfg.Mode)
	}

	if cache != nil && cfg.CacheTTL > 0 {
		v = NewCached(v, cache, cfg.GetCacheTTL())
	}

	return v, nil
}

// Cached 缓存 token 的校验结果，同一 token 的并发校验只发起一次.
type Cached struct {
	next  Verifier
	store kv.KVStore
	ttl   time.Duration
	group singleflight.Group
}

func NewCached(next Verifier, store kv.KVStore, ttl time.Duration) *Cached {
	return &Cached{next: next, store: store, ttl: ttl}
}

func (c *Cached) Verify(ctx context.Context, cred Credential) (*Identity, error) {
	if cred.Token == "" {
		return c.next.Verify(ctx, cred)
	}

	// 缓存键只保存摘要，不落盘原始 token
	key := fmt.Sprintf("auth:v1:%x", xxhash.Sum64String(cred.Token))

	if b, err := c.store.Get(ctx, key); err == nil {
		var id Identity
		if err := sonic.Unmarshal(b, &id); err == nil && id.UserID != "" {
			return &id, nil
		}
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		id, err := c.next.Verify(ctx, cred)
		if err != nil {
			return nil, err
		}

		if b, err := sonic.Marshal(id); err == nil {
			if err := c.store.Set(ctx, key, b, c.ttl); err != nil {
				nlog.Logger().Debug().Err(err).Msg("cache identity failed")
			}
		}

		return id, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Identity), nil
}
