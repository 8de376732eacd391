package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/log"
)

// ResolveUser 把已校验的外部身份映射为本地用户，首次访问时负责创建.
type ResolveUser func(ctx context.Context, id *identity.Identity) (*identity.Identity, error)

// AuthMiddleware 校验调用方凭据并把本地用户身份写入 request context.
//   - skip_paths 完全跳过
//   - optional_paths 凭据缺失或无效时按匿名处理
//   - 未启用认证时所有路径都按 optional 处理
func AuthMiddleware(conf configs.AuthConfig, v identity.Verifier, resolve ResolveUser) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if hasPathPrefix(path, conf.SkipPaths) {
			c.Next()
			return
		}

		optional := !conf.Enabled || hasPathPrefix(path, conf.OptionalPaths)

		cred := credentialFrom(c, conf.GetCookieName())
		if cred.Empty() {
			if optional {
				c.Next()
				return
			}

			abort(c, errs.Unauthorized("missing credentials"))

			return
		}

		ctx := c.Request.Context()

		id, err := v.Verify(ctx, cred)
		if err == nil {
			id, err = resolve(ctx, id)
		}

		if err != nil {
			if optional && errs.Is(err, errs.KindUnauthorized) {
				c.Next()
				return
			}

			l := ctxPkg.WithTraceContext(ctx, *log.Logger())
			l.Debug().Err(err).Str("path", path).Msg("authentication failed")
			abort(c, err)

			return
		}

		c.Set("user_id", id.UserID)
		c.Request = c.Request.WithContext(ctxPkg.WithIdentity(ctx, id))
		c.Next()
	}
}

// credentialFrom 会话 cookie 优先，其次 Bearer 令牌；代理请求头一并带上.
func credentialFrom(c *gin.Context, cookieName string) identity.Credential {
	var cred identity.Credential

	if v, err := c.Cookie(cookieName); err == nil {
		cred.Token = strings.TrimSpace(v)
	}

	if cred.Token == "" {
		if h := c.GetHeader("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
			cred.Token = strings.TrimSpace(h[7:])
		}
	}

	cred.User = strings.TrimSpace(c.GetHeader(identity.HeaderUser))
	cred.Name = strings.TrimSpace(c.GetHeader(identity.HeaderName))

	cred.Email = strings.TrimSpace(c.GetHeader(identity.HeaderEmail))
	if cred.Email == "" {
		cred.Email = strings.TrimSpace(c.GetHeader(identity.HeaderForwardedEmail))
	}

	return cred
}
