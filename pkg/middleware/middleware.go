// Package middleware 提供 gin 中间件：身份认证、角色、缓存、限流、熔断、追踪、指标与日志.
package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

// abort 以与 handler 相同的错误格式结束请求.
func abort(c *gin.Context, err error) {
	c.AbortWithStatusJSON(errs.HTTPStatus(err), gin.H{"error": errs.Public(err)})
}

// hasPathPrefix path 是否以任一前缀开头，空前缀忽略.
func hasPathPrefix(path string, prefixes []string) bool {
	if path == "" {
		return false
	}

	for _, p := range prefixes {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}

		if strings.HasPrefix(path, p) {
			return true
		}
	}

	return false
}
