package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
)

// Role 全局角色，只区分匿名、普通用户与管理员；资源级权限由 permission 包判定.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
)

var roleNames = [...]string{RoleAnonymous: "anonymous", RoleUser: "user", RoleAdmin: "admin"}

func (r Role) String() string {
	if r < RoleAnonymous || r > RoleAdmin {
		return roleNames[RoleAnonymous]
	}

	return roleNames[r]
}

const roleKey = "role"

// RoleMiddleware 放在 AuthMiddleware 之后；邮箱比较忽略大小写.
func RoleMiddleware(admins []string) gin.HandlerFunc {
	isAdmin := make(map[string]bool, len(admins))
	for _, a := range admins {
		if a = strings.ToLower(strings.TrimSpace(a)); a != "" {
			isAdmin[a] = true
		}
	}

	return func(c *gin.Context) {
		role := RoleAnonymous

		switch id := ctxPkg.GetIdentity(c.Request.Context()); {
		case id == nil:
		case isAdmin[strings.ToLower(id.Email)]:
			role = RoleAdmin
		default:
			role = RoleUser
		}

		c.Set(roleKey, role)
		c.Next()
	}
}

// GetRole 未经过 RoleMiddleware 时为匿名.
func GetRole(c *gin.Context) Role {
	r, _ := c.Value(roleKey).(Role)

	return r
}

// RequireMinRole 匿名返回 401，已登录但角色不足返回 403.
func RequireMinRole(minRole Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch r := GetRole(c); {
		case r >= minRole:
			c.Next()
		case r == RoleAnonymous:
			abort(c, errs.Unauthorized("authentication required"))
		default:
			abort(c, errs.Forbidden("insufficient role"))
		}
	}
}
