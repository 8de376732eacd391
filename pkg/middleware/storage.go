package middleware

import (
	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/storage"
)

// StorageMiddleware 把存储管理器放进 request context，service 层经 DepsFromContext 取用.
func StorageMiddleware(manager *storage.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		if manager == nil {
			abort(c, errs.Unavailable("storage not initialized", nil))
			return
		}

		c.Request = c.Request.WithContext(ctxPkg.WithStorageManager(c.Request.Context(), manager))
		c.Next()
	}
}
