// Package handle 提供请求处理器的实现，只负责参数绑定、身份提取与错误映射，业务规则在 service 中.
package handle

import (
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/rule"
)

// currentUser 返回调用方 ID，匿名访问时为空串.
func currentUser(c *gin.Context) string {
	if id := ctxPkg.GetIdentity(c.Request.Context()); id != nil {
		return id.UserID
	}

	return ""
}

// requireUser 未认证时直接写 401.
func requireUser(c *gin.Context) (string, bool) {
	user := currentUser(c)
	if user == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
		return "", false
	}

	return user, true
}

// fail 按错误类型写响应，5xx 只返回通用消息.
func fail(c *gin.Context, err error, msg string) {
	l := ctxPkg.WithTraceContext(c.Request.Context(), *log.Logger())

	status := errs.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		l.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
	} else {
		l.Debug().Err(err).Str("path", c.FullPath()).Msg(msg)
	}

	c.JSON(status, gin.H{"error": errs.Public(err)})
}

// bind 绑定请求体，失败时写 400.
func bind(c *gin.Context, v any) bool {
	if err := c.ShouldBind(v); err != nil {
		l := log.Logger()
		l.Warn().Err(err).Msg("invalid request")
		c.JSON(http.StatusBadRequest, gin.H{"error": rule.Describe(err)})

		return false
	}

	return true
}

// queryBool 解析布尔查询参数，缺省或非法时返回 def.
func queryBool(c *gin.Context, name string, def bool) bool {
	v, err := strconv.ParseBool(c.Query(name))
	if err != nil {
		return def
	}

	return v
}

// serveFile 有直接地址时重定向，否则由服务端中转内容.
func serveFile(c *gin.Context, f *model.File, directURL string, open func() (io.ReadCloser, error)) {
	if directURL != "" {
		c.Redirect(http.StatusFound, directURL)
		return
	}

	rc, err := open()
	if err != nil {
		fail(c, err, "open file content failed")
		return
	}
	defer rc.Close()

	headers := map[string]string{
		"Content-Disposition": mime.FormatMediaType("attachment", map[string]string{"filename": f.Name}),
	}

	c.DataFromReader(http.StatusOK, f.Size, f.MimeType, rc, headers)
}
