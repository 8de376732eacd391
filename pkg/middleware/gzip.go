package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
)

// 文件内容本身多为已压缩格式，且需要保留 Content-Length 与 Range.
var gzipSkipPaths = []string{
	`.*/download(/.*)?$`,
	`^/api/v1/files/upload/local/.*`,
	`^/_groupcache/.*`,
}

// GzipMiddleware level 为 0 时不压缩；其余取值同 compress/gzip.
func GzipMiddleware(level int, skip ...string) gin.HandlerFunc {
	if level == 0 {
		return func(c *gin.Context) { c.Next() }
	}

	return gzip.Gzip(level,
		gzip.WithExcludedPathsRegexs(append(gzipSkipPaths[:len(gzipSkipPaths):len(gzipSkipPaths)], skip...)),
		gzip.WithExcludedExtensions([]string{".png", ".jpg", ".jpeg", ".gif", ".zip", ".gz", ".mp4"}),
	)
}
