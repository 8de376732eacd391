package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/yeisme/cloudvault/pkg/middleware"
)

func TestGzipSkipsDownloads(t *testing.T) {
	gin.SetMode(gin.TestMode)

	body := strings.Repeat("cloudvault ", 200)
	r := gin.New()
	r.Use(middleware.GzipMiddleware(5))
	r.GET("/api/v1/folders", func(c *gin.Context) { c.String(http.StatusOK, body) })
	r.GET("/api/v1/files/:id/download", func(c *gin.Context) { c.String(http.StatusOK, body) })

	get := func(path string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Accept-Encoding", "gzip")

		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		return w
	}

	assert.Equal(t, "gzip", get("/api/v1/folders").Header().Get("Content-Encoding"))

	w := get("/api/v1/files/f1/download")
	assert.Empty(t, w.Header().Get("Content-Encoding"))
	assert.Equal(t, body, w.Body.String())
}
