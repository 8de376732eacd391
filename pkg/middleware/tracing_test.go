package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/yeisme/cloudvault/pkg/middleware"
)

func TestTracingMiddlewareSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(middleware.TracingMiddleware())
	r.GET("/api/v1/files/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })
	r.GET("/api/v1/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/files/abc?token=secret", nil))
	assert.Len(t, w.Header().Get(middleware.TraceIDHeader), 32)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/boom", nil))

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "GET /api/v1/files/:id", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)

	for _, kv := range spans[0].Attributes() {
		assert.NotContains(t, kv.Value.Emit(), "secret")
	}

	assert.Equal(t, codes.Error, spans[1].Status().Code)
}
