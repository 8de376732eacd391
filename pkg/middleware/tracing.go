package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/cloudvault/pkg/tracing"
)

// TraceIDHeader 响应头中回传的 trace id，便于按请求检索日志.
const TraceIDHeader = "X-Trace-Id"

// TracingMiddleware 每个请求一个 server span，名称为 "METHOD 路由模板"，查询串不记录.
// 只有 5xx 标记为错误，4xx 属于调用方问题.
func TracingMiddleware() gin.HandlerFunc {
	prop := otel.GetTextMapPropagator

	return func(c *gin.Context) {
		req := c.Request
		parent := prop().Extract(req.Context(), propagation.HeaderCarrier(req.Header))

		ctx, span := tracing.StartSpan(parent, req.Method,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.URLPath(req.URL.Path),
				semconv.ServerAddress(req.Host),
				semconv.ClientAddress(c.ClientIP()),
				semconv.UserAgentOriginal(req.UserAgent()),
			),
		)
		defer span.End()

		if sc := span.SpanContext(); sc.HasTraceID() {
			c.Header(TraceIDHeader, sc.TraceID().String())
		}

		c.Request = req.WithContext(ctx)
		c.Next()

		if route := c.FullPath(); route != "" {
			span.SetName(req.Method + " " + route)
			span.SetAttributes(semconv.HTTPRoute(route))
		}

		status := c.Writer.Status()
		span.SetAttributes(semconv.HTTPResponseStatusCode(status))

		if uid := c.GetString("user_id"); uid != "" {
			span.SetAttributes(attribute.String("enduser.id", uid))
		}

		if status >= http.StatusInternalServerError {
			msg := http.StatusText(status)
			if len(c.Errors) > 0 {
				msg = c.Errors.String()
			}

			span.SetStatus(codes.Error, msg)
		}
	}
}
