// Package context 在 request context 上挂载存储管理器与调用方身份，并提供带追踪字段的 logger.
package context

import (
	"context"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/trace"

	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/internal/storage"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/cloudvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/cloudvault/pkg/internal/storage/mq"
)

type (
	managerKey  struct{}
	identityKey struct{}
)

// WithStorageManager 挂载存储管理器.
func WithStorageManager(ctx context.Context, mgr *storage.Manager) context.Context {
	return context.WithValue(ctx, managerKey{}, mgr)
}

// GetManager 未挂载时返回 nil.
func GetManager(ctx context.Context) *storage.Manager {
	mgr, _ := ctx.Value(managerKey{}).(*storage.Manager)
	return mgr
}

func GetBlobStore(ctx context.Context) blob.Store {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetBlobStore()
	}

	return nil
}

func GetDBClient(ctx context.Context) *dbc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetDBClient()
	}

	return nil
}

func GetMQClient(ctx context.Context) *mqc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetMQClient()
	}

	return nil
}

func GetKVClient(ctx context.Context) *kvc.Client {
	if mgr := GetManager(ctx); mgr != nil {
		return mgr.GetKVClient()
	}

	return nil
}

// WithIdentity 挂载已解析为本地用户的调用方身份.
func WithIdentity(ctx context.Context, id *identity.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// GetIdentity 匿名调用时返回 nil.
func GetIdentity(ctx context.Context) *identity.Identity {
	id, _ := ctx.Value(identityKey{}).(*identity.Identity)
	return id
}

// WithTraceContext 给 logger 附加 trace_id/span_id，已认证时附加 user_id.
func WithTraceContext(ctx context.Context, logger zerolog.Logger) zerolog.Logger {
	sc := trace.SpanContextFromContext(ctx)
	id := GetIdentity(ctx)

	if !sc.IsValid() && id == nil {
		return logger
	}

	lc := logger.With()
	if sc.IsValid() {
		lc = lc.Str("trace_id", sc.TraceID().String()).Str("span_id", sc.SpanID().String())
	}

	if id != nil {
		lc = lc.Str("user_id", id.UserID)
	}

	return lc.Logger()
}
