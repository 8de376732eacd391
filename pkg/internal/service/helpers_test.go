package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
)

type env struct {
	db   *gorm.DB
	deps service.Deps
}

func newEnv(t *testing.T) *env {
	t.Helper()

	gdb := testutil.NewDB(t)

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	require.NoError(t, err)

	t.Cleanup(func() { _ = store.Close() })

	return &env{
		db: gdb,
		deps: service.Deps{
			DB:   gdb,
			Blob: testutil.NewBlobStore(t, "http://cdn.test"),
			KV:   store,
			Upload: configs.UploadConfig{
				MaxFileSize:     configs.DefaultMaxFileSize,
				SignedURLExpiry: configs.DefaultSignedURLExpiry,
				DownloadSecret:  "test-secret",
				DeleteParallel:  2,
			},
			Quota: configs.QuotaConfig{DefaultBytes: 1000},
			Auth:  configs.AuthConfig{JWTSecret: "jwt-secret", JWTTTLHours: 1},
			Now:   time.Now,
		},
	}
}

func (e *env) user(t *testing.T, quota int64) *model.User {
	t.Helper()

	return testutil.NewUser(t, e.db, quota)
}

func (e *env) used(t *testing.T, userID string) int64 {
	t.Helper()

	var u model.User
	require.NoError(t, e.db.Where("id = ?", userID).Take(&u).Error)

	return u.StorageUsed
}

func ptr[T any](v T) *T { return &v }

// file 写入文件记录与对应对象.
func (e *env) file(t *testing.T, owner *model.User, folderID string, size int64) *model.File {
	t.Helper()

	f := testutil.NewFile(t, e.db, owner, folderID, size)

	_, err := e.deps.Blob.Put(context.Background(), f.StorageKey, strings.NewReader(strings.Repeat("x", int(size))), size, f.MimeType)
	require.NoError(t, err)

	return f
}

func (e *env) exists(t *testing.T, key string) bool {
	t.Helper()

	_, err := e.deps.Blob.Stat(context.Background(), key)
	if errors.Is(err, blob.ErrNotFound) {
		return false
	}

	require.NoError(t, err)

	return true
}

func (e *env) count(t *testing.T, m any, where string, args ...any) int64 {
	t.Helper()

	var n int64
	require.NoError(t, e.db.Model(m).Where(where, args...).Count(&n).Error)

	return n
}
