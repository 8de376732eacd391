package service_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

func TestSweepOrphanUploads(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	now := time.Now().UTC()
	e.deps.Now = func() time.Time { return now }

	uploads := service.NewUploadServiceWith(e.deps)
	u := e.user(t, 1000)

	stale, err := uploads.IssueSignedUpload(ctx, u.ID, &types.SignedUploadRequest{FileName: "stale.bin", FolderID: service.MyFilesAlias})
	require.NoError(t, err)
	require.NoError(t, uploads.ReceiveLocal(ctx, u.ID, stale.StorageKey, strings.NewReader("abc"), 3, ""))

	never, err := uploads.IssueSignedUpload(ctx, u.ID, &types.SignedUploadRequest{FileName: "never.bin", FolderID: service.MyFilesAlias})
	require.NoError(t, err)

	// 两小时后两条都已过期，再签发一条新的
	now = now.Add(2 * time.Hour)

	fresh, err := uploads.IssueSignedUpload(ctx, u.ID, &types.SignedUploadRequest{FileName: "fresh.bin", FolderID: service.MyFilesAlias})
	require.NoError(t, err)

	n, err := service.NewMaintenanceServiceWith(e.deps).SweepOrphanUploads(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.False(t, e.exists(t, stale.StorageKey))
	assert.Zero(t, e.count(t, &model.PendingUpload{}, "storage_key IN ?", []string{stale.StorageKey, never.StorageKey}))
	assert.Equal(t, int64(1), e.count(t, &model.PendingUpload{}, "storage_key = ?", fresh.StorageKey))

	// 过期的上传地址不再接收内容
	now = now.Add(2 * time.Hour)
	err = uploads.ReceiveLocal(ctx, u.ID, fresh.StorageKey, strings.NewReader("abc"), 3, "")
	require.Error(t, err)
}

func TestSweepExpiredShares(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	owner := e.user(t, 1000)
	friend := e.user(t, 1000)
	folder := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	file := e.file(t, owner, folder.ID, 1)

	past := time.Now().Add(-time.Hour).UTC()
	future := time.Now().Add(time.Hour).UTC()

	require.NoError(t, e.db.Create(&model.FolderShare{FolderID: folder.ID, UserID: friend.ID, Role: model.RoleViewer, ExpiresAt: &past}).Error)
	require.NoError(t, e.db.Create(&model.FileShare{FileID: file.ID, UserID: friend.ID, Role: model.RoleViewer, ExpiresAt: &future}).Error)
	require.NoError(t, e.db.Create(&model.ShareLink{FileID: file.ID, OwnerID: owner.ID, ExpiresAt: &past}).Error)
	require.NoError(t, e.db.Create(&model.ShareLink{FileID: file.ID, OwnerID: owner.ID}).Error)

	res, err := service.NewMaintenanceServiceWith(e.deps).SweepExpiredShares(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.FolderShares)
	assert.Zero(t, res.FileShares)
	assert.Equal(t, int64(1), res.Links)
	assert.Equal(t, int64(1), e.count(t, &model.ShareLink{}, "1 = 1"))
}

func TestReconcileQuotas(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	a := e.user(t, 1000)
	b := e.user(t, 1000)
	e.file(t, a, *a.RootFolderID, 100)
	e.file(t, b, *b.RootFolderID, 10)

	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", a.ID).Update("storage_used", 999).Error)

	fixed, err := service.NewMaintenanceServiceWith(e.deps).ReconcileQuotas(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)
	assert.Equal(t, int64(100), e.used(t, a.ID))
	assert.Equal(t, int64(10), e.used(t, b.ID))
}
