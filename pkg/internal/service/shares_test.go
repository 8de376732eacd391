package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

func TestFolderShareLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewShareServiceWith(e.deps)
	folders := service.NewFolderServiceWith(e.deps)
	owner := e.user(t, 1000)
	friend := e.user(t, 1000)

	f := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)

	share, err := svc.CreateFolderShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, Email: friend.Email, Role: "editor"})
	require.NoError(t, err)
	assert.Equal(t, "EDITOR", share.Role)
	assert.Equal(t, types.ResourceFolder, share.ResourceType)
	assert.Equal(t, friend.ID, share.User.ID)

	_, err = svc.CreateFolderShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, UserID: friend.ID, Role: "VIEWER"})
	assert.True(t, errs.Is(err, errs.KindConflict))

	list, err := svc.ListFolderShares(ctx, f.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	_, err = svc.ListFolderShares(ctx, f.ID, friend.ID)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	updated, err := svc.UpdateFolderShare(ctx, share.ID, owner.ID, &types.UpdateShareRequest{Role: ptr("viewer")})
	require.NoError(t, err)
	assert.Equal(t, "VIEWER", updated.Role)

	_, err = svc.UpdateFolderShare(ctx, share.ID, friend.ID, &types.UpdateShareRequest{Role: ptr("OWNER")})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = folders.Update(ctx, f.ID, friend.ID, &types.UpdateFolderRequest{Name: ptr("mine")})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = folders.Get(ctx, f.ID, friend.ID)
	require.NoError(t, err)

	require.True(t, errs.Is(svc.RemoveFolderShare(ctx, share.ID, friend.ID), errs.KindForbidden))
	require.NoError(t, svc.RemoveFolderShare(ctx, share.ID, owner.ID))

	_, err = folders.Get(ctx, f.ID, friend.ID)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	list, err = svc.ListFolderShares(ctx, f.ID, owner.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestShareValidation(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewShareServiceWith(e.deps)
	owner := e.user(t, 1000)
	friend := e.user(t, 1000)

	folder := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	file := e.file(t, owner, folder.ID, 1)
	past := time.Now().Add(-time.Hour)

	cases := []struct {
		name string
		req  types.CreateShareRequest
		kind errs.Kind
	}{
		{"owner role on file", types.CreateShareRequest{ResourceID: file.ID, UserID: friend.ID, Role: "OWNER"}, errs.KindBadRequest},
		{"unknown role", types.CreateShareRequest{ResourceID: file.ID, UserID: friend.ID, Role: "ADMIN"}, errs.KindBadRequest},
		{"no grantee", types.CreateShareRequest{ResourceID: file.ID, Role: "VIEWER"}, errs.KindBadRequest},
		{"self by id", types.CreateShareRequest{ResourceID: file.ID, UserID: owner.ID, Role: "VIEWER"}, errs.KindBadRequest},
		{"self by email", types.CreateShareRequest{ResourceID: file.ID, Email: owner.Email, Role: "VIEWER"}, errs.KindBadRequest},
		{"past expiry", types.CreateShareRequest{ResourceID: file.ID, UserID: friend.ID, Role: "VIEWER", ExpiresAt: &past}, errs.KindBadRequest},
		{"unknown grantee", types.CreateShareRequest{ResourceID: file.ID, Email: "ghost@example.com", Role: "VIEWER"}, errs.KindNotFound},
		{"missing file", types.CreateShareRequest{ResourceID: "missing", UserID: friend.ID, Role: "VIEWER"}, errs.KindNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateFileShare(ctx, owner.ID, &tc.req)
			require.Error(t, err)
			assert.Equal(t, tc.kind, errs.KindOf(err))
		})
	}

	_, err := svc.CreateFileShare(ctx, friend.ID, &types.CreateShareRequest{ResourceID: file.ID, UserID: owner.ID, Role: "VIEWER"})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	// 文件夹允许 OWNER 角色
	share, err := svc.CreateFolderShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: folder.ID, UserID: friend.ID, Role: "OWNER"})
	require.NoError(t, err)
	assert.Equal(t, "OWNER", share.Role)
}

func TestFileShareExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	now := time.Now().UTC()
	e.deps.Now = func() time.Time { return now }

	svc := service.NewShareServiceWith(e.deps)
	owner := e.user(t, 1000)
	friend := e.user(t, 1000)
	file := e.file(t, owner, *owner.RootFolderID, 1)

	exp := now.Add(time.Hour)

	share, err := svc.CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: file.ID, UserID: friend.ID, Role: "VIEWER", ExpiresAt: &exp})
	require.NoError(t, err)
	require.NotNil(t, share.ExpiresAt)

	_, err = service.NewFileServiceWith(e.deps).Get(ctx, file.ID, friend.ID)
	require.NoError(t, err)

	// 时钟越过过期时间后共享失效
	now = now.Add(2 * time.Hour)

	_, err = service.NewFileServiceWith(e.deps).Get(ctx, file.ID, friend.ID)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	updated, err := svc.UpdateFileShare(ctx, share.ID, owner.ID, &types.UpdateShareRequest{ClearExpiry: true})
	require.NoError(t, err)
	assert.Nil(t, updated.ExpiresAt)

	_, err = service.NewFileServiceWith(e.deps).Get(ctx, file.ID, friend.ID)
	require.NoError(t, err)

	list, err := svc.ListFileShares(ctx, file.ID, owner.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, friend.Email, list[0].User.Email)

	require.NoError(t, svc.RemoveFileShare(ctx, share.ID, owner.ID))
	assert.True(t, errs.Is(svc.RemoveFileShare(ctx, share.ID, owner.ID), errs.KindNotFound))
}
