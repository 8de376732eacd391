package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

func TestFolderCreateAndGet(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFolderServiceWith(e.deps)
	owner := e.user(t, 1000)
	viewer := e.user(t, 1000)

	_, err := svc.Create(ctx, owner.ID, &types.CreateFolderRequest{Name: "  "})
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	docs, err := svc.Create(ctx, owner.ID, &types.CreateFolderRequest{Name: "Docs", ParentID: ptr(service.MyFilesAlias)})
	require.NoError(t, err)
	require.NotNil(t, docs.ParentID)
	assert.Equal(t, *owner.RootFolderID, *docs.ParentID)

	e.file(t, owner, docs.ID, 10)

	_, err = service.NewShareServiceWith(e.deps).CreateFolderShare(ctx, owner.ID, &types.CreateShareRequest{
		ResourceID: docs.ID, UserID: viewer.ID, Role: "viewer",
	})
	require.NoError(t, err)

	// VIEWER 不能在共享文件夹下创建
	_, err = svc.Create(ctx, viewer.ID, &types.CreateFolderRequest{Name: "x", ParentID: &docs.ID})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	detail, err := svc.Get(ctx, docs.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, detail.Owner.ID)
	require.NotNil(t, detail.Parent)
	assert.Equal(t, model.RootFolderName, detail.Parent.Name)
	assert.Len(t, detail.Files, 1)
	assert.Len(t, detail.Shares, 1)

	// 非所有者看不到共享列表
	detail, err = svc.Get(ctx, docs.ID, viewer.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Shares)

	mine, err := svc.Get(ctx, service.MyFilesAlias, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, *owner.RootFolderID, mine.ID)
	assert.Len(t, mine.Subfolders, 1)

	shared, err := svc.SharedWithMe(ctx, viewer.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, docs.ID, shared[0].ID)

	byMe, err := svc.SharedByMe(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, byMe, 1)
}

func TestFolderGetAccess(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFolderServiceWith(e.deps)
	owner := e.user(t, 1000)
	stranger := e.user(t, 1000)

	f := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)

	_, err := svc.Get(ctx, f.ID, stranger.ID)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	// 匿名访问非公开资源表现为不存在
	_, err = svc.Get(ctx, f.ID, "")
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = svc.Update(ctx, f.ID, owner.ID, &types.UpdateFolderRequest{IsPublic: ptr(true)})
	require.NoError(t, err)

	got, err := svc.Get(ctx, f.ID, "")
	require.NoError(t, err)
	assert.True(t, got.IsPublic)

	_, err = svc.Get(ctx, "missing", owner.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestFolderUpdatePermissions(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFolderServiceWith(e.deps)
	shares := service.NewShareServiceWith(e.deps)
	owner := e.user(t, 1000)
	viewer := e.user(t, 1000)
	editor := e.user(t, 1000)

	f := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)

	for user, role := range map[string]string{viewer.ID: "VIEWER", editor.ID: "EDITOR"} {
		_, err := shares.CreateFolderShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, UserID: user, Role: role})
		require.NoError(t, err)
	}

	_, err := svc.Update(ctx, f.ID, viewer.ID, &types.UpdateFolderRequest{Name: ptr("Renamed")})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	got, err := svc.Update(ctx, f.ID, editor.ID, &types.UpdateFolderRequest{Name: ptr("Renamed"), Color: ptr("#ff0000")})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "#ff0000", got.Color)

	// 移到顶层只有所有者可以
	_, err = svc.Update(ctx, f.ID, editor.ID, &types.UpdateFolderRequest{ParentID: ptr("")})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	got, err = svc.Update(ctx, f.ID, owner.ID, &types.UpdateFolderRequest{ParentID: ptr("")})
	require.NoError(t, err)
	assert.Nil(t, got.ParentID)
}

func TestFolderReparentCycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFolderServiceWith(e.deps)
	owner := e.user(t, 1000)

	a := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	b := testutil.NewFolder(t, e.db, owner, a.ID)
	c := testutil.NewFolder(t, e.db, owner, b.ID)

	_, err := svc.Update(ctx, a.ID, owner.ID, &types.UpdateFolderRequest{ParentID: &c.ID})
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	_, err = svc.Update(ctx, a.ID, owner.ID, &types.UpdateFolderRequest{ParentID: &a.ID})
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	_, err = svc.Update(ctx, *owner.RootFolderID, owner.ID, &types.UpdateFolderRequest{ParentID: &a.ID})
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	got, err := svc.Update(ctx, c.ID, owner.ID, &types.UpdateFolderRequest{ParentID: &a.ID})
	require.NoError(t, err)
	assert.Equal(t, a.ID, *got.ParentID)
}

func TestFolderDelete(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFolderServiceWith(e.deps)
	owner := e.user(t, 1000)
	friend := e.user(t, 1000)

	top := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	child := testutil.NewFolder(t, e.db, owner, top.ID)
	f1 := e.file(t, owner, top.ID, 100)
	f2 := e.file(t, owner, child.ID, 200)
	keep := e.file(t, owner, *owner.RootFolderID, 50)

	_, err := service.NewShareServiceWith(e.deps).CreateFolderShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: child.ID, UserID: friend.ID, Role: "EDITOR"})
	require.NoError(t, err)

	_, err = service.NewShareServiceWith(e.deps).CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f1.ID, UserID: friend.ID, Role: "VIEWER"})
	require.NoError(t, err)

	_, err = service.NewLinkServiceWith(e.deps).Create(ctx, owner.ID, &types.CreateLinkRequest{FileID: f2.ID})
	require.NoError(t, err)

	_, err = svc.Delete(ctx, top.ID, owner.ID, false)
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	_, err = svc.Delete(ctx, top.ID, friend.ID, true)
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = svc.Delete(ctx, *owner.RootFolderID, owner.ID, true)
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	res, err := svc.Delete(ctx, top.ID, owner.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Folders)
	assert.Equal(t, 2, res.Files)
	assert.Equal(t, int64(300), res.ReleasedSize)

	assert.Equal(t, int64(50), e.used(t, owner.ID))
	assert.Zero(t, e.count(t, &model.Folder{}, "id IN ?", []string{top.ID, child.ID}))
	assert.Zero(t, e.count(t, &model.FolderShare{}, "1 = 1"))
	assert.Zero(t, e.count(t, &model.FileShare{}, "1 = 1"))
	assert.Zero(t, e.count(t, &model.ShareLink{}, "1 = 1"))
	assert.False(t, e.exists(t, f1.StorageKey))
	assert.False(t, e.exists(t, f2.StorageKey))
	assert.True(t, e.exists(t, keep.StorageKey))

	empty := testutil.NewFolder(t, e.db, owner, "")
	res, err = svc.Delete(ctx, empty.ID, owner.ID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Folders)
}

func TestFolderList(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFolderServiceWith(e.deps)
	owner := e.user(t, 1000)
	other := e.user(t, 1000)

	f := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	testutil.NewFolder(t, e.db, other, *other.RootFolderID)

	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	e.file(t, owner, f.ID, 1)

	files, err := svc.ListFiles(ctx, f.ID, owner.ID)
	require.NoError(t, err)
	assert.Len(t, files, 1)

	_, err = svc.ListFiles(ctx, f.ID, other.ID)
	assert.True(t, errs.Is(err, errs.KindForbidden))
}
