package service_test

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

func TestFileUpdateMeta(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	shares := service.NewShareServiceWith(e.deps)
	owner := e.user(t, 1000)
	viewer := e.user(t, 1000)

	f := e.file(t, owner, *owner.RootFolderID, 10)
	other := e.file(t, owner, *owner.RootFolderID, 10)

	_, err := shares.CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, UserID: viewer.ID, Role: "VIEWER"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, f.ID, viewer.ID, &types.UpdateFileRequest{Name: ptr("x.txt")})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	got, err := svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{
		Name:       ptr("report.txt"),
		Tags:       &[]string{"a", " a ", "b", ""},
		PublicSlug: ptr("report"),
	})
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.Name)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, 2, got.Version)

	_, err = svc.Update(ctx, other.ID, owner.ID, &types.UpdateFileRequest{PublicSlug: ptr("report")})
	assert.True(t, errs.Is(err, errs.KindConflict))

	// 空补丁不改变版本
	same, err := svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2, same.Version)

	got, err = svc.Get(ctx, f.ID, viewer.ID)
	require.NoError(t, err)
	assert.Equal(t, "report.txt", got.Name)
}

func TestFileMove(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	owner := e.user(t, 1000)
	editor := e.user(t, 1000)

	src := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	dst := testutil.NewFolder(t, e.db, owner, *owner.RootFolderID)
	f := e.file(t, owner, src.ID, 10)

	_, err := service.NewShareServiceWith(e.deps).CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, UserID: editor.ID, Role: "EDITOR"})
	require.NoError(t, err)

	// 文件的 EDITOR 没有目标文件夹权限
	_, err = svc.Update(ctx, f.ID, editor.ID, &types.UpdateFileRequest{FolderID: &dst.ID})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	got, err := svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{FolderID: &dst.ID})
	require.NoError(t, err)
	assert.Equal(t, dst.ID, got.FolderID)
}

func TestFileTransfer(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	owner := e.user(t, 1000)
	heir := e.user(t, 1000)
	small := e.user(t, 5)

	f := e.file(t, owner, *owner.RootFolderID, 400)

	_, err := service.NewShareServiceWith(e.deps).CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, UserID: heir.ID, Role: "EDITOR"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, f.ID, heir.ID, &types.UpdateFileRequest{OwnerID: &heir.ID})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{OwnerID: &small.ID})
	assert.True(t, errs.Is(err, errs.KindBadRequest))
	assert.Equal(t, int64(400), e.used(t, owner.ID))
	assert.Zero(t, e.used(t, small.ID))

	_, err = svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{OwnerID: ptr("nobody")})
	assert.True(t, errs.Is(err, errs.KindNotFound))

	got, err := svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{OwnerID: &heir.ID})
	require.NoError(t, err)
	assert.Equal(t, heir.ID, got.OwnerID)
	// 新所有者无权读取原文件夹，移入其根目录
	assert.Equal(t, *heir.RootFolderID, got.FolderID)
	assert.Zero(t, e.used(t, owner.ID))
	assert.Equal(t, int64(400), e.used(t, heir.ID))
	assert.Zero(t, e.count(t, &model.FileShare{}, "file_id = ?", f.ID))

	_, err = svc.Get(ctx, f.ID, owner.ID)
	assert.True(t, errs.Is(err, errs.KindForbidden))
}

func TestFileTransferWithoutRoot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	owner := e.user(t, 1000)
	rootless := e.user(t, 1000)
	orphaned := e.user(t, 1000)

	require.NoError(t, e.db.Model(&model.User{}).Where("id = ?", rootless.ID).Update("root_folder_id", nil).Error)
	require.NoError(t, e.db.Delete(&model.Folder{}, "id = ?", *orphaned.RootFolderID).Error)

	f := e.file(t, owner, *owner.RootFolderID, 300)

	for _, heir := range []*model.User{rootless, orphaned} {
		_, err := svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{OwnerID: &heir.ID})
		assert.True(t, errs.Is(err, errs.KindNotFound), "heir %s: %v", heir.Name, err)
		assert.Zero(t, e.used(t, heir.ID))
	}

	got, err := svc.Get(ctx, f.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, owner.ID, got.OwnerID)
	assert.Equal(t, int64(300), e.used(t, owner.ID))
}

func TestFileUpdateEmptyPatchRequiresAccess(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	owner := e.user(t, 1000)
	stranger := e.user(t, 1000)
	viewer := e.user(t, 1000)

	f := e.file(t, owner, *owner.RootFolderID, 10)

	_, err := service.NewShareServiceWith(e.deps).CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, UserID: viewer.ID, Role: "VIEWER"})
	require.NoError(t, err)

	got, err := svc.Update(ctx, f.ID, stranger.ID, &types.UpdateFileRequest{})
	assert.True(t, errs.Is(err, errs.KindForbidden))
	assert.Nil(t, got)

	_, err = svc.Update(ctx, f.ID, viewer.ID, &types.UpdateFileRequest{})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	got, err = svc.Update(ctx, f.ID, owner.ID, &types.UpdateFileRequest{})
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
}

func TestFileDeleteAndOpen(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	owner := e.user(t, 1000)
	other := e.user(t, 1000)

	f := e.file(t, owner, *owner.RootFolderID, 5)

	rc, meta, err := svc.Open(ctx, f.ID, owner.ID)
	require.NoError(t, err)

	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "xxxxx", string(b))
	assert.Equal(t, f.ID, meta.ID)

	require.True(t, errs.Is(svc.Delete(ctx, f.ID, other.ID), errs.KindForbidden))
	require.NoError(t, svc.Delete(ctx, f.ID, owner.ID))

	assert.Zero(t, e.used(t, owner.ID))
	assert.False(t, e.exists(t, f.StorageKey))

	_, err = svc.Get(ctx, f.ID, owner.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestFileList(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewFileServiceWith(e.deps)
	owner := e.user(t, 1000)
	friend := e.user(t, 1000)

	f := e.file(t, owner, *owner.RootFolderID, 1)
	e.file(t, owner, *owner.RootFolderID, 1)
	e.file(t, friend, *friend.RootFolderID, 1)

	_, err := service.NewShareServiceWith(e.deps).CreateFileShare(ctx, owner.ID, &types.CreateShareRequest{ResourceID: f.ID, Email: friend.Email, Role: "VIEWER"})
	require.NoError(t, err)

	all, err := svc.List(ctx, friend.ID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	with, err := svc.SharedWithMe(ctx, friend.ID)
	require.NoError(t, err)
	require.Len(t, with, 1)
	assert.Equal(t, f.ID, with[0].ID)

	by, err := svc.SharedByMe(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, by, 1)

	inRoot, err := svc.List(ctx, owner.ID, service.MyFilesAlias)
	require.NoError(t, err)
	assert.Len(t, inRoot, 2)
}
