package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

func TestLinkPasswordAndDownload(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewLinkServiceWith(e.deps)
	owner := e.user(t, 1000)
	other := e.user(t, 1000)
	f := e.file(t, owner, *owner.RootFolderID, 3)

	_, err := svc.Create(ctx, other.ID, &types.CreateLinkRequest{FileID: f.ID})
	assert.True(t, errs.Is(err, errs.KindForbidden))

	link, err := svc.Create(ctx, owner.ID, &types.CreateLinkRequest{FileID: f.ID, Password: "open-sesame"})
	require.NoError(t, err)
	assert.True(t, link.HasPassword)
	assert.False(t, link.AllowDownload)

	pub, err := svc.Get(ctx, link.ID)
	require.NoError(t, err)
	assert.Equal(t, f.Name, pub.FileName)
	assert.Equal(t, int64(3), pub.Size)

	_, err = svc.Access(ctx, link.ID, "wrong")
	assert.True(t, errs.Is(err, errs.KindForbidden))

	res, err := svc.Access(ctx, link.ID, "open-sesame")
	require.NoError(t, err)
	assert.Equal(t, f.ID, res.File.ID)

	_, err = svc.Access(ctx, link.ID, "open-sesame")
	require.NoError(t, err)

	var row model.ShareLink
	require.NoError(t, e.db.Where("id = ?", link.ID).Take(&row).Error)
	assert.Equal(t, int64(2), row.AccessCount)

	_, _, err = svc.Download(ctx, link.ID, "open-sesame")
	assert.True(t, errs.Is(err, errs.KindForbidden))

	dl, err := svc.Create(ctx, owner.ID, &types.CreateLinkRequest{FileID: f.ID, AllowDownload: true})
	require.NoError(t, err)

	got, u, err := svc.Download(ctx, dl.ID, "")
	require.NoError(t, err)
	assert.Equal(t, f.ID, got.ID)
	assert.Contains(t, u, "http://cdn.test/")

	list, err := svc.List(ctx, owner.ID)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.True(t, errs.Is(svc.Delete(ctx, dl.ID, other.ID), errs.KindForbidden))
	require.NoError(t, svc.Delete(ctx, dl.ID, owner.ID))

	// 删除后缓存同步失效
	_, err = svc.Get(ctx, dl.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestLinkExpiry(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	now := time.Now().UTC()
	e.deps.Now = func() time.Time { return now }

	svc := service.NewLinkServiceWith(e.deps)
	owner := e.user(t, 1000)
	f := e.file(t, owner, *owner.RootFolderID, 1)

	past := now.Add(-time.Minute)
	_, err := svc.Create(ctx, owner.ID, &types.CreateLinkRequest{FileID: f.ID, ExpiresAt: &past})
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	exp := now.Add(time.Minute)
	link, err := svc.Create(ctx, owner.ID, &types.CreateLinkRequest{FileID: f.ID, ExpiresAt: &exp})
	require.NoError(t, err)

	_, err = svc.Get(ctx, link.ID)
	require.NoError(t, err)

	now = now.Add(time.Hour)

	_, err = svc.Get(ctx, link.ID)
	assert.True(t, errs.Is(err, errs.KindNotFound))

	_, err = svc.Access(ctx, link.ID, "")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}

func TestLinkGoneWithFile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewLinkServiceWith(e.deps)
	owner := e.user(t, 1000)
	f := e.file(t, owner, *owner.RootFolderID, 1)

	link, err := svc.Create(ctx, owner.ID, &types.CreateLinkRequest{FileID: f.ID})
	require.NoError(t, err)

	_, err = svc.Get(ctx, link.ID)
	require.NoError(t, err)

	require.NoError(t, service.NewFileServiceWith(e.deps).Delete(ctx, f.ID, owner.ID))

	// 缓存仍在，访问时发现链接已删除
	_, err = svc.Access(ctx, link.ID, "")
	assert.True(t, errs.Is(err, errs.KindNotFound))
}
