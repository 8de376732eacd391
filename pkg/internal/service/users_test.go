package service_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

func TestGetOrCreateIdempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewUserServiceWith(e.deps)

	id := &identity.Identity{UserID: "3f2b9c1e-0000-4000-8000-000000000001", Email: "Ana@Example.com", Name: "Ana"}

	first, err := svc.GetOrCreate(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, first.RootFolderID)
	assert.Equal(t, "ana@example.com", first.Email)
	assert.Equal(t, int64(1000), first.StorageQuota)

	second, err := svc.GetOrCreate(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, *first.RootFolderID, *second.RootFolderID)

	var users, roots int64
	require.NoError(t, e.db.Model(&model.User{}).Count(&users).Error)
	require.NoError(t, e.db.Model(&model.Folder{}).Where("owner_id = ?", id.UserID).Count(&roots).Error)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), roots)

	var root model.Folder
	require.NoError(t, e.db.Where("id = ?", *first.RootFolderID).Take(&root).Error)
	assert.Equal(t, model.RootFolderName, root.Name)
	assert.Nil(t, root.ParentID)
}

func TestGetOrCreateHealsMissingRoot(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)

	u := &model.User{ID: "legacy", Email: "legacy@example.com", Name: "legacy"}
	require.NoError(t, e.db.Create(u).Error)

	got, err := service.NewUserServiceWith(e.deps).GetOrCreate(ctx, &identity.Identity{UserID: "legacy"})
	require.NoError(t, err)
	require.NotNil(t, got.RootFolderID)

	_, err = service.NewUserServiceWith(e.deps).GetOrCreate(ctx, nil)
	assert.True(t, errs.Is(err, errs.KindUnauthorized))
}

func TestSignupSignin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewUserServiceWith(e.deps)

	_, err := svc.Signup(ctx, &types.SignupRequest{Email: "bo@example.com", Name: "Bo", Password: "password1", ConfirmPassword: "password2"})
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	u, err := svc.Signup(ctx, &types.SignupRequest{Email: "Bo@Example.com", Name: "Bo", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.NotNil(t, u.RootFolderID)

	_, err = svc.Signup(ctx, &types.SignupRequest{Email: "bo@example.com", Name: "Bo", Password: "password1", ConfirmPassword: "password1"})
	assert.True(t, errs.Is(err, errs.KindConflict))

	got, err := svc.Signin(ctx, &types.SigninRequest{Email: "bo@example.com", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// 邮箱不存在与密码错误返回同一错误
	_, wrongPass := svc.Signin(ctx, &types.SigninRequest{Email: "bo@example.com", Password: "nope"})
	_, noUser := svc.Signin(ctx, &types.SigninRequest{Email: "nobody@example.com", Password: "nope"})
	require.Error(t, wrongPass)
	assert.Equal(t, errs.Public(wrongPass), errs.Public(noUser))
	assert.True(t, errs.Is(noUser, errs.KindUnauthorized))

	token, exp, err := svc.IssueToken(got)
	require.NoError(t, err)
	assert.True(t, exp.After(e.deps.Now()))

	v, err := identity.NewJWTVerifier(e.deps.Auth.JWTSecret, e.deps.Auth.GetJWTTTL())
	require.NoError(t, err)

	id, err := v.Verify(ctx, identity.Credential{Token: token})
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UserID)
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := service.NewUserServiceWith(e.deps)

	u, err := svc.Signup(ctx, &types.SignupRequest{Email: "cy@example.com", Name: "Cy", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)

	_, err = svc.Signup(ctx, &types.SignupRequest{Email: "taken@example.com", Name: "Taken", Password: "password1", ConfirmPassword: "password1"})
	require.NoError(t, err)

	update := func(email, pass, confirm, old string) *types.UpdateProfileRequest {
		return &types.UpdateProfileRequest{
			SignupRequest: types.SignupRequest{Email: email, Name: "Cyrus", Password: pass, ConfirmPassword: confirm},
			OldPassword:   old,
		}
	}

	_, err = svc.UpdateProfile(ctx, u.ID, update("cy@example.com", "password2", "password2", "wrong-pass"))
	assert.True(t, errs.Is(err, errs.KindForbidden))

	_, err = svc.UpdateProfile(ctx, u.ID, update("cy@example.com", "password2", "password3", "password1"))
	assert.True(t, errs.Is(err, errs.KindBadRequest))

	_, err = svc.UpdateProfile(ctx, u.ID, update("Taken@example.com", "password2", "password2", "password1"))
	assert.True(t, errs.Is(err, errs.KindConflict))

	_, err = svc.UpdateProfile(ctx, "missing", update("cy@example.com", "password2", "password2", "password1"))
	assert.True(t, errs.Is(err, errs.KindUnauthorized))

	got, err := svc.UpdateProfile(ctx, u.ID, update("CY2@example.com", "password2", "password2", "password1"))
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.Equal(t, "cy2@example.com", got.Email)
	assert.Equal(t, "Cyrus", got.Name)

	// 旧密码失效，新密码可登录
	_, err = svc.Signin(ctx, &types.SigninRequest{Email: "cy2@example.com", Password: "password1"})
	assert.True(t, errs.Is(err, errs.KindUnauthorized))

	signed, err := svc.Signin(ctx, &types.SigninRequest{Email: "cy2@example.com", Password: "password2"})
	require.NoError(t, err)
	assert.Equal(t, u.ID, signed.ID)

	token, _, err := svc.IssueToken(got)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
}

func TestStorageUsage(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	u := e.user(t, 1000)
	e.file(t, u, *u.RootFolderID, 300)

	usage, err := service.NewUserServiceWith(e.deps).Storage(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(300), usage.Used)
	assert.Equal(t, int64(1000), usage.Quota)
}
