package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/queue"
)

// RootProvisioner 在创建用户的事务内创建根目录并回写 root_folder_id.
type RootProvisioner func(ctx context.Context, tx *gorm.DB, user *model.User) (*model.Folder, error)

var errBadCredentials = errs.Unauthorized("invalid email or password")

// UserService 用户的获取或创建、本地注册与登录.
type UserService struct {
	d         Deps
	provision RootProvisioner
}

func NewUserService(c context.Context) *UserService {
	return NewUserServiceWith(DepsFromContext(c))
}

// NewUserServiceWith 使用给定依赖，根目录由 FolderService.ProvisionRoot 创建.
func NewUserServiceWith(d Deps) *UserService {
	return &UserService{d: d, provision: NewFolderServiceWith(d).ProvisionRoot}
}

// WithProvisioner 替换根目录创建逻辑.
func (s *UserService) WithProvisioner(p RootProvisioner) *UserService {
	return &UserService{d: s.d, provision: p}
}

// GetOrCreate 以外部身份 ID 查找用户，不存在时创建用户与根目录.
// 重复调用只产生一个用户与一个根目录.
func (s *UserService) GetOrCreate(ctx context.Context, id *identity.Identity) (*model.User, error) {
	if id == nil || id.UserID == "" {
		return nil, errs.Unauthorized("missing identity")
	}

	u, err := s.find(ctx, id.UserID)
	if err == nil {
		if u.RootFolderID == nil {
			if err := s.healRoot(ctx, u); err != nil {
				return nil, err
			}
		}

		return u, nil
	}

	if !errs.Is(err, errs.KindNotFound) {
		return nil, err
	}

	u = &model.User{
		ID:           id.UserID,
		Email:        strings.ToLower(id.Email),
		Name:         id.Name,
		StorageQuota: s.d.Quota.DefaultBytes,
	}

	err = s.create(ctx, u, "oracle")
	if errs.Is(err, errs.KindConflict) {
		// 并发的首次请求已经创建
		if existing, ferr := s.find(ctx, id.UserID); ferr == nil {
			return existing, nil
		}

		return nil, errs.Conflict("email already registered")
	}

	if err != nil {
		return nil, err
	}

	return u, nil
}

// Signup 本地注册.
func (s *UserService) Signup(ctx context.Context, req *types.SignupRequest) (*model.User, error) {
	if req.Password != req.ConfirmPassword {
		return nil, errs.BadRequest("passwords do not match")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	var n int64
	if err := s.d.DB.WithContext(ctx).Model(&model.User{}).Where("email = ?", email).Count(&n).Error; err != nil {
		return nil, errs.FromDB(err, "user")
	}

	if n > 0 {
		return nil, errs.Conflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal(err)
	}

	u := &model.User{
		Email:        email,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: string(hash),
		StorageQuota: s.d.Quota.DefaultBytes,
	}

	if err := s.create(ctx, u, "signup"); err != nil {
		if errs.Is(err, errs.KindConflict) {
			return nil, errs.Conflict("email already registered")
		}

		return nil, err
	}

	return u, nil
}

// Signin 校验本地密码.
func (s *UserService) Signin(ctx context.Context, req *types.SigninRequest) (*model.User, error) {
	var u model.User

	err := s.d.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email))).Take(&u).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errBadCredentials
	}

	if err != nil {
		return nil, errs.FromDB(err, "user")
	}

	if u.PasswordHash == "" {
		return nil, errBadCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errBadCredentials
	}

	return &u, nil
}

// UpdateProfile 校验旧密码后更新邮箱、名称与密码.
func (s *UserService) UpdateProfile(ctx context.Context, userID string, req *types.UpdateProfileRequest) (*model.User, error) {
	u, err := s.find(ctx, userID)
	if errs.Is(err, errs.KindNotFound) {
		return nil, errs.Unauthorized("user not found")
	}

	if err != nil {
		return nil, err
	}

	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(req.OldPassword)) != nil {
		return nil, errs.Forbidden("invalid credentials")
	}

	if req.Password != req.ConfirmPassword {
		return nil, errs.BadRequest("passwords do not match")
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	if email != u.Email {
		var n int64
		if err := s.d.DB.WithContext(ctx).Model(&model.User{}).
			Where("email = ? AND id <> ?", email, u.ID).Count(&n).Error; err != nil {
			return nil, errs.FromDB(err, "user")
		}

		if n > 0 {
			return nil, errs.Conflict("email already registered")
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, errs.Internal(err)
	}

	updates := map[string]any{
		"email":         email,
		"name":          strings.TrimSpace(req.Name),
		"password_hash": string(hash),
	}

	if err := s.d.DB.WithContext(ctx).Model(&model.User{}).Where("id = ?", u.ID).Updates(updates).Error; err != nil {
		err = errs.FromDB(err, "user")
		if errs.Is(err, errs.KindConflict) {
			return nil, errs.Conflict("email already registered")
		}

		return nil, err
	}

	return s.find(ctx, u.ID)
}

// IssueToken 为用户签发本地令牌.
func (s *UserService) IssueToken(u *model.User) (string, time.Time, error) {
	j, err := identity.NewJWTVerifier(s.d.Auth.JWTSecret, s.d.Auth.GetJWTTTL())
	if err != nil {
		return "", time.Time{}, errs.Internal(err)
	}

	now := s.d.now()

	token, err := j.Issue(&identity.Identity{UserID: u.ID, Email: u.Email, Name: u.Name}, now)
	if err != nil {
		return "", time.Time{}, errs.Internal(err)
	}

	return token, now.Add(j.TTL()), nil
}

// Get 返回用户信息.
func (s *UserService) Get(ctx context.Context, userID string) (*types.User, error) {
	u, err := s.find(ctx, userID)
	if err != nil {
		return nil, err
	}

	return toUser(u), nil
}

// FindByEmail 按邮箱查找.
func (s *UserService) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.d.DB.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Take(&u).Error; err != nil {
		return nil, errs.FromDB(err, "user")
	}

	return &u, nil
}

// Storage 返回用量与配额.
func (s *UserService) Storage(ctx context.Context, userID string) (*types.StorageUsage, error) {
	used, limit, err := quota.Usage(ctx, s.d.DB, userID)
	if err != nil {
		return nil, err
	}

	return &types.StorageUsage{Used: used, Quota: limit}, nil
}

func (s *UserService) find(ctx context.Context, id string) (*model.User, error) {
	var u model.User
	if err := s.d.DB.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, errs.FromDB(err, "user")
	}

	return &u, nil
}

func (s *UserService) create(ctx context.Context, u *model.User, source string) error {
	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(u).Error; err != nil {
			return errs.FromDB(err, "user")
		}

		_, err := s.provision(ctx, tx, u)

		return err
	})
	if err != nil {
		return err
	}

	root := ""
	if u.RootFolderID != nil {
		root = *u.RootFolderID
	}

	queue.Emit(ctx, s.d.Events, queue.TopicUserProvisioned, queue.UserProvisionedPayload{
		UserID:       u.ID,
		Email:        u.Email,
		RootFolderID: root,
		Source:       source,
	})

	return nil
}

// healRoot 为缺少根目录的历史用户补建.
func (s *UserService) healRoot(ctx context.Context, u *model.User) error {
	return s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 事务内再次确认，避免重复补建
		var cur model.User
		if err := tx.Select("id", "root_folder_id").Where("id = ?", u.ID).Take(&cur).Error; err != nil {
			return errs.FromDB(err, "user")
		}

		if cur.RootFolderID != nil {
			u.RootFolderID = cur.RootFolderID
			return nil
		}

		_, err := s.provision(ctx, tx, u)

		return err
	})
}
