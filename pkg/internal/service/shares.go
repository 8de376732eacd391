package service

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/permission"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/queue"
)

var errDuplicateShare = errs.Conflict("resource already shared with this user")

// ShareService 文件夹与文件共享的授予、修改与撤销，所有操作仅限资源的当前所有者.
type ShareService struct {
	d Deps
}

func NewShareService(c context.Context) *ShareService {
	return NewShareServiceWith(DepsFromContext(c))
}

func NewShareServiceWith(d Deps) *ShareService {
	return &ShareService{d: d}
}

// CreateFolderShare 授予文件夹共享，角色为 OWNER、EDITOR 或 VIEWER.
func (s *ShareService) CreateFolderShare(ctx context.Context, ownerID string, req *types.CreateShareRequest) (*types.Share, error) {
	db := s.d.DB.WithContext(ctx)

	var folder model.Folder
	if err := db.Where("id = ?", req.ResourceID).Take(&folder).Error; err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	if folder.OwnerID != ownerID {
		return nil, errs.Forbidden("only the owner can share this folder")
	}

	grantee, role, err := s.validateGrant(ctx, permission.KindFolder, ownerID, req)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := db.Model(&model.FolderShare{}).Where("folder_id = ? AND user_id = ?", folder.ID, grantee.ID).Count(&n).Error; err != nil {
		return nil, errs.FromDB(err, "folder share")
	}

	if n > 0 {
		return nil, errDuplicateShare
	}

	share := &model.FolderShare{
		FolderID:           folder.ID,
		UserID:             grantee.ID,
		Role:               role,
		OrganizationDomain: req.OrganizationDomain,
		ExpiresAt:          utcPtr(req.ExpiresAt),
	}
	if err := db.Create(share).Error; err != nil {
		return nil, conflictOr(err, "folder share")
	}

	v := folderShareView(share, grantee)
	s.emit(ctx, queue.TopicShareGranted, &v, ownerID)

	return &v, nil
}

// CreateFileShare 授予文件共享，角色为 EDITOR 或 VIEWER.
func (s *ShareService) CreateFileShare(ctx context.Context, ownerID string, req *types.CreateShareRequest) (*types.Share, error) {
	db := s.d.DB.WithContext(ctx)

	var file model.File
	if err := db.Where("id = ?", req.ResourceID).Take(&file).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	if file.OwnerID != ownerID {
		return nil, errs.Forbidden("only the owner can share this file")
	}

	grantee, role, err := s.validateGrant(ctx, permission.KindFile, ownerID, req)
	if err != nil {
		return nil, err
	}

	var n int64
	if err := db.Model(&model.FileShare{}).Where("file_id = ? AND user_id = ?", file.ID, grantee.ID).Count(&n).Error; err != nil {
		return nil, errs.FromDB(err, "file share")
	}

	if n > 0 {
		return nil, errDuplicateShare
	}

	share := &model.FileShare{
		FileID:             file.ID,
		UserID:             grantee.ID,
		Role:               role,
		OrganizationDomain: req.OrganizationDomain,
		ExpiresAt:          utcPtr(req.ExpiresAt),
	}
	if err := db.Create(share).Error; err != nil {
		return nil, conflictOr(err, "file share")
	}

	v := fileShareView(share, grantee)
	s.emit(ctx, queue.TopicShareGranted, &v, ownerID)

	return &v, nil
}

// ListFolderShares 仅所有者，最新的在前.
func (s *ShareService) ListFolderShares(ctx context.Context, folderID, userID string) ([]types.Share, error) {
	db := s.d.DB.WithContext(ctx)

	var folder model.Folder
	if err := db.Select("id", "owner_id").Where("id = ?", folderID).Take(&folder).Error; err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	if folder.OwnerID != userID {
		return nil, errs.Forbidden("only the owner can view shares")
	}

	return folderSharesOf(ctx, db, folder.ID)
}

// ListFileShares 仅所有者，最新的在前.
func (s *ShareService) ListFileShares(ctx context.Context, fileID, userID string) ([]types.Share, error) {
	db := s.d.DB.WithContext(ctx)

	var file model.File
	if err := db.Select("id", "owner_id").Where("id = ?", fileID).Take(&file).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	if file.OwnerID != userID {
		return nil, errs.Forbidden("only the owner can view shares")
	}

	var rows []model.FileShare
	if err := db.Where("file_id = ?", file.ID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errs.FromDB(err, "file share")
	}

	users, err := granteesOf(ctx, db, len(rows), func(i int) string { return rows[i].UserID })
	if err != nil {
		return nil, err
	}

	out := make([]types.Share, 0, len(rows))
	for i := range rows {
		out = append(out, fileShareView(&rows[i], users[rows[i].UserID]))
	}

	return out, nil
}

// UpdateFolderShare 每次调用都重新校验文件夹所有者.
func (s *ShareService) UpdateFolderShare(ctx context.Context, shareID, userID string, req *types.UpdateShareRequest) (*types.Share, error) {
	var out types.Share

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var share model.FolderShare
		if err := tx.Where("id = ?", shareID).Take(&share).Error; err != nil {
			return errs.FromDB(err, "share")
		}

		if err := requireFolderOwner(ctx, tx, share.FolderID, userID); err != nil {
			return err
		}

		updates, err := s.shareUpdates(permission.KindFolder, req)
		if err != nil {
			return err
		}

		if len(updates) > 0 {
			if err := tx.Model(&share).Updates(updates).Error; err != nil {
				return errs.FromDB(err, "share")
			}
		}

		if err := tx.Where("id = ?", shareID).Take(&share).Error; err != nil {
			return errs.FromDB(err, "share")
		}

		var grantee model.User
		_ = tx.Select("id", "email", "name").Where("id = ?", share.UserID).Take(&grantee).Error

		out = folderShareView(&share, &grantee)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// UpdateFileShare 每次调用都重新校验文件所有者.
func (s *ShareService) UpdateFileShare(ctx context.Context, shareID, userID string, req *types.UpdateShareRequest) (*types.Share, error) {
	var out types.Share

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var share model.FileShare
		if err := tx.Where("id = ?", shareID).Take(&share).Error; err != nil {
			return errs.FromDB(err, "share")
		}

		if err := requireFileOwner(ctx, tx, share.FileID, userID); err != nil {
			return err
		}

		updates, err := s.shareUpdates(permission.KindFile, req)
		if err != nil {
			return err
		}

		if len(updates) > 0 {
			if err := tx.Model(&share).Updates(updates).Error; err != nil {
				return errs.FromDB(err, "share")
			}
		}

		if err := tx.Where("id = ?", shareID).Take(&share).Error; err != nil {
			return errs.FromDB(err, "share")
		}

		var grantee model.User
		_ = tx.Select("id", "email", "name").Where("id = ?", share.UserID).Take(&grantee).Error

		out = fileShareView(&share, &grantee)

		return nil
	})
	if err != nil {
		return nil, err
	}

	return &out, nil
}

// RemoveFolderShare 撤销文件夹共享.
func (s *ShareService) RemoveFolderShare(ctx context.Context, shareID, userID string) error {
	var share model.FolderShare

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", shareID).Take(&share).Error; err != nil {
			return errs.FromDB(err, "share")
		}

		if err := requireFolderOwner(ctx, tx, share.FolderID, userID); err != nil {
			return err
		}

		return errs.FromDB(tx.Delete(&model.FolderShare{}, "id = ?", share.ID).Error, "share")
	})
	if err != nil {
		return err
	}

	v := folderShareView(&share, &model.User{ID: share.UserID})
	s.emit(ctx, queue.TopicShareRevoked, &v, userID)

	return nil
}

// RemoveFileShare 撤销文件共享.
func (s *ShareService) RemoveFileShare(ctx context.Context, shareID, userID string) error {
	var share model.FileShare

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", shareID).Take(&share).Error; err != nil {
			return errs.FromDB(err, "share")
		}

		if err := requireFileOwner(ctx, tx, share.FileID, userID); err != nil {
			return err
		}

		return errs.FromDB(tx.Delete(&model.FileShare{}, "id = ?", share.ID).Error, "share")
	})
	if err != nil {
		return err
	}

	v := fileShareView(&share, &model.User{ID: share.UserID})
	s.emit(ctx, queue.TopicShareRevoked, &v, userID)

	return nil
}

// validateGrant 校验角色、被授予者与过期时间.
func (s *ShareService) validateGrant(ctx context.Context, kind permission.Kind, ownerID string, req *types.CreateShareRequest) (*model.User, model.Role, error) {
	role := model.Role(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !permission.ValidRole(kind, role) {
		return nil, "", errs.BadRequest("invalid role for " + string(kind))
	}

	if req.UserID == "" && req.Email == "" {
		return nil, "", errs.BadRequest("user_id or email is required")
	}

	if req.UserID == ownerID {
		return nil, "", errs.BadRequest("cannot share with yourself")
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.d.now()) {
		return nil, "", errs.BadRequest("expiration must be in the future")
	}

	q := s.d.DB.WithContext(ctx).Select("id", "email", "name")
	if req.UserID != "" {
		q = q.Where("id = ?", req.UserID)
	} else {
		q = q.Where("email = ?", strings.ToLower(strings.TrimSpace(req.Email)))
	}

	var grantee model.User
	if err := q.Take(&grantee).Error; err != nil {
		return nil, "", errs.FromDB(err, "user")
	}

	if grantee.ID == ownerID {
		return nil, "", errs.BadRequest("cannot share with yourself")
	}

	return &grantee, role, nil
}

func (s *ShareService) shareUpdates(kind permission.Kind, req *types.UpdateShareRequest) (map[string]any, error) {
	updates := map[string]any{}

	if req.Role != nil {
		role := model.Role(strings.ToUpper(strings.TrimSpace(*req.Role)))
		if !permission.ValidRole(kind, role) {
			return nil, errs.BadRequest("invalid role for " + string(kind))
		}

		updates["role"] = role
	}

	switch {
	case req.ClearExpiry:
		updates["expires_at"] = nil
	case req.ExpiresAt != nil:
		if !req.ExpiresAt.After(s.d.now()) {
			return nil, errs.BadRequest("expiration must be in the future")
		}

		updates["expires_at"] = req.ExpiresAt.UTC()
	}

	return updates, nil
}

func (s *ShareService) emit(ctx context.Context, topic string, v *types.Share, ownerID string) {
	queue.Emit(ctx, s.d.Events, topic, queue.SharePayload{
		ShareID:      v.ID,
		ResourceType: string(v.ResourceType),
		ResourceID:   v.ResourceID,
		OwnerID:      ownerID,
		UserID:       v.User.ID,
		Role:         v.Role,
		ExpiresAt:    v.ExpiresAt,
	})
}

func requireFolderOwner(ctx context.Context, tx *gorm.DB, folderID, userID string) error {
	var f model.Folder
	if err := tx.WithContext(ctx).Select("id", "owner_id").Where("id = ?", folderID).Take(&f).Error; err != nil {
		return errs.FromDB(err, "folder")
	}

	if f.OwnerID != userID {
		return errs.Forbidden("only the owner can manage shares")
	}

	return nil
}

func requireFileOwner(ctx context.Context, tx *gorm.DB, fileID, userID string) error {
	var f model.File
	if err := tx.WithContext(ctx).Select("id", "owner_id").Where("id = ?", fileID).Take(&f).Error; err != nil {
		return errs.FromDB(err, "file")
	}

	if f.OwnerID != userID {
		return errs.Forbidden("only the owner can manage shares")
	}

	return nil
}

// folderSharesOf 文件夹的全部共享，附带被授予者信息.
func folderSharesOf(ctx context.Context, db *gorm.DB, folderID string) ([]types.Share, error) {
	var rows []model.FolderShare
	if err := db.WithContext(ctx).Where("folder_id = ?", folderID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errs.FromDB(err, "folder share")
	}

	users, err := granteesOf(ctx, db, len(rows), func(i int) string { return rows[i].UserID })
	if err != nil {
		return nil, err
	}

	out := make([]types.Share, 0, len(rows))
	for i := range rows {
		out = append(out, folderShareView(&rows[i], users[rows[i].UserID]))
	}

	return out, nil
}

// granteesOf 一次查询加载被授予者.
func granteesOf(ctx context.Context, db *gorm.DB, n int, idAt func(i int) string) (map[string]*model.User, error) {
	ids := make([]string, 0, n)
	for i := range n {
		ids = append(ids, idAt(i))
	}

	out := make(map[string]*model.User, n)

	err := chunked(ids, func(part []string) error {
		var users []model.User
		if err := db.WithContext(ctx).Select("id", "email", "name").Where("id IN ?", part).Find(&users).Error; err != nil {
			return errs.FromDB(err, "user")
		}

		for i := range users {
			out[users[i].ID] = &users[i]
		}

		return nil
	})

	return out, err
}

// conflictOr 唯一索引冲突统一为重复共享.
func conflictOr(err error, what string) error {
	err = errs.FromDB(err, what)
	if errs.Is(err, errs.KindConflict) {
		return errDuplicateShare
	}

	return err
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	u := t.UTC()

	return &u
}
