package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/permission"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/queue"
)

// FileService 文件元数据的读取、修改、移动、转移与删除.
type FileService struct {
	d       Deps
	eval    *permission.Evaluator
	folders *FolderService
}

func NewFileService(c context.Context) *FileService {
	return NewFileServiceWith(DepsFromContext(c))
}

func NewFileServiceWith(d Deps) *FileService {
	return &FileService{d: d, eval: d.evaluator(), folders: NewFolderServiceWith(d)}
}

// Get 需要 VIEWER 或文件公开.
func (s *FileService) Get(ctx context.Context, id, userID string) (*types.File, error) {
	f, err := s.readable(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	out := toFile(f)

	return &out, nil
}

// List 指定文件夹时列出该文件夹的文件，否则列出调用方拥有或被共享的文件.
func (s *FileService) List(ctx context.Context, userID, folderID string) ([]types.File, error) {
	if folderID != "" {
		return s.folders.ListFiles(ctx, folderID, userID)
	}

	var out []model.File

	db := s.d.DB.WithContext(ctx)
	if err := db.Where("owner_id = ? OR id IN (?)", userID, activeFileShares(db, userID, s.d.now())).
		Order("created_at DESC").Find(&out).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	return toFiles(out), nil
}

// SharedWithMe 他人共享给调用方的文件.
func (s *FileService) SharedWithMe(ctx context.Context, userID string) ([]types.File, error) {
	var out []model.File

	db := s.d.DB.WithContext(ctx)
	if err := db.Where("id IN (?) AND owner_id <> ?", activeFileShares(db, userID, s.d.now()), userID).
		Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	return toFiles(out), nil
}

// SharedByMe 调用方拥有且至少有一条共享的文件.
func (s *FileService) SharedByMe(ctx context.Context, userID string) ([]types.File, error) {
	var out []model.File

	db := s.d.DB.WithContext(ctx)
	if err := db.Where("owner_id = ? AND id IN (?)", userID,
		db.Model(&model.FileShare{}).Select("file_id").Where("expires_at IS NULL OR expires_at > ?", s.d.now())).
		Order("updated_at DESC").Find(&out).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	return toFiles(out), nil
}

// Update 修改文件.
// 元数据修改需要 EDITOR；移动需要文件与目标文件夹的 EDITOR；转移所有权仅限所有者.
// 每次成功修改 version 加一.
func (s *FileService) Update(ctx context.Context, id, userID string, req *types.UpdateFileRequest) (*types.File, error) {
	var (
		out         model.File
		before      model.File
		moved       bool
		transferred bool
	)

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eval := s.eval.WithDB(tx)

		if err := tx.Where("id = ?", id).Take(&before).Error; err != nil {
			return errs.FromDB(err, "file")
		}

		f := &before

		meta := req.Name != nil || req.Description != nil || req.Tags != nil || req.IsPublic != nil || req.PublicSlug != nil
		move := req.FolderID != nil && *req.FolderID != "" && *req.FolderID != f.FolderID
		transfer := req.OwnerID != nil && *req.OwnerID != "" && *req.OwnerID != f.OwnerID

		if transfer && f.OwnerID != userID {
			return errs.Forbidden("only the owner can transfer this file")
		}

		// 空补丁同样要求编辑权限
		ok, err := eval.CheckFile(ctx, f, userID, model.RoleEditor, false)
		if err != nil {
			return err
		}

		if !ok {
			return errs.Forbidden("insufficient permission on file")
		}

		if !meta && !move && !transfer {
			out = before
			return nil
		}

		updates := map[string]any{"version": gorm.Expr("version + 1")}

		if err := applyFileMeta(ctx, tx, f, req, updates); err != nil {
			return err
		}

		targetFolder := f.FolderID

		if move {
			target, err := s.folders.resolve(ctx, tx, *req.FolderID, userID)
			if err != nil {
				return err
			}

			ok, err := eval.CheckFolder(ctx, target, userID, model.RoleEditor, false)
			if err != nil {
				return err
			}

			if !ok {
				return errs.Forbidden("insufficient permission on target folder")
			}

			targetFolder = target.ID
			moved = true
		}

		if transfer {
			folderID, err := s.transfer(ctx, tx, eval, f, *req.OwnerID, targetFolder)
			if err != nil {
				return err
			}

			moved = moved || folderID != f.FolderID
			targetFolder = folderID
			updates["owner_id"] = *req.OwnerID
			transferred = true
		}

		if targetFolder != f.FolderID {
			updates["folder_id"] = targetFolder
		}

		if err := tx.Model(&model.File{}).Where("id = ?", f.ID).Updates(updates).Error; err != nil {
			return errs.FromDB(err, "public slug")
		}

		return tx.Where("id = ?", f.ID).Take(&out).Error
	})
	if err != nil {
		return nil, errs.FromDB(err, "file")
	}

	if moved {
		queue.Emit(ctx, s.d.Events, queue.TopicFileMoved, queue.FileMovedPayload{
			File: fileRef(&out), FromFolderID: before.FolderID, ActorID: userID,
		})
	}

	if transferred {
		queue.Emit(ctx, s.d.Events, queue.TopicFileTransferred, queue.FileTransferredPayload{
			File: fileRef(&out), FromOwnerID: before.OwnerID, ToOwnerID: out.OwnerID,
		})
	}

	v := toFile(&out)

	return &v, nil
}

func applyFileMeta(ctx context.Context, tx *gorm.DB, f *model.File, req *types.UpdateFileRequest, updates map[string]any) error {
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return errs.BadRequest("file name is required")
		}

		updates["name"] = name
	}

	if req.Description != nil {
		updates["description"] = *req.Description
	}

	if req.Tags != nil {
		// map 更新不经过 serializer，手动编码
		b, err := sonic.Marshal(compactTags(*req.Tags))
		if err != nil {
			return errs.Internal(err)
		}

		updates["tags"] = string(b)
	}

	if req.IsPublic != nil {
		updates["is_public"] = *req.IsPublic
	}

	if req.PublicSlug != nil {
		slug := strings.TrimSpace(*req.PublicSlug)
		if slug == "" {
			updates["public_slug"] = nil
			return nil
		}

		var n int64
		if err := tx.WithContext(ctx).Model(&model.File{}).Where("public_slug = ? AND id <> ?", slug, f.ID).Count(&n).Error; err != nil {
			return errs.FromDB(err, "file")
		}

		if n > 0 {
			return errs.Conflict("public slug already in use")
		}

		updates["public_slug"] = slug
	}

	return nil
}

// transfer 在 tx 内移动配额，返回文件最终所在的文件夹.
// 新所有者对目标文件夹没有读取权限时，文件移入新所有者的根目录.
func (s *FileService) transfer(ctx context.Context, tx *gorm.DB, eval *permission.Evaluator, f *model.File, newOwnerID, folderID string) (string, error) {
	var owner model.User
	if err := tx.WithContext(ctx).Where("id = ?", newOwnerID).Take(&owner).Error; err != nil {
		return "", errs.FromDB(err, "user")
	}

	if err := quota.Release(ctx, tx, f.OwnerID, f.Size); err != nil {
		return "", err
	}

	if err := quota.Reserve(ctx, tx, owner.ID, f.Size); err != nil {
		if quota.IsExceeded(err) {
			return "", errs.BadRequest("new owner does not have enough storage")
		}

		return "", err
	}

	// 新所有者不再需要指向自己的共享
	if err := tx.WithContext(ctx).Where("file_id = ? AND user_id = ?", f.ID, owner.ID).Delete(&model.FileShare{}).Error; err != nil {
		return "", errs.FromDB(err, "file share")
	}

	ok, err := eval.HasFolderPermission(ctx, folderID, owner.ID, model.RoleViewer)
	if err != nil {
		return "", err
	}

	if ok {
		return folderID, nil
	}

	if owner.RootFolderID == nil {
		return "", errs.NotFound("new owner's root folder not found")
	}

	var n int64
	if err := tx.WithContext(ctx).Model(&model.Folder{}).Where("id = ?", *owner.RootFolderID).Count(&n).Error; err != nil {
		return "", errs.FromDB(err, "folder")
	}

	if n == 0 {
		return "", errs.NotFound("new owner's root folder not found")
	}

	return *owner.RootFolderID, nil
}

// Delete 仅所有者；提交后尽力删除对象.
func (s *FileService) Delete(ctx context.Context, id, userID string) error {
	var f model.File

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).Take(&f).Error; err != nil {
			return errs.FromDB(err, "file")
		}

		if f.OwnerID != userID {
			return errs.Forbidden("only the owner can delete this file")
		}

		if err := tx.Where("file_id = ?", f.ID).Delete(&model.FileShare{}).Error; err != nil {
			return errs.FromDB(err, "file share")
		}

		if err := tx.Where("file_id = ?", f.ID).Delete(&model.ShareLink{}).Error; err != nil {
			return errs.FromDB(err, "share link")
		}

		if err := tx.Delete(&model.File{}, "id = ?", f.ID).Error; err != nil {
			return errs.FromDB(err, "file")
		}

		return quota.Release(ctx, tx, f.OwnerID, f.Size)
	})
	if err != nil {
		return errs.FromDB(err, "file")
	}

	s.d.deleteBlobs(ctx, "file_delete", []blobRef{{Key: f.StorageKey, ObjectID: f.ObjectID}})

	queue.Emit(ctx, s.d.Events, queue.TopicFileDeleted, queue.FileDeletedPayload{File: fileRef(&f), ActorID: userID})

	return nil
}

// Open 打开文件内容，需要 VIEWER 或文件公开，调用方负责关闭.
func (s *FileService) Open(ctx context.Context, id, userID string) (io.ReadCloser, *model.File, error) {
	f, err := s.readable(ctx, id, userID)
	if err != nil {
		return nil, nil, err
	}

	rc, err := openBlob(ctx, s.d.Blob, f)
	if err != nil {
		return nil, nil, err
	}

	return rc, f, nil
}

func (s *FileService) readable(ctx context.Context, id, userID string) (*model.File, error) {
	var f model.File
	if err := s.d.DB.WithContext(ctx).Where("id = ?", id).Take(&f).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	ok, err := s.eval.CheckFile(ctx, &f, userID, model.RoleViewer, true)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, denied(userID, "file")
	}

	return &f, nil
}

func openBlob(ctx context.Context, store blob.Store, f *model.File) (io.ReadCloser, error) {
	rc, _, err := store.Open(ctx, f.StorageKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, errs.NotFound("file content not found")
	}

	if err != nil {
		return nil, blobErr(err)
	}

	return rc, nil
}

// blobErr 保留 blob 层已分类的错误，其余视为内部错误.
func blobErr(err error) error {
	var e *errs.Error
	if errors.As(err, &e) {
		return err
	}

	return errs.Internal(err)
}

// activeFileShares 子查询：userID 未过期共享的文件 ID.
func activeFileShares(db *gorm.DB, userID string, now time.Time) *gorm.DB {
	return db.Model(&model.FileShare{}).Select("file_id").
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now)
}

func compactTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))

	for _, t := range in {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}

		seen[t] = true
		out = append(out, t)
	}

	return out
}
