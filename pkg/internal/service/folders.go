package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/permission"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	"github.com/yeisme/cloudvault/pkg/queue"
)

// maxTreeDepth 祖先链遍历上限，数据异常时避免死循环.
const maxTreeDepth = 1024

// FolderService 文件夹的增删改查与递归删除.
type FolderService struct {
	d    Deps
	eval *permission.Evaluator
}

func NewFolderService(c context.Context) *FolderService {
	return NewFolderServiceWith(DepsFromContext(c))
}

func NewFolderServiceWith(d Deps) *FolderService {
	return &FolderService{d: d, eval: d.evaluator()}
}

// ProvisionRoot 在 tx 内创建根目录 "My Files" 并回写 root_folder_id.
func (s *FolderService) ProvisionRoot(ctx context.Context, tx *gorm.DB, user *model.User) (*model.Folder, error) {
	root := &model.Folder{Name: model.RootFolderName, OwnerID: user.ID}
	if err := tx.WithContext(ctx).Create(root).Error; err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	if err := tx.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).
		Update("root_folder_id", root.ID).Error; err != nil {
		return nil, errs.FromDB(err, "user")
	}

	user.RootFolderID = &root.ID

	return root, nil
}

// Create 创建文件夹，指定父目录时需要父目录的 EDITOR 权限.
func (s *FolderService) Create(ctx context.Context, userID string, req *types.CreateFolderRequest) (*types.Folder, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, errs.BadRequest("folder name is required")
	}

	f := &model.Folder{
		Name:        name,
		OwnerID:     userID,
		IsPublic:    req.IsPublic,
		Color:       req.Color,
		Description: req.Description,
	}

	if req.ParentID != nil && *req.ParentID != "" {
		parent, err := s.resolve(ctx, s.d.DB, *req.ParentID, userID)
		if err != nil {
			return nil, err
		}

		ok, err := s.eval.CheckFolder(ctx, parent, userID, model.RoleEditor, false)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, errs.Forbidden("insufficient permission on parent folder")
		}

		f.ParentID = &parent.ID
	}

	if err := s.d.DB.WithContext(ctx).Create(f).Error; err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	queue.Emit(ctx, s.d.Events, queue.TopicFolderCreated, queue.FolderCreatedPayload{
		FolderID: f.ID, Name: f.Name, OwnerID: f.OwnerID, ParentID: f.ParentID,
	})

	out := toFolder(f)

	return &out, nil
}

// Get 返回文件夹详情，需要 VIEWER 或文件夹公开；myFiles 指代调用方根目录.
func (s *FolderService) Get(ctx context.Context, id, userID string) (*types.FolderDetail, error) {
	f, err := s.readable(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	db := s.d.DB.WithContext(ctx)
	out := &types.FolderDetail{Folder: toFolder(f)}

	var owner model.User
	if err := db.Select("id", "email", "name").Where("id = ?", f.OwnerID).Take(&owner).Error; err == nil {
		out.Owner = toUserSummary(&owner)
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.FromDB(err, "user")
	}

	if f.ParentID != nil {
		var parent model.Folder
		if err := db.Select("id", "name").Where("id = ?", *f.ParentID).Take(&parent).Error; err == nil {
			out.Parent = &types.FolderSummary{ID: parent.ID, Name: parent.Name}
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.FromDB(err, "folder")
		}
	}

	var subs []model.Folder
	if err := db.Where("parent_id = ?", f.ID).Order("name ASC").Find(&subs).Error; err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	out.Subfolders = toFolders(subs)

	var files []model.File
	if err := db.Where("folder_id = ?", f.ID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	out.Files = toFiles(files)

	if userID != "" && userID == f.OwnerID {
		shares, err := folderSharesOf(ctx, db, f.ID)
		if err != nil {
			return nil, err
		}

		out.Shares = shares
	}

	return out, nil
}

// List 调用方拥有或通过未过期共享可见的文件夹，最新的在前.
func (s *FolderService) List(ctx context.Context, userID string) ([]types.Folder, error) {
	var out []model.Folder

	err := s.d.DB.WithContext(ctx).
		Where("owner_id = ? OR id IN (?)", userID, activeFolderShares(s.d.DB.WithContext(ctx), userID, s.d.now())).
		Order("created_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	return toFolders(out), nil
}

// SharedWithMe 他人共享给调用方的文件夹，最近更新的在前.
func (s *FolderService) SharedWithMe(ctx context.Context, userID string) ([]types.Folder, error) {
	var out []model.Folder

	err := s.d.DB.WithContext(ctx).
		Where("id IN (?) AND owner_id <> ?", activeFolderShares(s.d.DB.WithContext(ctx), userID, s.d.now()), userID).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	return toFolders(out), nil
}

// SharedByMe 调用方拥有且至少有一条共享的文件夹.
func (s *FolderService) SharedByMe(ctx context.Context, userID string) ([]types.Folder, error) {
	var out []model.Folder

	err := s.d.DB.WithContext(ctx).
		Where("owner_id = ? AND id IN (?)", userID,
			s.d.DB.WithContext(ctx).Model(&model.FolderShare{}).Select("folder_id").
				Where("expires_at IS NULL OR expires_at > ?", s.d.now())).
		Order("updated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	return toFolders(out), nil
}

// ListFiles 文件夹下的文件，需要 VIEWER 或文件夹公开.
func (s *FolderService) ListFiles(ctx context.Context, id, userID string) ([]types.File, error) {
	f, err := s.readable(ctx, id, userID)
	if err != nil {
		return nil, err
	}

	var files []model.File
	if err := s.d.DB.WithContext(ctx).Where("folder_id = ?", f.ID).Order("created_at DESC").Find(&files).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	return toFiles(files), nil
}

// Update 修改文件夹，需要 EDITOR；变更父目录时还需要新父目录的 EDITOR 且不能形成环.
func (s *FolderService) Update(ctx context.Context, id, userID string, req *types.UpdateFolderRequest) (*types.Folder, error) {
	var out model.Folder

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		eval := s.eval.WithDB(tx)

		f, err := s.resolve(ctx, tx, id, userID)
		if err != nil {
			return err
		}

		ok, err := eval.CheckFolder(ctx, f, userID, model.RoleEditor, false)
		if err != nil {
			return err
		}

		if !ok {
			return errs.Forbidden("insufficient permission on folder")
		}

		updates := map[string]any{}

		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				return errs.BadRequest("folder name is required")
			}

			updates["name"] = name
		}

		if req.Color != nil {
			updates["color"] = *req.Color
		}

		if req.Description != nil {
			updates["description"] = *req.Description
		}

		if req.IsPublic != nil {
			updates["is_public"] = *req.IsPublic
		}

		if req.ParentID != nil {
			parentID, err := s.checkReparent(ctx, tx, f, *req.ParentID, userID)
			if err != nil {
				return err
			}

			updates["parent_id"] = parentID
		}

		if len(updates) > 0 {
			if err := tx.Model(f).Updates(updates).Error; err != nil {
				return errs.FromDB(err, "folder")
			}
		}

		return tx.Where("id = ?", f.ID).Take(&out).Error
	})
	if err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	v := toFolder(&out)

	return &v, nil
}

// checkReparent 校验新的父目录，返回写入 parent_id 的值（nil 表示顶层）.
func (s *FolderService) checkReparent(ctx context.Context, tx *gorm.DB, f *model.Folder, target, userID string) (*string, error) {
	isRoot, err := isRootFolder(ctx, tx, f.ID)
	if err != nil {
		return nil, err
	}

	if isRoot {
		return nil, errs.BadRequest("root folder cannot be moved")
	}

	// 移到顶层只有所有者可以
	if target == "" {
		if f.OwnerID != userID {
			return nil, errs.Forbidden("only the owner can move this folder to the top level")
		}

		return nil, nil
	}

	parent, err := s.resolve(ctx, tx, target, userID)
	if err != nil {
		return nil, err
	}

	if parent.ID == f.ID {
		return nil, errs.BadRequest("folder cannot be its own parent")
	}

	ok, err := s.eval.WithDB(tx).CheckFolder(ctx, parent, userID, model.RoleEditor, false)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errs.Forbidden("insufficient permission on target folder")
	}

	// 沿新父目录向上查找，遇到自身即成环
	cur := parent.ParentID
	for depth := 0; cur != nil; depth++ {
		if *cur == f.ID {
			return nil, errs.BadRequest("cannot move a folder into its own descendant")
		}

		if depth >= maxTreeDepth {
			return nil, errs.BadRequest("folder tree too deep")
		}

		var p model.Folder
		if err := tx.WithContext(ctx).Select("id", "parent_id").Where("id = ?", *cur).Take(&p).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}

			return nil, errs.FromDB(err, "folder")
		}

		cur = p.ParentID
	}

	return &parent.ID, nil
}

// Delete 删除文件夹，仅所有者；非空文件夹需要 recursive.
func (s *FolderService) Delete(ctx context.Context, id, userID string, recursive bool) (*types.DeleteFolderResult, error) {
	var (
		result types.DeleteFolderResult
		refs   []blobRef
		f      *model.Folder
	)

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error

		f, err = s.resolve(ctx, tx, id, userID)
		if err != nil {
			return err
		}

		if f.OwnerID != userID {
			return errs.Forbidden("only the owner can delete this folder")
		}

		isRoot, err := isRootFolder(ctx, tx, f.ID)
		if err != nil {
			return err
		}

		if isRoot {
			return errs.BadRequest("root folder cannot be deleted")
		}

		if !recursive {
			var children int64
			if err := tx.Model(&model.Folder{}).Where("parent_id = ?", f.ID).Count(&children).Error; err != nil {
				return errs.FromDB(err, "folder")
			}

			var files int64
			if err := tx.Model(&model.File{}).Where("folder_id = ?", f.ID).Count(&files).Error; err != nil {
				return errs.FromDB(err, "file")
			}

			if children+files > 0 {
				return errs.BadRequest("folder is not empty")
			}
		}

		ids, err := collectSubtree(ctx, tx, f.ID)
		if err != nil {
			return err
		}

		refs, result, err = deleteTree(ctx, tx, ids)

		return err
	})
	if err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	s.d.deleteBlobs(ctx, "folder_delete", refs)

	queue.Emit(ctx, s.d.Events, queue.TopicFolderDeleted, queue.FolderDeletedPayload{
		FolderID:     f.ID,
		OwnerID:      f.OwnerID,
		Recursive:    recursive,
		Folders:      result.Folders,
		Files:        result.Files,
		ReleasedSize: result.ReleasedSize,
	})

	return &result, nil
}

// resolve 加载文件夹，myFiles 解析为调用方根目录.
func (s *FolderService) resolve(ctx context.Context, db *gorm.DB, id, userID string) (*model.Folder, error) {
	if id == MyFilesAlias {
		if userID == "" {
			return nil, errs.NotFound("folder not found")
		}

		var u model.User
		if err := db.WithContext(ctx).Select("id", "root_folder_id").Where("id = ?", userID).Take(&u).Error; err != nil {
			return nil, errs.FromDB(err, "user")
		}

		if u.RootFolderID == nil {
			return nil, errs.NotFound("root folder not found")
		}

		id = *u.RootFolderID
	}

	var f model.Folder
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&f).Error; err != nil {
		return nil, errs.FromDB(err, "folder")
	}

	return &f, nil
}

// readable 加载并校验读取权限.
func (s *FolderService) readable(ctx context.Context, id, userID string) (*model.Folder, error) {
	f, err := s.resolve(ctx, s.d.DB, id, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.eval.CheckFolder(ctx, f, userID, model.RoleViewer, true)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, denied(userID, "folder")
	}

	return f, nil
}

// activeFolderShares 子查询：userID 未过期共享的文件夹 ID.
func activeFolderShares(db *gorm.DB, userID string, now time.Time) *gorm.DB {
	return db.Model(&model.FolderShare{}).Select("folder_id").
		Where("user_id = ? AND (expires_at IS NULL OR expires_at > ?)", userID, now)
}

func isRootFolder(ctx context.Context, db *gorm.DB, folderID string) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&model.User{}).Where("root_folder_id = ?", folderID).Count(&n).Error; err != nil {
		return false, errs.FromDB(err, "user")
	}

	return n > 0, nil
}

// collectSubtree 广度优先收集 rootID 及其全部子孙文件夹.
func collectSubtree(ctx context.Context, tx *gorm.DB, rootID string) ([]string, error) {
	ids := []string{rootID}
	seen := map[string]bool{rootID: true}
	frontier := []string{rootID}

	for depth := 0; len(frontier) > 0; depth++ {
		if depth > maxTreeDepth {
			return nil, errs.BadRequest("folder tree too deep")
		}

		var next []string

		err := chunked(frontier, func(part []string) error {
			var children []string
			if err := tx.WithContext(ctx).Model(&model.Folder{}).Where("parent_id IN ?", part).Pluck("id", &children).Error; err != nil {
				return errs.FromDB(err, "folder")
			}

			for _, c := range children {
				if !seen[c] {
					seen[c] = true
					next = append(next, c)
				}
			}

			return nil
		})
		if err != nil {
			return nil, err
		}

		ids = append(ids, next...)
		frontier = next
	}

	return ids, nil
}

// deleteTree 在 tx 内删除一组文件夹及其文件，按文件所有者归还配额.
func deleteTree(ctx context.Context, tx *gorm.DB, folderIDs []string) ([]blobRef, types.DeleteFolderResult, error) {
	var (
		files  []model.File
		result types.DeleteFolderResult
	)

	err := chunked(folderIDs, func(part []string) error {
		var batch []model.File
		if err := tx.WithContext(ctx).Select("id", "storage_key", "object_id", "size", "owner_id").
			Where("folder_id IN ?", part).Find(&batch).Error; err != nil {
			return errs.FromDB(err, "file")
		}

		files = append(files, batch...)

		return nil
	})
	if err != nil {
		return nil, result, err
	}

	released := map[string]int64{}
	fileIDs := make([]string, 0, len(files))
	refs := make([]blobRef, 0, len(files))

	for _, f := range files {
		released[f.OwnerID] += f.Size
		fileIDs = append(fileIDs, f.ID)
		refs = append(refs, blobRef{Key: f.StorageKey, ObjectID: f.ObjectID})
		result.ReleasedSize += f.Size
	}

	for owner, size := range released {
		if err := quota.Release(ctx, tx, owner, size); err != nil {
			return nil, result, err
		}
	}

	err = chunked(fileIDs, func(part []string) error {
		db := tx.WithContext(ctx)
		if err := db.Where("file_id IN ?", part).Delete(&model.FileShare{}).Error; err != nil {
			return errs.FromDB(err, "file share")
		}

		if err := db.Where("file_id IN ?", part).Delete(&model.ShareLink{}).Error; err != nil {
			return errs.FromDB(err, "share link")
		}

		return errs.FromDB(db.Where("id IN ?", part).Delete(&model.File{}).Error, "file")
	})
	if err != nil {
		return nil, result, err
	}

	err = chunked(folderIDs, func(part []string) error {
		db := tx.WithContext(ctx)
		if err := db.Where("folder_id IN ?", part).Delete(&model.FolderShare{}).Error; err != nil {
			return errs.FromDB(err, "folder share")
		}

		return errs.FromDB(db.Where("id IN ?", part).Delete(&model.Folder{}).Error, "folder")
	})
	if err != nil {
		return nil, result, err
	}

	result.Folders = len(folderIDs)
	result.Files = len(files)

	return refs, result, nil
}
