package permission

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
)

// Evaluator 从数据库加载所有权与共享记录后判断.
type Evaluator struct {
	db  *gorm.DB
	now func() time.Time
}

// NewEvaluator 创建 Evaluator，db 可以是事务句柄.
func NewEvaluator(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db, now: time.Now}
}

// WithClock 替换时钟，测试使用.
func (e *Evaluator) WithClock(now func() time.Time) *Evaluator {
	return &Evaluator{db: e.db, now: now}
}

// WithDB 返回使用 db（通常为事务）的副本.
func (e *Evaluator) WithDB(db *gorm.DB) *Evaluator {
	return &Evaluator{db: db, now: e.now}
}

// HasFolderPermission 资源不存在时返回 false, nil.
func (e *Evaluator) HasFolderPermission(ctx context.Context, folderID, userID string, required model.Role) (bool, error) {
	return e.folder(ctx, folderID, userID, required, false)
}

// HasFilePermission 资源不存在时返回 false, nil.
func (e *Evaluator) HasFilePermission(ctx context.Context, fileID, userID string, required model.Role) (bool, error) {
	return e.file(ctx, fileID, userID, required, false)
}

// CanReadFolder 公开文件夹对匿名调用方同样可读.
func (e *Evaluator) CanReadFolder(ctx context.Context, folderID, userID string) (bool, error) {
	return e.folder(ctx, folderID, userID, model.RoleViewer, true)
}

// CanReadFile 公开文件对匿名调用方同样可读.
func (e *Evaluator) CanReadFile(ctx context.Context, fileID, userID string) (bool, error) {
	return e.file(ctx, fileID, userID, model.RoleViewer, true)
}

func (e *Evaluator) folder(ctx context.Context, folderID, userID string, required model.Role, read bool) (bool, error) {
	var f model.Folder

	err := e.db.WithContext(ctx).Select("id", "owner_id", "is_public").Where("id = ?", folderID).Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, errs.FromDB(err, "folder")
	}

	return e.CheckFolder(ctx, &f, userID, required, read)
}

func (e *Evaluator) file(ctx context.Context, fileID, userID string, required model.Role, read bool) (bool, error) {
	var f model.File

	err := e.db.WithContext(ctx).Select("id", "owner_id", "is_public").Where("id = ?", fileID).Take(&f).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}

	if err != nil {
		return false, errs.FromDB(err, "file")
	}

	return e.CheckFile(ctx, &f, userID, required, read)
}

// CheckFolder 对已加载的文件夹判断，read 为 true 时考虑公开标记.
func (e *Evaluator) CheckFolder(ctx context.Context, f *model.Folder, userID string, required model.Role, read bool) (bool, error) {
	s := Subject{Kind: KindFolder, OwnerID: f.OwnerID, UserID: userID, PublicRead: read && f.IsPublic}
	if !Allowed(s, required, e.now()) && userID != "" && userID != f.OwnerID {
		var share model.FolderShare

		err := e.db.WithContext(ctx).Where("folder_id = ? AND user_id = ?", f.ID, userID).Take(&share).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errs.FromDB(err, "folder share")
		}

		if err == nil {
			s.Grant = &Grant{Role: share.Role, ExpiresAt: share.ExpiresAt}
		}
	}

	return Allowed(s, required, e.now()), nil
}

// CheckFile 对已加载的文件判断，read 为 true 时考虑公开标记.
func (e *Evaluator) CheckFile(ctx context.Context, f *model.File, userID string, required model.Role, read bool) (bool, error) {
	s := Subject{Kind: KindFile, OwnerID: f.OwnerID, UserID: userID, PublicRead: read && f.IsPublic}
	if !Allowed(s, required, e.now()) && userID != "" && userID != f.OwnerID {
		var share model.FileShare

		err := e.db.WithContext(ctx).Where("file_id = ? AND user_id = ?", f.ID, userID).Take(&share).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return false, errs.FromDB(err, "file share")
		}

		if err == nil {
			s.Grant = &Grant{Role: share.Role, ExpiresAt: share.ExpiresAt}
		}
	}

	return Allowed(s, required, e.now()), nil
}
