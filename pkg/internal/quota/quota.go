// Package quota 维护用户存储用量账本.
//
// Reserve 与 Release 必须使用外层变更所在的事务句柄，账本与文件记录一同提交或回滚.
package quota

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
)

// ErrQuotaExceeded 配额不足.
var ErrQuotaExceeded = errs.BadRequest("storage quota exceeded")

// HasSpace 预检查剩余空间，最终以 Reserve 为准.
func HasSpace(ctx context.Context, db *gorm.DB, userID string, bytes int64) (bool, error) {
	used, limit, err := Usage(ctx, db, userID)
	if err != nil {
		return false, err
	}

	return used+bytes <= limit, nil
}

// Reserve 原子地增加用量，超出配额时不修改任何行.
func Reserve(ctx context.Context, tx *gorm.DB, userID string, bytes int64) error {
	if bytes < 0 {
		return errs.BadRequest("invalid size")
	}

	res := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ? AND storage_used + ? <= storage_quota", userID, bytes).
		Update("storage_used", gorm.Expr("storage_used + ?", bytes))
	if res.Error != nil {
		return errs.FromDB(res.Error, "user")
	}

	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := tx.WithContext(ctx).Model(&model.User{}).Where("id = ?", userID).Count(&n).Error; err != nil {
		return errs.FromDB(err, "user")
	}

	if n == 0 {
		return errs.NotFound("user not found")
	}

	return ErrQuotaExceeded
}

// Release 原子地减少用量，不会低于 0.
func Release(ctx context.Context, tx *gorm.DB, userID string, bytes int64) error {
	if bytes <= 0 {
		return nil
	}

	err := tx.WithContext(ctx).Model(&model.User{}).
		Where("id = ?", userID).
		Update("storage_used", gorm.Expr("CASE WHEN storage_used >= ? THEN storage_used - ? ELSE 0 END", bytes, bytes)).
		Error

	return errs.FromDB(err, "user")
}

// Usage 返回已用与配额.
func Usage(ctx context.Context, db *gorm.DB, userID string) (used, limit int64, err error) {
	var u model.User
	if err := db.WithContext(ctx).Select("id", "storage_used", "storage_quota").Where("id = ?", userID).Take(&u).Error; err != nil {
		return 0, 0, errs.FromDB(err, "user")
	}

	return u.StorageUsed, u.StorageQuota, nil
}

// Reconcile 按文件大小之和重算用量，返回修正前后的值.
//
// 求和与写回在同一条 UPDATE 中完成，期间提交的上传不会丢失.
func Reconcile(ctx context.Context, db *gorm.DB, userID string) (before, after int64, err error) {
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var u model.User
		if err := tx.Select("id", "storage_used").Where("id = ?", userID).Take(&u).Error; err != nil {
			return errs.FromDB(err, "user")
		}

		before = u.StorageUsed

		total := tx.Model(&model.File{}).Select("COALESCE(SUM(size), 0)").Where("owner_id = ?", userID)
		if err := tx.Model(&model.User{}).Where("id = ?", userID).
			Update("storage_used", total).Error; err != nil {
			return errs.FromDB(err, "user")
		}

		if err := tx.Select("id", "storage_used").Where("id = ?", userID).Take(&u).Error; err != nil {
			return errs.FromDB(err, "user")
		}

		after = u.StorageUsed

		return nil
	})

	return before, after, err
}

// IsExceeded 判断是否为配额不足.
func IsExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}
