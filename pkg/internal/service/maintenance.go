package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	nlog "github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/queue"
)

// gcBatch 每轮处理的过期上传数量.
const gcBatch = 200

// SweepResult 过期共享清理统计.
type SweepResult struct {
	FolderShares int64 `json:"folder_shares"`
	FileShares   int64 `json:"file_shares"`
	Links        int64 `json:"links"`
}

// MaintenanceService 定时任务使用的清理与对账.
type MaintenanceService struct {
	d Deps
}

func NewMaintenanceService(c context.Context) *MaintenanceService {
	return NewMaintenanceServiceWith(DepsFromContext(c))
}

func NewMaintenanceServiceWith(d Deps) *MaintenanceService {
	return &MaintenanceService{d: d}
}

// SweepOrphanUploads 回收过期未完成的签名上传：删除对象与记录.
// 对象删除失败的记录保留到下一轮.
func (s *MaintenanceService) SweepOrphanUploads(ctx context.Context) (int, error) {
	l := ctxPkg.WithTraceContext(ctx, *nlog.Logger())
	now := s.d.now()
	total := 0

	for {
		var batch []model.PendingUpload
		if err := s.d.DB.WithContext(ctx).Where("expires_at < ?", now).
			Order("expires_at ASC").Limit(gcBatch).Find(&batch).Error; err != nil {
			return total, errs.FromDB(err, "upload")
		}

		removed := 0

		for i := range batch {
			p := &batch[i]

			// 先认领登记行，已被完成上传认领的跳过
			res := s.d.DB.WithContext(ctx).Delete(&model.PendingUpload{}, "id = ? AND expires_at < ?", p.ID, now)
			if res.Error != nil {
				return total, errs.FromDB(res.Error, "upload")
			}

			if res.RowsAffected == 0 {
				continue
			}

			deleted := true

			if err := s.d.Blob.Delete(ctx, p.StorageKey, ""); err != nil {
				if !errors.Is(err, blob.ErrNotFound) {
					l.Warn().Err(err).Str("key", p.StorageKey).Msg("delete orphan blob failed")

					// 放回登记行，下一轮重试
					if err := s.d.DB.WithContext(ctx).Create(p).Error; err != nil {
						l.Error().Err(err).Str("upload_id", p.ID).Msg("restore pending upload failed")
					}

					continue
				}

				deleted = false
			}

			removed++

			queue.Emit(ctx, s.d.Events, queue.TopicUploadOrphaned, queue.UploadOrphanedPayload{
				UploadID:    p.ID,
				UserID:      p.UserID,
				StorageKey:  p.StorageKey,
				ExpiredAt:   p.ExpiresAt,
				BlobDeleted: deleted,
			})
		}

		total += removed

		// 本轮全部失败时停止，避免反复处理同一批
		if len(batch) < gcBatch || removed == 0 {
			return total, nil
		}
	}
}

// SweepExpiredShares 删除已过期的共享与链接.
func (s *MaintenanceService) SweepExpiredShares(ctx context.Context) (*SweepResult, error) {
	now := s.d.now()
	out := &SweepResult{}

	err := s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&model.FolderShare{})
		if res.Error != nil {
			return errs.FromDB(res.Error, "folder share")
		}

		out.FolderShares = res.RowsAffected

		res = tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&model.FileShare{})
		if res.Error != nil {
			return errs.FromDB(res.Error, "file share")
		}

		out.FileShares = res.RowsAffected

		res = tx.Where("expires_at IS NOT NULL AND expires_at <= ?", now).Delete(&model.ShareLink{})
		if res.Error != nil {
			return errs.FromDB(res.Error, "share link")
		}

		out.Links = res.RowsAffected

		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// ReconcileQuotas 按 files 表重算每个用户的 storage_used，返回被修正的用户数.
func (s *MaintenanceService) ReconcileQuotas(ctx context.Context) (int, error) {
	l := ctxPkg.WithTraceContext(ctx, *nlog.Logger())

	var ids []string
	if err := s.d.DB.WithContext(ctx).Model(&model.User{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return 0, errs.FromDB(err, "user")
	}

	fixed := 0

	for _, id := range ids {
		before, after, err := quota.Reconcile(ctx, s.d.DB, id)
		if err != nil {
			return fixed, err
		}

		if before != after {
			fixed++

			l.Info().Str("user_id", id).Int64("before", before).Int64("after", after).Msg("storage usage corrected")
		}
	}

	return fixed, nil
}
