package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"mime"
	"path"
	"strings"

	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/permission"
	"github.com/yeisme/cloudvault/pkg/internal/quota"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	nlog "github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/metrics"
	"github.com/yeisme/cloudvault/pkg/queue"
)

const (
	uploadModeServer = "server"
	uploadModeSigned = "signed"
	defaultMimeType  = "application/octet-stream"
)

var errUploadExpired = errs.BadRequest("upload expired")

// UploadService 服务端中转上传与两阶段签名直传.
type UploadService struct {
	d       Deps
	eval    *permission.Evaluator
	folders *FolderService
}

func NewUploadService(c context.Context) *UploadService {
	return NewUploadServiceWith(DepsFromContext(c))
}

func NewUploadServiceWith(d Deps) *UploadService {
	return &UploadService{d: d, eval: d.evaluator(), folders: NewFolderServiceWith(d)}
}

// Upload 服务端中转上传.
// 先写对象，再在一个事务内占用配额并创建记录；事务失败时删除已上传的对象.
func (s *UploadService) Upload(ctx context.Context, userID string, in *types.UploadInput, r io.Reader) (*types.File, error) {
	if err := s.checkSize(in.Size); err != nil {
		return nil, err
	}

	folder, err := s.targetFolder(ctx, userID, in.FolderID)
	if err != nil {
		return nil, err
	}

	if err := s.precheckQuota(ctx, userID, in.Size); err != nil {
		return nil, err
	}

	name := cleanFileName(in.Name)
	mimeType := detectMime(in.MimeType, name)
	key := blob.BuildKey(userID, name, s.d.now())

	h := sha256.New()

	obj, err := s.d.Blob.Put(ctx, key, io.TeeReader(r, h), in.Size, mimeType)
	if err != nil {
		return nil, blobErr(err)
	}

	f := &model.File{
		Name:         name,
		OriginalName: in.Name,
		StorageKey:   key,
		ObjectID:     obj.ObjectID,
		BucketName:   s.d.Blob.Bucket(),
		MimeType:     mimeType,
		Size:         in.Size,
		FolderID:     folder.ID,
		OwnerID:      userID,
		ContentHash:  hex.EncodeToString(h.Sum(nil)),
	}

	err = s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := quota.Reserve(ctx, tx, userID, f.Size); err != nil {
			return err
		}

		return errs.FromDB(tx.Create(f).Error, "file")
	})
	if err != nil {
		s.d.deleteBlobs(ctx, "compensate", []blobRef{{Key: key, ObjectID: obj.ObjectID}})
		s.onQuotaError(ctx, userID, f.Size, err)

		return nil, err
	}

	s.stored(ctx, f, uploadModeServer)

	out := toFile(f)

	return &out, nil
}

// IssueSignedUpload 签发直传地址并记录待完成的上传.
func (s *UploadService) IssueSignedUpload(ctx context.Context, userID string, req *types.SignedUploadRequest) (*types.SignedUploadResponse, error) {
	folder, err := s.targetFolder(ctx, userID, req.FolderID)
	if err != nil {
		return nil, err
	}

	var size int64

	if req.Size != nil {
		size = *req.Size
		if err := s.checkSize(size); err != nil {
			return nil, err
		}

		if err := s.precheckQuota(ctx, userID, size); err != nil {
			return nil, err
		}
	}

	name := cleanFileName(req.FileName)
	mimeType := detectMime(req.MimeType, name)
	now := s.d.now()
	key := blob.BuildKey(userID, name, now)
	expiry := s.d.Upload.GetSignedURLExpiry()

	slot, err := s.d.Blob.PresignUpload(ctx, key, mimeType, expiry)
	if err != nil {
		return nil, blobErr(err)
	}

	pending := &model.PendingUpload{
		StorageKey: key,
		UserID:     userID,
		FolderID:   folder.ID,
		FileName:   name,
		MimeType:   mimeType,
		Size:       size,
		ExpiresAt:  now.Add(expiry),
	}
	if err := s.d.DB.WithContext(ctx).Create(pending).Error; err != nil {
		return nil, errs.FromDB(err, "upload")
	}

	return &types.SignedUploadResponse{
		UploadURL:  slot.URL,
		Method:     slot.Method,
		Headers:    slot.Headers,
		StorageKey: key,
		ExpiresAt:  pending.ExpiresAt,
		UploadID:   pending.ID,
	}, nil
}

// CompleteSignedUpload 确认直传完成，以 blob.Stat 的大小为准.
// 同一 key 重复确认返回已创建的文件.
func (s *UploadService) CompleteSignedUpload(ctx context.Context, userID string, req *types.CompleteUploadRequest) (*types.File, error) {
	if !blob.OwnsKey(userID, req.StorageKey) {
		return nil, errs.Forbidden("storage key does not belong to caller")
	}

	db := s.d.DB.WithContext(ctx)

	var existing model.File

	err := db.Where("storage_key = ?", req.StorageKey).Take(&existing).Error
	if err == nil {
		out := toFile(&existing)
		return &out, nil
	}

	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, errs.FromDB(err, "file")
	}

	var pending model.PendingUpload
	if err := db.Where("storage_key = ? AND user_id = ?", req.StorageKey, userID).Take(&pending).Error; err != nil {
		return nil, errs.FromDB(err, "upload")
	}

	if !pending.ExpiresAt.After(s.d.now()) {
		return nil, errUploadExpired
	}

	folderID := firstNonEmpty(req.FolderID, pending.FolderID)

	folder, err := s.targetFolder(ctx, userID, folderID)
	if err != nil {
		return nil, err
	}

	obj, err := s.d.Blob.Stat(ctx, req.StorageKey)
	if errors.Is(err, blob.ErrNotFound) {
		return nil, errs.BadRequest("object not uploaded")
	}

	if err != nil {
		return nil, blobErr(err)
	}

	if err := s.checkSize(obj.Size); err != nil {
		s.discard(ctx, &pending, obj.ObjectID)
		return nil, err
	}

	name := cleanFileName(firstNonEmpty(req.FileName, pending.FileName))
	f := &model.File{
		Name:         name,
		OriginalName: firstNonEmpty(req.FileName, pending.FileName),
		StorageKey:   req.StorageKey,
		ObjectID:     obj.ObjectID,
		BucketName:   s.d.Blob.Bucket(),
		MimeType:     detectMime(firstNonEmpty(req.MimeType, pending.MimeType, obj.ContentType), name),
		Size:         obj.Size,
		FolderID:     folder.ID,
		OwnerID:      userID,
	}

	err = s.d.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// 先认领登记行，与孤儿回收互斥
		res := tx.Delete(&model.PendingUpload{}, "id = ?", pending.ID)
		if res.Error != nil {
			return errs.FromDB(res.Error, "upload")
		}

		if res.RowsAffected != 1 {
			return errUploadExpired
		}

		if err := quota.Reserve(ctx, tx, userID, f.Size); err != nil {
			return err
		}

		return errs.FromDB(tx.Create(f).Error, "file")
	})
	if err != nil {
		if quota.IsExceeded(err) {
			s.discard(ctx, &pending, obj.ObjectID)
		}

		s.onQuotaError(ctx, userID, f.Size, err)

		return nil, err
	}

	s.stored(ctx, f, uploadModeSigned)

	out := toFile(f)

	return &out, nil
}

// ReceiveLocal 本地磁盘后端的直传目标，其他后端由客户端直接上传到对象存储.
func (s *UploadService) ReceiveLocal(ctx context.Context, userID, key string, r io.Reader, size int64, contentType string) error {
	if s.d.Blob.Name() != string(configs.BlobTypeLocal) {
		return errs.NotFound("direct upload endpoint is not enabled")
	}

	if !blob.OwnsKey(userID, key) {
		return errs.Forbidden("storage key does not belong to caller")
	}

	if size < 0 {
		return errs.BadRequest("content length required")
	}

	var pending model.PendingUpload
	if err := s.d.DB.WithContext(ctx).Where("storage_key = ? AND user_id = ?", key, userID).Take(&pending).Error; err != nil {
		return errs.FromDB(err, "upload")
	}

	if !pending.ExpiresAt.After(s.d.now()) {
		return errs.Forbidden("upload URL expired")
	}

	if err := s.checkSize(size); err != nil {
		return err
	}

	if _, err := s.d.Blob.Put(ctx, key, r, size, detectMime(contentType, pending.FileName)); err != nil {
		return blobErr(err)
	}

	return nil
}

func (s *UploadService) checkSize(size int64) error {
	if size <= 0 {
		return errs.BadRequest("file size must be positive")
	}

	limit := s.d.Upload.MaxFileSize
	if limit <= 0 {
		limit = configs.DefaultMaxFileSize
	}

	if size > limit {
		return errs.BadRequest("file exceeds maximum allowed size")
	}

	return nil
}

// targetFolder 上传目标文件夹，需要所有者或 EDITOR.
func (s *UploadService) targetFolder(ctx context.Context, userID, folderID string) (*model.Folder, error) {
	if folderID == "" {
		return nil, errs.BadRequest("folder_id is required")
	}

	folder, err := s.folders.resolve(ctx, s.d.DB, folderID, userID)
	if err != nil {
		return nil, err
	}

	ok, err := s.eval.CheckFolder(ctx, folder, userID, model.RoleEditor, false)
	if err != nil {
		return nil, err
	}

	if !ok {
		return nil, errs.Forbidden("insufficient permission to upload to this folder")
	}

	return folder, nil
}

func (s *UploadService) precheckQuota(ctx context.Context, userID string, size int64) error {
	ok, err := quota.HasSpace(ctx, s.d.DB, userID, size)
	if err != nil {
		return err
	}

	if !ok {
		s.onQuotaError(ctx, userID, size, quota.ErrQuotaExceeded)
		return quota.ErrQuotaExceeded
	}

	return nil
}

func (s *UploadService) onQuotaError(ctx context.Context, userID string, size int64, err error) {
	if !quota.IsExceeded(err) {
		return
	}

	metrics.QuotaRejections.Inc()

	if !s.d.Events.Enabled(queue.TopicQuotaExceeded) {
		return
	}

	used, limit, uerr := quota.Usage(ctx, s.d.DB, userID)
	if uerr != nil {
		return
	}

	queue.Emit(ctx, s.d.Events, queue.TopicQuotaExceeded, queue.QuotaExceededPayload{
		UserID: userID, Requested: size, Used: used, Quota: limit,
	})
}

// discard 删除对象与待完成记录.
func (s *UploadService) discard(ctx context.Context, p *model.PendingUpload, objectID string) {
	s.d.deleteBlobs(ctx, "compensate", []blobRef{{Key: p.StorageKey, ObjectID: objectID}})

	if err := s.d.DB.WithContext(context.WithoutCancel(ctx)).Delete(&model.PendingUpload{}, "id = ?", p.ID).Error; err != nil {
		l := ctxPkg.WithTraceContext(ctx, *nlog.Logger())
		l.Warn().Err(err).Str("upload_id", p.ID).Msg("delete pending upload failed")
	}
}

func (s *UploadService) stored(ctx context.Context, f *model.File, mode string) {
	metrics.UploadsTotal.WithLabelValues(mode).Inc()
	metrics.UploadBytes.Add(float64(f.Size))

	queue.Emit(ctx, s.d.Events, queue.TopicFileStored, queue.FileStoredPayload{
		File: fileRef(f), ContentHash: f.ContentHash, Source: mode,
	})
}

// cleanFileName 去掉路径部分，保留原始字符.
func cleanFileName(name string) string {
	name = strings.TrimSpace(path.Base(strings.ReplaceAll(name, "\\", "/")))
	if name == "" || name == "." || name == "/" {
		return "file"
	}

	return name
}

func detectMime(given, name string) string {
	if given = strings.TrimSpace(given); given != "" {
		return given
	}

	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}

	return defaultMimeType
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}

	return ""
}
