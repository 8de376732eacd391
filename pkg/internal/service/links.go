package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	appcache "github.com/yeisme/cloudvault/pkg/cache"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/types"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

const linkKeyPrefix = "links:v1:"

// 缓存 TTL 策略常量.
const (
	linkCacheDefaultTTL = 10 * time.Minute // 未设置过期时间时的默认缓存时长
	linkCacheMaxTTL     = 30 * time.Minute // 单条链接缓存的最长时间
)

var (
	errLinkGone       = errs.NotFound("link not found or expired")
	errLinkPassword   = errs.Forbidden("invalid password")
	errLinkNoDownload = errs.Forbidden("download not allowed")
)

// LinkService 匿名分享链接（可选密码与过期时间），元数据以 DB 为主、KV 轻缓存.
type LinkService struct {
	d Deps
}

func NewLinkService(c context.Context) *LinkService {
	return NewLinkServiceWith(DepsFromContext(c))
}

func NewLinkServiceWith(d Deps) *LinkService {
	return &LinkService{d: d}
}

// linkRecord 缓存中的链接快照，包含文件的展示信息.
type linkRecord struct {
	Link         model.ShareLink `json:"link"`
	PasswordHash string          `json:"password_hash,omitempty"`
	FileName     string          `json:"file_name"`
	MimeType     string          `json:"mime_type"`
	Size         int64           `json:"size"`
}

func (r *linkRecord) public() *types.PublicLink {
	return &types.PublicLink{
		ID:            r.Link.ID,
		HasPassword:   r.PasswordHash != "",
		AllowDownload: r.Link.AllowDownload,
		ExpiresAt:     r.Link.ExpiresAt,
		FileName:      r.FileName,
		MimeType:      r.MimeType,
		Size:          r.Size,
	}
}

// Create 为文件创建链接，仅所有者.
func (s *LinkService) Create(ctx context.Context, userID string, req *types.CreateLinkRequest) (*types.Link, error) {
	db := s.d.DB.WithContext(ctx)

	var f model.File
	if err := db.Select("id", "owner_id").Where("id = ?", req.FileID).Take(&f).Error; err != nil {
		return nil, errs.FromDB(err, "file")
	}

	if f.OwnerID != userID {
		return nil, errs.Forbidden("only the owner can create links for this file")
	}

	if req.ExpiresAt != nil && !req.ExpiresAt.After(s.d.now()) {
		return nil, errs.BadRequest("expiration must be in the future")
	}

	l := &model.ShareLink{
		FileID:        f.ID,
		OwnerID:       userID,
		AllowDownload: req.AllowDownload,
		ExpiresAt:     utcPtr(req.ExpiresAt),
	}

	if pw := strings.TrimSpace(req.Password); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return nil, errs.Internal(err)
		}

		l.PasswordHash = string(hash)
	}

	if err := db.Create(l).Error; err != nil {
		return nil, errs.FromDB(err, "link")
	}

	out := toLink(l)

	return &out, nil
}

// List 调用方创建的链接.
func (s *LinkService) List(ctx context.Context, userID string) ([]types.Link, error) {
	var rows []model.ShareLink
	if err := s.d.DB.WithContext(ctx).Where("owner_id = ?", userID).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, errs.FromDB(err, "link")
	}

	out := make([]types.Link, 0, len(rows))
	for i := range rows {
		out = append(out, toLink(&rows[i]))
	}

	return out, nil
}

// Delete 删除链接，仅所有者.
func (s *LinkService) Delete(ctx context.Context, id, userID string) error {
	db := s.d.DB.WithContext(ctx)

	var l model.ShareLink
	if err := db.Where("id = ?", id).Take(&l).Error; err != nil {
		return errs.FromDB(err, "link")
	}

	if l.OwnerID != userID {
		return errs.Forbidden("only the owner can delete this link")
	}

	if err := db.Delete(&model.ShareLink{}, "id = ?", l.ID).Error; err != nil {
		return errs.FromDB(err, "link")
	}

	s.kvDel(ctx, makeLinkKey(l.ID))

	return nil
}

// Get 匿名可见的链接信息，不校验密码.
func (s *LinkService) Get(ctx context.Context, id string) (*types.PublicLink, error) {
	rec, err := s.getLinkCached(ctx, id)
	if err != nil {
		return nil, err
	}

	return rec.public(), nil
}

// Access 校验密码并累计访问次数.
func (s *LinkService) Access(ctx context.Context, id, password string) (*types.LinkAccessResponse, error) {
	rec, err := s.unlock(ctx, id, password)
	if err != nil {
		return nil, err
	}

	db := s.d.DB.WithContext(ctx)

	res := db.Model(&model.ShareLink{}).Where("id = ?", rec.Link.ID).
		UpdateColumn("access_count", gorm.Expr("access_count + 1"))
	if res.Error != nil {
		return nil, errs.FromDB(res.Error, "link")
	}

	if res.RowsAffected == 0 {
		s.kvDel(ctx, makeLinkKey(id))
		return nil, errLinkGone
	}

	var f model.File
	if err := db.Where("id = ?", rec.Link.FileID).Take(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLinkGone
		}

		return nil, errs.FromDB(err, "file")
	}

	return &types.LinkAccessResponse{Link: *rec.public(), File: toFile(&f)}, nil
}

// Download 通过链接下载，需要 allow_download；URL 为空时由调用方中转.
func (s *LinkService) Download(ctx context.Context, id, password string) (*model.File, string, error) {
	rec, err := s.unlock(ctx, id, password)
	if err != nil {
		return nil, "", err
	}

	if !rec.Link.AllowDownload {
		return nil, "", errLinkNoDownload
	}

	var f model.File
	if err := s.d.DB.WithContext(ctx).Where("id = ?", rec.Link.FileID).Take(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", errLinkGone
		}

		return nil, "", errs.FromDB(err, "file")
	}

	u, err := s.d.Blob.ObjectURL(ctx, f.StorageKey)
	if err != nil {
		return nil, "", blobErr(err)
	}

	return &f, u, nil
}

func (s *LinkService) unlock(ctx context.Context, id, password string) (*linkRecord, error) {
	rec, err := s.getLinkCached(ctx, id)
	if err != nil {
		return nil, err
	}

	if rec.PasswordHash != "" {
		if bcrypt.CompareHashAndPassword([]byte(rec.PasswordHash), []byte(password)) != nil {
			return nil, errLinkPassword
		}
	}

	return rec, nil
}

// ---- DB 为主 + 轻缓存 ----

func makeLinkKey(id string) string { return linkKeyPrefix + id }

func isExpired(now time.Time, exp *time.Time) bool {
	return exp != nil && !exp.After(now)
}

// getLinkCached 优先读缓存，其次从 DB 回源并回填.
func (s *LinkService) getLinkCached(ctx context.Context, id string) (*linkRecord, error) {
	now := s.d.now()

	if rec, ok := s.kvGet(ctx, makeLinkKey(id)); ok {
		if !isExpired(now, rec.Link.ExpiresAt) {
			return rec, nil
		}

		s.kvDel(ctx, makeLinkKey(id))

		return nil, errLinkGone
	}

	db := s.d.DB.WithContext(ctx)

	var l model.ShareLink
	if err := db.Where("id = ?", id).Take(&l).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLinkGone
		}

		return nil, errs.FromDB(err, "link")
	}

	if isExpired(now, l.ExpiresAt) {
		return nil, errLinkGone
	}

	var f model.File
	if err := db.Select("id", "name", "mime_type", "size").Where("id = ?", l.FileID).Take(&f).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errLinkGone
		}

		return nil, errs.FromDB(err, "file")
	}

	rec := &linkRecord{Link: l, PasswordHash: l.PasswordHash, FileName: f.Name, MimeType: f.MimeType, Size: f.Size}
	s.kvSet(ctx, makeLinkKey(id), rec, ttlFromExpire(now, l.ExpiresAt))

	return rec, nil
}

func (s *LinkService) cache() *appcache.Cache {
	if s.d.KV == nil {
		return nil
	}

	return appcache.NewCache(s.d.KV)
}

func (s *LinkService) kvGet(ctx context.Context, key string) (*linkRecord, bool) {
	c := s.cache()
	if c == nil {
		return nil, false
	}

	rec, err := appcache.Get[linkRecord](ctx, c, key)
	if err != nil {
		return nil, false
	}

	return &rec, true
}

func (s *LinkService) kvSet(ctx context.Context, key string, rec *linkRecord, ttl time.Duration) {
	c := s.cache()
	if c == nil || ttl <= 0 {
		return
	}

	if err := appcache.Set(ctx, c, key, *rec, ttl); err != nil {
		nlog.Logger().Debug().Err(err).Str("key", key).Msg("cache link failed")
	}
}

func (s *LinkService) kvDel(ctx context.Context, key string) {
	if c := s.cache(); c != nil {
		_ = c.Delete(ctx, key)
	}
}

// ttlFromExpire 未设置过期返回默认 TTL，否则不超过剩余有效期与 linkCacheMaxTTL.
func ttlFromExpire(now time.Time, exp *time.Time) time.Duration {
	if exp == nil {
		return linkCacheDefaultTTL
	}

	d := exp.Sub(now)
	if d <= 0 {
		return 0
	}

	return min(d, linkCacheMaxTTL)
}
