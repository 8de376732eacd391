package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"net/url"

	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	"github.com/yeisme/cloudvault/pkg/internal/types"
)

// PublicDownloadPrefix 免认证下载路由前缀.
const PublicDownloadPrefix = "/api/v1/public/download/"

var errBadDownloadToken = errs.Forbidden("invalid or expired download token")

// DownloadService 无状态下载令牌.
// 令牌为 HMAC-SHA256(secret, fileId:ownerId)，更换密钥或转移所有权即失效.
type DownloadService struct {
	files *FileService
	d     Deps
}

func NewDownloadService(c context.Context) *DownloadService {
	return NewDownloadServiceWith(DepsFromContext(c))
}

func NewDownloadServiceWith(d Deps) *DownloadService {
	return &DownloadService{files: NewFileServiceWith(d), d: d}
}

// DownloadToken 计算令牌，小写十六进制.
func DownloadToken(secret, fileID, ownerID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fileID + ":" + ownerID))

	return hex.EncodeToString(mac.Sum(nil))
}

// IssueToken 需要 VIEWER 或文件公开.
func (s *DownloadService) IssueToken(ctx context.Context, fileID, userID string) (*types.DownloadTokenResponse, error) {
	secret, err := s.secret()
	if err != nil {
		return nil, err
	}

	f, err := s.files.readable(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}

	token := DownloadToken(secret, f.ID, f.OwnerID)

	return &types.DownloadTokenResponse{
		Token: token,
		URL:   PublicDownloadPrefix + url.PathEscape(f.ID) + "/" + token,
	}, nil
}

// ResolveToken 校验令牌，返回文件与直接下载地址；后端不提供地址时 URL 为空，由调用方中转.
func (s *DownloadService) ResolveToken(ctx context.Context, fileID, token string) (*model.File, string, error) {
	secret, err := s.secret()
	if err != nil {
		return nil, "", err
	}

	var f model.File
	if err := s.d.DB.WithContext(ctx).Where("id = ?", fileID).Take(&f).Error; err != nil {
		if errs.Is(errs.FromDB(err, "file"), errs.KindNotFound) {
			return nil, "", errBadDownloadToken
		}

		return nil, "", errs.FromDB(err, "file")
	}

	want := DownloadToken(secret, f.ID, f.OwnerID)
	if !hmac.Equal([]byte(want), []byte(token)) {
		return nil, "", errBadDownloadToken
	}

	u, err := s.d.Blob.ObjectURL(ctx, f.StorageKey)
	if err != nil {
		return nil, "", blobErr(err)
	}

	return &f, u, nil
}

func (s *DownloadService) secret() (string, error) {
	if s.d.Upload.DownloadSecret == "" {
		return "", errs.Internal(errors.New("upload.download_secret is not configured"))
	}

	return s.d.Upload.DownloadSecret, nil
}

// Locate 检查 VIEWER 权限并返回直接下载地址，地址为空时调用方使用 Open 中转.
func (s *DownloadService) Locate(ctx context.Context, fileID, userID string) (*model.File, string, error) {
	f, err := s.files.readable(ctx, fileID, userID)
	if err != nil {
		return nil, "", err
	}

	u, err := s.d.Blob.ObjectURL(ctx, f.StorageKey)
	if err != nil {
		return nil, "", blobErr(err)
	}

	return f, u, nil
}

// Open 打开已通过校验的文件内容，调用方负责关闭.
func (s *DownloadService) Open(ctx context.Context, f *model.File) (io.ReadCloser, error) {
	return openBlob(ctx, s.d.Blob, f)
}
