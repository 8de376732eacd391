package blob

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec // B2 要求 SHA1 校验
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

const (
	b2APIPrefix = "/b2api/v2/"
	// b2 上传 URL 有效期 24 小时
	b2UploadURLTTL = 24 * time.Hour
	// hex_digits_at_end 模式下 SHA1 附加在内容末尾
	b2SHA1AtEnd   = "hex_digits_at_end"
	b2SHA1HexLen  = 40
	b2DefaultList = 1000
)

func init() {
	RegisterFactory(configs.BlobTypeB2, func(_ context.Context, cfg *configs.BlobConfig) (Store, error) {
		return NewB2Store(cfg, nil)
	})
}

// b2Session 授权后的会话状态.
type b2Session struct {
	accountID   string
	authToken   string
	apiURL      string
	downloadURL string
	bucketID    string
}

// B2Store Backblaze B2 原生 API 实现.
type B2Store struct {
	cfg    configs.BlobConfig
	client *http.Client

	mu      sync.Mutex
	session *b2Session
}

// b2Error B2 错误响应.
type b2Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *b2Error) Error() string {
	return fmt.Sprintf("b2: %d %s: %s", e.Status, e.Code, e.Message)
}

type b2AuthorizeResponse struct {
	AccountID          string `json:"accountId"`
	AuthorizationToken string `json:"authorizationToken"`
	APIURL             string `json:"apiUrl"`
	DownloadURL        string `json:"downloadUrl"`
}

type b2Bucket struct {
	BucketID   string `json:"bucketId"`
	BucketName string `json:"bucketName"`
}

type b2ListBucketsResponse struct {
	Buckets []b2Bucket `json:"buckets"`
}

type b2UploadURLResponse struct {
	BucketID           string `json:"bucketId"`
	UploadURL          string `json:"uploadUrl"`
	AuthorizationToken string `json:"authorizationToken"`
}

type b2File struct {
	FileID          string `json:"fileId"`
	FileName        string `json:"fileName"`
	ContentLength   int64  `json:"contentLength"`
	ContentType     string `json:"contentType"`
	ContentSha1     string `json:"contentSha1"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
	Action          string `json:"action"`
}

type b2ListFilesResponse struct {
	Files        []b2File `json:"files"`
	NextFileName *string  `json:"nextFileName"`
}

type b2DownloadAuthResponse struct {
	AuthorizationToken string `json:"authorizationToken"`
}

// NewB2Store 创建 B2 存储，client 为空时按配置超时创建.
func NewB2Store(cfg *configs.BlobConfig, client *http.Client) (*B2Store, error) {
	if cfg.B2.KeyID == "" || cfg.B2.ApplicationKey == "" {
		return nil, errors.New("b2 key_id and application_key are required")
	}

	if client == nil {
		client = &http.Client{Timeout: cfg.GetTimeout()}
	}

	return &B2Store{cfg: *cfg, client: client}, nil
}

func (s *B2Store) Name() string   { return string(configs.BlobTypeB2) }
func (s *B2Store) Bucket() string { return s.cfg.Bucket }

// Authenticate 强制重新授权.
func (s *B2Store) Authenticate(ctx context.Context) error {
	s.invalidate()

	_, err := s.ensureAuthenticated(ctx)

	return err
}

// ensureAuthenticated 首次使用时授权，并解析 bucketId.
func (s *B2Store) ensureAuthenticated(ctx context.Context) (*b2Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.session != nil {
		return s.session, nil
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(s.cfg.B2.APIURL, "/")+b2APIPrefix+"b2_authorize_account", http.NoBody)
	if err != nil {
		return nil, errs.Internal(err)
	}

	req.SetBasicAuth(s.cfg.B2.KeyID, s.cfg.B2.ApplicationKey)

	var auth b2AuthorizeResponse
	if err := s.do(req, &auth); err != nil {
		return nil, classify("b2 authorize", err)
	}

	sess := &b2Session{
		accountID:   auth.AccountID,
		authToken:   auth.AuthorizationToken,
		apiURL:      strings.TrimRight(auth.APIURL, "/"),
		downloadURL: strings.TrimRight(auth.DownloadURL, "/"),
	}

	var buckets b2ListBucketsResponse

	body := map[string]any{"accountId": sess.accountID, "bucketName": s.cfg.Bucket}
	if err := s.post(ctx, sess, "b2_list_buckets", body, &buckets); err != nil {
		return nil, classify("b2 list buckets", err)
	}

	for _, b := range buckets.Buckets {
		if b.BucketName == s.cfg.Bucket {
			sess.bucketID = b.BucketID
		}
	}

	if sess.bucketID == "" {
		return nil, errs.Wrap(errs.KindInternal, "storage bucket not found", fmt.Errorf("b2 bucket %q not found", s.cfg.Bucket))
	}

	s.session = sess

	nlog.Logger().Info().Str("bucket", s.cfg.Bucket).Msg("b2 authorized")

	return sess, nil
}

func (s *B2Store) invalidate() {
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
}

// call 执行一次需要会话的 API 调用，遇到 401 时重新授权并重试一次.
func (s *B2Store) call(ctx context.Context, op string, fn func(ctx context.Context, sess *b2Session) error) error {
	for attempt := 0; ; attempt++ {
		sess, err := s.ensureAuthenticated(ctx)
		if err != nil {
			return err
		}

		cctx, cancel := s.withTimeout(ctx)
		err = fn(cctx, sess)

		cancel()

		if err == nil {
			return nil
		}

		var be *b2Error
		if attempt == 0 && errors.As(err, &be) && be.Status == http.StatusUnauthorized {
			nlog.Logger().Debug().Str("op", op).Msg("b2 token rejected, re-authorizing")
			s.invalidate()

			continue
		}

		return classify(op, err)
	}
}

// PresignUpload 返回 B2 上传地址与上传令牌，客户端以 POST 直传.
func (s *B2Store) PresignUpload(ctx context.Context, key, contentType string, expiry time.Duration) (*UploadSlot, error) {
	var up b2UploadURLResponse

	err := s.call(ctx, "b2 get upload url", func(ctx context.Context, sess *b2Session) error {
		return s.post(ctx, sess, "b2_get_upload_url", map[string]any{"bucketId": sess.bucketID}, &up)
	})
	if err != nil {
		return nil, err
	}

	if expiry <= 0 || expiry > b2UploadURLTTL {
		expiry = b2UploadURLTTL
	}

	if contentType == "" {
		contentType = "b2/x-auto"
	}

	return &UploadSlot{
		URL:    up.UploadURL,
		Method: http.MethodPost,
		Headers: map[string]string{
			"Authorization":     up.AuthorizationToken,
			"X-Bz-File-Name":    encodeB2Name(key),
			"Content-Type":      contentType,
			"X-Bz-Content-Sha1": "do_not_verify",
		},
		ExpiresAt: time.Now().Add(expiry),
	}, nil
}

// Put 流式上传，SHA1 在读取过程中计算并附加在末尾.
// 上传 URL 被拒绝时无法重放 reader，因此只对获取上传 URL 重试.
func (s *B2Store) Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (*Object, error) {
	var up b2UploadURLResponse

	err := s.call(ctx, "b2 get upload url", func(ctx context.Context, sess *b2Session) error {
		return s.post(ctx, sess, "b2_get_upload_url", map[string]any{"bucketId": sess.bucketID}, &up)
	})
	if err != nil {
		return nil, err
	}

	if contentType == "" {
		contentType = "b2/x-auto"
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	h := sha1.New() //nolint:gosec
	body := io.MultiReader(io.TeeReader(io.LimitReader(r, size), h), &sha1Trailer{h: h})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, up.UploadURL, body)
	if err != nil {
		return nil, errs.Internal(err)
	}

	req.ContentLength = size + b2SHA1HexLen
	req.Header.Set("Authorization", up.AuthorizationToken)
	req.Header.Set("X-Bz-File-Name", encodeB2Name(key))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Bz-Content-Sha1", b2SHA1AtEnd)

	var f b2File
	if err := s.do(req, &f); err != nil {
		var be *b2Error
		if errors.As(err, &be) && be.Status == http.StatusUnauthorized {
			s.invalidate()
		}

		return nil, classify("b2 upload", err)
	}

	return f.object(), nil
}

// sha1Trailer 在内容读完后输出 SHA1 十六进制.
type sha1Trailer struct {
	h    hash.Hash
	buf  []byte
	done bool
}

func (t *sha1Trailer) Read(p []byte) (int, error) {
	if !t.done {
		t.buf = []byte(hex.EncodeToString(t.h.Sum(nil)))
		t.done = true
	}

	if len(t.buf) == 0 {
		return 0, io.EOF
	}

	n := copy(p, t.buf)
	t.buf = t.buf[n:]

	return n, nil
}

// Stat 通过 b2_list_file_names 精确查找文件.
func (s *B2Store) Stat(ctx context.Context, key string) (*Object, error) {
	f, err := s.lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	return f.object(), nil
}

func (s *B2Store) lookup(ctx context.Context, key string) (*b2File, error) {
	var out b2ListFilesResponse

	err := s.call(ctx, "b2 list file names", func(ctx context.Context, sess *b2Session) error {
		return s.post(ctx, sess, "b2_list_file_names", map[string]any{
			"bucketId":      sess.bucketID,
			"startFileName": key,
			"prefix":        key,
			"maxFileCount":  1,
		}, &out)
	})
	if err != nil {
		return nil, err
	}

	for i := range out.Files {
		if out.Files[i].FileName == key {
			return &out.Files[i], nil
		}
	}

	return nil, ErrNotFound
}

// Open 以账户令牌从下载地址读取.
func (s *B2Store) Open(ctx context.Context, key string) (io.ReadCloser, *Object, error) {
	sess, err := s.ensureAuthenticated(ctx)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.fileURL(sess, key), http.NoBody)
	if err != nil {
		return nil, nil, errs.Internal(err)
	}

	req.Header.Set("Authorization", sess.authToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, classify("b2 download", err)
	}

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			return nil, nil, ErrNotFound
		}

		if resp.StatusCode == http.StatusUnauthorized {
			s.invalidate()
		}

		return nil, nil, classify("b2 download", decodeB2Error(resp))
	}

	obj := &Object{
		Key:         key,
		Size:        resp.ContentLength,
		ContentType: resp.Header.Get("Content-Type"),
		ObjectID:    resp.Header.Get("X-Bz-File-Id"),
	}

	return resp.Body, obj, nil
}

// ObjectURL 公开桶返回直链，私有桶附带限定前缀的下载授权.
func (s *B2Store) ObjectURL(ctx context.Context, key string) (string, error) {
	sess, err := s.ensureAuthenticated(ctx)
	if err != nil {
		return "", err
	}

	u := s.fileURL(sess, key)
	if !s.cfg.B2.Private {
		return u, nil
	}

	var auth b2DownloadAuthResponse

	err = s.call(ctx, "b2 get download authorization", func(ctx context.Context, sess *b2Session) error {
		return s.post(ctx, sess, "b2_get_download_authorization", map[string]any{
			"bucketId":               sess.bucketID,
			"fileNamePrefix":         key,
			"validDurationInSeconds": int(s.cfg.GetPresignExpiry().Seconds()),
		}, &auth)
	})
	if err != nil {
		return "", err
	}

	return u + "?Authorization=" + url.QueryEscape(auth.AuthorizationToken), nil
}

// Delete 删除文件版本，objectID 为空时先查找 fileId.
func (s *B2Store) Delete(ctx context.Context, key, objectID string) error {
	if objectID == "" {
		f, err := s.lookup(ctx, key)
		if errors.Is(err, ErrNotFound) {
			return nil
		}

		if err != nil {
			return err
		}

		objectID = f.FileID
	}

	err := s.call(ctx, "b2 delete file version", func(ctx context.Context, sess *b2Session) error {
		return s.post(ctx, sess, "b2_delete_file_version", map[string]any{
			"fileName": key,
			"fileId":   objectID,
		}, nil)
	})

	var be *b2Error
	if errors.As(err, &be) && (be.Code == "file_not_present" || be.Status == http.StatusNotFound) {
		return nil
	}

	return err
}

// List 按前缀列出文件.
func (s *B2Store) List(ctx context.Context, prefix string, limit int) ([]Object, error) {
	if limit <= 0 || limit > b2DefaultList {
		limit = b2DefaultList
	}

	var out b2ListFilesResponse

	err := s.call(ctx, "b2 list file names", func(ctx context.Context, sess *b2Session) error {
		return s.post(ctx, sess, "b2_list_file_names", map[string]any{
			"bucketId":     sess.bucketID,
			"prefix":       prefix,
			"maxFileCount": limit,
		}, &out)
	})
	if err != nil {
		return nil, err
	}

	objs := make([]Object, 0, len(out.Files))
	for i := range out.Files {
		objs = append(objs, *out.Files[i].object())
	}

	return objs, nil
}

func (s *B2Store) fileURL(sess *b2Session, key string) string {
	return sess.downloadURL + "/file/" + url.PathEscape(s.cfg.Bucket) + "/" + encodeB2Name(key)
}

func (s *B2Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t := s.cfg.GetTimeout(); t > 0 {
		return context.WithTimeout(ctx, t)
	}

	return context.WithCancel(ctx)
}

// post 调用 JSON API.
func (s *B2Store) post(ctx context.Context, sess *b2Session, op string, in, out any) error {
	data, err := sonic.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sess.apiURL+b2APIPrefix+op, bytes.NewReader(data))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", sess.authToken)
	req.Header.Set("Content-Type", "application/json")

	return s.do(req, out)
}

// do 发送请求并解析响应，非 2xx 转为 *b2Error.
func (s *B2Store) do(req *http.Request, out any) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return decodeB2Error(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if err := sonic.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode b2 response: %w", err)
	}

	return nil
}

func decodeB2Error(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	be := &b2Error{}
	if err := sonic.Unmarshal(body, be); err != nil || be.Code == "" {
		be.Code = http.StatusText(resp.StatusCode)
		be.Message = strings.TrimSpace(string(body))
	}

	be.Status = resp.StatusCode

	return be
}

// classify 把底层错误映射为业务错误：超时与连接失败为 Unavailable，其余显式拒绝为 Internal.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}

	var e *errs.Error
	if errors.As(err, &e) || errors.Is(err, ErrNotFound) {
		return err
	}

	if isTransient(err) {
		return errs.Unavailable("storage service unavailable", fmt.Errorf("%s: %w", op, err))
	}

	var be *b2Error
	if errors.As(err, &be) {
		switch {
		case be.Status == http.StatusServiceUnavailable || be.Status == http.StatusRequestTimeout || be.Status == http.StatusTooManyRequests:
			return errs.Unavailable("storage service unavailable", fmt.Errorf("%s: %w", op, err))
		case be.Status == http.StatusUnauthorized:
			return errs.Wrap(errs.KindInternal, "storage authorization failed", fmt.Errorf("%s: %w", op, err))
		}
	}

	return errs.Internal(fmt.Errorf("%s: %w", op, err))
}

// isTransient 超时或连接失败.
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var oe *net.OpError

	return errors.As(err, &oe)
}

func (f *b2File) object() *Object {
	o := &Object{
		Key:         f.FileName,
		Size:        f.ContentLength,
		ContentType: f.ContentType,
		ObjectID:    f.FileID,
		ETag:        strings.TrimPrefix(f.ContentSha1, "unverified:"),
	}

	if f.UploadTimestamp > 0 {
		o.UpdatedAt = time.UnixMilli(f.UploadTimestamp)
	}

	return o
}

// encodeB2Name 按段百分号编码，保留路径分隔符.
func encodeB2Name(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}

	return strings.Join(parts, "/")
}
