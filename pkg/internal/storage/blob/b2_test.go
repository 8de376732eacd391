package blob_test

import (
	"bytes"
	"context"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
)

// fakeB2 模拟 B2 原生 API 的最小子集.
type fakeB2 struct {
	t   *testing.T
	srv *httptest.Server

	mu        sync.Mutex
	token     string
	tokenGen  int
	authCalls int
	files     map[string][]byte
	ids       map[string]string
	down      bool
}

func newFakeB2(t *testing.T) *fakeB2 {
	t.Helper()

	f := &fakeB2{t: t, files: map[string][]byte{}, ids: map[string]string{}}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)

	return f
}

// expireToken 使当前令牌失效.
func (f *fakeB2) expireToken() {
	f.mu.Lock()
	f.token = "revoked"
	f.mu.Unlock()
}

func (f *fakeB2) writeErr(w http.ResponseWriter, status int, code string) {
	w.WriteHeader(status)
	_, _ = fmt.Fprintf(w, `{"status":%d,"code":%q,"message":"fake"}`, status, code)
}

func (f *fakeB2) writeJSON(w http.ResponseWriter, v any) {
	data, err := sonic.Marshal(v)
	require.NoError(f.t, err)

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(data)
}

func (f *fakeB2) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.down {
		f.writeErr(w, http.StatusServiceUnavailable, "service_unavailable")
		return
	}

	if r.URL.Path == "/b2api/v2/b2_authorize_account" {
		id, key, ok := r.BasicAuth()
		if !ok || id != "kid" || key != "secret" {
			f.writeErr(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		f.authCalls++
		f.tokenGen++
		f.token = fmt.Sprintf("tok-%d", f.tokenGen)
		f.writeJSON(w, map[string]any{
			"accountId":          "acc",
			"authorizationToken": f.token,
			"apiUrl":             f.srv.URL,
			"downloadUrl":        f.srv.URL,
		})

		return
	}

	if r.URL.Path == "/upload" {
		f.handleUpload(w, r)
		return
	}

	if r.Header.Get("Authorization") != f.token {
		f.writeErr(w, http.StatusUnauthorized, "expired_auth_token")
		return
	}

	if strings.HasPrefix(r.URL.Path, "/file/cloudvault/") {
		key, _ := url.PathUnescape(strings.TrimPrefix(r.URL.Path, "/file/cloudvault/"))

		data, ok := f.files[key]
		if !ok {
			f.writeErr(w, http.StatusNotFound, "not_found")
			return
		}

		w.Header().Set("X-Bz-File-Id", f.ids[key])
		_, _ = w.Write(data)

		return
	}

	var in map[string]any
	body, _ := io.ReadAll(r.Body)
	_ = sonic.Unmarshal(body, &in)

	switch strings.TrimPrefix(r.URL.Path, "/b2api/v2/") {
	case "b2_list_buckets":
		f.writeJSON(w, map[string]any{"buckets": []map[string]string{{"bucketId": "bkt-1", "bucketName": "cloudvault"}}})
	case "b2_get_upload_url":
		f.writeJSON(w, map[string]any{"bucketId": "bkt-1", "uploadUrl": f.srv.URL + "/upload", "authorizationToken": "up-tok"})
	case "b2_list_file_names":
		prefix, _ := in["prefix"].(string)

		names := make([]string, 0)
		for k := range f.files {
			if strings.HasPrefix(k, prefix) {
				names = append(names, k)
			}
		}

		sort.Strings(names)

		files := make([]map[string]any, 0, len(names))
		for _, k := range names {
			files = append(files, map[string]any{"fileId": f.ids[k], "fileName": k, "contentLength": len(f.files[k])})
		}

		f.writeJSON(w, map[string]any{"files": files})
	case "b2_delete_file_version":
		name, _ := in["fileName"].(string)
		if _, ok := f.files[name]; !ok {
			f.writeErr(w, http.StatusBadRequest, "file_not_present")
			return
		}

		delete(f.files, name)
		f.writeJSON(w, map[string]any{"fileName": name})
	case "b2_get_download_authorization":
		f.writeJSON(w, map[string]any{"authorizationToken": "dl-tok"})
	default:
		f.writeErr(w, http.StatusBadRequest, "bad_request")
	}
}

func (f *fakeB2) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "up-tok" {
		f.writeErr(w, http.StatusUnauthorized, "bad_auth_token")
		return
	}

	body, err := io.ReadAll(r.Body)
	require.NoError(f.t, err)

	if r.Header.Get("X-Bz-Content-Sha1") != "hex_digits_at_end" || len(body) < 40 {
		f.writeErr(w, http.StatusBadRequest, "bad_request")
		return
	}

	content, digest := body[:len(body)-40], string(body[len(body)-40:])
	sum := sha1.Sum(content) //nolint:gosec

	if hex.EncodeToString(sum[:]) != digest {
		f.writeErr(w, http.StatusBadRequest, "bad_request")
		return
	}

	name, _ := url.PathUnescape(r.Header.Get("X-Bz-File-Name"))
	f.files[name] = content
	f.ids[name] = "fid-" + name

	f.writeJSON(w, map[string]any{
		"fileId":        f.ids[name],
		"fileName":      name,
		"contentLength": len(content),
		"contentType":   r.Header.Get("Content-Type"),
		"contentSha1":   digest,
	})
}

func newB2(t *testing.T, f *fakeB2, private bool) *blob.B2Store {
	t.Helper()

	cfg := &configs.BlobConfig{
		Type:          configs.BlobTypeB2,
		Bucket:        "cloudvault",
		PresignExpiry: 600,
		Timeout:       5,
		B2:            configs.B2BlobConfig{APIURL: f.srv.URL, KeyID: "kid", ApplicationKey: "secret", Private: private},
	}

	store, err := blob.NewB2Store(cfg, f.srv.Client())
	require.NoError(t, err)

	return store
}

func TestB2RequiresCredentials(t *testing.T) {
	_, err := blob.NewB2Store(&configs.BlobConfig{Bucket: "cloudvault"}, nil)
	assert.Error(t, err)
}

func TestB2PutStatOpenDelete(t *testing.T) {
	ctx := context.Background()
	f := newFakeB2(t)
	store := newB2(t, f, false)

	key := "users/u1/1700000000000-abcdef0123456789-报告 final.pdf"
	content := []byte("hello b2")

	obj, err := store.Put(ctx, key, bytes.NewReader(content), int64(len(content)), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, key, obj.Key)
	assert.Equal(t, int64(len(content)), obj.Size)
	assert.Equal(t, "fid-"+key, obj.ObjectID)

	st, err := store.Stat(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, obj.ObjectID, st.ObjectID)

	rc, _, err := store.Open(ctx, key)
	require.NoError(t, err)

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, content, got)

	objs, err := store.List(ctx, blob.UserPrefix("u1"), 0)
	require.NoError(t, err)
	assert.Len(t, objs, 1)

	require.NoError(t, store.Delete(ctx, key, ""))

	_, err = store.Stat(ctx, key)
	assert.ErrorIs(t, err, blob.ErrNotFound)

	// 重复删除不报错
	require.NoError(t, store.Delete(ctx, key, "fid-"+key))
}

func TestB2OpenMissing(t *testing.T) {
	store := newB2(t, newFakeB2(t), false)

	_, _, err := store.Open(context.Background(), "users/u1/missing")
	assert.ErrorIs(t, err, blob.ErrNotFound)
}

func TestB2ReauthorizesOnExpiredToken(t *testing.T) {
	ctx := context.Background()
	f := newFakeB2(t)
	store := newB2(t, f, false)

	require.NoError(t, store.Authenticate(ctx))
	f.expireToken()

	_, err := store.List(ctx, "", 10)
	require.NoError(t, err)

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.Equal(t, 2, f.authCalls)
}

func TestB2PresignUpload(t *testing.T) {
	store := newB2(t, newFakeB2(t), false)

	slot, err := store.PresignUpload(context.Background(), "users/u1/a b.txt", "", 0)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, slot.Method)
	assert.Equal(t, "up-tok", slot.Headers["Authorization"])
	assert.Equal(t, "users/u1/a%20b.txt", slot.Headers["X-Bz-File-Name"])
	assert.Equal(t, "b2/x-auto", slot.Headers["Content-Type"])
	assert.True(t, strings.HasSuffix(slot.URL, "/upload"))
}

func TestB2ObjectURL(t *testing.T) {
	ctx := context.Background()
	f := newFakeB2(t)

	u, err := newB2(t, f, false).ObjectURL(ctx, "users/u1/a.txt")
	require.NoError(t, err)
	assert.Equal(t, f.srv.URL+"/file/cloudvault/users/u1/a.txt", u)

	u, err = newB2(t, f, true).ObjectURL(ctx, "users/u1/a.txt")
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(u, "?Authorization=dl-tok"))
}

func TestB2BadCredentials(t *testing.T) {
	f := newFakeB2(t)
	cfg := &configs.BlobConfig{
		Bucket:  "cloudvault",
		Timeout: 5,
		B2:      configs.B2BlobConfig{APIURL: f.srv.URL, KeyID: "kid", ApplicationKey: "wrong"},
	}

	store, err := blob.NewB2Store(cfg, f.srv.Client())
	require.NoError(t, err)

	err = store.Authenticate(context.Background())
	require.Error(t, err)
	assert.Equal(t, errs.KindInternal, errs.KindOf(err))
}

func TestB2UnavailableTripsBreaker(t *testing.T) {
	ctx := context.Background()
	f := newFakeB2(t)
	f.down = true

	store := blob.WithBreaker(newB2(t, f, false), configs.BlobBreakerConfig{
		Enabled:        true,
		FailureRate:    0.5,
		MinRequests:    2,
		TimeoutSeconds: 60,
	})

	for range 2 {
		_, err := store.Stat(ctx, "users/u1/x")
		require.Error(t, err)
		assert.True(t, errs.Is(err, errs.KindUnavailable))
	}

	// 熔断打开后不再访问后端
	f.mu.Lock()
	f.down = false
	f.mu.Unlock()

	_, err := store.Stat(ctx, "users/u1/x")
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindUnavailable))
}
