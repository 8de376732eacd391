package router_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/internal/router"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/storage"
	"github.com/yeisme/cloudvault/pkg/internal/storage/db"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	"github.com/yeisme/cloudvault/pkg/internal/testutil"
	"github.com/yeisme/cloudvault/pkg/middleware"
	"github.com/yeisme/cloudvault/pkg/rule"
)

func resolve(ctx context.Context, id *identity.Identity) (*identity.Identity, error) {
	u, err := service.NewUserService(ctx).GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	return &identity.Identity{UserID: u.ID, Email: u.Email, Name: u.Name}, nil
}

// newServer 组装与 app 相同的中间件顺序，存储使用内存 SQLite 与临时目录.
func newServer(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	require.NoError(t, configs.InitConfig(t.TempDir()))
	require.NoError(t, rule.RegisterBindingRules())

	cfg := configs.GetConfig()
	cfg.Auth.Enabled = true
	cfg.Auth.AdminEmails = []string{"root@example.com"}

	store, err := kv.NewKVStore(context.Background(), kv.KVTypeMemory, nil)
	require.NoError(t, err)

	mgr := storage.NewManager(&db.Client{DB: testutil.NewDB(t)}, testutil.NewBlobStore(t, ""), &kv.Client{KVStore: store}, nil)

	e := gin.New()
	e.Use(
		middleware.StorageMiddleware(mgr),
		middleware.AuthMiddleware(cfg.Auth, identity.HeaderVerifier{}, resolve),
		middleware.RoleMiddleware(cfg.Auth.AdminEmails),
	)
	router.Register(e.Group("/api/v1"), router.Options{})

	return e
}

func call(e http.Handler, method, path, email, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}

	if email != "" {
		req.Header.Set(identity.HeaderEmail, email)
	}

	w := httptest.NewRecorder()
	e.ServeHTTP(w, req)

	return w
}

func TestHealthRoutes(t *testing.T) {
	e := newServer(t)

	w := call(e, http.MethodGet, "/api/v1/health", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"db":"ok"`)
	assert.Contains(t, w.Body.String(), `"kv":"ok"`)

	w = call(e, http.MethodGet, "/api/v1/health/mq", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"disabled"`)
}

func TestFolderLifecycleOverHTTP(t *testing.T) {
	e := newServer(t)

	w := call(e, http.MethodPost, "/api/v1/folders", "ana@example.com", `{"name":"photos"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	require.NoError(t, sonic.UnmarshalString(w.Body.String(), &created))
	assert.Equal(t, "photos", created.Name)

	w = call(e, http.MethodGet, "/api/v1/folders/"+created.ID, "ana@example.com", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"photos"`)

	// 私有文件夹对其他人不可见，/folders 不在 optional 路径上
	w = call(e, http.MethodGet, "/api/v1/folders/"+created.ID, "bob@example.com", "")
	assert.Contains(t, []int{http.StatusForbidden, http.StatusNotFound}, w.Code)

	w = call(e, http.MethodGet, "/api/v1/folders/"+created.ID, "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(e, http.MethodPost, "/api/v1/folders", "ana@example.com", `{"name":"a/b"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "objectname")

	w = call(e, http.MethodPost, "/api/v1/folders", "", `{"name":"x"}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSchedulerRoutesGate(t *testing.T) {
	e := newServer(t)

	w := call(e, http.MethodGet, "/api/v1/scheduler/jobs", "ana@example.com", "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	// 管理员可以访问，但未配置调度器
	w = call(e, http.MethodGet, "/api/v1/scheduler/jobs", "root@example.com", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestAuthRoutesGate(t *testing.T) {
	e := newServer(t)

	// 注册登录无需凭证，请求体校验失败
	w := call(e, http.MethodPost, "/api/v1/auth/signup", "", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())

	// 修改资料需要登录
	w = call(e, http.MethodPatch, "/api/v1/auth/update", "", `{}`)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = call(e, http.MethodPatch, "/api/v1/auth/update", "ana@example.com", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
