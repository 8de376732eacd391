// Package app 组装配置、存储、中间件与路由，负责 HTTP 服务的启动与优雅退出.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/cloudvault/pkg/api"
	appcache "github.com/yeisme/cloudvault/pkg/cache"
	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/identity"
	"github.com/yeisme/cloudvault/pkg/internal/jobs"
	"github.com/yeisme/cloudvault/pkg/internal/router"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/storage"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	"github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/metrics"
	"github.com/yeisme/cloudvault/pkg/middleware"
	"github.com/yeisme/cloudvault/pkg/rule"
	"github.com/yeisme/cloudvault/pkg/scheduler"
	"github.com/yeisme/cloudvault/pkg/tracing"
)

// App 持有 HTTP 引擎及其依赖的资源，Run 负责它们的生命周期.
type App struct {
	Engine *gin.Engine

	config  *configs.AppConfig
	manager *storage.Manager
	sched   *scheduler.Scheduler
}

// NewApp 加载配置并初始化所有依赖，任一步骤失败返回错误.
// overrides 在配置加载后、依赖初始化前执行.
func NewApp(configPath string, overrides ...func(*configs.AppConfig)) (*App, error) {
	ctx := context.Background()

	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	config := configs.GetConfig()
	for _, o := range overrides {
		o(config)
	}

	if err := configs.Validate(); err != nil {
		return nil, err
	}

	if err := rule.RegisterBindingRules(); err != nil {
		return nil, err
	}

	if err := tracing.InitTracer(config.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(config.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	manager, err := storage.Init(ctx)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}

	l := log.Logger()

	configs.OnReload(func(prev, next *configs.AppConfig) {
		if prev.Log.Level == next.Log.Level {
			return
		}

		if err := log.SetLevel(next.Log.Level); err != nil {
			l.Warn().Err(err).Msg("reload log level")
			return
		}

		l.Info().Str("level", next.Log.Level).Msg("log level reloaded")
	})

	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	if !config.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	var store kv.KVStore
	if manager.KV != nil {
		store = manager.KV.KVStore
	}

	verifier, err := identity.New(&config.Auth, store)
	if err != nil {
		return nil, fmt.Errorf("init auth: %w", err)
	}

	sched, err := scheduler.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(sched, manager, config.Jobs); err != nil {
		_ = sched.Shutdown()
		return nil, err
	}

	engine := gin.New()
	if err := engine.SetTrustedProxies(config.Server.TrustedProxies); err != nil {
		return nil, fmt.Errorf("trusted proxies: %w", err)
	}

	// 节点间 groupcache 请求在鉴权之前注册，不经过业务中间件
	if pg, ok := store.(interface{ PeerHandler() http.Handler }); ok {
		if h := pg.PeerHandler(); h != nil {
			engine.Any(config.KV.Groupcache.BasePath+"*key", gin.Recovery(), gin.WrapH(h))
		}
	}

	engine.Use(
		gin.Recovery(),
		middleware.CORSMiddleware(config.Server),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(config.Metrics.Path),
		middleware.GinLoggerMiddleware(),
		middleware.GzipMiddleware(config.Server.Gzip, "^"+regexp.QuoteMeta(config.Metrics.Path)+"$"),
		middleware.CircuitBreakerMiddleware(config.CircuitBreaker),
		middleware.StorageMiddleware(manager),
		middleware.AuthMiddleware(config.Auth, verifier, resolveUser),
		middleware.RoleMiddleware(config.Auth.AdminEmails),
		middleware.RateLimitMiddleware(config.RateLimit),
	)

	if err := metrics.StartMetricsServer(config.Metrics, engine); err != nil {
		return nil, fmt.Errorf("start metrics: %w", err)
	}

	opts := router.Options{Scheduler: sched}
	if store != nil {
		opts.Cache = appcache.NewCache(store, appcache.WithNamespace("resp"))
	}

	api.RegisterGroup(engine, opts)

	return &App{
		Engine:  engine,
		config:  config,
		manager: manager,
		sched:   sched,
	}, nil
}

// resolveUser 外部身份首次出现时创建本地用户与根目录.
func resolveUser(ctx context.Context, id *identity.Identity) (*identity.Identity, error) {
	u, err := service.NewUserService(ctx).GetOrCreate(ctx, id)
	if err != nil {
		return nil, err
	}

	return &identity.Identity{UserID: u.ID, Email: u.Email, Name: u.Name}, nil
}

// Run 启动调度器与 HTTP 服务，收到 SIGINT/SIGTERM 后优雅退出.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	l := log.Logger()

	srv := &http.Server{
		Addr:              a.config.Server.Addr(),
		Handler:           a.Engine,
		ReadHeaderTimeout: a.config.Server.ReadHeaderTimeout,
		IdleTimeout:       a.config.Server.IdleTimeout,
	}

	a.sched.Start()

	errCh := make(chan error, 1)

	go func() {
		l.Info().Str("addr", srv.Addr).Str("version", configs.AppVersion).Msg("cloudvault listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	var runErr error

	select {
	case <-ctx.Done():
		l.Info().Msg("shutting down")
	case runErr = <-errCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.config.Server.ShutdownGrace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("http shutdown")
	}

	if err := a.sched.Shutdown(); err != nil {
		l.Warn().Err(err).Msg("scheduler shutdown")
	}

	if err := tracing.ShutdownTracer(shutdownCtx); err != nil {
		l.Warn().Err(err).Msg("tracer shutdown")
	}

	if err := a.manager.Close(); err != nil {
		l.Warn().Err(err).Msg("storage close")
	}

	return runErr
}
