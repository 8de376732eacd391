// Package db 处理数据库存储操作.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	gormPrometheus "gorm.io/plugin/prometheus"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/model"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

// Driver 一种数据库驱动：由配置生成 DSN，再由 DSN 打开 dialector.
type Driver struct {
	DSN  func(c *configs.DBConfig) string
	Open func(dsn string) gorm.Dialector
}

var drivers = map[configs.DBType]Driver{}

// RegisterDriver 以一个或多个类型别名注册驱动，由各驱动文件的 init 调用.
func RegisterDriver(d Driver, types ...configs.DBType) {
	for _, t := range types {
		drivers[t] = d
	}
}

// RegisteredTypes 返回编译进来的数据库类型，按名称排序.
func RegisteredTypes() []configs.DBType {
	types := make([]configs.DBType, 0, len(drivers))
	for t := range drivers {
		types = append(types, t)
	}

	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })

	return types
}

// sqliteFile DSN 的文件部分，以 ? 结尾，后接驱动各自的 pragma 参数.
func sqliteFile(c *configs.DBConfig) string {
	if c.Memory {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&", c.Database)
	}

	name := c.Database
	if !strings.HasSuffix(name, ".db") {
		name += ".db"
	}

	return "file:" + name + "?"
}

const slowQuery = 200 * time.Millisecond

// Client 包装 GORM DB 客户端.
type Client struct {
	*gorm.DB
}

// New 按全局配置建立数据库连接.
func New(ctx context.Context) (*Client, error) {
	cfg := configs.GetConfig().DB

	d, ok := drivers[cfg.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type %q (compiled: %v)", cfg.Type, RegisteredTypes())
	}

	client, err := Open(ctx, d.Open(d.DSN(&cfg)))
	if err != nil {
		return nil, err
	}

	// 获取底层 SQL DB 以配置连接池
	sqlDB, err := client.DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if configs.GetConfig().Metrics.Enabled {
		if err := client.RegisterGORMMetrics(cfg.Database); err != nil {
			return nil, fmt.Errorf("failed to register GORM metrics: %w", err)
		}

		nlog.Logger().Info().Msg("GORM metrics 注册成功")
	}

	nlog.Logger().Info().
		Str("driver", cfg.DriverName()).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("数据库连接成功")

	return client, nil
}

// Open 使用给定 dialector 打开连接，日志统一写入 zerolog.
func Open(ctx context.Context, dialector gorm.Dialector) (*Client, error) {
	level := logger.Warn
	if configs.GetConfig().Server.Debug {
		level = logger.Info
	}

	// 配置 GORM 日志
	gormLogger := logger.New(
		nlog.Logger(),
		logger.Config{
			SlowThreshold:             slowQuery,
			LogLevel:                  level,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      !configs.GetConfig().Server.Debug,
		},
	)

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger:         gormLogger,
		PrepareStmt:    true,
		TranslateError: true, // 唯一约束冲突统一为 gorm.ErrDuplicatedKey
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// 测试连接
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Client{DB: db}, nil
}

// Migrate 迁移全部业务表.
func (c *Client) Migrate(ctx context.Context) error {
	if err := model.AutoMigrate(c.WithContext(ctx)); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// GetDB 返回 GORM DB 实例.
func (c *Client) GetDB() *gorm.DB {
	return c.DB
}

// HealthCheck 检查数据库连通性.
func (c *Client) HealthCheck(ctx context.Context) error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	return sqlDB.PingContext(ctx)
}

// Stats 连接池统计.
func (c *Client) Stats() (sql.DBStats, error) {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return sql.DBStats{}, err
	}

	return sqlDB.Stats(), nil
}

const defaultGORMMetricsRefreshInterval = 15 // 秒

// RegisterGORMMetrics 注册GORM指标到现有注册表.
func (c *Client) RegisterGORMMetrics(dbName string) error {
	// 使用现有的注册表而不是让插件创建新的
	promConfig := gormPrometheus.Config{
		DBName:          dbName,
		RefreshInterval: defaultGORMMetricsRefreshInterval,
		StartServer:     false, // 不启动独立的服务器
	}

	if err := c.Use(gormPrometheus.New(promConfig)); err != nil {
		return fmt.Errorf("failed to register GORM prometheus plugin: %w", err)
	}

	return nil
}

// Close 关闭底层连接池.
func (c *Client) Close() error {
	sqlDB, err := c.DB.DB()
	if err != nil {
		return err
	}

	return sqlDB.Close()
}
