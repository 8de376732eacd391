// Package storage 聚合数据库、文件内容存储、KV 与消息队列.
//
// Example:
//
// 初始化
//
//	 ctx := context.Background()
//	 mgr, err := storage.Init(ctx)
//
//		if err != nil {
//		    // 处理错误
//		}
//
// 获取存储客户端
//
//	dbClient := mgr.GetDBClient()
//	blobStore := mgr.GetBlobStore()
package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yeisme/cloudvault/pkg/configs"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	dbc "github.com/yeisme/cloudvault/pkg/internal/storage/db"
	kvc "github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	mqc "github.com/yeisme/cloudvault/pkg/internal/storage/mq"
	nlog "github.com/yeisme/cloudvault/pkg/log"
)

// Manager 聚合所有存储资源.
type Manager struct {
	DB   *dbc.Client
	Blob blob.Store
	KV   *kvc.Client
	MQ   *mqc.Client
}

var (
	mgr     *Manager
	mgrErr  error
	mgrOnce sync.Once
)

// Init 初始化默认存储，使用全局配置.重复调用只返回已初始化实例.
func Init(ctx context.Context) (*Manager, error) {
	mgrOnce.Do(func() {
		m := &Manager{}

		dbi, err := dbc.New(ctx)
		if err != nil {
			mgrErr = err
			return
		}

		m.DB = dbi

		if err := dbi.Migrate(ctx); err != nil {
			mgrErr = err
			return
		}

		if m.Blob, err = blob.New(ctx); err != nil {
			mgrErr = err
			return
		}

		// 启动时校验一次凭据，失败只记录，首次使用时会再次授权
		if err := m.Blob.Authenticate(ctx); err != nil {
			nlog.Logger().Warn().Err(err).Str("blob", m.Blob.Name()).Msg("blob authenticate failed")
		}

		if m.KV, err = kvc.NewKVClient(ctx); err != nil {
			mgrErr = fmt.Errorf("init kv: %w", err)
			return
		}

		if configs.GetConfig().Events.Enabled {
			if m.MQ, err = mqc.New(ctx); err != nil {
				mgrErr = err
				return
			}
		}

		mgr = m

		nlog.Logger().Info().
			Str("blob", m.Blob.Name()).
			Str("kv", configs.GetConfig().KV.Type).
			Bool("events", m.MQ != nil).
			Msg("storage manager initialized")
	})

	return mgr, mgrErr
}

// NewManager 由已创建的客户端组装 Manager，测试与命令行工具使用.
func NewManager(db *dbc.Client, store blob.Store, kv *kvc.Client, mq *mqc.Client) *Manager {
	return &Manager{DB: db, Blob: store, KV: kv, MQ: mq}
}

// GetDBClient 获取 DB 客户端.
func (m *Manager) GetDBClient() *dbc.Client {
	return m.DB
}

// GetBlobStore 获取文件内容存储.
func (m *Manager) GetBlobStore() blob.Store {
	return m.Blob
}

// GetKVClient 获取 KV 客户端.
func (m *Manager) GetKVClient() *kvc.Client {
	return m.KV
}

// GetMQClient 获取消息队列客户端，未启用事件时为 nil.
func (m *Manager) GetMQClient() *mqc.Client {
	return m.MQ
}

// HealthCheck 逐个探测已初始化的组件，键为组件名.
func (m *Manager) HealthCheck(ctx context.Context) map[string]error {
	out := map[string]error{}
	if m.DB != nil {
		out["db"] = m.DB.HealthCheck(ctx)
	}

	if m.Blob != nil {
		_, err := m.Blob.List(ctx, "health/", 1)
		out["blob"] = err
	}

	if m.KV != nil {
		out["kv"] = m.KV.Healthy(ctx)
	}

	return out
}

// Close 释放连接.
func (m *Manager) Close() error {
	var errList []error

	if m.MQ != nil {
		errList = append(errList, m.MQ.Close())
	}

	if m.KV != nil {
		errList = append(errList, m.KV.Close())
	}

	if m.DB != nil {
		errList = append(errList, m.DB.Close())
	}

	return errors.Join(errList...)
}
