// Package service 实现文件夹、文件、上传下载与共享的业务规则，不处理 HTTP 细节.
//
// 所有变更先经过 permission.Evaluator 判断，再在同一事务内修改资源树与配额账本.
// 提交之后的对象删除为尽力而为，失败只记录日志与指标.
package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/errs"
	"github.com/yeisme/cloudvault/pkg/internal/permission"
	"github.com/yeisme/cloudvault/pkg/internal/storage/blob"
	"github.com/yeisme/cloudvault/pkg/internal/storage/kv"
	nlog "github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/metrics"
	"github.com/yeisme/cloudvault/pkg/queue"
)

// MyFilesAlias 指代调用方根目录的文件夹 ID 别名.
const MyFilesAlias = "myFiles"

// 批量 IN 查询的分片大小，兼容 SQLite 的参数上限.
const inChunk = 500

// Deps 服务依赖，KV 与 Events 可以为空.
type Deps struct {
	DB     *gorm.DB
	Blob   blob.Store
	KV     kv.KVStore
	Events *queue.Publisher
	Upload configs.UploadConfig
	Quota  configs.QuotaConfig
	Auth   configs.AuthConfig
	Now    func() time.Time
}

// DepsFromContext 从 context 中的存储管理器与全局配置组装依赖.
func DepsFromContext(c context.Context) Deps {
	cfg := configs.GetConfig()
	d := Deps{
		Blob:   ctxPkg.GetBlobStore(c),
		Upload: cfg.Upload,
		Quota:  cfg.Quota,
		Auth:   cfg.Auth,
		Now:    time.Now,
	}

	if dbc := ctxPkg.GetDBClient(c); dbc != nil {
		d.DB = dbc.GetDB()
	}

	if kvc := ctxPkg.GetKVClient(c); kvc != nil {
		d.KV = kvc.KVStore
	}

	if mqc := ctxPkg.GetMQClient(c); mqc != nil {
		d.Events = queue.NewPublisher(mqc, cfg.Events)
	}

	// 依赖缺失属于启动错误，直接退出，服务内部不再判空
	if d.DB == nil || d.Blob == nil {
		nlog.Logger().Fatal().Msg("storage clients not initialized")
	}

	return d
}

func (d Deps) now() time.Time {
	if d.Now == nil {
		return time.Now().UTC()
	}

	return d.Now().UTC()
}

func (d Deps) evaluator() *permission.Evaluator {
	return permission.NewEvaluator(d.DB).WithClock(d.now)
}

// blobRef 待删除的对象.
type blobRef struct {
	Key      string
	ObjectID string
}

// deleteBlobs 提交后并发删除对象，失败只记录.
func (d Deps) deleteBlobs(ctx context.Context, reason string, refs []blobRef) {
	if len(refs) == 0 || d.Blob == nil {
		return
	}

	// 请求结束不应中断清理
	ctx = context.WithoutCancel(ctx)
	l := ctxPkg.WithTraceContext(ctx, *nlog.Logger())

	limit := d.Upload.DeleteParallel
	if limit <= 0 {
		limit = configs.DefaultDeleteParallel
	}

	var g errgroup.Group

	g.SetLimit(limit)

	for _, ref := range refs {
		g.Go(func() error {
			if err := d.Blob.Delete(ctx, ref.Key, ref.ObjectID); err != nil {
				metrics.BlobDeleteFailures.WithLabelValues(reason).Inc()
				l.Warn().Err(err).Str("key", ref.Key).Str("reason", reason).Msg("delete blob failed")
			}

			return nil
		})
	}

	_ = g.Wait()
}

// chunked 按 inChunk 分片调用 fn.
func chunked(ids []string, fn func(part []string) error) error {
	for start := 0; start < len(ids); start += inChunk {
		end := min(start+inChunk, len(ids))
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}

	return nil
}

// denied 匿名调用方看不到资源是否存在.
func denied(userID, what string) error {
	if userID == "" {
		return errs.NotFound(what + " not found")
	}

	return errs.Forbidden("access denied")
}
