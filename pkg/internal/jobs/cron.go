// Package jobs 注册与实现维护任务：回收过期的签名上传、清理过期共享与链接、对账配额.
package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yeisme/cloudvault/pkg/configs"
	ctxPkg "github.com/yeisme/cloudvault/pkg/context"
	"github.com/yeisme/cloudvault/pkg/internal/service"
	"github.com/yeisme/cloudvault/pkg/internal/storage"
	"github.com/yeisme/cloudvault/pkg/log"
	"github.com/yeisme/cloudvault/pkg/metrics"
	"github.com/yeisme/cloudvault/pkg/scheduler"
	"github.com/yeisme/cloudvault/pkg/tracing"
)

// ErrUnknownJob 任务名称不存在.
var ErrUnknownJob = errors.New("unknown job")

// task 执行一次任务，把统计写入日志事件.
type task func(ctx context.Context, svc *service.MaintenanceService, ev *zerolog.Event) error

var tasks = map[string]task{
	JobOrphanGC: func(ctx context.Context, svc *service.MaintenanceService, ev *zerolog.Event) error {
		n, err := svc.SweepOrphanUploads(ctx)
		ev.Int("reclaimed", n)

		return err
	},
	JobShareSweep: func(ctx context.Context, svc *service.MaintenanceService, ev *zerolog.Event) error {
		res, err := svc.SweepExpiredShares(ctx)
		if res != nil {
			ev.Int64("folder_shares", res.FolderShares).Int64("file_shares", res.FileShares).Int64("links", res.Links)
		}

		return err
	},
	JobQuotaReconcile: func(ctx context.Context, svc *service.MaintenanceService, ev *zerolog.Event) error {
		n, err := svc.ReconcileQuotas(ctx)
		ev.Int("corrected", n)

		return err
	},
}

// RegisterCronJobs 按配置注册维护任务，cron 为空的任务跳过.
func RegisterCronJobs(sched *scheduler.Scheduler, mgr *storage.Manager, cfg configs.JobsConfig) error {
	if sched == nil {
		return fmt.Errorf("scheduler is nil")
	}

	if mgr == nil {
		return fmt.Errorf("storage manager is nil")
	}

	if !cfg.Enabled {
		return nil
	}

	// 将 storage manager 注入到 context，便于 service 使用
	baseCtx := ctxPkg.WithStorageManager(context.Background(), mgr)

	crons := map[string]string{
		JobOrphanGC:       cfg.OrphanGCCron,
		JobShareSweep:     cfg.ShareSweepCron,
		JobQuotaReconcile: cfg.QuotaReconcileCron,
	}

	for _, name := range Names {
		expr := crons[name]
		if expr == "" {
			continue
		}

		if err := sched.AddCron(baseCtx, name, expr, func(ctx context.Context) error {
			return run(ctx, name)
		}); err != nil {
			return fmt.Errorf("register job %s: %w", name, err)
		}
	}

	return nil
}

// RunOnce 立即执行一次指定任务，供命令行使用.
func RunOnce(ctx context.Context, mgr *storage.Manager, name string) error {
	if _, ok := tasks[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}

	return run(ctxPkg.WithStorageManager(ctx, mgr), name)
}

// run 执行任务并记录日志、指标与 span.
func run(ctx context.Context, name string) error {
	ctx, span := tracing.StartSpan(ctx, "job."+name)
	defer span.End()

	l := ctxPkg.WithTraceContext(ctx, *log.Logger()).With().Str("job", name).Logger()

	ev := l.Info()
	err := tasks[name](ctx, service.NewMaintenanceService(ctx), ev)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		metrics.JobRuns.WithLabelValues(name, "error").Inc()
		l.Error().Err(err).Msg("job failed")

		return err
	}

	span.SetAttributes(attribute.String("job.result", "ok"))
	metrics.JobRuns.WithLabelValues(name, "ok").Inc()
	ev.Msg("job done")

	return nil
}
