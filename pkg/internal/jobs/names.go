package jobs

// 任务名称，调度器路由与 gc 命令使用同一组名称.
const (
	JobOrphanGC       = "upload.orphan_gc"
	JobShareSweep     = "share.expired_sweep"
	JobQuotaReconcile = "quota.reconcile"
)

// Names 全部维护任务，按建议的执行顺序排列.
var Names = []string{JobOrphanGC, JobShareSweep, JobQuotaReconcile}
