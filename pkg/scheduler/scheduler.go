// Package scheduler 基于 gocron/v2 的定时任务调度，记录每个任务的运行状态供管理接口查询.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yeisme/cloudvault/pkg/log"
)

// refreshInterval 刷新 NextRun 的周期.
const refreshInterval = 10 * time.Second

var (
	// ErrJobNotFound 任务不存在.
	ErrJobNotFound = errors.New("job not found")
	// ErrJobExists 同名任务已注册.
	ErrJobExists = errors.New("job already exists")
)

// JobStatus 任务状态.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusError     JobStatus = "error" // 最近一次执行失败，下次成功后恢复
)

// Task 任务函数，返回的错误记录到 JobInfo.
type Task func(ctx context.Context) error

// JobInfo 任务信息.
type JobInfo struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	CronExpr     string        `json:"cron_expr"`
	Status       JobStatus     `json:"status"`
	NextRun      time.Time     `json:"next_run"`
	LastRun      time.Time     `json:"last_run,omitempty"`
	LastSuccess  time.Time     `json:"last_success,omitempty"`
	LastDuration time.Duration `json:"last_duration_ns,omitempty"`
	Runs         int64         `json:"runs"`
	Failures     int64         `json:"failures"`
	Error        string        `json:"error,omitempty"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Scheduler 包装 gocron.Scheduler，任务按名称管理.
type Scheduler struct {
	sched  gocron.Scheduler
	logger zerolog.Logger

	mu    sync.RWMutex
	jobs  map[string]gocron.Job
	infos map[string]*JobInfo
	names map[uuid.UUID]string

	stop context.CancelFunc
	done chan struct{}
}

// NewScheduler 创建调度器，需调用 Start 才开始执行.
func NewScheduler() (*Scheduler, error) {
	gs, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		sched:  gs,
		logger: log.Component("scheduler"),
		jobs:   map[string]gocron.Job{},
		infos:  map[string]*JobInfo{},
		names:  map[uuid.UUID]string{},
		stop:   cancel,
		done:   make(chan struct{}),
	}

	go s.refresh(ctx)

	return s, nil
}

// AddCron 注册 cron 任务，ctx 作为每次执行的基础 context.
// 同一任务的执行不会重叠，上一轮未结束时本轮跳过.
func (s *Scheduler) AddCron(ctx context.Context, name, cronExpr string, task Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[name]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, name)
	}

	j, err := s.sched.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(func(ctx context.Context) { s.execute(ctx, name, task) }, ctx),
		gocron.WithName(name),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		return fmt.Errorf("schedule %s (%q): %w", name, cronExpr, err)
	}

	info := &JobInfo{
		ID:        j.ID().String(),
		Name:      name,
		CronExpr:  cronExpr,
		Status:    StatusScheduled,
		CreatedAt: time.Now(),
	}
	info.NextRun, _ = j.NextRun()

	s.jobs[name] = j
	s.infos[name] = info
	s.names[j.ID()] = name

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("job scheduled")

	return nil
}

// execute 执行任务并更新状态，panic 记为失败.
func (s *Scheduler) execute(ctx context.Context, name string, task Task) {
	start := time.Now()
	s.update(name, func(info *JobInfo) {
		info.Status = StatusRunning
		info.LastRun = start
	})

	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				s.logger.Error().Str("job", name).Interface("panic", r).Msg("job panicked")
			}
		}()

		err = task(ctx)
	}()

	s.update(name, func(info *JobInfo) {
		info.Runs++
		info.LastDuration = time.Since(start)

		if err != nil {
			info.Status = StatusError
			info.Error = err.Error()
			info.Failures++

			return
		}

		info.Status = StatusScheduled
		info.Error = ""
		info.LastSuccess = time.Now()
	})
}

func (s *Scheduler) update(name string, fn func(info *JobInfo)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.infos[name]; ok {
		fn(info)
	}
}

// RunJobNow 立即执行一次，不影响原有调度.
func (s *Scheduler) RunJobNow(name string) error {
	s.mu.RLock()
	j, ok := s.jobs[name]
	s.mu.RUnlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	if err := j.RunNow(); err != nil {
		return err
	}

	s.logger.Info().Str("job", name).Msg("job triggered")

	return nil
}

// RemoveJob 按 ID 移除任务.
func (s *Scheduler) RemoveJob(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	name, ok := s.names[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}

	if err := s.sched.RemoveJob(id); err != nil {
		return err
	}

	delete(s.jobs, name)
	delete(s.infos, name)
	delete(s.names, id)

	s.logger.Info().Str("job", name).Msg("job removed")

	return nil
}

// JobInfo 按名称返回任务信息的副本.
func (s *Scheduler) JobInfo(name string) (JobInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	info, ok := s.infos[name]
	if !ok {
		return JobInfo{}, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}

	return *info, nil
}

// GetJobInfos 返回全部任务信息，按名称排序.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.infos))
	for _, info := range s.infos {
		out = append(out, *info)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })

	return out
}

// Start 启动调度.
func (s *Scheduler) Start() {
	s.logger.Info().Int("jobs", len(s.GetJobInfos())).Msg("scheduler started")
	s.sched.Start()
}

// StopJobs 停止调度但保留任务，调用 Start 可恢复.
func (s *Scheduler) StopJobs() error {
	return s.sched.StopJobs()
}

// Shutdown 停止调度并等待正在执行的任务结束.
func (s *Scheduler) Shutdown() error {
	s.stop()
	<-s.done

	return s.sched.Shutdown()
}

// JobsWaitingInQueue 等待执行的任务数.
func (s *Scheduler) JobsWaitingInQueue() int {
	return s.sched.JobsWaitingInQueue()
}

// refresh 定期刷新 NextRun.
func (s *Scheduler) refresh(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.mu.Lock()

		for name, j := range s.jobs {
			if next, err := j.NextRun(); err == nil {
				s.infos[name].NextRun = next
			}
		}

		s.mu.Unlock()
	}
}
