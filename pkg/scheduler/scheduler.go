// Package scheduler 封装 gocron/v2，承载服务的两类清理任务
// （过期操作记录、过期临时压缩包，见 internal/jobs），并为管理接口
// 维护可查询的任务状态快照.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/yeisme/docvault/pkg/log"
)

// refreshInterval 快照里 next/last run 的刷新周期.
const refreshInterval = 10 * time.Second

// JobStatus 任务状态.
type JobStatus string

const (
	StatusScheduled JobStatus = "scheduled"
	StatusRunning   JobStatus = "running"
	StatusError     JobStatus = "error"
)

// JobInfo 单个定时任务的状态快照，管理接口直接序列化返回.
type JobInfo struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CronExpr    string    `json:"cron_expr"`
	NextRun     time.Time `json:"next_run"`
	LastRun     time.Time `json:"last_run"`
	LastSuccess time.Time `json:"last_success,omitempty"`
	Status      JobStatus `json:"status"`
	Error       string    `json:"error,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Scheduler 调度器. 任务以名称为主键，gocron 的 uuid 只在
// 管理接口按 id 删除时反查.
type Scheduler struct {
	inner  gocron.Scheduler
	mu     sync.RWMutex
	jobs   map[string]gocron.Job
	infos  map[string]*JobInfo
	names  map[uuid.UUID]string
	logger *zerolog.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler 创建调度器并启动快照刷新协程.
func NewScheduler() (*Scheduler, error) {
	inner, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		inner:  inner,
		jobs:   make(map[string]gocron.Job),
		infos:  make(map[string]*JobInfo),
		names:  make(map[uuid.UUID]string),
		logger: log.Logger(),
		ctx:    ctx,
		cancel: cancel,
	}

	go s.refreshLoop()

	return s, nil
}

// AddCron 按 cron 表达式注册任务. 名称重复返回错误，
// 任务 panic 被捕获并记为 error 状态，不影响后续触发.
func (s *Scheduler) AddCron(name string, cronExpr string, job func(ctx context.Context), ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job with name %s already exists", name)
	}

	wrapped := func(ctx context.Context) {
		s.setStatus(name, StatusRunning, "")

		defer func() {
			if r := recover(); r != nil {
				s.setStatus(name, StatusError, fmt.Sprintf("panic in job: %v", r))
				s.logger.Error().Str("job", name).Interface("panic", r).Msg("cron job panicked")
			}
		}()

		job(ctx)

		s.mu.Lock()
		if info, ok := s.infos[name]; ok {
			info.Status = StatusScheduled
			info.LastSuccess = time.Now()
			info.UpdatedAt = time.Now()
		}
		s.mu.Unlock()
	}

	j, err := s.inner.NewJob(
		gocron.CronJob(cronExpr, false),
		gocron.NewTask(wrapped, ctx),
		gocron.WithName(name),
		gocron.WithEventListeners(
			gocron.AfterJobRuns(func(jobID uuid.UUID, jobName string) {
				s.mu.Lock()
				defer s.mu.Unlock()

				if info, ok := s.infos[jobName]; ok {
					info.LastRun = time.Now()
					info.UpdatedAt = time.Now()
				}
			}),
		),
	)
	if err != nil {
		return err
	}

	now := time.Now()
	nextRun, _ := j.NextRun()

	s.jobs[name] = j
	s.names[j.ID()] = name
	s.infos[name] = &JobInfo{
		ID:        j.ID().String(),
		Name:      name,
		CronExpr:  cronExpr,
		NextRun:   nextRun,
		Status:    StatusScheduled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.logger.Info().Str("job", name).Str("cron", cronExpr).Msg("cron job registered")

	return nil
}

// Start 启动调度.
func (s *Scheduler) Start() {
	s.logger.Info().Msg("starting scheduler")
	s.inner.Start()
}

// Shutdown 停止快照刷新并关闭调度器.
func (s *Scheduler) Shutdown() error {
	s.cancel()
	return s.inner.Shutdown()
}

// StopJobs 暂停所有任务的执行.
func (s *Scheduler) StopJobs() error {
	return s.inner.StopJobs()
}

// RemoveJob 按 gocron id 删除任务并同步内部快照.
func (s *Scheduler) RemoveJob(id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name, ok := s.names[id]; ok {
		delete(s.jobs, name)
		delete(s.infos, name)
		delete(s.names, id)
	}

	return s.inner.RemoveJob(id)
}

// JobsWaitingInQueue 排队等待执行的任务数.
func (s *Scheduler) JobsWaitingInQueue() int {
	return s.inner.JobsWaitingInQueue()
}

// GetJobInfos 返回全部任务快照.
func (s *Scheduler) GetJobInfos() []JobInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]JobInfo, 0, len(s.infos))
	for _, info := range s.infos {
		out = append(out, *info)
	}

	return out
}

func (s *Scheduler) setStatus(name string, status JobStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if info, ok := s.infos[name]; ok {
		info.Status = status
		info.Error = errMsg
		info.UpdatedAt = time.Now()
	}
}

// refreshLoop 周期性刷新 next/last run，直到 Shutdown.
func (s *Scheduler) refreshLoop() {
	ticker := time.NewTicker(refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.refreshRunTimes()
		}
	}
}

func (s *Scheduler) refreshRunTimes() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for name, job := range s.jobs {
		info := s.infos[name]
		if info == nil {
			continue
		}

		if nextRun, err := job.NextRun(); err == nil {
			info.NextRun = nextRun
		}

		if lastRun, err := job.LastRun(); err == nil {
			info.LastRun = lastRun
		}

		if info.Status != StatusRunning {
			info.Status = StatusScheduled
		}

		info.UpdatedAt = time.Now()
	}
}
