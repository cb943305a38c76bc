package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Task 调度任务，执行时间控制在一个周期以内，错误由任务内部记录
type Task func(ctx context.Context)

type job struct {
	name     string
	task     Task
	interval time.Duration // 固定间隔任务
	schedule cron.Schedule // cron 表达式任务
	running  atomic.Bool   // 上一轮未结束时跳过本轮
}

// Scheduler 显式任务调度器
// 采样、规则检查等固定间隔任务和小时/天聚合等 cron 任务共用一个时钟，
// 各任务独立运行互不阻塞
type Scheduler struct {
	logger *zap.Logger
	clock  Clock

	mu   sync.Mutex
	jobs []*job
	wg   sync.WaitGroup
}

func NewScheduler(logger *zap.Logger, clock Clock) *Scheduler {
	if clock == nil {
		clock = SystemClock()
	}
	return &Scheduler{
		logger: logger,
		clock:  clock,
	}
}

// Every 注册固定间隔任务
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, task: task, interval: interval})
}

// Cron 注册 cron 表达式任务（标准五段式，如 "0 * * * *"）
func (s *Scheduler) Cron(name string, spec string, task Task) error {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &job{name: name, task: task, schedule: schedule})
	return nil
}

// Start 启动全部已注册任务，ctx 取消后停止
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	jobs := s.jobs
	s.mu.Unlock()

	for _, j := range jobs {
		s.wg.Add(1)
		go s.runLoop(ctx, j)
	}

	s.logger.Info("调度器已启动", zap.Int("jobs", len(jobs)))
}

// Wait 等待全部任务退出
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

func (s *Scheduler) runLoop(ctx context.Context, j *job) {
	defer s.wg.Done()

	for {
		var wait time.Duration
		if j.schedule != nil {
			now := s.clock.Now()
			wait = j.schedule.Next(now).Sub(now)
		} else {
			wait = j.interval
		}

		select {
		case <-ctx.Done():
			s.logger.Info("调度任务已停止", zap.String("job", j.name))
			return
		case <-s.clock.After(wait):
		}

		s.fire(ctx, j)
	}
}

func (s *Scheduler) fire(ctx context.Context, j *job) {
	if !j.running.CompareAndSwap(false, true) {
		s.logger.Warn("上一轮任务尚未结束，跳过本轮", zap.String("job", j.name))
		return
	}
	defer j.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("调度任务 panic", zap.String("job", j.name), zap.Any("panic", r))
		}
	}()

	j.task(ctx)
}
