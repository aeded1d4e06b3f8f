package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-kratos/kratos/v2/transport"
	"github.com/sirupsen/logrus"

	"github.com/iWorld-y/pubmed_feed/pkg/logger"
)

// Job 一次定时任务，返回的错误只记录日志
type Job func(ctx context.Context) error

// Scheduler 启动后立即执行一次，此后每隔 interval 执行一次。
// 同一时刻最多只有一个任务在运行，上一次未结束时跳过的 tick 不补执行。
type Scheduler struct {
	interval time.Duration
	job      Job
	log      *logrus.Entry

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

var _ transport.Server = (*Scheduler)(nil)

// New interval 必须大于 0
func New(interval time.Duration, job Job, log *logrus.Entry) *Scheduler {
	return &Scheduler{interval: interval, job: job, log: logger.Component(log, "scheduler")}
}

// Start 阻塞运行，直到 ctx 取消或调用 Stop；可作为 kratos 的 transport.Server 注册
func (s *Scheduler) Start(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler interval must be positive")
	}

	s.mu.Lock()
	if s.done != nil {
		s.mu.Unlock()
		return errors.New("scheduler already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	done := s.done
	s.mu.Unlock()

	defer close(done)
	defer cancel()

	s.log.Infof("定时任务已启动，间隔 %s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runOnce(ctx)
	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			s.log.Info("定时任务已停止")
			return nil
		}
	}
}

// Stop 通知停止并等待正在执行的任务结束，ctx 到期则放弃等待
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	start := time.Now()
	if err := s.job(ctx); err != nil {
		s.log.Errorf("定时任务执行失败: %v", err)
		return
	}
	s.log.Infof("定时任务执行完成，耗时 %s", time.Since(start).Round(time.Millisecond))
}
