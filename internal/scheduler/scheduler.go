package scheduler

import (
	"context"
	"errors"
	"time"

	"gridbot/internal/logger"
)

// ErrStop 由任务返回以终止轮询（例如止损触发）。
var ErrStop = errors.New("scheduler: stop requested")

// PollScheduler 以固定间隔串行执行任务；任务失败后按 Backoff 等待再重试。
type PollScheduler struct {
	Name           string
	Interval       time.Duration
	Backoff        time.Duration
	RunImmediately bool

	sleepFn func(ctx context.Context, d time.Duration) bool
	nowFn   func() time.Time
}

func NewPollScheduler(name string, interval, backoff time.Duration) *PollScheduler {
	if backoff <= 0 {
		backoff = interval
	}
	return &PollScheduler{
		Name:           name,
		Interval:       interval,
		Backoff:        backoff,
		RunImmediately: true,
		sleepFn:        Sleep,
		nowFn:          time.Now,
	}
}

// Run 阻塞直到 ctx 结束或任务返回 ErrStop；其他错误只记录并在 Backoff 后重试。
func (s *PollScheduler) Run(ctx context.Context, task func(context.Context) error) error {
	if s == nil || task == nil {
		return errors.New("scheduler: nil scheduler or task")
	}
	if s.Interval <= 0 {
		return errors.New("scheduler: interval must be > 0")
	}
	if s.sleepFn == nil {
		s.sleepFn = Sleep
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	prefix := "PollScheduler"
	if s.Name != "" {
		prefix = prefix + "[" + s.Name + "]"
	}
	startAt := s.nowFn().UTC()
	logger.Infof("%s: started interval=%s backoff=%s at=%s", prefix, s.Interval, s.Backoff, startAt.Format(time.RFC3339))

	wait := time.Duration(0)
	if !s.RunImmediately {
		wait = s.Interval
	}
	for {
		if wait > 0 && !s.sleepFn(ctx, wait) {
			logger.Infof("%s: ctx done, exit | uptime=%s", prefix, s.nowFn().Sub(startAt).Truncate(time.Second))
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
		err := task(ctx)
		switch {
		case err == nil:
			wait = s.Interval
		case errors.Is(err, ErrStop):
			logger.Infof("%s: stop requested: %v", prefix, err)
			return err
		default:
			wait = s.Backoff
			logger.Warnf("%s: task failed, retry in %s: %v", prefix, wait, err)
		}
	}
}

// Sleep 等待 d；ctx 先结束时返回 false。
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
