// Package jobs runs the periodic sweeps (follow-up overdue marking, support
// ticket overdue and auto-close, scheduled automation tasks). Every sweep
// holds a Redis lease while it runs so concurrent sweepers never duplicate
// notifications.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bizops-platform/internal/automation"
	"bizops-platform/internal/support"
	"bizops-platform/pkg/logger"
	"bizops-platform/pkg/utils"

	"github.com/redis/go-redis/v9"
)

const (
	JobAll       = "all"
	JobOverdue   = "overdue"
	JobAutoClose = "autoclose"
	JobTasks     = "tasks"
)

// Locker hands out single-holder leases. Acquire returns utils.ErrLockHeld
// when another holder has the key.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// RedisLocker adapts utils.AcquireLock.
type RedisLocker struct {
	RDB *redis.Client
}

func (l RedisLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error) {
	lock, err := utils.AcquireLock(ctx, l.RDB, key, ttl)
	if err != nil {
		return nil, err
	}
	return lock.Release, nil
}

type FollowUpSweeper interface {
	MarkOverdueFollowUps(ctx context.Context) (int, error)
}

type TicketSweeper interface {
	CheckOverdue(ctx context.Context) ([]support.Ticket, error)
	AutoClose(ctx context.Context, days int) (int, error)
}

type TaskRunner interface {
	RunDueTasks(ctx context.Context, now time.Time) (automation.RunSummary, error)
}

type Sweeper struct {
	Locker        Locker
	FollowUps     FollowUpSweeper
	Tickets       TicketSweeper
	Tasks         TaskRunner
	AutoCloseDays int
	LockTTL       time.Duration
	Now           func() time.Time
}

// Result is what one sweep did. Skipped is set when another process held
// the lease.
type Result struct {
	Job     string `json:"job"`
	Skipped bool   `json:"skipped"`
	Count   int    `json:"count"`
	Failed  int    `json:"failed,omitempty"`
}

var ErrUnknownJob = errors.New("jobs: unknown job")

func Jobs() []string { return []string{JobOverdue, JobAutoClose, JobTasks} }

// Run executes one named sweep, or every sweep for JobAll. With JobAll a
// failing sweep does not stop the others; the errors are joined.
func (s *Sweeper) Run(ctx context.Context, job string) ([]Result, error) {
	if job == JobAll {
		var (
			out  []Result
			errs []error
		)
		for _, j := range Jobs() {
			res, err := s.runOne(ctx, j)
			out = append(out, res)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", j, err))
			}
		}
		return out, errors.Join(errs...)
	}
	res, err := s.runOne(ctx, job)
	if err != nil {
		return nil, err
	}
	return []Result{res}, nil
}

func (s *Sweeper) runOne(ctx context.Context, job string) (Result, error) {
	fn, err := s.sweep(job)
	if err != nil {
		return Result{Job: job}, err
	}
	ttl := s.LockTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	log := logger.From(ctx).With("job", job)

	release, err := s.Locker.Acquire(ctx, "sweep:"+job, ttl)
	if errors.Is(err, utils.ErrLockHeld) {
		log.Info("sweep skipped, lease held elsewhere")
		return Result{Job: job, Skipped: true}, nil
	}
	if err != nil {
		return Result{Job: job}, fmt.Errorf("acquire lease: %w", err)
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			log.Warn("lease release failed", "err", err)
		}
	}()

	start := time.Now()
	res, err := fn(ctx)
	res.Job = job
	log.Info("sweep finished", "count", res.Count, "failed", res.Failed, "duration_ms", time.Since(start).Milliseconds(), "err", err)
	return res, err
}

func (s *Sweeper) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

func (s *Sweeper) sweep(job string) (func(context.Context) (Result, error), error) {
	switch job {
	case JobOverdue:
		if s.FollowUps == nil || s.Tickets == nil {
			return nil, errors.New("overdue sweep not configured")
		}
		return func(ctx context.Context) (Result, error) {
			n, err := s.FollowUps.MarkOverdueFollowUps(ctx)
			if err != nil {
				return Result{Count: n}, err
			}
			tickets, err := s.Tickets.CheckOverdue(ctx)
			return Result{Count: n + len(tickets)}, err
		}, nil
	case JobAutoClose:
		if s.Tickets == nil {
			return nil, errors.New("autoclose sweep not configured")
		}
		return func(ctx context.Context) (Result, error) {
			n, err := s.Tickets.AutoClose(ctx, s.AutoCloseDays)
			return Result{Count: n}, err
		}, nil
	case JobTasks:
		if s.Tasks == nil {
			return nil, errors.New("task sweep not configured")
		}
		return func(ctx context.Context) (Result, error) {
			sum, err := s.Tasks.RunDueTasks(ctx, s.now())
			return Result{Count: sum.Succeeded, Failed: sum.Failed}, err
		}, nil
	}
	return nil, fmt.Errorf("%w %q", ErrUnknownJob, job)
}
