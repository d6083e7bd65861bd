package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/showscout/outreach/internal/pkg/distlock"
	"github.com/showscout/outreach/internal/pkg/logger"
)

// CronSpecs holds the schedule for each job in standard five-field cron
// syntax.
type CronSpecs struct {
	EvaluateLifecycle string `yaml:"evaluate_lifecycle"`
	SendDue           string `yaml:"send_due"`
	PollReplies       string `yaml:"poll_replies"`
}

// DefaultCronSpecs returns the standing schedule: evaluation every 15
// minutes, sends every 5, reply polling every 2.
func DefaultCronSpecs() CronSpecs {
	return CronSpecs{
		EvaluateLifecycle: "*/15 * * * *",
		SendDue:           "*/5 * * * *",
		PollReplies:       "*/2 * * * *",
	}
}

const jobTimeout = 10 * time.Minute

// LockFactory builds a named distributed lock. Each job gets its own lock
// so a slow send run never blocks reply polling.
type LockFactory func(name string) distlock.Lock

// Scheduler drives the three recurring jobs off a cron engine. A job run
// that finds its lock held is skipped outright, which covers both an
// overlapping previous run and a sibling instance.
type Scheduler struct {
	cronEngine *cron.Cron
	service    *Service
	specs      CronSpecs
	locks      LockFactory

	mu      sync.Mutex
	running bool
}

// New creates a scheduler around the job service.
func New(service *Service, specs CronSpecs, locks LockFactory) *Scheduler {
	return &Scheduler{
		cronEngine: cron.New(cron.WithLocation(time.UTC)),
		service:    service,
		specs:      specs,
		locks:      locks,
	}
}

// Start registers the jobs and starts the cron engine.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) error
	}{
		{"evaluate-lifecycle", s.specs.EvaluateLifecycle, s.service.EvaluateLifecycle},
		{"send-due", s.specs.SendDue, s.service.SendDue},
		{"poll-replies", s.specs.PollReplies, s.service.PollReplies},
	}
	for _, j := range jobs {
		j := j
		if _, err := s.cronEngine.AddFunc(j.spec, func() { s.runLocked(j.name, j.run) }); err != nil {
			return fmt.Errorf("register job %s: %w", j.name, err)
		}
	}

	s.cronEngine.Start()
	s.running = true
	logger.Info("scheduler started",
		"evaluate_lifecycle", s.specs.EvaluateLifecycle,
		"send_due", s.specs.SendDue,
		"poll_replies", s.specs.PollReplies)
	return nil
}

// Stop halts the cron engine and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	ctx := s.cronEngine.Stop()
	<-ctx.Done()
	s.running = false
	logger.Info("scheduler stopped")
}

// runLocked executes one job run under its distributed lock. A held lock
// means a run is already in progress somewhere; skipping is the correct
// behavior, not an error.
func (s *Scheduler) runLocked(name string, run func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	lock := s.locks(name)
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		logger.Error("job lock acquire failed", "job", name, "error", err.Error())
		return
	}
	if !acquired {
		logger.Info("job skipped, previous run still active", "job", name)
		return
	}
	defer func() {
		if err := lock.Release(ctx); err != nil {
			logger.Error("job lock release failed", "job", name, "error", err.Error())
		}
	}()

	start := time.Now()
	if err := run(ctx); err != nil {
		logger.Error("job run failed", "job", name, "error", err.Error())
		return
	}
	logger.Debug("job run finished", "job", name, "duration", time.Since(start).String())
}
