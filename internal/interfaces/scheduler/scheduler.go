package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ofsync/internal/shared/logger"
)

// ScheduleTime represents a specific time of day when the scheduler should run.
type ScheduleTime struct {
	Hour   int
	Minute int
}

// String returns the time in HH:MM format.
func (st ScheduleTime) String() string {
	return fmt.Sprintf("%02d:%02d", st.Hour, st.Minute)
}

// ParseScheduleTime parses a time string in HH:MM format.
func ParseScheduleTime(s string) (ScheduleTime, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(s, "%d:%d", &hour, &minute); err != nil {
		return ScheduleTime{}, fmt.Errorf("invalid time format (expected HH:MM): %w", err)
	}

	if hour < 0 || hour > 23 {
		return ScheduleTime{}, fmt.Errorf("invalid hour: %d (must be 0-23)", hour)
	}
	if minute < 0 || minute > 59 {
		return ScheduleTime{}, fmt.Errorf("invalid minute: %d (must be 0-59)", minute)
	}

	return ScheduleTime{Hour: hour, Minute: minute}, nil
}

// JobProvider lists the jobs for one scheduled sweep.
type JobProvider func(ctx context.Context) ([]Job, error)

// Submitter accepts jobs; *WorkerPool implements it.
type Submitter interface {
	SubmitBatch(jobs []Job) int
}

// Config holds configuration for the scheduler.
type Config struct {
	ScheduleTimes []string
	RunOnStartup  bool
	JobProvider   JobProvider
	// ProviderTimeout bounds one JobProvider call. Defaults to five minutes.
	ProviderTimeout time.Duration
}

// Scheduler feeds a worker pool at fixed times of day. It does not own the
// pool; start and stop the pool separately.
type Scheduler struct {
	pool            Submitter
	scheduleTimes   []ScheduleTime
	runOnStartup    bool
	jobProvider     JobProvider
	providerTimeout time.Duration
	log             *zap.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastRun string
	mu      sync.Mutex
}

// NewScheduler creates a new scheduler with the given configuration.
func NewScheduler(cfg Config, pool Submitter) (*Scheduler, error) {
	scheduleTimes := make([]ScheduleTime, 0, len(cfg.ScheduleTimes))
	for _, timeStr := range cfg.ScheduleTimes {
		st, err := ParseScheduleTime(timeStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schedule time %q: %w", timeStr, err)
		}
		scheduleTimes = append(scheduleTimes, st)
	}

	if len(scheduleTimes) == 0 {
		return nil, fmt.Errorf("at least one schedule time is required")
	}
	if cfg.JobProvider == nil {
		return nil, fmt.Errorf("a job provider is required")
	}

	sort.Slice(scheduleTimes, func(i, j int) bool {
		a, b := scheduleTimes[i], scheduleTimes[j]
		return a.Hour*60+a.Minute < b.Hour*60+b.Minute
	})

	if cfg.ProviderTimeout <= 0 {
		cfg.ProviderTimeout = 5 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Scheduler{
		pool:            pool,
		scheduleTimes:   scheduleTimes,
		runOnStartup:    cfg.RunOnStartup,
		jobProvider:     cfg.JobProvider,
		providerTimeout: cfg.ProviderTimeout,
		log:             logger.Get().With(zap.String("component", "scheduler")),
		ctx:             ctx,
		cancel:          cancel,
	}, nil
}

// Start launches the schedule loop.
func (s *Scheduler) Start() {
	if s.runOnStartup {
		s.log.Info("running initial sweep on startup")
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.runJobs()
		}()
	}

	s.wg.Add(1)
	go s.scheduleLoop()

	s.log.Info("scheduler started", zap.Stringers("times", s.scheduleTimes))
}

func (s *Scheduler) scheduleLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return

		case now := <-ticker.C:
			if s.shouldRun(now) {
				s.log.Info("scheduled sweep triggered", zap.String("at", now.Format("15:04")))
				s.runJobs()
			}
		}
	}
}

// shouldRun reports whether now matches a schedule time. Each minute fires
// at most once.
func (s *Scheduler) shouldRun(now time.Time) bool {
	key := now.Format("2006-01-02-15:04")

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastRun == key {
		return false
	}

	for _, st := range s.scheduleTimes {
		if now.Hour() == st.Hour && now.Minute() == st.Minute {
			s.lastRun = key
			return true
		}
	}

	return false
}

// runJobs asks the provider for jobs and submits them, returning how many
// were accepted.
func (s *Scheduler) runJobs() int {
	ctx, cancel := context.WithTimeout(s.ctx, s.providerTimeout)
	defer cancel()

	jobs, err := s.jobProvider(ctx)
	if err != nil {
		s.log.Error("failed to fetch jobs", zap.Error(err))
		return 0
	}

	if len(jobs) == 0 {
		s.log.Info("no jobs to process")
		return 0
	}

	return s.pool.SubmitBatch(jobs)
}

// Shutdown stops the schedule loop and waits up to timeout for an
// in-flight sweep to finish submitting.
func (s *Scheduler) Shutdown(timeout time.Duration) {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info("scheduler stopped")
	case <-time.After(timeout):
		s.log.Warn("timeout waiting for scheduler loop to stop")
	}
}

// TriggerNow manually triggers a sweep in the background.
func (s *Scheduler) TriggerNow() {
	s.log.Info("manual sweep triggered")
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.runJobs()
	}()
}

// NextRun returns the first schedule time strictly after now.
func (s *Scheduler) NextRun(now time.Time) time.Time {
	for _, st := range s.scheduleTimes {
		t := time.Date(now.Year(), now.Month(), now.Day(), st.Hour, st.Minute, 0, 0, now.Location())
		if t.After(now) {
			return t
		}
	}

	st := s.scheduleTimes[0]
	tomorrow := now.AddDate(0, 0, 1)
	return time.Date(tomorrow.Year(), tomorrow.Month(), tomorrow.Day(), st.Hour, st.Minute, 0, 0, now.Location())
}

// ScheduleTimes returns the configured schedule times in order.
func (s *Scheduler) ScheduleTimes() []ScheduleTime {
	return append([]ScheduleTime(nil), s.scheduleTimes...)
}
