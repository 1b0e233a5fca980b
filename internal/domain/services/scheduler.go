package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"hyaluron-watch/internal/config"
	"hyaluron-watch/internal/domain/models"
	"hyaluron-watch/internal/infrastructure/cache"
	"hyaluron-watch/pkg/logger"
)

// RunLockName is the distributed lock held for the duration of a run
const RunLockName = "monitor-run"

// ErrLockHeld is returned when another process holds the run lock
var ErrLockHeld = errors.New("monitor run lock held by another process")

// ScanRunner starts monitor runs
type ScanRunner interface {
	Run(ctx context.Context, req models.ScanRequest) (*models.BatchReport, error)
}

// DeadlineChecker escalates overdue cases
type DeadlineChecker interface {
	CheckDeadlines(ctx context.Context, now time.Time) ([]*models.Case, error)
}

// Locker hands out distributed locks
type Locker interface {
	AcquireLock(ctx context.Context, name string, ttl time.Duration) (*cache.Lock, error)
	ReleaseLock(ctx context.Context, lock *cache.Lock) error
}

// Scheduler triggers a monitor run and a deadline check every interval
type Scheduler struct {
	runner ScanRunner
	cases  DeadlineChecker
	locker Locker
	cfg    config.MonitorConfig
	logger *logger.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewScheduler creates a new Scheduler. cases and locker may be nil.
func NewScheduler(runner ScanRunner, cases DeadlineChecker, locker Locker, cfg config.MonitorConfig, log *logger.Logger) *Scheduler {
	return &Scheduler{
		runner: runner,
		cases:  cases,
		locker: locker,
		cfg:    cfg,
		logger: log.WithComponent("scheduler"),
		stopCh: make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval until ctx is
// cancelled or Stop is called
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	interval := s.cfg.Interval
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	s.logger.Info().Dur("interval", interval).Msg("scheduler started")

	s.tick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.Stop()
			return ctx.Err()
		case <-stopCh:
			return nil
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	s.running = false
	close(s.stopCh)
	s.logger.Info().Msg("scheduler stopped")
}

func (s *Scheduler) tick(ctx context.Context) {
	err := s.RunOnce(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ErrLockHeld), errors.Is(err, ErrRunInProgress):
		s.logger.Info().Err(err).Msg("skipping scheduled run")
	default:
		s.logger.Error().Err(err).Msg("scheduled run failed")
	}
}

// RunOnce performs one locked monitor run followed by a deadline check
func (s *Scheduler) RunOnce(ctx context.Context) error {
	release, err := acquireRunLock(ctx, s.locker, s.cfg.LockTTL, s.logger)
	if err != nil {
		return err
	}
	defer release()

	var errs []error
	if _, err := s.runner.Run(ctx, models.ScanRequest{}); err != nil {
		errs = append(errs, fmt.Errorf("monitor run: %w", err))
	}

	if s.cases != nil && ctx.Err() == nil {
		escalated, err := s.cases.CheckDeadlines(ctx, time.Now())
		if err != nil {
			errs = append(errs, fmt.Errorf("deadline check: %w", err))
		}
		if len(escalated) > 0 {
			s.logger.Info().Int("escalated", len(escalated)).Msg("overdue cases escalated")
		}
	}

	return errors.Join(errs...)
}

// acquireRunLock takes RunLockName. The returned release func is never nil;
// with a nil locker it does nothing.
func acquireRunLock(ctx context.Context, locker Locker, ttl time.Duration, log *logger.Logger) (func(), error) {
	if locker == nil {
		return func() {}, nil
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	lock, err := locker.AcquireLock(ctx, RunLockName, ttl)
	if err != nil {
		return nil, err
	}
	if lock == nil {
		return nil, ErrLockHeld
	}
	return func() {
		if err := locker.ReleaseLock(context.WithoutCancel(ctx), lock); err != nil {
			log.Warn().Err(err).Msg("failed to release run lock")
		}
	}, nil
}

// TrackedRunner is a ScanRunner that reports its progress
type TrackedRunner interface {
	ScanRunner
	Running() bool
	Status() RunStatus
}

// LockedRunner starts on-demand runs under the same lock the scheduler
// takes, so a run requested over the API never overlaps a scheduled one
// in another process
type LockedRunner struct {
	TrackedRunner
	locker Locker
	ttl    time.Duration
	logger *logger.Logger
}

// NewLockedRunner creates a new LockedRunner. locker may be nil.
func NewLockedRunner(runner TrackedRunner, locker Locker, ttl time.Duration, log *logger.Logger) *LockedRunner {
	return &LockedRunner{
		TrackedRunner: runner,
		locker:        locker,
		ttl:           ttl,
		logger:        log.WithComponent("locked-runner"),
	}
}

// Start takes the run lock and runs one pass in the background, releasing
// the lock when the pass ends. It returns ErrRunInProgress or ErrLockHeld
// without starting anything.
func (l *LockedRunner) Start(ctx context.Context, req models.ScanRequest) error {
	if l.Running() {
		return ErrRunInProgress
	}
	release, err := acquireRunLock(ctx, l.locker, l.ttl, l.logger)
	if err != nil {
		return err
	}

	go func() {
		defer release()
		if _, err := l.Run(ctx, req); err != nil {
			if errors.Is(err, ErrRunInProgress) {
				l.logger.Info().Msg("scan skipped, run already in progress")
				return
			}
			l.logger.Error().Err(err).Msg("scan failed")
		}
	}()
	return nil
}
