package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTaskTimeout bounds each task run. Defaults to one second less than the
// interval, or the interval itself for sub-two-second intervals.
func WithTaskTimeout(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.taskTimeout = d
		}
	}
}

// WithName labels the scheduler in logs.
func WithName(name string) Option {
	return func(s *Scheduler) {
		s.name = name
	}
}

// Scheduler runs a sweep task immediately on start, then on every tick and
// whenever Trigger is called.
type Scheduler struct {
	logger      *zap.Logger
	name        string
	interval    time.Duration
	taskTimeout time.Duration
	taskFunc    func(context.Context) error
	triggerCh   chan struct{}
	stopCh      chan struct{}
	doneCh      chan struct{}
	isRunning   bool
	mu          sync.RWMutex
}

// NewScheduler creates a new scheduler instance.
func NewScheduler(logger *zap.Logger, interval time.Duration, taskFunc func(context.Context) error, opts ...Option) *Scheduler {
	s := &Scheduler{
		logger:      logger,
		name:        "sweep",
		interval:    interval,
		taskTimeout: defaultTaskTimeout(interval),
		taskFunc:    taskFunc,
		triggerCh:   make(chan struct{}, 1),
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func defaultTaskTimeout(interval time.Duration) time.Duration {
	if interval >= 2*time.Second {
		return interval - time.Second
	}
	return interval
}

// Start begins the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return ErrSchedulerAlreadyRunning
	}

	s.isRunning = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})

	go s.run(ctx, s.stopCh, s.doneCh)

	s.logger.Info("Scheduler started",
		zap.String("name", s.name),
		zap.Duration("interval", s.interval))
	return nil
}

// Stop halts the scheduler and waits for an in-flight task to return.
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh

	s.mu.Lock()
	s.isRunning = false
	s.mu.Unlock()

	s.logger.Info("Scheduler stopped", zap.String("name", s.name))
	return nil
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Trigger requests an extra run without waiting for the next tick. Calls
// made while a run is already queued are coalesced.
func (s *Scheduler) Trigger() {
	select {
	case s.triggerCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) run(ctx context.Context, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)
	defer func() {
		s.mu.Lock()
		s.isRunning = false
		s.mu.Unlock()
	}()

	if err := s.executeTask(ctx); err != nil {
		s.logger.Error("Failed to execute initial task", zap.String("name", s.name), zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Scheduler context canceled", zap.String("name", s.name))
			return
		case <-stopCh:
			s.logger.Info("Scheduler stop signal received", zap.String("name", s.name))
			return
		case <-ticker.C:
			if err := s.executeTask(ctx); err != nil {
				s.logger.Error("Failed to execute scheduled task", zap.String("name", s.name), zap.Error(err))
			}
		case <-s.triggerCh:
			if err := s.executeTask(ctx); err != nil {
				s.logger.Error("Failed to execute triggered task", zap.String("name", s.name), zap.Error(err))
			}
		}
	}
}

func (s *Scheduler) executeTask(ctx context.Context) error {
	taskCtx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	err := s.taskFunc(taskCtx)
	if err != nil {
		s.logger.Error("Task execution failed", zap.String("name", s.name), zap.Error(err))
	} else {
		s.logger.Debug("Task execution completed", zap.String("name", s.name))
	}
	return err
}
