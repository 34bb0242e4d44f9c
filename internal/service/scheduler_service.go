package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/popeskul/wa-dispatcher/internal/config"
	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/repository"
	"github.com/popeskul/wa-dispatcher/internal/scheduler"
)

// schedulerService supervises dispatch loops: one goroutine per running
// campaign, plus a periodic sweep that starts due campaigns and picks up
// loops orphaned by a restart.
type schedulerService struct {
	scheduler     *scheduler.Scheduler
	repo          repository.Repository
	runner        CampaignRunner
	clock         pacing.Clock
	batchSize     int
	recoveryPause time.Duration
	logger        *zap.Logger

	mu sync.Mutex
	// running maps a campaign to whether a relaunch was requested while its
	// loop was still winding down.
	running map[uuid.UUID]bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewSchedulerService(
	cfg *config.Config,
	repo repository.Repository,
	runner CampaignRunner,
	clock pacing.Clock,
	logger *zap.Logger,
) SchedulerService {
	interval := time.Duration(cfg.Scheduler.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	batchSize := cfg.Scheduler.BatchSize
	if batchSize <= 0 {
		batchSize = 50
	}

	svc := &schedulerService{
		repo:          repo,
		runner:        runner,
		clock:         clock,
		batchSize:     batchSize,
		recoveryPause: DispatchSettingsFromConfig(cfg.Dispatch).RecoveryPause,
		logger:        logger,
		running:       make(map[uuid.UUID]bool),
	}

	svc.scheduler = scheduler.NewScheduler(logger, interval, svc.sweep, scheduler.WithName("campaign-sweep"))
	return svc
}

func (s *schedulerService) Start() error {
	s.mu.Lock()
	if s.ctx != nil {
		s.mu.Unlock()
		return scheduler.ErrSchedulerAlreadyRunning
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())
	ctx := s.ctx
	s.mu.Unlock()

	if err := s.scheduler.Start(ctx); err != nil {
		s.mu.Lock()
		s.cancel()
		s.ctx, s.cancel = nil, nil
		s.mu.Unlock()
		return err
	}
	return nil
}

// Stop halts the sweep, cancels running loops and waits for them to return.
// Interrupted campaigns stay in_progress and are picked up on the next start.
func (s *schedulerService) Stop() error {
	s.mu.Lock()
	if s.ctx == nil {
		s.mu.Unlock()
		return scheduler.ErrSchedulerNotRunning
	}
	cancel := s.cancel
	s.ctx, s.cancel = nil, nil
	s.mu.Unlock()

	err := s.scheduler.Stop()
	cancel()
	s.wg.Wait()

	s.logger.Info("Dispatch supervisor stopped")
	return err
}

func (s *schedulerService) IsRunning() bool {
	return s.scheduler.IsRunning()
}

func (s *schedulerService) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.running)
}

// Launch starts the loop of a campaign unless one is already running here.
func (s *schedulerService) Launch(campaignID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx == nil {
		s.logger.Warn("Dispatch supervisor not started, campaign left for the next sweep",
			zap.String("campaign_id", campaignID.String()))
		return false
	}

	if _, ok := s.running[campaignID]; ok {
		s.running[campaignID] = true
		return false
	}

	s.running[campaignID] = false
	s.wg.Add(1)
	go s.run(s.ctx, campaignID)
	return true
}

func (s *schedulerService) run(ctx context.Context, campaignID uuid.UUID) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Campaign loop panicked",
				zap.String("campaign_id", campaignID.String()),
				zap.Any("panic", r),
			)
		}

		s.mu.Lock()
		relaunch := s.running[campaignID]
		delete(s.running, campaignID)
		stopped := s.ctx == nil
		s.mu.Unlock()

		if relaunch && !stopped {
			s.scheduler.Trigger()
		}
	}()

	if err := s.runner.Run(ctx, campaignID); err != nil {
		s.logger.Error("Campaign loop failed",
			zap.String("campaign_id", campaignID.String()),
			zap.Error(err),
		)
	}
}

func (s *schedulerService) sweep(ctx context.Context) error {
	now := s.clock.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.startDue(gctx, now)
	})
	g.Go(func() error {
		return s.resumeOrphans(gctx, now)
	})

	return g.Wait()
}

// startDue moves scheduled campaigns whose time has come to in_progress, or
// to blocked when the owner has no active subscription.
func (s *schedulerService) startDue(ctx context.Context, now time.Time) error {
	campaigns, err := s.repo.Campaign().ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list due campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		active, err := s.repo.Account().HasActiveSubscription(ctx, campaign.OwnerID, now)
		if err != nil {
			return fmt.Errorf("failed to check subscription: %w", err)
		}

		to := models.CampaignStatusInProgress
		if !active {
			to = models.CampaignStatusBlocked
		}

		applied, err := s.repo.Campaign().Transition(ctx, campaign.ID,
			[]models.CampaignStatus{models.CampaignStatusScheduled}, to, models.PauseReasonNone)
		if err != nil {
			return fmt.Errorf("failed to start campaign: %w", err)
		}
		if !applied {
			continue
		}

		metrics.StatusTransitions.WithLabelValues(string(models.CampaignStatusScheduled), string(to)).Inc()

		if to == models.CampaignStatusBlocked {
			s.logger.Warn("Scheduled campaign blocked, subscription inactive",
				zap.String("campaign_id", campaign.ID.String()),
				zap.String("owner_id", campaign.OwnerID.String()),
			)
			continue
		}

		s.logger.Info("Scheduled campaign started", zap.String("campaign_id", campaign.ID.String()))
		s.Launch(campaign.ID)
	}

	return nil
}

// resumeOrphans relaunches in_progress campaigns without a loop and recovery
// pauses whose window has elapsed.
func (s *schedulerService) resumeOrphans(ctx context.Context, now time.Time) error {
	campaigns, err := s.repo.Campaign().ListResumable(ctx, now.Add(-s.recoveryPause), s.batchSize)
	if err != nil {
		return fmt.Errorf("failed to list resumable campaigns: %w", err)
	}

	for _, campaign := range campaigns {
		if s.Launch(campaign.ID) {
			s.logger.Info("Campaign loop relaunched",
				zap.String("campaign_id", campaign.ID.String()),
				zap.String("status", string(campaign.Status)),
			)
		}
	}

	return nil
}
