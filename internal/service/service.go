package service

import (
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/config"
	"github.com/popeskul/wa-dispatcher/internal/lease"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

type Service struct {
	Campaign  CampaignService
	Control   ControlService
	Scheduler SchedulerService
	OptOut    OptOutService
	Health    HealthService
}

func NewService(
	cfg *config.Config,
	repo repository.Repository,
	redisClient *redis.Client,
	gw Gateway,
	logger *zap.Logger,
) *Service {
	clock := pacing.RealClock()
	engine := pacing.NewEngine(pacing.FromDispatchConfig(cfg.Dispatch), pacing.NewRandomSource())
	breaker := NewCircuitBreaker(&cfg.Gateway.CircuitBreaker, logger)

	var locker lease.Locker
	if redisClient != nil {
		locker = lease.NewRedisLocker(redisClient, logger)
	} else {
		locker = lease.NewLocalLocker()
	}

	executor := NewDeliveryExecutor(gw, breaker, RetryPolicyFromConfig(cfg.Gateway, cfg.Dispatch), clock, logger)
	aggregator := NewStatusAggregator(repo, clock, logger)
	dispatcher := NewDispatcher(repo, gw, executor, aggregator, engine, locker, clock,
		DispatchSettingsFromConfig(cfg.Dispatch), logger)

	schedulerService := NewSchedulerService(cfg, repo, dispatcher, clock, logger)
	campaignService := NewCampaignService(repo, gw, schedulerService, engine, clock, cfg.Dispatch.MaxRecipients, logger)
	controlService := NewControlService(repo, gw, schedulerService, clock, logger)
	optOutService := NewOptOutService(repo, cfg.OptOut.Keywords, logger)
	healthService := NewHealthService(repo, redisClient, schedulerService, breaker)

	return &Service{
		Campaign:  campaignService,
		Control:   controlService,
		Scheduler: schedulerService,
		OptOut:    optOutService,
		Health:    healthService,
	}
}
