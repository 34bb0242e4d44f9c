package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/config"
	"github.com/popeskul/wa-dispatcher/internal/gateway"
	"github.com/popeskul/wa-dispatcher/internal/lease"
	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

const (
	releaseTimeout        = 5 * time.Second
	unsubscribedReasonMsg = "contact unsubscribed"
)

// DispatchSettings tunes the campaign loop.
type DispatchSettings struct {
	MaxConsecutiveFailures int
	RecoveryPause          time.Duration
	LeaseTTL               time.Duration
}

func DispatchSettingsFromConfig(c config.DispatchConfig) DispatchSettings {
	s := DispatchSettings{
		MaxConsecutiveFailures: c.MaxConsecutiveFailure,
		RecoveryPause:          c.RecoveryPause(),
		LeaseTTL:               c.LeaseTTL(),
	}
	if s.MaxConsecutiveFailures <= 0 {
		s.MaxConsecutiveFailures = 3
	}
	if s.RecoveryPause <= 0 {
		s.RecoveryPause = 3 * time.Minute
	}
	if s.LeaseTTL <= 0 {
		s.LeaseTTL = 10 * time.Minute
	}
	return s
}

// Dispatcher runs the sequential send loop of one campaign. Status changes
// made by operators are observed at the top of every iteration.
type Dispatcher struct {
	repo       repository.Repository
	gateway    Gateway
	executor   *DeliveryExecutor
	aggregator *StatusAggregator
	engine     *pacing.Engine
	locker     lease.Locker
	clock      pacing.Clock
	settings   DispatchSettings
	logger     *zap.Logger
}

func NewDispatcher(
	repo repository.Repository,
	gw Gateway,
	executor *DeliveryExecutor,
	aggregator *StatusAggregator,
	engine *pacing.Engine,
	locker lease.Locker,
	clock pacing.Clock,
	settings DispatchSettings,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		repo:       repo,
		gateway:    gw,
		executor:   executor,
		aggregator: aggregator,
		engine:     engine,
		locker:     locker,
		clock:      clock,
		settings:   settings,
		logger:     logger,
	}
}

type recipientResult int

const (
	resultSent recipientResult = iota
	resultFailed
	resultBlocked
	resultAborted
)

// Run processes pending recipients until the campaign completes, leaves
// in_progress, or ctx ends. A campaign leased by another process is skipped.
func (d *Dispatcher) Run(ctx context.Context, campaignID uuid.UUID) error {
	held, err := d.locker.Acquire(ctx, campaignID, d.settings.LeaseTTL)
	if err != nil {
		if errors.Is(err, lease.ErrNotHeld) {
			d.logger.Debug("Campaign is owned by another dispatcher", zap.String("campaign_id", campaignID.String()))
			return nil
		}
		return fmt.Errorf("failed to acquire lease: %w", err)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := held.Release(releaseCtx); err != nil {
			d.logger.Warn("Failed to release campaign lease", zap.String("campaign_id", campaignID.String()), zap.Error(err))
		}
	}()

	metrics.ActiveDispatches.Inc()
	defer metrics.ActiveDispatches.Dec()

	campaign, err := d.repo.Campaign().GetByID(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("failed to get campaign: %w", err)
	}

	instance, err := d.repo.Instance().GetByID(ctx, campaign.InstanceID)
	if err != nil {
		return fmt.Errorf("failed to get instance: %w", err)
	}

	logger := d.logger.With(zap.String("campaign_id", campaignID.String()))

	if campaign.Status == models.CampaignStatusPaused && campaign.Reason() == models.PauseReasonRecovery {
		resumed, err := d.resumeAfterRecovery(ctx, campaign, instance, logger)
		if err != nil || !resumed {
			return err
		}
	}

	logger.Info("Campaign loop started")
	consecutiveFailures := 0

	for {
		if ctx.Err() != nil {
			logger.Info("Campaign loop interrupted")
			return nil
		}

		if err := held.Refresh(ctx, d.settings.LeaseTTL); err != nil {
			if errors.Is(err, lease.ErrNotHeld) {
				logger.Warn("Campaign lease lost")
				return nil
			}
			return fmt.Errorf("failed to refresh lease: %w", err)
		}

		current, err := d.repo.Campaign().GetByID(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("failed to get campaign: %w", err)
		}
		if current.Status != models.CampaignStatusInProgress {
			logger.Info("Campaign loop stopped", zap.String("status", string(current.Status)))
			return nil
		}

		recipient, err := d.repo.Recipient().NextPending(ctx, campaignID)
		if err != nil {
			return fmt.Errorf("failed to get next recipient: %w", err)
		}
		if recipient == nil {
			if _, err := d.aggregator.Finalize(ctx, current); err != nil {
				return err
			}
			return nil
		}

		if d.engine.IsBatchBoundary(recipient.Position) && d.sessionClosed(ctx, instance, logger) {
			return d.haltDisconnected(ctx, current, logger)
		}

		result, counters, err := d.process(ctx, current, instance, recipient, logger)
		if err != nil {
			return err
		}

		switch result {
		case resultAborted:
			logger.Info("Campaign loop interrupted")
			return nil
		case resultSent:
			consecutiveFailures = 0
		case resultFailed:
			consecutiveFailures++
		case resultBlocked:
			continue
		}

		// Nothing left to send: the next iteration finalizes the campaign.
		if counters.Processed() >= counters.Total {
			continue
		}

		if consecutiveFailures >= d.settings.MaxConsecutiveFailures {
			resumed, err := d.recoveryPause(ctx, current, instance, logger)
			if err != nil || !resumed {
				return err
			}
			consecutiveFailures = 0
			continue
		}

		if err := d.clock.Sleep(ctx, d.engine.NextDelay(recipient.Position)); err != nil {
			logger.Info("Campaign loop interrupted")
			return nil
		}
	}
}

func (d *Dispatcher) process(
	ctx context.Context,
	campaign *models.Campaign,
	instance *models.Instance,
	recipient *models.Recipient,
	logger *zap.Logger,
) (recipientResult, models.Counters, error) {
	contact, err := d.repo.Contact().GetByPhone(ctx, campaign.OwnerID, recipient.Phone)
	if err != nil {
		return 0, models.Counters{}, fmt.Errorf("failed to get contact: %w", err)
	}

	// Outcomes are stored even if ctx ends right after the send.
	recordCtx := context.WithoutCancel(ctx)

	if contact != nil && contact.Status == models.ContactStatusUnsubscribed {
		logger.Info("Recipient skipped, contact unsubscribed",
			zap.Int("position", recipient.Position),
			zap.String("phone", recipient.Phone),
		)
		counters, err := d.aggregator.Record(recordCtx, campaign.ID, recipient.ID, models.RecipientStatusBlocked, unsubscribedReasonMsg)
		return resultBlocked, counters, err
	}

	if contact == nil && !campaign.ResolvedFromTags() {
		if _, err := d.repo.Contact().InsertIfAbsent(ctx, campaign.OwnerID, recipient.Phone, recipient.Name); err != nil {
			logger.Warn("Failed to save contact", zap.String("phone", recipient.Phone), zap.Error(err))
		}
	}

	req := &gateway.SendRequest{
		Session:   instance.InstanceName,
		APIKey:    instance.APIKey.String,
		To:        recipient.Phone,
		Text:      recipient.Message,
		MediaURL:  campaign.MediaURL.String,
		MediaType: campaign.MediaType.String,
		Composing: d.engine.TypingDelay(recipient.Message),
	}

	delivery := d.executor.Deliver(ctx, req)
	if delivery.Aborted {
		return resultAborted, models.Counters{}, nil
	}

	if delivery.Delivered {
		counters, err := d.aggregator.Record(recordCtx, campaign.ID, recipient.ID, models.RecipientStatusSent, "")
		return resultSent, counters, err
	}

	logger.Warn("Recipient failed",
		zap.Int("position", recipient.Position),
		zap.Int("attempts", delivery.Attempts),
		zap.Error(delivery.Err),
	)
	counters, err := d.aggregator.Record(recordCtx, campaign.ID, recipient.ID, models.RecipientStatusFailed, delivery.ErrorText())
	return resultFailed, counters, err
}

// recoveryPause parks the campaign as paused/recovery, waits out the recovery
// window and resumes it if the session is still open. It reports whether the
// loop should continue.
func (d *Dispatcher) recoveryPause(ctx context.Context, campaign *models.Campaign, instance *models.Instance, logger *zap.Logger) (bool, error) {
	paused, err := d.repo.Campaign().Transition(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusInProgress}, models.CampaignStatusPaused, models.PauseReasonRecovery)
	if err != nil {
		return false, fmt.Errorf("failed to pause campaign: %w", err)
	}
	if !paused {
		// Someone else moved the campaign; the next safe point sees it.
		return true, nil
	}

	metrics.RecoveryPauses.Inc()
	metrics.StatusTransitions.WithLabelValues(string(models.CampaignStatusInProgress), string(models.CampaignStatusPaused)).Inc()
	logger.Warn("Consecutive failures, pausing campaign",
		zap.Int("failures", d.settings.MaxConsecutiveFailures),
		zap.Duration("pause", d.settings.RecoveryPause),
	)

	if err := d.clock.Sleep(ctx, d.settings.RecoveryPause); err != nil {
		logger.Info("Recovery pause interrupted")
		return false, nil
	}

	return d.resumeAfterRecovery(ctx, campaign, instance, logger)
}

func (d *Dispatcher) resumeAfterRecovery(ctx context.Context, campaign *models.Campaign, instance *models.Instance, logger *zap.Logger) (bool, error) {
	if d.sessionClosed(ctx, instance, logger) {
		if _, err := d.repo.Campaign().SetPauseReason(ctx, campaign.ID, models.PauseReasonRecovery, models.PauseReasonDisconnected); err != nil {
			return false, fmt.Errorf("failed to update pause reason: %w", err)
		}
		logger.Warn("Session disconnected, campaign stays paused")
		return false, nil
	}

	resumed, err := d.repo.Campaign().ResumeFromRecovery(ctx, campaign.ID)
	if err != nil {
		return false, fmt.Errorf("failed to resume campaign: %w", err)
	}
	if !resumed {
		logger.Info("Recovery resume skipped, campaign status changed")
		return false, nil
	}

	metrics.StatusTransitions.WithLabelValues(string(models.CampaignStatusPaused), string(models.CampaignStatusInProgress)).Inc()
	logger.Info("Campaign resumed after recovery pause")
	return true, nil
}

func (d *Dispatcher) haltDisconnected(ctx context.Context, campaign *models.Campaign, logger *zap.Logger) error {
	paused, err := d.repo.Campaign().Transition(ctx, campaign.ID,
		[]models.CampaignStatus{models.CampaignStatusInProgress}, models.CampaignStatusPaused, models.PauseReasonDisconnected)
	if err != nil {
		return fmt.Errorf("failed to pause campaign: %w", err)
	}
	if paused {
		metrics.StatusTransitions.WithLabelValues(string(models.CampaignStatusInProgress), string(models.CampaignStatusPaused)).Inc()
		logger.Warn("Session disconnected, campaign paused")
	}
	return nil
}

func (d *Dispatcher) sessionClosed(ctx context.Context, instance *models.Instance, logger *zap.Logger) bool {
	return probeClosed(ctx, d.gateway, instance, logger)
}

// probeClosed treats only an explicit closed state as authoritative; probe
// failures assume the session is still connected.
func probeClosed(ctx context.Context, gw Gateway, instance *models.Instance, logger *zap.Logger) bool {
	state, err := gw.ConnectionState(ctx, instance.InstanceName, instance.APIKey.String)
	if err != nil {
		logger.Warn("Connection state probe failed, assuming connected",
			zap.String("instance", instance.InstanceName),
			zap.Error(err),
		)
		return false
	}
	return state == gateway.StateDisconnected
}
