package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

// Command is an operator action on a campaign.
type Command string

const (
	CommandPause   Command = "pause"
	CommandResume  Command = "resume"
	CommandCancel  Command = "cancel"
	CommandSendNow Command = "send-now"
)

type commandRule struct {
	from   []models.CampaignStatus
	to     models.CampaignStatus
	reason models.PauseReason
	// noop statuses leave the campaign untouched without error.
	noop []models.CampaignStatus
}

var commandRules = map[Command]commandRule{
	CommandPause: {
		from:   []models.CampaignStatus{models.CampaignStatusInProgress},
		to:     models.CampaignStatusPaused,
		reason: models.PauseReasonOperator,
		noop:   []models.CampaignStatus{models.CampaignStatusPaused, models.CampaignStatusCompleted, models.CampaignStatusCancelled},
	},
	CommandResume: {
		from: []models.CampaignStatus{models.CampaignStatusPaused},
		to:   models.CampaignStatusInProgress,
		noop: []models.CampaignStatus{models.CampaignStatusInProgress},
	},
	CommandCancel: {
		from: []models.CampaignStatus{
			models.CampaignStatusScheduled,
			models.CampaignStatusInProgress,
			models.CampaignStatusPaused,
			models.CampaignStatusBlocked,
		},
		to:   models.CampaignStatusCancelled,
		noop: []models.CampaignStatus{models.CampaignStatusCompleted, models.CampaignStatusCancelled},
	},
	CommandSendNow: {
		from: []models.CampaignStatus{models.CampaignStatusScheduled},
		to:   models.CampaignStatusInProgress,
		noop: []models.CampaignStatus{models.CampaignStatusInProgress},
	},
}

// ParseCommand maps a command name to a Command.
func ParseCommand(name string) (Command, bool) {
	cmd := Command(name)
	_, ok := commandRules[cmd]
	return cmd, ok
}

type controlService struct {
	repo     repository.Repository
	gateway  Gateway
	launcher Launcher
	clock    pacing.Clock
	logger   *zap.Logger
}

func NewControlService(repo repository.Repository, gw Gateway, launcher Launcher, clock pacing.Clock, logger *zap.Logger) ControlService {
	return &controlService{
		repo:     repo,
		gateway:  gw,
		launcher: launcher,
		clock:    clock,
		logger:   logger,
	}
}

// Apply writes the status change of cmd as a conditional update. A running
// loop observes it at its next safe point.
func (s *controlService) Apply(ctx context.Context, ownerID, id uuid.UUID, cmd Command) (*models.Campaign, error) {
	rule, ok := commandRules[cmd]
	if !ok {
		return nil, NewValidationError("command", fmt.Sprintf("unknown command %q", cmd))
	}

	campaign, err := s.getCampaign(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}

	if cmd == CommandPause && campaign.Status == models.CampaignStatusPaused && campaign.Reason() == models.PauseReasonRecovery {
		return s.holdRecoveryPause(ctx, ownerID, campaign)
	}

	if slices.Contains(rule.noop, campaign.Status) {
		s.logger.Info("Campaign command is a no-op",
			zap.String("campaign_id", id.String()),
			zap.String("command", string(cmd)),
			zap.String("status", string(campaign.Status)),
		)
		return campaign, nil
	}

	if !slices.Contains(rule.from, campaign.Status) {
		return nil, fmt.Errorf("%w: cannot %s a %s campaign", ErrInvalidTransition, cmd, campaign.Status)
	}

	switch cmd {
	case CommandResume:
		if err := s.checkSession(ctx, campaign); err != nil {
			return nil, err
		}
	case CommandSendNow:
		if err := s.checkSubscription(ctx, campaign); err != nil {
			return nil, err
		}
	}

	applied, err := s.repo.Campaign().Transition(ctx, id, []models.CampaignStatus{campaign.Status}, rule.to, rule.reason)
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s: %w", cmd, err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: campaign status changed concurrently", ErrInvalidTransition)
	}

	metrics.StatusTransitions.WithLabelValues(string(campaign.Status), string(rule.to)).Inc()
	s.logger.Info("Campaign command applied",
		zap.String("campaign_id", id.String()),
		zap.String("command", string(cmd)),
		zap.String("from", string(campaign.Status)),
		zap.String("to", string(rule.to)),
	)

	if rule.to == models.CampaignStatusInProgress {
		s.launcher.Launch(id)
	}

	return s.getCampaign(ctx, ownerID, id)
}

// holdRecoveryPause turns an automatic recovery pause into an operator pause,
// so neither the sleeping loop nor the sweep resumes the campaign.
func (s *controlService) holdRecoveryPause(ctx context.Context, ownerID uuid.UUID, campaign *models.Campaign) (*models.Campaign, error) {
	applied, err := s.repo.Campaign().SetPauseReason(ctx, campaign.ID, models.PauseReasonRecovery, models.PauseReasonOperator)
	if err != nil {
		return nil, fmt.Errorf("failed to apply %s: %w", CommandPause, err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: campaign status changed concurrently", ErrInvalidTransition)
	}

	s.logger.Info("Recovery pause held by operator", zap.String("campaign_id", campaign.ID.String()))
	return s.getCampaign(ctx, ownerID, campaign.ID)
}

func (s *controlService) Reschedule(ctx context.Context, ownerID, id uuid.UUID, at time.Time) (*models.Campaign, error) {
	if !at.After(s.clock.Now()) {
		return nil, NewValidationError("scheduled_at", "must be in the future")
	}

	campaign, err := s.getCampaign(ctx, ownerID, id)
	if err != nil {
		return nil, err
	}
	if campaign.Status != models.CampaignStatusScheduled {
		return nil, fmt.Errorf("%w: only scheduled campaigns can be rescheduled, campaign is %s", ErrInvalidTransition, campaign.Status)
	}

	applied, err := s.repo.Campaign().Reschedule(ctx, id, at)
	if err != nil {
		return nil, fmt.Errorf("failed to reschedule campaign: %w", err)
	}
	if !applied {
		return nil, fmt.Errorf("%w: campaign is no longer scheduled", ErrInvalidTransition)
	}

	s.logger.Info("Campaign rescheduled", zap.String("campaign_id", id.String()), zap.Time("scheduled_at", at))
	return s.getCampaign(ctx, ownerID, id)
}

// ReactivateBlocked returns the owner's blocked campaigns whose send time is
// still ahead to scheduled. It requires an active subscription.
func (s *controlService) ReactivateBlocked(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error) {
	active, err := s.repo.Account().HasActiveSubscription(ctx, ownerID, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to check subscription: %w", err)
	}
	if !active {
		return nil, ErrSubscriptionInactive
	}

	ids, err := s.repo.Campaign().ReactivateBlocked(ctx, ownerID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	for range ids {
		metrics.StatusTransitions.WithLabelValues(string(models.CampaignStatusBlocked), string(models.CampaignStatusScheduled)).Inc()
	}
	s.logger.Info("Blocked campaigns reactivated", zap.String("owner_id", ownerID.String()), zap.Int("count", len(ids)))

	return ids, nil
}

func (s *controlService) getCampaign(ctx context.Context, ownerID, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.repo.Campaign().GetForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

func (s *controlService) checkSession(ctx context.Context, campaign *models.Campaign) error {
	instance, err := s.repo.Instance().GetByID(ctx, campaign.InstanceID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInstanceNotFound
		}
		return fmt.Errorf("failed to get instance: %w", err)
	}
	if probeClosed(ctx, s.gateway, instance, s.logger) {
		return ErrSessionDisconnected
	}
	return nil
}

// checkSubscription blocks the campaign when the owner has no active
// subscription.
func (s *controlService) checkSubscription(ctx context.Context, campaign *models.Campaign) error {
	active, err := s.repo.Account().HasActiveSubscription(ctx, campaign.OwnerID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if active {
		return nil
	}

	blocked, err := s.repo.Campaign().Transition(ctx, campaign.ID,
		[]models.CampaignStatus{campaign.Status}, models.CampaignStatusBlocked, models.PauseReasonNone)
	if err != nil {
		return fmt.Errorf("failed to block campaign: %w", err)
	}
	if blocked {
		metrics.StatusTransitions.WithLabelValues(string(campaign.Status), string(models.CampaignStatusBlocked)).Inc()
	}
	return ErrSubscriptionInactive
}
