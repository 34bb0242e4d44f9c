package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

// StatusAggregator records recipient outcomes and detects campaign completion.
// Counters only ever grow; the store applies each outcome at most once.
type StatusAggregator struct {
	repo   repository.Repository
	clock  pacing.Clock
	logger *zap.Logger
}

func NewStatusAggregator(repo repository.Repository, clock pacing.Clock, logger *zap.Logger) *StatusAggregator {
	return &StatusAggregator{
		repo:   repo,
		clock:  clock,
		logger: logger,
	}
}

// Record stores the terminal outcome of one recipient and returns the
// campaign counters after it.
func (a *StatusAggregator) Record(ctx context.Context, campaignID uuid.UUID, recipientID int64, status models.RecipientStatus, errText string) (models.Counters, error) {
	outcome := models.Outcome{
		Status: status,
		Error:  errText,
		At:     a.clock.Now(),
	}

	counters, applied, err := a.repo.Campaign().RecordOutcome(ctx, campaignID, recipientID, outcome)
	if err != nil {
		return models.Counters{}, fmt.Errorf("failed to record outcome: %w", err)
	}

	if !applied {
		a.logger.Warn("Recipient already has a terminal status",
			zap.String("campaign_id", campaignID.String()),
			zap.Int64("recipient_id", recipientID),
			zap.String("outcome", string(status)),
		)
		return counters, nil
	}

	metrics.RecipientOutcomes.WithLabelValues(string(status)).Inc()
	return counters, nil
}

// Finalize reconciles the counters from the recipient rows and marks the
// campaign completed once every recipient is terminal. It reports whether
// the campaign is complete.
func (a *StatusAggregator) Finalize(ctx context.Context, campaign *models.Campaign) (bool, error) {
	counters, err := a.repo.Campaign().ReconcileCounters(ctx, campaign.ID)
	if err != nil {
		return false, fmt.Errorf("failed to reconcile counters: %w", err)
	}

	if !counters.Done() {
		return false, nil
	}

	marked, err := a.repo.Campaign().MarkCompleted(ctx, campaign.ID, a.clock.Now())
	if err != nil {
		return false, fmt.Errorf("failed to mark campaign completed: %w", err)
	}

	if marked {
		metrics.StatusTransitions.WithLabelValues(string(campaign.Status), string(models.CampaignStatusCompleted)).Inc()
		a.logger.Info("Campaign completed",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Int("total", counters.Total),
			zap.Int("sent", counters.Sent),
			zap.Int("failed", counters.Failed),
			zap.Int("blocked", counters.Blocked),
		)
	}

	return true, nil
}
