package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/models"
)

// StatusCounter reports how many campaigns sit in each status.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[models.CampaignStatus]int, error)
}

var allStatuses = []models.CampaignStatus{
	models.CampaignStatusScheduled,
	models.CampaignStatusInProgress,
	models.CampaignStatusPaused,
	models.CampaignStatusCompleted,
	models.CampaignStatusCancelled,
	models.CampaignStatusBlocked,
}

// StatusReporter refreshes CampaignsByStatus on a cron schedule.
type StatusReporter struct {
	counter StatusCounter
	cron    *cron.Cron
	logger  *zap.Logger
}

func NewStatusReporter(counter StatusCounter, logger *zap.Logger) *StatusReporter {
	return &StatusReporter{
		counter: counter,
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DiscardLogger))),
		logger:  logger,
	}
}

// Start schedules the refresh with spec (e.g. "@every 1m") and runs it once.
func (r *StatusReporter) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.Refresh); err != nil {
		return fmt.Errorf("failed to add status report job: %w", err)
	}
	r.Refresh()
	r.cron.Start()
	r.logger.Info("Campaign status reporter started", zap.String("spec", spec))
	return nil
}

func (r *StatusReporter) Stop() {
	<-r.cron.Stop().Done()
}

func (r *StatusReporter) Refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := r.counter.CountByStatus(ctx)
	if err != nil {
		r.logger.Warn("Failed to count campaigns by status", zap.Error(err))
		return
	}
	for _, status := range allStatuses {
		CampaignsByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
