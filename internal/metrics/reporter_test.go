package metrics_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/models"
)

type staticCounter struct {
	counts map[models.CampaignStatus]int
	err    error
}

func (s staticCounter) CountByStatus(context.Context) (map[models.CampaignStatus]int, error) {
	return s.counts, s.err
}

func TestStatusReporter_Refresh(t *testing.T) {
	r := metrics.NewStatusReporter(staticCounter{counts: map[models.CampaignStatus]int{
		models.CampaignStatusInProgress: 2,
		models.CampaignStatusCompleted:  7,
	}}, zap.NewNop())

	r.Refresh()

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.CampaignsByStatus.WithLabelValues("in_progress")))
	assert.Equal(t, 7.0, testutil.ToFloat64(metrics.CampaignsByStatus.WithLabelValues("completed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.CampaignsByStatus.WithLabelValues("paused")))
}

func TestStatusReporter_RefreshErrorKeepsValues(t *testing.T) {
	metrics.CampaignsByStatus.WithLabelValues("blocked").Set(3)

	r := metrics.NewStatusReporter(staticCounter{err: errors.New("db down")}, zap.NewNop())
	r.Refresh()

	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.CampaignsByStatus.WithLabelValues("blocked")))
}

func TestStatusReporter_StartRejectsBadSpec(t *testing.T) {
	r := metrics.NewStatusReporter(staticCounter{}, zap.NewNop())
	err := r.Start("not a cron spec")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to add status report job")
}
