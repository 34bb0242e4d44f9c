package service_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/gateway"
	"github.com/popeskul/wa-dispatcher/internal/lease"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/service"
)

type dispatchFixture struct {
	store      *memStore
	gw         *fakeGateway
	clock      *fakeClock
	locker     lease.Locker
	engine     *pacing.Engine
	dispatcher *service.Dispatcher
	owner      uuid.UUID
	instance   *models.Instance
}

func newDispatchFixture(t *testing.T) *dispatchFixture {
	t.Helper()

	store := newMemStore()
	owner := uuid.New()
	instance := store.addInstance(owner)
	store.setSubscription(owner, true)

	gw := newFakeGateway()
	clock := newFakeClock()
	locker := lease.NewLocalLocker()
	engine := pacing.NewEngine(pacing.DefaultConfig(), steadySource{})
	logger := zap.NewNop()

	executor := service.NewDeliveryExecutor(gw, lenientBreaker(), service.DefaultRetryPolicy(), clock, logger)
	aggregator := service.NewStatusAggregator(store, clock, logger)
	settings := service.DispatchSettings{
		MaxConsecutiveFailures: 3,
		RecoveryPause:          3 * time.Minute,
		LeaseTTL:               time.Minute,
	}

	return &dispatchFixture{
		store:      store,
		gw:         gw,
		clock:      clock,
		locker:     locker,
		engine:     engine,
		dispatcher: service.NewDispatcher(store, gw, executor, aggregator, engine, locker, clock, settings, logger),
		owner:      owner,
		instance:   instance,
	}
}

func (f *dispatchFixture) campaignService() service.CampaignService {
	return service.NewCampaignService(f.store, f.gw, &recordingLauncher{}, f.engine, f.clock, 1000, zap.NewNop())
}

func (f *dispatchFixture) statuses(id uuid.UUID) []models.RecipientStatus {
	var out []models.RecipientStatus
	for _, r := range f.store.recipientsOf(id) {
		out = append(out, r.Status)
	}
	return out
}

func sentTo(reqs []gateway.SendRequest) []string {
	var out []string
	for _, r := range reqs {
		out = append(out, r.To)
	}
	return out
}

func repeatStatus(s models.RecipientStatus, n int) []models.RecipientStatus {
	out := make([]models.RecipientStatus, n)
	for i := range out {
		out[i] = s
	}
	return out
}

func TestDispatcher_TwelveRecipientsTwoVariations(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()

	clients := make([]service.ClientInput, 12)
	for i := range clients {
		clients[i] = service.ClientInput{Name: "c" + string(rune('a'+i)), Phone: "+" + phoneAt(i)}
	}

	created, err := f.campaignService().CreateCampaign(ctx, f.owner, &service.CreateCampaignInput{
		Name:       "promo",
		Clients:    clients,
		Variations: []string{"A {nome}", "B {name}"},
	})
	require.NoError(t, err)
	require.Equal(t, 12, created.TotalContacts)

	require.NoError(t, f.dispatcher.Run(ctx, created.CampaignID))

	sent := f.gw.Sent()
	require.Len(t, sent, 12)
	for i, req := range sent {
		variation := "A"
		if i >= 5 && i < 10 {
			variation = "B"
		}
		assert.Equal(t, variation+" "+clients[i].Name, req.Text, "recipient %d", i)
		assert.Equal(t, phoneAt(i), req.To)
		assert.Equal(t, f.instance.InstanceName, req.Session)
		assert.Equal(t, "secret", req.APIKey)
		assert.Equal(t, f.engine.TypingDelay(req.Text), req.Composing)
	}

	for i, r := range f.store.recipientsOf(created.CampaignID) {
		assert.Equal(t, (i/5)%2, r.VariationIndex)
	}

	campaign := f.store.campaign(created.CampaignID)
	assert.Equal(t, models.CampaignStatusCompleted, campaign.Status)
	assert.Equal(t, 12, campaign.SentCount)
	assert.Equal(t, 0, campaign.FailedCount)
	assert.True(t, campaign.CompletedAt.Valid)

	s := time.Second
	assert.Equal(t, []time.Duration{24 * s, 24 * s, 24 * s, 16 * s, 16 * s, 16 * s, 12 * s, 12 * s, 12 * s, 12 * s, 8 * s},
		f.clock.Sleeps(), "no pacing delay after the last recipient")
	assert.Equal(t, 2, f.gw.Probes(), "one probe per batch boundary")

	contact, err := f.store.Contact().GetByPhone(ctx, f.owner, phoneAt(11))
	require.NoError(t, err)
	require.NotNil(t, contact, "explicit recipients are saved as contacts")
	assert.Equal(t, clients[11].Name, contact.DisplayName())
}

func TestDispatcher_SavesContactsOfExplicitLists(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 2)

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	for i := 0; i < 2; i++ {
		contact, err := f.store.Contact().GetByPhone(ctx, f.owner, phoneAt(i))
		require.NoError(t, err)
		require.NotNil(t, contact)
		assert.Equal(t, models.ContactStatusActive, contact.Status)
	}
}

func TestDispatcher_UnsubscribedContactIsBlocked(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 3)
	f.store.addContact(f.owner, phoneAt(1), "optout", models.ContactStatusUnsubscribed)

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Equal(t, []string{phoneAt(0), phoneAt(2)}, sentTo(f.gw.Sent()))
	assert.Equal(t, []models.RecipientStatus{
		models.RecipientStatusSent, models.RecipientStatusBlocked, models.RecipientStatusSent,
	}, f.statuses(campaign.ID))

	blocked := f.store.recipientsOf(campaign.ID)[1]
	assert.Equal(t, "contact unsubscribed", blocked.Error.String)

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 2, got.SentCount)
	assert.Equal(t, 1, got.BlockedCount)
	assert.Equal(t, []time.Duration{24 * time.Second}, f.clock.Sleeps(), "blocked recipients add no delay")
}

func TestDispatcher_RetriesThenFails(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 2)

	f.gw.sendFn = func(req *gateway.SendRequest) error {
		if req.To == phoneAt(0) {
			return &gateway.StatusError{Code: http.StatusServiceUnavailable}
		}
		return nil
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Len(t, f.gw.Sent(), 4, "three attempts for the first recipient, one for the second")
	assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 24 * time.Second}, f.clock.Sleeps())

	rows := f.store.recipientsOf(campaign.ID)
	assert.Equal(t, models.RecipientStatusFailed, rows[0].Status)
	assert.Contains(t, rows[0].Error.String, "503")
	assert.Equal(t, models.RecipientStatusSent, rows[1].Status)

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 1, got.SentCount)
	assert.Equal(t, 1, got.FailedCount)
}

func TestDispatcher_RecoveryPauseAfterConsecutiveFailures(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 5)

	failing := map[string]bool{phoneAt(0): true, phoneAt(1): true, phoneAt(2): true}
	f.gw.sendFn = func(req *gateway.SendRequest) error {
		if failing[req.To] {
			return &gateway.StatusError{Code: http.StatusBadRequest}
		}
		return nil
	}

	var pausedDuringRecovery bool
	var sendsBeforeRecovery int
	f.clock.onSleep = func(d time.Duration) {
		if d == 3*time.Minute {
			c := f.store.campaign(campaign.ID)
			pausedDuringRecovery = c.Status == models.CampaignStatusPaused && c.Reason() == models.PauseReasonRecovery
			sendsBeforeRecovery = len(f.gw.Sent())
		}
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	s := time.Second
	assert.Equal(t, []time.Duration{24 * s, 24 * s, 3 * time.Minute, 16 * s}, f.clock.Sleeps())
	assert.True(t, pausedDuringRecovery)
	assert.Equal(t, 3, sendsBeforeRecovery, "the pause happens before the 4th attempt")
	assert.Equal(t, 1, f.gw.Probes(), "the session is checked before resuming")

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 3, got.FailedCount)
	assert.Equal(t, 2, got.SentCount)
}

func TestDispatcher_RecoveryEndsDisconnected(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 6)

	f.gw.sendFn = func(*gateway.SendRequest) error {
		return &gateway.StatusError{Code: http.StatusBadRequest}
	}
	f.gw.stateFn = func() (gateway.ConnectionState, error) {
		return gateway.StateDisconnected, nil
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonDisconnected, got.Reason())
	assert.Len(t, f.gw.Sent(), 3)
	assert.Equal(t, append(repeatStatus(models.RecipientStatusFailed, 3), repeatStatus(models.RecipientStatusPending, 3)...),
		f.statuses(campaign.ID))
}

func TestDispatcher_DisconnectAtBatchBoundary(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 8)

	f.gw.stateFn = func() (gateway.ConnectionState, error) {
		return gateway.StateDisconnected, nil
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonDisconnected, got.Reason())
	assert.Equal(t, 5, got.SentCount)
	assert.Equal(t, append(repeatStatus(models.RecipientStatusSent, 5), repeatStatus(models.RecipientStatusPending, 3)...),
		f.statuses(campaign.ID))
}

func TestDispatcher_ProbeErrorAssumesConnected(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 6)

	f.gw.stateFn = func() (gateway.ConnectionState, error) {
		return gateway.StateUnknown, errors.New("status endpoint timeout")
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Equal(t, 1, f.gw.Probes())
	assert.Equal(t, models.CampaignStatusCompleted, f.store.campaign(campaign.ID).Status)
}

func TestDispatcher_OperatorPauseAndResume(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 10)

	f.store.afterRecord = func(r models.Recipient) {
		if r.Position == 3 {
			f.store.setStatus(campaign.ID, models.CampaignStatusPaused, models.PauseReasonOperator)
		}
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)
	assert.Equal(t, append(repeatStatus(models.RecipientStatusSent, 4), repeatStatus(models.RecipientStatusPending, 6)...),
		f.statuses(campaign.ID))
	assert.Len(t, f.gw.Sent(), 4, "the pause is observed at the next safe point")

	f.store.afterRecord = nil
	f.store.setStatus(campaign.ID, models.CampaignStatusInProgress, models.PauseReasonNone)

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	sent := sentTo(f.gw.Sent())
	require.Len(t, sent, 10)
	assert.Equal(t, phoneAt(4), sent[4], "resume continues from the first pending recipient")
	assert.Equal(t, repeatStatus(models.RecipientStatusSent, 10), f.statuses(campaign.ID))
	assert.Equal(t, models.CampaignStatusCompleted, f.store.campaign(campaign.ID).Status)
}

func TestDispatcher_CancelStopsLoop(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 5)

	f.store.afterRecord = func(r models.Recipient) {
		if r.Position == 1 {
			f.store.setStatus(campaign.ID, models.CampaignStatusCancelled, models.PauseReasonNone)
		}
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusCancelled, got.Status)
	assert.False(t, got.CompletedAt.Valid)
	assert.Equal(t, 2, got.SentCount)
	assert.Len(t, f.gw.Sent(), 2)
}

func TestDispatcher_CompletesOnce(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 1)

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))
	first := f.store.campaign(campaign.ID)
	require.True(t, first.CompletedAt.Valid)

	f.clock.now = f.clock.now.Add(time.Hour)
	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	second := f.store.campaign(campaign.ID)
	assert.Equal(t, first.CompletedAt.Time, second.CompletedAt.Time)
	assert.Len(t, f.gw.Sent(), 1)
}

func TestDispatcher_SkipsLeasedCampaign(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 3)

	held, err := f.locker.Acquire(ctx, campaign.ID, time.Minute)
	require.NoError(t, err)
	defer func() { _ = held.Release(ctx) }()

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Empty(t, f.gw.Sent())
	assert.Equal(t, models.CampaignStatusInProgress, f.store.campaign(campaign.ID).Status)
}

func TestDispatcher_ShutdownLeavesCampaignResumable(t *testing.T) {
	f := newDispatchFixture(t)
	campaign := f.store.seedCampaign(f.owner, f.instance, 4)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.clock.onSleep = func(time.Duration) { cancel() }

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusInProgress, got.Status)
	assert.Equal(t, 1, got.SentCount)

	// The lease was released on the way out.
	held, err := f.locker.Acquire(context.Background(), campaign.ID, time.Minute)
	require.NoError(t, err)
	require.NoError(t, held.Release(context.Background()))
}

func TestDispatcher_ResumesStaleRecoveryPause(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 2)
	f.store.setStatus(campaign.ID, models.CampaignStatusPaused, models.PauseReasonRecovery)

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Equal(t, 1, f.gw.Probes())
	assert.Equal(t, models.CampaignStatusCompleted, f.store.campaign(campaign.ID).Status)
}

func TestDispatcher_OperatorPauseIsNotAutoResumed(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 2)
	f.store.setStatus(campaign.ID, models.CampaignStatusPaused, models.PauseReasonOperator)

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Empty(t, f.gw.Sent())
	assert.Equal(t, models.CampaignStatusPaused, f.store.campaign(campaign.ID).Status)
}

func TestDispatcher_OperatorPauseDuringRecoveryHolds(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 5)
	control := service.NewControlService(f.store, f.gw, &recordingLauncher{}, f.clock, zap.NewNop())

	failing := map[string]bool{phoneAt(0): true, phoneAt(1): true, phoneAt(2): true}
	f.gw.sendFn = func(req *gateway.SendRequest) error {
		if failing[req.To] {
			return &gateway.StatusError{Code: http.StatusBadRequest}
		}
		return nil
	}

	var pauseErr error
	f.clock.onSleep = func(d time.Duration) {
		if d == 3*time.Minute {
			_, pauseErr = control.Apply(ctx, f.owner, campaign.ID, service.CommandPause)
		}
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))
	require.NoError(t, pauseErr)

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusPaused, got.Status)
	assert.Equal(t, models.PauseReasonOperator, got.Reason())
	assert.Len(t, f.gw.Sent(), 3)

	// A relaunch by the sweep after the recovery window must not resume it.
	f.clock.onSleep = nil
	f.clock.now = f.clock.now.Add(time.Hour)
	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	assert.Len(t, f.gw.Sent(), 3)
	assert.Equal(t, models.CampaignStatusPaused, f.store.campaign(campaign.ID).Status)
	assert.Equal(t, append(repeatStatus(models.RecipientStatusFailed, 3), repeatStatus(models.RecipientStatusPending, 2)...),
		f.statuses(campaign.ID))
}

func TestDispatcher_LastFailureCompletesWithoutRecoveryPause(t *testing.T) {
	f := newDispatchFixture(t)
	ctx := context.Background()
	campaign := f.store.seedCampaign(f.owner, f.instance, 3)

	f.gw.sendFn = func(*gateway.SendRequest) error {
		return &gateway.StatusError{Code: http.StatusUnauthorized}
	}
	f.gw.stateFn = func() (gateway.ConnectionState, error) {
		return gateway.StateDisconnected, nil
	}

	require.NoError(t, f.dispatcher.Run(ctx, campaign.ID))

	s := time.Second
	assert.Equal(t, []time.Duration{24 * s, 24 * s}, f.clock.Sleeps())
	assert.Zero(t, f.gw.Probes())
	assert.Equal(t, repeatStatus(models.RecipientStatusFailed, 3), f.statuses(campaign.ID))

	got := f.store.campaign(campaign.ID)
	assert.Equal(t, models.CampaignStatusCompleted, got.Status)
	assert.Equal(t, 3, got.FailedCount)
	assert.True(t, got.CompletedAt.Valid)
}
