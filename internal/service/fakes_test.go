package service_test

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/wa-dispatcher/internal/gateway"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

// memStore is an in-memory repository.Repository with the same conditional
// write semantics as the PostgreSQL store.
type memStore struct {
	mu            sync.Mutex
	campaigns     map[uuid.UUID]*models.Campaign
	recipients    map[uuid.UUID][]*models.Recipient
	contacts      map[string]*models.Contact
	instances     map[uuid.UUID]*models.Instance
	subscriptions map[uuid.UUID]bool
	nextID        int64

	// afterRecord runs with the lock released after an outcome is applied.
	afterRecord func(r models.Recipient)
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:     make(map[uuid.UUID]*models.Campaign),
		recipients:    make(map[uuid.UUID][]*models.Recipient),
		contacts:      make(map[string]*models.Contact),
		instances:     make(map[uuid.UUID]*models.Instance),
		subscriptions: make(map[uuid.UUID]bool),
	}
}

func (s *memStore) Ping(context.Context) error { return nil }
func (s *memStore) Campaign() repository.CampaignRepository { return memCampaigns{s} }
func (s *memStore) Recipient() repository.RecipientRepository { return memRecipients{s} }
func (s *memStore) Contact() repository.ContactRepository { return memContacts{s} }
func (s *memStore) Instance() repository.InstanceRepository { return memInstances{s} }
func (s *memStore) Account() repository.AccountRepository { return memAccounts{s} }

func contactKey(owner uuid.UUID, phone string) string {
	return owner.String() + "|" + phone
}

// addInstance stores a connected instance with credentials for owner.
func (s *memStore) addInstance(owner uuid.UUID) *models.Instance {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst := &models.Instance{
		ID:           uuid.New(),
		OwnerID:      owner,
		InstanceName: "inst-" + owner.String()[:8],
		APIKey:       sql.NullString{String: "secret", Valid: true},
		Status:       models.InstanceStatusConnected,
	}
	s.instances[inst.ID] = inst
	return inst
}

func (s *memStore) setSubscription(owner uuid.UUID, active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[owner] = active
}

func (s *memStore) addContact(owner uuid.UUID, phone, name string, status models.ContactStatus, tags ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.contacts[contactKey(owner, phone)] = &models.Contact{
		ID:        s.nextID,
		OwnerID:   owner,
		Phone:     phone,
		Name:      sql.NullString{String: name, Valid: name != ""},
		Status:    status,
		Tags:      tags,
		CreatedAt: time.Now().Add(time.Duration(s.nextID) * time.Millisecond),
	}
}

// seedCampaign stores an in_progress campaign with n recipients.
func (s *memStore) seedCampaign(owner uuid.UUID, inst *models.Instance, n int) *models.Campaign {
	c := &models.Campaign{
		ID:            uuid.New(),
		OwnerID:       owner,
		InstanceID:    inst.ID,
		Name:          "seeded",
		Variations:    []string{"Hi {name}"},
		TotalContacts: n,
		Status:        models.CampaignStatusInProgress,
	}
	rows := make([]*models.Recipient, n)
	for i := range rows {
		rows[i] = &models.Recipient{
			Position: i,
			Name:     "client",
			Phone:    phoneAt(i),
			Message:  "Hi client",
		}
	}
	_ = memCampaigns{s}.Create(context.Background(), c, rows)
	return s.campaign(c.ID)
}

func (s *memStore) campaign(id uuid.UUID) *models.Campaign {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *s.campaigns[id]
	return &c
}

func (s *memStore) recipientsOf(id uuid.UUID) []models.Recipient {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Recipient, 0, len(s.recipients[id]))
	for _, r := range s.recipients[id] {
		out = append(out, *r)
	}
	return out
}

func (s *memStore) setStatus(id uuid.UUID, status models.CampaignStatus, reason models.PauseReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.campaigns[id]
	c.Status = status
	c.PauseReason = sql.NullString{String: string(reason), Valid: reason != ""}
	c.UpdatedAt = time.Now()
}

type memCampaigns struct{ s *memStore }

func (m memCampaigns) Create(_ context.Context, campaign *models.Campaign, recipients []*models.Recipient) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	now := time.Now()
	campaign.CreatedAt, campaign.UpdatedAt = now, now
	c := *campaign
	m.s.campaigns[c.ID] = &c
	rows := make([]*models.Recipient, 0, len(recipients))
	for _, r := range recipients {
		m.s.nextID++
		r.ID = m.s.nextID
		r.CampaignID = c.ID
		r.Status = models.RecipientStatusPending
		cp := *r
		rows = append(rows, &cp)
	}
	m.s.recipients[c.ID] = rows
	return nil
}

func (m memCampaigns) GetByID(_ context.Context, id uuid.UUID) (*models.Campaign, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m memCampaigns) GetForOwner(ctx context.Context, ownerID, id uuid.UUID) (*models.Campaign, error) {
	c, err := m.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, repository.ErrNotFound
	}
	return c, nil
}

func (m memCampaigns) List(_ context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Campaign, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range m.s.campaigns {
		if c.OwnerID == ownerID {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return nil, nil
	}
	return out[offset:min(offset+limit, len(out))], nil
}

func (m memCampaigns) CountByOwner(_ context.Context, ownerID uuid.UUID) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var n int64
	for _, c := range m.s.campaigns {
		if c.OwnerID == ownerID {
			n++
		}
	}
	return n, nil
}

func (m memCampaigns) Transition(_ context.Context, id uuid.UUID, from []models.CampaignStatus, to models.CampaignStatus, reason models.PauseReason) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok || !slices.Contains(from, c.Status) {
		return false, nil
	}
	c.Status = to
	c.PauseReason = sql.NullString{}
	if to == models.CampaignStatusPaused && reason != models.PauseReasonNone {
		c.PauseReason = sql.NullString{String: string(reason), Valid: true}
	}
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m memCampaigns) SetPauseReason(_ context.Context, id uuid.UUID, from, to models.PauseReason) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusPaused || c.Reason() != from {
		return false, nil
	}
	c.PauseReason = sql.NullString{String: string(to), Valid: true}
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m memCampaigns) ResumeFromRecovery(_ context.Context, id uuid.UUID) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusPaused || c.Reason() != models.PauseReasonRecovery {
		return false, nil
	}
	c.Status = models.CampaignStatusInProgress
	c.PauseReason = sql.NullString{}
	c.UpdatedAt = time.Now()
	return true, nil
}

func (m memCampaigns) Reschedule(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok || c.Status != models.CampaignStatusScheduled {
		return false, nil
	}
	c.ScheduledAt = sql.NullTime{Time: at, Valid: true}
	return true, nil
}

func (m memCampaigns) ReactivateBlocked(_ context.Context, ownerID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var ids []uuid.UUID
	for _, c := range m.s.campaigns {
		if c.OwnerID == ownerID && c.Status == models.CampaignStatusBlocked && c.ScheduledAt.Valid && c.ScheduledAt.Time.After(now) {
			c.Status = models.CampaignStatusScheduled
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (m memCampaigns) RecordOutcome(_ context.Context, campaignID uuid.UUID, recipientID int64, outcome models.Outcome) (models.Counters, bool, error) {
	m.s.mu.Lock()
	c := m.s.campaigns[campaignID]
	var target *models.Recipient
	for _, r := range m.s.recipients[campaignID] {
		if r.ID == recipientID {
			target = r
		}
	}
	if target == nil || target.Status != models.RecipientStatusPending {
		counters := c.Counters()
		m.s.mu.Unlock()
		return counters, false, nil
	}

	target.Status = outcome.Status
	target.Error = sql.NullString{String: outcome.Error, Valid: outcome.Error != ""}
	switch outcome.Status {
	case models.RecipientStatusSent:
		target.SentAt = sql.NullTime{Time: outcome.At, Valid: true}
		c.SentCount++
	case models.RecipientStatusFailed:
		c.FailedCount++
	case models.RecipientStatusBlocked:
		c.BlockedCount++
	}
	counters := c.Counters()
	snapshot := *target
	hook := m.s.afterRecord
	m.s.mu.Unlock()

	if hook != nil {
		hook(snapshot)
	}
	return counters, true, nil
}

func (m memCampaigns) ReconcileCounters(_ context.Context, id uuid.UUID) (models.Counters, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok {
		return models.Counters{}, repository.ErrNotFound
	}
	var sent, failed, blocked int
	for _, r := range m.s.recipients[id] {
		switch r.Status {
		case models.RecipientStatusSent:
			sent++
		case models.RecipientStatusFailed:
			failed++
		case models.RecipientStatusBlocked:
			blocked++
		}
	}
	c.SentCount = max(c.SentCount, sent)
	c.FailedCount = max(c.FailedCount, failed)
	c.BlockedCount = max(c.BlockedCount, blocked)
	return c.Counters(), nil
}

func (m memCampaigns) MarkCompleted(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.campaigns[id]
	if !ok || c.CompletedAt.Valid || !c.Counters().Done() {
		return false, nil
	}
	if c.Status != models.CampaignStatusInProgress && c.Status != models.CampaignStatusPaused {
		return false, nil
	}
	c.Status = models.CampaignStatusCompleted
	c.PauseReason = sql.NullString{}
	c.CompletedAt = sql.NullTime{Time: at, Valid: true}
	return true, nil
}

func (m memCampaigns) ListDue(_ context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	return m.filter(limit, func(c *models.Campaign) bool {
		return c.Status == models.CampaignStatusScheduled && c.ScheduledAt.Valid && !c.ScheduledAt.Time.After(now)
	}), nil
}

func (m memCampaigns) ListResumable(_ context.Context, staleBefore time.Time, limit int) ([]*models.Campaign, error) {
	return m.filter(limit, func(c *models.Campaign) bool {
		if c.Status == models.CampaignStatusInProgress {
			return true
		}
		return c.Status == models.CampaignStatusPaused && c.Reason() == models.PauseReasonRecovery && c.UpdatedAt.Before(staleBefore)
	}), nil
}

func (m memCampaigns) filter(limit int, keep func(*models.Campaign) bool) []*models.Campaign {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Campaign
	for _, c := range m.s.campaigns {
		if keep(c) && len(out) < limit {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out
}

func (m memCampaigns) CountByStatus(context.Context) (map[models.CampaignStatus]int, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	out := make(map[models.CampaignStatus]int)
	for _, c := range m.s.campaigns {
		out[c.Status]++
	}
	return out, nil
}

type memRecipients struct{ s *memStore }

func (m memRecipients) NextPending(_ context.Context, campaignID uuid.UUID) (*models.Recipient, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, r := range m.s.recipients[campaignID] {
		if r.Status == models.RecipientStatusPending {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (m memRecipients) List(_ context.Context, campaignID uuid.UUID, offset, limit int) ([]*models.Recipient, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	rows := m.s.recipients[campaignID]
	if offset >= len(rows) {
		return nil, nil
	}
	var out []*models.Recipient
	for _, r := range rows[offset:min(offset+limit, len(rows))] {
		cp := *r
		out = append(out, &cp)
	}
	return out, nil
}

func (m memRecipients) CountByCampaign(_ context.Context, campaignID uuid.UUID) (int64, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return int64(len(m.s.recipients[campaignID])), nil
}

type memContacts struct{ s *memStore }

func (m memContacts) GetByPhone(_ context.Context, ownerID uuid.UUID, phone string) (*models.Contact, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c, ok := m.s.contacts[contactKey(ownerID, phone)]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m memContacts) InsertIfAbsent(_ context.Context, ownerID uuid.UUID, phone, name string) (bool, error) {
	m.s.mu.Lock()
	exists := m.s.contacts[contactKey(ownerID, phone)] != nil
	m.s.mu.Unlock()
	if exists {
		return false, nil
	}
	m.s.addContact(ownerID, phone, name, models.ContactStatusActive)
	return true, nil
}

func (m memContacts) ListActiveByTags(_ context.Context, ownerID uuid.UUID, tags []string, limit int) ([]*models.Contact, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	var out []*models.Contact
	for _, c := range m.s.contacts {
		if c.OwnerID != ownerID || c.Status != models.ContactStatusActive {
			continue
		}
		all := true
		for _, t := range tags {
			if !slices.Contains(c.Tags, t) {
				all = false
			}
		}
		if all {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m memContacts) Unsubscribe(_ context.Context, ownerID uuid.UUID, phone, reason string) error {
	m.s.mu.Lock()
	c, ok := m.s.contacts[contactKey(ownerID, phone)]
	m.s.mu.Unlock()
	if !ok {
		m.s.addContact(ownerID, phone, "", models.ContactStatusUnsubscribed)
		m.s.mu.Lock()
		c = m.s.contacts[contactKey(ownerID, phone)]
		m.s.mu.Unlock()
	}
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	c.Status = models.ContactStatusUnsubscribed
	c.UnsubscribeReason = sql.NullString{String: reason, Valid: true}
	return nil
}

type memInstances struct{ s *memStore }

func (m memInstances) GetByOwner(_ context.Context, ownerID uuid.UUID) (*models.Instance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, i := range m.s.instances {
		if i.OwnerID == ownerID {
			cp := *i
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m memInstances) GetByID(_ context.Context, id uuid.UUID) (*models.Instance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	i, ok := m.s.instances[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *i
	return &cp, nil
}

func (m memInstances) GetByName(_ context.Context, name string) (*models.Instance, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	for _, i := range m.s.instances {
		if i.InstanceName == name {
			cp := *i
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

type memAccounts struct{ s *memStore }

func (m memAccounts) HasActiveSubscription(_ context.Context, ownerID uuid.UUID, _ time.Time) (bool, error) {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()
	return m.s.subscriptions[ownerID], nil
}

// fakeClock advances instantly on Sleep and records every requested duration.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(d time.Duration)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	hook := c.onSleep
	c.mu.Unlock()
	if hook != nil {
		hook(d)
	}
	return ctx.Err()
}

func (c *fakeClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

// fakeGateway answers sends with sendFn and probes with stateFn.
type fakeGateway struct {
	mu         sync.Mutex
	configured bool
	sendFn     func(req *gateway.SendRequest) error
	stateFn    func() (gateway.ConnectionState, error)
	sent       []gateway.SendRequest
	probes     int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{configured: true}
}

func (g *fakeGateway) Configured() bool {
	return g.configured
}

func (g *fakeGateway) Send(_ context.Context, req *gateway.SendRequest) error {
	g.mu.Lock()
	g.sent = append(g.sent, *req)
	fn := g.sendFn
	g.mu.Unlock()
	if fn == nil {
		return nil
	}
	return fn(req)
}

func (g *fakeGateway) ConnectionState(context.Context, string, string) (gateway.ConnectionState, error) {
	g.mu.Lock()
	g.probes++
	fn := g.stateFn
	g.mu.Unlock()
	if fn == nil {
		return gateway.StateConnected, nil
	}
	return fn()
}

func (g *fakeGateway) Sent() []gateway.SendRequest {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]gateway.SendRequest(nil), g.sent...)
}

func (g *fakeGateway) Probes() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.probes
}

// recordingLauncher remembers launched campaigns without running them.
type recordingLauncher struct {
	mu       sync.Mutex
	launched []uuid.UUID
}

func (l *recordingLauncher) Launch(id uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.launched = append(l.launched, id)
	return true
}

func (l *recordingLauncher) Launched() []uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]uuid.UUID(nil), l.launched...)
}

// steadySource draws the mean delay and never samples a break.
type steadySource struct{}

func (steadySource) NormFloat64() float64 { return 0 }
func (steadySource) Float64() float64 { return 0.99 }

func phoneAt(i int) string {
	return fmt.Sprintf("55119%08d", i)
}
