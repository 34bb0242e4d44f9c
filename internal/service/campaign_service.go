package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/models"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
	"github.com/popeskul/wa-dispatcher/internal/phone"
	"github.com/popeskul/wa-dispatcher/internal/repository"
)

const (
	maxCampaignNameLength = 100
	maxClientNameLength   = 100
	maxVariationLength    = 1000
	defaultMaxRecipients  = 1000
)

type campaignService struct {
	repo          repository.Repository
	gateway       Gateway
	launcher      Launcher
	engine        *pacing.Engine
	clock         pacing.Clock
	maxRecipients int
	logger        *zap.Logger
}

func NewCampaignService(
	repo repository.Repository,
	gw Gateway,
	launcher Launcher,
	engine *pacing.Engine,
	clock pacing.Clock,
	maxRecipients int,
	logger *zap.Logger,
) CampaignService {
	if maxRecipients <= 0 {
		maxRecipients = defaultMaxRecipients
	}
	return &campaignService{
		repo:          repo,
		gateway:       gw,
		launcher:      launcher,
		engine:        engine,
		clock:         clock,
		maxRecipients: maxRecipients,
		logger:        logger,
	}
}

type resolvedRecipient struct {
	name  string
	phone string
}

// CreateCampaign validates the request, resolves its recipients and stores the
// campaign with one pending row per recipient. Immediate campaigns are handed
// to the launcher before returning.
func (s *campaignService) CreateCampaign(ctx context.Context, ownerID uuid.UUID, input *CreateCampaignInput) (*CreateCampaignResult, error) {
	now := s.clock.Now()

	variations, err := s.validateContent(input)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = "Campaign " + now.UTC().Format(time.RFC3339)
	}
	if utf8.RuneCountInString(name) > maxCampaignNameLength {
		return nil, NewValidationError("name", fmt.Sprintf("must be at most %d characters", maxCampaignNameLength))
	}

	if input.ScheduledAt != nil && !input.ScheduledAt.After(now) {
		return nil, NewValidationError("scheduled_at", "must be in the future")
	}

	tags := normalizeTags(input.TargetTags)
	if len(input.Clients) > 0 && len(tags) > 0 {
		return nil, NewValidationError("clients", "clients and target_tags are mutually exclusive")
	}

	var recipients []resolvedRecipient
	if len(tags) == 0 {
		recipients, err = s.validateClients(input.Clients)
		if err != nil {
			return nil, err
		}
	}

	instance, err := s.checkSetup(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	status := models.CampaignStatusInProgress
	if input.ScheduledAt != nil {
		status = models.CampaignStatusScheduled
	} else {
		active, err := s.repo.Account().HasActiveSubscription(ctx, ownerID, now)
		if err != nil {
			return nil, fmt.Errorf("failed to check subscription: %w", err)
		}
		if !active {
			return nil, ErrSubscriptionInactive
		}
	}

	if len(tags) > 0 {
		recipients, err = s.resolveTags(ctx, ownerID, tags)
		if err != nil {
			return nil, err
		}
	}

	if len(recipients) == 0 {
		return nil, NewValidationError("clients", "at least one recipient is required")
	}
	if len(recipients) > s.maxRecipients {
		return nil, NewValidationError("clients", fmt.Sprintf("at most %d recipients are allowed", s.maxRecipients))
	}

	campaign := &models.Campaign{
		ID:            uuid.New(),
		OwnerID:       ownerID,
		InstanceID:    instance.ID,
		Name:          name,
		Variations:    pq.StringArray(variations),
		TargetTags:    pq.StringArray(tags),
		TotalContacts: len(recipients),
		Status:        status,
	}
	if input.MediaURL != "" {
		campaign.MediaURL.String, campaign.MediaURL.Valid = input.MediaURL, true
		if input.MediaType != "" {
			campaign.MediaType.String, campaign.MediaType.Valid = input.MediaType, true
		}
	}
	if input.ScheduledAt != nil {
		campaign.ScheduledAt.Time, campaign.ScheduledAt.Valid = input.ScheduledAt.UTC(), true
	}

	rows := make([]*models.Recipient, len(recipients))
	for i, r := range recipients {
		idx := s.engine.VariationIndex(i, len(variations))
		var text string
		if len(variations) > 0 {
			text = pacing.Personalize(variations[idx], r.name)
		}
		rows[i] = &models.Recipient{
			Position:       i,
			Name:           r.name,
			Phone:          r.phone,
			VariationIndex: idx,
			Message:        text,
		}
	}

	if err := s.repo.Campaign().Create(ctx, campaign, rows); err != nil {
		return nil, fmt.Errorf("failed to create campaign: %w", err)
	}

	mode := "immediate"
	if status == models.CampaignStatusScheduled {
		mode = "scheduled"
	}
	metrics.CampaignsCreated.WithLabelValues(mode).Inc()

	s.logger.Info("Campaign created",
		zap.String("campaign_id", campaign.ID.String()),
		zap.String("owner_id", ownerID.String()),
		zap.String("status", string(status)),
		zap.Int("recipients", len(rows)),
		zap.Int("variations", len(variations)),
	)

	if status == models.CampaignStatusInProgress {
		s.launcher.Launch(campaign.ID)
	}

	return &CreateCampaignResult{
		CampaignID:    campaign.ID,
		TotalContacts: len(rows),
		Status:        status,
		ScheduledAt:   input.ScheduledAt,
	}, nil
}

func (s *campaignService) validateContent(input *CreateCampaignInput) ([]string, error) {
	verr := &ValidationError{}

	var variations []string
	for i, v := range input.Variations {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if utf8.RuneCountInString(v) > maxVariationLength {
			verr.Add(fmt.Sprintf("message_variations[%d]", i), fmt.Sprintf("must be at most %d characters", maxVariationLength))
			continue
		}
		variations = append(variations, v)
	}

	if len(variations) == 0 {
		if msg := strings.TrimSpace(input.Message); msg != "" {
			if utf8.RuneCountInString(msg) > maxVariationLength {
				verr.Add("message", fmt.Sprintf("must be at most %d characters", maxVariationLength))
			} else {
				variations = []string{msg}
			}
		}
	}

	if input.MediaType != "" && input.MediaURL == "" {
		verr.Add("media_type", "requires media_url")
	}

	if len(variations) == 0 && input.MediaURL == "" && verr.Empty() {
		verr.Add("message", "a message, message_variations or media_url is required")
	}

	if !verr.Empty() {
		return nil, verr
	}
	return variations, nil
}

// validateClients checks every entry and drops later duplicates of a phone
// number, keeping the order of first occurrence.
func (s *campaignService) validateClients(clients []ClientInput) ([]resolvedRecipient, error) {
	verr := &ValidationError{}
	seen := make(map[string]struct{}, len(clients))
	recipients := make([]resolvedRecipient, 0, len(clients))

	for i, c := range clients {
		name := strings.TrimSpace(c.Name)
		if name == "" || utf8.RuneCountInString(name) > maxClientNameLength {
			verr.Add(fmt.Sprintf("clients[%d].name", i), fmt.Sprintf("must be between 1 and %d characters", maxClientNameLength))
		}

		number, err := phone.Validate(c.Phone)
		if err != nil {
			verr.Add(fmt.Sprintf("clients[%d].phone", i), err.Error())
			continue
		}

		if !verr.Empty() {
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}
		recipients = append(recipients, resolvedRecipient{name: name, phone: number})
	}

	if !verr.Empty() {
		return nil, verr
	}
	return recipients, nil
}

func (s *campaignService) resolveTags(ctx context.Context, ownerID uuid.UUID, tags []string) ([]resolvedRecipient, error) {
	contacts, err := s.repo.Contact().ListActiveByTags(ctx, ownerID, tags, s.maxRecipients+1)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve contacts: %w", err)
	}

	if len(contacts) > s.maxRecipients {
		return nil, NewValidationError("target_tags", fmt.Sprintf("at most %d recipients are allowed", s.maxRecipients))
	}

	// Stored numbers go through the same format check as pasted lists.
	seen := make(map[string]struct{}, len(contacts))
	recipients := make([]resolvedRecipient, 0, len(contacts))
	for _, c := range contacts {
		number, err := phone.Validate(phone.Normalize(c.Phone))
		if err != nil {
			s.logger.Warn("Skipping contact with invalid phone",
				zap.String("owner_id", ownerID.String()),
				zap.Int64("contact_id", c.ID),
				zap.String("phone", c.Phone),
			)
			continue
		}
		if _, dup := seen[number]; dup {
			continue
		}
		seen[number] = struct{}{}

		name := strings.TrimSpace(c.Name.String)
		if name == "" {
			name = number
		}
		recipients = append(recipients, resolvedRecipient{name: name, phone: number})
	}
	return recipients, nil
}

// checkSetup returns the owner's instance once everything needed to send is
// in place.
func (s *campaignService) checkSetup(ctx context.Context, ownerID uuid.UUID) (*models.Instance, error) {
	if !s.gateway.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	instance, err := s.repo.Instance().GetByOwner(ctx, ownerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInstanceNotFound
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	if !instance.APIKey.Valid || instance.APIKey.String == "" {
		return nil, ErrMissingCredentials
	}
	if !instance.Connected() {
		return nil, ErrInstanceNotConnected
	}

	return instance, nil
}

func (s *campaignService) GetCampaign(ctx context.Context, ownerID, id uuid.UUID) (*models.Campaign, error) {
	campaign, err := s.repo.Campaign().GetForOwner(ctx, ownerID, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrCampaignNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}
	return campaign, nil
}

func (s *campaignService) ListCampaigns(ctx context.Context, ownerID uuid.UUID, page, limit int) (*CampaignPage, error) {
	page, limit = normalizePage(page, limit)

	total, err := s.repo.Campaign().CountByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count campaigns: %w", err)
	}

	campaigns, err := s.repo.Campaign().List(ctx, ownerID, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return &CampaignPage{
		Campaigns:  campaigns,
		Pagination: newPagination(page, limit, total),
	}, nil
}

func (s *campaignService) ListRecipients(ctx context.Context, ownerID, id uuid.UUID, page, limit int) (*RecipientPage, error) {
	if _, err := s.GetCampaign(ctx, ownerID, id); err != nil {
		return nil, err
	}

	page, limit = normalizePage(page, limit)

	total, err := s.repo.Recipient().CountByCampaign(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to count recipients: %w", err)
	}

	recipients, err := s.repo.Recipient().List(ctx, id, (page-1)*limit, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	return &RecipientPage{
		Recipients: recipients,
		Pagination: newPagination(page, limit, total),
	}, nil
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

func normalizeTags(tags []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
