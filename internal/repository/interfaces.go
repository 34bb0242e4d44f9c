package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/wa-dispatcher/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_repository.go -package=mocks

// Repository interface defines all repository operations.
type Repository interface {
	// Ping checks database connectivity
	Ping(ctx context.Context) error

	Campaign() CampaignRepository
	Recipient() RecipientRepository
	Contact() ContactRepository
	Instance() InstanceRepository
	Account() AccountRepository
}

// CampaignRepository persists campaigns and their progress counters. Status
// changes are conditional writes reporting whether they applied.
type CampaignRepository interface {
	// Create inserts the campaign and all its recipients in one transaction.
	Create(ctx context.Context, campaign *models.Campaign, recipients []*models.Recipient) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
	GetForOwner(ctx context.Context, ownerID, id uuid.UUID) (*models.Campaign, error)
	List(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Campaign, error)
	CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error)

	Transition(ctx context.Context, id uuid.UUID, from []models.CampaignStatus, to models.CampaignStatus, reason models.PauseReason) (bool, error)
	// SetPauseReason rewrites the reason of a paused campaign still paused for reason from.
	SetPauseReason(ctx context.Context, id uuid.UUID, from, to models.PauseReason) (bool, error)
	ResumeFromRecovery(ctx context.Context, id uuid.UUID) (bool, error)
	Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	ReactivateBlocked(ctx context.Context, ownerID uuid.UUID, now time.Time) ([]uuid.UUID, error)

	// RecordOutcome moves a pending recipient to a terminal status and bumps
	// the matching counter. applied is false if the recipient was not pending.
	RecordOutcome(ctx context.Context, campaignID uuid.UUID, recipientID int64, outcome models.Outcome) (counters models.Counters, applied bool, err error)
	ReconcileCounters(ctx context.Context, id uuid.UUID) (models.Counters, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error)
	// ListResumable returns in-progress campaigns and recovery pauses last touched before staleBefore.
	ListResumable(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Campaign, error)
	CountByStatus(ctx context.Context) (map[models.CampaignStatus]int, error)
}

type RecipientRepository interface {
	// NextPending returns the lowest-position pending recipient, or nil when none is left.
	NextPending(ctx context.Context, campaignID uuid.UUID) (*models.Recipient, error)
	List(ctx context.Context, campaignID uuid.UUID, offset, limit int) ([]*models.Recipient, error)
	CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error)
}

type ContactRepository interface {
	// GetByPhone returns nil when the owner has no contact for phone.
	GetByPhone(ctx context.Context, ownerID uuid.UUID, phone string) (*models.Contact, error)
	InsertIfAbsent(ctx context.Context, ownerID uuid.UUID, phone, name string) (bool, error)
	ListActiveByTags(ctx context.Context, ownerID uuid.UUID, tags []string, limit int) ([]*models.Contact, error)
	Unsubscribe(ctx context.Context, ownerID uuid.UUID, phone, reason string) error
}

type InstanceRepository interface {
	GetByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Instance, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error)
	GetByName(ctx context.Context, name string) (*models.Instance, error)
}

type AccountRepository interface {
	HasActiveSubscription(ctx context.Context, ownerID uuid.UUID, now time.Time) (bool, error)
}
