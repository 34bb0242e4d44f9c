package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/wa-dispatcher/internal/gateway"
	"github.com/popeskul/wa-dispatcher/internal/models"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mock_service.go -package=mocks

// Gateway is the outbound WhatsApp channel.
type Gateway interface {
	Configured() bool
	Send(ctx context.Context, req *gateway.SendRequest) error
	ConnectionState(ctx context.Context, session, apiKey string) (gateway.ConnectionState, error)
}

type CampaignService interface {
	CreateCampaign(ctx context.Context, ownerID uuid.UUID, input *CreateCampaignInput) (*CreateCampaignResult, error)
	GetCampaign(ctx context.Context, ownerID, id uuid.UUID) (*models.Campaign, error)
	ListCampaigns(ctx context.Context, ownerID uuid.UUID, page, limit int) (*CampaignPage, error)
	ListRecipients(ctx context.Context, ownerID, id uuid.UUID, page, limit int) (*RecipientPage, error)
}

// ControlService applies operator commands to campaigns.
type ControlService interface {
	Apply(ctx context.Context, ownerID, id uuid.UUID, cmd Command) (*models.Campaign, error)
	Reschedule(ctx context.Context, ownerID, id uuid.UUID, at time.Time) (*models.Campaign, error)
	ReactivateBlocked(ctx context.Context, ownerID uuid.UUID) ([]uuid.UUID, error)
}

// Launcher starts the background dispatch of a campaign.
type Launcher interface {
	Launch(campaignID uuid.UUID) bool
}

// CampaignRunner drives one campaign until it stops or completes.
type CampaignRunner interface {
	Run(ctx context.Context, campaignID uuid.UUID) error
}

type SchedulerService interface {
	Launcher
	Start() error
	Stop() error
	IsRunning() bool
	ActiveCount() int
}

type OptOutService interface {
	Process(ctx context.Context, input *OptOutInput) (bool, error)
}

type HealthService interface {
	GetHealth(ctx context.Context) *HealthStatus
}
