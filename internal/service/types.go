package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/popeskul/wa-dispatcher/internal/api"
	"github.com/popeskul/wa-dispatcher/internal/models"
)

type HealthStatus struct {
	Status               api.HealthResponseStatus              `json:"status"`
	SchedulerStatus      api.HealthResponseSchedulerStatus     `json:"scheduler_status"`
	DatabaseStatus       api.HealthResponseDatabaseStatus      `json:"database_status"`
	RedisStatus          api.HealthResponseRedisStatus         `json:"redis_status"`
	CircuitBreakerStatus string                                `json:"circuit_breaker_status,omitempty"`
	CircuitBreakerState  api.HealthResponseCircuitBreakerState `json:"circuit_breaker_state,omitempty"`
	ActiveDispatches     int                                   `json:"active_dispatches"`
}

// ClientInput is one explicitly listed recipient.
type ClientInput struct {
	Name  string
	Phone string
}

// CreateCampaignInput is the intake request. Recipients come either from
// Clients or from contacts matching every tag in TargetTags.
type CreateCampaignInput struct {
	Name        string
	Clients     []ClientInput
	TargetTags  []string
	Message     string
	Variations  []string
	MediaURL    string
	MediaType   string
	ScheduledAt *time.Time
}

type CreateCampaignResult struct {
	CampaignID    uuid.UUID
	TotalContacts int
	Status        models.CampaignStatus
	ScheduledAt   *time.Time
}

type Pagination struct {
	CurrentPage  int
	TotalPages   int
	TotalItems   int
	ItemsPerPage int
}

func newPagination(page, limit int, total int64) Pagination {
	totalPages := int(total) / limit
	if int(total)%limit > 0 {
		totalPages++
	}
	return Pagination{
		CurrentPage:  page,
		TotalPages:   totalPages,
		TotalItems:   int(total),
		ItemsPerPage: limit,
	}
}

type CampaignPage struct {
	Campaigns  []*models.Campaign
	Pagination Pagination
}

type RecipientPage struct {
	Recipients []*models.Recipient
	Pagination Pagination
}

// OptOutInput is an inbound message received on an instance.
type OptOutInput struct {
	Instance string
	Sender   string
	Message  string
}
