// Package models defines data structures used throughout the application.
package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type CampaignStatus string

const (
	CampaignStatusScheduled  CampaignStatus = "scheduled"
	CampaignStatusInProgress CampaignStatus = "in_progress"
	CampaignStatusPaused     CampaignStatus = "paused"
	CampaignStatusCompleted  CampaignStatus = "completed"
	CampaignStatusCancelled  CampaignStatus = "cancelled"
	CampaignStatusBlocked    CampaignStatus = "blocked"
)

// IsFinal reports whether no further transition can leave the status.
func (s CampaignStatus) IsFinal() bool {
	return s == CampaignStatusCompleted || s == CampaignStatusCancelled
}

// PauseReason explains why a campaign is paused.
type PauseReason string

const (
	PauseReasonNone         PauseReason = ""
	PauseReasonOperator     PauseReason = "operator"
	PauseReasonRecovery     PauseReason = "recovery"
	PauseReasonDisconnected PauseReason = "disconnected"
)

// Campaign represents a campaign in the database.
type Campaign struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	OwnerID       uuid.UUID      `db:"owner_id" json:"owner_id"`
	InstanceID    uuid.UUID      `db:"instance_id" json:"instance_id"`
	Name          string         `db:"name" json:"name"`
	Variations    pq.StringArray `db:"message_variations" json:"message_variations"`
	MediaURL      sql.NullString `db:"media_url" json:"media_url,omitempty"`
	MediaType     sql.NullString `db:"media_type" json:"media_type,omitempty"`
	TargetTags    pq.StringArray `db:"target_tags" json:"target_tags"`
	TotalContacts int            `db:"total_contacts" json:"total_contacts"`
	SentCount     int            `db:"sent_count" json:"sent_count"`
	FailedCount   int            `db:"failed_count" json:"failed_count"`
	BlockedCount  int            `db:"blocked_count" json:"blocked_count"`
	Status        CampaignStatus `db:"status" json:"status"`
	PauseReason   sql.NullString `db:"pause_reason" json:"pause_reason,omitempty"`
	ScheduledAt   sql.NullTime   `db:"scheduled_at" json:"scheduled_at,omitempty"`
	CompletedAt   sql.NullTime   `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// ResolvedFromTags reports whether recipients were resolved from the contact book.
func (c *Campaign) ResolvedFromTags() bool {
	return len(c.TargetTags) > 0
}

// Reason returns the pause reason, empty when the campaign is not paused.
func (c *Campaign) Reason() PauseReason {
	if !c.PauseReason.Valid {
		return PauseReasonNone
	}
	return PauseReason(c.PauseReason.String)
}

// Counters returns the campaign's progress counters.
func (c *Campaign) Counters() Counters {
	return Counters{
		Total:   c.TotalContacts,
		Sent:    c.SentCount,
		Failed:  c.FailedCount,
		Blocked: c.BlockedCount,
	}
}

// Counters is a snapshot of per-campaign delivery progress.
type Counters struct {
	Total   int `db:"total_contacts"`
	Sent    int `db:"sent_count"`
	Failed  int `db:"failed_count"`
	Blocked int `db:"blocked_count"`
}

// Processed returns how many recipients reached a terminal outcome.
func (c Counters) Processed() int {
	return c.Sent + c.Failed + c.Blocked
}

// Done reports whether every recipient reached a terminal outcome.
func (c Counters) Done() bool {
	return c.Total > 0 && c.Processed() >= c.Total
}
