package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type RecipientStatus string

const (
	RecipientStatusPending RecipientStatus = "pending"
	RecipientStatusSent    RecipientStatus = "sent"
	RecipientStatusFailed  RecipientStatus = "failed"
	RecipientStatusBlocked RecipientStatus = "blocked"
)

// IsTerminal reports whether the recipient status can no longer change.
func (s RecipientStatus) IsTerminal() bool {
	return s == RecipientStatusSent || s == RecipientStatusFailed || s == RecipientStatusBlocked
}

// Recipient is one delivery target of a campaign. Rows are created at intake,
// before any send attempt.
type Recipient struct {
	ID             int64           `db:"id" json:"id"`
	CampaignID     uuid.UUID       `db:"campaign_id" json:"campaign_id"`
	Position       int             `db:"position" json:"position"`
	Name           string          `db:"name" json:"name"`
	Phone          string          `db:"phone_number" json:"phone_number"`
	VariationIndex int             `db:"variation_index" json:"variation_index"`
	Message        string          `db:"message" json:"message"`
	Status         RecipientStatus `db:"status" json:"status"`
	Error          sql.NullString  `db:"error" json:"error,omitempty"`
	SentAt         sql.NullTime    `db:"sent_at" json:"sent_at,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// Outcome is the terminal result recorded for one recipient.
type Outcome struct {
	Status RecipientStatus
	Error  string
	At     time.Time
}
