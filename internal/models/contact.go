package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type ContactStatus string

const (
	ContactStatusActive       ContactStatus = "active"
	ContactStatusUnsubscribed ContactStatus = "unsubscribed"
)

// Contact is an account-wide address book entry, unique per (owner, phone).
type Contact struct {
	ID                int64          `db:"id" json:"id"`
	OwnerID           uuid.UUID      `db:"owner_id" json:"owner_id"`
	Phone             string         `db:"phone_number" json:"phone_number"`
	Name              sql.NullString `db:"name" json:"name,omitempty"`
	Status            ContactStatus  `db:"status" json:"status"`
	Tags              pq.StringArray `db:"tags" json:"tags"`
	UnsubscribeReason sql.NullString `db:"unsubscribe_reason" json:"unsubscribe_reason,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// DisplayName falls back to the phone number when no name is stored.
func (c *Contact) DisplayName() string {
	if c.Name.Valid && c.Name.String != "" {
		return c.Name.String
	}
	return c.Phone
}
