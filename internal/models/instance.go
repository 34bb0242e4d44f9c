package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

const InstanceStatusConnected = "connected"

// Instance is the WhatsApp gateway session owned by an account.
type Instance struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	OwnerID      uuid.UUID      `db:"owner_id" json:"owner_id"`
	InstanceName string         `db:"instance_name" json:"instance_name"`
	APIKey       sql.NullString `db:"api_key" json:"-"`
	Status       string         `db:"status" json:"status"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// Connected reports whether the session was last seen connected.
func (i *Instance) Connected() bool {
	return i.Status == InstanceStatusConnected
}
