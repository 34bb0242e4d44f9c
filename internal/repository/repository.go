package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
)

// repositoryImpl is the concrete implementation of Repository interface.
type repositoryImpl struct {
	db        *sqlx.DB
	campaign  CampaignRepository
	recipient RecipientRepository
	contact   ContactRepository
	instance  InstanceRepository
	account   AccountRepository
}

// NewRepository creates a new repository instance.
func NewRepository(db *sqlx.DB) Repository {
	return &repositoryImpl{
		db:        db,
		campaign:  NewCampaignRepository(db),
		recipient: NewRecipientRepository(db),
		contact:   NewContactRepository(db),
		instance:  NewInstanceRepository(db),
		account:   NewAccountRepository(db),
	}
}

func (r *repositoryImpl) Campaign() CampaignRepository {
	return r.campaign
}

func (r *repositoryImpl) Recipient() RecipientRepository {
	return r.recipient
}

func (r *repositoryImpl) Contact() ContactRepository {
	return r.contact
}

func (r *repositoryImpl) Instance() InstanceRepository {
	return r.instance
}

func (r *repositoryImpl) Account() AccountRepository {
	return r.account
}

// Ping checks if the database connection is healthy.
func (r *repositoryImpl) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return r.db.PingContext(ctx)
}
