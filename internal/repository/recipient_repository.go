package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/popeskul/wa-dispatcher/internal/models"
)

const recipientColumns = `id, campaign_id, position, name, phone_number, variation_index, message,
	status, error, sent_at, created_at, updated_at`

type recipientRepository struct {
	db *sqlx.DB
}

func NewRecipientRepository(db *sqlx.DB) RecipientRepository {
	return &recipientRepository{
		db: db,
	}
}

func (r *recipientRepository) NextPending(ctx context.Context, campaignID uuid.UUID) (*models.Recipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM campaign_recipients
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY position ASC
		LIMIT 1`

	var recipient models.Recipient
	if err := r.db.GetContext(ctx, &recipient, query, campaignID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get next pending recipient: %w", err)
	}

	return &recipient, nil
}

// List returns recipients in queue order.
func (r *recipientRepository) List(ctx context.Context, campaignID uuid.UUID, offset, limit int) ([]*models.Recipient, error) {
	query := `
		SELECT ` + recipientColumns + `
		FROM campaign_recipients
		WHERE campaign_id = $1
		ORDER BY position ASC
		LIMIT $2 OFFSET $3`

	var recipients []*models.Recipient
	if err := r.db.SelectContext(ctx, &recipients, query, campaignID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list recipients: %w", err)
	}

	return recipients, nil
}

func (r *recipientRepository) CountByCampaign(ctx context.Context, campaignID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM campaign_recipients WHERE campaign_id = $1`, campaignID); err != nil {
		return 0, fmt.Errorf("failed to count recipients: %w", err)
	}

	return count, nil
}
