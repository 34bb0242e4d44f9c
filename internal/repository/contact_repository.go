package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/wa-dispatcher/internal/models"
)

const contactColumns = `id, owner_id, phone_number, name, status, tags, unsubscribe_reason, created_at, updated_at`

type contactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) ContactRepository {
	return &contactRepository{
		db: db,
	}
}

func (r *contactRepository) GetByPhone(ctx context.Context, ownerID uuid.UUID, phone string) (*models.Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE owner_id = $1 AND phone_number = $2`

	var contact models.Contact
	if err := r.db.GetContext(ctx, &contact, query, ownerID, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}

	return &contact, nil
}

// InsertIfAbsent registers a first-seen recipient as an active contact.
func (r *contactRepository) InsertIfAbsent(ctx context.Context, ownerID uuid.UUID, phone, name string) (bool, error) {
	query := `
		INSERT INTO contacts (owner_id, phone_number, name, status)
		VALUES ($1, $2, $3, 'active')
		ON CONFLICT (owner_id, phone_number) DO NOTHING`

	var contactName sql.NullString
	if name != "" {
		contactName = sql.NullString{String: name, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, ownerID, phone, contactName)
	if err != nil {
		return false, fmt.Errorf("failed to insert contact: %w", err)
	}

	return affected(res)
}

// ListActiveByTags returns active contacts carrying every tag in tags.
func (r *contactRepository) ListActiveByTags(ctx context.Context, ownerID uuid.UUID, tags []string, limit int) ([]*models.Contact, error) {
	query := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE owner_id = $1 AND status = 'active' AND tags @> $2
		ORDER BY created_at ASC, id ASC
		LIMIT $3`

	var contacts []*models.Contact
	if err := r.db.SelectContext(ctx, &contacts, query, ownerID, pq.Array(tags), limit); err != nil {
		return nil, fmt.Errorf("failed to list contacts by tags: %w", err)
	}

	return contacts, nil
}

// Unsubscribe marks the contact unsubscribed, creating it if needed.
func (r *contactRepository) Unsubscribe(ctx context.Context, ownerID uuid.UUID, phone, reason string) error {
	query := `
		INSERT INTO contacts (owner_id, phone_number, status, unsubscribe_reason)
		VALUES ($1, $2, 'unsubscribed', $3)
		ON CONFLICT (owner_id, phone_number) DO UPDATE
		SET status = 'unsubscribed',
		    unsubscribe_reason = EXCLUDED.unsubscribe_reason,
		    updated_at = NOW()`

	if _, err := r.db.ExecContext(ctx, query, ownerID, phone, reason); err != nil {
		return fmt.Errorf("failed to unsubscribe contact: %w", err)
	}

	return nil
}
