package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type accountRepository struct {
	db *sqlx.DB
}

func NewAccountRepository(db *sqlx.DB) AccountRepository {
	return &accountRepository{
		db: db,
	}
}

// HasActiveSubscription reports whether the owner's billing state allows sending.
func (r *accountRepository) HasActiveSubscription(ctx context.Context, ownerID uuid.UUID, now time.Time) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM subscriptions
			WHERE owner_id = $1
			  AND status IN ('active', 'trialing')
			  AND (current_period_end IS NULL OR current_period_end > $2)
		)`

	var active bool
	if err := r.db.GetContext(ctx, &active, query, ownerID, now); err != nil {
		return false, fmt.Errorf("failed to check subscription: %w", err)
	}

	return active, nil
}
