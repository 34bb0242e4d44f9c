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

const instanceColumns = `id, owner_id, instance_name, api_key, status, created_at, updated_at`

type instanceRepository struct {
	db *sqlx.DB
}

func NewInstanceRepository(db *sqlx.DB) InstanceRepository {
	return &instanceRepository{
		db: db,
	}
}

func (r *instanceRepository) GetByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Instance, error) {
	return r.get(ctx, `SELECT `+instanceColumns+` FROM whatsapp_instances WHERE owner_id = $1`, ownerID)
}

func (r *instanceRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Instance, error) {
	return r.get(ctx, `SELECT `+instanceColumns+` FROM whatsapp_instances WHERE id = $1`, id)
}

func (r *instanceRepository) GetByName(ctx context.Context, name string) (*models.Instance, error) {
	return r.get(ctx, `SELECT `+instanceColumns+` FROM whatsapp_instances WHERE instance_name = $1`, name)
}

func (r *instanceRepository) get(ctx context.Context, query string, arg interface{}) (*models.Instance, error) {
	var instance models.Instance
	if err := r.db.GetContext(ctx, &instance, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &instance, nil
}
