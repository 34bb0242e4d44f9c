package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/popeskul/wa-dispatcher/internal/models"
)

const campaignColumns = `id, owner_id, instance_id, name, message_variations, media_url, media_type,
	target_tags, total_contacts, sent_count, failed_count, blocked_count, status, pause_reason,
	scheduled_at, completed_at, created_at, updated_at`

const countersColumns = `total_contacts, sent_count, failed_count, blocked_count`

type campaignRepository struct {
	db *sqlx.DB
}

func NewCampaignRepository(db *sqlx.DB) CampaignRepository {
	return &campaignRepository{
		db: db,
	}
}

// Create inserts the campaign row and its recipient rows atomically.
func (r *campaignRepository) Create(ctx context.Context, campaign *models.Campaign, recipients []*models.Recipient) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now()
	campaign.CreatedAt = now
	campaign.UpdatedAt = now

	query := `
		INSERT INTO campaigns (id, owner_id, instance_id, name, message_variations, media_url, media_type,
			target_tags, total_contacts, sent_count, failed_count, blocked_count, status, pause_reason,
			scheduled_at, completed_at, created_at, updated_at)
		VALUES (:id, :owner_id, :instance_id, :name, :message_variations, :media_url, :media_type,
			:target_tags, :total_contacts, :sent_count, :failed_count, :blocked_count, :status, :pause_reason,
			:scheduled_at, :completed_at, :created_at, :updated_at)`

	if _, err = tx.NamedExecContext(ctx, query, campaign); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("failed to create campaign: %w", err)
	}

	if len(recipients) > 0 {
		for _, rcpt := range recipients {
			rcpt.CampaignID = campaign.ID
			rcpt.Status = models.RecipientStatusPending
			rcpt.CreatedAt = now
			rcpt.UpdatedAt = now
		}

		recipientQuery := `
			INSERT INTO campaign_recipients (campaign_id, position, name, phone_number, variation_index,
				message, status, created_at, updated_at)
			VALUES (:campaign_id, :position, :name, :phone_number, :variation_index,
				:message, :status, :created_at, :updated_at)`

		if _, err = tx.NamedExecContext(ctx, recipientQuery, recipients); err != nil {
			return fmt.Errorf("failed to create recipients: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit campaign: %w", err)
	}

	return nil
}

func (r *campaignRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1`

	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

func (r *campaignRepository) GetForOwner(ctx context.Context, ownerID, id uuid.UUID) (*models.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id = $1 AND owner_id = $2`

	var campaign models.Campaign
	if err := r.db.GetContext(ctx, &campaign, query, id, ownerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	return &campaign, nil
}

// List returns the owner's campaigns, newest first.
func (r *campaignRepository) List(ctx context.Context, ownerID uuid.UUID, offset, limit int) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var campaigns []*models.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, ownerID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *campaignRepository) CountByOwner(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM campaigns WHERE owner_id = $1`, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count campaigns: %w", err)
	}

	return count, nil
}

// Transition moves the campaign to status to if its current status is one of
// from. The pause reason is stored only when the target is paused.
func (r *campaignRepository) Transition(ctx context.Context, id uuid.UUID, from []models.CampaignStatus, to models.CampaignStatus, reason models.PauseReason) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = $2,
		    pause_reason = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = ANY($4)`

	var pauseReason sql.NullString
	if to == models.CampaignStatusPaused && reason != models.PauseReasonNone {
		pauseReason = sql.NullString{String: string(reason), Valid: true}
	}

	res, err := r.db.ExecContext(ctx, query, id, to, pauseReason, pq.Array(statusStrings(from)))
	if err != nil {
		return false, fmt.Errorf("failed to update campaign status: %w", err)
	}

	return affected(res)
}

func (r *campaignRepository) SetPauseReason(ctx context.Context, id uuid.UUID, from, to models.PauseReason) (bool, error) {
	query := `
		UPDATE campaigns
		SET pause_reason = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'paused' AND pause_reason = $2`

	res, err := r.db.ExecContext(ctx, query, id, string(from), string(to))
	if err != nil {
		return false, fmt.Errorf("failed to update pause reason: %w", err)
	}

	return affected(res)
}

// ResumeFromRecovery resumes a campaign only while it is still in its
// automatic recovery pause; operator pauses and cancellations win.
func (r *campaignRepository) ResumeFromRecovery(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = 'in_progress',
		    pause_reason = NULL,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'paused' AND pause_reason = 'recovery'`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("failed to resume campaign: %w", err)
	}

	return affected(res)
}

func (r *campaignRepository) Reschedule(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE campaigns
		SET scheduled_at = $2,
		    updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to reschedule campaign: %w", err)
	}

	return affected(res)
}

// ReactivateBlocked returns blocked campaigns whose send time is still ahead
// to scheduled and reports their ids.
func (r *campaignRepository) ReactivateBlocked(ctx context.Context, ownerID uuid.UUID, now time.Time) ([]uuid.UUID, error) {
	query := `
		UPDATE campaigns
		SET status = 'scheduled',
		    updated_at = NOW()
		WHERE owner_id = $1 AND status = 'blocked' AND scheduled_at > $2
		RETURNING id`

	var ids []uuid.UUID
	if err := r.db.SelectContext(ctx, &ids, query, ownerID, now); err != nil {
		return nil, fmt.Errorf("failed to reactivate campaigns: %w", err)
	}

	return ids, nil
}

func (r *campaignRepository) RecordOutcome(ctx context.Context, campaignID uuid.UUID, recipientID int64, outcome models.Outcome) (counters models.Counters, applied bool, err error) {
	column, err := counterColumn(outcome.Status)
	if err != nil {
		return models.Counters{}, false, err
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Counters{}, false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil || !applied {
			_ = tx.Rollback()
		}
	}()

	var errMsg sql.NullString
	if outcome.Error != "" {
		errMsg = sql.NullString{String: outcome.Error, Valid: true}
	}
	var sentAt sql.NullTime
	if outcome.Status == models.RecipientStatusSent {
		sentAt = sql.NullTime{Time: outcome.At, Valid: true}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE campaign_recipients
		SET status = $3,
		    error = $4,
		    sent_at = $5,
		    updated_at = $6
		WHERE id = $1 AND campaign_id = $2 AND status = 'pending'`,
		recipientID, campaignID, outcome.Status, errMsg, sentAt, outcome.At)
	if err != nil {
		return models.Counters{}, false, fmt.Errorf("failed to update recipient status: %w", err)
	}

	updated, err := affected(res)
	if err != nil {
		return models.Counters{}, false, err
	}
	if !updated {
		if err := tx.GetContext(ctx, &counters, `SELECT `+countersColumns+` FROM campaigns WHERE id = $1`, campaignID); err != nil {
			return models.Counters{}, false, fmt.Errorf("failed to read campaign counters: %w", err)
		}
		return counters, false, nil
	}

	counterQuery := fmt.Sprintf(`
		UPDATE campaigns
		SET %[1]s = %[1]s + 1,
		    updated_at = NOW()
		WHERE id = $1
		RETURNING `+countersColumns, column)

	if err = tx.GetContext(ctx, &counters, counterQuery, campaignID); err != nil {
		return models.Counters{}, false, fmt.Errorf("failed to increment campaign counter: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return models.Counters{}, false, fmt.Errorf("failed to commit outcome: %w", err)
	}

	return counters, true, nil
}

// ReconcileCounters recomputes counters from recipient rows. Stored values
// are never decreased.
func (r *campaignRepository) ReconcileCounters(ctx context.Context, id uuid.UUID) (models.Counters, error) {
	query := `
		UPDATE campaigns c
		SET sent_count = GREATEST(c.sent_count, agg.sent),
		    failed_count = GREATEST(c.failed_count, agg.failed),
		    blocked_count = GREATEST(c.blocked_count, agg.blocked),
		    updated_at = NOW()
		FROM (
			SELECT COUNT(*) FILTER (WHERE status = 'sent') AS sent,
			       COUNT(*) FILTER (WHERE status = 'failed') AS failed,
			       COUNT(*) FILTER (WHERE status = 'blocked') AS blocked
			FROM campaign_recipients
			WHERE campaign_id = $1
		) agg
		WHERE c.id = $1
		RETURNING c.total_contacts, c.sent_count, c.failed_count, c.blocked_count`

	var counters models.Counters
	if err := r.db.GetContext(ctx, &counters, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Counters{}, ErrNotFound
		}
		return models.Counters{}, fmt.Errorf("failed to reconcile counters: %w", err)
	}

	return counters, nil
}

// MarkCompleted stamps completed_at once; later calls report false.
func (r *campaignRepository) MarkCompleted(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	query := `
		UPDATE campaigns
		SET status = 'completed',
		    pause_reason = NULL,
		    completed_at = $2,
		    updated_at = NOW()
		WHERE id = $1
		  AND completed_at IS NULL
		  AND status IN ('in_progress', 'paused')
		  AND sent_count + failed_count + blocked_count >= total_contacts`

	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return false, fmt.Errorf("failed to complete campaign: %w", err)
	}

	return affected(res)
}

func (r *campaignRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'scheduled' AND scheduled_at <= $1
		ORDER BY scheduled_at ASC
		LIMIT $2`

	var campaigns []*models.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, now, limit); err != nil {
		return nil, fmt.Errorf("failed to list due campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *campaignRepository) ListResumable(ctx context.Context, staleBefore time.Time, limit int) ([]*models.Campaign, error) {
	query := `
		SELECT ` + campaignColumns + `
		FROM campaigns
		WHERE status = 'in_progress'
		   OR (status = 'paused' AND pause_reason = 'recovery' AND updated_at < $1)
		ORDER BY updated_at ASC
		LIMIT $2`

	var campaigns []*models.Campaign
	if err := r.db.SelectContext(ctx, &campaigns, query, staleBefore, limit); err != nil {
		return nil, fmt.Errorf("failed to list resumable campaigns: %w", err)
	}

	return campaigns, nil
}

func (r *campaignRepository) CountByStatus(ctx context.Context) (map[models.CampaignStatus]int, error) {
	var rows []struct {
		Status models.CampaignStatus `db:"status"`
		Count  int                   `db:"count"`
	}
	if err := r.db.SelectContext(ctx, &rows, `SELECT status, COUNT(*) AS count FROM campaigns GROUP BY status`); err != nil {
		return nil, fmt.Errorf("failed to count campaigns by status: %w", err)
	}

	counts := make(map[models.CampaignStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}

	return counts, nil
}

func counterColumn(status models.RecipientStatus) (string, error) {
	switch status {
	case models.RecipientStatusSent:
		return "sent_count", nil
	case models.RecipientStatusFailed:
		return "failed_count", nil
	case models.RecipientStatusBlocked:
		return "blocked_count", nil
	default:
		return "", fmt.Errorf("recipient status %q is not terminal", status)
	}
}

func statusStrings(statuses []models.CampaignStatus) []string {
	out := make([]string, len(statuses))
	for i, s := range statuses {
		out[i] = string(s)
	}
	return out
}

func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return n > 0, nil
}
