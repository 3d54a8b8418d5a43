package repository

import (
	"context"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
)

type QuotaRepository struct {
	db DBTX
}

func NewQuotaRepository(db DBTX) *QuotaRepository {
	return &QuotaRepository{db: db}
}

// Ensure creates the zeroed quota row for a conversation if it does not exist yet.
func (r *QuotaRepository) Ensure(ctx context.Context, conversationID int64, resetAt time.Time) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO message_quotas (conversation_id, used_count, reset_at)
		VALUES ($1, 0, $2)
		ON CONFLICT (conversation_id) DO NOTHING
	`, conversationID, resetAt)
	return err
}

func (r *QuotaRepository) GetByConversationID(ctx context.Context, conversationID int64) (*models.MessageQuota, error) {
	query := `
		SELECT conversation_id, used_count, reset_at, updated_at
		FROM message_quotas
		WHERE conversation_id = $1
	`
	var quota models.MessageQuota
	err := r.db.QueryRow(ctx, query, conversationID).
		Scan(&quota.ConversationID, &quota.UsedCount, &quota.ResetAt, &quota.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

func (r *QuotaRepository) GetForUpdate(ctx context.Context, conversationID int64) (*models.MessageQuota, error) {
	query := `
		SELECT conversation_id, used_count, reset_at, updated_at
		FROM message_quotas
		WHERE conversation_id = $1
		FOR UPDATE
	`
	var quota models.MessageQuota
	err := r.db.QueryRow(ctx, query, conversationID).
		Scan(&quota.ConversationID, &quota.UsedCount, &quota.ResetAt, &quota.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &quota, nil
}

// Save writes back a quota previously read with GetForUpdate in the same transaction.
func (r *QuotaRepository) Save(ctx context.Context, quota *models.MessageQuota) error {
	query := `
		UPDATE message_quotas
		SET used_count = $2, reset_at = $3, updated_at = NOW()
		WHERE conversation_id = $1
		RETURNING updated_at
	`
	return r.db.QueryRow(ctx, query, quota.ConversationID, quota.UsedCount, quota.ResetAt).
		Scan(&quota.UpdatedAt)
}

// ResetDue zeroes every quota whose period ended at or before now.
func (r *QuotaRepository) ResetDue(ctx context.Context, now time.Time, nextResetAt time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx, `
		UPDATE message_quotas
		SET used_count = 0, reset_at = $2, updated_at = NOW()
		WHERE reset_at <= $1
	`, now, nextResetAt)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
