package repository

import (
	"context"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/jackc/pgx/v5"
)

const conversationColumns = `id, client_id, trainer_id, status, last_message_at, last_message_text,
	client_last_read_at, trainer_last_read_at, contract_valid_until, created_at, updated_at`

type ConversationRepository struct {
	db DBTX
}

func NewConversationRepository(db DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

func scanConversation(row pgx.Row, conversation *models.Conversation) error {
	return row.Scan(
		&conversation.ID,
		&conversation.ClientID,
		&conversation.TrainerID,
		&conversation.Status,
		&conversation.LastMessageAt,
		&conversation.LastMessageText,
		&conversation.ClientLastReadAt,
		&conversation.TrainerLastReadAt,
		&conversation.ContractValidUntil,
		&conversation.CreatedAt,
		&conversation.UpdatedAt,
	)
}

func (r *ConversationRepository) getOne(ctx context.Context, query string, args ...any) (*models.Conversation, error) {
	var conversation models.Conversation
	if err := scanConversation(r.db.QueryRow(ctx, query, args...), &conversation); err != nil {
		return nil, err
	}
	return &conversation, nil
}

// CreateOrGet returns the conversation for the pair, creating it on first use.
func (r *ConversationRepository) CreateOrGet(
	ctx context.Context,
	clientID int64,
	trainerID int64,
) (*models.Conversation, error) {
	query := `
		INSERT INTO conversations (client_id, trainer_id, status)
		VALUES ($1, $2, 'OPEN')
		ON CONFLICT (client_id, trainer_id)
		DO UPDATE SET updated_at = conversations.updated_at
		RETURNING ` + conversationColumns

	return r.getOne(ctx, query, clientID, trainerID)
}

func (r *ConversationRepository) GetByID(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
	`
	return r.getOne(ctx, query, conversationID)
}

func (r *ConversationRepository) GetByIDForUpdate(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE id = $1
		FOR UPDATE
	`
	return r.getOne(ctx, query, conversationID)
}

func (r *ConversationRepository) GetByPairForUpdate(
	ctx context.Context,
	clientID int64,
	trainerID int64,
) (*models.Conversation, error) {
	query := `SELECT ` + conversationColumns + `
		FROM conversations
		WHERE client_id = $1 AND trainer_id = $2
		FOR UPDATE
	`
	return r.getOne(ctx, query, clientID, trainerID)
}

func (r *ConversationRepository) ListForParticipant(
	ctx context.Context,
	participantID int64,
) ([]models.ConversationSummary, error) {
	query := `
		SELECT
			c.id,
			c.client_id,
			c.trainer_id,
			c.status,
			c.last_message_at,
			c.last_message_text,
			c.client_last_read_at,
			c.trainer_last_read_at,
			c.contract_valid_until,
			c.created_at,
			c.updated_at,
			COALESCE(uc.unread_count, 0)
		FROM conversations c
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unread_count
			FROM messages m
			WHERE m.conversation_id = c.id
			  AND m.sender_id <> $1
			  AND m.created_at > COALESCE(
				CASE WHEN c.client_id = $1 THEN c.client_last_read_at ELSE c.trainer_last_read_at END,
				'-infinity'::timestamptz
			  )
		) uc ON TRUE
		WHERE c.client_id = $1 OR c.trainer_id = $1
		ORDER BY COALESCE(c.last_message_at, c.updated_at, c.created_at) DESC, c.id DESC
	`

	rows, err := r.db.Query(ctx, query, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := make([]models.ConversationSummary, 0)
	for rows.Next() {
		var summary models.ConversationSummary
		if err := rows.Scan(
			&summary.ID,
			&summary.ClientID,
			&summary.TrainerID,
			&summary.Status,
			&summary.LastMessageAt,
			&summary.LastMessageText,
			&summary.ClientLastReadAt,
			&summary.TrainerLastReadAt,
			&summary.ContractValidUntil,
			&summary.CreatedAt,
			&summary.UpdatedAt,
			&summary.UnreadCount,
		); err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return summaries, nil
}

func (r *ConversationRepository) RecordMessage(
	ctx context.Context,
	conversationID int64,
	text string,
	sentAt time.Time,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET last_message_at = $2, last_message_text = $3, updated_at = NOW()
		WHERE id = $1
	`, conversationID, sentAt, text)
	return err
}

// MarkRead moves the reader's last-read stamp forward to readAt. Stamps never
// move backwards, so reading an older page keeps newer messages read.
func (r *ConversationRepository) MarkRead(
	ctx context.Context,
	conversationID int64,
	readerID int64,
	readAt time.Time,
) error {
	_, err := r.db.Exec(ctx, `
		UPDATE conversations
		SET client_last_read_at = CASE WHEN client_id = $2 THEN GREATEST(client_last_read_at, $3) ELSE client_last_read_at END,
		    trainer_last_read_at = CASE WHEN trainer_id = $2 THEN GREATEST(trainer_last_read_at, $3) ELSE trainer_last_read_at END
		WHERE id = $1
	`, conversationID, readerID, readAt)
	return err
}

// Block moves the conversation to the terminal BLOCKED state.
func (r *ConversationRepository) Block(ctx context.Context, conversationID int64) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET status = 'BLOCKED', updated_at = NOW()
		WHERE id = $1
		RETURNING ` + conversationColumns
	return r.getOne(ctx, query, conversationID)
}

// ApplyContract extends contract coverage to validUntil (never shortening it)
// and marks the conversation CONTRACTED. Blocked conversations are left as-is
// and reported as pgx.ErrNoRows.
func (r *ConversationRepository) ApplyContract(
	ctx context.Context,
	conversationID int64,
	validUntil time.Time,
) (*models.Conversation, error) {
	query := `
		UPDATE conversations
		SET status = 'CONTRACTED',
		    contract_valid_until = GREATEST(COALESCE(contract_valid_until, $2), $2),
		    updated_at = NOW()
		WHERE id = $1 AND status <> 'BLOCKED'
		RETURNING ` + conversationColumns
	return r.getOne(ctx, query, conversationID, validUntil)
}
