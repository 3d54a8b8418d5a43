package repository

import (
	"context"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
)

// A message counts as read once the recipient's last-read stamp on the
// conversation reaches its created_at.
const recipientReadExpr = `
	m.created_at <= COALESCE(
		CASE WHEN m.sender_id = c.client_id THEN c.trainer_last_read_at ELSE c.client_last_read_at END,
		'-infinity'::timestamptz
	)`

type MessageRepository struct {
	db DBTX
}

func NewMessageRepository(db DBTX) *MessageRepository {
	return &MessageRepository{db: db}
}

// Create stores a chat message. A fresh message is never read by its recipient.
func (r *MessageRepository) Create(
	ctx context.Context,
	conversationID int64,
	senderID int64,
	content string,
) (*models.ChatMessage, error) {
	message := models.ChatMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
	}
	err := r.db.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, sender_id, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, conversationID, senderID, content).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		return nil, err
	}

	return &message, nil
}

// ListByConversation returns one page of the conversation, newest first, with
// the recipient read flag derived from the participants' last-read stamps.
func (r *MessageRepository) ListByConversation(
	ctx context.Context,
	conversationID int64,
	limit int,
	offset int,
) ([]models.ChatMessage, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM messages WHERE conversation_id = $1
	`, conversationID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.db.Query(ctx, `
		SELECT m.id, m.conversation_id, m.sender_id, m.content, m.created_at, `+recipientReadExpr+`
		FROM messages m
		JOIN conversations c ON c.id = m.conversation_id
		WHERE m.conversation_id = $1
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	messages := make([]models.ChatMessage, 0, limit)
	for rows.Next() {
		var message models.ChatMessage
		if err := rows.Scan(
			&message.ID,
			&message.ConversationID,
			&message.SenderID,
			&message.Content,
			&message.CreatedAt,
			&message.ReadByRecipient,
		); err != nil {
			return nil, 0, err
		}
		messages = append(messages, message)
	}

	return messages, total, rows.Err()
}
