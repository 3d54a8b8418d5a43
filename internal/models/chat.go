package models

import "time"

const (
	ConversationStatusOpen       = "OPEN"
	ConversationStatusBlocked    = "BLOCKED"
	ConversationStatusContracted = "CONTRACTED"
)

// Conversation is the single chat thread between one client and one trainer.
type Conversation struct {
	ID                 int64      `json:"id"`
	ClientID           int64      `json:"client_id"`
	TrainerID          int64      `json:"trainer_id"`
	Status             string     `json:"status"`
	LastMessageAt      *time.Time `json:"last_message_at"`
	LastMessageText    *string    `json:"last_message_text"`
	ClientLastReadAt   *time.Time `json:"client_last_read_at"`
	TrainerLastReadAt  *time.Time `json:"trainer_last_read_at"`
	ContractValidUntil *time.Time `json:"contract_valid_until"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

func (c *Conversation) HasParticipant(userID int64) bool {
	return userID > 0 && (c.ClientID == userID || c.TrainerID == userID)
}

func (c *Conversation) RecipientOf(senderID int64) int64 {
	if senderID == c.ClientID {
		return c.TrainerID
	}
	return c.ClientID
}

// ContractActive reports whether a recorded contract still covers the pair at now.
func (c *Conversation) ContractActive(now time.Time) bool {
	return c.ContractValidUntil != nil && c.ContractValidUntil.After(now)
}

func (c *Conversation) Blocked() bool {
	return c.Status == ConversationStatusBlocked
}

type ChatMessage struct {
	ID              int64     `json:"id"`
	ConversationID  int64     `json:"conversation_id"`
	SenderID        int64     `json:"sender_id"`
	Content         string    `json:"content"`
	CreatedAt       time.Time `json:"created_at"`
	ReadByRecipient bool      `json:"read_by_recipient"`
}

type ConversationSummary struct {
	Conversation
	UnreadCount int `json:"unread_count"`
}
