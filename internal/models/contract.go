package models

import "time"

const (
	ContractStatusPlaceholder = "placeholder"
	ContractStatusPaid        = "paid"
	ContractStatusCancelled   = "cancelled"
)

type Contract struct {
	ID             int64      `json:"id"`
	ConversationID int64      `json:"conversation_id"`
	ClientID       int64      `json:"client_id"`
	TrainerID      int64      `json:"trainer_id"`
	Amount         float64    `json:"amount"`
	DurationDays   int        `json:"duration_days"`
	Status         string     `json:"status"`
	ValidUntil     *time.Time `json:"valid_until"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
