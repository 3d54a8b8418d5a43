package models

import "time"

const DefaultMaxFreeMessages = 20

// MessageQuota counts the free messages a client has sent a trainer in the
// current period. Remaining is always derived from UsedCount.
type MessageQuota struct {
	ConversationID int64     `json:"conversation_id"`
	UsedCount      int       `json:"used_count"`
	ResetAt        time.Time `json:"reset_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func RemainingMessages(usedCount, maxFree int) int {
	remaining := maxFree - usedCount
	if remaining < 0 {
		return 0
	}
	return remaining
}

func (q *MessageQuota) Remaining(maxFree int) int {
	return RemainingMessages(q.UsedCount, maxFree)
}

// Due reports whether the period ended and the counter should start over.
func (q *MessageQuota) Due(now time.Time) bool {
	return !now.Before(q.ResetAt)
}
