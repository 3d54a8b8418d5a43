package services

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthenticated        = errors.New("unauthenticated")
	ErrNotFound               = errors.New("not found")
	ErrForbidden              = errors.New("forbidden")
	ErrQuotaExhausted         = errors.New("free message quota exhausted")
	ErrInvalidState           = errors.New("invalid state")
	ErrInvalidInput           = errors.New("invalid input")
	ErrConflict               = errors.New("conflict")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrConversationBlocked is a forbidden send into a BLOCKED conversation.
	ErrConversationBlocked = fmt.Errorf("%w: conversation blocked", ErrForbidden)
)

// Reason codes returned to callers on a denied send.
const (
	ReasonQuotaExhausted      = "QUOTA_EXHAUSTED"
	ReasonConversationBlocked = "CONVERSATION_BLOCKED"
)

// DeniedSendError wraps the reason a send was refused with the conversation
// it was aimed at, which callers addressing a trainer do not know up front.
type DeniedSendError struct {
	ConversationID int64
	Err            error
}

func (e *DeniedSendError) Error() string {
	return fmt.Sprintf("send to conversation %d denied: %v", e.ConversationID, e.Err)
}

func (e *DeniedSendError) Unwrap() error {
	return e.Err
}
