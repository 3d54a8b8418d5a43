package services

import (
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
)

// AccessDecision is the outcome of the conversation access rule for one
// prospective send.
type AccessDecision struct {
	Allowed       bool   `json:"allowed"`
	Reason        string `json:"reason,omitempty"`
	Contracted    bool   `json:"contracted"`
	ConsumesQuota bool   `json:"consumes_quota"`
	Remaining     *int   `json:"remaining,omitempty"`
}

// Err maps a denied decision to the matching sentinel error.
func (d AccessDecision) Err() error {
	if d.Allowed {
		return nil
	}
	switch d.Reason {
	case ReasonQuotaExhausted:
		return ErrQuotaExhausted
	case ReasonConversationBlocked:
		return ErrConversationBlocked
	default:
		return ErrForbidden
	}
}

// EvaluateAccess decides whether actorID may send into conversation now.
// quota may be nil when the caller knows it is not needed (trainer sends or
// an active contract). An active contract always wins over the quota.
func EvaluateAccess(
	conversation *models.Conversation,
	actorID int64,
	role string,
	quota *models.MessageQuota,
	policy QuotaPolicy,
	now time.Time,
) (AccessDecision, error) {
	if actorID <= 0 {
		return AccessDecision{}, ErrUnauthenticated
	}
	if conversation == nil {
		return AccessDecision{}, ErrNotFound
	}
	if !conversation.HasParticipant(actorID) {
		return AccessDecision{}, ErrForbidden
	}
	if conversation.Blocked() {
		return AccessDecision{Allowed: false, Reason: ReasonConversationBlocked}, nil
	}

	switch {
	case role == models.RoleTrainer && actorID == conversation.TrainerID:
		return AccessDecision{Allowed: true}, nil
	case role == models.RoleClient && actorID == conversation.ClientID:
	default:
		return AccessDecision{}, ErrForbidden
	}

	if conversation.ContractActive(now) {
		return AccessDecision{Allowed: true, Contracted: true}, nil
	}

	remaining := policy.MaxFree
	if quota != nil {
		remaining = policy.RemainingAt(quota, now)
	}
	if remaining <= 0 {
		zero := 0
		return AccessDecision{Allowed: false, Reason: ReasonQuotaExhausted, Remaining: &zero}, nil
	}
	return AccessDecision{Allowed: true, ConsumesQuota: true, Remaining: &remaining}, nil
}
