package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type ResetPeriod string

const (
	ResetDaily   ResetPeriod = "daily"
	ResetMonthly ResetPeriod = "monthly"
)

func ParseResetPeriod(value string) (ResetPeriod, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "monthly", "month":
		return ResetMonthly, nil
	case "daily", "day":
		return ResetDaily, nil
	default:
		return "", fmt.Errorf("unknown quota reset period %q", value)
	}
}

// Next returns the first boundary strictly after now, in UTC.
func (p ResetPeriod) Next(now time.Time) time.Time {
	now = now.UTC()
	if p == ResetDaily {
		return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)
	}
	return time.Date(now.Year(), now.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}

type QuotaPolicy struct {
	MaxFree int
	Period  ResetPeriod
}

func DefaultQuotaPolicy() QuotaPolicy {
	return QuotaPolicy{MaxFree: models.DefaultMaxFreeMessages, Period: ResetMonthly}
}

func (p QuotaPolicy) normalized() QuotaPolicy {
	if p.MaxFree <= 0 {
		p.MaxFree = models.DefaultMaxFreeMessages
	}
	if p.Period == "" {
		p.Period = ResetMonthly
	}
	return p
}

// RemainingAt is the number of free sends left at now, counting a period
// boundary that passed but has not been written back yet.
func (p QuotaPolicy) RemainingAt(quota *models.MessageQuota, now time.Time) int {
	if quota.Due(now) {
		return p.MaxFree
	}
	return quota.Remaining(p.MaxFree)
}

// Consume takes one free send from quota in place. The caller must hold the
// row lock and persist the quota in the same transaction.
func (p QuotaPolicy) Consume(quota *models.MessageQuota, now time.Time) (int, error) {
	p.Reset(quota, now)
	if quota.UsedCount >= p.MaxFree {
		return 0, ErrQuotaExhausted
	}
	quota.UsedCount++
	return quota.Remaining(p.MaxFree), nil
}

// Reset zeroes the quota and advances reset_at when its period is over.
// It reports false and leaves quota untouched otherwise.
func (p QuotaPolicy) Reset(quota *models.MessageQuota, now time.Time) bool {
	if !quota.Due(now) {
		return false
	}
	quota.UsedCount = 0
	quota.ResetAt = p.Period.Next(now)
	return true
}

type QuotaStatus struct {
	Applicable bool       `json:"applicable"`
	UsedCount  int        `json:"used_count"`
	Remaining  int        `json:"remaining"`
	Max        int        `json:"max"`
	ResetAt    *time.Time `json:"reset_at,omitempty"`
}

func (p QuotaPolicy) Status(quota *models.MessageQuota, now time.Time) *QuotaStatus {
	used := quota.UsedCount
	resetAt := quota.ResetAt
	if quota.Due(now) {
		used = 0
		resetAt = p.Period.Next(now)
	}
	return &QuotaStatus{
		Applicable: true,
		UsedCount:  used,
		Remaining:  models.RemainingMessages(used, p.MaxFree),
		Max:        p.MaxFree,
		ResetAt:    &resetAt,
	}
}

type QuotaService struct {
	db               txBeginner
	conversationRepo *repository.ConversationRepository
	quotaRepo        *repository.QuotaRepository
	policy           QuotaPolicy
	observers        Observers
	now              func() time.Time
}

func NewQuotaService(
	db txBeginner,
	conversationRepo *repository.ConversationRepository,
	quotaRepo *repository.QuotaRepository,
	policy QuotaPolicy,
	observers Observers,
) *QuotaService {
	return &QuotaService{
		db:               db,
		conversationRepo: conversationRepo,
		quotaRepo:        quotaRepo,
		policy:           policy.normalized(),
		observers:        observers.withDefaults(),
		now:              time.Now,
	}
}

func (s *QuotaService) Policy() QuotaPolicy {
	return s.policy
}

// Get reports the quota of a conversation as seen by the actor. Only the
// client side of a conversation is metered; trainers get Applicable=false.
func (s *QuotaService) Get(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
) (*QuotaStatus, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin && !conversation.HasParticipant(actorID) {
		return nil, ErrForbidden
	}
	if actorID == conversation.TrainerID {
		return &QuotaStatus{Applicable: false, Max: s.policy.MaxFree}, nil
	}

	quota, err := s.quotaRepo.GetByConversationID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			now := s.now().UTC()
			return s.policy.Status(&models.MessageQuota{ConversationID: conversationID, ResetAt: s.policy.Period.Next(now)}, now), nil
		}
		return nil, err
	}
	return s.policy.Status(quota, s.now().UTC()), nil
}

// Reset applies the periodic reset to one conversation. It is a no-op when
// the current period has not ended, so repeated calls are harmless.
func (s *QuotaService) Reset(ctx context.Context, conversationID int64) (*QuotaStatus, bool, error) {
	var (
		status *QuotaStatus
		reset  bool
	)
	err := s.inTx(ctx, conversationID, func(quotaRepo *repository.QuotaRepository, quota *models.MessageQuota) error {
		now := s.now().UTC()
		reset = s.policy.Reset(quota, now)
		if reset {
			if err := quotaRepo.Save(ctx, quota); err != nil {
				return err
			}
		}
		status = s.policy.Status(quota, now)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if reset {
		s.observers.Metrics.QuotasReset(1)
	}
	return status, reset, nil
}

// ForceReset clears the counter immediately and starts a fresh period. Admin only.
func (s *QuotaService) ForceReset(ctx context.Context, role string, conversationID int64) (*QuotaStatus, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	var status *QuotaStatus
	err := s.inTx(ctx, conversationID, func(quotaRepo *repository.QuotaRepository, quota *models.MessageQuota) error {
		now := s.now().UTC()
		quota.UsedCount = 0
		quota.ResetAt = s.policy.Period.Next(now)
		if err := quotaRepo.Save(ctx, quota); err != nil {
			return err
		}
		status = s.policy.Status(quota, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.observers.Metrics.QuotasReset(1)
	return status, nil
}

// ResetDue resets every quota whose period has ended. Called by the maintenance worker.
func (s *QuotaService) ResetDue(ctx context.Context) (int64, error) {
	now := s.now().UTC()
	count, err := s.quotaRepo.ResetDue(ctx, now, s.policy.Period.Next(now))
	if err != nil {
		return 0, err
	}
	s.observers.Metrics.QuotasReset(count)
	if count > 0 {
		s.observers.Logger.Info("message quotas reset", zap.Int64("count", count))
	}
	return count, nil
}

func (s *QuotaService) inTx(
	ctx context.Context,
	conversationID int64,
	fn func(quotaRepo *repository.QuotaRepository, quota *models.MessageQuota) error,
) error {
	if conversationID <= 0 {
		return ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txQuotaRepo := repository.NewQuotaRepository(tx)
	quota, err := txQuotaRepo.GetForUpdate(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}

	if err := fn(txQuotaRepo, quota); err != nil {
		return err
	}

	return tx.Commit(ctx)
}
