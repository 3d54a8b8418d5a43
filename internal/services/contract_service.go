package services

import (
	"context"
	"errors"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxContractDays = 366

type ContractService struct {
	db           txBeginner
	contractRepo *repository.ContractRepository
	policy       QuotaPolicy
	observers    Observers
	now          func() time.Time
}

func NewContractService(
	db txBeginner,
	contractRepo *repository.ContractRepository,
	policy QuotaPolicy,
	observers Observers,
) *ContractService {
	return &ContractService{
		db:           db,
		contractRepo: contractRepo,
		policy:       policy.normalized(),
		observers:    observers.withDefaults(),
		now:          time.Now,
	}
}

type OpenContractInput struct {
	TrainerID    int64
	Amount       float64
	DurationDays int
}

type ContractDetail struct {
	Contract     *models.Contract     `json:"contract"`
	Conversation *models.Conversation `json:"conversation,omitempty"`
}

// OpenContract records a placeholder contract between the client and a
// trainer. The conversation is created if the pair never talked before.
func (s *ContractService) OpenContract(
	ctx context.Context,
	actorID int64,
	role string,
	input OpenContractInput,
) (*ContractDetail, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if role != models.RoleClient {
		return nil, ErrForbidden
	}
	if input.TrainerID <= 0 || input.TrainerID == actorID {
		return nil, ErrInvalidInput
	}
	if input.Amount <= 0 || input.DurationDays <= 0 || input.DurationDays > maxContractDays {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	trainer, err := repository.NewUserRepository(tx).GetByID(ctx, input.TrainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if trainer.Role != models.RoleTrainer {
		return nil, ErrNotFound
	}

	conversation, err := repository.NewConversationRepository(tx).CreateOrGet(ctx, actorID, input.TrainerID)
	if err != nil {
		return nil, err
	}
	if conversation.Blocked() {
		return nil, ErrConversationBlocked
	}
	if err := repository.NewQuotaRepository(tx).Ensure(ctx, conversation.ID, s.policy.Period.Next(s.now().UTC())); err != nil {
		return nil, err
	}

	contract, err := repository.NewContractRepository(tx).Create(ctx, repository.CreateContractInput{
		ConversationID: conversation.ID,
		ClientID:       actorID,
		TrainerID:      input.TrainerID,
		Amount:         input.Amount,
		DurationDays:   input.DurationDays,
	})
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &ContractDetail{Contract: contract, Conversation: conversation}, nil
}

// PayContract settles a placeholder contract and extends the conversation's
// contract coverage. Paying an already paid contract returns it unchanged.
func (s *ContractService) PayContract(
	ctx context.Context,
	actorID int64,
	role string,
	contractID int64,
) (*ContractDetail, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if contractID <= 0 {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txContractRepo := repository.NewContractRepository(tx)
	txConversationRepo := repository.NewConversationRepository(tx)

	contract, err := txContractRepo.GetByIDForUpdate(ctx, contractID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if role != models.RoleClient || contract.ClientID != actorID {
		return nil, ErrForbidden
	}
	if contract.Status == models.ContractStatusPaid {
		conversation, err := txConversationRepo.GetByID(ctx, contract.ConversationID)
		if err != nil {
			return nil, err
		}
		return &ContractDetail{Contract: contract, Conversation: conversation}, nil
	}
	if contract.Status != models.ContractStatusPlaceholder {
		return nil, ErrInvalidStateTransition
	}

	conversation, err := txConversationRepo.GetByIDForUpdate(ctx, contract.ConversationID)
	if err != nil {
		return nil, err
	}
	if conversation.Blocked() {
		return nil, ErrConversationBlocked
	}

	validUntil := ContractCoverage(conversation, contract.DurationDays, s.now().UTC())

	paid, err := txContractRepo.MarkPaid(ctx, contractID, validUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	updated, err := txConversationRepo.ApplyContract(ctx, conversation.ID, validUntil)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationBlocked
		}
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	s.observers.Logger.Info("contract paid",
		zap.Int64("contract_id", paid.ID),
		zap.Int64("conversation_id", updated.ID),
		zap.Time("valid_until", validUntil),
	)
	return &ContractDetail{Contract: paid, Conversation: updated}, nil
}

// CancelContract withdraws a placeholder contract. Paid contracts stay paid.
func (s *ContractService) CancelContract(
	ctx context.Context,
	actorID int64,
	role string,
	contractID int64,
) (*models.Contract, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}

	contract, err := s.contractRepo.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !canAccessContract(role, actorID, contract) {
		return nil, ErrForbidden
	}
	if contract.Status != models.ContractStatusPlaceholder {
		return nil, ErrInvalidStateTransition
	}

	cancelled, err := s.contractRepo.UpdateStatusIfCurrent(
		ctx,
		contractID,
		models.ContractStatusPlaceholder,
		models.ContractStatusCancelled,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvalidStateTransition
		}
		return nil, err
	}
	return cancelled, nil
}

func (s *ContractService) ListContracts(ctx context.Context, actorID int64, role string) ([]models.Contract, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if !isChatRole(role) {
		return nil, ErrForbidden
	}
	return s.contractRepo.ListForParticipant(ctx, actorID)
}

// ContractCoverage returns the new end of coverage for a contract of
// durationDays paid at now. Coverage stacks on top of time already paid for.
func ContractCoverage(conversation *models.Conversation, durationDays int, now time.Time) time.Time {
	start := now
	if conversation.ContractActive(now) {
		start = *conversation.ContractValidUntil
	}
	return start.AddDate(0, 0, durationDays)
}

func canAccessContract(role string, actorID int64, contract *models.Contract) bool {
	switch role {
	case models.RoleClient:
		return contract.ClientID == actorID
	case models.RoleTrainer:
		return contract.TrainerID == actorID
	default:
		return false
	}
}
