package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/messaging"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/metrics"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const maxMessageLength = 2000

type ChatService struct {
	db               txBeginner
	conversationRepo *repository.ConversationRepository
	messageRepo      *repository.MessageRepository
	quotaRepo        *repository.QuotaRepository
	policy           QuotaPolicy
	observers        Observers
	now              func() time.Time
}

type ChatDelivery struct {
	Conversation *models.Conversation
	Message      *models.ChatMessage
	RecipientID  int64
	Decision     AccessDecision
}

func NewChatService(
	db txBeginner,
	conversationRepo *repository.ConversationRepository,
	messageRepo *repository.MessageRepository,
	quotaRepo *repository.QuotaRepository,
	policy QuotaPolicy,
	observers Observers,
) *ChatService {
	return &ChatService{
		db:               db,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		quotaRepo:        quotaRepo,
		policy:           policy.normalized(),
		observers:        observers.withDefaults(),
		now:              time.Now,
	}
}

func isChatRole(role string) bool {
	return role == models.RoleClient || role == models.RoleTrainer
}

func (s *ChatService) ListConversations(
	ctx context.Context,
	actorID int64,
	role string,
) ([]models.ConversationSummary, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if !isChatRole(role) {
		return nil, ErrForbidden
	}

	return s.conversationRepo.ListForParticipant(ctx, actorID)
}

// CreateConversation opens (or returns) the client's conversation with a trainer.
func (s *ChatService) CreateConversation(
	ctx context.Context,
	actorID int64,
	role string,
	trainerID int64,
) (*models.Conversation, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if role != models.RoleClient {
		return nil, ErrForbidden
	}
	if trainerID <= 0 || trainerID == actorID {
		return nil, ErrInvalidInput
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	conversation, err := s.openConversation(ctx, tx, actorID, trainerID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return conversation, nil
}

// openConversation validates the trainer and creates the conversation with
// its quota row. A pair that was never validated is reported as not found.
func (s *ChatService) openConversation(
	ctx context.Context,
	tx pgx.Tx,
	clientID int64,
	trainerID int64,
) (*models.Conversation, error) {
	trainer, err := repository.NewUserRepository(tx).GetByID(ctx, trainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if trainer.Role != models.RoleTrainer {
		return nil, ErrNotFound
	}

	conversation, err := repository.NewConversationRepository(tx).CreateOrGet(ctx, clientID, trainerID)
	if err != nil {
		return nil, err
	}
	if err := repository.NewQuotaRepository(tx).Ensure(ctx, conversation.ID, s.policy.Period.Next(s.now().UTC())); err != nil {
		return nil, err
	}
	return conversation, nil
}

func (s *ChatService) ListMessages(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	page int,
	limit int,
) ([]models.ChatMessage, int, error) {
	if actorID <= 0 {
		return nil, 0, ErrUnauthenticated
	}
	if !isChatRole(role) {
		return nil, 0, ErrForbidden
	}
	if conversationID <= 0 || page <= 0 || limit <= 0 {
		return nil, 0, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, ErrNotFound
		}
		return nil, 0, err
	}
	if !conversation.HasParticipant(actorID) {
		return nil, 0, ErrForbidden
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	messages, total, err := repository.NewMessageRepository(tx).ListByConversation(
		ctx,
		conversationID,
		limit,
		(page-1)*limit,
	)
	if err != nil {
		return nil, 0, err
	}

	if readUpTo, ok := newestFromOther(messages, actorID); ok {
		if err := repository.NewConversationRepository(tx).MarkRead(ctx, conversationID, actorID, readUpTo); err != nil {
			return nil, 0, err
		}
		for i := range messages {
			if messages[i].SenderID != actorID && !messages[i].CreatedAt.After(readUpTo) {
				messages[i].ReadByRecipient = true
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, 0, err
	}

	return messages, total, nil
}

// MarkRead stamps the actor's last-read time, which marks every message the
// other participant has sent so far as read.
func (s *ChatService) MarkRead(ctx context.Context, actorID int64, role string, conversationID int64) error {
	if actorID <= 0 {
		return ErrUnauthenticated
	}
	if !isChatRole(role) {
		return ErrForbidden
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := repository.NewConversationRepository(tx)
	conversation, err := txConversationRepo.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return err
	}
	if !conversation.HasParticipant(actorID) {
		return ErrForbidden
	}

	if err := txConversationRepo.MarkRead(ctx, conversationID, actorID, s.now().UTC()); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// CheckAccess previews the access rule without consuming quota.
func (s *ChatService) CheckAccess(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
) (*AccessDecision, error) {
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

	quota, err := s.quotaRepo.GetByConversationID(ctx, conversationID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	decision, err := EvaluateAccess(conversation, actorID, role, quota, s.policy, s.now().UTC())
	if err != nil {
		return nil, err
	}
	return &decision, nil
}

// SendMessage applies the access rule and, when allowed, stores the message.
// The quota check, the increment and the insert share one transaction that
// holds the conversation row lock.
func (s *ChatService) SendMessage(
	ctx context.Context,
	actorID int64,
	role string,
	conversationID int64,
	content string,
) (*ChatDelivery, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if !isChatRole(role) {
		return nil, ErrForbidden
	}
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}
	trimmed, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	conversation, err := repository.NewConversationRepository(tx).GetByIDForUpdate(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return s.deliver(ctx, tx, conversation, actorID, role, trimmed)
}

// SendMessageToTrainer addresses a message by (client, trainer) pair and
// creates the conversation on the first attempt.
func (s *ChatService) SendMessageToTrainer(
	ctx context.Context,
	actorID int64,
	role string,
	trainerID int64,
	content string,
) (*ChatDelivery, error) {
	if actorID <= 0 {
		return nil, ErrUnauthenticated
	}
	if role != models.RoleClient {
		return nil, ErrForbidden
	}
	if trainerID <= 0 || trainerID == actorID {
		return nil, ErrInvalidInput
	}
	trimmed, err := normalizeContent(content)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	txConversationRepo := repository.NewConversationRepository(tx)
	conversation, err := txConversationRepo.GetByPairForUpdate(ctx, actorID, trainerID)
	if errors.Is(err, pgx.ErrNoRows) {
		opened, openErr := s.openConversation(ctx, tx, actorID, trainerID)
		if openErr != nil {
			return nil, openErr
		}
		conversation, err = txConversationRepo.GetByIDForUpdate(ctx, opened.ID)
	}
	if err != nil {
		return nil, err
	}

	return s.deliver(ctx, tx, conversation, actorID, role, trimmed)
}

func (s *ChatService) deliver(
	ctx context.Context,
	tx pgx.Tx,
	conversation *models.Conversation,
	actorID int64,
	role string,
	content string,
) (*ChatDelivery, error) {
	now := s.now().UTC()
	txQuotaRepo := repository.NewQuotaRepository(tx)

	var quota *models.MessageQuota
	if role == models.RoleClient && actorID == conversation.ClientID && !conversation.ContractActive(now) {
		if err := txQuotaRepo.Ensure(ctx, conversation.ID, s.policy.Period.Next(now)); err != nil {
			return nil, err
		}
		var err error
		quota, err = txQuotaRepo.GetForUpdate(ctx, conversation.ID)
		if err != nil {
			return nil, err
		}
	}

	decision, err := EvaluateAccess(conversation, actorID, role, quota, s.policy, now)
	if err != nil {
		return nil, err
	}
	if !decision.Allowed {
		s.reportDenied(ctx, conversation, actorID, decision)
		return nil, &DeniedSendError{ConversationID: conversation.ID, Err: decision.Err()}
	}

	if decision.ConsumesQuota {
		remaining, err := s.policy.Consume(quota, now)
		if err != nil {
			s.reportDenied(ctx, conversation, actorID, AccessDecision{Reason: ReasonQuotaExhausted})
			return nil, &DeniedSendError{ConversationID: conversation.ID, Err: err}
		}
		if err := txQuotaRepo.Save(ctx, quota); err != nil {
			return nil, err
		}
		decision.Remaining = &remaining
	}

	message, err := repository.NewMessageRepository(tx).Create(ctx, conversation.ID, actorID, content)
	if err != nil {
		return nil, err
	}
	if err := repository.NewConversationRepository(tx).RecordMessage(ctx, conversation.ID, content, message.CreatedAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	conversation.LastMessageAt = &message.CreatedAt
	conversation.LastMessageText = &content

	delivery := &ChatDelivery{
		Conversation: conversation,
		Message:      message,
		RecipientID:  conversation.RecipientOf(actorID),
		Decision:     decision,
	}
	s.reportSent(ctx, delivery)
	return delivery, nil
}

func (s *ChatService) reportSent(ctx context.Context, delivery *ChatDelivery) {
	kind := metrics.SendKindTrainer
	switch {
	case delivery.Decision.Contracted:
		kind = metrics.SendKindContracted
	case delivery.Decision.ConsumesQuota:
		kind = metrics.SendKindFree
	}
	s.observers.Metrics.MessageSent(kind)
	s.observers.publish(ctx, messaging.SubjectMessageSent, map[string]any{
		"conversation_id": delivery.Conversation.ID,
		"message_id":      delivery.Message.ID,
		"sender_id":       delivery.Message.SenderID,
		"recipient_id":    delivery.RecipientID,
		"kind":            kind,
	})
}

func (s *ChatService) reportDenied(ctx context.Context, conversation *models.Conversation, actorID int64, decision AccessDecision) {
	if decision.Reason != ReasonQuotaExhausted {
		return
	}
	s.observers.Metrics.QuotaDenied()
	s.observers.Logger.Debug("free message quota exhausted",
		zap.Int64("conversation_id", conversation.ID),
		zap.Int64("client_id", actorID),
	)
	s.observers.publish(ctx, messaging.SubjectQuotaExceeded, map[string]any{
		"conversation_id": conversation.ID,
		"client_id":       conversation.ClientID,
		"trainer_id":      conversation.TrainerID,
	})
}

// BlockConversation moves a conversation to the terminal BLOCKED state. Admin only.
func (s *ChatService) BlockConversation(ctx context.Context, role string, conversationID int64) (*models.Conversation, error) {
	if role != models.RoleAdmin {
		return nil, ErrForbidden
	}
	if conversationID <= 0 {
		return nil, ErrInvalidInput
	}

	conversation, err := s.conversationRepo.Block(ctx, conversationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	s.observers.Logger.Info("conversation blocked", zap.Int64("conversation_id", conversationID))
	return conversation, nil
}

func normalizeContent(content string) (string, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" || len([]rune(trimmed)) > maxMessageLength {
		return "", ErrInvalidInput
	}
	return trimmed, nil
}

func FormatChatTimestamp(ts time.Time) string {
	return ts.UTC().Format(time.RFC3339)
}

// newestFromOther returns the created_at of the latest message in the page
// that readerID did not write.
func newestFromOther(messages []models.ChatMessage, readerID int64) (time.Time, bool) {
	var newest time.Time
	found := false
	for _, message := range messages {
		if message.SenderID == readerID {
			continue
		}
		if !found || message.CreatedAt.After(newest) {
			newest = message.CreatedAt
			found = true
		}
	}
	return newest, found
}
