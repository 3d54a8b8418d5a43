package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	chatws "github.com/Construye-bit/ehc-gym-repo-sub003/internal/websocket"
	"github.com/Construye-bit/ehc-gym-repo-sub003/pkg/utils"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type chatApplicationService interface {
	ListConversations(ctx context.Context, actorID int64, role string) ([]models.ConversationSummary, error)
	CreateConversation(ctx context.Context, actorID int64, role string, trainerID int64) (*models.Conversation, error)
	ListMessages(ctx context.Context, actorID int64, role string, conversationID int64, page int, limit int) ([]models.ChatMessage, int, error)
	MarkRead(ctx context.Context, actorID int64, role string, conversationID int64) error
	CheckAccess(ctx context.Context, actorID int64, role string, conversationID int64) (*services.AccessDecision, error)
	SendMessage(ctx context.Context, actorID int64, role string, conversationID int64, content string) (*services.ChatDelivery, error)
	SendMessageToTrainer(ctx context.Context, actorID int64, role string, trainerID int64, content string) (*services.ChatDelivery, error)
	BlockConversation(ctx context.Context, role string, conversationID int64) (*models.Conversation, error)
}

// chatNotifier pushes REST-originated chat events to open sockets.
type chatNotifier interface {
	NotifyDelivery(delivery *services.ChatDelivery)
	NotifyQuotaExhausted(clientID int64, conversationID int64)
}

type ChatHandler struct {
	service   chatApplicationService
	hub       *chatws.Hub
	notifier  chatNotifier
	jwtSecret string
	log       *zap.Logger
}

func NewChatHandler(service chatApplicationService, hub *chatws.Hub, jwtSecret string, log *zap.Logger) *ChatHandler {
	return &ChatHandler{
		service:   service,
		hub:       hub,
		notifier:  hub,
		jwtSecret: jwtSecret,
		log:       logger.OrNop(log),
	}
}

type createConversationRequest struct {
	TrainerID int64 `json:"trainer_id" validate:"required,gt=0"`
}

type sendMessageRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type sendMessageResponse struct {
	Message      *models.ChatMessage  `json:"message"`
	Conversation *models.Conversation `json:"conversation"`
	Contracted   bool                 `json:"contracted"`
	Remaining    *int                 `json:"remaining,omitempty"`
}

func (h *ChatHandler) ListConversations(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}

	conversations, err := h.service.ListConversations(c.UserContext(), actorID, role)
	if err != nil {
		return h.mapChatError(c, err)
	}
	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}
	return c.JSON(fiber.Map{"conversations": conversations})
}

func (h *ChatHandler) CreateConversation(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var req createConversationRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	conversation, err := h.service.CreateConversation(c.UserContext(), actorID, role, req.TrainerID)
	if err != nil {
		return h.mapChatError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(conversation)
}

func (h *ChatHandler) GetMessages(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	page, limit := parsePagination(c)
	messages, total, err := h.service.ListMessages(c.UserContext(), actorID, role, conversationID, page, limit)
	if err != nil {
		return h.mapChatError(c, err)
	}
	if messages == nil {
		messages = []models.ChatMessage{}
	}

	return c.JSON(fiber.Map{
		"messages":   messages,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *ChatHandler) MarkRead(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	if err := h.service.MarkRead(c.UserContext(), actorID, role, conversationID); err != nil {
		return h.mapChatError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ChatHandler) CheckAccess(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	decision, err := h.service.CheckAccess(c.UserContext(), actorID, role, conversationID)
	if err != nil {
		return h.mapChatError(c, err)
	}
	return c.JSON(decision)
}

func (h *ChatHandler) SendMessage(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	var req sendMessageRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	delivery, err := h.service.SendMessage(c.UserContext(), actorID, role, conversationID, req.Content)
	if err != nil {
		return h.respondSendError(c, actorID, err)
	}
	return h.respondDelivery(c, delivery)
}

// SendToTrainer addresses the message by trainer id and creates the
// conversation when the pair has not talked yet.
func (h *ChatHandler) SendToTrainer(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	trainerID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	var req sendMessageRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	delivery, err := h.service.SendMessageToTrainer(c.UserContext(), actorID, role, trainerID, req.Content)
	if err != nil {
		return h.respondSendError(c, actorID, err)
	}
	return h.respondDelivery(c, delivery)
}

// respondSendError pushes a quota_exhausted event to the sender's sockets
// before mapping the error.
func (h *ChatHandler) respondSendError(c *fiber.Ctx, actorID int64, err error) error {
	var denied *services.DeniedSendError
	if errors.As(err, &denied) && errors.Is(err, services.ErrQuotaExhausted) {
		h.notifier.NotifyQuotaExhausted(actorID, denied.ConversationID)
	}
	return h.mapChatError(c, err)
}

func (h *ChatHandler) respondDelivery(c *fiber.Ctx, delivery *services.ChatDelivery) error {
	h.notifier.NotifyDelivery(delivery)
	return c.Status(fiber.StatusCreated).JSON(sendMessageResponse{
		Message:      delivery.Message,
		Conversation: delivery.Conversation,
		Contracted:   delivery.Decision.Contracted,
		Remaining:    delivery.Decision.Remaining,
	})
}

func (h *ChatHandler) BlockConversation(c *fiber.Ctx) error {
	_, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	conversation, err := h.service.BlockConversation(c.UserContext(), role, conversationID)
	if err != nil {
		return h.mapChatError(c, err)
	}
	return c.JSON(conversation)
}

func (h *ChatHandler) WebSocketAuth(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	token := c.Query("token")
	if token == "" {
		authHeader := c.Get("Authorization")
		if strings.HasPrefix(authHeader, "Bearer ") {
			token = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if token == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Missing token"})
	}

	claims, err := utils.ValidateToken(token, h.jwtSecret)
	if err != nil || claims.UserID == "" || !models.IsKnownRole(claims.Role) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid or expired token"})
	}

	c.Locals("user_id", claims.UserID)
	c.Locals("role", claims.Role)
	return c.Next()
}

func (h *ChatHandler) HandleWebSocket(conn *websocket.Conn) {
	userID, _ := conn.Locals("user_id").(string)
	role, _ := conn.Locals("role").(string)

	client := chatws.NewClient(h.hub, conn, userID)
	h.hub.Register(client)

	go client.WritePump()
	client.ReadPump(h.service, role)
}

func (h *ChatHandler) mapChatError(c *fiber.Ctx, err error) error {
	return respondServiceError(c, h.log, err, "Conversation not found")
}
