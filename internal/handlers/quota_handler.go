package handlers

import (
	"context"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type quotaApplicationService interface {
	Get(ctx context.Context, actorID int64, role string, conversationID int64) (*services.QuotaStatus, error)
	Reset(ctx context.Context, conversationID int64) (*services.QuotaStatus, bool, error)
	ForceReset(ctx context.Context, role string, conversationID int64) (*services.QuotaStatus, error)
}

type QuotaHandler struct {
	service quotaApplicationService
	log     *zap.Logger
}

func NewQuotaHandler(service quotaApplicationService, log *zap.Logger) *QuotaHandler {
	return &QuotaHandler{service: service, log: logger.OrNop(log)}
}

func (h *QuotaHandler) GetQuota(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	status, err := h.service.Get(c.UserContext(), actorID, role, conversationID)
	if err != nil {
		return respondServiceError(c, h.log, err, "Conversation not found")
	}
	return c.JSON(status)
}

// ResetQuota starts a fresh free-message period for the conversation. With
// ?due=true it only applies the scheduled reset when the period has ended.
func (h *QuotaHandler) ResetQuota(c *fiber.Ctx) error {
	_, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	conversationID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid conversation id"})
	}

	if c.QueryBool("due") {
		if role != models.RoleAdmin {
			return respondServiceError(c, h.log, services.ErrForbidden, "Conversation not found")
		}
		status, reset, err := h.service.Reset(c.UserContext(), conversationID)
		if err != nil {
			return respondServiceError(c, h.log, err, "Conversation not found")
		}
		return c.JSON(fiber.Map{"quota": status, "reset": reset})
	}

	status, err := h.service.ForceReset(c.UserContext(), role, conversationID)
	if err != nil {
		return respondServiceError(c, h.log, err, "Conversation not found")
	}
	h.log.Info("quota reset by admin", zap.Int64("conversation_id", conversationID))
	return c.JSON(status)
}
