package handlers

import (
	"errors"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// respondServiceError maps service sentinels to HTTP responses. notFound is
// the message used for ErrNotFound so each resource can name itself.
func respondServiceError(c *fiber.Ctx, log *zap.Logger, err error, notFound string) error {
	switch {
	case errors.Is(err, services.ErrUnauthenticated):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid token"})
	case errors.Is(err, services.ErrQuotaExhausted):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
			"error": "Free message quota exhausted",
			"code":  services.ReasonQuotaExhausted,
		})
	case errors.Is(err, services.ErrConversationBlocked):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Conversation is blocked",
			"code":  services.ReasonConversationBlocked,
		})
	case errors.Is(err, services.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "Forbidden"})
	case errors.Is(err, services.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFound})
	case errors.Is(err, services.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid input"})
	case errors.Is(err, services.ErrInvalidStateTransition):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Invalid state transition"})
	case errors.Is(err, services.ErrInvalidState), errors.Is(err, services.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Invalid state"})
	default:
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err),
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Internal server error"})
	}
}
