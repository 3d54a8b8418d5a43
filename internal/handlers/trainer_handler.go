package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

type trainerDirectory interface {
	ListByRole(ctx context.Context, role string, search string, limit int, offset int) ([]models.User, int, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type TrainerHandler struct {
	users trainerDirectory
	log   *zap.Logger
}

func NewTrainerHandler(users trainerDirectory, log *zap.Logger) *TrainerHandler {
	return &TrainerHandler{users: users, log: logger.OrNop(log)}
}

type trainerResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func (h *TrainerHandler) ListTrainers(c *fiber.Ctx) error {
	page, limit := parsePagination(c)

	trainers, total, err := h.users.ListByRole(
		c.UserContext(),
		models.RoleTrainer,
		strings.TrimSpace(c.Query("q")),
		limit,
		(page-1)*limit,
	)
	if err != nil {
		h.log.Error("list trainers", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch trainers"})
	}

	response := make([]trainerResponse, 0, len(trainers))
	for _, trainer := range trainers {
		response = append(response, trainerResponse{ID: trainer.ID, Email: trainer.Email})
	}

	return c.JSON(fiber.Map{
		"trainers":   response,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *TrainerHandler) GetTrainer(c *fiber.Ctx) error {
	trainerID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid trainer id"})
	}

	user, err := h.users.GetByID(c.UserContext(), trainerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer not found"})
		}
		h.log.Error("fetch trainer", zap.Int64("trainer_id", trainerID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch trainer"})
	}
	if user.Role != models.RoleTrainer {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Trainer not found"})
	}

	return c.JSON(trainerResponse{ID: user.ID, Email: user.Email})
}
