package handlers

import (
	"context"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type contractApplicationService interface {
	OpenContract(ctx context.Context, actorID int64, role string, input services.OpenContractInput) (*services.ContractDetail, error)
	PayContract(ctx context.Context, actorID int64, role string, contractID int64) (*services.ContractDetail, error)
	CancelContract(ctx context.Context, actorID int64, role string, contractID int64) (*models.Contract, error)
	ListContracts(ctx context.Context, actorID int64, role string) ([]models.Contract, error)
}

type ContractHandler struct {
	service contractApplicationService
	log     *zap.Logger
}

func NewContractHandler(service contractApplicationService, log *zap.Logger) *ContractHandler {
	return &ContractHandler{service: service, log: logger.OrNop(log)}
}

type openContractRequest struct {
	TrainerID    int64   `json:"trainer_id" validate:"required,gt=0"`
	Amount       float64 `json:"amount" validate:"gte=0"`
	DurationDays int     `json:"duration_days" validate:"required,gt=0,lte=366"`
}

func (h *ContractHandler) ListContracts(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}

	contracts, err := h.service.ListContracts(c.UserContext(), actorID, role)
	if err != nil {
		return h.mapContractError(c, err)
	}
	if contracts == nil {
		contracts = []models.Contract{}
	}
	return c.JSON(fiber.Map{"contracts": contracts})
}

func (h *ContractHandler) OpenContract(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var req openContractRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	detail, err := h.service.OpenContract(c.UserContext(), actorID, role, services.OpenContractInput{
		TrainerID:    req.TrainerID,
		Amount:       req.Amount,
		DurationDays: req.DurationDays,
	})
	if err != nil {
		return h.mapContractError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(detail)
}

// PayContract marks a placeholder contract as paid. There is no payment
// provider behind it.
func (h *ContractHandler) PayContract(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	contractID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contract id"})
	}

	detail, err := h.service.PayContract(c.UserContext(), actorID, role, contractID)
	if err != nil {
		return h.mapContractError(c, err)
	}
	return c.JSON(detail)
}

func (h *ContractHandler) CancelContract(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	contractID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid contract id"})
	}

	contract, err := h.service.CancelContract(c.UserContext(), actorID, role, contractID)
	if err != nil {
		return h.mapContractError(c, err)
	}
	return c.JSON(contract)
}

func (h *ContractHandler) mapContractError(c *fiber.Ctx, err error) error {
	return respondServiceError(c, h.log, err, "Contract not found")
}
