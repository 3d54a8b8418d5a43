package handlers

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

type userStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

type AuthHandler struct {
	users     userStore
	jwtSecret string
	log       *zap.Logger
}

func NewAuthHandler(users userStore, jwtSecret string, log *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:     users,
		jwtSecret: jwtSecret,
		log:       logger.OrNop(log),
	}
}

// Self-registration only creates clients. Trainers are created by an admin
// and admins are seeded at startup.
type registerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Role     string `json:"role" validate:"omitempty,oneof=client"`
}

type createTrainerRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	user, done, err := h.createUser(c, req.Email, req.Password, models.RoleClient)
	if done {
		return err
	}
	return h.respondWithToken(c, fiber.StatusCreated, user)
}

// CreateTrainer adds a trainer account from the admin console. No token is
// issued; the trainer logs in with the given credentials.
func (h *AuthHandler) CreateTrainer(c *fiber.Ctx) error {
	var req createTrainerRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	user, done, err := h.createUser(c, req.Email, req.Password, models.RoleTrainer)
	if done {
		return err
	}
	h.log.Info("trainer account created", zap.Int64("user_id", user.ID))
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"user": user})
}

// createUser reports done=true when it already wrote an error response.
func (h *AuthHandler) createUser(c *fiber.Ctx, email string, password string, role string) (*models.User, bool, error) {
	hashed, err := utils.HashPassword(password)
	if err != nil {
		h.log.Error("hash password", zap.Error(err))
		return nil, true, c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to hash password"})
	}

	user := &models.User{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		PasswordHash: hashed,
		Role:         role,
	}
	if err := h.users.CreateUser(c.UserContext(), user); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, true, c.Status(fiber.StatusConflict).
				JSON(fiber.Map{"error": "Email already exists"})
		}
		h.log.Error("create user", zap.Error(err))
		return nil, true, c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to create user"})
	}
	return user, false, nil
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	user, err := h.users.GetByEmail(c.UserContext(), strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusUnauthorized).
				JSON(fiber.Map{"error": "Invalid email or password"})
		}
		h.log.Error("lookup user", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to lookup user"})
	}

	if !utils.CheckPassword(req.Password, user.PasswordHash) {
		return c.Status(fiber.StatusUnauthorized).
			JSON(fiber.Map{"error": "Invalid email or password"})
	}

	return h.respondWithToken(c, fiber.StatusOK, user)
}

func (h *AuthHandler) Me(c *fiber.Ctx) error {
	userID, _, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}

	user, err := h.users.GetByID(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		h.log.Error("fetch user", zap.Int64("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch user"})
	}

	return c.JSON(fiber.Map{"user": user})
}

func (h *AuthHandler) respondWithToken(c *fiber.Ctx, status int, user *models.User) error {
	token, err := utils.GenerateToken(strconv.FormatInt(user.ID, 10), user.Role, h.jwtSecret)
	if err != nil {
		h.log.Error("generate token", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).
			JSON(fiber.Map{"error": "Failed to generate token"})
	}

	return c.Status(status).JSON(fiber.Map{
		"token": token,
		"user": fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		},
	})
}
