package handlers

import (
	"context"

	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/logger"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type postApplicationService interface {
	CreatePost(ctx context.Context, actorID int64, role string, input services.CreatePostInput) (*models.Post, error)
	PublishPost(ctx context.Context, actorID int64, role string, postID int64) (*models.Post, error)
	DeletePost(ctx context.Context, actorID int64, role string, postID int64) error
	GetPost(ctx context.Context, actorID int64, role string, postID int64) (*models.PostView, error)
	ListPublished(ctx context.Context, page int, limit int) ([]models.Post, int, error)
	ToggleLike(ctx context.Context, actorID int64, postID int64) (*models.LikeToggleResult, error)
	ReconcileLikes(ctx context.Context) (int64, error)
}

type PostHandler struct {
	service postApplicationService
	log     *zap.Logger
}

func NewPostHandler(service postApplicationService, log *zap.Logger) *PostHandler {
	return &PostHandler{service: service, log: logger.OrNop(log)}
}

type createPostRequest struct {
	Title   string `json:"title" validate:"required,max=200"`
	Content string `json:"content" validate:"required,max=20000"`
	Publish bool   `json:"publish"`
}

func (h *PostHandler) ListPosts(c *fiber.Ctx) error {
	page, limit := parsePagination(c)

	posts, total, err := h.service.ListPublished(c.UserContext(), page, limit)
	if err != nil {
		return h.mapPostError(c, err)
	}
	if posts == nil {
		posts = []models.Post{}
	}

	return c.JSON(fiber.Map{
		"posts":      posts,
		"pagination": buildPaginationMeta(page, limit, total),
	})
}

func (h *PostHandler) GetPost(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	post, err := h.service.GetPost(c.UserContext(), actorID, role, postID)
	if err != nil {
		return h.mapPostError(c, err)
	}
	return c.JSON(post)
}

func (h *PostHandler) CreatePost(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}

	var req createPostRequest
	if ok, resp := bindJSON(c, &req); !ok {
		return resp
	}

	post, err := h.service.CreatePost(c.UserContext(), actorID, role, services.CreatePostInput{
		Title:   req.Title,
		Content: req.Content,
		Publish: req.Publish,
	})
	if err != nil {
		return h.mapPostError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

func (h *PostHandler) PublishPost(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	post, err := h.service.PublishPost(c.UserContext(), actorID, role, postID)
	if err != nil {
		return h.mapPostError(c, err)
	}
	return c.JSON(post)
}

func (h *PostHandler) DeletePost(c *fiber.Ctx) error {
	actorID, role, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	if err := h.service.DeletePost(c.UserContext(), actorID, role, postID); err != nil {
		return h.mapPostError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike likes the post, or removes the like when the caller already
// liked it.
func (h *PostHandler) ToggleLike(c *fiber.Ctx) error {
	actorID, _, err := actorFromContext(c)
	if err != nil {
		return unauthorized(c)
	}
	postID, ok := parseIDParam(c, "id")
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid post id"})
	}

	result, err := h.service.ToggleLike(c.UserContext(), actorID, postID)
	if err != nil {
		return h.mapPostError(c, err)
	}
	return c.JSON(result)
}

// ReconcileLikes recomputes every post's like count from the like rows.
func (h *PostHandler) ReconcileLikes(c *fiber.Ctx) error {
	repaired, err := h.service.ReconcileLikes(c.UserContext())
	if err != nil {
		return h.mapPostError(c, err)
	}
	if repaired > 0 {
		h.log.Warn("like counts repaired", zap.Int64("posts", repaired))
	}
	return c.JSON(fiber.Map{"repaired": repaired})
}

func (h *PostHandler) mapPostError(c *fiber.Ctx, err error) error {
	return respondServiceError(c, h.log, err, "Post not found")
}
