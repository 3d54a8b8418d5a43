package routes

import (
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/config"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/handlers"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/metrics"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/middleware"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/models"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/repository"
	"github.com/Construye-bit/ehc-gym-repo-sub003/internal/services"
	chatws "github.com/Construye-bit/ehc-gym-repo-sub003/internal/websocket"
	websocket "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"go.uber.org/zap"
)

// Dependencies carries everything the HTTP layer needs. main builds the
// services so the maintenance worker can share them.
type Dependencies struct {
	Config    *config.Config
	Users     *repository.UserRepository
	Chat      *services.ChatService
	Quotas    *services.QuotaService
	Contracts *services.ContractService
	Posts     *services.PostService
	Hub       *chatws.Hub
	Metrics   *metrics.Metrics
	Logger    *zap.Logger
}

func RegisterRoutes(app *fiber.App, deps Dependencies) {
	cfg := deps.Config

	authHandler := handlers.NewAuthHandler(deps.Users, cfg.JWTSecret, deps.Logger)
	chatHandler := handlers.NewChatHandler(deps.Chat, deps.Hub, cfg.JWTSecret, deps.Logger)
	quotaHandler := handlers.NewQuotaHandler(deps.Quotas, deps.Logger)
	contractHandler := handlers.NewContractHandler(deps.Contracts, deps.Logger)
	postHandler := handlers.NewPostHandler(deps.Posts, deps.Logger)
	trainerHandler := handlers.NewTrainerHandler(deps.Users, deps.Logger)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "ok",
		})
	})
	if cfg.MetricsEnabled && deps.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.Metrics.Handler()))
	}

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", authHandler.Register)
	auth.Post("/login", authHandler.Login)
	auth.Get("/me", middleware.AuthRequired(cfg.JWTSecret), authHandler.Me)

	api.Use("/v1/ws", chatHandler.WebSocketAuth)
	api.Get("/v1/ws", websocket.New(chatHandler.HandleWebSocket))

	authProtected := api.Group("/v1", middleware.AuthRequired(cfg.JWTSecret))
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	conversations := authProtected.Group("/conversations")
	conversations.Get("", chatHandler.ListConversations)
	conversations.Post("", chatHandler.CreateConversation)
	conversations.Get("/:id/messages", chatHandler.GetMessages)
	conversations.Post("/:id/messages", chatHandler.SendMessage)
	conversations.Get("/:id/access", chatHandler.CheckAccess)
	conversations.Post("/:id/read", chatHandler.MarkRead)
	conversations.Get("/:id/quota", quotaHandler.GetQuota)
	conversations.Post("/:id/block", adminOnly, chatHandler.BlockConversation)
	conversations.Post("/:id/quota/reset", adminOnly, quotaHandler.ResetQuota)

	trainers := authProtected.Group("/trainers")
	trainers.Get("", trainerHandler.ListTrainers)
	trainers.Get("/:id", trainerHandler.GetTrainer)
	trainers.Post("/:id/messages", chatHandler.SendToTrainer)

	contracts := authProtected.Group("/contracts")
	contracts.Get("", contractHandler.ListContracts)
	contracts.Post("", contractHandler.OpenContract)
	contracts.Post("/:id/pay", contractHandler.PayContract)
	contracts.Post("/:id/cancel", contractHandler.CancelContract)

	posts := authProtected.Group("/posts")
	posts.Get("", postHandler.ListPosts)
	posts.Post("", postHandler.CreatePost)
	posts.Get("/:id", postHandler.GetPost)
	posts.Delete("/:id", postHandler.DeletePost)
	posts.Post("/:id/publish", postHandler.PublishPost)
	posts.Post("/:id/like", postHandler.ToggleLike)

	admin := authProtected.Group("/admin", adminOnly)
	admin.Post("/likes/reconcile", postHandler.ReconcileLikes)
	admin.Post("/trainers", authHandler.CreateTrainer)
}
