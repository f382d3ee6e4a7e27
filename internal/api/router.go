package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/qs3c/betfaro_server/config"
	"github.com/qs3c/betfaro_server/internal/api/handler"
	"github.com/qs3c/betfaro_server/internal/api/middleware"
	"github.com/qs3c/betfaro_server/internal/plan"
	"github.com/qs3c/betfaro_server/internal/service"
)

type Router struct {
	healthHandler    *handler.HealthHandler
	accountHandler   *handler.AccountHandler
	billingHandler   *handler.BillingHandler
	picksHandler     *handler.PicksHandler
	chatHandler      *handler.ChatHandler
	adminHandler     *handler.AdminHandler
	websocketHandler *handler.WebSocketHandler

	verifier       middleware.TokenVerifier
	accountService *service.SubscriptionService
	quotaService   *service.QuotaService
	refreshLimiter *middleware.UserRateLimiter
	logger         *zap.Logger
	cfg            *config.Config
}

func NewRouter(
	healthHandler *handler.HealthHandler,
	accountHandler *handler.AccountHandler,
	billingHandler *handler.BillingHandler,
	picksHandler *handler.PicksHandler,
	chatHandler *handler.ChatHandler,
	adminHandler *handler.AdminHandler,
	websocketHandler *handler.WebSocketHandler,
	verifier middleware.TokenVerifier,
	accountService *service.SubscriptionService,
	quotaService *service.QuotaService,
	logger *zap.Logger,
	cfg *config.Config,
) *Router {
	return &Router{
		healthHandler:    healthHandler,
		accountHandler:   accountHandler,
		billingHandler:   billingHandler,
		picksHandler:     picksHandler,
		chatHandler:      chatHandler,
		adminHandler:     adminHandler,
		websocketHandler: websocketHandler,
		verifier:         verifier,
		accountService:   accountService,
		quotaService:     quotaService,
		refreshLimiter:   middleware.NewUserRateLimiter(cfg.Backend.RefreshPerMinute),
		logger:           logger,
		cfg:              cfg,
	}
}

func (r *Router) Setup() *gin.Engine {
	if r.cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery(r.logger))
	engine.Use(middleware.RequestLogger(r.logger))
	engine.Use(middleware.CORS(r.cfg.CORS))

	api := engine.Group("/api")
	{
		// 公开接口
		api.GET("/health", r.healthHandler.Health)
		api.GET("/plans", r.healthHandler.Plans)

		// Stripe 回调，以签名代替会话
		api.POST("/billing/webhook", r.billingHandler.Webhook)

		authenticated := api.Group("")
		authenticated.Use(middleware.Auth(r.verifier, r.cfg.Auth.CookieName))
		{
			// 推送
			authenticated.GET("/events", r.websocketHandler.Handle)

			// 账户
			authenticated.GET("/account", r.accountHandler.Get)
			authenticated.GET("/account/quota", r.accountHandler.Quota)

			// 支付
			authenticated.POST("/billing/checkout", r.billingHandler.Checkout)
			authenticated.POST("/billing/portal", r.billingHandler.Portal)

			// Elite picks
			authenticated.GET("/picks",
				middleware.RequirePlan(r.accountService, plan.Elite),
				r.refreshLimiter.Middleware(middleware.RefreshRequested),
				r.picksHandler.Get,
			)

			// 聊天
			authenticated.GET("/chat/history", r.chatHandler.History)
			authenticated.POST("/chat", middleware.QuotaCheck(r.accountService, r.quotaService), r.chatHandler.Send)
		}

		admin := api.Group("/admin")
		admin.Use(middleware.Auth(r.verifier, r.cfg.Auth.CookieName))
		admin.Use(middleware.RequireAdmin(r.accountService))
		{
			admin.GET("/users", r.adminHandler.ListUsers)
			admin.GET("/users/:id", r.adminHandler.GetUser)
			admin.PATCH("/users/:id/subscription", r.adminHandler.UpdateSubscription)
			admin.POST("/users/:id/revoke", r.adminHandler.Revoke)
		}
	}

	return engine
}
