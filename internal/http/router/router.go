package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ignatzorin/proposal-studio/internal/config"
	"github.com/ignatzorin/proposal-studio/internal/http/handlers"
	"github.com/ignatzorin/proposal-studio/internal/http/middleware"
)

// Handlers набор HTTP хэндлеров приложения.
type Handlers struct {
	Health        *handlers.HealthHandler
	Auth          *handlers.AuthHandler
	Profile       *handlers.ProfileHandler
	Proposals     *handlers.ProposalHandler
	Shares        *handlers.ShareHandler
	Signatures    *handlers.SignatureHandler
	BrandKits     *handlers.BrandKitHandler
	Media         *handlers.MediaHandler
	Webhooks      *handlers.WebhookHandler
	PaymentLinks  *handlers.PaymentLinkHandler
	Billing       *handlers.BillingHandler
	AI            *handlers.AIHandler
	Templates     *handlers.ProposalTemplateHandler
	Notifications *handlers.NotificationHandler
	Dashboard     *handlers.DashboardHandler
	WS            *handlers.WSHandler
	Seed          *handlers.SeedHandler
}

// SetupRouter собирает gin.Engine со всеми маршрутами /api.
func SetupRouter(cfg *config.Config, h Handlers, tokens middleware.AccessParser) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Logger())
	r.Use(middleware.Recovery())
	if cfg.OTel.Enabled {
		r.Use(middleware.Tracing())
	}
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))

	api := r.Group("/api")
	api.GET("/health", h.Health.Health)
	api.GET("/ws", h.WS.Handle)

	if h.Seed != nil && !cfg.IsProduction() {
		api.POST("/seed/templates", h.Seed.SeedTemplates)
	}

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware(cfg.RateLimitLimit, cfg.RateLimitPeriod))
	{
		authGroup.POST("/register", h.Auth.Register)
		authGroup.POST("/login", h.Auth.Login)
		authGroup.POST("/refresh", h.Auth.Refresh)
	}

	// Страница клиента по защищённой ссылке.
	shared := api.Group("/shared/:token")
	shared.Use(middleware.KeyedRateLimit(120, time.Minute, middleware.ByIP))
	{
		shared.GET("", h.Shares.View)
		shared.GET("/html", h.Shares.HTML)
		shared.GET("/export", h.Shares.Export)
		shared.POST("/events", h.Shares.TrackEvent)
		shared.POST("/signatures/:signerId", middleware.UUIDValidator("signerId"), h.Signatures.Sign)
		shared.GET("/signatures/:signerId/image", middleware.UUIDValidator("signerId"), h.Signatures.SharedImage)
	}

	// Вебхуки провайдеров проверяются подписью, а не JWT.
	providerHooks := middleware.KeyedRateLimit(cfg.Limits.PayPalWebhookRate, time.Minute, middleware.ByIP)
	api.POST("/webhooks/stripe", providerHooks, h.Billing.StripeWebhook)
	api.POST("/webhooks/paypal", providerHooks, h.Billing.PayPalWebhook)

	// Файл доступен анонимно, если он публичный.
	api.GET("/media/:id/file", middleware.OptionalAuth(tokens), middleware.UUIDValidator("id"), h.Media.File)

	protected := api.Group("/")
	protected.Use(middleware.AuthMiddleware(tokens))
	{
		protected.POST("/auth/logout", h.Auth.Logout)
		protected.GET("/auth/sessions", h.Auth.ListSessions)
		protected.DELETE("/auth/sessions/:id", middleware.UUIDValidator("id"), h.Auth.DeleteSession)
		protected.POST("/auth/sessions/revoke-others", h.Auth.DeleteAllSessionsExcept)

		protected.GET("/profile", h.Profile.GetMe)
		protected.PUT("/profile", h.Profile.UpdateMe)

		protected.GET("/dashboard", h.Dashboard.GetDashboardData)

		protected.POST("/proposals", h.Proposals.Create)
		protected.GET("/proposals", h.Proposals.List)

		proposal := protected.Group("/proposals/:id")
		proposal.Use(middleware.UUIDValidator("id"))
		{
			proposal.GET("", h.Proposals.Get)
			proposal.PUT("", h.Proposals.Update)
			proposal.DELETE("", h.Proposals.Delete)
			proposal.POST("/duplicate", h.Proposals.Duplicate)
			proposal.PUT("/status", h.Proposals.UpdateStatus)
			proposal.POST("/brand-kit", h.Proposals.ApplyBrandKit)
			proposal.POST("/send", h.Proposals.Send)
			proposal.GET("/export", h.Proposals.Export)
			proposal.GET("/analytics", h.Proposals.Analytics)

			proposal.POST("/shares", h.Shares.Create)
			proposal.GET("/shares", h.Shares.List)

			proposal.POST("/signatures", h.Signatures.AddSigner)
			proposal.GET("/signatures", h.Signatures.ListSigners)
			proposal.DELETE("/signatures/:signerId", middleware.UUIDValidator("signerId"), h.Signatures.RemoveSigner)
			proposal.GET("/signatures/:signerId/image", middleware.UUIDValidator("signerId"), h.Signatures.OwnerImage)

			proposal.POST("/payment-links", h.PaymentLinks.Create)
			proposal.GET("/payment-links", h.PaymentLinks.List)
		}

		protected.DELETE("/shares/:id", middleware.UUIDValidator("id"), h.Shares.Revoke)
		protected.POST("/shares/:id/extend", middleware.UUIDValidator("id"), h.Shares.Extend)

		protected.POST("/payment-links/:id/cancel", middleware.UUIDValidator("id"), h.PaymentLinks.Cancel)

		protected.GET("/brand-kits", h.BrandKits.List)
		protected.POST("/brand-kits", h.BrandKits.Create)
		protected.GET("/brand-kits/:id", middleware.UUIDValidator("id"), h.BrandKits.Get)
		protected.PUT("/brand-kits/:id", middleware.UUIDValidator("id"), h.BrandKits.Update)
		protected.DELETE("/brand-kits/:id", middleware.UUIDValidator("id"), h.BrandKits.Delete)

		protected.POST("/media", h.Media.Upload)
		protected.GET("/media", h.Media.List)
		protected.GET("/media/:id", middleware.UUIDValidator("id"), h.Media.Get)
		protected.DELETE("/media/:id", middleware.UUIDValidator("id"), h.Media.Delete)

		protected.POST("/webhooks", h.Webhooks.Create)
		protected.GET("/webhooks", h.Webhooks.List)
		protected.GET("/webhooks/:id", middleware.UUIDValidator("id"), h.Webhooks.Get)
		protected.PUT("/webhooks/:id", middleware.UUIDValidator("id"), h.Webhooks.Update)
		protected.DELETE("/webhooks/:id", middleware.UUIDValidator("id"), h.Webhooks.Delete)
		protected.POST("/webhooks/:id/toggle", middleware.UUIDValidator("id"), h.Webhooks.Toggle)
		protected.POST("/webhooks/:id/test", middleware.UUIDValidator("id"), h.Webhooks.Test)

		protected.GET("/billing/subscription", h.Billing.Subscription)
		protected.POST("/billing/checkout", h.Billing.Checkout)

		protected.GET("/templates", h.Templates.ListTemplates)
		protected.POST("/templates", h.Templates.CreateTemplate)
		protected.GET("/templates/:id", middleware.UUIDValidator("id"), h.Templates.GetTemplate)
		protected.DELETE("/templates/:id", middleware.UUIDValidator("id"), h.Templates.DeleteTemplate)

		protected.GET("/notifications", h.Notifications.ListNotifications)
		protected.GET("/notifications/unread/count", h.Notifications.CountUnread)
		protected.PUT("/notifications/read-all", h.Notifications.MarkAllAsRead)
		protected.PUT("/notifications/:id/read", middleware.UUIDValidator("id"), h.Notifications.MarkAsRead)
		protected.DELETE("/notifications/:id", middleware.UUIDValidator("id"), h.Notifications.DeleteNotification)
	}

	aiGroup := protected.Group("/ai")
	aiGroup.Use(middleware.KeyedRateLimit(cfg.Limits.AIRequestsPerMin, time.Minute, middleware.ByUserOrIP))
	{
		aiGroup.POST("/generate", h.AI.Generate)
		aiGroup.POST("/improve", h.AI.Improve)
	}

	return r
}
