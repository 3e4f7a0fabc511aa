package routes

import (
	accountsapi "coaching-billing/internal/api/accounts"
	adminapi "coaching-billing/internal/api/admin"
	authapi "coaching-billing/internal/api/auth"
	billingapi "coaching-billing/internal/api/billing"
	pricingapi "coaching-billing/internal/api/pricing"
	sessionsapi "coaching-billing/internal/api/sessions"
	stripewebhooks "coaching-billing/internal/api/stripewebhook"
	"coaching-billing/internal/api/users"
	"coaching-billing/internal/app/http/middleware"
	roles "coaching-billing/internal/domain/users"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers are the stateful API handlers built in cmd; auth, users and admin
// are plain functions over database.DB.
type Handlers struct {
	Webhook  *stripewebhooks.Handler
	Sessions *sessionsapi.Handler
	Billing  *billingapi.Handler
	Accounts *accountsapi.Handler
	Pricing  *pricingapi.Handler
}

func RegisterRoutes(r *gin.Engine, h Handlers) {
	// Stripe signs the raw body, so the webhook skips sanitizing.
	r.POST("/webhook", h.Webhook.StripeWebhook)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	public := r.Group("/")
	public.Use(middleware.SanitizeAndCleanInputMiddleware())

	public.POST("/register", authapi.Register)
	public.POST("/login", authapi.Login)

	public.GET("/auth/google", authapi.GoogleStart)
	public.GET("/auth/google/callback", authapi.GoogleCallback)
	public.GET("/connect/callback", h.Accounts.ConnectCallback)

	// Authenticated
	auth := r.Group("/")
	auth.Use(middleware.AuthMiddleware(), middleware.RequireActiveMember(), middleware.SanitizeAndCleanInputMiddleware())
	auth.GET("/me", users.GetCurrentUser)
	auth.POST("/change-password", authapi.ChangePassword)

	staff := auth.Group("/")
	staff.Use(middleware.RequireRole(roles.RoleAdmin, roles.RoleBilling))
	staff.GET("/billing-records", h.Billing.ListBillingRecords)
	staff.GET("/account-status", h.Accounts.GetAccountStatus)
	staff.GET("/pricing/catalog", h.Pricing.GetCatalog)
	staff.GET("/pricing/resolve", h.Pricing.ResolvePrice)
	staff.POST("/sessions/:id/transition", h.Sessions.Transition)
	staff.POST("/sessions/:id/archive", h.Sessions.Archive)
	staff.POST("/sessions/:id/unarchive", h.Sessions.Unarchive)

	auth.GET("/sessions", h.Sessions.ListSessions)
	auth.POST("/sessions", middleware.RequireRole(roles.RoleCoach, roles.RoleAdmin), h.Sessions.CreateSession)

	billing := auth.Group("/")
	billing.Use(middleware.RequireRole(roles.RoleBilling))
	billing.POST("/charge-session", h.Billing.ChargeSession)

	client := auth.Group("/")
	client.Use(middleware.RequireRole(roles.RoleClient))
	client.GET("/payments", h.Billing.GetPaymentHistory)
	client.POST("/payment-methods/setup", h.Billing.StartPaymentMethodSetup)

	// Admin routes
	admin := auth.Group("/")
	admin.Use(middleware.RequireRole(roles.RoleAdmin))
	admin.GET("/members", authapi.ListMembers)
	admin.POST("/members", authapi.AddMember)
	admin.GET("/sessions/review-queue", h.Sessions.ReviewQueue)
	admin.POST("/sessions/:id/clear-charge-lock", h.Sessions.ClearChargeLock)
	admin.POST("/update-account-readiness", h.Accounts.UpdateAccountReadiness)
	admin.POST("/accounts/refresh", h.Accounts.RefreshAccount)
	admin.GET("/connect/start", h.Accounts.ConnectStart)
	admin.GET("/admin/dashboard", adminapi.AdminDashboard)
	admin.GET("/admin/locked-sessions", adminapi.ListLockedSessions)
	admin.GET("/admin/members/:id", adminapi.GetMemberDetails)
}
