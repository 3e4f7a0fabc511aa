package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"coaching-billing/config"
	"coaching-billing/database"
	accountsapi "coaching-billing/internal/api/accounts"
	billingapi "coaching-billing/internal/api/billing"
	pricingapi "coaching-billing/internal/api/pricing"
	sessionsapi "coaching-billing/internal/api/sessions"
	stripewebhooks "coaching-billing/internal/api/stripewebhook"
	routes "coaching-billing/internal/app/http"
	"coaching-billing/internal/app/http/middleware"
	"coaching-billing/internal/domain/env"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API (default)",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func runServer() {
	db := database.InitDB(config.DB_URL)
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to migrate database")
	}
	svc := newServices(db)
	for _, e := range env.All() {
		log.Info().Str("env", e.String()).Bool("configured", svc.stripe.Configured(e)).Msg("Stripe environment")
	}

	if config.LOG_LEVEL != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{config.CORS_ORIGIN},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	routes.RegisterRoutes(r, routes.Handlers{
		Webhook: stripewebhooks.NewHandler(map[env.Environment]string{
			env.Test: config.STRIPE_TEST_WEBHOOK_SECRET,
			env.Live: config.STRIPE_LIVE_WEBHOOK_SECRET,
		}, svc.reconcile, svc.profiles),
		Sessions: sessionsapi.NewHandler(svc.lifecycle, svc.charges),
		Billing:  billingapi.NewHandler(db, svc.charges, svc.profiles),
		Accounts: accountsapi.NewHandler(svc.registry, svc.reconcile, svc.connect, config.JWT_SECRET, config.APP_URL),
		Pricing:  pricingapi.NewHandler(svc.registry, svc.pricing),
	})

	srv := &http.Server{
		Addr:              ":" + config.PORT,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Shutting down server...")

	// In-flight charges get the full write-back window.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}
}
