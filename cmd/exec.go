package cmd

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"checkout-system/config"
	"checkout-system/handlers"
	"checkout-system/internal/providers/authapi"
	"checkout-system/internal/providers/commerce"
	"checkout-system/internal/providers/yespay"
	"checkout-system/internal/status"
	_ "checkout-system/migrations"
	"checkout-system/security"
	"checkout-system/services"
	"checkout-system/utils"

	"github.com/labstack/echo/v5"
	"github.com/pocketbase/pocketbase"
	"github.com/pocketbase/pocketbase/core"
	"github.com/pocketbase/pocketbase/plugins/migratecmd"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	pubnub "github.com/pubnub/go"
)

func Start() error {
	app := pocketbase.New()

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize Redis
	redisClient := utils.NewRedisClient(cfg.RedisURL)
	defer redisClient.Close()

	// Initialize PubNub
	pnConfig := pubnub.NewConfig()
	pnConfig.PublishKey = cfg.PubNubPublishKey
	pnConfig.SubscribeKey = cfg.PubNubSubscribeKey
	pnConfig.SecretKey = cfg.PubNubSecretKey

	pn := pubnub.NewPubNub(pnConfig)
	notifier := services.NewPubNubNotifier(pn)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	yespayProvider, err := yespay.New(ctx, &cfg.YesPay)
	if err != nil {
		return err
	}
	defer func() {
		if err := yespayProvider.Close(context.Background()); err != nil {
			slog.Error("closing payment provider", "error", err)
		}
	}()

	// Initialize services
	snapshots := services.NewSnapshotStore(redisClient, cfg.SnapshotTTL)
	manager := services.NewManager(services.EngineDeps{
		Auth:     authapi.New(cfg.AuthBaseURL, cfg.AuthDeviceKey),
		Pricing:  commerce.New(cfg.CommerceBaseURL, cfg.CommerceAPIKey),
		Promo:    commerce.New(cfg.CommerceBaseURL, cfg.CommerceAPIKey),
		Payment:  yespayProvider,
		Notifier: notifier,

		CheckoutTimeout: cfg.CheckoutTimeout,
	}, snapshots)

	// Route provider-side payment notifications to the owning session
	txChannel := make(chan *status.Transaction, 1)
	yespayProvider.SetTransactionChannel(txChannel)
	go manager.DispatchTransactions(ctx, txChannel)

	// Initialize handlers
	limiter := security.NewRateLimiter(redisClient)
	eventHandler := handlers.NewEventHandler(app)
	checkoutHandler := handlers.NewCheckoutHandler(app, manager, limiter,
		cfg.PromoRateLimit, cfg.CheckoutRateLimit, cfg.RateLimitWindow)

	// Enable migrations
	migratecmd.MustRegister(app, app.RootCmd, migratecmd.Config{
		Automigrate: true,
	})

	// Ops server (metrics + session dashboard)
	if cfg.EnableMetrics {
		go startOpsServer(cfg, manager, limiter)
	}

	// Setup graceful shutdown
	go handleShutdown(cancel)

	app.OnServe().BindFunc(func(e *core.ServeEvent) error {
		// Event endpoints
		e.Router.GET("/api/v1/events", eventHandler.GetEvents)
		e.Router.GET("/api/v1/events/{eventId}", eventHandler.GetEvent)

		// Checkout endpoints
		e.Router.POST("/api/v1/events/{eventId}/checkout/session", checkoutHandler.OpenSession)
		e.Router.GET("/api/v1/events/{eventId}/checkout/state", checkoutHandler.GetState)
		e.Router.POST("/api/v1/events/{eventId}/checkout/commands", checkoutHandler.ApplyCommand)
		e.Router.POST("/api/v1/events/{eventId}/checkout/cancel-payment-ui", checkoutHandler.CancelPaymentUI)
		e.Router.DELETE("/api/v1/events/{eventId}/checkout/session", checkoutHandler.CloseSession)

		// Health check
		e.Router.GET("/health", func(e *core.RequestEvent) error {
			if err := utils.RedisHealthCheck(redisClient); err != nil {
				return e.JSON(503, map[string]string{
					"status": "unhealthy",
					"error":  err.Error(),
				})
			}
			return e.JSON(200, map[string]string{"status": "healthy"})
		})

		log.Println("Server routes registered")

		return e.Next()
	})

	// Start server
	if err := app.Start(); err != nil {
		log.Fatal(err)
	}
	return nil
}

// startOpsServer exposes Prometheus metrics and a read-only session dashboard
// on a separate port.
func startOpsServer(cfg *config.Config, manager *services.Manager, limiter *security.RateLimiter) {
	e := echo.New()
	e.Use(limiter.AntiBotMiddleware())
	e.Use(limiter.OpsRateLimit(60, cfg.RateLimitWindow))

	metrics := promhttp.Handler()
	e.GET("/metrics", func(c echo.Context) error {
		metrics.ServeHTTP(c.Response(), c.Request())
		return nil
	})
	e.GET("/sessions", func(c echo.Context) error {
		return c.JSON(http.StatusOK, manager.States())
	})

	slog.Info("ops server listening", "port", cfg.MetricsPort)
	if err := http.ListenAndServe(":"+cfg.MetricsPort, e); err != nil {
		slog.Error("ops server stopped", "error", err)
	}
}

// handleShutdown handles graceful shutdown
func handleShutdown(cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	log.Println("Shutdown signal received, cleaning up...")
	cancel()
}
