package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/hiiliketocode/polycopy-sub003/internal/auth"
	"github.com/hiiliketocode/polycopy-sub003/internal/backfill"
	"github.com/hiiliketocode/polycopy-sub003/internal/clob"
	"github.com/hiiliketocode/polycopy-sub003/internal/config"
	"github.com/hiiliketocode/polycopy-sub003/internal/custody"
	"github.com/hiiliketocode/polycopy-sub003/internal/database"
	"github.com/hiiliketocode/polycopy-sub003/internal/orders"
	"github.com/hiiliketocode/polycopy-sub003/internal/traders"
	"github.com/hiiliketocode/polycopy-sub003/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// main initializes and runs the copy-trading order API with graceful
// shutdown support. All dependencies are constructed here and passed down
// explicitly; no package reaches for globals.
func main() {
	// Optional .env for local development; real deployments set the
	// environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to load configuration")
	}

	configureLogging(cfg)

	// Initialize database
	db, err := database.NewDatabase(cfg.DBPath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	if cfg.Env != "production" {
		authService.RegisterAPICredentials(auth.DevAPIKey, auth.DevAPISecret)
	}

	exchangeClient := clob.NewClient(cfg.ClobBaseURL, cfg.ProxyURL, cfg.SubmitTimeout)
	custodyClient := custody.NewClient(cfg.CustodyBaseURL, cfg.CustodyAPIKey, cfg.SubmitTimeout)

	queue := backfill.NewQueue(db)
	tradersService := traders.NewService(db, exchangeClient, queue)
	tradersService.SetRefreshCoalesceWindow(cfg.RefreshCoalesceWindow)
	tradersHandlers := traders.NewGinHandlers(tradersService)

	submitter := orders.NewSubmitter(exchangeClient, custodyClient, cfg.SubmitTimeout)
	ordersService := orders.NewService(db, submitter, exchangeClient, tradersService, orders.Config{
		IdempotencyFailOpen: cfg.IdempotencyFailOpen,
		DefaultTickSize:     cfg.DefaultTickSize,
	})
	ordersHandlers := orders.NewGinHandlers(ordersService)

	// Create and start the backfill processor
	processor := backfill.NewProcessor(queue, tradersService, cfg.BackfillInterval)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go processor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg, authHandlers, ordersHandlers, tradersHandlers, processor)

	// Create server
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Graceful shutdown setup
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zlog.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zlog.Info().Msg("Shutting down server...")

	// Give outstanding operations 5 seconds to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zlog.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	zlog.Info().Msg("Server exiting")
}

// configureLogging sets up zerolog based on environment settings.
// Development gets pretty printing; DEBUG enables debug-level logs.
func configureLogging(cfg *config.Config) {
	if cfg.Env != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// setupRoutes configures all API endpoints and their handlers
// It groups routes by functionality and applies appropriate middleware:
// - Auth routes: Public endpoints for authentication
// - Order routes: Protected by JWT authentication
// - Copied-order routes: Protected by JWT authentication
// - Internal routes: Protected by internal network authentication
func setupRoutes(
	router *gin.Engine,
	cfg *config.Config,
	authHandlers *auth.GinHandlers,
	ordersHandlers *orders.GinHandlers,
	tradersHandlers *traders.GinHandlers,
	processor *backfill.Processor,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Order routes
		orderGroup := v1.Group("/orders")
		orderGroup.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			orderGroup.POST("", ordersHandlers.PlaceOrderHandler())
			orderGroup.GET("/:intent_id", ordersHandlers.GetOrderIntentHandler())
		}

		// Copied-order routes
		copiedGroup := v1.Group("/copied-orders")
		copiedGroup.Use(middleware.JWTAuth(cfg.JWTSecret))
		{
			copiedGroup.GET("", tradersHandlers.ListCopiedOrdersHandler())
			copiedGroup.POST("/refresh", tradersHandlers.RefreshCopiedOrdersHandler())
		}

		// Internal routes (should be protected by internal network)
		internal := v1.Group("/internal")
		internal.Use(middleware.InternalAuth(cfg.JWTSecret))
		{
			internal.POST("/backfill/drain", func(c *gin.Context) {
				if err := processor.DrainOnce(); err != nil {
					c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
					return
				}
				c.JSON(http.StatusOK, gin.H{"success": true})
			})
		}
	}
}
