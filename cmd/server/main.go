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

	"github.com/walllidioooo/storepos/internal/auth"
	"github.com/walllidioooo/storepos/internal/backup"
	"github.com/walllidioooo/storepos/internal/borrowers"
	"github.com/walllidioooo/storepos/internal/catalog"
	"github.com/walllidioooo/storepos/internal/config"
	"github.com/walllidioooo/storepos/internal/database"
	"github.com/walllidioooo/storepos/internal/orders"
	"github.com/walllidioooo/storepos/internal/statistics"
	"github.com/walllidioooo/storepos/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// init configures the application logging based on environment settings
// In development mode, it enables pretty printing with timestamps
// Debug logging can be enabled via DEBUG environment variable
func init() {
	if os.Getenv("APP_ENV") != "production" {
		output := zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
		zlog.Logger = zerolog.New(output).With().Timestamp().Logger()
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("DEBUG") == "true" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

// main initializes and runs the store API server with graceful shutdown
// support. One embedded database handle is opened here and handed to every
// service.
func main() {
	// .env is optional; a missing file is not an error
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := database.NewDatabase(cfg.DatabasePath)
	if err != nil {
		zlog.Fatal().Err(err).Msg("Failed to initialize database")
	}

	router := gin.Default()

	// Initialize services and handlers
	authService := auth.NewService(cfg.JWTSecret)
	authHandlers := auth.NewGinHandlers(authService)
	authService.RegisterAPICredentials(cfg.APIKey, cfg.APISecret)

	catalogService := catalog.NewService(db)
	catalogHandlers := catalog.NewGinHandlers(catalogService)

	orderService := orders.NewService(db)
	orderHandlers := orders.NewGinHandlers(orderService)

	borrowerService := borrowers.NewService(db)
	borrowerHandlers := borrowers.NewGinHandlers(borrowerService)

	statisticsService := statistics.NewService(db)
	statisticsHandlers := statistics.NewGinHandlers(statisticsService)

	backupService := backup.NewService(db)
	backupHandlers := backup.NewGinHandlers(backupService)

	// Create and start periodic backup processor
	backupProcessor := backup.NewProcessor(backupService, cfg.BackupDir)
	processorCtx, processorCancel := context.WithCancel(context.Background())
	defer processorCancel()

	go backupProcessor.Start(processorCtx)

	// Setup middleware
	router.Use(middleware.RateLimit())

	// Setup API routes
	setupRoutes(router, cfg.JWTSecret, authHandlers, catalogHandlers, orderHandlers, borrowerHandlers, statisticsHandlers, backupHandlers)

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

// setupRoutes configures all API endpoints and their handlers.
// The token endpoint is public; every data route requires a JWT.
func setupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authHandlers *auth.GinHandlers,
	catalogHandlers *catalog.GinHandlers,
	orderHandlers *orders.GinHandlers,
	borrowerHandlers *borrowers.GinHandlers,
	statisticsHandlers *statistics.GinHandlers,
	backupHandlers *backup.GinHandlers,
) {
	v1 := router.Group("/api/v1")
	{
		// Auth routes
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/token", authHandlers.GenerateTokenHandler())
		}

		// Product catalog routes
		products := v1.Group("/products")
		products.Use(middleware.JWTAuth(jwtSecret))
		{
			products.POST("", catalogHandlers.CreateProductHandler())
			products.GET("", catalogHandlers.ListProductsHandler())
			products.GET("/:product_id", catalogHandlers.GetProductHandler())
			products.PUT("/:product_id", catalogHandlers.UpdateProductHandler())
			products.DELETE("/:product_id", catalogHandlers.DeleteProductHandler())
		}

		// Order ledger routes
		ordersGroup := v1.Group("/orders")
		ordersGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			ordersGroup.POST("", orderHandlers.PlaceOrderHandler())
			ordersGroup.GET("", orderHandlers.ListOrdersHandler())
			ordersGroup.GET("/statistics", orderHandlers.GetOrderStatisticsHandler())
			ordersGroup.GET("/:order_id/products", orderHandlers.GetOrderProductsHandler())
			ordersGroup.DELETE("/:order_id", orderHandlers.DeleteOrderHandler())
		}

		// Borrower ledger routes
		borrowersGroup := v1.Group("/borrowers")
		borrowersGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			borrowersGroup.POST("", borrowerHandlers.AddBorrowerHandler())
			borrowersGroup.GET("", borrowerHandlers.ListBorrowersHandler())
			borrowersGroup.POST("/:borrower_id/orders/:order_id", borrowerHandlers.LinkOrderHandler())
			borrowersGroup.GET("/:borrower_id/orders", borrowerHandlers.GetSnapshotOrdersHandler())
			borrowersGroup.PUT("/:borrower_id/amount", borrowerHandlers.UpdateAmountHandler())
			borrowersGroup.POST("/:borrower_id/recalculate", borrowerHandlers.RecalculateAmountHandler())
			borrowersGroup.DELETE("/:borrower_id", borrowerHandlers.DeleteBorrowerHandler())
		}

		// Reporting routes
		stats := v1.Group("/statistics")
		stats.Use(middleware.JWTAuth(jwtSecret))
		{
			stats.GET("/dashboard", statisticsHandlers.DashboardHandler())
			stats.GET("/sales", statisticsHandlers.SalesSeriesHandler())
			stats.GET("/top-products", statisticsHandlers.TopProductsHandler())
			stats.GET("/profit-margin", statisticsHandlers.ProfitMarginHandler())
			stats.GET("/products", statisticsHandlers.ProductStatisticsHandler())
		}

		// Backup routes
		backupGroup := v1.Group("/backup")
		backupGroup.Use(middleware.JWTAuth(jwtSecret))
		{
			backupGroup.GET("/export", backupHandlers.ExportHandler())
			backupGroup.POST("/import", backupHandlers.ImportHandler())
			backupGroup.GET("/last-import", backupHandlers.LastImportIDHandler())
		}
	}
}
