// Package main is the entry point for the mise inventory API server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mise/internal/core/clock"
	"mise/internal/domain/catalogs/unitconv"
	"mise/internal/domain/documents/goods_receipt"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
	"mise/internal/domain/reservations"
	v1 "mise/internal/infrastructure/http/v1"
	"mise/internal/infrastructure/storage/postgres"
	"mise/internal/infrastructure/storage/postgres/catalog_repo"
	"mise/internal/infrastructure/storage/postgres/document_repo"
	"mise/internal/infrastructure/storage/postgres/register_repo"
	"mise/internal/infrastructure/storage/postgres/reservation_repo"
	"mise/pkg/logger"
)

func main() {
	_ = godotenv.Load()

	log, err := logger.New(logger.Config{
		Level:       getEnv("LOG_LEVEL", "info"),
		Development: getEnv("APP_ENV", "development") == "development",
	})
	if err != nil {
		fmt.Printf("failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	log.Info("starting mise inventory server")

	// --- Database ---
	poolCfg := postgres.DefaultPoolConfig(mustEnv("DATABASE_URL"))
	if lockTimeout := getEnvDuration("DB_LOCK_TIMEOUT", 0); lockTimeout > 0 {
		poolCfg.LockTimeout = lockTimeout
	}

	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	clk := clock.System{}

	// --- Repositories ---
	stockRepo := register_repo.NewStockRepo(txManager)
	costRepo := register_repo.NewCostRepo(txManager)
	convRepo := catalog_repo.NewUnitConversionRepo(txManager)
	ingredientRepo := catalog_repo.NewIngredientRepo(txManager)
	reservationRepo := reservation_repo.NewReservationRepo(txManager)
	receiptRepo := document_repo.NewGoodsReceiptRepo(txManager)
	poRepo := document_repo.NewPurchaseOrderRepo(txManager)

	// --- Services ---
	auditService, err := postgres.NewAuditService(txManager)
	if err != nil {
		log.Fatalw("failed to initialize audit service", "error", err)
	}

	alertPublisher := postgres.NewStockAlertPublisher(txManager, clk)

	stockService := stock.NewService(stockRepo, alertPublisher, clk)
	costService := cost.NewService(costRepo, clk)
	convResolver := unitconv.NewResolver(convRepo)

	reservationService := reservations.NewService(
		reservationRepo, stockService, costService, convResolver,
		ingredientRepo, txManager, clk, auditService,
	)

	receiptService := goods_receipt.NewService(
		receiptRepo, poRepo, convResolver, stockService, costService,
		txManager, clk, auditService,
	)

	// --- Router ---
	router := v1.NewRouter(v1.RouterConfig{
		Pool:               pool.Unwrap(),
		Logger:             log,
		TxManager:          txManager,
		StockService:       stockService,
		CostService:        costService,
		ReservationService: reservationService,
		ReceiptService:     receiptService,
	})

	// --- HTTP Server ---
	port := getEnv("APP_PORT", "8080")
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infow("server starting", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("server failed", "error", err)
		}
	}()

	// --- Graceful shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalw("server forced to shutdown", "error", err)
	}

	log.Info("server stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func mustEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		fmt.Printf("required environment variable %s not set\n", key)
		os.Exit(1)
	}
	return value
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
