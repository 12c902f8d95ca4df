// Package main is the entry point for the mise background worker: the
// reservation expiry sweeper and the stock alert outbox relay.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"mise/internal/core/clock"
	"mise/internal/domain/catalogs/unitconv"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
	"mise/internal/domain/reservations"
	"mise/internal/infrastructure/storage/postgres"
	"mise/internal/infrastructure/storage/postgres/catalog_repo"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	log.Info("starting mise worker")

	pool, err := postgres.NewPool(ctx, postgres.DefaultPoolConfig(mustEnv("DATABASE_URL")))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	txManager := postgres.NewTxManager(pool)
	clk := clock.System{}

	stockRepo := register_repo.NewStockRepo(txManager)
	costRepo := register_repo.NewCostRepo(txManager)
	convRepo := catalog_repo.NewUnitConversionRepo(txManager)
	ingredientRepo := catalog_repo.NewIngredientRepo(txManager)
	reservationRepo := reservation_repo.NewReservationRepo(txManager)

	alertPublisher := postgres.NewStockAlertPublisher(txManager, clk)
	stockService := stock.NewService(stockRepo, alertPublisher, clk)
	costService := cost.NewService(costRepo, clk)
	convResolver := unitconv.NewResolver(convRepo)

	reservationService := reservations.NewService(
		reservationRepo, stockService, costService, convResolver,
		ingredientRepo, txManager, clk, nil,
	)

	sweeperCfg := reservations.DefaultSweeperConfig()
	if v := getEnvDuration("SWEEP_INTERVAL", 0); v > 0 {
		sweeperCfg.SweepInterval = v
	}
	if v := getEnvDuration("RESERVATION_RETENTION", 0); v > 0 {
		sweeperCfg.Retention = v
	}
	sweeper := reservations.NewSweeper(reservationService, clk, sweeperCfg, log)

	relay := postgres.NewOutboxRelay(pool.Unwrap(), 100, postgres.LogHandler{})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		sweeper.Run(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		runOutboxRelay(ctx, relay, log)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down worker...")
	cancel()

	wg.Wait()
	log.Info("worker stopped")
}

// runOutboxRelay polls the outbox until ctx is cancelled.
func runOutboxRelay(ctx context.Context, relay *postgres.OutboxRelay, log *logger.Logger) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	relayLog := log.WithComponent("outbox-relay")
	relayLog.Info("outbox relay started")

	for {
		select {
		case <-ctx.Done():
			relayLog.Info("outbox relay stopped")
			return
		case <-ticker.C:
			n, err := relay.ProcessBatch(ctx)
			if err != nil {
				relayLog.Errorw("outbox batch failed", "error", err)
				continue
			}
			if n > 0 {
				relayLog.Debugw("delivered outbox batch", "count", n)
			}
		}
	}
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
