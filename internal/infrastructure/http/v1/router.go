// Package v1 provides HTTP API version 1.
package v1

import (
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"mise/internal/core/tx"
	"mise/internal/domain/documents/goods_receipt"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
	"mise/internal/domain/reservations"
	"mise/internal/infrastructure/http/v1/handlers"
	"mise/internal/infrastructure/http/v1/middleware"
	"mise/pkg/logger"
)

// RouterConfig holds the collaborators the HTTP surface exposes.
type RouterConfig struct {
	Pool *pgxpool.Pool

	Logger *logger.Logger

	TxManager tx.Manager

	StockService       *stock.Service
	CostService        *cost.Service
	ReservationService *reservations.Service
	ReceiptService     *goods_receipt.Service
}

// NewRouter creates and configures the Gin router.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware (order matters!)
	router.Use(middleware.Recovery())
	router.Use(middleware.Trace())
	router.Use(middleware.Logger(cfg.Logger))
	router.Use(middleware.ErrorHandler())

	base := handlers.NewBaseHandler()

	healthHandler := handlers.NewHealthHandler(cfg.Pool)
	healthHandler.RegisterRoutes(router.Group("/health"))

	api := router.Group("/api/v1")
	{
		stockHandler := handlers.NewStockHandler(base, cfg.StockService, cfg.CostService, cfg.TxManager)
		stockHandler.RegisterRoutes(api.Group("/inventory"))

		reservationHandler := handlers.NewReservationHandler(base, cfg.ReservationService)
		reservationHandler.RegisterRoutes(api.Group("/reservations"))

		receiptHandler := handlers.NewGoodsReceiptHandler(base, cfg.ReceiptService)
		receiptHandler.RegisterRoutes(api.Group("/goods-receipts"))
	}

	return router
}
