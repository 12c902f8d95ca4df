package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"mise/internal/core/apperror"
	"mise/internal/core/tx"
	"mise/internal/core/types"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
	"mise/internal/infrastructure/http/v1/dto"
)

// StockHandler handles HTTP requests for the stock register.
type StockHandler struct {
	*BaseHandler
	service *stock.Service
	costs   *cost.Service
	txm     tx.Manager
}

// NewStockHandler creates a new stock register handler.
func NewStockHandler(base *BaseHandler, service *stock.Service, costs *cost.Service, txm tx.Manager) *StockHandler {
	return &StockHandler{
		BaseHandler: base,
		service:     service,
		costs:       costs,
		txm:         txm,
	}
}

// GetStock handles GET /inventory/stock/:branchId/:ingredientId
func (h *StockHandler) GetStock(c *gin.Context) {
	ctx := c.Request.Context()

	branchID, ok := h.ParseID(c, "branchId", c.Param("branchId"))
	if !ok {
		return
	}
	ingredientID, ok := h.ParseID(c, "ingredientId", c.Param("ingredientId"))
	if !ok {
		return
	}

	row, err := h.service.GetStock(ctx, branchID, ingredientID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromStock(row))
}

// ListStock handles GET /inventory/stock/:branchId
func (h *StockHandler) ListStock(c *gin.Context) {
	ctx := c.Request.Context()

	branchID, ok := h.ParseID(c, "branchId", c.Param("branchId"))
	if !ok {
		return
	}

	rows, err := h.service.ListStock(ctx, branchID)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.StockResponse, len(rows))
	for i, r := range rows {
		items[i] = dto.FromStock(r)
	}

	h.OK(c, dto.StockListResponse{Items: items})
}

// GetAvailable handles GET /inventory/stock/:branchId/:ingredientId/available
func (h *StockHandler) GetAvailable(c *gin.Context) {
	ctx := c.Request.Context()

	branchID, ok := h.ParseID(c, "branchId", c.Param("branchId"))
	if !ok {
		return
	}
	ingredientID, ok := h.ParseID(c, "ingredientId", c.Param("ingredientId"))
	if !ok {
		return
	}

	available, err := h.service.GetAvailable(ctx, branchID, ingredientID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.AvailabilityResponse{
		BranchID:     branchID.String(),
		IngredientID: ingredientID.String(),
		Available:    available,
	})
}

// GetHistory handles GET /inventory/transactions
func (h *StockHandler) GetHistory(c *gin.Context) {
	ctx := c.Request.Context()

	branchID, ok := h.ParseID(c, "branchId", c.Query("branchId"))
	if !ok {
		return
	}
	ingredientID, ok := h.ParseID(c, "ingredientId", c.Query("ingredientId"))
	if !ok {
		return
	}

	filter := stock.TxnFilter{
		Limit:  h.ParseIntQuery(c, "limit", 100),
		Offset: h.ParseIntQuery(c, "offset", 0),
	}

	if t := c.Query("txnType"); t != "" {
		txnType := stock.TxnType(t)
		if !txnType.Valid() {
			h.Error(c, apperror.NewValidation("unknown txnType"))
			return
		}
		filter.TxnType = &txnType
	}
	if fromStr := c.Query("fromDate"); fromStr != "" {
		if parsed, err := time.Parse(time.RFC3339, fromStr); err == nil {
			filter.FromDate = &parsed
		}
	}
	if toStr := c.Query("toDate"); toStr != "" {
		if parsed, err := time.Parse(time.RFC3339, toStr); err == nil {
			filter.ToDate = &parsed
		}
	}

	txns, err := h.service.GetHistory(ctx, branchID, ingredientID, filter)
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.TransactionResponse, len(txns))
	for i, t := range txns {
		items[i] = dto.FromTransaction(t)
	}

	h.OK(c, dto.TransactionListResponse{Items: items, TotalCount: len(items)})
}

// Adjust handles POST /inventory/adjustments
func (h *StockHandler) Adjust(c *gin.Context) {
	var req dto.AdjustmentRequest
	if !h.BindJSON(c, &req) {
		return
	}

	branchID, ok := h.ParseID(c, "branchId", req.BranchID)
	if !ok {
		return
	}
	ingredientID, ok := h.ParseID(c, "ingredientId", req.IngredientID)
	if !ok {
		return
	}
	refID, ok := h.ParseID(c, "refId", req.RefID)
	if !ok {
		return
	}

	txnType := stock.TxnAdjustIn
	if req.Direction == "OUT" {
		txnType = stock.TxnAdjustOut
	}

	unitPrice := types.ZeroMoney()
	if req.UnitPrice != "" {
		parsed, err := types.NewMoneyFromString(req.UnitPrice)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid unitPrice"))
			return
		}
		unitPrice = parsed
	}

	var txn stock.InventoryTransaction
	err := h.txm.RunInTransaction(c.Request.Context(), func(ctx context.Context) error {
		// Outbound adjustments are valued at the current average cost so the
		// ledger line total reflects what left the books.
		if txnType == stock.TxnAdjustOut && unitPrice.IsZero() {
			avg, err := h.costs.Get(ctx, branchID, ingredientID)
			if err != nil {
				return err
			}
			unitPrice = avg
		}

		var err error
		txn, err = h.service.ApplyMovement(ctx, stock.Movement{
			BranchID:         branchID,
			IngredientID:     ingredientID,
			TxnType:          txnType,
			Quantity:         req.Quantity,
			Unit:             req.Unit,
			UnitPrice:        unitPrice,
			Ref:              stock.DocRef{Type: req.RefType, ID: refID},
			ConversionFactor: decimal.NewFromInt(1),
		})
		return err
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromTransaction(txn))
}

// CheckConsistency handles GET /inventory/consistency
func (h *StockHandler) CheckConsistency(c *gin.Context) {
	ctx := c.Request.Context()

	branchID, ok := h.ParseID(c, "branchId", c.Query("branchId"))
	if !ok {
		return
	}
	ingredientID, ok := h.ParseID(c, "ingredientId", c.Query("ingredientId"))
	if !ok {
		return
	}

	if err := h.service.CheckLedgerConsistency(ctx, branchID, ingredientID); err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.SuccessResponse{Success: true, Message: "ledger matches stock"})
}

// RegisterRoutes registers stock register routes.
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/stock/:branchId", h.ListStock)
	rg.GET("/stock/:branchId/:ingredientId", h.GetStock)
	rg.GET("/stock/:branchId/:ingredientId/available", h.GetAvailable)
	rg.GET("/transactions", h.GetHistory)
	rg.POST("/adjustments", h.Adjust)
	rg.GET("/consistency", h.CheckConsistency)
}
