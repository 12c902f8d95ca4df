package handlers

import (
	"github.com/gin-gonic/gin"

	"mise/internal/domain/documents/goods_receipt"
	"mise/internal/infrastructure/http/v1/dto"
)

// GoodsReceiptHandler handles HTTP requests for goods receipts.
type GoodsReceiptHandler struct {
	*BaseHandler
	service *goods_receipt.Service
}

// NewGoodsReceiptHandler creates a new goods receipt handler.
func NewGoodsReceiptHandler(base *BaseHandler, service *goods_receipt.Service) *GoodsReceiptHandler {
	return &GoodsReceiptHandler{
		BaseHandler: base,
		service:     service,
	}
}

// Receive handles POST /goods-receipts
func (h *GoodsReceiptHandler) Receive(c *gin.Context) {
	var req dto.ReceiveRequest
	if !h.BindJSON(c, &req) {
		return
	}

	poID, ok := h.ParseID(c, "poId", req.POID)
	if !ok {
		return
	}
	supplierID, ok := h.ParseID(c, "supplierId", req.SupplierID)
	if !ok {
		return
	}
	branchID, ok := h.ParseID(c, "branchId", req.BranchID)
	if !ok {
		return
	}

	lines := make([]goods_receipt.ReceiveLine, len(req.Lines))
	for i, line := range req.Lines {
		poLineID, ok := h.ParseID(c, "poLineId", line.POLineID)
		if !ok {
			return
		}
		lines[i] = goods_receipt.ReceiveLine{
			POLineID:   poLineID,
			QtyInput:   line.QtyInput,
			Status:     goods_receipt.LineStatus(line.Status),
			DamageQty:  line.DamageQty,
			LotNumber:  line.LotNumber,
			ExpiryDate: line.ExpiryDate,
		}
	}

	receiptID, err := h.service.Receive(c.Request.Context(), goods_receipt.ReceiveRequest{
		POID:       poID,
		SupplierID: supplierID,
		BranchID:   branchID,
		Lines:      lines,
	})
	if err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, receiptID)
}

// GetByID handles GET /goods-receipts/:receiptId
func (h *GoodsReceiptHandler) GetByID(c *gin.Context) {
	receiptID, ok := h.ParseID(c, "receiptId", c.Param("receiptId"))
	if !ok {
		return
	}

	doc, err := h.service.GetByID(c.Request.Context(), receiptID)
	if err != nil {
		h.Error(c, err)
		return
	}

	h.OK(c, dto.FromReceipt(doc))
}

// RegisterRoutes registers goods receipt routes.
func (h *GoodsReceiptHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Receive)
	rg.GET("/:receiptId", h.GetByID)
}
