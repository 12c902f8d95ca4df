package dto

import (
	"time"

	"mise/internal/core/types"
	"mise/internal/domain/documents/goods_receipt"
	"mise/internal/domain/registers/stock"
	"mise/internal/domain/reservations"
)

// --- Stock Register ---

// StockResponse represents one stock row in API responses.
type StockResponse struct {
	BranchID     string         `json:"branchId"`
	IngredientID string         `json:"ingredientId"`
	Quantity     types.Quantity `json:"quantity"`
	Reserved     types.Quantity `json:"reservedQuantity"`
	Available    types.Quantity `json:"availableQuantity"`
	Threshold    types.Quantity `json:"threshold"`
	Unit         string         `json:"unit"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FromStock converts entity to response DTO.
func FromStock(s stock.Stock) StockResponse {
	return StockResponse{
		BranchID:     s.BranchID.String(),
		IngredientID: s.IngredientID.String(),
		Quantity:     s.Quantity,
		Reserved:     s.ReservedQuantity,
		Available:    s.Available(),
		Threshold:    s.Threshold,
		Unit:         s.Unit,
		UpdatedAt:    s.UpdatedAt,
	}
}

// AvailabilityResponse carries the reservable quantity for one pair.
type AvailabilityResponse struct {
	BranchID     string         `json:"branchId"`
	IngredientID string         `json:"ingredientId"`
	Available    types.Quantity `json:"availableQuantity"`
}

// StockListResponse wraps stock rows.
type StockListResponse struct {
	Items []StockResponse `json:"items"`
}

// TransactionResponse represents one ledger row.
type TransactionResponse struct {
	ID               string         `json:"id"`
	BranchID         string         `json:"branchId"`
	IngredientID     string         `json:"ingredientId"`
	TxnType          string         `json:"txnType"`
	QtyIn            types.Quantity `json:"qtyIn"`
	QtyOut           types.Quantity `json:"qtyOut"`
	BeforeQty        types.Quantity `json:"beforeQty"`
	AfterQty         types.Quantity `json:"afterQty"`
	UnitPrice        string         `json:"unitPrice"`
	LineTotal        string         `json:"lineTotal"`
	RefType          string         `json:"refType"`
	RefID            string         `json:"refId"`
	ConversionFactor string         `json:"conversionFactor"`
	CreatedAt        time.Time      `json:"createdAt"`
}

// FromTransaction converts entity to response DTO.
func FromTransaction(t stock.InventoryTransaction) TransactionResponse {
	return TransactionResponse{
		ID:               t.ID.String(),
		BranchID:         t.BranchID.String(),
		IngredientID:     t.IngredientID.String(),
		TxnType:          string(t.TxnType),
		QtyIn:            t.QtyIn,
		QtyOut:           t.QtyOut,
		BeforeQty:        t.BeforeQty,
		AfterQty:         t.AfterQty,
		UnitPrice:        t.UnitPrice.String(),
		LineTotal:        t.LineTotal.String(),
		RefType:          t.RefType,
		RefID:            t.RefID.String(),
		ConversionFactor: t.ConversionFactor.String(),
		CreatedAt:        t.CreatedAt,
	}
}

// TransactionListResponse wraps ledger rows.
type TransactionListResponse struct {
	Items      []TransactionResponse `json:"items"`
	TotalCount int                   `json:"totalCount"`
}

// AdjustmentRequest applies a manual stock correction (count result, spoilage
// write-off). refType/refId point at the document held by the collaborator.
type AdjustmentRequest struct {
	BranchID     string         `json:"branchId" binding:"required"`
	IngredientID string         `json:"ingredientId" binding:"required"`
	Direction    string         `json:"direction" binding:"required,oneof=IN OUT"`
	Quantity     types.Quantity `json:"quantity" binding:"required"`
	Unit         string         `json:"unit" binding:"required"`
	UnitPrice    string         `json:"unitPrice"`
	RefType      string         `json:"refType" binding:"required"`
	RefID        string         `json:"refId" binding:"required"`
}

// --- Reservations ---

// ReserveRequest places or refreshes one hold.
type ReserveRequest struct {
	GroupID      string         `json:"reservationGroupId" binding:"required"`
	BranchID     string         `json:"branchId" binding:"required"`
	IngredientID string         `json:"ingredientId" binding:"required"`
	Quantity     types.Quantity `json:"quantity" binding:"required"`
	Unit         string         `json:"unit" binding:"required"`
	TTLSeconds   int            `json:"ttlSeconds" binding:"required,min=1"`

	OrderID *string `json:"orderId"`
	CartID  *string `json:"cartId"`
	GuestID *string `json:"guestId"`
}

// ReservationResponse represents one hold.
type ReservationResponse struct {
	ID           string         `json:"id"`
	GroupID      string         `json:"reservationGroupId"`
	BranchID     string         `json:"branchId"`
	IngredientID string         `json:"ingredientId"`
	Quantity     types.Quantity `json:"quantityReserved"`
	Unit         string         `json:"unit"`
	ExpiresAt    time.Time      `json:"expiresAt"`
	Status       string         `json:"status"`
	CreatedAt    time.Time      `json:"createdAt"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// FromReservation converts entity to response DTO.
func FromReservation(r reservations.StockReservation) ReservationResponse {
	return ReservationResponse{
		ID:           r.ID.String(),
		GroupID:      r.GroupID,
		BranchID:     r.BranchID.String(),
		IngredientID: r.IngredientID.String(),
		Quantity:     r.QuantityReserved,
		Unit:         r.Unit,
		ExpiresAt:    r.ExpiresAt,
		Status:       string(r.Status),
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// --- Goods Receipts ---

// ReceiveLineRequest is one incoming delivery line.
type ReceiveLineRequest struct {
	POLineID   string         `json:"poLineId" binding:"required"`
	QtyInput   types.Quantity `json:"qtyInput"`
	Status     string         `json:"status" binding:"required"`
	DamageQty  types.Quantity `json:"damageQty"`
	LotNumber  string         `json:"lotNumber"`
	ExpiryDate *time.Time     `json:"expiryDate"`
}

// ReceiveRequest describes one physical delivery event.
type ReceiveRequest struct {
	POID       string               `json:"poId" binding:"required"`
	SupplierID string               `json:"supplierId" binding:"required"`
	BranchID   string               `json:"branchId" binding:"required"`
	Lines      []ReceiveLineRequest `json:"lines" binding:"required,min=1"`
}

// ReceiptDetailResponse represents one receipt line.
type ReceiptDetailResponse struct {
	ID           string         `json:"id"`
	POLineID     string         `json:"poLineId"`
	IngredientID string         `json:"ingredientId"`
	QtyInput     types.Quantity `json:"qtyInput"`
	QtyAccepted  types.Quantity `json:"qtyAccepted"`
	QtyBase      types.Quantity `json:"qtyBase"`
	Unit         string         `json:"unit"`
	UnitPrice    string         `json:"unitPrice"`
	Status       string         `json:"status"`
	DamageQty    types.Quantity `json:"damageQty"`
	LotNumber    string         `json:"lotNumber,omitempty"`
	ExpiryDate   *time.Time     `json:"expiryDate,omitempty"`
}

// ReceiptResponse represents one receipt document.
type ReceiptResponse struct {
	ID         string                  `json:"id"`
	POID       string                  `json:"poId"`
	SupplierID string                  `json:"supplierId"`
	BranchID   string                  `json:"branchId"`
	CreatedAt  time.Time               `json:"createdAt"`
	Details    []ReceiptDetailResponse `json:"details"`
}

// FromReceipt converts entity to response DTO.
func FromReceipt(doc *goods_receipt.GoodsReceipt) ReceiptResponse {
	resp := ReceiptResponse{
		ID:         doc.ID.String(),
		POID:       doc.POID.String(),
		SupplierID: doc.SupplierID.String(),
		BranchID:   doc.BranchID.String(),
		CreatedAt:  doc.CreatedAt,
		Details:    make([]ReceiptDetailResponse, len(doc.Details)),
	}
	for i, d := range doc.Details {
		resp.Details[i] = ReceiptDetailResponse{
			ID:           d.ID.String(),
			POLineID:     d.POLineID.String(),
			IngredientID: d.IngredientID.String(),
			QtyInput:     d.QtyInput,
			QtyAccepted:  d.QtyAccepted,
			QtyBase:      d.QtyBase,
			Unit:         d.Unit,
			UnitPrice:    d.UnitPrice.String(),
			Status:       string(d.Status),
			DamageQty:    d.DamageQty,
			LotNumber:    d.LotNumber,
			ExpiryDate:   d.ExpiryDate,
		}
	}
	return resp
}
