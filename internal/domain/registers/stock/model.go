// Package stock provides the per-branch stock register: on-hand and reserved
// quantities plus the append-only inventory transaction ledger.
package stock

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Stock is one row per (branch, ingredient). Quantity is on-hand;
// ReservedQuantity is the sum of active holds. Available quantity is always
// derived, never stored.
type Stock struct {
	BranchID         id.ID          `db:"branch_id" json:"branchId"`
	IngredientID     id.ID          `db:"ingredient_id" json:"ingredientId"`
	Quantity         types.Quantity `db:"quantity" json:"quantity"`
	ReservedQuantity types.Quantity `db:"reserved_quantity" json:"reservedQuantity"`
	Threshold        types.Quantity `db:"threshold" json:"threshold"`
	Unit             string         `db:"unit" json:"unit"`
	UpdatedAt        time.Time      `db:"updated_at" json:"updatedAt"`
}

// Available returns the unreserved on-hand quantity.
func (s Stock) Available() types.Quantity {
	return s.Quantity - s.ReservedQuantity
}

// TxnType classifies a physical stock movement.
type TxnType string

const (
	TxnReceipt          TxnType = "RECEIPT"
	TxnIssue            TxnType = "ISSUE"
	TxnAdjustIn         TxnType = "ADJUST_IN"
	TxnAdjustOut        TxnType = "ADJUST_OUT"
	TxnReturnToSupplier TxnType = "RETURN_TO_SUPPLIER"
)

// IsInbound reports whether the type increases on-hand quantity.
func (t TxnType) IsInbound() bool {
	return t == TxnReceipt || t == TxnAdjustIn
}

// ChecksNegative reports whether the type must be rejected when it would
// drive on-hand quantity below zero. RECEIPT/ADJUST_IN never decrement;
// RETURN_TO_SUPPLIER only moves goods that never entered or are on hand by
// construction of the receipt flow.
func (t TxnType) ChecksNegative() bool {
	return t == TxnIssue || t == TxnAdjustOut
}

// Valid reports whether t is a known movement type.
func (t TxnType) Valid() bool {
	switch t {
	case TxnReceipt, TxnIssue, TxnAdjustIn, TxnAdjustOut, TxnReturnToSupplier:
		return true
	}
	return false
}

// DocRef points at the document that caused a movement.
type DocRef struct {
	Type string `db:"ref_type" json:"refType"`
	ID   id.ID  `db:"ref_id" json:"refId"`
}

// InventoryTransaction is one immutable ledger row per physical movement.
// Rows are appended exactly once and never mutated or deleted; they are the
// audit trail and the only way to reconstruct quantity history.
type InventoryTransaction struct {
	ID           id.ID   `db:"id" json:"id"`
	BranchID     id.ID   `db:"branch_id" json:"branchId"`
	IngredientID id.ID   `db:"ingredient_id" json:"ingredientId"`
	TxnType      TxnType `db:"txn_type" json:"txnType"`

	// QtyIn and QtyOut are mutually exclusive by convention.
	QtyIn  types.Quantity `db:"qty_in" json:"qtyIn"`
	QtyOut types.Quantity `db:"qty_out" json:"qtyOut"`

	// Snapshot of Stock.Quantity around this movement.
	BeforeQty types.Quantity `db:"before_qty" json:"beforeQty"`
	AfterQty  types.Quantity `db:"after_qty" json:"afterQty"`

	UnitPrice types.Money `db:"unit_price" json:"unitPrice"`
	LineTotal types.Money `db:"line_total" json:"lineTotal"`

	RefType string `db:"ref_type" json:"refType"`
	RefID   id.ID  `db:"ref_id" json:"refId"`

	ConversionFactor decimal.Decimal `db:"conversion_factor" json:"conversionFactor"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Signed returns QtyIn - QtyOut.
func (t InventoryTransaction) Signed() types.Quantity {
	return t.QtyIn - t.QtyOut
}

// Movement is the input for one ledger application.
type Movement struct {
	BranchID         id.ID
	IngredientID     id.ID
	TxnType          TxnType
	Quantity         types.Quantity // in base unit, positive
	Unit             string         // base unit code
	UnitPrice        types.Money
	Ref              DocRef
	ConversionFactor decimal.Decimal // input->base factor applied upstream
}

// AlertKind classifies a threshold crossing.
type AlertKind string

const (
	AlertLowStock   AlertKind = "LOW_STOCK"
	AlertOutOfStock AlertKind = "OUT_OF_STOCK"
)

// AlertEvent is emitted fire-and-forget whenever available quantity crosses
// at or below the reorder threshold, or reaches zero.
type AlertEvent struct {
	Kind         AlertKind      `json:"kind"`
	BranchID     id.ID          `json:"branchId"`
	IngredientID id.ID          `json:"ingredientId"`
	Available    types.Quantity `json:"available"`
	Threshold    types.Quantity `json:"threshold"`
	Unit         string         `json:"unit"`
	At           time.Time      `json:"at"`
}

// Notifier delivers alert events to the alerting collaborator.
// Delivery failures must not fail the stock operation.
type Notifier interface {
	Notify(ctx context.Context, event AlertEvent) error
}
