// Package purchase_order holds the contract this core consumes from the
// purchase-order collaborator: ordered quantities per line, and the status
// update written back after each goods receipt.
package purchase_order

import (
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Status values this core may write back to a purchase order.
type Status string

const (
	StatusPartiallyReceived Status = "PARTIALLY_RECEIVED"
	StatusReceived          Status = "RECEIVED"
)

// Detail is one purchase-order line. The cumulative "received so far" is
// always derived by summing goods-receipt detail rows referencing the line;
// it is never stored here, so partial and retried receipts cannot drift.
type Detail struct {
	ID           id.ID          `db:"id" json:"id"`
	POID         id.ID          `db:"po_id" json:"poId"`
	IngredientID id.ID          `db:"ingredient_id" json:"ingredientId"`
	OrderedQty   types.Quantity `db:"ordered_qty" json:"orderedQty"`
	Unit         string         `db:"unit" json:"unit"`
	BaseUnit     string         `db:"base_unit" json:"baseUnit"`
	UnitPrice    types.Money    `db:"unit_price" json:"unitPrice"`
}

// StatusHistoryEntry is one append-only status transition record.
type StatusHistoryEntry struct {
	ID        id.ID     `db:"id" json:"id"`
	POID      id.ID     `db:"po_id" json:"poId"`
	Status    Status    `db:"status" json:"status"`
	Note      string    `db:"note" json:"note,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
