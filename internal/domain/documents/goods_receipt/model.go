// Package goods_receipt provides the goods receipt document and the per-line
// disposition state machine applied when physical stock arrives.
package goods_receipt

import (
	"fmt"
	"time"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// LineStatus is the per-line disposition code. A receipt line records not
// just a quantity but a decision: accept fully, accept short, keep the line
// open, return excess, or handle damage.
type LineStatus string

const (
	StatusOK             LineStatus = "OK"
	StatusShortAccepted  LineStatus = "SHORT_ACCEPTED"
	StatusShortPending   LineStatus = "SHORT_PENDING"
	StatusOverAccepted   LineStatus = "OVER_ACCEPTED"
	StatusOverReturn     LineStatus = "OVER_RETURN"
	StatusDamageAccepted LineStatus = "DAMAGE_ACCEPTED"
	StatusDamageReturn   LineStatus = "DAMAGE_RETURN"
	StatusDamagePartial  LineStatus = "DAMAGE_PARTIAL"
)

// Valid reports whether s is a known disposition.
func (s LineStatus) Valid() bool {
	switch s {
	case StatusOK, StatusShortAccepted, StatusShortPending,
		StatusOverAccepted, StatusOverReturn,
		StatusDamageAccepted, StatusDamageReturn, StatusDamagePartial:
		return true
	}
	return false
}

// IsClosing reports whether no further receipt is expected for the line.
// Every disposition closes the line except SHORT_PENDING.
func (s LineStatus) IsClosing() bool {
	return s.Valid() && s != StatusShortPending
}

// IsDamage reports whether the disposition requires a damage quantity.
func (s LineStatus) IsDamage() bool {
	return s == StatusDamageAccepted || s == StatusDamageReturn || s == StatusDamagePartial
}

// GoodsReceipt is one header per physical delivery event. Immutable once
// created: a correction is a new receipt, not an edit.
type GoodsReceipt struct {
	ID         id.ID     `db:"id" json:"id"`
	POID       id.ID     `db:"po_id" json:"poId"`
	SupplierID id.ID     `db:"supplier_id" json:"supplierId"`
	BranchID   id.ID     `db:"branch_id" json:"branchId"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`

	Details []GoodsReceiptDetail `db:"-" json:"details"`
}

// GoodsReceiptDetail is one line per purchase-order line being received.
//
// QtyInput is the quantity as received in the PO line's unit; its meaning
// depends on the disposition (total received for OVER_*, good units only for
// DAMAGE_PARTIAL/DAMAGE_RETURN). QtyAccepted is what actually entered the
// ledger, in the same unit; QtyBase is QtyAccepted converted to the
// ingredient's base unit.
type GoodsReceiptDetail struct {
	ID           id.ID          `db:"id" json:"id"`
	ReceiptID    id.ID          `db:"receipt_id" json:"receiptId"`
	POLineID     id.ID          `db:"po_line_id" json:"poLineId"`
	IngredientID id.ID          `db:"ingredient_id" json:"ingredientId"`
	QtyInput     types.Quantity `db:"qty_input" json:"qtyInput"`
	QtyAccepted  types.Quantity `db:"qty_accepted" json:"qtyAccepted"`
	QtyBase      types.Quantity `db:"qty_base" json:"qtyBase"`
	Unit         string         `db:"unit" json:"unit"`
	UnitPrice    types.Money    `db:"unit_price" json:"unitPrice"`
	Status       LineStatus     `db:"status" json:"status"`
	DamageQty    types.Quantity `db:"damage_qty" json:"damageQty"`
	LotNumber    string         `db:"lot_number" json:"lotNumber,omitempty"`
	ExpiryDate   *time.Time     `db:"expiry_date" json:"expiryDate,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"createdAt"`
}

// ValidateDisposition checks the line's precondition against the remaining
// (still unreceived) quantity of its PO line. Runs before any mutation:
// a violated precondition fails the whole receipt with no partial writes.
func ValidateDisposition(status LineStatus, qtyInput, damageQty, remaining types.Quantity, lineNo int) error {
	lineErr := func(msg string) error {
		return apperror.NewValidation(msg).
			WithDetail("lineNo", lineNo).
			WithDetail("status", string(status)).
			WithDetail("qtyInput", qtyInput.String()).
			WithDetail("remaining", remaining.String())
	}

	if !status.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown line status %q", status)).
			WithDetail("lineNo", lineNo)
	}
	if qtyInput.IsNegative() || damageQty.IsNegative() {
		return lineErr("quantities must not be negative")
	}

	switch status {
	case StatusOK:
		if qtyInput != remaining {
			return lineErr("OK requires an exact match of the remaining quantity")
		}
	case StatusShortAccepted, StatusShortPending:
		if qtyInput >= remaining {
			return lineErr("SHORT requires less than the remaining quantity")
		}
		if !qtyInput.IsPositive() {
			return lineErr("SHORT requires a positive received quantity")
		}
	case StatusOverAccepted, StatusOverReturn:
		if qtyInput <= remaining {
			return lineErr("OVER requires more than the remaining quantity")
		}
	default: // damage dispositions
		if !damageQty.IsPositive() {
			return lineErr("damage disposition requires a positive damage quantity")
		}
	}

	return nil
}

// AcceptedQty returns the quantity entering the ledger for a validated line,
// in the PO line's unit. Conventions are deliberately asymmetric and
// preserved as-is: OVER_RETURN caps at remaining, DAMAGE_ACCEPTED includes
// damaged units, DAMAGE_PARTIAL/DAMAGE_RETURN carry good units only in
// QtyInput.
func AcceptedQty(status LineStatus, qtyInput, remaining types.Quantity) types.Quantity {
	if status == StatusOverReturn {
		return qtyInput.Min(remaining)
	}
	return qtyInput
}
