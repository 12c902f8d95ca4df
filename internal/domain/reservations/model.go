// Package reservations provides short-lived holds against available stock,
// grouped by a caller-supplied group id (cart or checkout session).
package reservations

import (
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Status is the reservation lifecycle state. A reservation is created ACTIVE
// and transitions exactly once to COMMITTED (stock deducted) or RELEASED
// (hold abandoned), then is garbage-collected after a retention window.
type Status string

const (
	StatusActive    Status = "ACTIVE"
	StatusCommitted Status = "COMMITTED"
	StatusReleased  Status = "RELEASED"
)

// StockReservation is one hold row. At most one ACTIVE row may exist per
// (GroupID, IngredientID); re-reserving updates the hold in place.
type StockReservation struct {
	ID               id.ID          `db:"id" json:"id"`
	GroupID          string         `db:"group_id" json:"reservationGroupId"`
	BranchID         id.ID          `db:"branch_id" json:"branchId"`
	IngredientID     id.ID          `db:"ingredient_id" json:"ingredientId"`
	QuantityReserved types.Quantity `db:"quantity_reserved" json:"quantityReserved"`
	Unit             string         `db:"unit" json:"unit"`
	ExpiresAt        time.Time      `db:"expires_at" json:"expiresAt"`
	Status           Status         `db:"status" json:"status"`

	// Loose back-references across service boundaries; ids only, no
	// ownership encoded.
	OrderID *id.ID `db:"order_id" json:"orderId,omitempty"`
	CartID  *id.ID `db:"cart_id" json:"cartId,omitempty"`
	GuestID *id.ID `db:"guest_id" json:"guestId,omitempty"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// ReserveRequest is the input for one hold. The ingredient's base unit is
// resolved from the catalog, never supplied by the caller.
type ReserveRequest struct {
	GroupID      string
	BranchID     id.ID
	IngredientID id.ID
	Quantity     types.Quantity // in Unit
	Unit         string
	TTL          time.Duration

	OrderID *id.ID
	CartID  *id.ID
	GuestID *id.ID
}
