// Package cost maintains the weighted-average unit cost per branch/ingredient.
package cost

import (
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// InventoryCost is one row per (branch, ingredient). AvgCost is superseded in
// place on every receipt, never appended.
type InventoryCost struct {
	BranchID     id.ID       `db:"branch_id" json:"branchId"`
	IngredientID id.ID       `db:"ingredient_id" json:"ingredientId"`
	AvgCost      types.Money `db:"avg_cost" json:"avgCost"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updatedAt"`
}
