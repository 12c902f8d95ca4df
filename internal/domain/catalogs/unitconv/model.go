// Package unitconv provides the unit conversion catalog and resolver.
package unitconv

import (
	"time"

	"github.com/shopspring/decimal"

	"mise/internal/core/id"
)

// Conversion is one conversion rule: multiplying a quantity expressed in
// FromUnit by Factor yields the quantity in ToUnit. BranchID is nil for
// global rules; branch-scoped rules take priority.
type Conversion struct {
	ID           id.ID           `db:"id" json:"id"`
	IngredientID id.ID           `db:"ingredient_id" json:"ingredientId"`
	BranchID     *id.ID          `db:"branch_id" json:"branchId,omitempty"`
	FromUnit     string          `db:"from_unit" json:"fromUnit"`
	ToUnit       string          `db:"to_unit" json:"toUnit"`
	Factor       decimal.Decimal `db:"factor" json:"factor"`
	Active       bool            `db:"active" json:"active"`
	CreatedAt    time.Time       `db:"created_at" json:"createdAt"`
}

// IsGlobal reports whether the rule applies to all branches.
func (c Conversion) IsGlobal() bool {
	return c.BranchID == nil
}
