package unitconv

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Resolver converts quantities between units using the conversion catalog.
// Pure lookup, no state mutation, safe to call concurrently and repeatedly.
type Resolver struct {
	repo Repository
}

// NewResolver creates a new conversion resolver.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// ResolveFactor returns the conversion factor from fromUnit to toUnit for an
// ingredient. Priority: active branch-scoped rule, then active global rule,
// then identity only when the units are equal. Anything else is a
// CONVERSION_NOT_FOUND data-setup defect; callers must never assume 1:1.
func (r *Resolver) ResolveFactor(ctx context.Context, ingredientID, branchID id.ID, fromUnit, toUnit string) (decimal.Decimal, error) {
	branch, err := r.repo.FindActiveBranch(ctx, ingredientID, branchID, fromUnit, toUnit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("find branch conversion: %w", err)
	}
	if branch != nil {
		return branch.Factor, nil
	}

	global, err := r.repo.FindActiveGlobal(ctx, ingredientID, fromUnit, toUnit)
	if err != nil {
		return decimal.Zero, fmt.Errorf("find global conversion: %w", err)
	}
	if global != nil {
		return global.Factor, nil
	}

	if fromUnit == toUnit {
		return decimal.NewFromInt(1), nil
	}

	return decimal.Zero, apperror.NewConversionNotFound(ingredientID.String(), fromUnit, toUnit)
}

// ToBase converts qty expressed in fromUnit into the ingredient's base unit,
// rounding half-up at the 4th fractional digit.
func (r *Resolver) ToBase(ctx context.Context, ingredientID, branchID id.ID, qty types.Quantity, fromUnit, baseUnit string) (types.Quantity, decimal.Decimal, error) {
	factor, err := r.ResolveFactor(ctx, ingredientID, branchID, fromUnit, baseUnit)
	if err != nil {
		return 0, decimal.Zero, err
	}

	converted := types.NewQuantityFromDecimal(qty.Decimal().Mul(factor))
	return converted, factor, nil
}
