package cost

import (
	"context"
	"fmt"

	"mise/internal/core/apperror"
	"mise/internal/core/clock"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Service recomputes the weighted-average unit cost on incoming receipts.
// It must run inside the same unit of work as the ledger movement for the
// same pair: no reader may see updated stock with a stale average cost.
type Service struct {
	repo Repository
	clk  clock.Clock
}

// NewService creates a new cost recalculator.
func NewService(repo Repository, clk clock.Clock) *Service {
	return &Service{repo: repo, clk: clk}
}

// ApplyReceipt blends a receipt of qty units at unitPrice into the running
// average. oldQty is Stock.Quantity *before* the ledger movement was applied.
//
//	newAvg = (oldQty*oldAvg + qty*price) / (oldQty + qty)
//
// With oldQty = 0 the new average is exactly the receipt price. Division is
// decimal with 4 fractional digits, rounded half-up. Consumption (ISSUE,
// ADJUST_OUT) never revalues the average.
func (s *Service) ApplyReceipt(ctx context.Context, branchID, ingredientID id.ID, oldQty, qty types.Quantity, unitPrice types.Money) (types.Money, error) {
	if !qty.IsPositive() {
		return types.ZeroMoney(), apperror.NewValidation("receipt quantity must be positive")
	}
	if unitPrice.IsNegative() {
		return types.ZeroMoney(), apperror.NewValidation("unit price must not be negative")
	}

	current, err := s.repo.Get(ctx, branchID, ingredientID)
	if err != nil {
		return types.ZeroMoney(), fmt.Errorf("get cost: %w", err)
	}

	newAvg := unitPrice
	if oldQty.IsPositive() {
		oldValue := oldQty.Decimal().Mul(current.AvgCost)
		newValue := qty.Decimal().Mul(unitPrice)
		totalQty := (oldQty + qty).Decimal()
		newAvg = oldValue.Add(newValue).DivRound(totalQty, types.CostScale)
	}

	updated := InventoryCost{
		BranchID:     branchID,
		IngredientID: ingredientID,
		AvgCost:      types.RoundCost(newAvg),
		UpdatedAt:    s.clk.Now(),
	}
	if err := s.repo.Upsert(ctx, updated); err != nil {
		return types.ZeroMoney(), fmt.Errorf("write cost: %w", err)
	}

	return updated.AvgCost, nil
}

// Get returns the current average cost for the pair (zero if never received).
func (s *Service) Get(ctx context.Context, branchID, ingredientID id.ID) (types.Money, error) {
	c, err := s.repo.Get(ctx, branchID, ingredientID)
	if err != nil {
		return types.ZeroMoney(), fmt.Errorf("get cost: %w", err)
	}
	return c.AvgCost, nil
}
