package cost

import (
	"context"

	"mise/internal/core/id"
)

// Repository defines storage for average costs.
type Repository interface {
	// Get returns the current cost row, or a zero-cost row if the pair has
	// never had a receipt.
	Get(ctx context.Context, branchID, ingredientID id.ID) (InventoryCost, error)

	// Upsert supersedes the row in place.
	Upsert(ctx context.Context, c InventoryCost) error
}
