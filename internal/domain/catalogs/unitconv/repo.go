package unitconv

import (
	"context"

	"mise/internal/core/id"
)

// Repository defines lookups over the conversion catalog.
// Lookups are local reads; implementations must be safe for concurrent use.
type Repository interface {
	// FindActiveBranch returns the active branch-scoped rule for the
	// ingredient/unit pair, or (nil, nil) when none exists.
	FindActiveBranch(ctx context.Context, ingredientID, branchID id.ID, fromUnit, toUnit string) (*Conversion, error)

	// FindActiveGlobal returns the active global rule for the
	// ingredient/unit pair, or (nil, nil) when none exists.
	FindActiveGlobal(ctx context.Context, ingredientID id.ID, fromUnit, toUnit string) (*Conversion, error)
}
