package ingredient

import (
	"context"

	"mise/internal/core/id"
)

// Repository defines catalog lookups. Reads only; the catalog collaborator
// owns all writes.
type Repository interface {
	// GetByID returns the catalog entry, or (nil, nil) when no such
	// ingredient exists.
	GetByID(ctx context.Context, ingredientID id.ID) (*Ingredient, error)
}
