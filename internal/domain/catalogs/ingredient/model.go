// Package ingredient holds the read-only contract this core consumes from the
// ingredient catalog collaborator: existence and base-unit metadata.
package ingredient

import (
	"time"

	"mise/internal/core/id"
)

// Ingredient is one catalog entry. The catalog owns the full record
// (nutrition, allergens, supplier links); this core reads only what stock
// operations need.
type Ingredient struct {
	ID        id.ID     `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	BaseUnit  string    `db:"base_unit" json:"baseUnit"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}
