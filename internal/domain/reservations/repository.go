package reservations

import (
	"context"
	"time"

	"mise/internal/core/id"
)

// Repository defines storage operations for reservations.
//
// MarkCommitted and MarkReleased are conditional updates that succeed only
// while the row is still ACTIVE; together with the stock row lock they make
// the ACTIVE->COMMITTED and ACTIVE->RELEASED transitions mutually exclusive.
type Repository interface {
	// GetActive returns the single ACTIVE row for (groupID, ingredientID),
	// or (nil, nil) when none exists.
	GetActive(ctx context.Context, groupID string, ingredientID id.ID) (*StockReservation, error)

	// ListActiveByGroup returns all ACTIVE rows in the group.
	ListActiveByGroup(ctx context.Context, groupID string) ([]StockReservation, error)

	// Create inserts a new ACTIVE row.
	Create(ctx context.Context, r StockReservation) error

	// UpdateActive rewrites quantity and expiry of an ACTIVE row.
	// Returns the number of rows updated (0 when the row left ACTIVE).
	UpdateActive(ctx context.Context, r StockReservation) (int64, error)

	// MarkCommitted transitions ACTIVE->COMMITTED. Returns rows updated.
	MarkCommitted(ctx context.Context, reservationID id.ID, now time.Time) (int64, error)

	// MarkReleased transitions ACTIVE->RELEASED. Returns rows updated.
	MarkReleased(ctx context.Context, reservationID id.ID, now time.Time) (int64, error)

	// GetByID returns a reservation in any status.
	GetByID(ctx context.Context, reservationID id.ID) (*StockReservation, error)

	// ListExpired returns ACTIVE rows with expires_at < now.
	ListExpired(ctx context.Context, now time.Time, limit int) ([]StockReservation, error)

	// DeleteReleasedBefore hard-deletes RELEASED rows updated before cutoff.
	// Returns the number of purged rows.
	DeleteReleasedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
