package purchase_order

import (
	"context"
	"time"

	"mise/internal/core/id"
)

// Repository defines the reads and the status write-back this core performs
// against purchase-order data. Negotiation workflow stays with the
// collaborator.
type Repository interface {
	// ListDetails returns every line of a purchase order.
	ListDetails(ctx context.Context, poID id.ID) ([]Detail, error)

	// UpdateStatus writes the derived status onto the order.
	UpdateStatus(ctx context.Context, poID id.ID, status Status, now time.Time) error

	// AppendStatusHistory appends one status-history record.
	AppendStatusHistory(ctx context.Context, entry StatusHistoryEntry) error
}
