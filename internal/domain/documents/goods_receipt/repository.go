package goods_receipt

import (
	"context"

	"mise/internal/core/id"
)

// Repository defines storage for goods receipt documents. Receipts are
// append-only: there is no update or delete.
type Repository interface {
	// Create inserts the header and all detail lines.
	Create(ctx context.Context, doc *GoodsReceipt) error

	// GetByID returns a receipt with its details.
	GetByID(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error)

	// ListDetailsByPO returns every receipt detail for a purchase order,
	// oldest first. Drives receivedSoFar and the status derivation.
	ListDetailsByPO(ctx context.Context, poID id.ID) ([]GoodsReceiptDetail, error)
}
