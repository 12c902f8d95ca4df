package stock

import (
	"context"
	"time"

	"mise/internal/core/id"
	"mise/internal/core/types"
)

// Repository defines storage operations for the stock register.
// Mutating methods are called inside a transaction managed by the service.
type Repository interface {
	// Get returns the current row, or a zero-quantity row if the pair has
	// never had a movement.
	Get(ctx context.Context, branchID, ingredientID id.ID) (Stock, error)

	// GetForUpdate returns the row with a pessimistic row lock. The lock
	// serializes every reserve/commit/release/movement for the pair.
	GetForUpdate(ctx context.Context, branchID, ingredientID id.ID) (Stock, error)

	// Upsert writes the full row (insert on first movement).
	Upsert(ctx context.Context, s Stock) error

	// AdjustReserved changes reserved_quantity by delta. The caller holds
	// the row lock and has validated 0 <= reserved+delta <= quantity.
	AdjustReserved(ctx context.Context, branchID, ingredientID id.ID, delta types.Quantity, now time.Time) error

	// AppendTransaction appends one immutable ledger row.
	AppendTransaction(ctx context.Context, txn InventoryTransaction) error

	// ListTransactions returns ledger history, newest first.
	ListTransactions(ctx context.Context, branchID, ingredientID id.ID, filter TxnFilter) ([]InventoryTransaction, error)

	// SumSigned returns the sum of qty_in - qty_out over the whole ledger
	// for the pair (consistency checks against Stock.Quantity).
	SumSigned(ctx context.Context, branchID, ingredientID id.ID) (types.Quantity, error)

	// ListByBranch returns all stock rows for a branch.
	ListByBranch(ctx context.Context, branchID id.ID, excludeZero bool) ([]Stock, error)
}

// TxnFilter narrows ledger history queries.
type TxnFilter struct {
	TxnType  *TxnType
	FromDate *time.Time
	ToDate   *time.Time
	Limit    int
	Offset   int
}
