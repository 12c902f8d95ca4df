package document_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/domain/documents/purchase_order"
	"mise/internal/infrastructure/storage/postgres"
)

const (
	purchaseOrdersTable  = "purchase_orders"
	poDetailsTable       = "po_details"
	poStatusHistoryTable = "po_status_history"
)

var poDetailColumns = []string{
	"id", "po_id", "ingredient_id", "ordered_qty", "unit", "base_unit", "unit_price",
}

// PurchaseOrderRepo implements purchase_order.Repository.
type PurchaseOrderRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewPurchaseOrderRepo creates a new purchase order repository.
func NewPurchaseOrderRepo(txm *postgres.TxManager) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListDetails returns every line of a purchase order.
func (r *PurchaseOrderRepo) ListDetails(ctx context.Context, poID id.ID) ([]purchase_order.Detail, error) {
	q := r.builder.Select(poDetailColumns...).
		From(poDetailsTable).
		Where(squirrel.Eq{"po_id": poID}).
		OrderBy("id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []purchase_order.Detail
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list po details: %w", err)
	}

	return rows, nil
}

// UpdateStatus writes the derived status onto the order.
func (r *PurchaseOrderRepo) UpdateStatus(ctx context.Context, poID id.ID, status purchase_order.Status, now time.Time) error {
	q := r.builder.Update(purchaseOrdersTable).
		Set("status", status).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": poID})

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("update po status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperror.NewNotFound("purchase order", poID.String())
	}

	return nil
}

// AppendStatusHistory appends one status-history record.
func (r *PurchaseOrderRepo) AppendStatusHistory(ctx context.Context, entry purchase_order.StatusHistoryEntry) error {
	q := r.builder.Insert(poStatusHistoryTable).
		Columns("id", "po_id", "status", "note", "created_at").
		Values(entry.ID, entry.POID, entry.Status, entry.Note, entry.CreatedAt)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append po status history: %w", err)
	}

	return nil
}

var _ purchase_order.Repository = (*PurchaseOrderRepo)(nil)
