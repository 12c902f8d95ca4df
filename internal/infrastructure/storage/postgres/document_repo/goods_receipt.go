// Package document_repo provides PostgreSQL implementations for the document
// repositories (goods receipts and purchase orders).
package document_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/domain/documents/goods_receipt"
	"mise/internal/infrastructure/storage/postgres"
)

const (
	receiptsTable       = "inv_goods_receipts"
	receiptDetailsTable = "inv_goods_receipt_details"
)

var receiptDetailColumns = []string{
	"id", "receipt_id", "po_line_id", "ingredient_id",
	"qty_input", "qty_accepted", "qty_base", "unit", "unit_price",
	"status", "damage_qty", "lot_number", "expiry_date", "created_at",
}

// GoodsReceiptRepo implements goods_receipt.Repository.
type GoodsReceiptRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewGoodsReceiptRepo creates a new goods receipt repository.
func NewGoodsReceiptRepo(txm *postgres.TxManager) *GoodsReceiptRepo {
	return &GoodsReceiptRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Create inserts the header and all detail lines. Called inside the receipt
// transaction, so the document appears atomically with its ledger rows.
func (r *GoodsReceiptRepo) Create(ctx context.Context, doc *goods_receipt.GoodsReceipt) error {
	querier := r.txm.GetQuerier(ctx)

	header := r.builder.Insert(receiptsTable).
		Columns("id", "po_id", "supplier_id", "branch_id", "created_at").
		Values(doc.ID, doc.POID, doc.SupplierID, doc.BranchID, doc.CreatedAt)

	sql, args, err := header.ToSql()
	if err != nil {
		return fmt.Errorf("build header insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert receipt header: %w", err)
	}

	if len(doc.Details) == 0 {
		return nil
	}

	details := r.builder.Insert(receiptDetailsTable).Columns(receiptDetailColumns...)
	for _, d := range doc.Details {
		details = details.Values(
			d.ID, d.ReceiptID, d.POLineID, d.IngredientID,
			d.QtyInput.Int64Scaled(), d.QtyAccepted.Int64Scaled(), d.QtyBase.Int64Scaled(),
			d.Unit, d.UnitPrice,
			d.Status, d.DamageQty.Int64Scaled(), d.LotNumber, d.ExpiryDate, d.CreatedAt,
		)
	}

	sql, args, err = details.ToSql()
	if err != nil {
		return fmt.Errorf("build details insert: %w", err)
	}
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("insert receipt details: %w", err)
	}

	return nil
}

// GetByID returns a receipt with its details.
func (r *GoodsReceiptRepo) GetByID(ctx context.Context, receiptID id.ID) (*goods_receipt.GoodsReceipt, error) {
	q := r.builder.Select("id", "po_id", "supplier_id", "branch_id", "created_at").
		From(receiptsTable).
		Where(squirrel.Eq{"id": receiptID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)

	var doc goods_receipt.GoodsReceipt
	if err := pgxscan.Get(ctx, querier, &doc, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, apperror.NewNotFound("goods receipt", receiptID.String())
		}
		return nil, fmt.Errorf("get receipt: %w", err)
	}

	dq := r.builder.Select(receiptDetailColumns...).
		From(receiptDetailsTable).
		Where(squirrel.Eq{"receipt_id": receiptID}).
		OrderBy("created_at", "id")

	sql, args, err = dq.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build details query: %w", err)
	}
	if err := pgxscan.Select(ctx, querier, &doc.Details, sql, args...); err != nil {
		return nil, fmt.Errorf("get receipt details: %w", err)
	}

	return &doc, nil
}

// ListDetailsByPO returns every receipt detail for a purchase order, oldest
// first. The join walks header->details so details never need a po_id column.
func (r *GoodsReceiptRepo) ListDetailsByPO(ctx context.Context, poID id.ID) ([]goods_receipt.GoodsReceiptDetail, error) {
	q := r.builder.Select(prefixed("d", receiptDetailColumns)...).
		From(receiptDetailsTable + " d").
		Join(receiptsTable + " r ON r.id = d.receipt_id").
		Where(squirrel.Eq{"r.po_id": poID}).
		OrderBy("d.created_at", "d.id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var details []goods_receipt.GoodsReceiptDetail
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &details, sql, args...); err != nil {
		return nil, fmt.Errorf("list details by po: %w", err)
	}

	return details, nil
}

func prefixed(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}

var _ goods_receipt.Repository = (*GoodsReceiptRepo)(nil)
