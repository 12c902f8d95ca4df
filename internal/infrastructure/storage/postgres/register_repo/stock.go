// Package register_repo provides PostgreSQL implementations for the stock
// and cost register repositories.
package register_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"

	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/registers/stock"
	"mise/internal/infrastructure/storage/postgres"
)

const (
	stockTable        = "inv_stock"
	transactionsTable = "inv_transactions"
)

// querierSource yields the querier bound to the caller's transaction.
type querierSource interface {
	GetQuerier(ctx context.Context) postgres.Querier
}

// StockRepo implements stock.Repository.
type StockRepo struct {
	txm     querierSource
	builder squirrel.StatementBuilderType
}

// NewStockRepo creates a new stock register repository.
func NewStockRepo(txm *postgres.TxManager) *StockRepo {
	return &StockRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the current row, or a zero-quantity row for first-seen pairs.
func (r *StockRepo) Get(ctx context.Context, branchID, ingredientID id.ID) (stock.Stock, error) {
	q := r.builder.Select(
		"branch_id", "ingredient_id", "quantity", "reserved_quantity",
		"threshold", "unit", "updated_at",
	).From(stockTable).
		Where(squirrel.Eq{
			"branch_id":     branchID,
			"ingredient_id": ingredientID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return stock.Stock{}, fmt.Errorf("build query: %w", err)
	}

	var row stock.Stock
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return zeroStock(branchID, ingredientID), nil
		}
		return stock.Stock{}, fmt.Errorf("get stock: %w", err)
	}

	return row, nil
}

const lockStockSQL = `
	SELECT branch_id, ingredient_id, quantity, reserved_quantity, threshold, unit, updated_at
	FROM inv_stock
	WHERE branch_id = $1 AND ingredient_id = $2
	FOR UPDATE
`

// GetForUpdate returns the row with a pessimistic lock. A pair that has never
// had a movement gets a zero row materialized first: the lock must exist
// before any read-check-write, otherwise two concurrent first movements would
// both read before = 0 and the later write would swallow the earlier one.
// Concurrent initializations collapse onto one row via DO NOTHING and then
// serialize on the re-taken lock.
func (r *StockRepo) GetForUpdate(ctx context.Context, branchID, ingredientID id.ID) (stock.Stock, error) {
	querier := r.txm.GetQuerier(ctx)

	var row stock.Stock
	err := pgxscan.Get(ctx, querier, &row, lockStockSQL, branchID, ingredientID)
	if err == nil {
		return row, nil
	}
	if !pgxscan.NotFound(err) {
		return stock.Stock{}, fmt.Errorf("get stock for update: %w", err)
	}

	initSQL := `
		INSERT INTO inv_stock (branch_id, ingredient_id, quantity, reserved_quantity, threshold, unit, updated_at)
		VALUES ($1, $2, 0, 0, 0, '', now())
		ON CONFLICT (branch_id, ingredient_id) DO NOTHING
	`
	if _, err := querier.Exec(ctx, initSQL, branchID, ingredientID); err != nil {
		return stock.Stock{}, fmt.Errorf("init stock row: %w", err)
	}

	if err := pgxscan.Get(ctx, querier, &row, lockStockSQL, branchID, ingredientID); err != nil {
		return stock.Stock{}, fmt.Errorf("lock stock row: %w", err)
	}

	return row, nil
}

// Upsert writes the full row.
func (r *StockRepo) Upsert(ctx context.Context, s stock.Stock) error {
	sql := `
		INSERT INTO inv_stock (branch_id, ingredient_id, quantity, reserved_quantity, threshold, unit, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (branch_id, ingredient_id) DO UPDATE
		SET quantity = EXCLUDED.quantity,
		    unit = EXCLUDED.unit,
		    updated_at = EXCLUDED.updated_at
	`

	querier := r.txm.GetQuerier(ctx)
	_, err := querier.Exec(ctx, sql,
		s.BranchID, s.IngredientID,
		s.Quantity.Int64Scaled(), s.ReservedQuantity.Int64Scaled(),
		s.Threshold.Int64Scaled(), s.Unit, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert stock: %w", err)
	}

	return nil
}

// AdjustReserved changes reserved_quantity by delta under the caller's lock.
func (r *StockRepo) AdjustReserved(ctx context.Context, branchID, ingredientID id.ID, delta types.Quantity, now time.Time) error {
	sql := `
		UPDATE inv_stock
		SET reserved_quantity = reserved_quantity + $1,
		    updated_at = $2
		WHERE branch_id = $3 AND ingredient_id = $4
	`

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, delta.Int64Scaled(), now, branchID, ingredientID)
	if err != nil {
		return fmt.Errorf("adjust reserved: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("adjust reserved: stock row %s/%s does not exist", branchID, ingredientID)
	}

	return nil
}

// AppendTransaction appends one immutable ledger row.
func (r *StockRepo) AppendTransaction(ctx context.Context, txn stock.InventoryTransaction) error {
	q := r.builder.Insert(transactionsTable).Columns(
		"id", "branch_id", "ingredient_id", "txn_type",
		"qty_in", "qty_out", "before_qty", "after_qty",
		"unit_price", "line_total", "ref_type", "ref_id",
		"conversion_factor", "created_at",
	).Values(
		txn.ID, txn.BranchID, txn.IngredientID, txn.TxnType,
		txn.QtyIn.Int64Scaled(), txn.QtyOut.Int64Scaled(),
		txn.BeforeQty.Int64Scaled(), txn.AfterQty.Int64Scaled(),
		txn.UnitPrice, txn.LineTotal, txn.RefType, txn.RefID,
		txn.ConversionFactor, txn.CreatedAt,
	)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("append transaction: %w", err)
	}

	return nil
}

// transactionsQuery builds the ledger history query with optional filters.
func transactionsQuery(builder squirrel.StatementBuilderType, branchID, ingredientID id.ID, filter stock.TxnFilter) squirrel.SelectBuilder {
	q := builder.Select(
		"id", "branch_id", "ingredient_id", "txn_type",
		"qty_in", "qty_out", "before_qty", "after_qty",
		"unit_price", "line_total", "ref_type", "ref_id",
		"conversion_factor", "created_at",
	).From(transactionsTable).
		Where(squirrel.Eq{
			"branch_id":     branchID,
			"ingredient_id": ingredientID,
		})

	if filter.TxnType != nil {
		q = q.Where(squirrel.Eq{"txn_type": *filter.TxnType})
	}
	if filter.FromDate != nil {
		q = q.Where(squirrel.GtOrEq{"created_at": *filter.FromDate})
	}
	if filter.ToDate != nil {
		q = q.Where(squirrel.LtOrEq{"created_at": *filter.ToDate})
	}

	q = q.OrderBy("created_at DESC", "id DESC")

	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		q = q.Offset(uint64(filter.Offset))
	}

	return q
}

// ListTransactions returns ledger history, newest first.
func (r *StockRepo) ListTransactions(ctx context.Context, branchID, ingredientID id.ID, filter stock.TxnFilter) ([]stock.InventoryTransaction, error) {
	sql, args, err := transactionsQuery(r.builder, branchID, ingredientID, filter).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var txns []stock.InventoryTransaction
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &txns, sql, args...); err != nil {
		return nil, fmt.Errorf("select transactions: %w", err)
	}

	return txns, nil
}

// SumSigned returns the ledger sum of qty_in - qty_out for the pair.
func (r *StockRepo) SumSigned(ctx context.Context, branchID, ingredientID id.ID) (types.Quantity, error) {
	sql := `
		SELECT COALESCE(SUM(qty_in - qty_out), 0)
		FROM inv_transactions
		WHERE branch_id = $1 AND ingredient_id = $2
	`

	var sumScaled int64
	querier := r.txm.GetQuerier(ctx)
	err := querier.QueryRow(ctx, sql, branchID, ingredientID).Scan(&sumScaled)
	if err != nil && err != pgx.ErrNoRows {
		return 0, fmt.Errorf("sum transactions: %w", err)
	}

	return types.NewQuantityFromInt64Scaled(sumScaled), nil
}

// ListByBranch returns stock rows for a branch.
func (r *StockRepo) ListByBranch(ctx context.Context, branchID id.ID, excludeZero bool) ([]stock.Stock, error) {
	q := r.builder.Select(
		"branch_id", "ingredient_id", "quantity", "reserved_quantity",
		"threshold", "unit", "updated_at",
	).From(stockTable).
		Where(squirrel.Eq{"branch_id": branchID})

	if excludeZero {
		q = q.Where(squirrel.NotEq{"quantity": int64(0)})
	}

	q = q.OrderBy("ingredient_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []stock.Stock
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("select stock: %w", err)
	}

	return rows, nil
}

func zeroStock(branchID, ingredientID id.ID) stock.Stock {
	return stock.Stock{
		BranchID:     branchID,
		IngredientID: ingredientID,
	}
}

// Ensure interface compliance.
var _ stock.Repository = (*StockRepo)(nil)
