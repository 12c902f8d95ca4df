package register_repo

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/registers/stock"
	"mise/internal/infrastructure/storage/postgres"
)

// Mock objects

type fakeTxm struct{ q postgres.Querier }

func (f fakeTxm) GetQuerier(context.Context) postgres.Querier { return f.q }

// scriptedQuerier records every statement and pops one row set per Query call.
type scriptedQuerier struct {
	stmts []string
	rows  [][]stock.Stock
}

func (q *scriptedQuerier) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	q.stmts = append(q.stmts, flatten(sql))
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (q *scriptedQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.stmts = append(q.stmts, flatten(sql))
	if len(q.rows) == 0 {
		return &stockRows{}, nil
	}
	next := q.rows[0]
	q.rows = q.rows[1:]
	return &stockRows{rows: next}, nil
}

func (q *scriptedQuerier) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	q.stmts = append(q.stmts, flatten(sql))
	return nil
}

func flatten(sql string) string { return strings.Join(strings.Fields(sql), " ") }

// stockRows serves stock rows through the pgx.Rows interface.
type stockRows struct {
	rows []stock.Stock
	idx  int
}

func (r *stockRows) Close()                        {}
func (r *stockRows) Err() error                    { return nil }
func (r *stockRows) CommandTag() pgconn.CommandTag { return pgconn.CommandTag{} }

func (r *stockRows) FieldDescriptions() []pgconn.FieldDescription {
	names := []string{
		"branch_id", "ingredient_id", "quantity", "reserved_quantity",
		"threshold", "unit", "updated_at",
	}
	out := make([]pgconn.FieldDescription, len(names))
	for i, n := range names {
		out[i] = pgconn.FieldDescription{Name: n}
	}
	return out
}

func (r *stockRows) Next() bool {
	r.idx++
	return r.idx <= len(r.rows)
}

func (r *stockRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	vals := []any{
		row.BranchID, row.IngredientID, row.Quantity, row.ReservedQuantity,
		row.Threshold, row.Unit, row.UpdatedAt,
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *id.ID:
			*p = vals[i].(id.ID)
		case *types.Quantity:
			*p = vals[i].(types.Quantity)
		case *string:
			*p = vals[i].(string)
		case *time.Time:
			*p = vals[i].(time.Time)
		default:
			return fmt.Errorf("unexpected scan destination %T", d)
		}
	}
	return nil
}

func (r *stockRows) Values() ([]any, error) { return nil, nil }
func (r *stockRows) RawValues() [][]byte    { return nil }
func (r *stockRows) Conn() *pgx.Conn        { return nil }

func newScriptedRepo(q *scriptedQuerier) *StockRepo {
	return &StockRepo{
		txm:     fakeTxm{q},
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func TestGetForUpdate_InitializesMissingRow(t *testing.T) {
	branchID, ingredientID := id.New(), id.New()
	seeded := stock.Stock{
		BranchID:     branchID,
		IngredientID: ingredientID,
		UpdatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	// First SELECT finds nothing; the row is materialized and locked on the
	// second SELECT. Without the insert the pair has no lock to take, and two
	// concurrent first movements would both read before = 0.
	q := &scriptedQuerier{rows: [][]stock.Stock{nil, {seeded}}}
	repo := newScriptedRepo(q)

	row, err := repo.GetForUpdate(context.Background(), branchID, ingredientID)
	require.NoError(t, err)
	assert.Equal(t, seeded, row)

	require.Len(t, q.stmts, 3)
	assert.Contains(t, q.stmts[0], "FOR UPDATE")
	assert.Contains(t, q.stmts[1], "INSERT INTO inv_stock")
	assert.Contains(t, q.stmts[1], "ON CONFLICT (branch_id, ingredient_id) DO NOTHING")
	assert.Contains(t, q.stmts[2], "FOR UPDATE")
}

func TestGetForUpdate_ExistingRowLocksDirectly(t *testing.T) {
	branchID, ingredientID := id.New(), id.New()
	seeded := stock.Stock{
		BranchID:     branchID,
		IngredientID: ingredientID,
		Quantity:     50_0000,
		Unit:         "g",
		UpdatedAt:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}

	q := &scriptedQuerier{rows: [][]stock.Stock{{seeded}}}
	repo := newScriptedRepo(q)

	row, err := repo.GetForUpdate(context.Background(), branchID, ingredientID)
	require.NoError(t, err)
	assert.Equal(t, seeded, row)

	require.Len(t, q.stmts, 1)
	assert.Contains(t, q.stmts[0], "FOR UPDATE")
}

func TestTransactionsQuery(t *testing.T) {
	builder := squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)
	branchID := id.MustParse("01900000-0000-7000-8000-000000000001")
	ingredientID := id.MustParse("01900000-0000-7000-8000-000000000002")

	receipt := stock.TxnReceipt
	from := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	t.Run("no filters", func(t *testing.T) {
		sql, args, err := transactionsQuery(builder, branchID, ingredientID, stock.TxnFilter{}).ToSql()
		require.NoError(t, err)

		assert.Equal(t,
			"SELECT id, branch_id, ingredient_id, txn_type, qty_in, qty_out, before_qty, after_qty, "+
				"unit_price, line_total, ref_type, ref_id, conversion_factor, created_at "+
				"FROM inv_transactions WHERE branch_id = $1 AND ingredient_id = $2 "+
				"ORDER BY created_at DESC, id DESC",
			sql)
		assert.Equal(t, []any{branchID, ingredientID}, args)
	})

	t.Run("all filters", func(t *testing.T) {
		sql, args, err := transactionsQuery(builder, branchID, ingredientID, stock.TxnFilter{
			TxnType:  &receipt,
			FromDate: &from,
			ToDate:   &to,
			Limit:    50,
			Offset:   100,
		}).ToSql()
		require.NoError(t, err)

		assert.Contains(t, sql, "txn_type = $3")
		assert.Contains(t, sql, "created_at >= $4")
		assert.Contains(t, sql, "created_at <= $5")
		assert.Contains(t, sql, "LIMIT 50")
		assert.Contains(t, sql, "OFFSET 100")
		assert.Equal(t, []any{branchID, ingredientID, receipt, from, to}, args)
	})
}
