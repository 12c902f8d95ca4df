package stock

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/clock"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

// memRepo is an in-memory stock.Repository for service tests.
type memRepo struct {
	rows map[string]Stock
	txns []InventoryTransaction
}

func newMemRepo() *memRepo {
	return &memRepo{rows: make(map[string]Stock)}
}

func key(branchID, ingredientID id.ID) string {
	return branchID.String() + "/" + ingredientID.String()
}

func (r *memRepo) Get(_ context.Context, branchID, ingredientID id.ID) (Stock, error) {
	if row, ok := r.rows[key(branchID, ingredientID)]; ok {
		return row, nil
	}
	return Stock{BranchID: branchID, IngredientID: ingredientID}, nil
}

func (r *memRepo) GetForUpdate(ctx context.Context, branchID, ingredientID id.ID) (Stock, error) {
	return r.Get(ctx, branchID, ingredientID)
}

func (r *memRepo) Upsert(_ context.Context, s Stock) error {
	r.rows[key(s.BranchID, s.IngredientID)] = s
	return nil
}

func (r *memRepo) AdjustReserved(_ context.Context, branchID, ingredientID id.ID, delta types.Quantity, now time.Time) error {
	row := r.rows[key(branchID, ingredientID)]
	row.BranchID = branchID
	row.IngredientID = ingredientID
	row.ReservedQuantity += delta
	row.UpdatedAt = now
	r.rows[key(branchID, ingredientID)] = row
	return nil
}

func (r *memRepo) AppendTransaction(_ context.Context, txn InventoryTransaction) error {
	r.txns = append(r.txns, txn)
	return nil
}

func (r *memRepo) ListTransactions(_ context.Context, branchID, ingredientID id.ID, _ TxnFilter) ([]InventoryTransaction, error) {
	var out []InventoryTransaction
	for i := len(r.txns) - 1; i >= 0; i-- {
		t := r.txns[i]
		if t.BranchID == branchID && t.IngredientID == ingredientID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (r *memRepo) SumSigned(_ context.Context, branchID, ingredientID id.ID) (types.Quantity, error) {
	var sum types.Quantity
	for _, t := range r.txns {
		if t.BranchID == branchID && t.IngredientID == ingredientID {
			sum += t.Signed()
		}
	}
	return sum, nil
}

func (r *memRepo) ListByBranch(_ context.Context, branchID id.ID, excludeZero bool) ([]Stock, error) {
	var out []Stock
	for _, row := range r.rows {
		if row.BranchID == branchID && (!excludeZero || !row.Quantity.IsZero()) {
			out = append(out, row)
		}
	}
	return out, nil
}

// captureNotifier records alert events.
type captureNotifier struct {
	events []AlertEvent
}

func (n *captureNotifier) Notify(_ context.Context, ev AlertEvent) error {
	n.events = append(n.events, ev)
	return nil
}

func receiptMovement(branchID, ingredientID id.ID, qty types.Quantity) Movement {
	return Movement{
		BranchID:         branchID,
		IngredientID:     ingredientID,
		TxnType:          TxnReceipt,
		Quantity:         qty,
		Unit:             "g",
		UnitPrice:        types.MustMoney("48"),
		Ref:              DocRef{Type: "GoodsReceipt", ID: id.New()},
		ConversionFactor: decimal.NewFromInt(1),
	}
}

func TestGetAvailable(t *testing.T) {
	repo := newMemRepo()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(repo, nil, clk)

	branchID, ingredientID := id.New(), id.New()
	require.NoError(t, repo.Upsert(context.Background(), Stock{
		BranchID:         branchID,
		IngredientID:     ingredientID,
		Quantity:         types.Quantity(100_0000),
		ReservedQuantity: types.Quantity(30_0000),
		Unit:             "g",
	}))

	available, err := svc.GetAvailable(context.Background(), branchID, ingredientID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(70_0000), available)

	// Unknown pair reads as zero availability, not an error.
	available, err = svc.GetAvailable(context.Background(), id.New(), id.New())
	require.NoError(t, err)
	assert.True(t, available.IsZero())
}

func TestApplyMovement_SnapshotsAndLedger(t *testing.T) {
	repo := newMemRepo()
	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(repo, nil, clk)
	ctx := context.Background()

	branchID, ingredientID := id.New(), id.New()

	txn, err := svc.ApplyMovement(ctx, receiptMovement(branchID, ingredientID, 50_0000))
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(0), txn.BeforeQty)
	assert.Equal(t, types.Quantity(50_0000), txn.AfterQty)
	assert.Equal(t, types.Quantity(50_0000), txn.QtyIn)
	assert.Equal(t, types.Quantity(0), txn.QtyOut)
	assert.Equal(t, "2400", txn.LineTotal.String())

	issue := receiptMovement(branchID, ingredientID, 20_0000)
	issue.TxnType = TxnIssue
	txn, err = svc.ApplyMovement(ctx, issue)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(50_0000), txn.BeforeQty)
	assert.Equal(t, types.Quantity(30_0000), txn.AfterQty)

	// Ledger sum always matches the stored quantity.
	require.NoError(t, svc.CheckLedgerConsistency(ctx, branchID, ingredientID))
	require.Len(t, repo.txns, 2)
}

func TestApplyMovement_RejectsNegativeStock(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, clock.System{})
	ctx := context.Background()

	branchID, ingredientID := id.New(), id.New()

	_, err := svc.ApplyMovement(ctx, receiptMovement(branchID, ingredientID, 10_0000))
	require.NoError(t, err)

	issue := receiptMovement(branchID, ingredientID, 10_0001)
	issue.TxnType = TxnIssue
	_, err = svc.ApplyMovement(ctx, issue)
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeStock))

	// Rejected movement writes nothing.
	row, err := svc.GetStock(ctx, branchID, ingredientID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(10_0000), row.Quantity)
	assert.Len(t, repo.txns, 1)

	adjOut := receiptMovement(branchID, ingredientID, 10_0001)
	adjOut.TxnType = TxnAdjustOut
	_, err = svc.ApplyMovement(ctx, adjOut)
	assert.True(t, apperror.IsCode(err, apperror.CodeNegativeStock))
}

func TestApplyMovement_ValidatesInput(t *testing.T) {
	svc := NewService(newMemRepo(), nil, clock.System{})
	ctx := context.Background()

	m := receiptMovement(id.New(), id.New(), 0)
	_, err := svc.ApplyMovement(ctx, m)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	m = receiptMovement(id.New(), id.New(), 100)
	m.TxnType = "TRANSMUTE"
	_, err = svc.ApplyMovement(ctx, m)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	m = receiptMovement(id.New(), id.New(), 100)
	m.Ref = DocRef{}
	_, err = svc.ApplyMovement(ctx, m)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}

func TestAdjustReserved_RangeChecked(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, clock.System{})
	ctx := context.Background()

	branchID, ingredientID := id.New(), id.New()
	_, err := svc.ApplyMovement(ctx, receiptMovement(branchID, ingredientID, 10_0000))
	require.NoError(t, err)

	require.NoError(t, svc.AdjustReserved(ctx, branchID, ingredientID, 6_0000))

	// Reserving beyond on-hand is a programming error, not a business case.
	err = svc.AdjustReserved(ctx, branchID, ingredientID, 5_0000)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))

	err = svc.AdjustReserved(ctx, branchID, ingredientID, -7_0000)
	assert.True(t, apperror.IsCode(err, apperror.CodeInternal))

	require.NoError(t, svc.AdjustReserved(ctx, branchID, ingredientID, -6_0000))

	avail, err := svc.GetAvailable(ctx, branchID, ingredientID)
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(10_0000), avail)
}

func TestThresholdAlerts(t *testing.T) {
	repo := newMemRepo()
	notifier := &captureNotifier{}
	svc := NewService(repo, notifier, clock.System{})
	ctx := context.Background()

	branchID, ingredientID := id.New(), id.New()

	// Seed a row with a threshold.
	_, err := svc.ApplyMovement(ctx, receiptMovement(branchID, ingredientID, 10_0000))
	require.NoError(t, err)
	row := repo.rows[key(branchID, ingredientID)]
	row.Threshold = 5_0000
	repo.rows[key(branchID, ingredientID)] = row

	// Crossing at-or-below the threshold emits LOW_STOCK once.
	issue := receiptMovement(branchID, ingredientID, 5_0000)
	issue.TxnType = TxnIssue
	_, err = svc.ApplyMovement(ctx, issue)
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)
	assert.Equal(t, AlertLowStock, notifier.events[0].Kind)

	// Moving further below while already under the threshold stays silent.
	issue = receiptMovement(branchID, ingredientID, 2_0000)
	issue.TxnType = TxnIssue
	_, err = svc.ApplyMovement(ctx, issue)
	require.NoError(t, err)
	require.Len(t, notifier.events, 1)

	// Reaching zero emits OUT_OF_STOCK.
	issue = receiptMovement(branchID, ingredientID, 3_0000)
	issue.TxnType = TxnIssue
	_, err = svc.ApplyMovement(ctx, issue)
	require.NoError(t, err)
	require.Len(t, notifier.events, 2)
	assert.Equal(t, AlertOutOfStock, notifier.events[1].Kind)
}
