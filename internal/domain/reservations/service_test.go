package reservations

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/clock"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/catalogs/unitconv"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
)

// --- fakes ---

// passTxm runs the unit of work directly; atomicity is the real TxManager's
// concern, the service tests only exercise the sequencing.
type passTxm struct{}

func (passTxm) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type memStockRepo struct {
	rows map[string]stock.Stock
	txns []stock.InventoryTransaction
}

func newMemStockRepo() *memStockRepo {
	return &memStockRepo{rows: make(map[string]stock.Stock)}
}

func skey(branchID, ingredientID id.ID) string {
	return branchID.String() + "/" + ingredientID.String()
}

func (r *memStockRepo) Get(_ context.Context, branchID, ingredientID id.ID) (stock.Stock, error) {
	if row, ok := r.rows[skey(branchID, ingredientID)]; ok {
		return row, nil
	}
	return stock.Stock{BranchID: branchID, IngredientID: ingredientID}, nil
}

func (r *memStockRepo) GetForUpdate(ctx context.Context, branchID, ingredientID id.ID) (stock.Stock, error) {
	return r.Get(ctx, branchID, ingredientID)
}

func (r *memStockRepo) Upsert(_ context.Context, s stock.Stock) error {
	r.rows[skey(s.BranchID, s.IngredientID)] = s
	return nil
}

func (r *memStockRepo) AdjustReserved(_ context.Context, branchID, ingredientID id.ID, delta types.Quantity, now time.Time) error {
	row := r.rows[skey(branchID, ingredientID)]
	row.BranchID = branchID
	row.IngredientID = ingredientID
	row.ReservedQuantity += delta
	row.UpdatedAt = now
	r.rows[skey(branchID, ingredientID)] = row
	return nil
}

func (r *memStockRepo) AppendTransaction(_ context.Context, txn stock.InventoryTransaction) error {
	r.txns = append(r.txns, txn)
	return nil
}

func (r *memStockRepo) ListTransactions(_ context.Context, _, _ id.ID, _ stock.TxnFilter) ([]stock.InventoryTransaction, error) {
	return r.txns, nil
}

func (r *memStockRepo) SumSigned(_ context.Context, branchID, ingredientID id.ID) (types.Quantity, error) {
	var sum types.Quantity
	for _, t := range r.txns {
		if t.BranchID == branchID && t.IngredientID == ingredientID {
			sum += t.Signed()
		}
	}
	return sum, nil
}

func (r *memStockRepo) ListByBranch(_ context.Context, _ id.ID, _ bool) ([]stock.Stock, error) {
	return nil, nil
}

type memCostRepo struct {
	rows map[string]cost.InventoryCost
}

func newMemCostRepo() *memCostRepo {
	return &memCostRepo{rows: make(map[string]cost.InventoryCost)}
}

func (r *memCostRepo) Get(_ context.Context, branchID, ingredientID id.ID) (cost.InventoryCost, error) {
	if row, ok := r.rows[skey(branchID, ingredientID)]; ok {
		return row, nil
	}
	return cost.InventoryCost{BranchID: branchID, IngredientID: ingredientID, AvgCost: types.ZeroMoney()}, nil
}

func (r *memCostRepo) Upsert(_ context.Context, c cost.InventoryCost) error {
	r.rows[skey(c.BranchID, c.IngredientID)] = c
	return nil
}

type memIngredientRepo struct {
	rows map[id.ID]ingredient.Ingredient
}

func newMemIngredientRepo() *memIngredientRepo {
	return &memIngredientRepo{rows: make(map[id.ID]ingredient.Ingredient)}
}

func (r *memIngredientRepo) GetByID(_ context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	if row, ok := r.rows[ingredientID]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

// identityConvRepo resolves nothing: only equal units convert (factor 1).
type identityConvRepo struct{}

func (identityConvRepo) FindActiveBranch(_ context.Context, _, _ id.ID, _, _ string) (*unitconv.Conversion, error) {
	return nil, nil
}

func (identityConvRepo) FindActiveGlobal(_ context.Context, _ id.ID, _, _ string) (*unitconv.Conversion, error) {
	return nil, nil
}

type memResRepo struct {
	rows map[id.ID]StockReservation
}

func newMemResRepo() *memResRepo {
	return &memResRepo{rows: make(map[id.ID]StockReservation)}
}

func (r *memResRepo) GetActive(_ context.Context, groupID string, ingredientID id.ID) (*StockReservation, error) {
	for _, row := range r.rows {
		if row.GroupID == groupID && row.IngredientID == ingredientID && row.Status == StatusActive {
			copied := row
			return &copied, nil
		}
	}
	return nil, nil
}

func (r *memResRepo) ListActiveByGroup(_ context.Context, groupID string) ([]StockReservation, error) {
	var out []StockReservation
	for _, row := range r.rows {
		if row.GroupID == groupID && row.Status == StatusActive {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID.String() < out[j].ID.String() })
	return out, nil
}

func (r *memResRepo) Create(_ context.Context, res StockReservation) error {
	r.rows[res.ID] = res
	return nil
}

func (r *memResRepo) UpdateActive(_ context.Context, res StockReservation) (int64, error) {
	existing, ok := r.rows[res.ID]
	if !ok || existing.Status != StatusActive {
		return 0, nil
	}
	r.rows[res.ID] = res
	return 1, nil
}

func (r *memResRepo) MarkCommitted(_ context.Context, reservationID id.ID, now time.Time) (int64, error) {
	return r.transition(reservationID, StatusCommitted, now)
}

func (r *memResRepo) MarkReleased(_ context.Context, reservationID id.ID, now time.Time) (int64, error) {
	return r.transition(reservationID, StatusReleased, now)
}

func (r *memResRepo) transition(reservationID id.ID, to Status, now time.Time) (int64, error) {
	row, ok := r.rows[reservationID]
	if !ok || row.Status != StatusActive {
		return 0, nil
	}
	row.Status = to
	row.UpdatedAt = now
	r.rows[reservationID] = row
	return 1, nil
}

func (r *memResRepo) GetByID(_ context.Context, reservationID id.ID) (*StockReservation, error) {
	if row, ok := r.rows[reservationID]; ok {
		copied := row
		return &copied, nil
	}
	return nil, nil
}

func (r *memResRepo) ListExpired(_ context.Context, now time.Time, limit int) ([]StockReservation, error) {
	var out []StockReservation
	for _, row := range r.rows {
		if row.Status == StatusActive && row.ExpiresAt.Before(now) {
			out = append(out, row)
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *memResRepo) DeleteReleasedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	for rid, row := range r.rows {
		if row.Status == StatusReleased && row.UpdatedAt.Before(cutoff) {
			delete(r.rows, rid)
			deleted++
		}
	}
	return deleted, nil
}

// --- fixture ---

type fixture struct {
	svc       *Service
	resRepo   *memResRepo
	stockRepo *memStockRepo
	ingRepo   *memIngredientRepo
	clk       *clock.Manual
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clk := clock.NewManual(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	stockRepo := newMemStockRepo()
	ledger := stock.NewService(stockRepo, nil, clk)
	costs := cost.NewService(newMemCostRepo(), clk)
	conv := unitconv.NewResolver(identityConvRepo{})
	resRepo := newMemResRepo()
	ingRepo := newMemIngredientRepo()

	svc := NewService(resRepo, ledger, costs, conv, ingRepo, passTxm{}, clk, nil)
	return &fixture{svc: svc, resRepo: resRepo, stockRepo: stockRepo, ingRepo: ingRepo, clk: clk}
}

func (f *fixture) seedStock(t *testing.T, branchID, ingredientID id.ID, qty types.Quantity) {
	t.Helper()
	f.ingRepo.rows[ingredientID] = ingredient.Ingredient{
		ID:       ingredientID,
		Name:     "flour",
		BaseUnit: "g",
		Active:   true,
	}
	f.stockRepo.rows[skey(branchID, ingredientID)] = stock.Stock{
		BranchID:     branchID,
		IngredientID: ingredientID,
		Quantity:     qty,
		Unit:         "g",
		UpdatedAt:    f.clk.Now(),
	}
}

func reserveReq(groupID string, branchID, ingredientID id.ID, qty types.Quantity) ReserveRequest {
	return ReserveRequest{
		GroupID:      groupID,
		BranchID:     branchID,
		IngredientID: ingredientID,
		Quantity:     qty,
		Unit:         "g",
		TTL:          10 * time.Minute,
	}
}

// --- tests ---

func TestReserve_HoldsAvailableStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	resID, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 6_0000))
	require.NoError(t, err)

	hold, err := f.resRepo.GetByID(ctx, resID)
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, StatusActive, hold.Status)
	assert.Equal(t, types.Quantity(6_0000), hold.QuantityReserved)
	assert.Equal(t, f.clk.Now().Add(10*time.Minute), hold.ExpiresAt)

	row := f.stockRepo.rows[skey(branchID, ingredientID)]
	assert.Equal(t, types.Quantity(6_0000), row.ReservedQuantity)
	assert.Equal(t, types.Quantity(10_0000), row.Quantity)
}

func TestReserve_UnknownIngredientRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID := id.New()

	// Never seeded: the catalog has no such ingredient.
	_, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, id.New(), 1_0000))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))

	// A deactivated catalog entry is rejected the same way.
	ingredientID := id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)
	row := f.ingRepo.rows[ingredientID]
	row.Active = false
	f.ingRepo.rows[ingredientID] = row

	_, err = f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 1_0000))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeNotFound))
}

func TestReserve_BaseUnitComesFromCatalog(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	resID, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 6_0000))
	require.NoError(t, err)

	hold, err := f.resRepo.GetByID(ctx, resID)
	require.NoError(t, err)
	require.NotNil(t, hold)
	assert.Equal(t, "g", hold.Unit)
}

func TestReserve_InsufficientStockLeavesNoHold(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 5_0000)

	_, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 6_0000))
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeInsufficientStock))

	holds, err := f.resRepo.ListActiveByGroup(ctx, "cart-1")
	require.NoError(t, err)
	assert.Empty(t, holds)
	assert.Equal(t, types.Quantity(0), f.stockRepo.rows[skey(branchID, ingredientID)].ReservedQuantity)
}

func TestReserve_UpdatesExistingHoldInPlace(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	firstID, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 8_0000))
	require.NoError(t, err)

	// Only the delta counts: raising 8 -> 10 fits 10 on hand.
	secondID, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 10_0000))
	require.NoError(t, err)
	assert.Equal(t, firstID, secondID)

	holds, err := f.resRepo.ListActiveByGroup(ctx, "cart-1")
	require.NoError(t, err)
	require.Len(t, holds, 1)
	assert.Equal(t, types.Quantity(10_0000), holds[0].QuantityReserved)
	assert.Equal(t, types.Quantity(10_0000), f.stockRepo.rows[skey(branchID, ingredientID)].ReservedQuantity)

	// Raising further exceeds on hand; the error reports availability as the
	// caller sees it, with their own hold folded back in.
	_, err = f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 11_0000))
	require.Error(t, err)
	appErr, ok := apperror.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperror.CodeInsufficientStock, appErr.Code)
	assert.Equal(t, 10.0, appErr.Details["available"])
}

func TestReserve_LoweringHoldFreesStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	_, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 8_0000))
	require.NoError(t, err)

	_, err = f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 3_0000))
	require.NoError(t, err)

	assert.Equal(t, types.Quantity(3_0000), f.stockRepo.rows[skey(branchID, ingredientID)].ReservedQuantity)

	// Another group can now take the freed 7.
	_, err = f.svc.Reserve(ctx, reserveReq("cart-2", branchID, ingredientID, 7_0000))
	require.NoError(t, err)
}

func TestCommitGroup_IssuesAtAverageCost(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID := id.New()
	ingA, ingB := id.New(), id.New()
	f.seedStock(t, branchID, ingA, 10_0000)
	f.seedStock(t, branchID, ingB, 4_0000)

	// Seed average costs the commits should be valued at.
	costRepo := newMemCostRepo()
	costRepo.rows[skey(branchID, ingA)] = cost.InventoryCost{BranchID: branchID, IngredientID: ingA, AvgCost: types.MustMoney("120.5")}
	f.svc.costs = cost.NewService(costRepo, f.clk)

	_, err := f.svc.Reserve(ctx, reserveReq("order-9", branchID, ingA, 6_0000))
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, reserveReq("order-9", branchID, ingB, 4_0000))
	require.NoError(t, err)

	committed, err := f.svc.CommitGroup(ctx, "order-9")
	require.NoError(t, err)
	assert.Equal(t, 2, committed)

	// Stock deducted and reservation cleared for both ingredients.
	rowA := f.stockRepo.rows[skey(branchID, ingA)]
	assert.Equal(t, types.Quantity(4_0000), rowA.Quantity)
	assert.Equal(t, types.Quantity(0), rowA.ReservedQuantity)
	rowB := f.stockRepo.rows[skey(branchID, ingB)]
	assert.Equal(t, types.Quantity(0), rowB.Quantity)
	assert.Equal(t, types.Quantity(0), rowB.ReservedQuantity)

	// Ledger rows are ISSUEs referencing the reservation, valued at avg cost.
	require.Len(t, f.stockRepo.txns, 2)
	for _, txn := range f.stockRepo.txns {
		assert.Equal(t, stock.TxnIssue, txn.TxnType)
		assert.Equal(t, "Reservation", txn.RefType)
	}
	var txnA stock.InventoryTransaction
	for _, txn := range f.stockRepo.txns {
		if txn.IngredientID == ingA {
			txnA = txn
		}
	}
	assert.Equal(t, "120.5", txnA.UnitPrice.String())

	// No ACTIVE holds remain.
	holds, err := f.resRepo.ListActiveByGroup(ctx, "order-9")
	require.NoError(t, err)
	assert.Empty(t, holds)
}

func TestCommitGroup_EmptyGroupIsZero(t *testing.T) {
	f := newFixture(t)

	committed, err := f.svc.CommitGroup(context.Background(), "nothing-here")
	require.NoError(t, err)
	assert.Equal(t, 0, committed)
}

func TestCommitGroup_AllOrNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID := id.New()
	ingA, ingB := id.New(), id.New()
	f.seedStock(t, branchID, ingA, 10_0000)
	f.seedStock(t, branchID, ingB, 4_0000)

	_, err := f.svc.Reserve(ctx, reserveReq("order-9", branchID, ingA, 6_0000))
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, reserveReq("order-9", branchID, ingB, 4_0000))
	require.NoError(t, err)

	// Break invariant behind the manager's back: held stock vanishes.
	row := f.stockRepo.rows[skey(branchID, ingB)]
	row.Quantity = 1_0000
	f.stockRepo.rows[skey(branchID, ingB)] = row

	_, err = f.svc.CommitGroup(ctx, "order-9")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeCommitFailure))
}

func TestRelease_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	resID, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 6_0000))
	require.NoError(t, err)

	require.NoError(t, f.svc.Release(ctx, resID))
	assert.Equal(t, types.Quantity(0), f.stockRepo.rows[skey(branchID, ingredientID)].ReservedQuantity)

	// Second release is a no-op, not an error, and must not double-return
	// the quantity.
	require.NoError(t, f.svc.Release(ctx, resID))
	assert.Equal(t, types.Quantity(0), f.stockRepo.rows[skey(branchID, ingredientID)].ReservedQuantity)

	// Releasing an unknown reservation is also a no-op.
	require.NoError(t, f.svc.Release(ctx, id.New()))
}

func TestReleaseGroup_CountsOnlyActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	branchID := id.New()
	ingA, ingB := id.New(), id.New()
	f.seedStock(t, branchID, ingA, 10_0000)
	f.seedStock(t, branchID, ingB, 10_0000)

	resA, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingA, 2_0000))
	require.NoError(t, err)
	_, err = f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingB, 3_0000))
	require.NoError(t, err)

	require.NoError(t, f.svc.Release(ctx, resA))

	released, err := f.svc.ReleaseGroup(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	released, err = f.svc.ReleaseGroup(ctx, "cart-1")
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestReserve_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := reserveReq("", id.New(), id.New(), 1_0000)
	_, err := f.svc.Reserve(ctx, req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	req = reserveReq("cart-1", id.New(), id.New(), 0)
	_, err = f.svc.Reserve(ctx, req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))

	req = reserveReq("cart-1", id.New(), id.New(), 1_0000)
	req.TTL = 0
	_, err = f.svc.Reserve(ctx, req)
	assert.True(t, apperror.IsCode(err, apperror.CodeValidation))
}
