package reservations

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/pkg/logger"
)

func newSweeperFixture(t *testing.T) (*fixture, *Sweeper) {
	t.Helper()
	f := newFixture(t)
	sweeper := NewSweeper(f.svc, f.clk, SweeperConfig{
		SweepInterval: time.Minute,
		PurgeInterval: time.Hour,
		Retention:     time.Hour,
		BatchSize:     100,
	}, logger.Default())
	return f, sweeper
}

func TestSweepOnce_ReleasesExpiredHolds(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	req := reserveReq("cart-1", branchID, ingredientID, 6_0000)
	req.TTL = 10 * time.Minute
	resID, err := f.svc.Reserve(ctx, req)
	require.NoError(t, err)

	// Before expiry nothing happens.
	released, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, released)

	f.clk.Advance(11 * time.Minute)

	released, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, released)

	hold, err := f.resRepo.GetByID(ctx, resID)
	require.NoError(t, err)
	assert.Equal(t, StatusReleased, hold.Status)
	assert.Equal(t, types.Quantity(0), f.stockRepo.rows[skey(branchID, ingredientID)].ReservedQuantity)

	// Idempotent against a second pass.
	released, err = sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestSweepOnce_RefreshedHoldSurvives(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	req := reserveReq("cart-1", branchID, ingredientID, 6_0000)
	req.TTL = 10 * time.Minute
	_, err := f.svc.Reserve(ctx, req)
	require.NoError(t, err)

	// Re-reserving pushes expiry forward from now.
	f.clk.Advance(8 * time.Minute)
	_, err = f.svc.Reserve(ctx, req)
	require.NoError(t, err)

	f.clk.Advance(8 * time.Minute)

	released, err := sweeper.SweepOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, released)
}

func TestPurgeOnce_DeletesOldReleasedRows(t *testing.T) {
	f, sweeper := newSweeperFixture(t)
	ctx := context.Background()
	branchID, ingredientID := id.New(), id.New()
	f.seedStock(t, branchID, ingredientID, 10_0000)

	resID, err := f.svc.Reserve(ctx, reserveReq("cart-1", branchID, ingredientID, 6_0000))
	require.NoError(t, err)
	require.NoError(t, f.svc.Release(ctx, resID))

	// Inside the retention window the row stays.
	purged, err := sweeper.PurgeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), purged)

	f.clk.Advance(2 * time.Hour)

	purged, err = sweeper.PurgeOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), purged)

	hold, err := f.resRepo.GetByID(ctx, resID)
	require.NoError(t, err)
	assert.Nil(t, hold)
}
