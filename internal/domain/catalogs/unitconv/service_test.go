package unitconv

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mise/internal/core/apperror"
	"mise/internal/core/id"
	"mise/internal/core/types"
)

type fakeRepo struct {
	branch *Conversion
	global *Conversion
}

func (f *fakeRepo) FindActiveBranch(_ context.Context, _, _ id.ID, _, _ string) (*Conversion, error) {
	return f.branch, nil
}

func (f *fakeRepo) FindActiveGlobal(_ context.Context, _ id.ID, _, _ string) (*Conversion, error) {
	return f.global, nil
}

func TestResolveFactor_BranchBeatsGlobal(t *testing.T) {
	repo := &fakeRepo{
		branch: &Conversion{Factor: decimal.RequireFromString("950")},
		global: &Conversion{Factor: decimal.RequireFromString("1000")},
	}
	r := NewResolver(repo)

	factor, err := r.ResolveFactor(context.Background(), id.New(), id.New(), "box", "g")
	require.NoError(t, err)
	assert.True(t, factor.Equal(decimal.RequireFromString("950")))
}

func TestResolveFactor_GlobalFallback(t *testing.T) {
	repo := &fakeRepo{
		global: &Conversion{Factor: decimal.RequireFromString("1000")},
	}
	r := NewResolver(repo)

	factor, err := r.ResolveFactor(context.Background(), id.New(), id.New(), "kg", "g")
	require.NoError(t, err)
	assert.True(t, factor.Equal(decimal.RequireFromString("1000")))
}

func TestResolveFactor_IdentityOnlyForEqualUnits(t *testing.T) {
	r := NewResolver(&fakeRepo{})

	factor, err := r.ResolveFactor(context.Background(), id.New(), id.New(), "g", "g")
	require.NoError(t, err)
	assert.True(t, factor.Equal(decimal.NewFromInt(1)))

	_, err = r.ResolveFactor(context.Background(), id.New(), id.New(), "kg", "g")
	require.Error(t, err)
	assert.True(t, apperror.IsCode(err, apperror.CodeConversionNotFound))
}

func TestToBase_RoundsHalfUpAtFourDigits(t *testing.T) {
	repo := &fakeRepo{
		global: &Conversion{Factor: decimal.RequireFromString("0.333333")},
	}
	r := NewResolver(repo)

	// 1.0000 * 0.333333 = 0.333333 -> 0.3333
	qty, factor, err := r.ToBase(context.Background(), id.New(), id.New(), types.Quantity(1_0000), "piece", "kg")
	require.NoError(t, err)
	assert.Equal(t, types.Quantity(3333), qty)
	assert.True(t, factor.Equal(decimal.RequireFromString("0.333333")))
}
