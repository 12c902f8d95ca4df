// Package catalog_repo provides PostgreSQL implementations for catalog
// repositories.
package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/id"
	"mise/internal/domain/catalogs/unitconv"
	"mise/internal/infrastructure/storage/postgres"
)

const conversionsTable = "cat_unit_conversions"

var conversionColumns = []string{
	"id", "ingredient_id", "branch_id", "from_unit", "to_unit",
	"factor", "active", "created_at",
}

// UnitConversionRepo implements unitconv.Repository.
type UnitConversionRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewUnitConversionRepo creates a new unit conversion repository.
func NewUnitConversionRepo(txm *postgres.TxManager) *UnitConversionRepo {
	return &UnitConversionRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// FindActiveBranch returns the active branch-scoped rule, or (nil, nil).
func (r *UnitConversionRepo) FindActiveBranch(ctx context.Context, ingredientID, branchID id.ID, fromUnit, toUnit string) (*unitconv.Conversion, error) {
	q := r.baseQuery(ingredientID, fromUnit, toUnit).
		Where(squirrel.Eq{"branch_id": branchID})

	return r.findOne(ctx, q)
}

// FindActiveGlobal returns the active global rule, or (nil, nil).
func (r *UnitConversionRepo) FindActiveGlobal(ctx context.Context, ingredientID id.ID, fromUnit, toUnit string) (*unitconv.Conversion, error) {
	q := r.baseQuery(ingredientID, fromUnit, toUnit).
		Where("branch_id IS NULL")

	return r.findOne(ctx, q)
}

func (r *UnitConversionRepo) baseQuery(ingredientID id.ID, fromUnit, toUnit string) squirrel.SelectBuilder {
	return r.builder.Select(conversionColumns...).
		From(conversionsTable).
		Where(squirrel.Eq{
			"ingredient_id": ingredientID,
			"from_unit":     fromUnit,
			"to_unit":       toUnit,
			"active":        true,
		}).
		OrderBy("created_at DESC").
		Limit(1)
}

func (r *UnitConversionRepo) findOne(ctx context.Context, q squirrel.SelectBuilder) (*unitconv.Conversion, error) {
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row unitconv.Conversion
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("find conversion: %w", err)
	}

	return &row, nil
}

var _ unitconv.Repository = (*UnitConversionRepo)(nil)
