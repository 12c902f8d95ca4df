package catalog_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/id"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/infrastructure/storage/postgres"
)

const ingredientsTable = "cat_ingredients"

// IngredientRepo implements ingredient.Repository.
type IngredientRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewIngredientRepo creates a new ingredient catalog repository.
func NewIngredientRepo(txm *postgres.TxManager) *IngredientRepo {
	return &IngredientRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetByID returns the catalog entry, or (nil, nil) when absent.
func (r *IngredientRepo) GetByID(ctx context.Context, ingredientID id.ID) (*ingredient.Ingredient, error) {
	q := r.builder.Select("id", "name", "base_unit", "active", "created_at").
		From(ingredientsTable).
		Where(squirrel.Eq{"id": ingredientID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row ingredient.Ingredient
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ingredient: %w", err)
	}

	return &row, nil
}

var _ ingredient.Repository = (*IngredientRepo)(nil)
