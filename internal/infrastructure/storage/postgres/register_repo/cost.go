package register_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/internal/domain/registers/cost"
	"mise/internal/infrastructure/storage/postgres"
)

const costsTable = "inv_costs"

// CostRepo implements cost.Repository.
type CostRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewCostRepo creates a new cost register repository.
func NewCostRepo(txm *postgres.TxManager) *CostRepo {
	return &CostRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// Get returns the current cost row, or a zero-cost row for first-seen pairs.
func (r *CostRepo) Get(ctx context.Context, branchID, ingredientID id.ID) (cost.InventoryCost, error) {
	q := r.builder.Select("branch_id", "ingredient_id", "avg_cost", "updated_at").
		From(costsTable).
		Where(squirrel.Eq{
			"branch_id":     branchID,
			"ingredient_id": ingredientID,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return cost.InventoryCost{}, fmt.Errorf("build query: %w", err)
	}

	var row cost.InventoryCost
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return cost.InventoryCost{
				BranchID:     branchID,
				IngredientID: ingredientID,
				AvgCost:      types.ZeroMoney(),
			}, nil
		}
		return cost.InventoryCost{}, fmt.Errorf("get cost: %w", err)
	}

	return row, nil
}

// Upsert supersedes the cost row in place.
func (r *CostRepo) Upsert(ctx context.Context, c cost.InventoryCost) error {
	sql := `
		INSERT INTO inv_costs (branch_id, ingredient_id, avg_cost, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (branch_id, ingredient_id) DO UPDATE
		SET avg_cost = EXCLUDED.avg_cost,
		    updated_at = EXCLUDED.updated_at
	`

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, c.BranchID, c.IngredientID, c.AvgCost, c.UpdatedAt); err != nil {
		return fmt.Errorf("upsert cost: %w", err)
	}

	return nil
}

var _ cost.Repository = (*CostRepo)(nil)
