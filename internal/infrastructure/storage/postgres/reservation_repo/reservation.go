// Package reservation_repo provides the PostgreSQL implementation for the
// reservation repository.
package reservation_repo

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"mise/internal/core/id"
	"mise/internal/domain/reservations"
	"mise/internal/infrastructure/storage/postgres"
)

const reservationsTable = "inv_reservations"

var reservationColumns = []string{
	"id", "group_id", "branch_id", "ingredient_id", "quantity_reserved",
	"unit", "expires_at", "status", "order_id", "cart_id", "guest_id",
	"created_at", "updated_at",
}

// ReservationRepo implements reservations.Repository.
type ReservationRepo struct {
	txm     *postgres.TxManager
	builder squirrel.StatementBuilderType
}

// NewReservationRepo creates a new reservation repository.
func NewReservationRepo(txm *postgres.TxManager) *ReservationRepo {
	return &ReservationRepo{
		txm:     txm,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// GetActive returns the single ACTIVE row for (groupID, ingredientID).
func (r *ReservationRepo) GetActive(ctx context.Context, groupID string, ingredientID id.ID) (*reservations.StockReservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{
			"group_id":      groupID,
			"ingredient_id": ingredientID,
			"status":        reservations.StatusActive,
		}).Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row reservations.StockReservation
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active reservation: %w", err)
	}

	return &row, nil
}

// ListActiveByGroup returns all ACTIVE rows in the group.
func (r *ReservationRepo) ListActiveByGroup(ctx context.Context, groupID string) ([]reservations.StockReservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{
			"group_id": groupID,
			"status":   reservations.StatusActive,
		}).
		OrderBy("ingredient_id")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []reservations.StockReservation
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list active reservations: %w", err)
	}

	return rows, nil
}

// Create inserts a new ACTIVE row.
func (r *ReservationRepo) Create(ctx context.Context, res reservations.StockReservation) error {
	q := r.builder.Insert(reservationsTable).
		Columns(reservationColumns...).
		Values(
			res.ID, res.GroupID, res.BranchID, res.IngredientID,
			res.QuantityReserved.Int64Scaled(), res.Unit, res.ExpiresAt, res.Status,
			res.OrderID, res.CartID, res.GuestID,
			res.CreatedAt, res.UpdatedAt,
		)

	sql, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	if _, err := querier.Exec(ctx, sql, args...); err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}

	return nil
}

// UpdateActive rewrites quantity and expiry of an ACTIVE row.
func (r *ReservationRepo) UpdateActive(ctx context.Context, res reservations.StockReservation) (int64, error) {
	q := r.builder.Update(reservationsTable).
		Set("quantity_reserved", res.QuantityReserved.Int64Scaled()).
		Set("expires_at", res.ExpiresAt).
		Set("order_id", res.OrderID).
		Set("cart_id", res.CartID).
		Set("guest_id", res.GuestID).
		Set("updated_at", res.UpdatedAt).
		Where(squirrel.Eq{
			"id":     res.ID,
			"status": reservations.StatusActive,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build update: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("update reservation: %w", err)
	}

	return tag.RowsAffected(), nil
}

// MarkCommitted transitions ACTIVE->COMMITTED.
func (r *ReservationRepo) MarkCommitted(ctx context.Context, reservationID id.ID, now time.Time) (int64, error) {
	return r.transition(ctx, reservationID, reservations.StatusCommitted, now)
}

// MarkReleased transitions ACTIVE->RELEASED.
func (r *ReservationRepo) MarkReleased(ctx context.Context, reservationID id.ID, now time.Time) (int64, error) {
	return r.transition(ctx, reservationID, reservations.StatusReleased, now)
}

func (r *ReservationRepo) transition(ctx context.Context, reservationID id.ID, to reservations.Status, now time.Time) (int64, error) {
	q := r.builder.Update(reservationsTable).
		Set("status", to).
		Set("updated_at", now).
		Where(squirrel.Eq{
			"id":     reservationID,
			"status": reservations.StatusActive,
		})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build transition: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("transition reservation to %s: %w", to, err)
	}

	return tag.RowsAffected(), nil
}

// GetByID returns a reservation in any status.
func (r *ReservationRepo) GetByID(ctx context.Context, reservationID id.ID) (*reservations.StockReservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{"id": reservationID}).
		Limit(1)

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var row reservations.StockReservation
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &row, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}

	return &row, nil
}

// ListExpired returns ACTIVE rows with expires_at strictly before now.
func (r *ReservationRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]reservations.StockReservation, error) {
	q := r.builder.Select(reservationColumns...).
		From(reservationsTable).
		Where(squirrel.Eq{"status": reservations.StatusActive}).
		Where(squirrel.Lt{"expires_at": now}).
		OrderBy("expires_at")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var rows []reservations.StockReservation
	querier := r.txm.GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &rows, sql, args...); err != nil {
		return nil, fmt.Errorf("list expired reservations: %w", err)
	}

	return rows, nil
}

// DeleteReleasedBefore hard-deletes RELEASED rows last touched before cutoff.
func (r *ReservationRepo) DeleteReleasedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	q := r.builder.Delete(reservationsTable).
		Where(squirrel.Eq{"status": reservations.StatusReleased}).
		Where(squirrel.Lt{"updated_at": cutoff})

	sql, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete: %w", err)
	}

	querier := r.txm.GetQuerier(ctx)
	tag, err := querier.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("purge released reservations: %w", err)
	}

	return tag.RowsAffected(), nil
}

var _ reservations.Repository = (*ReservationRepo)(nil)
