package reservations

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"mise/internal/core/apperror"
	"mise/internal/core/clock"
	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/ingredient"
	"mise/internal/domain/catalogs/unitconv"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
	"mise/pkg/logger"
)

// Auditor records group commits for operator forensics. May be nil.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// Service is the reservation manager. Every mutating operation takes the
// stock row lock for the (branch, ingredient) pair before the read-check-write
// sequence, so concurrent reservations can never jointly overcommit stock.
type Service struct {
	repo        Repository
	ledger      *stock.Service
	costs       *cost.Service
	conv        *unitconv.Resolver
	ingredients ingredient.Repository
	txm         tx.Manager
	clk         clock.Clock
	audit       Auditor
}

// NewService creates a new reservation manager.
func NewService(
	repo Repository,
	ledger *stock.Service,
	costs *cost.Service,
	conv *unitconv.Resolver,
	ingredients ingredient.Repository,
	txm tx.Manager,
	clk clock.Clock,
	audit Auditor,
) *Service {
	return &Service{
		repo:        repo,
		ledger:      ledger,
		costs:       costs,
		conv:        conv,
		ingredients: ingredients,
		txm:         txm,
		clk:         clk,
		audit:       audit,
	}
}

// Reserve places or refreshes a hold. Re-reserving the same ingredient within
// a group updates the existing ACTIVE row instead of creating a second one;
// only the delta against the prior hold counts against availability.
// Fails with INSUFFICIENT_STOCK when the delta exceeds available quantity;
// no partial holds.
func (s *Service) Reserve(ctx context.Context, req ReserveRequest) (id.ID, error) {
	if err := validateReserve(req); err != nil {
		return id.Nil(), err
	}

	var reservationID id.ID
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		ing, err := s.ingredients.GetByID(ctx, req.IngredientID)
		if err != nil {
			return fmt.Errorf("get ingredient: %w", err)
		}
		if ing == nil || !ing.Active {
			return apperror.NewNotFound("ingredient", req.IngredientID)
		}

		baseQty, _, err := s.conv.ToBase(ctx, req.IngredientID, req.BranchID, req.Quantity, req.Unit, ing.BaseUnit)
		if err != nil {
			return err
		}

		row, err := s.ledger.GetForUpdate(ctx, req.BranchID, req.IngredientID)
		if err != nil {
			return fmt.Errorf("lock stock row: %w", err)
		}

		existing, err := s.repo.GetActive(ctx, req.GroupID, req.IngredientID)
		if err != nil {
			return fmt.Errorf("get active reservation: %w", err)
		}

		var prior types.Quantity
		if existing != nil {
			if existing.BranchID != req.BranchID {
				return apperror.NewValidation("reservation group already holds this ingredient at another branch").
					WithDetail("reservation_group_id", req.GroupID)
			}
			prior = existing.QuantityReserved
		}

		delta := baseQty - prior
		if delta > row.Available() {
			return apperror.NewInsufficientStock(
				req.IngredientID.String(),
				baseQty.Float64(),
				(row.Available() + prior).Float64(),
			)
		}

		now := s.clk.Now()
		expiresAt := now.Add(req.TTL)

		if existing != nil {
			existing.QuantityReserved = baseQty
			existing.ExpiresAt = expiresAt
			existing.UpdatedAt = now
			rows, err := s.repo.UpdateActive(ctx, *existing)
			if err != nil {
				return fmt.Errorf("update reservation: %w", err)
			}
			if rows == 0 {
				return apperror.NewInternal(fmt.Errorf("reservation %s left ACTIVE under lock", existing.ID))
			}
			reservationID = existing.ID
		} else {
			created := StockReservation{
				ID:               id.New(),
				GroupID:          req.GroupID,
				BranchID:         req.BranchID,
				IngredientID:     req.IngredientID,
				QuantityReserved: baseQty,
				Unit:             ing.BaseUnit,
				ExpiresAt:        expiresAt,
				Status:           StatusActive,
				OrderID:          req.OrderID,
				CartID:           req.CartID,
				GuestID:          req.GuestID,
				CreatedAt:        now,
				UpdatedAt:        now,
			}
			if err := s.repo.Create(ctx, created); err != nil {
				return fmt.Errorf("create reservation: %w", err)
			}
			reservationID = created.ID
		}

		if err := s.ledger.AdjustReserved(ctx, req.BranchID, req.IngredientID, delta); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		return id.Nil(), err
	}

	logger.Info(ctx, "stock reserved",
		"reservation_id", reservationID,
		"group_id", req.GroupID,
		"ingredient_id", req.IngredientID,
	)

	return reservationID, nil
}

// CommitGroup converts every ACTIVE hold in the group into a physical ISSUE,
// all-or-nothing: if any hold cannot be committed the whole group rolls back
// with COMMIT_FAILURE and no partial deduction occurs. Issues are valued at
// the current average cost. Returns the number of committed holds.
func (s *Service) CommitGroup(ctx context.Context, groupID string) (int, error) {
	if groupID == "" {
		return 0, apperror.NewValidation("reservation group id is required")
	}

	var committed int
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		committed = 0
		holds, err := s.repo.ListActiveByGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("list active reservations: %w", err)
		}

		// Deterministic lock order across concurrent groups.
		sort.Slice(holds, func(i, j int) bool {
			return holds[i].IngredientID.String() < holds[j].IngredientID.String()
		})

		now := s.clk.Now()
		for _, hold := range holds {
			row, err := s.ledger.GetForUpdate(ctx, hold.BranchID, hold.IngredientID)
			if err != nil {
				return fmt.Errorf("lock stock row: %w", err)
			}

			rows, err := s.repo.MarkCommitted(ctx, hold.ID, now)
			if err != nil {
				return fmt.Errorf("mark committed: %w", err)
			}
			if rows == 0 {
				return apperror.NewCommitFailure(groupID,
					"reservation was released or expired before commit").
					WithDetail("reservation_id", hold.ID)
			}

			// Held stock vanishing means the single-writer discipline was
			// broken somewhere; refuse the whole group.
			if row.Quantity < hold.QuantityReserved {
				return apperror.NewCommitFailure(groupID,
					"held stock no longer on hand").
					WithDetail("reservation_id", hold.ID).
					WithDetail("on_hand", row.Quantity.String()).
					WithDetail("held", hold.QuantityReserved.String())
			}

			avgCost, err := s.costs.Get(ctx, hold.BranchID, hold.IngredientID)
			if err != nil {
				return err
			}

			if _, err := s.ledger.ApplyMovement(ctx, stock.Movement{
				BranchID:         hold.BranchID,
				IngredientID:     hold.IngredientID,
				TxnType:          stock.TxnIssue,
				Quantity:         hold.QuantityReserved,
				Unit:             hold.Unit,
				UnitPrice:        avgCost,
				Ref:              stock.DocRef{Type: "Reservation", ID: hold.ID},
				ConversionFactor: decimal.NewFromInt(1),
			}); err != nil {
				return err
			}

			if err := s.ledger.AdjustReserved(ctx, hold.BranchID, hold.IngredientID, hold.QuantityReserved.Neg()); err != nil {
				return err
			}

			committed++
		}

		if s.audit != nil && committed > 0 {
			if err := s.audit.LogChange(ctx, "ReservationGroup", holds[0].ID, "commit", map[string]any{
				"group_id": groupID,
				"holds":    committed,
			}); err != nil {
				logger.Warn(ctx, "audit log failed", "group_id", groupID, "error", err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, err
	}

	logger.Info(ctx, "reservation group committed",
		"group_id", groupID,
		"count", committed,
	)

	return committed, nil
}

// ReleaseGroup releases every ACTIVE hold in the group and returns the count.
// Idempotent: already released or committed holds are skipped, never errors.
func (s *Service) ReleaseGroup(ctx context.Context, groupID string) (int, error) {
	if groupID == "" {
		return 0, apperror.NewValidation("reservation group id is required")
	}

	var released int
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		released = 0
		holds, err := s.repo.ListActiveByGroup(ctx, groupID)
		if err != nil {
			return fmt.Errorf("list active reservations: %w", err)
		}

		sort.Slice(holds, func(i, j int) bool {
			return holds[i].IngredientID.String() < holds[j].IngredientID.String()
		})

		for _, hold := range holds {
			ok, err := s.releaseLocked(ctx, hold)
			if err != nil {
				return err
			}
			if ok {
				released++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if released > 0 {
		logger.Info(ctx, "reservation group released",
			"group_id", groupID,
			"count", released,
		)
	}

	return released, nil
}

// Release releases a single reservation by id. Idempotent: a missing,
// already released or already committed reservation is a no-op.
func (s *Service) Release(ctx context.Context, reservationID id.ID) error {
	return s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		hold, err := s.repo.GetByID(ctx, reservationID)
		if err != nil {
			return fmt.Errorf("get reservation: %w", err)
		}
		if hold == nil || hold.Status != StatusActive {
			return nil
		}
		_, err = s.releaseLocked(ctx, *hold)
		return err
	})
}

// releaseLocked takes the stock row lock, transitions ACTIVE->RELEASED and
// returns the hold to available stock. Returns false when the row had
// already left ACTIVE (lost race with a commit or another release).
func (s *Service) releaseLocked(ctx context.Context, hold StockReservation) (bool, error) {
	if _, err := s.ledger.GetForUpdate(ctx, hold.BranchID, hold.IngredientID); err != nil {
		return false, fmt.Errorf("lock stock row: %w", err)
	}

	rows, err := s.repo.MarkReleased(ctx, hold.ID, s.clk.Now())
	if err != nil {
		return false, fmt.Errorf("mark released: %w", err)
	}
	if rows == 0 {
		return false, nil
	}

	if err := s.ledger.AdjustReserved(ctx, hold.BranchID, hold.IngredientID, hold.QuantityReserved.Neg()); err != nil {
		return false, err
	}

	return true, nil
}

func validateReserve(req ReserveRequest) error {
	if req.GroupID == "" {
		return apperror.NewValidation("reservation group id is required")
	}
	if id.IsNil(req.BranchID) || id.IsNil(req.IngredientID) {
		return apperror.NewValidation("branch and ingredient are required")
	}
	if !req.Quantity.IsPositive() {
		return apperror.NewValidation("reservation quantity must be positive")
	}
	if req.Unit == "" {
		return apperror.NewValidation("unit is required")
	}
	if req.TTL <= 0 {
		return apperror.NewValidation("reservation ttl must be positive")
	}
	return nil
}
