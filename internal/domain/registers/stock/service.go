package stock

import (
	"context"
	"fmt"

	"mise/internal/core/apperror"
	"mise/internal/core/clock"
	"mise/internal/core/id"
	"mise/internal/core/types"
	"mise/pkg/logger"
)

// Service is the inventory ledger. ApplyMovement is the only code path that
// changes Stock.Quantity; reservation code changes only ReservedQuantity via
// AdjustReserved. Transactions are managed by the caller: every mutating
// method expects to run inside an enclosing unit of work.
type Service struct {
	repo     Repository
	notifier Notifier
	clk      clock.Clock
}

// NewService creates a new ledger service. notifier may be nil (no alerting).
func NewService(repo Repository, notifier Notifier, clk clock.Clock) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		clk:      clk,
	}
}

// ApplyMovement applies one physical movement: it locks the Stock row
// (creating a zero row for first-seen pairs), computes the before/after
// snapshot, rejects decrements below zero, writes the row and appends exactly
// one ledger entry. Both writes share the caller's transaction.
func (s *Service) ApplyMovement(ctx context.Context, m Movement) (InventoryTransaction, error) {
	if err := s.validateMovement(m); err != nil {
		return InventoryTransaction{}, err
	}

	current, err := s.repo.GetForUpdate(ctx, m.BranchID, m.IngredientID)
	if err != nil {
		return InventoryTransaction{}, fmt.Errorf("lock stock row: %w", err)
	}

	var qtyIn, qtyOut types.Quantity
	if m.TxnType.IsInbound() {
		qtyIn = m.Quantity
	} else {
		qtyOut = m.Quantity
	}

	beforeQty := current.Quantity
	afterQty := beforeQty + qtyIn - qtyOut

	if afterQty.IsNegative() && m.TxnType.ChecksNegative() {
		return InventoryTransaction{}, apperror.NewNegativeStock(
			m.IngredientID.String(), beforeQty.Float64(), m.Quantity.Float64())
	}

	now := s.clk.Now()

	updated := current
	updated.BranchID = m.BranchID
	updated.IngredientID = m.IngredientID
	updated.Quantity = afterQty
	updated.UpdatedAt = now
	if updated.Unit == "" {
		updated.Unit = m.Unit
	}

	if err := s.repo.Upsert(ctx, updated); err != nil {
		return InventoryTransaction{}, fmt.Errorf("write stock: %w", err)
	}

	txn := InventoryTransaction{
		ID:               id.New(),
		BranchID:         m.BranchID,
		IngredientID:     m.IngredientID,
		TxnType:          m.TxnType,
		QtyIn:            qtyIn,
		QtyOut:           qtyOut,
		BeforeQty:        beforeQty,
		AfterQty:         afterQty,
		UnitPrice:        m.UnitPrice,
		LineTotal:        types.RoundCost(m.UnitPrice.Mul(m.Quantity.Decimal())),
		RefType:          m.Ref.Type,
		RefID:            m.Ref.ID,
		ConversionFactor: m.ConversionFactor,
		CreatedAt:        now,
	}

	if err := s.repo.AppendTransaction(ctx, txn); err != nil {
		return InventoryTransaction{}, fmt.Errorf("append transaction: %w", err)
	}

	s.emitThresholdAlerts(ctx, current, updated)

	logger.Debug(ctx, "applied stock movement",
		"branch_id", m.BranchID,
		"ingredient_id", m.IngredientID,
		"txn_type", m.TxnType,
		"before", beforeQty.String(),
		"after", afterQty.String(),
	)

	return txn, nil
}

func (s *Service) validateMovement(m Movement) error {
	if !m.TxnType.Valid() {
		return apperror.NewValidation(fmt.Sprintf("unknown movement type %q", m.TxnType))
	}
	if !m.Quantity.IsPositive() {
		return apperror.NewValidation("movement quantity must be positive").
			WithDetail("ingredient_id", m.IngredientID)
	}
	if id.IsNil(m.BranchID) || id.IsNil(m.IngredientID) {
		return apperror.NewValidation("branch and ingredient are required")
	}
	if m.Ref.Type == "" || id.IsNil(m.Ref.ID) {
		return apperror.NewValidation("movement requires a document reference")
	}
	return nil
}

// GetForUpdate exposes the locked read for coordinators (reservations,
// receipts) that check-then-write against the same row.
func (s *Service) GetForUpdate(ctx context.Context, branchID, ingredientID id.ID) (Stock, error) {
	return s.repo.GetForUpdate(ctx, branchID, ingredientID)
}

// AdjustReserved changes the reserved quantity under the row lock the caller
// already holds. It never touches on-hand quantity. The caller has validated
// that the resulting reserved quantity stays within [0, quantity].
func (s *Service) AdjustReserved(ctx context.Context, branchID, ingredientID id.ID, delta types.Quantity) error {
	if delta.IsZero() {
		return nil
	}

	before, err := s.repo.GetForUpdate(ctx, branchID, ingredientID)
	if err != nil {
		return fmt.Errorf("lock stock row: %w", err)
	}

	reserved := before.ReservedQuantity + delta
	if reserved.IsNegative() || reserved > before.Quantity {
		return apperror.NewInternal(fmt.Errorf(
			"reserved quantity out of range: %s + %s against on-hand %s",
			before.ReservedQuantity, delta, before.Quantity))
	}

	now := s.clk.Now()
	if err := s.repo.AdjustReserved(ctx, branchID, ingredientID, delta, now); err != nil {
		return fmt.Errorf("adjust reserved: %w", err)
	}

	after := before
	after.ReservedQuantity = reserved
	after.UpdatedAt = now
	s.emitThresholdAlerts(ctx, before, after)

	return nil
}

// GetAvailable returns quantity minus reserved for the pair.
func (s *Service) GetAvailable(ctx context.Context, branchID, ingredientID id.ID) (types.Quantity, error) {
	row, err := s.repo.Get(ctx, branchID, ingredientID)
	if err != nil {
		return 0, fmt.Errorf("get stock: %w", err)
	}
	return row.Available(), nil
}

// GetStock returns the current row for the pair.
func (s *Service) GetStock(ctx context.Context, branchID, ingredientID id.ID) (Stock, error) {
	return s.repo.Get(ctx, branchID, ingredientID)
}

// ListStock returns all non-zero stock rows for a branch.
func (s *Service) ListStock(ctx context.Context, branchID id.ID) ([]Stock, error) {
	return s.repo.ListByBranch(ctx, branchID, true)
}

// GetHistory returns ledger entries for the pair, newest first.
func (s *Service) GetHistory(ctx context.Context, branchID, ingredientID id.ID, filter TxnFilter) ([]InventoryTransaction, error) {
	return s.repo.ListTransactions(ctx, branchID, ingredientID, filter)
}

// CheckLedgerConsistency verifies that the ledger sum matches the stored
// on-hand quantity for the pair. Maintenance/diagnostic use.
func (s *Service) CheckLedgerConsistency(ctx context.Context, branchID, ingredientID id.ID) error {
	row, err := s.repo.Get(ctx, branchID, ingredientID)
	if err != nil {
		return fmt.Errorf("get stock: %w", err)
	}

	sum, err := s.repo.SumSigned(ctx, branchID, ingredientID)
	if err != nil {
		return fmt.Errorf("sum ledger: %w", err)
	}

	if sum != row.Quantity {
		return apperror.NewInternal(fmt.Errorf(
			"ledger drift for %s/%s: ledger sum %s, stock %s",
			branchID, ingredientID, sum, row.Quantity))
	}
	return nil
}

// emitThresholdAlerts notifies the alerting collaborator when availability
// crosses at or below the reorder threshold, or reaches zero. Fire-and-forget:
// delivery failure is logged, never returned.
func (s *Service) emitThresholdAlerts(ctx context.Context, before, after Stock) {
	if s.notifier == nil {
		return
	}

	beforeAvail := before.Available()
	afterAvail := after.Available()

	var events []AlertEvent
	if afterAvail.IsZero() && !beforeAvail.IsZero() {
		events = append(events, AlertEvent{
			Kind:         AlertOutOfStock,
			BranchID:     after.BranchID,
			IngredientID: after.IngredientID,
			Available:    afterAvail,
			Threshold:    after.Threshold,
			Unit:         after.Unit,
			At:           after.UpdatedAt,
		})
	} else if after.Threshold.IsPositive() && afterAvail <= after.Threshold && beforeAvail > after.Threshold {
		events = append(events, AlertEvent{
			Kind:         AlertLowStock,
			BranchID:     after.BranchID,
			IngredientID: after.IngredientID,
			Available:    afterAvail,
			Threshold:    after.Threshold,
			Unit:         after.Unit,
			At:           after.UpdatedAt,
		})
	}

	for _, ev := range events {
		if err := s.notifier.Notify(ctx, ev); err != nil {
			logger.Warn(ctx, "stock alert delivery failed",
				"kind", ev.Kind,
				"branch_id", ev.BranchID,
				"ingredient_id", ev.IngredientID,
				"error", err,
			)
		}
	}
}
