package goods_receipt

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"mise/internal/core/apperror"
	"mise/internal/core/clock"
	"mise/internal/core/id"
	"mise/internal/core/tx"
	"mise/internal/core/types"
	"mise/internal/domain/catalogs/unitconv"
	"mise/internal/domain/documents/purchase_order"
	"mise/internal/domain/registers/cost"
	"mise/internal/domain/registers/stock"
	"mise/pkg/logger"
)

// Auditor records receipt creation for operator forensics. May be nil.
type Auditor interface {
	LogChange(ctx context.Context, entityType string, entityID id.ID, action string, changes map[string]any) error
}

// ReceiveLine is one incoming delivery line.
type ReceiveLine struct {
	POLineID   id.ID
	QtyInput   types.Quantity // in the PO line's unit
	Status     LineStatus
	DamageQty  types.Quantity
	LotNumber  string
	ExpiryDate *time.Time
}

// ReceiveRequest describes one physical delivery event.
type ReceiveRequest struct {
	POID       id.ID
	SupplierID id.ID
	BranchID   id.ID
	Lines      []ReceiveLine
}

// Service is the goods receipt processor. One Receive call is one unit of
// work: receipt document, ledger movements, cost recomputation and the
// purchase-order status update all commit together or not at all.
type Service struct {
	repo   Repository
	poRepo purchase_order.Repository
	conv   *unitconv.Resolver
	ledger *stock.Service
	costs  *cost.Service
	txm    tx.Manager
	clk    clock.Clock
	audit  Auditor
}

// NewService creates a new goods receipt processor.
func NewService(
	repo Repository,
	poRepo purchase_order.Repository,
	conv *unitconv.Resolver,
	ledger *stock.Service,
	costs *cost.Service,
	txm tx.Manager,
	clk clock.Clock,
	audit Auditor,
) *Service {
	return &Service{
		repo:   repo,
		poRepo: poRepo,
		conv:   conv,
		ledger: ledger,
		costs:  costs,
		txm:    txm,
		clk:    clk,
		audit:  audit,
	}
}

// plannedLine is a validated line ready to mutate state.
type plannedLine struct {
	detail   purchase_order.Detail
	line     ReceiveLine
	accepted types.Quantity
	baseQty  types.Quantity
	factor   decimal.Decimal
}

// Receive processes one delivery. Validation of every line happens before
// any write; the first violated precondition rejects the whole receipt.
func (s *Service) Receive(ctx context.Context, req ReceiveRequest) (id.ID, error) {
	if err := validateRequest(req); err != nil {
		return id.Nil(), err
	}

	var receiptID id.ID
	err := s.txm.RunInTransaction(ctx, func(ctx context.Context) error {
		poDetails, err := s.poRepo.ListDetails(ctx, req.POID)
		if err != nil {
			return fmt.Errorf("list po details: %w", err)
		}
		if len(poDetails) == 0 {
			return apperror.NewNotFound("purchase order", req.POID)
		}
		detailByLine := make(map[id.ID]purchase_order.Detail, len(poDetails))
		for _, d := range poDetails {
			detailByLine[d.ID] = d
		}

		prior, err := s.repo.ListDetailsByPO(ctx, req.POID)
		if err != nil {
			return fmt.Errorf("list prior receipts: %w", err)
		}
		soFar := make(map[id.ID]types.Quantity, len(prior))
		for _, d := range prior {
			soFar[d.POLineID] += d.QtyAccepted
		}

		// Phase 1: validate every line and resolve conversions. No writes.
		planned := make([]plannedLine, 0, len(req.Lines))
		for i, line := range req.Lines {
			poLine, ok := detailByLine[line.POLineID]
			if !ok {
				return apperror.NewValidation("receipt line does not reference a line of this purchase order").
					WithDetail("lineNo", i+1).
					WithDetail("po_line_id", line.POLineID)
			}

			remaining := poLine.OrderedQty - soFar[poLine.ID]
			if err := ValidateDisposition(line.Status, line.QtyInput, line.DamageQty, remaining, i+1); err != nil {
				return err
			}

			accepted := AcceptedQty(line.Status, line.QtyInput, remaining)

			var baseQty types.Quantity
			factor := decimal.NewFromInt(1)
			if accepted.IsPositive() {
				baseQty, factor, err = s.conv.ToBase(ctx, poLine.IngredientID, req.BranchID, accepted, poLine.Unit, poLine.BaseUnit)
				if err != nil {
					return err
				}
			}

			planned = append(planned, plannedLine{
				detail:   poLine,
				line:     line,
				accepted: accepted,
				baseQty:  baseQty,
				factor:   factor,
			})
		}

		// Phase 2: write the document, drive the ledger and the costs.
		now := s.clk.Now()
		doc := &GoodsReceipt{
			ID:         id.New(),
			POID:       req.POID,
			SupplierID: req.SupplierID,
			BranchID:   req.BranchID,
			CreatedAt:  now,
		}
		for _, p := range planned {
			doc.Details = append(doc.Details, GoodsReceiptDetail{
				ID:           id.New(),
				ReceiptID:    doc.ID,
				POLineID:     p.detail.ID,
				IngredientID: p.detail.IngredientID,
				QtyInput:     p.line.QtyInput,
				QtyAccepted:  p.accepted,
				QtyBase:      p.baseQty,
				Unit:         p.detail.Unit,
				UnitPrice:    p.detail.UnitPrice,
				Status:       p.line.Status,
				DamageQty:    p.line.DamageQty,
				LotNumber:    p.line.LotNumber,
				ExpiryDate:   p.line.ExpiryDate,
				CreatedAt:    now,
			})
		}
		if err := s.repo.Create(ctx, doc); err != nil {
			return fmt.Errorf("create receipt: %w", err)
		}

		for _, p := range planned {
			if !p.baseQty.IsPositive() {
				continue
			}

			txn, err := s.ledger.ApplyMovement(ctx, stock.Movement{
				BranchID:         req.BranchID,
				IngredientID:     p.detail.IngredientID,
				TxnType:          stock.TxnReceipt,
				Quantity:         p.baseQty,
				Unit:             p.detail.BaseUnit,
				UnitPrice:        p.detail.UnitPrice,
				Ref:              stock.DocRef{Type: "GoodsReceipt", ID: doc.ID},
				ConversionFactor: p.factor,
			})
			if err != nil {
				return err
			}

			// Average cost blends against on-hand *before* this movement.
			if _, err := s.costs.ApplyReceipt(ctx, req.BranchID, p.detail.IngredientID,
				txn.BeforeQty, p.baseQty, p.detail.UnitPrice); err != nil {
				return err
			}
		}

		if err := s.updateOrderStatus(ctx, req.POID, poDetails, prior, doc, now); err != nil {
			return err
		}

		if s.audit != nil {
			if err := s.audit.LogChange(ctx, "GoodsReceipt", doc.ID, "create", map[string]any{
				"po_id":     req.POID,
				"branch_id": req.BranchID,
				"lines":     len(doc.Details),
			}); err != nil {
				logger.Warn(ctx, "audit log failed", "receipt_id", doc.ID, "error", err)
			}
		}

		receiptID = doc.ID
		return nil
	})
	if err != nil {
		return id.Nil(), err
	}

	logger.Info(ctx, "goods receipt processed",
		"receipt_id", receiptID,
		"po_id", req.POID,
		"branch_id", req.BranchID,
		"lines", len(req.Lines),
	)

	return receiptID, nil
}

// updateOrderStatus rederives the PO status against all receipt details to
// date, including the receipt just written.
func (s *Service) updateOrderStatus(ctx context.Context, poID id.ID, poDetails []purchase_order.Detail, prior []GoodsReceiptDetail, current *GoodsReceipt, now time.Time) error {
	views := make([]purchase_order.ReceiptLineView, 0, len(prior)+len(current.Details))
	seq := make(map[id.ID]int)
	appendView := func(d GoodsReceiptDetail) {
		seq[d.POLineID]++
		views = append(views, purchase_order.ReceiptLineView{
			POLineID:   d.POLineID,
			Accepted:   d.QtyAccepted,
			Closing:    d.Status.IsClosing(),
			KeepsOpen:  d.Status == StatusShortPending,
			ReceivedAt: seq[d.POLineID],
		})
	}
	for _, d := range prior {
		appendView(d)
	}
	for _, d := range current.Details {
		appendView(d)
	}

	status, changed := purchase_order.DeriveStatus(poDetails, views)
	if !changed {
		return nil
	}

	if err := s.poRepo.UpdateStatus(ctx, poID, status, now); err != nil {
		return fmt.Errorf("update po status: %w", err)
	}
	if err := s.poRepo.AppendStatusHistory(ctx, purchase_order.StatusHistoryEntry{
		ID:        id.New(),
		POID:      poID,
		Status:    status,
		Note:      fmt.Sprintf("goods receipt %s", current.ID),
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("append po status history: %w", err)
	}
	return nil
}

// GetByID returns a receipt with details.
func (s *Service) GetByID(ctx context.Context, receiptID id.ID) (*GoodsReceipt, error) {
	return s.repo.GetByID(ctx, receiptID)
}

func validateRequest(req ReceiveRequest) error {
	if id.IsNil(req.POID) {
		return apperror.NewValidation("purchase order is required").WithDetail("field", "poId")
	}
	if id.IsNil(req.SupplierID) {
		return apperror.NewValidation("supplier is required").WithDetail("field", "supplierId")
	}
	if id.IsNil(req.BranchID) {
		return apperror.NewValidation("branch is required").WithDetail("field", "branchId")
	}
	if len(req.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").WithDetail("field", "lines")
	}
	seen := make(map[id.ID]bool, len(req.Lines))
	for i, line := range req.Lines {
		if id.IsNil(line.POLineID) {
			return apperror.NewValidation("po line reference is required").
				WithDetail("lineNo", i+1)
		}
		if seen[line.POLineID] {
			return apperror.NewValidation("duplicate po line in one receipt").
				WithDetail("lineNo", i+1).
				WithDetail("po_line_id", line.POLineID)
		}
		seen[line.POLineID] = true
	}
	return nil
}
