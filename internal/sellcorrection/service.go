package sellcorrection

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Correction, error)
	List(ctx context.Context, filter ListFilter) ([]Correction, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records approval history for a document code.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service coordinates the sale correction workflow.
type Service struct {
	repo      RepositoryPort
	mover     *stock.Mover
	audit     AuditPort
	approvals ApprovalPort
	validate  *validator.Validate
	now       func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, mover *stock.Mover, audit AuditPort, approvals ApprovalPort) *Service {
	return &Service{repo: repo, mover: mover, audit: audit, approvals: approvals, validate: validator.New(), now: time.Now}
}

// Create records a pending sale correction and assigns the next monthly
// short code. Every line must reference an item of the linked sale.
func (s *Service) Create(ctx context.Context, input CreateInput) (Correction, error) {
	if err := s.validateInput(input); err != nil {
		return Correction{}, err
	}

	var created Correction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, input.SaleID)
		if err != nil {
			return err
		}
		items, err := resolveItems(ctx, tx, sale.ID, input.Items)
		if err != nil {
			return err
		}
		now := s.now()
		last, err := tx.LastCode(ctx, shared.MonthlyCodePattern(CodePrefix, now))
		if err != nil {
			return err
		}
		code, err := shared.NextMonthlyCode(CodePrefix, now, last)
		if err != nil {
			return err
		}
		header := Correction{
			Code:      code,
			SaleID:    sale.ID,
			Reason:    input.Reason,
			Status:    StatusPending,
			CreatedBy: input.ActorID,
		}
		id, err := tx.InsertCorrection(ctx, header)
		if err != nil {
			return err
		}
		for i := range items {
			items[i].CorrectionID = id
		}
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		header.ID = id
		header.Items = items
		created = header
		return nil
	})
	if err != nil {
		return Correction{}, err
	}
	s.recordAudit(ctx, input.ActorID, "sellcorrection:create", created.ID, map[string]any{
		"code":    created.Code,
		"sale_id": created.SaleID,
		"items":   len(created.Items),
	})
	return created, nil
}

// Get loads one correction.
func (s *Service) Get(ctx context.Context, id int64) (Correction, error) {
	if id <= 0 {
		return Correction{}, fmt.Errorf("%w: correction id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns corrections matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Correction, error) {
	return s.repo.List(ctx, filter)
}

// Approve applies a pending correction: stock moves against each line's
// shop, and the sale's net total shifts by the priced delta, clamped at
// zero. Additions are priced at the correction price, subtractions at the
// original sale item price.
func (s *Service) Approve(ctx context.Context, id int64, actorID int64) (Correction, error) {
	if id <= 0 {
		return Correction{}, fmt.Errorf("%w: correction id required", shared.ErrValidation)
	}

	var approved Correction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCorrectionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != StatusPending {
			return fmt.Errorf("%w: correction %s is %s, only pending corrections can be approved",
				shared.ErrInvalidState, c.Code, c.Status)
		}
		sale, err := tx.GetSaleForUpdate(ctx, c.SaleID)
		if err != nil {
			return err
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		stockTx := tx.Stock()
		delta := decimal.Zero
		for i, item := range items {
			saleItem, err := tx.GetSaleItem(ctx, item.SellItemID)
			if err != nil {
				return err
			}
			_, err = s.mover.Apply(ctx, stockTx, stock.MovementRequest{
				Module:    "sellcorrection",
				Location:  stock.ShopRef(saleItem.ShopID),
				BatchID:   item.BatchID,
				ProductID: item.ProductID,
				Movement:  item.Direction.Movement(),
				Qty:       item.Qty,
				UoMID:     item.UoMID,
				Reference: c.Code,
				InvoiceNo: itemInvoiceNo(c.Code, i+1),
				ActorID:   actorID,
				Note:      c.Reason,
			})
			if err != nil {
				return err
			}
			delta = delta.Add(itemAmount(item, saleItem))
		}
		netTotal := clampZero(sale.NetTotal.Add(delta))
		if err := tx.UpdateSaleNetTotal(ctx, sale.ID, netTotal); err != nil {
			return err
		}
		if err := tx.UpdateStatus(ctx, id, StatusApproved); err != nil {
			return err
		}
		c.Status = StatusApproved
		c.Items = items
		approved = c
		return nil
	})
	if err != nil {
		return Correction{}, err
	}
	s.recordAudit(ctx, actorID, "sellcorrection:approve", id, map[string]any{
		"code":  approved.Code,
		"items": len(approved.Items),
	})
	s.recordApproval(ctx, approved.Code, actorID, shared.ApprovalApprove, approved.Reason)
	return approved, nil
}

// Reject flips a pending correction to rejected with no effect.
func (s *Service) Reject(ctx context.Context, id int64, actorID int64) (Correction, error) {
	if id <= 0 {
		return Correction{}, fmt.Errorf("%w: correction id required", shared.ErrValidation)
	}

	var rejected Correction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCorrectionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if c.Status != StatusPending {
			return fmt.Errorf("%w: correction %s is %s, only pending corrections can be rejected",
				shared.ErrInvalidState, c.Code, c.Status)
		}
		if err := tx.UpdateStatus(ctx, id, StatusRejected); err != nil {
			return err
		}
		c.Status = StatusRejected
		rejected = c
		return nil
	})
	if err != nil {
		return Correction{}, err
	}
	s.recordAudit(ctx, actorID, "sellcorrection:reject", id, map[string]any{"code": rejected.Code})
	s.recordApproval(ctx, rejected.Code, actorID, shared.ApprovalReject, rejected.Reason)
	return rejected, nil
}

// Delete removes a correction. An approved one gets both the stock and the
// net total adjustment reversed. Ledger history stays.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: correction id required", shared.ErrValidation)
	}

	var code string
	var reversed int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCorrectionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		code = c.Code
		stockTx := tx.Stock()
		applied, err := stock.HasMovements(ctx, stockTx, c.Code)
		if err != nil {
			return err
		}
		if applied {
			sale, err := tx.GetSaleForUpdate(ctx, c.SaleID)
			if err != nil {
				return err
			}
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			delta := decimal.Zero
			for i, item := range items {
				saleItem, err := tx.GetSaleItem(ctx, item.SellItemID)
				if err != nil {
					return err
				}
				_, err = s.mover.Reverse(ctx, stockTx, stock.MovementRequest{
					Module:    "sellcorrection",
					Location:  stock.ShopRef(saleItem.ShopID),
					BatchID:   item.BatchID,
					ProductID: item.ProductID,
					Movement:  item.Direction.Movement().Opposite(),
					Qty:       item.Qty,
					UoMID:     item.UoMID,
					Reference: ReversalReference(c.Code),
					InvoiceNo: itemInvoiceNo(c.Code, i+1),
					ActorID:   actorID,
					Note:      "sale correction deletion reversal",
				})
				if err != nil {
					return err
				}
				delta = delta.Add(itemAmount(item, saleItem))
			}
			netTotal := clampZero(sale.NetTotal.Sub(delta))
			if err := tx.UpdateSaleNetTotal(ctx, sale.ID, netTotal); err != nil {
				return err
			}
			reversed = len(items)
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteCorrection(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "sellcorrection:delete", id, map[string]any{
		"code":           code,
		"items_reversed": reversed,
	})
	return nil
}

func (s *Service) validateInput(input CreateInput) error {
	if err := s.validate.Struct(&input); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	for i, item := range input.Items {
		if !item.Direction.IsValid() {
			return fmt.Errorf("%w: item %d unknown direction %q", shared.ErrValidation, i+1, item.Direction)
		}
		if item.Direction == DirectionAddition && item.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: item %d unit price must not be negative", shared.ErrValidation, i+1)
		}
	}
	return nil
}

// resolveItems checks every referenced sale item belongs to the sale and
// every batch exists, and fills the product and unit from the sale line.
func resolveItems(ctx context.Context, tx TxRepository, saleID int64, inputs []ItemInput) ([]Item, error) {
	stockTx := tx.Stock()
	items := make([]Item, 0, len(inputs))
	for i, input := range inputs {
		saleItem, err := tx.GetSaleItem(ctx, input.SellItemID)
		if err != nil {
			return nil, fmt.Errorf("item %d sale item %d: %w", i+1, input.SellItemID, err)
		}
		if saleItem.SaleID != saleID {
			return nil, fmt.Errorf("%w: item %d sale item %d belongs to another sale",
				shared.ErrValidation, i+1, input.SellItemID)
		}
		batch, err := stockTx.GetBatch(ctx, input.BatchID)
		if err != nil {
			return nil, fmt.Errorf("item %d batch %d: %w", i+1, input.BatchID, err)
		}
		if batch.ProductID != saleItem.ProductID {
			return nil, fmt.Errorf("%w: item %d batch %d holds product %d, not %d",
				shared.ErrValidation, i+1, input.BatchID, batch.ProductID, saleItem.ProductID)
		}
		items = append(items, Item{
			SellItemID: input.SellItemID,
			ProductID:  saleItem.ProductID,
			BatchID:    input.BatchID,
			UoMID:      saleItem.UoMID,
			Direction:  input.Direction,
			Qty:        input.Qty,
			UnitPrice:  input.UnitPrice,
		})
	}
	return items, nil
}

// itemAmount is the signed money effect of one line on the sale's net
// total: additions at the correction price, subtractions at the original
// sale item price.
func itemAmount(item Item, saleItem SaleItemInfo) decimal.Decimal {
	qty := decimal.NewFromFloat(item.Qty)
	if item.Direction == DirectionAddition {
		return item.UnitPrice.Mul(qty)
	}
	return saleItem.UnitPrice.Mul(qty).Neg()
}

func clampZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return decimal.Zero
	}
	return d
}

func (s *Service) recordApproval(ctx context.Context, code string, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "sellcorrection",
		RefCode: code,
		ActorID: actorID,
		Action:  action,
		Note:    note,
	})
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sellcorrection",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
