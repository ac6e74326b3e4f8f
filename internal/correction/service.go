package correction

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

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

// Service coordinates the stock correction workflow.
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

// Create records a pending correction and assigns the next monthly short
// code. No stock moves until approval.
func (s *Service) Create(ctx context.Context, input CreateInput) (Correction, error) {
	if err := s.validateInput(input); err != nil {
		return Correction{}, err
	}

	var created Correction
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := validateLines(ctx, tx.Stock(), input.Items); err != nil {
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
			Location:  input.Location,
			Reason:    input.Reason,
			Status:    StatusPending,
			CreatedBy: input.ActorID,
		}
		id, err := tx.InsertCorrection(ctx, header)
		if err != nil {
			return err
		}
		items := buildItems(id, input.Items)
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
	s.recordAudit(ctx, input.ActorID, "correction:create", created.ID, map[string]any{
		"code":  created.Code,
		"items": len(created.Items),
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

// Approve applies a pending correction: each addition posts IN, each
// subtraction posts OUT, all against the correction's location and tagged
// with the correction code.
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
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		stockTx := tx.Stock()
		for i, item := range items {
			_, err := s.mover.Apply(ctx, stockTx, stock.MovementRequest{
				Module:    "correction",
				Location:  c.Location,
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
	s.recordAudit(ctx, actorID, "correction:approve", id, map[string]any{
		"code":  approved.Code,
		"items": len(approved.Items),
	})
	s.recordApproval(ctx, approved.Code, actorID, shared.ApprovalApprove, approved.Reason)
	return approved, nil
}

// Reject flips a pending correction to rejected with no stock effect.
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
	s.recordAudit(ctx, actorID, "correction:reject", id, map[string]any{"code": rejected.Code})
	s.recordApproval(ctx, rejected.Code, actorID, shared.ApprovalReject, rejected.Reason)
	return rejected, nil
}

// Delete removes a correction. An approved one (detected by ledger entries
// under its code) first gets every line reversed in the opposite direction,
// with emptied rows deleted. Ledger history stays.
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
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			for i, item := range items {
				_, err := s.mover.Reverse(ctx, stockTx, stock.MovementRequest{
					Module:    "correction",
					Location:  c.Location,
					BatchID:   item.BatchID,
					ProductID: item.ProductID,
					Movement:  item.Direction.Movement().Opposite(),
					Qty:       item.Qty,
					UoMID:     item.UoMID,
					Reference: ReversalReference(c.Code),
					InvoiceNo: itemInvoiceNo(c.Code, i+1),
					ActorID:   actorID,
					Note:      "correction deletion reversal",
				})
				if err != nil {
					return err
				}
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
	s.recordAudit(ctx, actorID, "correction:delete", id, map[string]any{
		"code":           code,
		"items_reversed": reversed,
	})
	return nil
}

func (s *Service) validateInput(input CreateInput) error {
	if err := s.validate.Struct(&input); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	if !input.Location.Kind.IsValid() || input.Location.ID <= 0 {
		return fmt.Errorf("%w: invalid correction location", shared.ErrValidation)
	}
	for i, item := range input.Items {
		if !item.Direction.IsValid() {
			return fmt.Errorf("%w: item %d unknown direction %q", shared.ErrValidation, i+1, item.Direction)
		}
	}
	return nil
}

func validateLines(ctx context.Context, stockTx stock.Tx, items []ItemInput) error {
	for i, item := range items {
		batch, err := stockTx.GetBatch(ctx, item.BatchID)
		if err != nil {
			return fmt.Errorf("item %d batch %d: %w", i+1, item.BatchID, err)
		}
		if batch.ProductID != item.ProductID {
			return fmt.Errorf("%w: item %d batch %d holds product %d, not %d",
				shared.ErrValidation, i+1, item.BatchID, batch.ProductID, item.ProductID)
		}
		known, err := stockTx.UnitExists(ctx, item.UoMID)
		if err != nil {
			return err
		}
		if !known {
			return fmt.Errorf("%w: item %d unit %d not found", shared.ErrValidation, i+1, item.UoMID)
		}
	}
	return nil
}

func buildItems(correctionID int64, inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for _, input := range inputs {
		items = append(items, Item{
			CorrectionID: correctionID,
			ProductID:    input.ProductID,
			BatchID:      input.BatchID,
			UoMID:        input.UoMID,
			Direction:    input.Direction,
			Qty:          input.Qty,
		})
	}
	return items
}

func (s *Service) recordApproval(ctx context.Context, code string, actorID int64, action shared.ApprovalAction, note string) {
	if s.approvals == nil {
		return
	}
	_ = s.approvals.Record(ctx, shared.ApprovalLog{
		Module:  "correction",
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
		Entity:   "correction",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
