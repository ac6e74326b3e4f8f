package transfer

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
	Get(ctx context.Context, id int64) (Transfer, error)
	List(ctx context.Context, filter ListFilter) ([]Transfer, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service coordinates the transfer workflow.
type Service struct {
	repo     RepositoryPort
	mover    *stock.Mover
	audit    AuditPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, mover *stock.Mover, audit AuditPort) *Service {
	return &Service{repo: repo, mover: mover, audit: audit, validate: validator.New(), now: time.Now}
}

// Create records a pending transfer and assigns the next monthly short code.
func (s *Service) Create(ctx context.Context, input CreateInput) (Transfer, error) {
	if err := s.validateInput(input); err != nil {
		return Transfer{}, err
	}

	var created Transfer
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
		header := Transfer{
			Code:        code,
			Source:      input.Source,
			Destination: input.Destination,
			Status:      StatusPending,
			Note:        input.Note,
			CreatedBy:   input.ActorID,
		}
		id, err := tx.InsertTransfer(ctx, header)
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
		return Transfer{}, err
	}
	s.recordAudit(ctx, input.ActorID, "transfer:create", created.ID, map[string]any{
		"code":  created.Code,
		"items": len(created.Items),
	})
	return created, nil
}

// Get loads one transfer.
func (s *Service) Get(ctx context.Context, id int64) (Transfer, error) {
	if id <= 0 {
		return Transfer{}, fmt.Errorf("%w: transfer id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns transfers matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the lines and header fields of a pending transfer. The
// short code never changes.
func (s *Service) Update(ctx context.Context, id int64, input CreateInput) (Transfer, error) {
	if id <= 0 {
		return Transfer{}, fmt.Errorf("%w: transfer id required", shared.ErrValidation)
	}
	if err := s.validateInput(input); err != nil {
		return Transfer{}, err
	}

	var updated Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != StatusPending {
			return fmt.Errorf("%w: transfer %s is %s, only pending transfers can be edited",
				shared.ErrInvalidState, current.Code, current.Status)
		}
		if err := validateLines(ctx, tx.Stock(), input.Items); err != nil {
			return err
		}
		current.Source = input.Source
		current.Destination = input.Destination
		current.Note = input.Note
		if err := tx.UpdateTransfer(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		items := buildItems(id, input.Items)
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		current.Items = items
		updated = current
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, input.ActorID, "transfer:update", id, map[string]any{"code": updated.Code})
	return updated, nil
}

// Complete posts both stock legs of a pending transfer: OUT at the source,
// IN upsert at the destination, one ledger entry per line per leg.
func (s *Service) Complete(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	if id <= 0 {
		return Transfer{}, fmt.Errorf("%w: transfer id required", shared.ErrValidation)
	}

	var completed Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return fmt.Errorf("%w: transfer %s is %s, only pending transfers can be completed",
				shared.ErrInvalidState, t.Code, t.Status)
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		stockTx := tx.Stock()
		for i, item := range items {
			out := stock.MovementRequest{
				Module:    "transfer",
				Location:  t.Source,
				BatchID:   item.BatchID,
				ProductID: item.ProductID,
				Movement:  stock.MovementOut,
				Qty:       item.Qty,
				UoMID:     item.UoMID,
				Reference: OutReference(t.Code, i+1),
				ActorID:   actorID,
				Note:      fmt.Sprintf("transfer to %s %d", t.Destination.Kind, t.Destination.ID),
			}
			if _, err := s.mover.Apply(ctx, stockTx, out); err != nil {
				return err
			}
			in := out
			in.Location = t.Destination
			in.Movement = stock.MovementIn
			in.Reference = InReference(t.Code, i+1)
			in.Note = fmt.Sprintf("transfer from %s %d", t.Source.Kind, t.Source.ID)
			if _, err := s.mover.Apply(ctx, stockTx, in); err != nil {
				return err
			}
		}
		if err := tx.UpdateStatus(ctx, id, StatusCompleted); err != nil {
			return err
		}
		t.Status = StatusCompleted
		t.Items = items
		completed = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, actorID, "transfer:complete", id, map[string]any{
		"code":  completed.Code,
		"items": len(completed.Items),
	})
	return completed, nil
}

// Cancel flips a pending transfer to cancelled with no stock effect.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Transfer, error) {
	if id <= 0 {
		return Transfer{}, fmt.Errorf("%w: transfer id required", shared.ErrValidation)
	}

	var cancelled Transfer
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if t.Status != StatusPending {
			return fmt.Errorf("%w: transfer %s is %s, only pending transfers can be cancelled",
				shared.ErrInvalidState, t.Code, t.Status)
		}
		if err := tx.UpdateStatus(ctx, id, StatusCancelled); err != nil {
			return err
		}
		t.Status = StatusCancelled
		cancelled = t
		return nil
	})
	if err != nil {
		return Transfer{}, err
	}
	s.recordAudit(ctx, actorID, "transfer:cancel", id, map[string]any{"code": cancelled.Code})
	return cancelled, nil
}

// Delete removes a transfer. A completed transfer (detected by ledger
// entries under its code) first gets both legs reversed: stock restored at
// the source, removed at the destination with emptied rows deleted. Ledger
// history stays.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: transfer id required", shared.ErrValidation)
	}

	var code string
	var reversed int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		t, err := tx.GetTransferForUpdate(ctx, id)
		if err != nil {
			return err
		}
		code = t.Code
		stockTx := tx.Stock()
		entries, err := stockTx.ListLedgerByReferencePrefix(ctx, LegPrefix(t.Code))
		if err != nil {
			return err
		}
		if len(entries) > 0 {
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			for i, item := range items {
				back := stock.MovementRequest{
					Module:    "transfer",
					Location:  t.Source,
					BatchID:   item.BatchID,
					ProductID: item.ProductID,
					Movement:  stock.MovementIn,
					Qty:       item.Qty,
					UoMID:     item.UoMID,
					Reference: "REV-" + OutReference(t.Code, i+1),
					ActorID:   actorID,
					Note:      "transfer deletion reversal",
				}
				if _, err := s.mover.Reverse(ctx, stockTx, back); err != nil {
					return err
				}
				out := back
				out.Location = t.Destination
				out.Movement = stock.MovementOut
				out.Reference = "REV-" + InReference(t.Code, i+1)
				if _, err := s.mover.Reverse(ctx, stockTx, out); err != nil {
					return err
				}
			}
			reversed = len(items)
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteTransfer(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "transfer:delete", id, map[string]any{
		"code":           code,
		"items_reversed": reversed,
	})
	return nil
}

func (s *Service) validateInput(input CreateInput) error {
	if err := s.validate.Struct(&input); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	if !input.Source.Kind.IsValid() || input.Source.ID <= 0 {
		return fmt.Errorf("%w: invalid source location", shared.ErrValidation)
	}
	if !input.Destination.Kind.IsValid() || input.Destination.ID <= 0 {
		return fmt.Errorf("%w: invalid destination location", shared.ErrValidation)
	}
	if input.Source == input.Destination {
		return fmt.Errorf("%w: source and destination must differ", shared.ErrValidation)
	}
	return nil
}

// validateLines checks every referenced batch and unit exists before any
// write happens.
func validateLines(ctx context.Context, stockTx stock.Tx, items []ItemInput) error {
	for i, item := range items {
		if _, err := stockTx.GetBatch(ctx, item.BatchID); err != nil {
			return fmt.Errorf("item %d batch %d: %w", i+1, item.BatchID, err)
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

func buildItems(transferID int64, inputs []ItemInput) []Item {
	items := make([]Item, 0, len(inputs))
	for _, input := range inputs {
		items = append(items, Item{
			TransferID: transferID,
			ProductID:  input.ProductID,
			BatchID:    input.BatchID,
			UoMID:      input.UoMID,
			Qty:        input.Qty,
		})
	}
	return items
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "transfer",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
