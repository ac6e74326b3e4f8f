package purchase

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"

	"github.com/samudra-retail/samudra-retail/internal/masterdata"
	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Purchase, error)
	List(ctx context.Context, filter ListFilter) ([]Purchase, error)
}

// CatalogPort provides the master data lookups the workflow validates
// against.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (masterdata.Product, error)
	GetUnit(ctx context.Context, id int64) (masterdata.Unit, error)
	GetStore(ctx context.Context, id int64) (masterdata.Store, error)
	GetSupplier(ctx context.Context, id int64) (masterdata.Supplier, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ApprovalPort records approval history for a document code.
type ApprovalPort interface {
	Record(ctx context.Context, log shared.ApprovalLog) error
}

// Service coordinates the purchase workflow.
type Service struct {
	repo      RepositoryPort
	catalog   CatalogPort
	mover     *stock.Mover
	audit     AuditPort
	approvals ApprovalPort
	validate  *validator.Validate
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, mover *stock.Mover, audit AuditPort, approvals ApprovalPort) *Service {
	return &Service{repo: repo, catalog: catalog, mover: mover, audit: audit, approvals: approvals, validate: validator.New()}
}

// Create records a new purchase in PENDING payment status. Batches are
// resolved (or created) per line; no stock moves yet.
func (s *Service) Create(ctx context.Context, input CreateInput) (Purchase, error) {
	if err := s.validateInput(ctx, input.SupplierID, input.StoreID, input.Items, &input); err != nil {
		return Purchase{}, err
	}

	var created Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		header := Purchase{
			SupplierID:    input.SupplierID,
			StoreID:       input.StoreID,
			InvoiceNo:     input.InvoiceNo,
			PaymentStatus: PaymentPending,
			Note:          input.Note,
			CreatedBy:     input.ActorID,
		}
		id, err := tx.InsertPurchase(ctx, header)
		if err != nil {
			return err
		}
		items, err := resolveItems(ctx, tx.Stock(), id, input.StoreID, input.Items)
		if err != nil {
			return err
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
		return Purchase{}, err
	}
	s.recordAudit(ctx, input.ActorID, "purchase:create", created.ID, map[string]any{
		"invoice_no": created.InvoiceNo,
		"store_id":   created.StoreID,
		"items":      len(created.Items),
	})
	return created, nil
}

// Get loads one purchase.
func (s *Service) Get(ctx context.Context, id int64) (Purchase, error) {
	if id <= 0 {
		return Purchase{}, fmt.Errorf("%w: purchase id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns purchases matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the header fields and lines of a purchase that is still
// pending payment.
func (s *Service) Update(ctx context.Context, id int64, input CreateInput) (Purchase, error) {
	if id <= 0 {
		return Purchase{}, fmt.Errorf("%w: purchase id required", shared.ErrValidation)
	}
	if err := s.validateInput(ctx, input.SupplierID, input.StoreID, input.Items, &input); err != nil {
		return Purchase{}, err
	}

	var updated Purchase
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		current, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus != PaymentPending {
			return fmt.Errorf("%w: purchase %s is %s, only pending purchases can be edited",
				shared.ErrInvalidState, current.InvoiceNo, current.PaymentStatus)
		}
		current.SupplierID = input.SupplierID
		current.StoreID = input.StoreID
		current.InvoiceNo = input.InvoiceNo
		current.Note = input.Note
		if err := tx.UpdatePurchase(ctx, current); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		items, err := resolveItems(ctx, tx.Stock(), id, input.StoreID, input.Items)
		if err != nil {
			return err
		}
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		current.Items = items
		updated = current
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, input.ActorID, "purchase:update", id, map[string]any{"invoice_no": updated.InvoiceNo})
	return updated, nil
}

// Accept updates the payment status. Only the transition to APPROVED moves
// stock: every line is posted IN against the purchase's store in the same
// transaction. A purchase whose invoice already has ledger entries cannot be
// accepted again.
func (s *Service) Accept(ctx context.Context, id int64, status PaymentStatus, actorID int64) (Purchase, error) {
	if id <= 0 {
		return Purchase{}, fmt.Errorf("%w: purchase id required", shared.ErrValidation)
	}
	if !status.IsValid() {
		return Purchase{}, fmt.Errorf("%w: unknown payment status %q", shared.ErrValidation, status)
	}

	var accepted Purchase
	var moved int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		stockTx := tx.Stock()
		already, err := stock.HasMovements(ctx, stockTx, Reference(p.InvoiceNo))
		if err != nil {
			return err
		}
		if already {
			return fmt.Errorf("%w: purchase %s already accepted", shared.ErrConflict, p.InvoiceNo)
		}
		if err := tx.UpdatePaymentStatus(ctx, id, status); err != nil {
			return err
		}
		p.PaymentStatus = status
		if status == PaymentApproved {
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			for i, item := range items {
				_, err := s.mover.Apply(ctx, stockTx, stock.MovementRequest{
					Module:    "purchase",
					Location:  stock.StoreRef(p.StoreID),
					BatchID:   item.BatchID,
					ProductID: item.ProductID,
					Movement:  stock.MovementIn,
					Qty:       item.Qty,
					UoMID:     item.UoMID,
					Reference: Reference(p.InvoiceNo),
					InvoiceNo: fmt.Sprintf("%s-%d", p.InvoiceNo, i+1),
					ActorID:   actorID,
					Note:      "purchase acceptance",
				})
				if err != nil {
					return err
				}
			}
			moved = len(items)
			p.Items = items
		}
		accepted = p
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}
	s.recordAudit(ctx, actorID, "purchase:accept", id, map[string]any{
		"invoice_no":     accepted.InvoiceNo,
		"payment_status": string(status),
		"items_moved":    moved,
	})
	if s.approvals != nil {
		_ = s.approvals.Record(ctx, shared.ApprovalLog{
			Module:  "purchase",
			RefCode: accepted.InvoiceNo,
			ActorID: actorID,
			Action:  shared.ApprovalApprove,
			Note:    string(status),
		})
	}
	return accepted, nil
}

// Delete removes a purchase. An accepted purchase first gets compensating
// OUT entries per line; ledger history from the acceptance stays in place.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: purchase id required", shared.ErrValidation)
	}

	var invoiceNo string
	var reversed int
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		p, err := tx.GetPurchaseForUpdate(ctx, id)
		if err != nil {
			return err
		}
		invoiceNo = p.InvoiceNo
		stockTx := tx.Stock()
		accepted, err := stock.HasMovements(ctx, stockTx, Reference(p.InvoiceNo))
		if err != nil {
			return err
		}
		if accepted {
			items, err := tx.ListItems(ctx, id)
			if err != nil {
				return err
			}
			for i, item := range items {
				_, err := s.mover.Reverse(ctx, stockTx, stock.MovementRequest{
					Module:    "purchase",
					Location:  stock.StoreRef(p.StoreID),
					BatchID:   item.BatchID,
					ProductID: item.ProductID,
					Movement:  stock.MovementOut,
					Qty:       item.Qty,
					UoMID:     item.UoMID,
					Reference: ReversalReference(p.InvoiceNo),
					InvoiceNo: fmt.Sprintf("%s-%d", p.InvoiceNo, i+1),
					ActorID:   actorID,
					Note:      "purchase deletion reversal",
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
		return tx.DeletePurchase(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "purchase:delete", id, map[string]any{
		"invoice_no":     invoiceNo,
		"items_reversed": reversed,
	})
	return nil
}

// validateInput runs struct validation plus the eager per-line catalog
// lookups before any transaction starts.
func (s *Service) validateInput(ctx context.Context, supplierID, storeID int64, items []ItemInput, payload any) error {
	if err := s.validate.Struct(payload); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := s.catalog.GetSupplier(ctx, supplierID); err != nil {
			return fmt.Errorf("supplier %d: %w", supplierID, err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.catalog.GetStore(ctx, storeID); err != nil {
			return fmt.Errorf("store %d: %w", storeID, err)
		}
		return nil
	})
	for i, item := range items {
		g.Go(func() error {
			if _, err := s.catalog.GetProduct(ctx, item.ProductID); err != nil {
				return fmt.Errorf("item %d product %d: %w", i+1, item.ProductID, err)
			}
			if _, err := s.catalog.GetUnit(ctx, item.UoMID); err != nil {
				return fmt.Errorf("item %d unit %d: %w", i+1, item.UoMID, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func resolveItems(ctx context.Context, stockTx stock.Tx, purchaseID, storeID int64, inputs []ItemInput) ([]Item, error) {
	items := make([]Item, 0, len(inputs))
	for _, input := range inputs {
		batch, err := stock.ResolveBatch(ctx, stockTx, input.batchAttrs(storeID))
		if err != nil {
			return nil, err
		}
		items = append(items, Item{
			PurchaseID: purchaseID,
			ProductID:  input.ProductID,
			BatchID:    batch.ID,
			UoMID:      input.UoMID,
			Qty:        input.Qty,
			UnitPrice:  input.UnitPrice,
		})
	}
	return items, nil
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "purchase",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
