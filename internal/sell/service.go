package sell

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/samudra-retail/samudra-retail/internal/masterdata"
	"github.com/samudra-retail/samudra-retail/internal/notification"
	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

const qtyEpsilon = 1e-9

// RepositoryPort abstracts repository usage for service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Sale, error)
	List(ctx context.Context, filter ListFilter) ([]Sale, error)
}

// CatalogPort provides the master data lookups sale validation needs.
type CatalogPort interface {
	GetProduct(ctx context.Context, id int64) (masterdata.Product, error)
	GetShop(ctx context.Context, id int64) (masterdata.Shop, error)
	GetBranch(ctx context.Context, id int64) (masterdata.Branch, error)
	GetCustomer(ctx context.Context, id int64) (masterdata.Customer, error)
	AcceptedPrices(ctx context.Context, productID, shopID int64) ([]decimal.Decimal, error)
}

// StockPort reads available shop stock outside any transaction.
type StockPort interface {
	Available(ctx context.Context, shopID, productID int64) (float64, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// NotifierPort delivers notification events after a sale operation commits.
// Implementations must swallow their own failures.
type NotifierPort interface {
	Dispatch(ctx context.Context, events ...notification.Event)
}

// Service coordinates the sale workflow.
type Service struct {
	repo     RepositoryPort
	catalog  CatalogPort
	stocks   StockPort
	mover    *stock.Mover
	audit    AuditPort
	notifier NotifierPort
	validate *validator.Validate
	now      func() time.Time
}

// NewService builds Service.
func NewService(repo RepositoryPort, catalog CatalogPort, stocks StockPort, mover *stock.Mover, audit AuditPort, notifier NotifierPort) *Service {
	return &Service{
		repo: repo, catalog: catalog, stocks: stocks, mover: mover,
		audit: audit, notifier: notifier,
		validate: validator.New(), now: time.Now,
	}
}

// Create records a sale and assigns the next monthly invoice number. Shop
// stock is validated but not deducted. The sale is auto-approved only when
// every line price matches an accepted price for its product and shop.
func (s *Service) Create(ctx context.Context, input CreateInput) (Sale, error) {
	lines, status, err := s.validateInput(ctx, input, nil)
	if err != nil {
		return Sale{}, err
	}

	var created Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		now := s.now()
		last, err := tx.LastCode(ctx, shared.MonthlyCodePattern(CodePrefix, now))
		if err != nil {
			return err
		}
		invoiceNo, err := shared.NextMonthlyCode(CodePrefix, now, last)
		if err != nil {
			return err
		}
		header := Sale{
			InvoiceNo:     invoiceNo,
			CustomerID:    input.CustomerID,
			BranchID:      input.BranchID,
			NetTotal:      netTotal(lines),
			Status:        status,
			PaymentStatus: PaymentPending,
			Note:          input.Note,
			CreatedBy:     input.ActorID,
		}
		id, err := tx.InsertSale(ctx, header)
		if err != nil {
			return err
		}
		items, err := tx.InsertItems(ctx, id, lines)
		if err != nil {
			return err
		}
		header.ID = id
		header.Items = items
		created = header
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, input.ActorID, "sell:create", created.ID, map[string]any{
		"invoice_no": created.InvoiceNo,
		"status":     string(created.Status),
		"items":      len(created.Items),
	})
	if created.Status == StatusApproved {
		s.dispatch(ctx, approvedEvent(created))
	}
	return created, nil
}

// Get loads one sale.
func (s *Service) Get(ctx context.Context, id int64) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}
	return s.repo.Get(ctx, id)
}

// List returns sales matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	return s.repo.List(ctx, filter)
}

// Update replaces the lines of a sale that has not started delivery. The
// invoice number never changes. Availability checks add the existing line
// quantities back since the old allocation is being replaced.
func (s *Service) Update(ctx context.Context, id int64, input CreateInput) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}

	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return Sale{}, err
	}
	switch current.Status {
	case StatusDelivered, StatusPartiallyDelivered, StatusCancelled, StatusReturned:
		return Sale{}, fmt.Errorf("%w: sale %s is %s and can no longer be edited",
			shared.ErrInvalidState, current.InvoiceNo, current.Status)
	}
	lines, status, err := s.validateInput(ctx, input, current.Items)
	if err != nil {
		return Sale{}, err
	}

	var updated Sale
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusDelivered, StatusPartiallyDelivered, StatusCancelled, StatusReturned:
			return fmt.Errorf("%w: sale %s is %s and can no longer be edited",
				shared.ErrInvalidState, sale.InvoiceNo, sale.Status)
		}
		sale.CustomerID = input.CustomerID
		sale.BranchID = input.BranchID
		sale.Note = input.Note
		sale.NetTotal = netTotal(lines)
		sale.Status = status
		if err := tx.UpdateSale(ctx, sale); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		items, err := tx.InsertItems(ctx, id, lines)
		if err != nil {
			return err
		}
		sale.Items = items
		updated = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, input.ActorID, "sell:update", id, map[string]any{
		"invoice_no": updated.InvoiceNo,
		"status":     string(updated.Status),
	})
	if current.Status != StatusApproved && updated.Status == StatusApproved {
		s.dispatch(ctx, approvedEvent(updated))
	}
	return updated, nil
}

// Deliver posts the given lines: each allocation deducts shop stock and
// writes an OUT ledger entry, and the line flips to DELIVERED. The sale's
// aggregate status is recomputed afterwards.
func (s *Service) Deliver(ctx context.Context, id int64, input DeliveryInput) (Sale, error) {
	return s.deliver(ctx, id, input, false)
}

// DeliverAll is Deliver with the extra requirement that the request covers
// every pending line of the sale.
func (s *Service) DeliverAll(ctx context.Context, id int64, input DeliveryInput) (Sale, error) {
	return s.deliver(ctx, id, input, true)
}

func (s *Service) deliver(ctx context.Context, id int64, input DeliveryInput, requireAll bool) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}
	if err := s.validate.Struct(&input); err != nil {
		return Sale{}, fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}

	var delivered Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		switch sale.Status {
		case StatusApproved, StatusPartiallyDelivered:
		default:
			return fmt.Errorf("%w: sale %s is %s, only approved sales can be delivered",
				shared.ErrInvalidState, sale.InvoiceNo, sale.Status)
		}
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		byID := map[int64]*Item{}
		for i := range items {
			byID[items[i].ID] = &items[i]
		}
		if requireAll {
			requested := map[int64]bool{}
			for _, d := range input.Items {
				requested[d.ItemID] = true
			}
			for _, item := range items {
				if item.Status == ItemPending && !requested[item.ID] {
					return fmt.Errorf("%w: item %d missing from full delivery", shared.ErrValidation, item.ID)
				}
			}
		}
		stockTx := tx.Stock()
		for _, d := range input.Items {
			item, ok := byID[d.ItemID]
			if !ok {
				return fmt.Errorf("%w: sale item %d", shared.ErrNotFound, d.ItemID)
			}
			if !item.Status.CanTransition(ItemDelivered) {
				return fmt.Errorf("%w: item %d is %s, only pending items can be delivered",
					shared.ErrInvalidState, item.ID, item.Status)
			}
			var sum float64
			for _, alloc := range d.Batches {
				sum += alloc.Qty
			}
			if math.Abs(sum-item.Qty) > qtyEpsilon {
				return fmt.Errorf("%w: item %d batch quantities sum to %g, ordered %g",
					shared.ErrValidation, item.ID, sum, item.Qty)
			}
			for _, alloc := range d.Batches {
				batch, err := stockTx.GetBatch(ctx, alloc.BatchID)
				if err != nil {
					return fmt.Errorf("item %d batch %d: %w", item.ID, alloc.BatchID, err)
				}
				if batch.ProductID != item.ProductID {
					return fmt.Errorf("%w: item %d batch %d holds product %d, not %d",
						shared.ErrValidation, item.ID, alloc.BatchID, batch.ProductID, item.ProductID)
				}
				if _, err := tx.InsertItemBatch(ctx, ItemBatch{
					SellItemID: item.ID,
					BatchID:    alloc.BatchID,
					Qty:        alloc.Qty,
				}); err != nil {
					return err
				}
				_, err = s.mover.Apply(ctx, stockTx, stock.MovementRequest{
					Module:    "sell",
					Location:  stock.ShopRef(item.ShopID),
					BatchID:   alloc.BatchID,
					ProductID: item.ProductID,
					Movement:  stock.MovementOut,
					Qty:       alloc.Qty,
					UoMID:     item.UoMID,
					Reference: sale.InvoiceNo,
					InvoiceNo: fmt.Sprintf("%s-%d-%d", sale.InvoiceNo, item.ID, alloc.BatchID),
					ActorID:   input.ActorID,
					Note:      "sale delivery",
				})
				if err != nil {
					return err
				}
			}
			if err := tx.UpdateItemStatus(ctx, item.ID, ItemDelivered); err != nil {
				return err
			}
			item.Status = ItemDelivered
		}
		status := aggregateStatus(items)
		if err := tx.UpdateStatus(ctx, id, status); err != nil {
			return err
		}
		sale.Status = status
		sale.Items = items
		delivered = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, input.ActorID, "sell:deliver", id, map[string]any{
		"invoice_no": delivered.InvoiceNo,
		"status":     string(delivered.Status),
		"items":      len(input.Items),
	})
	return delivered, nil
}

// UpdateStatus applies a direct status transition. Delivery states cannot be
// reached here. APPROVED and CANCELLED transitions notify shop users.
func (s *Service) UpdateStatus(ctx context.Context, id int64, target Status, actorID int64) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}
	if !target.IsValid() {
		return Sale{}, fmt.Errorf("%w: unknown sale status %q", shared.ErrValidation, target)
	}

	var changed Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !sale.Status.CanTransition(target) {
			return fmt.Errorf("%w: sale %s cannot move from %s to %s",
				shared.ErrInvalidState, sale.InvoiceNo, sale.Status, target)
		}
		if err := tx.UpdateStatus(ctx, id, target); err != nil {
			return err
		}
		sale.Status = target
		sale.Items, err = tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		changed = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sell:status", id, map[string]any{
		"invoice_no": changed.InvoiceNo,
		"status":     string(target),
	})
	switch target {
	case StatusApproved:
		s.dispatch(ctx, approvedEvent(changed))
	case StatusCancelled:
		s.dispatch(ctx, cancelledEvent(changed))
	}
	return changed, nil
}

// Cancel is a direct transition to CANCELLED. It fails once delivery has
// started.
func (s *Service) Cancel(ctx context.Context, id int64, actorID int64) (Sale, error) {
	return s.UpdateStatus(ctx, id, StatusCancelled, actorID)
}

// UpdatePayment sets the payment status.
func (s *Service) UpdatePayment(ctx context.Context, id int64, status PaymentStatus, actorID int64) (Sale, error) {
	if id <= 0 {
		return Sale{}, fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}
	if !status.IsValid() {
		return Sale{}, fmt.Errorf("%w: unknown payment status %q", shared.ErrValidation, status)
	}

	var changed Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.UpdatePaymentStatus(ctx, id, status); err != nil {
			return err
		}
		sale.PaymentStatus = status
		changed = sale
		return nil
	})
	if err != nil {
		return Sale{}, err
	}
	s.recordAudit(ctx, actorID, "sell:payment", id, map[string]any{
		"invoice_no":     changed.InvoiceNo,
		"payment_status": string(status),
	})
	return changed, nil
}

// Delete removes a sale. Every delivered allocation is reversed first: shop
// stock restored with compensating IN entries, then the allocation rows,
// items and header are deleted. Delivery ledger history stays.
func (s *Service) Delete(ctx context.Context, id int64, actorID int64) error {
	if id <= 0 {
		return fmt.Errorf("%w: sale id required", shared.ErrValidation)
	}

	var invoiceNo string
	var restored float64
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, id)
		if err != nil {
			return err
		}
		invoiceNo = sale.InvoiceNo
		items, err := tx.ListItems(ctx, id)
		if err != nil {
			return err
		}
		byID := map[int64]Item{}
		for _, item := range items {
			byID[item.ID] = item
		}
		allocations, err := tx.ListItemBatches(ctx, id)
		if err != nil {
			return err
		}
		stockTx := tx.Stock()
		for _, alloc := range allocations {
			item := byID[alloc.SellItemID]
			_, err := s.mover.Reverse(ctx, stockTx, stock.MovementRequest{
				Module:    "sell",
				Location:  stock.ShopRef(item.ShopID),
				BatchID:   alloc.BatchID,
				ProductID: item.ProductID,
				Movement:  stock.MovementIn,
				Qty:       alloc.Qty,
				UoMID:     item.UoMID,
				Reference: ReversalReference(sale.InvoiceNo),
				InvoiceNo: fmt.Sprintf("%s-%d-%d", sale.InvoiceNo, item.ID, alloc.BatchID),
				ActorID:   actorID,
				Note:      "sale deletion reversal",
			})
			if err != nil {
				return err
			}
			restored += alloc.Qty
		}
		if err := tx.DeleteItemBatches(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteItems(ctx, id); err != nil {
			return err
		}
		return tx.DeleteSale(ctx, id)
	})
	if err != nil {
		return err
	}
	s.recordAudit(ctx, actorID, "sell:delete", id, map[string]any{
		"invoice_no":   invoiceNo,
		"qty_restored": restored,
	})
	return nil
}

// validateInput runs struct validation, the eager catalog lookups, price
// validity and the availability check. existing carries the sale's current
// items during an update so their quantities count as available again.
// It returns the resolved lines and the derived status.
func (s *Service) validateInput(ctx context.Context, input CreateInput, existing []Item) ([]Item, Status, error) {
	if err := s.validate.Struct(&input); err != nil {
		return nil, "", fmt.Errorf("%w: %s", shared.ErrValidation, err.Error())
	}
	for i, item := range input.Items {
		if item.UnitPrice.IsNegative() {
			return nil, "", fmt.Errorf("%w: item %d unit price must not be negative", shared.ErrValidation, i+1)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if _, err := s.catalog.GetCustomer(gctx, input.CustomerID); err != nil {
			return fmt.Errorf("customer %d: %w", input.CustomerID, err)
		}
		return nil
	})
	g.Go(func() error {
		if _, err := s.catalog.GetBranch(gctx, input.BranchID); err != nil {
			return fmt.Errorf("branch %d: %w", input.BranchID, err)
		}
		return nil
	})
	priceValid := make([]bool, len(input.Items))
	for i, item := range input.Items {
		g.Go(func() error {
			if _, err := s.catalog.GetProduct(gctx, item.ProductID); err != nil {
				return fmt.Errorf("item %d product %d: %w", i+1, item.ProductID, err)
			}
			if _, err := s.catalog.GetShop(gctx, item.ShopID); err != nil {
				return fmt.Errorf("item %d shop %d: %w", i+1, item.ShopID, err)
			}
			accepted, err := s.catalog.AcceptedPrices(gctx, item.ProductID, item.ShopID)
			if err != nil {
				return err
			}
			for _, price := range accepted {
				if item.UnitPrice.Equal(price) {
					priceValid[i] = true
					break
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, "", err
	}

	if err := s.checkAvailability(ctx, input.Items, existing); err != nil {
		return nil, "", err
	}

	status := StatusApproved
	lines := make([]Item, 0, len(input.Items))
	for i, item := range input.Items {
		if !priceValid[i] {
			status = StatusNotApproved
		}
		lines = append(lines, Item{
			ProductID:  item.ProductID,
			ShopID:     item.ShopID,
			UoMID:      item.UoMID,
			Qty:        item.Qty,
			UnitPrice:  item.UnitPrice,
			PriceValid: priceValid[i],
			Status:     ItemPending,
		})
	}
	return lines, status, nil
}

type shopProduct struct {
	ShopID    int64
	ProductID int64
}

func (s *Service) checkAvailability(ctx context.Context, items []ItemInput, existing []Item) error {
	required := map[shopProduct]float64{}
	for _, item := range items {
		required[shopProduct{item.ShopID, item.ProductID}] += item.Qty
	}
	replaced := map[shopProduct]float64{}
	for _, item := range existing {
		if item.Status == ItemPending {
			replaced[shopProduct{item.ShopID, item.ProductID}] += item.Qty
		}
	}
	for key, qty := range required {
		available, err := s.stocks.Available(ctx, key.ShopID, key.ProductID)
		if err != nil {
			return err
		}
		available += replaced[key]
		if qty > available+qtyEpsilon {
			return &shared.InsufficientStockError{
				ProductID: key.ProductID,
				Requested: qty,
				Available: available,
			}
		}
	}
	return nil
}

func netTotal(items []Item) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromFloat(item.Qty)))
	}
	return total
}

func shopIDs(items []Item) []int64 {
	seen := map[int64]bool{}
	out := []int64{}
	for _, item := range items {
		if !seen[item.ShopID] {
			seen[item.ShopID] = true
			out = append(out, item.ShopID)
		}
	}
	return out
}

// msgPrinter formats notification text with grouped digits so large sale
// totals stay readable.
var msgPrinter = message.NewPrinter(language.English)

func approvedEvent(sale Sale) notification.Event {
	total, _ := sale.NetTotal.Float64()
	return notification.Event{
		Title:             "Sale approved",
		Message:           msgPrinter.Sprintf("Sale %s has been approved (total %.2f)", sale.InvoiceNo, total),
		Type:              notification.TypeSaleApproved,
		RelatedEntityType: "sell",
		SaleID:            sale.ID,
		InvoiceNo:         sale.InvoiceNo,
		ShopIDs:           shopIDs(sale.Items),
		At:                time.Now().UTC(),
	}
}

func cancelledEvent(sale Sale) notification.Event {
	return notification.Event{
		Title:             "Sale cancelled",
		Message:           msgPrinter.Sprintf("Sale %s has been cancelled", sale.InvoiceNo),
		Type:              notification.TypeSaleCancelled,
		RelatedEntityType: "sell",
		SaleID:            sale.ID,
		InvoiceNo:         sale.InvoiceNo,
		ShopIDs:           shopIDs(sale.Items),
		At:                time.Now().UTC(),
	}
}

func (s *Service) dispatch(ctx context.Context, event notification.Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Dispatch(ctx, event)
}

func (s *Service) recordAudit(ctx context.Context, actorID int64, action string, entityID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "sell",
		EntityID: fmt.Sprintf("%d", entityID),
		Meta:     meta,
	})
}
