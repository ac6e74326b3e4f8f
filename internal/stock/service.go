package stock

import (
	"context"
	"errors"
	"fmt"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// RepositoryPort abstracts repository usage for the read-side service.
type RepositoryPort interface {
	GetOnHand(ctx context.Context, loc LocationRef, batchID int64) (float64, error)
	GetAvailable(ctx context.Context, shopID, productID int64) (float64, error)
	ListAvailableByProduct(ctx context.Context, shopID, productID int64) ([]BatchOnHand, error)
	ListLocationStocks(ctx context.Context, loc LocationRef, p shared.PageRequest) ([]LocationStock, error)
	GetStockCard(ctx context.Context, filter StockCardFilter) ([]LedgerEntry, error)
	GetBatch(ctx context.Context, id int64) (Batch, error)
	ListBatches(ctx context.Context, storeID int64, p shared.PageRequest) ([]Batch, error)
	DeleteBatch(ctx context.Context, id int64) error
	ListDriftRows(ctx context.Context) ([]DriftRow, error)
}

// AuditPort abstracts audit logging.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service answers stock queries and manages the batch registry. Mutations go
// through Mover inside document transactions, never through here.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService builds Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// OnHand reports the quantity of one batch at one location.
func (s *Service) OnHand(ctx context.Context, loc LocationRef, batchID int64) (float64, error) {
	if !loc.Kind.IsValid() || loc.ID == 0 || batchID == 0 {
		return 0, fmt.Errorf("%w: location and batch required", shared.ErrValidation)
	}
	return s.repo.GetOnHand(ctx, loc, batchID)
}

// Available sums sellable shop stock of one product across batches.
func (s *Service) Available(ctx context.Context, shopID, productID int64) (float64, error) {
	if shopID == 0 || productID == 0 {
		return 0, fmt.Errorf("%w: shop and product required", shared.ErrValidation)
	}
	return s.repo.GetAvailable(ctx, shopID, productID)
}

// AvailableBatches lists the per-batch breakdown backing Available, ordered
// by expiry so callers can pick batches first-expiring-first.
func (s *Service) AvailableBatches(ctx context.Context, shopID, productID int64) ([]BatchOnHand, error) {
	if shopID == 0 || productID == 0 {
		return nil, fmt.Errorf("%w: shop and product required", shared.ErrValidation)
	}
	return s.repo.ListAvailableByProduct(ctx, shopID, productID)
}

// ListLocationStocks lists all stock rows at a location.
func (s *Service) ListLocationStocks(ctx context.Context, loc LocationRef, p shared.PageRequest) ([]LocationStock, error) {
	if !loc.Kind.IsValid() || loc.ID == 0 {
		return nil, fmt.Errorf("%w: location required", shared.ErrValidation)
	}
	return s.repo.ListLocationStocks(ctx, loc, p)
}

// StockCard lists ledger entries for one location.
func (s *Service) StockCard(ctx context.Context, filter StockCardFilter) ([]LedgerEntry, error) {
	if !filter.Location.Kind.IsValid() || filter.Location.ID == 0 {
		return nil, fmt.Errorf("%w: location required", shared.ErrValidation)
	}
	return s.repo.GetStockCard(ctx, filter)
}

// GetBatch loads one batch.
func (s *Service) GetBatch(ctx context.Context, id int64) (Batch, error) {
	if id == 0 {
		return Batch{}, fmt.Errorf("%w: batch id required", shared.ErrValidation)
	}
	return s.repo.GetBatch(ctx, id)
}

// ListBatches lists the batches of one store.
func (s *Service) ListBatches(ctx context.Context, storeID int64, p shared.PageRequest) ([]Batch, error) {
	if storeID == 0 {
		return nil, fmt.Errorf("%w: store required", shared.ErrValidation)
	}
	return s.repo.ListBatches(ctx, storeID, p)
}

// DeleteBatch removes a batch. Batches with ledger history cannot be deleted;
// the repository reports ErrConflict for those.
func (s *Service) DeleteBatch(ctx context.Context, id int64, actorID int64) error {
	if id == 0 {
		return fmt.Errorf("%w: batch id required", shared.ErrValidation)
	}
	if err := s.repo.DeleteBatch(ctx, id); err != nil {
		return err
	}
	if s.audit != nil {
		_ = s.audit.Record(ctx, shared.AuditLog{
			ActorID:  actorID,
			Action:   "stock:batch_delete",
			Entity:   "batch",
			EntityID: fmt.Sprintf("%d", id),
		})
	}
	return nil
}

// DriftRows reports stock rows whose quantity disagrees with the ledger sum.
func (s *Service) DriftRows(ctx context.Context) ([]DriftRow, error) {
	return s.repo.ListDriftRows(ctx)
}

// HasMovements reports whether any ledger entry carries the reference.
// Document workflows use it as their idempotency check before posting.
func HasMovements(ctx context.Context, tx Tx, reference string) (bool, error) {
	entries, err := tx.ListLedgerByReference(ctx, reference)
	if err != nil {
		return false, err
	}
	return len(entries) > 0, nil
}

// ResolveBatch loads a batch by id or finds/creates it from attributes.
// Purchase acceptance uses it so repeated receipts of the same lot share one
// batch row.
func ResolveBatch(ctx context.Context, tx Tx, batch Batch) (Batch, error) {
	if batch.ID != 0 {
		return tx.GetBatch(ctx, batch.ID)
	}
	if batch.ProductID == 0 || batch.BatchNo == "" || batch.StoreID == 0 {
		return Batch{}, fmt.Errorf("%w: product, batch number and store required", shared.ErrValidation)
	}
	existing, err := tx.FindBatch(ctx, batch.ProductID, batch.BatchNo, batch.StoreID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		return Batch{}, err
	}
	id, err := tx.InsertBatch(ctx, batch)
	if err != nil {
		return Batch{}, err
	}
	batch.ID = id
	return batch, nil
}
