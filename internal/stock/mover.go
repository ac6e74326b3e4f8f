package stock

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// MetricsPort abstracts movement metrics so the mover stays testable.
type MetricsPort interface {
	ObserveMovement(module string, movement string)
	ObserveInsufficientStock(module string)
}

// Mover runs the stock movement micro-protocol inside a caller-owned
// transaction. It is stateless; every document workflow shares one instance.
type Mover struct {
	allowNeg bool
	metrics  MetricsPort
}

// MoverConfig groups optional settings.
type MoverConfig struct {
	AllowNegativeStock bool
}

// NewMover builds Mover.
func NewMover(cfg MoverConfig, metrics MetricsPort) *Mover {
	return &Mover{allowNeg: cfg.AllowNegativeStock, metrics: metrics}
}

const qtyEpsilon = 1e-9

// Apply posts one forward movement: lock the location row, adjust the
// quantity (an OUT must be covered by on-hand stock), append the ledger
// entry. The row is kept at zero when an OUT drains it exactly.
func (m *Mover) Apply(ctx context.Context, tx Tx, req MovementRequest) (LedgerEntry, error) {
	return m.post(ctx, tx, req, false)
}

// Reverse posts one compensating movement for a deleted or rolled-back
// document. The availability guard is skipped and a row emptied to zero or
// below is removed entirely.
func (m *Mover) Reverse(ctx context.Context, tx Tx, req MovementRequest) (LedgerEntry, error) {
	return m.post(ctx, tx, req, true)
}

func (m *Mover) post(ctx context.Context, tx Tx, req MovementRequest, reversal bool) (LedgerEntry, error) {
	if err := validateRequest(req); err != nil {
		return LedgerEntry{}, err
	}
	movedAt := req.MovedAt
	if movedAt.IsZero() {
		movedAt = time.Now().UTC()
	}

	known, err := tx.UnitExists(ctx, req.UoMID)
	if err != nil {
		return LedgerEntry{}, err
	}
	if !known {
		return LedgerEntry{}, fmt.Errorf("%w: unknown unit of measure %d", shared.ErrValidation, req.UoMID)
	}

	row, err := tx.GetLocationStockForUpdate(ctx, req.Location, req.BatchID)
	switch {
	case errors.Is(err, ErrStockRowNotFound):
		row = LocationStock{Location: req.Location, BatchID: req.BatchID, UoMID: req.UoMID, Status: StockStatusAvailable}
	case err != nil:
		return LedgerEntry{}, err
	}

	newQty := row.Qty
	switch req.Movement {
	case MovementIn:
		newQty += req.Qty
	case MovementOut:
		newQty -= req.Qty
	}
	if math.Abs(newQty) < qtyEpsilon {
		newQty = 0
	}

	if req.Movement == MovementOut && !reversal && !m.allowNeg && newQty < 0 {
		if m.metrics != nil {
			m.metrics.ObserveInsufficientStock(req.Module)
		}
		return LedgerEntry{}, &shared.InsufficientStockError{
			ProductID: req.ProductID,
			BatchID:   req.BatchID,
			Requested: req.Qty,
			Available: row.Qty,
		}
	}

	if reversal && newQty <= 0 {
		if err := tx.DeleteLocationStock(ctx, req.Location, req.BatchID); err != nil {
			return LedgerEntry{}, err
		}
	} else {
		row.Qty = newQty
		row.UoMID = req.UoMID
		if row.Status == "" {
			row.Status = StockStatusAvailable
		}
		if err := tx.UpsertLocationStock(ctx, row); err != nil {
			return LedgerEntry{}, err
		}
	}

	entry := LedgerEntry{
		BatchID:   req.BatchID,
		Location:  req.Location,
		Movement:  req.Movement,
		Qty:       req.Qty,
		UoMID:     req.UoMID,
		Reference: req.Reference,
		InvoiceNo: req.InvoiceNo,
		ActorID:   req.ActorID,
		Note:      req.Note,
		MovedAt:   movedAt,
	}
	id, err := tx.InsertLedgerEntry(ctx, entry)
	if err != nil {
		return LedgerEntry{}, err
	}
	entry.ID = id
	if m.metrics != nil {
		m.metrics.ObserveMovement(req.Module, string(req.Movement))
	}
	return entry, nil
}

func validateRequest(req MovementRequest) error {
	if !req.Location.Kind.IsValid() || req.Location.ID == 0 {
		return fmt.Errorf("%w: invalid location", shared.ErrValidation)
	}
	if req.BatchID == 0 {
		return fmt.Errorf("%w: batch required", shared.ErrValidation)
	}
	if req.Movement != MovementIn && req.Movement != MovementOut {
		return fmt.Errorf("%w: movement must be IN or OUT", shared.ErrValidation)
	}
	if req.Qty <= 0 {
		return fmt.Errorf("%w: quantity must be positive", shared.ErrValidation)
	}
	if req.UoMID == 0 {
		return fmt.Errorf("%w: unit of measure required", shared.ErrValidation)
	}
	if req.Reference == "" {
		return fmt.Errorf("%w: reference required", shared.ErrValidation)
	}
	return nil
}
