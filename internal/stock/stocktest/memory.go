// Package stocktest provides an in-memory stock.Tx for service tests across
// the document modules.
package stocktest

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// MemoryTx implements stock.Tx over maps. It is not transactional; tests
// assert on the final state only.
type MemoryTx struct {
	mu      sync.Mutex
	stocks  map[string]stock.LocationStock
	Ledger  []stock.LedgerEntry
	Batches map[int64]stock.Batch
	Units   map[int64]bool

	nextLedgerID int64
	nextBatchID  int64
}

// NewMemoryTx builds an empty MemoryTx with unit 1 registered.
func NewMemoryTx() *MemoryTx {
	return &MemoryTx{
		stocks:  map[string]stock.LocationStock{},
		Batches: map[int64]stock.Batch{},
		Units:   map[int64]bool{1: true},
	}
}

func key(loc stock.LocationRef, batchID int64) string {
	return fmt.Sprintf("%s:%d:%d", loc.Kind, loc.ID, batchID)
}

// AddBatch registers a batch and returns it with an assigned id.
func (m *MemoryTx) AddBatch(batch stock.Batch) stock.Batch {
	m.mu.Lock()
	defer m.mu.Unlock()
	if batch.ID == 0 {
		m.nextBatchID++
		batch.ID = m.nextBatchID
	} else if batch.ID > m.nextBatchID {
		m.nextBatchID = batch.ID
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now().UTC()
	}
	m.Batches[batch.ID] = batch
	return batch
}

// SetStock seeds one location stock row.
func (m *MemoryTx) SetStock(loc stock.LocationRef, batchID int64, qty float64, uomID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stocks[key(loc, batchID)] = stock.LocationStock{
		Location: loc, BatchID: batchID, Qty: qty, UoMID: uomID,
		Status: stock.StockStatusAvailable, UpdatedAt: time.Now().UTC(),
	}
}

// StockQty returns the current quantity, with a second value reporting
// whether the row exists at all.
func (m *MemoryTx) StockQty(loc stock.LocationRef, batchID int64) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.stocks[key(loc, batchID)]
	return row.Qty, ok
}

// LedgerFor returns ledger entries carrying exactly the reference.
func (m *MemoryTx) LedgerFor(reference string) []stock.LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []stock.LedgerEntry{}
	for _, e := range m.Ledger {
		if e.Reference == reference {
			out = append(out, e)
		}
	}
	return out
}

// NetLedger sums IN minus OUT for one (location, batch) pair.
func (m *MemoryTx) NetLedger(loc stock.LocationRef, batchID int64) float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var net float64
	for _, e := range m.Ledger {
		if e.Location != loc || e.BatchID != batchID {
			continue
		}
		if e.Movement == stock.MovementIn {
			net += e.Qty
		} else {
			net -= e.Qty
		}
	}
	return net
}

func (m *MemoryTx) GetLocationStockForUpdate(_ context.Context, loc stock.LocationRef, batchID int64) (stock.LocationStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.stocks[key(loc, batchID)]
	if !ok {
		return stock.LocationStock{}, stock.ErrStockRowNotFound
	}
	return row, nil
}

func (m *MemoryTx) UpsertLocationStock(_ context.Context, row stock.LocationStock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row.UpdatedAt = time.Now().UTC()
	m.stocks[key(row.Location, row.BatchID)] = row
	return nil
}

func (m *MemoryTx) DeleteLocationStock(_ context.Context, loc stock.LocationRef, batchID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.stocks, key(loc, batchID))
	return nil
}

func (m *MemoryTx) InsertLedgerEntry(_ context.Context, entry stock.LedgerEntry) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextLedgerID++
	entry.ID = m.nextLedgerID
	entry.CreatedAt = time.Now().UTC()
	m.Ledger = append(m.Ledger, entry)
	return entry.ID, nil
}

func (m *MemoryTx) ListLedgerByReference(_ context.Context, reference string) ([]stock.LedgerEntry, error) {
	return m.LedgerFor(reference), nil
}

func (m *MemoryTx) ListLedgerByReferencePrefix(_ context.Context, prefix string) ([]stock.LedgerEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []stock.LedgerEntry{}
	for _, e := range m.Ledger {
		if strings.HasPrefix(e.Reference, prefix) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemoryTx) GetBatch(_ context.Context, id int64) (stock.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.Batches[id]
	if !ok {
		return stock.Batch{}, shared.ErrNotFound
	}
	return batch, nil
}

func (m *MemoryTx) FindBatch(_ context.Context, productID int64, batchNo string, storeID int64) (stock.Batch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, batch := range m.Batches {
		if batch.ProductID == productID && batch.BatchNo == batchNo && batch.StoreID == storeID {
			return batch, nil
		}
	}
	return stock.Batch{}, shared.ErrNotFound
}

func (m *MemoryTx) InsertBatch(_ context.Context, batch stock.Batch) (int64, error) {
	m.mu.Lock()
	for _, existing := range m.Batches {
		if existing.BatchNo == batch.BatchNo {
			m.mu.Unlock()
			return 0, fmt.Errorf("%w: batch number %s already registered", shared.ErrConflict, batch.BatchNo)
		}
	}
	m.mu.Unlock()
	return m.AddBatch(batch).ID, nil
}

func (m *MemoryTx) ListAvailableByProduct(_ context.Context, shopID, productID int64) ([]stock.BatchOnHand, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []stock.BatchOnHand{}
	for _, row := range m.stocks {
		if row.Location.Kind != stock.LocationShop || row.Location.ID != shopID || row.Qty <= 0 {
			continue
		}
		batch, ok := m.Batches[row.BatchID]
		if !ok || batch.ProductID != productID {
			continue
		}
		out = append(out, stock.BatchOnHand{
			BatchID: batch.ID, BatchNo: batch.BatchNo, Qty: row.Qty,
			UoMID: row.UoMID, ExpiresAt: batch.ExpiresAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.ExpiresAt == nil && b.ExpiresAt == nil:
			return a.BatchID < b.BatchID
		case a.ExpiresAt == nil:
			return false
		case b.ExpiresAt == nil:
			return true
		case a.ExpiresAt.Equal(*b.ExpiresAt):
			return a.BatchID < b.BatchID
		default:
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
	})
	return out, nil
}

func (m *MemoryTx) UnitExists(_ context.Context, uomID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Units[uomID], nil
}
