package stock_test

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/stock/stocktest"
)

func newMover() *stock.Mover {
	return stock.NewMover(stock.MoverConfig{}, nil)
}

func seedBatch(tx *stocktest.MemoryTx) stock.Batch {
	return tx.AddBatch(stock.Batch{
		ProductID: 10,
		BatchNo:   "B-001",
		UnitCost:  decimal.NewFromInt(1500),
		StoreID:   1,
	})
}

func TestApplyInCreatesRow(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()

	entry, err := mover.Apply(context.Background(), tx, stock.MovementRequest{
		Module:    "purchase",
		Location:  stock.StoreRef(1),
		BatchID:   batch.ID,
		ProductID: batch.ProductID,
		Movement:  stock.MovementIn,
		Qty:       40,
		UoMID:     1,
		Reference: "PUR-INV-1",
		ActorID:   7,
	})
	require.NoError(t, err)
	require.NotZero(t, entry.ID)
	require.Equal(t, stock.MovementIn, entry.Movement)

	qty, ok := tx.StockQty(stock.StoreRef(1), batch.ID)
	require.True(t, ok)
	require.Equal(t, 40.0, qty)
	require.Len(t, tx.LedgerFor("PUR-INV-1"), 1)
}

func TestApplyInAccumulates(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()
	req := stock.MovementRequest{
		Location: stock.StoreRef(1), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementIn, Qty: 10, UoMID: 1, Reference: "PUR-INV-2",
	}

	_, err := mover.Apply(context.Background(), tx, req)
	require.NoError(t, err)
	_, err = mover.Apply(context.Background(), tx, req)
	require.NoError(t, err)

	qty, _ := tx.StockQty(stock.StoreRef(1), batch.ID)
	require.Equal(t, 20.0, qty)
}

func TestApplyOutGuardsAvailability(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	tx.SetStock(stock.ShopRef(3), batch.ID, 5, 1)
	mover := newMover()

	_, err := mover.Apply(context.Background(), tx, stock.MovementRequest{
		Location: stock.ShopRef(3), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementOut, Qty: 8, UoMID: 1, Reference: "INV-2608-0001",
	})
	require.Error(t, err)
	var insufficient *shared.InsufficientStockError
	require.True(t, errors.As(err, &insufficient))
	require.Equal(t, batch.ProductID, insufficient.ProductID)
	require.Equal(t, 8.0, insufficient.Requested)
	require.Equal(t, 5.0, insufficient.Available)

	// Failed movements leave no trace.
	qty, _ := tx.StockQty(stock.ShopRef(3), batch.ID)
	require.Equal(t, 5.0, qty)
	require.Empty(t, tx.LedgerFor("INV-2608-0001"))
}

func TestApplyOutMissingRowIsInsufficient(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()

	_, err := mover.Apply(context.Background(), tx, stock.MovementRequest{
		Location: stock.ShopRef(3), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementOut, Qty: 1, UoMID: 1, Reference: "INV-2608-0002",
	})
	require.True(t, shared.IsInsufficientStock(err))
}

func TestApplyOutDrainsRowToZero(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	tx.SetStock(stock.ShopRef(3), batch.ID, 5, 1)
	mover := newMover()

	_, err := mover.Apply(context.Background(), tx, stock.MovementRequest{
		Location: stock.ShopRef(3), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementOut, Qty: 5, UoMID: 1, Reference: "INV-2608-0003",
	})
	require.NoError(t, err)

	// A forward OUT keeps the emptied row; only reversals remove rows.
	qty, ok := tx.StockQty(stock.ShopRef(3), batch.ID)
	require.True(t, ok)
	require.Equal(t, 0.0, qty)
}

func TestAllowNegativeStock(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := stock.NewMover(stock.MoverConfig{AllowNegativeStock: true}, nil)

	_, err := mover.Apply(context.Background(), tx, stock.MovementRequest{
		Location: stock.ShopRef(3), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementOut, Qty: 2, UoMID: 1, Reference: "INV-2608-0004",
	})
	require.NoError(t, err)
	qty, _ := tx.StockQty(stock.ShopRef(3), batch.ID)
	require.Equal(t, -2.0, qty)
}

func TestReverseSkipsGuardAndDeletesEmptiedRow(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	tx.SetStock(stock.ShopRef(3), batch.ID, 4, 1)
	mover := newMover()

	// Compensating OUT larger than on-hand is allowed during reversal and
	// removes the row once it hits zero or below.
	_, err := mover.Reverse(context.Background(), tx, stock.MovementRequest{
		Location: stock.ShopRef(3), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementOut, Qty: 4, UoMID: 1, Reference: "REV-TRF-2608-0001-IN-1",
	})
	require.NoError(t, err)

	_, ok := tx.StockQty(stock.ShopRef(3), batch.ID)
	require.False(t, ok)
	require.Len(t, tx.LedgerFor("REV-TRF-2608-0001-IN-1"), 1)
}

func TestReverseInRestoresStock(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()

	_, err := mover.Reverse(context.Background(), tx, stock.MovementRequest{
		Location: stock.ShopRef(3), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementIn, Qty: 6, UoMID: 1, Reference: "REV-INV-2608-0005",
	})
	require.NoError(t, err)
	qty, ok := tx.StockQty(stock.ShopRef(3), batch.ID)
	require.True(t, ok)
	require.Equal(t, 6.0, qty)
}

func TestApplyValidation(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()
	base := stock.MovementRequest{
		Location: stock.StoreRef(1), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementIn, Qty: 1, UoMID: 1, Reference: "PUR-X",
	}

	cases := map[string]func(*stock.MovementRequest){
		"zero qty":         func(r *stock.MovementRequest) { r.Qty = 0 },
		"negative qty":     func(r *stock.MovementRequest) { r.Qty = -3 },
		"missing uom":      func(r *stock.MovementRequest) { r.UoMID = 0 },
		"unknown uom":      func(r *stock.MovementRequest) { r.UoMID = 99 },
		"missing ref":      func(r *stock.MovementRequest) { r.Reference = "" },
		"bad movement":     func(r *stock.MovementRequest) { r.Movement = "SIDEWAYS" },
		"missing batch":    func(r *stock.MovementRequest) { r.BatchID = 0 },
		"invalid location": func(r *stock.MovementRequest) { r.Location = stock.LocationRef{} },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := base
			mutate(&req)
			_, err := mover.Apply(context.Background(), tx, req)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}
}

func TestLedgerSumMatchesOnHand(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()
	loc := stock.StoreRef(1)

	steps := []struct {
		movement stock.Movement
		qty      float64
		ref      string
	}{
		{stock.MovementIn, 100, "PUR-A"},
		{stock.MovementOut, 30, "TRF-2608-0001-OUT-1"},
		{stock.MovementIn, 12, "COR-2608-0001"},
		{stock.MovementOut, 50, "TRF-2608-0002-OUT-1"},
	}
	for _, step := range steps {
		_, err := mover.Apply(context.Background(), tx, stock.MovementRequest{
			Location: loc, BatchID: batch.ID, ProductID: batch.ProductID,
			Movement: step.movement, Qty: step.qty, UoMID: 1, Reference: step.ref,
		})
		require.NoError(t, err)
	}

	qty, _ := tx.StockQty(loc, batch.ID)
	require.Equal(t, 32.0, qty)
	require.Equal(t, qty, tx.NetLedger(loc, batch.ID))
}

func TestResolveBatch(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	ctx := context.Background()

	attrs := stock.Batch{ProductID: 10, BatchNo: "B-100", UnitCost: decimal.NewFromInt(900), StoreID: 1}
	created, err := stock.ResolveBatch(ctx, tx, attrs)
	require.NoError(t, err)
	require.NotZero(t, created.ID)

	again, err := stock.ResolveBatch(ctx, tx, attrs)
	require.NoError(t, err)
	require.Equal(t, created.ID, again.ID)

	byID, err := stock.ResolveBatch(ctx, tx, stock.Batch{ID: created.ID})
	require.NoError(t, err)
	require.Equal(t, "B-100", byID.BatchNo)

	_, err = stock.ResolveBatch(ctx, tx, stock.Batch{ProductID: 10})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestResolveBatchNumberIsGloballyUnique(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	ctx := context.Background()

	_, err := stock.ResolveBatch(ctx, tx, stock.Batch{ProductID: 10, BatchNo: "B-100", StoreID: 1})
	require.NoError(t, err)

	// Same number for another product or store is a duplicate, not a new lot.
	_, err = stock.ResolveBatch(ctx, tx, stock.Batch{ProductID: 11, BatchNo: "B-100", StoreID: 1})
	require.ErrorIs(t, err, shared.ErrConflict)

	_, err = stock.ResolveBatch(ctx, tx, stock.Batch{ProductID: 10, BatchNo: "B-100", StoreID: 2})
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestHasMovements(t *testing.T) {
	tx := stocktest.NewMemoryTx()
	batch := seedBatch(tx)
	mover := newMover()
	ctx := context.Background()

	found, err := stock.HasMovements(ctx, tx, "PUR-INV-9")
	require.NoError(t, err)
	require.False(t, found)

	_, err = mover.Apply(ctx, tx, stock.MovementRequest{
		Location: stock.StoreRef(1), BatchID: batch.ID, ProductID: batch.ProductID,
		Movement: stock.MovementIn, Qty: 3, UoMID: 1, Reference: "PUR-INV-9",
	})
	require.NoError(t, err)

	found, err = stock.HasMovements(ctx, tx, "PUR-INV-9")
	require.NoError(t, err)
	require.True(t, found)
}
