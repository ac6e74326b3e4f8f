// Package e2e runs document lifecycles end to end through the movement
// protocol and checks the ledger-sum invariant after every step.
package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/stock/stocktest"
)

func requireInvariant(t *testing.T, tx *stocktest.MemoryTx, loc stock.LocationRef, batchID int64) {
	t.Helper()
	qty, ok := tx.StockQty(loc, batchID)
	net := tx.NetLedger(loc, batchID)
	if !ok {
		require.LessOrEqual(t, net, 0.0, "deleted row must not have positive ledger sum")
		return
	}
	require.InDelta(t, net, qty, 1e-9, "on-hand must equal ledger sum at %v batch %d", loc, batchID)
}

func TestDocumentLifecyclesKeepLedgerInvariant(t *testing.T) {
	ctx := context.Background()
	tx := stocktest.NewMemoryTx()
	mover := stock.NewMover(stock.MoverConfig{}, nil)

	store := stock.StoreRef(1)
	shop := stock.ShopRef(2)
	batch := tx.AddBatch(stock.Batch{ProductID: 10, BatchNo: "LOT-A", StoreID: 1})

	// Purchase acceptance receives 100 units into the store.
	_, err := mover.Apply(ctx, tx, stock.MovementRequest{
		Module: "purchase", Location: store, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementIn, Qty: 100, UoMID: 1, Reference: "PUR-F-1001",
	})
	require.NoError(t, err)
	requireInvariant(t, tx, store, batch.ID)

	// Transfer completion moves 40 units to the shop, one leg per side.
	_, err = mover.Apply(ctx, tx, stock.MovementRequest{
		Module: "transfer", Location: store, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementOut, Qty: 40, UoMID: 1, Reference: "TRF-2608-0001-OUT-1",
	})
	require.NoError(t, err)
	_, err = mover.Apply(ctx, tx, stock.MovementRequest{
		Module: "transfer", Location: shop, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementIn, Qty: 40, UoMID: 1, Reference: "TRF-2608-0001-IN-1",
	})
	require.NoError(t, err)
	requireInvariant(t, tx, store, batch.ID)
	requireInvariant(t, tx, shop, batch.ID)

	// Sale delivery takes 15 from the shop.
	_, err = mover.Apply(ctx, tx, stock.MovementRequest{
		Module: "sell", Location: shop, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementOut, Qty: 15, UoMID: 1,
		Reference: "INV-2608-0001", InvoiceNo: "INV-2608-0001-1-1",
	})
	require.NoError(t, err)

	// A stock correction writes off 5 damaged units at the store.
	_, err = mover.Apply(ctx, tx, stock.MovementRequest{
		Module: "correction", Location: store, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementOut, Qty: 5, UoMID: 1, Reference: "COR-2608-0001",
	})
	require.NoError(t, err)

	storeQty, _ := tx.StockQty(store, batch.ID)
	shopQty, _ := tx.StockQty(shop, batch.ID)
	require.InDelta(t, 55.0, storeQty, 1e-9)
	require.InDelta(t, 25.0, shopQty, 1e-9)
	requireInvariant(t, tx, store, batch.ID)
	requireInvariant(t, tx, shop, batch.ID)

	// Deleting the sale restores the shop without touching ledger history.
	ledgerBefore := len(tx.Ledger)
	_, err = mover.Reverse(ctx, tx, stock.MovementRequest{
		Module: "sell", Location: shop, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementIn, Qty: 15, UoMID: 1, Reference: "REV-INV-2608-0001",
	})
	require.NoError(t, err)
	require.Len(t, tx.Ledger, ledgerBefore+1)
	shopQty, _ = tx.StockQty(shop, batch.ID)
	require.InDelta(t, 40.0, shopQty, 1e-9)
	requireInvariant(t, tx, shop, batch.ID)

	// Deleting the transfer reverses both legs; the emptied shop row goes away.
	_, err = mover.Reverse(ctx, tx, stock.MovementRequest{
		Module: "transfer", Location: store, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementIn, Qty: 40, UoMID: 1, Reference: "REV-TRF-2608-0001-OUT-1",
	})
	require.NoError(t, err)
	_, err = mover.Reverse(ctx, tx, stock.MovementRequest{
		Module: "transfer", Location: shop, BatchID: batch.ID, ProductID: 10,
		Movement: stock.MovementOut, Qty: 40, UoMID: 1, Reference: "REV-TRF-2608-0001-IN-1",
	})
	require.NoError(t, err)

	storeQty, _ = tx.StockQty(store, batch.ID)
	require.InDelta(t, 95.0, storeQty, 1e-9)
	_, shopRowExists := tx.StockQty(shop, batch.ID)
	require.False(t, shopRowExists, "shop row emptied by reversal must be deleted")
	require.InDelta(t, 0.0, tx.NetLedger(shop, batch.ID), 1e-9)
	requireInvariant(t, tx, store, batch.ID)
}

func TestForwardOutIsGuardedReversalIsNot(t *testing.T) {
	ctx := context.Background()
	tx := stocktest.NewMemoryTx()
	mover := stock.NewMover(stock.MoverConfig{}, nil)

	shop := stock.ShopRef(7)
	batch := tx.AddBatch(stock.Batch{ProductID: 3, BatchNo: "LOT-B", StoreID: 1})
	tx.SetStock(shop, batch.ID, 10, 1)

	_, err := mover.Apply(ctx, tx, stock.MovementRequest{
		Module: "sell", Location: shop, BatchID: batch.ID, ProductID: 3,
		Movement: stock.MovementOut, Qty: 11, UoMID: 1, Reference: "INV-2608-0009",
	})
	require.True(t, shared.IsInsufficientStock(err))
	qty, _ := tx.StockQty(shop, batch.ID)
	require.InDelta(t, 10.0, qty, 1e-9)
	require.Empty(t, tx.LedgerFor("INV-2608-0009"))

	// Reversals must go through even when they drive the row negative; the
	// emptied row is removed instead of stored at a negative quantity.
	_, err = mover.Reverse(ctx, tx, stock.MovementRequest{
		Module: "correction", Location: shop, BatchID: batch.ID, ProductID: 3,
		Movement: stock.MovementOut, Qty: 11, UoMID: 1, Reference: "REV-COR-2608-0002",
	})
	require.NoError(t, err)
	_, exists := tx.StockQty(shop, batch.ID)
	require.False(t, exists)
}
