package sell

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/masterdata"
	"github.com/samudra-retail/samudra-retail/internal/notification"
	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/stock/stocktest"
)

type memoryRepo struct {
	stock       *stocktest.MemoryTx
	sales       map[int64]Sale
	items       map[int64][]Item
	itemBatches []ItemBatch
	nextID      int64
	nextItemID  int64
	nextBatchID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stock: stocktest.NewMemoryTx(),
		sales: map[int64]Sale{},
		items: map[int64][]Item{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	s.Items = m.items[id]
	return s, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	out := []Sale{}
	for _, s := range m.sales {
		out = append(out, s)
	}
	return out, nil
}

func (m *memoryRepo) Stock() stock.Tx { return m.stock }

func (m *memoryRepo) LastCode(ctx context.Context, pattern string) (string, error) {
	prefix := strings.TrimSuffix(pattern, "%")
	codes := []string{}
	for _, s := range m.sales {
		if strings.HasPrefix(s.InvoiceNo, prefix) {
			codes = append(codes, s.InvoiceNo)
		}
	}
	if len(codes) == 0 {
		return "", nil
	}
	sort.Strings(codes)
	return codes[len(codes)-1], nil
}

func (m *memoryRepo) InsertSale(ctx context.Context, s Sale) (int64, error) {
	for _, existing := range m.sales {
		if existing.InvoiceNo == s.InvoiceNo {
			return 0, shared.ErrConflict
		}
	}
	m.nextID++
	s.ID = m.nextID
	m.sales[s.ID] = s
	return s.ID, nil
}

func (m *memoryRepo) InsertItems(ctx context.Context, saleID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		m.nextItemID++
		item.ID = m.nextItemID
		item.SaleID = saleID
		m.items[saleID] = append(m.items[saleID], item)
		out = append(out, item)
	}
	return out, nil
}

func (m *memoryRepo) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	s, ok := m.sales[id]
	if !ok {
		return Sale{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) UpdateSale(ctx context.Context, s Sale) error {
	stored := m.sales[s.ID]
	stored.CustomerID = s.CustomerID
	stored.BranchID = s.BranchID
	stored.NetTotal = s.NetTotal
	stored.Status = s.Status
	stored.Note = s.Note
	m.sales[s.ID] = stored
	return nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	s := m.sales[id]
	s.Status = status
	m.sales[id] = s
	return nil
}

func (m *memoryRepo) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	s := m.sales[id]
	s.PaymentStatus = status
	m.sales[id] = s
	return nil
}

func (m *memoryRepo) UpdateNetTotal(ctx context.Context, id int64, netTotal decimal.Decimal) error {
	s := m.sales[id]
	s.NetTotal = netTotal
	m.sales[id] = s
	return nil
}

func (m *memoryRepo) UpdateItemStatus(ctx context.Context, itemID int64, status ItemStatus) error {
	for saleID, items := range m.items {
		for i := range items {
			if items[i].ID == itemID {
				items[i].Status = status
				m.items[saleID] = items
				return nil
			}
		}
	}
	return shared.ErrNotFound
}

func (m *memoryRepo) ListItems(ctx context.Context, saleID int64) ([]Item, error) {
	out := make([]Item, len(m.items[saleID]))
	copy(out, m.items[saleID])
	return out, nil
}

func (m *memoryRepo) InsertItemBatch(ctx context.Context, b ItemBatch) (int64, error) {
	m.nextBatchID++
	b.ID = m.nextBatchID
	m.itemBatches = append(m.itemBatches, b)
	return b.ID, nil
}

func (m *memoryRepo) ListItemBatches(ctx context.Context, saleID int64) ([]ItemBatch, error) {
	itemIDs := map[int64]bool{}
	for _, item := range m.items[saleID] {
		itemIDs[item.ID] = true
	}
	out := []ItemBatch{}
	for _, b := range m.itemBatches {
		if itemIDs[b.SellItemID] {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memoryRepo) DeleteItemBatches(ctx context.Context, saleID int64) error {
	itemIDs := map[int64]bool{}
	for _, item := range m.items[saleID] {
		itemIDs[item.ID] = true
	}
	kept := m.itemBatches[:0]
	for _, b := range m.itemBatches {
		if !itemIDs[b.SellItemID] {
			kept = append(kept, b)
		}
	}
	m.itemBatches = kept
	return nil
}

func (m *memoryRepo) DeleteItems(ctx context.Context, saleID int64) error {
	delete(m.items, saleID)
	return nil
}

func (m *memoryRepo) DeleteSale(ctx context.Context, id int64) error {
	delete(m.sales, id)
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) GetProduct(ctx context.Context, id int64) (masterdata.Product, error) {
	if id == 10 || id == 11 {
		return masterdata.Product{ID: id, UnitID: 1, SellPrice: decimal.NewFromInt(10), IsActive: true}, nil
	}
	return masterdata.Product{}, shared.ErrNotFound
}

func (fakeCatalog) GetShop(ctx context.Context, id int64) (masterdata.Shop, error) {
	if id == 2 {
		return masterdata.Shop{ID: 2}, nil
	}
	return masterdata.Shop{}, shared.ErrNotFound
}

func (fakeCatalog) GetBranch(ctx context.Context, id int64) (masterdata.Branch, error) {
	if id == 1 {
		return masterdata.Branch{ID: 1}, nil
	}
	return masterdata.Branch{}, shared.ErrNotFound
}

func (fakeCatalog) GetCustomer(ctx context.Context, id int64) (masterdata.Customer, error) {
	if id == 3 {
		return masterdata.Customer{ID: 3}, nil
	}
	return masterdata.Customer{}, shared.ErrNotFound
}

func (fakeCatalog) AcceptedPrices(ctx context.Context, productID, shopID int64) ([]decimal.Decimal, error) {
	return []decimal.Decimal{decimal.NewFromInt(10), decimal.NewFromInt(8)}, nil
}

type fakeStock struct {
	mem *stocktest.MemoryTx
}

func (f fakeStock) Available(ctx context.Context, shopID, productID int64) (float64, error) {
	batches, err := f.mem.ListAvailableByProduct(ctx, shopID, productID)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, b := range batches {
		total += b.Qty
	}
	return total, nil
}

type fakeNotifier struct {
	events []notification.Event
}

func (f *fakeNotifier) Dispatch(ctx context.Context, events ...notification.Event) {
	f.events = append(f.events, events...)
}

func newTestService(repo *memoryRepo, notifier *fakeNotifier) *Service {
	var port NotifierPort
	if notifier != nil {
		port = notifier
	}
	mover := stock.NewMover(stock.MoverConfig{}, nil)
	svc := NewService(repo, fakeCatalog{}, fakeStock{mem: repo.stock}, mover, nil, port)
	svc.now = func() time.Time { return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

// seedShopStock puts 20 units of a batch of product 10 at shop 2.
func seedShopStock(repo *memoryRepo) int64 {
	batch := repo.stock.AddBatch(stock.Batch{ProductID: 10, BatchNo: "B-001", StoreID: 1})
	repo.stock.SetStock(stock.ShopRef(2), batch.ID, 20, 1)
	return batch.ID
}

func validInput() CreateInput {
	return CreateInput{
		CustomerID: 3,
		BranchID:   1,
		Items: []ItemInput{{
			ProductID: 10,
			ShopID:    2,
			UoMID:     1,
			Qty:       5,
			UnitPrice: decimal.NewFromInt(10),
		}},
		ActorID: 7,
	}
}

func TestCreateAutoApprovesCatalogPrice(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)
	batchID := seedShopStock(repo)

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, "INV-2608-0001", created.InvoiceNo)
	require.Equal(t, StatusApproved, created.Status)
	require.True(t, created.Items[0].PriceValid)
	require.True(t, created.NetTotal.Equal(decimal.NewFromInt(50)))

	// Creation validates stock but never touches it.
	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)
	require.Empty(t, repo.stock.Ledger)

	require.Len(t, notifier.events, 1)
	require.Equal(t, notification.TypeSaleApproved, notifier.events[0].Type)
	require.Equal(t, []int64{2}, notifier.events[0].ShopIDs)
}

func TestCreateOffCatalogPriceNotApproved(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)
	seedShopStock(repo)

	input := validInput()
	input.Items[0].UnitPrice = decimal.NewFromInt(7)
	created, err := svc.Create(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, StatusNotApproved, created.Status)
	require.False(t, created.Items[0].PriceValid)
	require.Empty(t, notifier.events)
}

func TestCreateInsufficientStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	seedShopStock(repo)

	input := validInput()
	input.Items[0].Qty = 25
	_, err := svc.Create(context.Background(), input)
	require.True(t, shared.IsInsufficientStock(err))
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	seedShopStock(repo)
	ctx := context.Background()

	input := validInput()
	input.Items = nil
	_, err := svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.Items[0].UnitPrice = decimal.NewFromInt(-1)
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.CustomerID = 999
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeliverMovesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	delivered, err := svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, delivered.Status)
	require.Equal(t, ItemDelivered, delivered.Items[0].Status)

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 15.0, qty)

	entries := repo.stock.LedgerFor(created.InvoiceNo)
	require.Len(t, entries, 1)
	require.Equal(t, stock.MovementOut, entries[0].Movement)
	require.Equal(t, 5.0, entries[0].Qty)

	batches, err := repo.ListItemBatches(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	require.Equal(t, 5.0, batches[0].Qty)
}

func TestDeliverBatchSumMismatchRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 3}},
		}},
		ActorID: 7,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)
}

func TestDeliverRejectsBatchOfOtherProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	// A different product's batch with plenty of stock at the same shop.
	other := repo.stock.AddBatch(stock.Batch{ProductID: 11, BatchNo: "B-002", StoreID: 1})
	repo.stock.SetStock(stock.ShopRef(2), other.ID, 20, 1)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	_, err = svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: other.ID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	// Neither batch moved and no allocation was recorded.
	qty, _ := repo.stock.StockQty(stock.ShopRef(2), other.ID)
	require.Equal(t, 20.0, qty)
	qty, _ = repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)
	require.Empty(t, repo.stock.Ledger)

	batches, err := repo.ListItemBatches(ctx, created.ID)
	require.NoError(t, err)
	require.Empty(t, batches)
}

func TestPartialDeliveryStatus(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	input := validInput()
	input.Items = append(input.Items, ItemInput{
		ProductID: 10, ShopID: 2, UoMID: 1, Qty: 3, UnitPrice: decimal.NewFromInt(10),
	})
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.Len(t, created.Items, 2)

	partial, err := svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusPartiallyDelivered, partial.Status)

	// DeliverAll rejects a request that skips the remaining pending item.
	_, err = svc.DeliverAll(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.ErrorIs(t, err, shared.ErrValidation)

	full, err := svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[1].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 3}},
		}},
		ActorID: 7,
	})
	require.NoError(t, err)
	require.Equal(t, StatusDelivered, full.Status)

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 12.0, qty)
}

func TestDeliverTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	input := DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	}
	_, err = svc.Deliver(ctx, created.ID, input)
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, created.ID, input)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeleteDeliveredRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, 7))

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)

	// Delivery history stays; the reversal is a new IN entry.
	require.Len(t, repo.stock.LedgerFor(created.InvoiceNo), 1)
	rev := repo.stock.LedgerFor(ReversalReference(created.InvoiceNo))
	require.Len(t, rev, 1)
	require.Equal(t, stock.MovementIn, rev[0].Movement)
	require.Equal(t, 5.0, rev[0].Qty)

	require.Empty(t, repo.itemBatches)
	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestUpdateAddsBackPendingAllocation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	seedShopStock(repo)

	input := validInput()
	input.Items[0].Qty = 15
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)

	// The old 15 counts as available again while being replaced.
	input.Items[0].Qty = 20
	updated, err := svc.Update(ctx, created.ID, input)
	require.NoError(t, err)
	require.Equal(t, 20.0, updated.Items[0].Qty)
	require.Equal(t, created.InvoiceNo, updated.InvoiceNo)

	input.Items[0].Qty = 41
	_, err = svc.Update(ctx, created.ID, input)
	require.True(t, shared.IsInsufficientStock(err))
}

func TestUpdateBlockedAfterDelivery(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, validInput())
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestStatusTransitions(t *testing.T) {
	repo := newMemoryRepo()
	notifier := &fakeNotifier{}
	svc := newTestService(repo, notifier)
	ctx := context.Background()
	seedShopStock(repo)

	input := validInput()
	input.Items[0].UnitPrice = decimal.NewFromInt(7)
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)
	require.Equal(t, StatusNotApproved, created.Status)

	approved, err := svc.UpdateStatus(ctx, created.ID, StatusApproved, 7)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)
	require.Len(t, notifier.events, 1)

	cancelled, err := svc.Cancel(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.Len(t, notifier.events, 2)
	require.Equal(t, notification.TypeSaleCancelled, notifier.events[1].Type)

	// Terminal.
	_, err = svc.UpdateStatus(ctx, created.ID, StatusApproved, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestCancelBlockedOnceDelivered(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Deliver(ctx, created.ID, DeliveryInput{
		Items: []DeliveryItem{{
			ItemID:  created.Items[0].ID,
			Batches: []BatchAllocation{{BatchID: batchID, Qty: 5}},
		}},
		ActorID: 7,
	})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, created.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)

	// Delivered sales can be marked returned.
	returned, err := svc.UpdateStatus(ctx, created.ID, StatusReturned, 7)
	require.NoError(t, err)
	require.Equal(t, StatusReturned, returned.Status)
}
