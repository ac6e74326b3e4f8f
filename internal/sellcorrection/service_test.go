package sellcorrection

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/stock/stocktest"
)

type memoryRepo struct {
	stock       *stocktest.MemoryTx
	corrections map[int64]Correction
	items       map[int64][]Item
	sales       map[int64]SaleInfo
	saleItems   map[int64]SaleItemInfo
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stock:       stocktest.NewMemoryTx(),
		corrections: map[int64]Correction{},
		items:       map[int64][]Item{},
		sales:       map[int64]SaleInfo{},
		saleItems:   map[int64]SaleItemInfo{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Correction, error) {
	c, ok := m.corrections[id]
	if !ok {
		return Correction{}, shared.ErrNotFound
	}
	c.Items = m.items[id]
	return c, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Correction, error) {
	out := []Correction{}
	for _, c := range m.corrections {
		out = append(out, c)
	}
	return out, nil
}

func (m *memoryRepo) Stock() stock.Tx { return m.stock }

func (m *memoryRepo) LastCode(ctx context.Context, pattern string) (string, error) {
	prefix := strings.TrimSuffix(pattern, "%")
	codes := []string{}
	for _, c := range m.corrections {
		if strings.HasPrefix(c.Code, prefix) {
			codes = append(codes, c.Code)
		}
	}
	if len(codes) == 0 {
		return "", nil
	}
	sort.Strings(codes)
	return codes[len(codes)-1], nil
}

func (m *memoryRepo) InsertCorrection(ctx context.Context, c Correction) (int64, error) {
	m.nextID++
	c.ID = m.nextID
	m.corrections[c.ID] = c
	return c.ID, nil
}

func (m *memoryRepo) InsertItems(ctx context.Context, correctionID int64, items []Item) error {
	m.items[correctionID] = append(m.items[correctionID], items...)
	return nil
}

func (m *memoryRepo) GetCorrectionForUpdate(ctx context.Context, id int64) (Correction, error) {
	c, ok := m.corrections[id]
	if !ok {
		return Correction{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *memoryRepo) UpdateStatus(ctx context.Context, id int64, status Status) error {
	c := m.corrections[id]
	c.Status = status
	m.corrections[id] = c
	return nil
}

func (m *memoryRepo) ListItems(ctx context.Context, correctionID int64) ([]Item, error) {
	return m.items[correctionID], nil
}

func (m *memoryRepo) DeleteItems(ctx context.Context, correctionID int64) error {
	delete(m.items, correctionID)
	return nil
}

func (m *memoryRepo) DeleteCorrection(ctx context.Context, id int64) error {
	delete(m.corrections, id)
	return nil
}

func (m *memoryRepo) GetSaleForUpdate(ctx context.Context, saleID int64) (SaleInfo, error) {
	s, ok := m.sales[saleID]
	if !ok {
		return SaleInfo{}, shared.ErrNotFound
	}
	return s, nil
}

func (m *memoryRepo) GetSaleItem(ctx context.Context, itemID int64) (SaleItemInfo, error) {
	item, ok := m.saleItems[itemID]
	if !ok {
		return SaleItemInfo{}, shared.ErrNotFound
	}
	return item, nil
}

func (m *memoryRepo) UpdateSaleNetTotal(ctx context.Context, saleID int64, netTotal decimal.Decimal) error {
	s := m.sales[saleID]
	s.NetTotal = netTotal
	m.sales[saleID] = s
	return nil
}

func newTestService(repo *memoryRepo) *Service {
	mover := stock.NewMover(stock.MoverConfig{}, nil)
	svc := NewService(repo, mover, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

// seedSale sets up sale 1 (net total 100) with one item of product 10 at
// shop 2 priced 10, and 20 units of a batch at that shop.
func seedSale(repo *memoryRepo) int64 {
	batch := repo.stock.AddBatch(stock.Batch{ProductID: 10, BatchNo: "B-001", StoreID: 1})
	repo.stock.SetStock(stock.ShopRef(2), batch.ID, 20, 1)
	repo.sales[1] = SaleInfo{ID: 1, InvoiceNo: "INV-2608-0001", NetTotal: decimal.NewFromInt(100)}
	repo.saleItems[5] = SaleItemInfo{
		ID: 5, SaleID: 1, ProductID: 10, ShopID: 2, UoMID: 1,
		UnitPrice: decimal.NewFromInt(10),
	}
	return batch.ID
}

func additionInput(batchID int64) CreateInput {
	return CreateInput{
		SaleID: 1,
		Reason: "shipment shortfall",
		Items: []ItemInput{{
			SellItemID: 5,
			BatchID:    batchID,
			Direction:  DirectionAddition,
			Qty:        2,
			UnitPrice:  decimal.NewFromInt(10),
		}},
		ActorID: 7,
	}
}

func TestCreatePending(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batchID := seedSale(repo)

	created, err := svc.Create(context.Background(), additionInput(batchID))
	require.NoError(t, err)
	require.Equal(t, "SCR-2608-0001", created.Code)
	require.Equal(t, StatusPending, created.Status)
	require.Equal(t, int64(10), created.Items[0].ProductID)
	require.Empty(t, repo.stock.Ledger)
	require.True(t, repo.sales[1].NetTotal.Equal(decimal.NewFromInt(100)))
}

func TestCreateRejectsForeignSaleItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batchID := seedSale(repo)
	repo.saleItems[9] = SaleItemInfo{ID: 9, SaleID: 2, ProductID: 10, ShopID: 2, UoMID: 1}

	input := additionInput(batchID)
	input.Items[0].SellItemID = 9
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateRejectsBatchOfOtherProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedSale(repo)
	other := repo.stock.AddBatch(stock.Batch{ProductID: 11, BatchNo: "B-002", StoreID: 1})
	repo.stock.SetStock(stock.ShopRef(2), other.ID, 20, 1)

	// The sale item sells product 10; its correction cannot draw on
	// product 11's batch.
	input := additionInput(other.ID)
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.stock.Ledger)
}

func TestApproveAdditionRaisesNetTotal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedSale(repo)

	created, err := svc.Create(ctx, additionInput(batchID))
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	// Net total 100 + 2x10 = 120; shop stock 20 + 2 = 22.
	require.True(t, repo.sales[1].NetTotal.Equal(decimal.NewFromInt(120)))
	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 22.0, qty)

	entries := repo.stock.LedgerFor(created.Code)
	require.Len(t, entries, 1)
	require.Equal(t, stock.MovementIn, entries[0].Movement)
	require.Equal(t, 2.0, entries[0].Qty)
}

func TestApproveSubtractionPricesAtSaleItem(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedSale(repo)

	input := additionInput(batchID)
	input.Items[0].Direction = DirectionSubtraction
	// The correction's own price must be ignored for subtractions.
	input.Items[0].UnitPrice = decimal.NewFromInt(99)
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)

	// Net total 100 - 2x10 (original sale price) = 80; stock 20 - 2 = 18.
	require.True(t, repo.sales[1].NetTotal.Equal(decimal.NewFromInt(80)))
	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 18.0, qty)

	entries := repo.stock.LedgerFor(created.Code)
	require.Len(t, entries, 1)
	require.Equal(t, stock.MovementOut, entries[0].Movement)
}

func TestApproveClampsNetTotalAtZero(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedSale(repo)
	repo.sales[1] = SaleInfo{ID: 1, InvoiceNo: "INV-2608-0001", NetTotal: decimal.NewFromInt(5)}

	input := additionInput(batchID)
	input.Items[0].Direction = DirectionSubtraction
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)
	require.True(t, repo.sales[1].NetTotal.Equal(decimal.Zero))
}

func TestApproveOnlyWhilePending(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedSale(repo)

	created, err := svc.Create(ctx, additionInput(batchID))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, created.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestDeleteApprovedReversesBoth(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedSale(repo)

	created, err := svc.Create(ctx, additionInput(batchID))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, 7))

	// Stock and net total back to pre-approval values.
	require.True(t, repo.sales[1].NetTotal.Equal(decimal.NewFromInt(100)))
	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)

	require.Len(t, repo.stock.LedgerFor(created.Code), 1)
	rev := repo.stock.LedgerFor(ReversalReference(created.Code))
	require.Len(t, rev, 1)
	require.Equal(t, stock.MovementOut, rev[0].Movement)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRejectAndDeletePendingNoEffect(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedSale(repo)

	created, err := svc.Create(ctx, additionInput(batchID))
	require.NoError(t, err)
	rejected, err := svc.Reject(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)

	require.NoError(t, svc.Delete(ctx, created.ID, 7))
	require.Empty(t, repo.stock.Ledger)
	require.True(t, repo.sales[1].NetTotal.Equal(decimal.NewFromInt(100)))
}
