package correction

import (
	"context"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/stock/stocktest"
)

type memoryRepo struct {
	stock       *stocktest.MemoryTx
	corrections map[int64]Correction
	items       map[int64][]Item
	nextID      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stock:       stocktest.NewMemoryTx(),
		corrections: map[int64]Correction{},
		items:       map[int64][]Item{},
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

func newTestService(repo *memoryRepo) *Service {
	mover := stock.NewMover(stock.MoverConfig{}, nil)
	svc := NewService(repo, mover, nil, nil)
	svc.now = func() time.Time { return time.Date(2026, 8, 15, 10, 0, 0, 0, time.UTC) }
	return svc
}

// seedShopStock puts 20 units of a batch at shop 2 and returns the batch id.
func seedShopStock(repo *memoryRepo) int64 {
	batch := repo.stock.AddBatch(stock.Batch{ProductID: 10, BatchNo: "B-001", StoreID: 1})
	repo.stock.SetStock(stock.ShopRef(2), batch.ID, 20, 1)
	return batch.ID
}

func subtractionInput(batchID int64, qty float64) CreateInput {
	return CreateInput{
		Location: stock.ShopRef(2),
		Reason:   "shrinkage count",
		Items: []ItemInput{{
			ProductID: 10,
			BatchID:   batchID,
			UoMID:     1,
			Direction: DirectionSubtraction,
			Qty:       qty,
		}},
		ActorID: 7,
	}
}

func TestCreatePendingNoStockEffect(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batchID := seedShopStock(repo)

	created, err := svc.Create(context.Background(), subtractionInput(batchID, 3))
	require.NoError(t, err)
	require.Equal(t, "COR-2608-0001", created.Code)
	require.Equal(t, StatusPending, created.Status)

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)
	require.Empty(t, repo.stock.Ledger)
}

func TestCreateValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	batchID := seedShopStock(repo)
	ctx := context.Background()

	input := subtractionInput(batchID, 3)
	input.Location = stock.LocationRef{}
	_, err := svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = subtractionInput(batchID, 3)
	input.Items[0].Direction = "SIDEWAYS"
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = subtractionInput(999, 3)
	_, err = svc.Create(ctx, input)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestCreateRejectsBatchOfOtherProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedShopStock(repo)
	other := repo.stock.AddBatch(stock.Batch{ProductID: 11, BatchNo: "B-002", StoreID: 1})
	repo.stock.SetStock(stock.ShopRef(2), other.ID, 20, 1)

	// Line claims product 10 but points at product 11's batch.
	input := subtractionInput(other.ID, 3)
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)
	require.Empty(t, repo.stock.Ledger)
}

func TestApproveSubtraction(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, subtractionInput(batchID, 3))
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusApproved, approved.Status)

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 17.0, qty)

	entries := repo.stock.LedgerFor(created.Code)
	require.Len(t, entries, 1)
	require.Equal(t, stock.MovementOut, entries[0].Movement)
	require.Equal(t, 3.0, entries[0].Qty)
}

func TestApproveAddition(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	input := subtractionInput(batchID, 5)
	input.Items[0].Direction = DirectionAddition
	created, err := svc.Create(ctx, input)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 25.0, qty)
	entries := repo.stock.LedgerFor(created.Code)
	require.Len(t, entries, 1)
	require.Equal(t, stock.MovementIn, entries[0].Movement)
}

func TestApproveGuardsAvailability(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, subtractionInput(batchID, 30))
	require.NoError(t, err)

	_, err = svc.Approve(ctx, created.ID, 7)
	require.True(t, shared.IsInsufficientStock(err))

	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)
}

func TestApproveOnlyWhilePending(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, subtractionInput(batchID, 3))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)

	_, err = svc.Approve(ctx, created.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
	_, err = svc.Reject(ctx, created.ID, 7)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}

func TestRejectNoStockEffect(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, subtractionInput(batchID, 3))
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, created.ID, 7)
	require.NoError(t, err)
	require.Equal(t, StatusRejected, rejected.Status)
	require.Empty(t, repo.stock.Ledger)
}

func TestDeleteApprovedReverses(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, subtractionInput(batchID, 3))
	require.NoError(t, err)
	_, err = svc.Approve(ctx, created.ID, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, 7))

	// Round trip: back to the pre-approval quantity.
	qty, _ := repo.stock.StockQty(stock.ShopRef(2), batchID)
	require.Equal(t, 20.0, qty)

	require.Len(t, repo.stock.LedgerFor(created.Code), 1)
	rev := repo.stock.LedgerFor(ReversalReference(created.Code))
	require.Len(t, rev, 1)
	require.Equal(t, stock.MovementIn, rev[0].Movement)
	require.Equal(t, 3.0, rev[0].Qty)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletePendingLeavesNoLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()
	batchID := seedShopStock(repo)

	created, err := svc.Create(ctx, subtractionInput(batchID, 3))
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID, 7))
	require.Empty(t, repo.stock.Ledger)
}
