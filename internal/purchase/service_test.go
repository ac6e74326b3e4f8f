package purchase

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/samudra-retail/samudra-retail/internal/masterdata"
	"github.com/samudra-retail/samudra-retail/internal/shared"
	"github.com/samudra-retail/samudra-retail/internal/stock"
	"github.com/samudra-retail/samudra-retail/internal/stock/stocktest"
)

type memoryRepo struct {
	stock     *stocktest.MemoryTx
	purchases map[int64]Purchase
	items     map[int64][]Item
	nextID    int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		stock:     stocktest.NewMemoryTx(),
		purchases: map[int64]Purchase{},
		items:     map[int64][]Item{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) Get(ctx context.Context, id int64) (Purchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	p.Items = m.items[id]
	return p, nil
}

func (m *memoryRepo) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	out := []Purchase{}
	for _, p := range m.purchases {
		out = append(out, p)
	}
	return out, nil
}

func (m *memoryRepo) Stock() stock.Tx { return m.stock }

func (m *memoryRepo) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	for _, existing := range m.purchases {
		if existing.InvoiceNo == p.InvoiceNo {
			return 0, shared.ErrConflict
		}
	}
	m.nextID++
	p.ID = m.nextID
	m.purchases[p.ID] = p
	return p.ID, nil
}

func (m *memoryRepo) InsertItems(ctx context.Context, purchaseID int64, items []Item) error {
	m.items[purchaseID] = append(m.items[purchaseID], items...)
	return nil
}

func (m *memoryRepo) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	p, ok := m.purchases[id]
	if !ok {
		return Purchase{}, shared.ErrNotFound
	}
	return p, nil
}

func (m *memoryRepo) UpdatePurchase(ctx context.Context, p Purchase) error {
	m.purchases[p.ID] = p
	return nil
}

func (m *memoryRepo) ListItems(ctx context.Context, purchaseID int64) ([]Item, error) {
	return m.items[purchaseID], nil
}

func (m *memoryRepo) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	p := m.purchases[id]
	p.PaymentStatus = status
	m.purchases[id] = p
	return nil
}

func (m *memoryRepo) DeleteItems(ctx context.Context, purchaseID int64) error {
	delete(m.items, purchaseID)
	return nil
}

func (m *memoryRepo) DeletePurchase(ctx context.Context, id int64) error {
	delete(m.purchases, id)
	return nil
}

type fakeCatalog struct{}

func (fakeCatalog) GetProduct(ctx context.Context, id int64) (masterdata.Product, error) {
	if id == 10 {
		return masterdata.Product{ID: 10, SKU: "SKU-10", UnitID: 1, IsActive: true}, nil
	}
	return masterdata.Product{}, shared.ErrNotFound
}

func (fakeCatalog) GetUnit(ctx context.Context, id int64) (masterdata.Unit, error) {
	if id == 1 {
		return masterdata.Unit{ID: 1, Code: "PCS"}, nil
	}
	return masterdata.Unit{}, shared.ErrNotFound
}

func (fakeCatalog) GetStore(ctx context.Context, id int64) (masterdata.Store, error) {
	if id == 1 {
		return masterdata.Store{ID: 1, Code: "ST-1"}, nil
	}
	return masterdata.Store{}, shared.ErrNotFound
}

func (fakeCatalog) GetSupplier(ctx context.Context, id int64) (masterdata.Supplier, error) {
	if id == 5 {
		return masterdata.Supplier{ID: 5, Code: "SUP-5"}, nil
	}
	return masterdata.Supplier{}, shared.ErrNotFound
}

func newTestService(repo *memoryRepo) *Service {
	mover := stock.NewMover(stock.MoverConfig{}, nil)
	return NewService(repo, fakeCatalog{}, mover, nil, nil)
}

func validInput() CreateInput {
	return CreateInput{
		SupplierID: 5,
		StoreID:    1,
		InvoiceNo:  "F-1001",
		Items: []ItemInput{{
			ProductID: 10,
			BatchNo:   "B-001",
			UoMID:     1,
			Qty:       50,
			UnitPrice: decimal.NewFromInt(1500),
		}},
		ActorID: 7,
	}
}

func TestCreatePendingWithoutStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)

	created, err := svc.Create(context.Background(), validInput())
	require.NoError(t, err)
	require.Equal(t, PaymentPending, created.PaymentStatus)
	require.Len(t, created.Items, 1)
	require.NotZero(t, created.Items[0].BatchID)

	// Creation only registers the batch; stock stays untouched.
	_, ok := repo.stock.StockQty(stock.StoreRef(1), created.Items[0].BatchID)
	require.False(t, ok)
	require.Empty(t, repo.stock.Ledger)
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())

	input := validInput()
	input.Items = nil
	_, err := svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.Items[0].Qty = 0
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrValidation)

	input = validInput()
	input.Items[0].ProductID = 999
	_, err = svc.Create(context.Background(), input)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestAcceptApprovedMovesStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, created.ID, PaymentApproved, 7)
	require.NoError(t, err)
	require.Equal(t, PaymentApproved, accepted.PaymentStatus)

	batchID := created.Items[0].BatchID
	qty, ok := repo.stock.StockQty(stock.StoreRef(1), batchID)
	require.True(t, ok)
	require.Equal(t, 50.0, qty)

	entries := repo.stock.LedgerFor(Reference("F-1001"))
	require.Len(t, entries, 1)
	require.Equal(t, stock.MovementIn, entries[0].Movement)
	require.Equal(t, 50.0, entries[0].Qty)
}

func TestAcceptTwiceRejected(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Accept(ctx, created.ID, PaymentApproved, 7)
	require.NoError(t, err)

	_, err = svc.Accept(ctx, created.ID, PaymentApproved, 7)
	require.ErrorIs(t, err, shared.ErrConflict)

	// Stock unchanged by the rejected second call.
	qty, _ := repo.stock.StockQty(stock.StoreRef(1), created.Items[0].BatchID)
	require.Equal(t, 50.0, qty)
}

func TestAcceptOtherStatusSkipsStock(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	accepted, err := svc.Accept(ctx, created.ID, PaymentCancelled, 7)
	require.NoError(t, err)
	require.Equal(t, PaymentCancelled, accepted.PaymentStatus)
	require.Empty(t, repo.stock.Ledger)
}

func TestDeleteAcceptedReverses(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	_, err = svc.Accept(ctx, created.ID, PaymentApproved, 7)
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, created.ID, 7))

	// Reversal empties and removes the store stock row.
	batchID := created.Items[0].BatchID
	_, ok := repo.stock.StockQty(stock.StoreRef(1), batchID)
	require.False(t, ok)

	// Original acceptance history stays; a compensating OUT is appended.
	require.Len(t, repo.stock.LedgerFor(Reference("F-1001")), 1)
	rev := repo.stock.LedgerFor(ReversalReference("F-1001"))
	require.Len(t, rev, 1)
	require.Equal(t, stock.MovementOut, rev[0].Movement)
	require.Equal(t, 50.0, rev[0].Qty)

	_, err = svc.Get(ctx, created.ID)
	require.ErrorIs(t, err, shared.ErrNotFound)
}

func TestDeletePendingLeavesNoLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, created.ID, 7))
	require.Empty(t, repo.stock.Ledger)
}

func TestUpdateOnlyWhilePending(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, validInput())
	require.NoError(t, err)

	input := validInput()
	input.Note = "corrected quantities"
	input.Items[0].Qty = 60
	updated, err := svc.Update(ctx, created.ID, input)
	require.NoError(t, err)
	require.Equal(t, 60.0, updated.Items[0].Qty)

	_, err = svc.Accept(ctx, created.ID, PaymentApproved, 7)
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID, input)
	require.ErrorIs(t, err, shared.ErrInvalidState)
}
