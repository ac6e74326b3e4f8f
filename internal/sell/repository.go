package sell

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// TxRepository exposes transactional sale operations alongside stock
// operations on the same transaction.
type TxRepository interface {
	Stock() stock.Tx
	LastCode(ctx context.Context, pattern string) (string, error)
	InsertSale(ctx context.Context, s Sale) (int64, error)
	InsertItems(ctx context.Context, saleID int64, items []Item) ([]Item, error)
	GetSaleForUpdate(ctx context.Context, id int64) (Sale, error)
	UpdateSale(ctx context.Context, s Sale) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
	UpdateNetTotal(ctx context.Context, id int64, netTotal decimal.Decimal) error
	UpdateItemStatus(ctx context.Context, itemID int64, status ItemStatus) error
	ListItems(ctx context.Context, saleID int64) ([]Item, error)
	InsertItemBatch(ctx context.Context, b ItemBatch) (int64, error)
	ListItemBatches(ctx context.Context, saleID int64) ([]ItemBatch, error)
	DeleteItemBatches(ctx context.Context, saleID int64) error
	DeleteItems(ctx context.Context, saleID int64) error
	DeleteSale(ctx context.Context, id int64) error
}

// Repository persists sales in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil {
		return errors.New("sell repository not initialised")
	}
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepository{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

const saleColumns = `id, invoice_no, customer_id, branch_id, net_total, status, payment_status, note, created_by, created_at, updated_at`

// Get loads one sale with items and their batch allocations.
func (r *Repository) Get(ctx context.Context, id int64) (Sale, error) {
	s, err := scanSale(r.pool.QueryRow(ctx, `SELECT `+saleColumns+` FROM sells WHERE id=$1`, id))
	if err != nil {
		return Sale{}, err
	}
	s.Items, err = listItems(ctx, r.pool, id)
	if err != nil {
		return Sale{}, err
	}
	batches, err := listItemBatches(ctx, r.pool, id)
	if err != nil {
		return Sale{}, err
	}
	byItem := map[int64][]ItemBatch{}
	for _, b := range batches {
		byItem[b.SellItemID] = append(byItem[b.SellItemID], b)
	}
	for i := range s.Items {
		s.Items[i].Batches = byItem[s.Items[i].ID]
	}
	return s, nil
}

// List returns sales matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Sale, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	rows, err := r.pool.Query(ctx, `SELECT `+saleColumns+` FROM sells
WHERE ($1::text = '' OR status=$1)
  AND ($2::text = '' OR payment_status=$2)
  AND ($3::bigint = 0 OR customer_id=$3)
  AND ($4::bigint = 0 OR branch_id=$4)
ORDER BY id DESC LIMIT $5 OFFSET $6`,
		string(filter.Status), string(filter.PaymentStatus), filter.CustomerID, filter.BranchID,
		limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Sale{}
	for rows.Next() {
		s, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Stock() stock.Tx {
	return stock.NewTx(r.tx)
}

func (r *txRepository) LastCode(ctx context.Context, pattern string) (string, error) {
	var code string
	err := r.tx.QueryRow(ctx, `SELECT invoice_no FROM sells WHERE invoice_no LIKE $1 ORDER BY invoice_no DESC LIMIT 1`, pattern).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (r *txRepository) InsertSale(ctx context.Context, s Sale) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sells (invoice_no, customer_id, branch_id, net_total, status, payment_status, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		s.InvoiceNo, s.CustomerID, s.BranchID, s.NetTotal, string(s.Status), string(s.PaymentStatus),
		s.Note, s.CreatedBy).Scan(&id)
	return id, db.MapError(err)
}

func (r *txRepository) InsertItems(ctx context.Context, saleID int64, items []Item) ([]Item, error) {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		var id int64
		err := r.tx.QueryRow(ctx, `INSERT INTO sell_items (sell_id, product_id, shop_id, uom_id, qty, unit_price, price_valid, status)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8) RETURNING id`,
			saleID, item.ProductID, item.ShopID, item.UoMID, item.Qty, item.UnitPrice,
			item.PriceValid, string(item.Status)).Scan(&id)
		if err != nil {
			return nil, db.MapError(err)
		}
		item.ID = id
		item.SaleID = saleID
		out = append(out, item)
	}
	return out, nil
}

func (r *txRepository) GetSaleForUpdate(ctx context.Context, id int64) (Sale, error) {
	return scanSale(r.tx.QueryRow(ctx, `SELECT `+saleColumns+` FROM sells WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateSale(ctx context.Context, s Sale) error {
	_, err := r.tx.Exec(ctx, `UPDATE sells SET customer_id=$1, branch_id=$2, net_total=$3, status=$4, note=$5, updated_at=NOW() WHERE id=$6`,
		s.CustomerID, s.BranchID, s.NetTotal, string(s.Status), s.Note, s.ID)
	return db.MapError(err)
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE sells SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return db.MapError(err)
}

func (r *txRepository) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE sells SET payment_status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return db.MapError(err)
}

func (r *txRepository) UpdateNetTotal(ctx context.Context, id int64, netTotal decimal.Decimal) error {
	_, err := r.tx.Exec(ctx, `UPDATE sells SET net_total=$1, updated_at=NOW() WHERE id=$2`, netTotal, id)
	return db.MapError(err)
}

func (r *txRepository) UpdateItemStatus(ctx context.Context, itemID int64, status ItemStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE sell_items SET status=$1 WHERE id=$2`, string(status), itemID)
	return db.MapError(err)
}

func (r *txRepository) ListItems(ctx context.Context, saleID int64) ([]Item, error) {
	return listItems(ctx, r.tx, saleID)
}

func (r *txRepository) InsertItemBatch(ctx context.Context, b ItemBatch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO sell_item_batches (sell_item_id, batch_id, qty)
VALUES ($1,$2,$3) RETURNING id`, b.SellItemID, b.BatchID, b.Qty).Scan(&id)
	return id, db.MapError(err)
}

func (r *txRepository) ListItemBatches(ctx context.Context, saleID int64) ([]ItemBatch, error) {
	return listItemBatches(ctx, r.tx, saleID)
}

func (r *txRepository) DeleteItemBatches(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM sell_item_batches WHERE sell_item_id IN (SELECT id FROM sell_items WHERE sell_id=$1)`, saleID)
	return err
}

func (r *txRepository) DeleteItems(ctx context.Context, saleID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM sell_items WHERE sell_id=$1`, saleID)
	return err
}

func (r *txRepository) DeleteSale(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM sells WHERE id=$1`, id)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, saleID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, sell_id, product_id, shop_id, uom_id, qty, unit_price, price_valid, status
FROM sell_items WHERE sell_id=$1 ORDER BY id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		var status string
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ShopID, &item.UoMID,
			&item.Qty, &item.UnitPrice, &item.PriceValid, &status); err != nil {
			return nil, err
		}
		item.Status = ItemStatus(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

func listItemBatches(ctx context.Context, q querier, saleID int64) ([]ItemBatch, error) {
	rows, err := q.Query(ctx, `SELECT b.id, b.sell_item_id, b.batch_id, b.qty
FROM sell_item_batches b JOIN sell_items i ON i.id=b.sell_item_id
WHERE i.sell_id=$1 ORDER BY b.id`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	batches := []ItemBatch{}
	for rows.Next() {
		var b ItemBatch
		if err := rows.Scan(&b.ID, &b.SellItemID, &b.BatchID, &b.Qty); err != nil {
			return nil, err
		}
		batches = append(batches, b)
	}
	return batches, rows.Err()
}

func scanSale(row pgx.Row) (Sale, error) {
	var s Sale
	var status, payment string
	err := row.Scan(&s.ID, &s.InvoiceNo, &s.CustomerID, &s.BranchID, &s.NetTotal,
		&status, &payment, &s.Note, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return Sale{}, db.MapError(err)
	}
	s.Status = Status(status)
	s.PaymentStatus = PaymentStatus(payment)
	return s, nil
}
