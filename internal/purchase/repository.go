package purchase

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// TxRepository exposes the transactional purchase operations together with
// the stock operations running on the same transaction.
type TxRepository interface {
	Stock() stock.Tx
	InsertPurchase(ctx context.Context, p Purchase) (int64, error)
	InsertItems(ctx context.Context, purchaseID int64, items []Item) error
	GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error)
	UpdatePurchase(ctx context.Context, p Purchase) error
	ListItems(ctx context.Context, purchaseID int64) ([]Item, error)
	UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error
	DeleteItems(ctx context.Context, purchaseID int64) error
	DeletePurchase(ctx context.Context, id int64) error
}

// Repository persists purchases in PostgreSQL.
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
		return errors.New("purchase repository not initialised")
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

const purchaseColumns = `id, supplier_id, store_id, invoice_no, payment_status, note, created_by, created_at, updated_at`

// Get loads one purchase with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Purchase, error) {
	p, err := scanPurchase(r.pool.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1`, id))
	if err != nil {
		return Purchase{}, err
	}
	items, err := listItems(ctx, r.pool, id)
	if err != nil {
		return Purchase{}, err
	}
	p.Items = items
	return p, nil
}

// List returns purchases matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Purchase, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	rows, err := r.pool.Query(ctx, `SELECT `+purchaseColumns+` FROM purchases
WHERE ($1::bigint = 0 OR store_id=$1)
  AND ($2::bigint = 0 OR supplier_id=$2)
  AND ($3::text = '' OR payment_status=$3)
ORDER BY id DESC LIMIT $4 OFFSET $5`,
		filter.StoreID, filter.SupplierID, string(filter.PaymentStatus), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Purchase{}
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) Stock() stock.Tx {
	return stock.NewTx(r.tx)
}

func (r *txRepository) InsertPurchase(ctx context.Context, p Purchase) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO purchases (supplier_id, store_id, invoice_no, payment_status, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		p.SupplierID, p.StoreID, p.InvoiceNo, string(p.PaymentStatus), p.Note, p.CreatedBy).Scan(&id)
	return id, db.MapError(err)
}

func (r *txRepository) InsertItems(ctx context.Context, purchaseID int64, items []Item) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO purchase_items (purchase_id, product_id, batch_id, uom_id, qty, unit_price)
VALUES ($1,$2,$3,$4,$5,$6)`, purchaseID, item.ProductID, item.BatchID, item.UoMID, item.Qty, item.UnitPrice); err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *txRepository) GetPurchaseForUpdate(ctx context.Context, id int64) (Purchase, error) {
	return scanPurchase(r.tx.QueryRow(ctx, `SELECT `+purchaseColumns+` FROM purchases WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdatePurchase(ctx context.Context, p Purchase) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchases SET supplier_id=$1, store_id=$2, invoice_no=$3, note=$4, updated_at=NOW() WHERE id=$5`,
		p.SupplierID, p.StoreID, p.InvoiceNo, p.Note, p.ID)
	return db.MapError(err)
}

func (r *txRepository) ListItems(ctx context.Context, purchaseID int64) ([]Item, error) {
	return listItems(ctx, r.tx, purchaseID)
}

func (r *txRepository) UpdatePaymentStatus(ctx context.Context, id int64, status PaymentStatus) error {
	_, err := r.tx.Exec(ctx, `UPDATE purchases SET payment_status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return db.MapError(err)
}

func (r *txRepository) DeleteItems(ctx context.Context, purchaseID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchase_items WHERE purchase_id=$1`, purchaseID)
	return err
}

func (r *txRepository) DeletePurchase(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM purchases WHERE id=$1`, id)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, purchaseID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, purchase_id, product_id, batch_id, uom_id, qty, unit_price
FROM purchase_items WHERE purchase_id=$1 ORDER BY id`, purchaseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.PurchaseID, &item.ProductID, &item.BatchID, &item.UoMID, &item.Qty, &item.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanPurchase(row pgx.Row) (Purchase, error) {
	var p Purchase
	var status string
	var updatedAt time.Time
	err := row.Scan(&p.ID, &p.SupplierID, &p.StoreID, &p.InvoiceNo, &status, &p.Note, &p.CreatedBy, &p.CreatedAt, &updatedAt)
	if err != nil {
		return Purchase{}, db.MapError(err)
	}
	p.PaymentStatus = PaymentStatus(status)
	p.UpdatedAt = updatedAt
	return p, nil
}
