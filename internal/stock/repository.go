package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Tx exposes the transactional stock operations document workflows compose
// with their own writes. All methods run on the caller's transaction.
type Tx interface {
	GetLocationStockForUpdate(ctx context.Context, loc LocationRef, batchID int64) (LocationStock, error)
	UpsertLocationStock(ctx context.Context, row LocationStock) error
	DeleteLocationStock(ctx context.Context, loc LocationRef, batchID int64) error
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error)
	ListLedgerByReference(ctx context.Context, reference string) ([]LedgerEntry, error)
	ListLedgerByReferencePrefix(ctx context.Context, prefix string) ([]LedgerEntry, error)
	GetBatch(ctx context.Context, id int64) (Batch, error)
	FindBatch(ctx context.Context, productID int64, batchNo string, storeID int64) (Batch, error)
	InsertBatch(ctx context.Context, batch Batch) (int64, error)
	ListAvailableByProduct(ctx context.Context, shopID, productID int64) ([]BatchOnHand, error)
	UnitExists(ctx context.Context, uomID int64) (bool, error)
}

// Repository persists stock data in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// NewTx wraps an existing pgx transaction so document repositories can run
// stock operations and their own writes atomically.
func NewTx(tx pgx.Tx) Tx {
	return &txRepository{tx: tx}
}

// WithTx runs fn inside a repeatable-read transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	if r == nil {
		return errors.New("stock repository not initialised")
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

type stockTable struct {
	name   string
	locCol string
}

func tableFor(kind LocationKind) (stockTable, error) {
	switch kind {
	case LocationStore:
		return stockTable{name: "store_stocks", locCol: "store_id"}, nil
	case LocationShop:
		return stockTable{name: "shop_stocks", locCol: "shop_id"}, nil
	default:
		return stockTable{}, fmt.Errorf("%w: unknown location kind %q", shared.ErrValidation, kind)
	}
}

type txRepository struct {
	tx pgx.Tx
}

func (r *txRepository) GetLocationStockForUpdate(ctx context.Context, loc LocationRef, batchID int64) (LocationStock, error) {
	table, err := tableFor(loc.Kind)
	if err != nil {
		return LocationStock{}, err
	}
	row := LocationStock{Location: loc, BatchID: batchID}
	query := fmt.Sprintf(`SELECT qty, uom_id, status, updated_at FROM %s WHERE %s=$1 AND batch_id=$2 FOR UPDATE`, table.name, table.locCol)
	err = r.tx.QueryRow(ctx, query, loc.ID, batchID).Scan(&row.Qty, &row.UoMID, &row.Status, &row.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return LocationStock{}, ErrStockRowNotFound
		}
		return LocationStock{}, err
	}
	return row, nil
}

func (r *txRepository) UpsertLocationStock(ctx context.Context, row LocationStock) error {
	table, err := tableFor(row.Location.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s, batch_id, qty, uom_id, status, updated_at)
VALUES ($1,$2,$3,$4,$5,NOW())
ON CONFLICT (%s, batch_id) DO UPDATE SET qty=EXCLUDED.qty, uom_id=EXCLUDED.uom_id, status=EXCLUDED.status, updated_at=NOW()`,
		table.name, table.locCol, table.locCol)
	_, err = r.tx.Exec(ctx, query, row.Location.ID, row.BatchID, row.Qty, row.UoMID, row.Status)
	return err
}

func (r *txRepository) DeleteLocationStock(ctx context.Context, loc LocationRef, batchID int64) error {
	table, err := tableFor(loc.Kind)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s=$1 AND batch_id=$2`, table.name, table.locCol)
	_, err = r.tx.Exec(ctx, query, loc.ID, batchID)
	return err
}

func (r *txRepository) InsertLedgerEntry(ctx context.Context, entry LedgerEntry) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_ledger (batch_id, location_kind, location_id, movement, qty, uom_id, reference, invoice_no, actor_id, note, moved_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,NOW()) RETURNING id`,
		entry.BatchID, string(entry.Location.Kind), entry.Location.ID, string(entry.Movement), entry.Qty,
		entry.UoMID, entry.Reference, nullStr(entry.InvoiceNo), nullInt(entry.ActorID), entry.Note, entry.MovedAt).Scan(&id)
	return id, err
}

const ledgerColumns = `id, batch_id, location_kind, location_id, movement, qty, uom_id, reference, COALESCE(invoice_no,''), COALESCE(actor_id,0), note, moved_at, created_at`

func (r *txRepository) ListLedgerByReference(ctx context.Context, reference string) ([]LedgerEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+ledgerColumns+` FROM stock_ledger WHERE reference=$1 ORDER BY id ASC`, reference)
	if err != nil {
		return nil, err
	}
	return scanLedger(rows)
}

func (r *txRepository) ListLedgerByReferencePrefix(ctx context.Context, prefix string) ([]LedgerEntry, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+ledgerColumns+` FROM stock_ledger WHERE reference LIKE $1 || '%' ORDER BY id ASC`, prefix)
	if err != nil {
		return nil, err
	}
	return scanLedger(rows)
}

const batchColumns = `id, product_id, batch_no, unit_cost, expires_at, warn_qty, store_id, created_at`

func (r *txRepository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id))
}

func (r *txRepository) FindBatch(ctx context.Context, productID int64, batchNo string, storeID int64) (Batch, error) {
	return scanBatch(r.tx.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE product_id=$1 AND batch_no=$2 AND store_id=$3`, productID, batchNo, storeID))
}

func (r *txRepository) InsertBatch(ctx context.Context, batch Batch) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO batches (product_id, batch_no, unit_cost, expires_at, warn_qty, store_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW()) RETURNING id`,
		batch.ProductID, batch.BatchNo, batch.UnitCost, batch.ExpiresAt, batch.WarnQty, batch.StoreID).Scan(&id)
	return id, err
}

func (r *txRepository) ListAvailableByProduct(ctx context.Context, shopID, productID int64) ([]BatchOnHand, error) {
	return listAvailableByProduct(ctx, r.tx, shopID, productID)
}

func (r *txRepository) UnitExists(ctx context.Context, uomID int64) (bool, error) {
	var exists bool
	err := r.tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM units WHERE id=$1)`, uomID).Scan(&exists)
	return exists, err
}

// querier covers both *pgxpool.Pool and pgx.Tx for shared read queries.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func listAvailableByProduct(ctx context.Context, q querier, shopID, productID int64) ([]BatchOnHand, error) {
	rows, err := q.Query(ctx, `SELECT ss.batch_id, b.batch_no, ss.qty, ss.uom_id, b.expires_at
FROM shop_stocks ss
JOIN batches b ON b.id = ss.batch_id
WHERE ss.shop_id=$1 AND b.product_id=$2 AND ss.qty > 0
ORDER BY b.expires_at NULLS LAST, b.id ASC`, shopID, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []BatchOnHand{}
	for rows.Next() {
		var b BatchOnHand
		if err := rows.Scan(&b.BatchID, &b.BatchNo, &b.Qty, &b.UoMID, &b.ExpiresAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// GetOnHand returns the current quantity of one batch at one location.
// Missing rows report zero.
func (r *Repository) GetOnHand(ctx context.Context, loc LocationRef, batchID int64) (float64, error) {
	table, err := tableFor(loc.Kind)
	if err != nil {
		return 0, err
	}
	var qty float64
	query := fmt.Sprintf(`SELECT qty FROM %s WHERE %s=$1 AND batch_id=$2`, table.name, table.locCol)
	err = r.pool.QueryRow(ctx, query, loc.ID, batchID).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return qty, err
}

// GetAvailable sums sellable shop stock for one product across batches.
func (r *Repository) GetAvailable(ctx context.Context, shopID, productID int64) (float64, error) {
	var qty float64
	err := r.pool.QueryRow(ctx, `SELECT COALESCE(SUM(ss.qty),0)
FROM shop_stocks ss JOIN batches b ON b.id = ss.batch_id
WHERE ss.shop_id=$1 AND b.product_id=$2`, shopID, productID).Scan(&qty)
	return qty, err
}

// ListAvailableByProduct returns the per-batch on-hand breakdown at a shop.
func (r *Repository) ListAvailableByProduct(ctx context.Context, shopID, productID int64) ([]BatchOnHand, error) {
	return listAvailableByProduct(ctx, r.pool, shopID, productID)
}

// ListLocationStocks lists the stock rows at one location.
func (r *Repository) ListLocationStocks(ctx context.Context, loc LocationRef, p shared.PageRequest) ([]LocationStock, error) {
	table, err := tableFor(loc.Kind)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s, batch_id, qty, uom_id, status, updated_at FROM %s WHERE %s=$1 ORDER BY batch_id ASC LIMIT $2 OFFSET $3`,
		table.locCol, table.name, table.locCol)
	rows, err := r.pool.Query(ctx, query, loc.ID, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LocationStock{}
	for rows.Next() {
		row := LocationStock{Location: LocationRef{Kind: loc.Kind}}
		if err := rows.Scan(&row.Location.ID, &row.BatchID, &row.Qty, &row.UoMID, &row.Status, &row.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetStockCard lists ledger entries for one location, optionally one batch.
func (r *Repository) GetStockCard(ctx context.Context, filter StockCardFilter) ([]LedgerEntry, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.pool.Query(ctx, `SELECT `+ledgerColumns+` FROM stock_ledger
WHERE location_kind=$1 AND location_id=$2
  AND ($3::bigint = 0 OR batch_id=$3)
  AND moved_at BETWEEN COALESCE($4, '-infinity') AND COALESCE($5, 'infinity')
ORDER BY moved_at ASC, id ASC
LIMIT $6`, string(filter.Location.Kind), filter.Location.ID, filter.BatchID, nullTime(filter.From), nullTime(filter.To), limit)
	if err != nil {
		return nil, err
	}
	return scanLedger(rows)
}

// GetBatch loads one batch.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	return scanBatch(r.pool.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id))
}

// ListBatches lists batches of one store, newest first.
func (r *Repository) ListBatches(ctx context.Context, storeID int64, p shared.PageRequest) ([]Batch, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+batchColumns+` FROM batches WHERE store_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		storeID, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Batch{}
	for rows.Next() {
		batch, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, batch)
	}
	return out, rows.Err()
}

// DeleteBatch removes a batch that no ledger entry references.
func (r *Repository) DeleteBatch(ctx context.Context, id int64) error {
	var refs int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM stock_ledger WHERE batch_id=$1`, id).Scan(&refs); err != nil {
		return err
	}
	if refs > 0 {
		return fmt.Errorf("%w: batch has ledger history", shared.ErrConflict)
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM batches WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// ListDriftRows reports stock rows whose quantity disagrees with the ledger
// sum for the same (location, batch). Used by the nightly integrity scan.
func (r *Repository) ListDriftRows(ctx context.Context) ([]DriftRow, error) {
	rows, err := r.pool.Query(ctx, `WITH ledger AS (
  SELECT location_kind, location_id, batch_id,
         SUM(CASE WHEN movement='IN' THEN qty ELSE -qty END) AS net
  FROM stock_ledger GROUP BY location_kind, location_id, batch_id
), onhand AS (
  SELECT 'STORE' AS location_kind, store_id AS location_id, batch_id, qty FROM store_stocks
  UNION ALL
  SELECT 'SHOP', shop_id, batch_id, qty FROM shop_stocks
)
SELECT l.location_kind, l.location_id, l.batch_id, COALESCE(o.qty,0), l.net
FROM ledger l
FULL OUTER JOIN onhand o USING (location_kind, location_id, batch_id)
WHERE ABS(COALESCE(o.qty,0) - COALESCE(l.net,0)) > 0.000001`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DriftRow{}
	for rows.Next() {
		var d DriftRow
		var kind string
		if err := rows.Scan(&kind, &d.Location.ID, &d.BatchID, &d.OnHand, &d.LedgerSum); err != nil {
			return nil, err
		}
		d.Location.Kind = LocationKind(kind)
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanLedger(rows pgx.Rows) ([]LedgerEntry, error) {
	defer rows.Close()
	entries := []LedgerEntry{}
	for rows.Next() {
		var e LedgerEntry
		var kind string
		if err := rows.Scan(&e.ID, &e.BatchID, &kind, &e.Location.ID, &e.Movement, &e.Qty, &e.UoMID,
			&e.Reference, &e.InvoiceNo, &e.ActorID, &e.Note, &e.MovedAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Location.Kind = LocationKind(kind)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	err := row.Scan(&b.ID, &b.ProductID, &b.BatchNo, &b.UnitCost, &b.ExpiresAt, &b.WarnQty, &b.StoreID, &b.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, shared.ErrNotFound
		}
		return Batch{}, err
	}
	return b, nil
}

func nullStr(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullInt(value int64) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}
