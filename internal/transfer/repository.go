package transfer

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// TxRepository exposes transactional transfer operations alongside stock
// operations on the same transaction.
type TxRepository interface {
	Stock() stock.Tx
	LastCode(ctx context.Context, pattern string) (string, error)
	InsertTransfer(ctx context.Context, t Transfer) (int64, error)
	InsertItems(ctx context.Context, transferID int64, items []Item) error
	GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error)
	UpdateTransfer(ctx context.Context, t Transfer) error
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ListItems(ctx context.Context, transferID int64) ([]Item, error)
	DeleteItems(ctx context.Context, transferID int64) error
	DeleteTransfer(ctx context.Context, id int64) error
}

// Repository persists transfers in PostgreSQL.
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
		return errors.New("transfer repository not initialised")
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

const transferColumns = `id, code, source_kind, source_id, destination_kind, destination_id, status, note, created_by, created_at, updated_at`

// Get loads one transfer with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Transfer, error) {
	t, err := scanTransfer(r.pool.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id=$1`, id))
	if err != nil {
		return Transfer{}, err
	}
	items, err := listItems(ctx, r.pool, id)
	if err != nil {
		return Transfer{}, err
	}
	t.Items = items
	return t, nil
}

// List returns transfers matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Transfer, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	rows, err := r.pool.Query(ctx, `SELECT `+transferColumns+` FROM transfers
WHERE ($1::text = '' OR status=$1)
ORDER BY id DESC LIMIT $2 OFFSET $3`, string(filter.Status), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
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
	err := r.tx.QueryRow(ctx, `SELECT code FROM transfers WHERE code LIKE $1 ORDER BY code DESC LIMIT 1`, pattern).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (r *txRepository) InsertTransfer(ctx context.Context, t Transfer) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO transfers (code, source_kind, source_id, destination_kind, destination_id, status, note, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NOW(),NOW()) RETURNING id`,
		t.Code, string(t.Source.Kind), t.Source.ID, string(t.Destination.Kind), t.Destination.ID,
		string(t.Status), t.Note, t.CreatedBy).Scan(&id)
	return id, db.MapError(err)
}

func (r *txRepository) InsertItems(ctx context.Context, transferID int64, items []Item) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO transfer_items (transfer_id, product_id, batch_id, uom_id, qty)
VALUES ($1,$2,$3,$4,$5)`, transferID, item.ProductID, item.BatchID, item.UoMID, item.Qty); err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *txRepository) GetTransferForUpdate(ctx context.Context, id int64) (Transfer, error) {
	return scanTransfer(r.tx.QueryRow(ctx, `SELECT `+transferColumns+` FROM transfers WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateTransfer(ctx context.Context, t Transfer) error {
	_, err := r.tx.Exec(ctx, `UPDATE transfers SET source_kind=$1, source_id=$2, destination_kind=$3, destination_id=$4, note=$5, updated_at=NOW() WHERE id=$6`,
		string(t.Source.Kind), t.Source.ID, string(t.Destination.Kind), t.Destination.ID, t.Note, t.ID)
	return db.MapError(err)
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE transfers SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return db.MapError(err)
}

func (r *txRepository) ListItems(ctx context.Context, transferID int64) ([]Item, error) {
	return listItems(ctx, r.tx, transferID)
}

func (r *txRepository) DeleteItems(ctx context.Context, transferID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM transfer_items WHERE transfer_id=$1`, transferID)
	return err
}

func (r *txRepository) DeleteTransfer(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM transfers WHERE id=$1`, id)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, transferID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, transfer_id, product_id, batch_id, uom_id, qty
FROM transfer_items WHERE transfer_id=$1 ORDER BY id`, transferID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		if err := rows.Scan(&item.ID, &item.TransferID, &item.ProductID, &item.BatchID, &item.UoMID, &item.Qty); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanTransfer(row pgx.Row) (Transfer, error) {
	var t Transfer
	var srcKind, dstKind, status string
	err := row.Scan(&t.ID, &t.Code, &srcKind, &t.Source.ID, &dstKind, &t.Destination.ID,
		&status, &t.Note, &t.CreatedBy, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return Transfer{}, db.MapError(err)
	}
	t.Source.Kind = stock.LocationKind(srcKind)
	t.Destination.Kind = stock.LocationKind(dstKind)
	t.Status = Status(status)
	return t, nil
}
