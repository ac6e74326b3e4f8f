package correction

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// TxRepository exposes transactional correction operations alongside stock
// operations on the same transaction.
type TxRepository interface {
	Stock() stock.Tx
	LastCode(ctx context.Context, pattern string) (string, error)
	InsertCorrection(ctx context.Context, c Correction) (int64, error)
	InsertItems(ctx context.Context, correctionID int64, items []Item) error
	GetCorrectionForUpdate(ctx context.Context, id int64) (Correction, error)
	UpdateStatus(ctx context.Context, id int64, status Status) error
	ListItems(ctx context.Context, correctionID int64) ([]Item, error)
	DeleteItems(ctx context.Context, correctionID int64) error
	DeleteCorrection(ctx context.Context, id int64) error
}

// Repository persists stock corrections in PostgreSQL.
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
		return errors.New("correction repository not initialised")
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

const correctionColumns = `id, code, location_kind, location_id, reason, status, created_by, created_at, updated_at`

// Get loads one correction with its items.
func (r *Repository) Get(ctx context.Context, id int64) (Correction, error) {
	c, err := scanCorrection(r.pool.QueryRow(ctx, `SELECT `+correctionColumns+` FROM stock_corrections WHERE id=$1`, id))
	if err != nil {
		return Correction{}, err
	}
	c.Items, err = listItems(ctx, r.pool, id)
	if err != nil {
		return Correction{}, err
	}
	return c, nil
}

// List returns corrections matching the filter, newest first.
func (r *Repository) List(ctx context.Context, filter ListFilter) ([]Correction, error) {
	limit := filter.PerPage
	if limit <= 0 {
		limit = 20
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	rows, err := r.pool.Query(ctx, `SELECT `+correctionColumns+` FROM stock_corrections
WHERE ($1::text = '' OR status=$1)
ORDER BY id DESC LIMIT $2 OFFSET $3`, string(filter.Status), limit, (page-1)*limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Correction{}
	for rows.Next() {
		c, err := scanCorrection(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
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
	err := r.tx.QueryRow(ctx, `SELECT code FROM stock_corrections WHERE code LIKE $1 ORDER BY code DESC LIMIT 1`, pattern).Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return code, err
}

func (r *txRepository) InsertCorrection(ctx context.Context, c Correction) (int64, error) {
	var id int64
	err := r.tx.QueryRow(ctx, `INSERT INTO stock_corrections (code, location_kind, location_id, reason, status, created_by, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,NOW(),NOW()) RETURNING id`,
		c.Code, string(c.Location.Kind), c.Location.ID, c.Reason, string(c.Status), c.CreatedBy).Scan(&id)
	return id, db.MapError(err)
}

func (r *txRepository) InsertItems(ctx context.Context, correctionID int64, items []Item) error {
	for _, item := range items {
		if _, err := r.tx.Exec(ctx, `INSERT INTO stock_correction_items (correction_id, product_id, batch_id, uom_id, direction, qty)
VALUES ($1,$2,$3,$4,$5,$6)`, correctionID, item.ProductID, item.BatchID, item.UoMID, string(item.Direction), item.Qty); err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

func (r *txRepository) GetCorrectionForUpdate(ctx context.Context, id int64) (Correction, error) {
	return scanCorrection(r.tx.QueryRow(ctx, `SELECT `+correctionColumns+` FROM stock_corrections WHERE id=$1 FOR UPDATE`, id))
}

func (r *txRepository) UpdateStatus(ctx context.Context, id int64, status Status) error {
	_, err := r.tx.Exec(ctx, `UPDATE stock_corrections SET status=$1, updated_at=NOW() WHERE id=$2`, string(status), id)
	return db.MapError(err)
}

func (r *txRepository) ListItems(ctx context.Context, correctionID int64) ([]Item, error) {
	return listItems(ctx, r.tx, correctionID)
}

func (r *txRepository) DeleteItems(ctx context.Context, correctionID int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM stock_correction_items WHERE correction_id=$1`, correctionID)
	return err
}

func (r *txRepository) DeleteCorrection(ctx context.Context, id int64) error {
	_, err := r.tx.Exec(ctx, `DELETE FROM stock_corrections WHERE id=$1`, id)
	return err
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func listItems(ctx context.Context, q querier, correctionID int64) ([]Item, error) {
	rows, err := q.Query(ctx, `SELECT id, correction_id, product_id, batch_id, uom_id, direction, qty
FROM stock_correction_items WHERE correction_id=$1 ORDER BY id`, correctionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	items := []Item{}
	for rows.Next() {
		var item Item
		var direction string
		if err := rows.Scan(&item.ID, &item.CorrectionID, &item.ProductID, &item.BatchID,
			&item.UoMID, &direction, &item.Qty); err != nil {
			return nil, err
		}
		item.Direction = Direction(direction)
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanCorrection(row pgx.Row) (Correction, error) {
	var c Correction
	var kind, status string
	err := row.Scan(&c.ID, &c.Code, &kind, &c.Location.ID, &c.Reason, &status,
		&c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return Correction{}, db.MapError(err)
	}
	c.Location.Kind = stock.LocationKind(kind)
	c.Status = Status(status)
	return c, nil
}
