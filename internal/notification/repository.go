package notification

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samudra-retail/samudra-retail/internal/platform/db"
	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Repository persists notifications in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// InsertMany writes one row per notification.
func (r *Repository) InsertMany(ctx context.Context, rows []Notification) error {
	for _, row := range rows {
		_, err := r.pool.Exec(ctx, `INSERT INTO notifications (shop_id, title, message, type, related_entity_type, sell_id, invoice_no, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NOW())`,
			row.ShopID, row.Title, row.Message, row.Type, row.RelatedEntityType, row.SaleID, row.InvoiceNo)
		if err != nil {
			return db.MapError(err)
		}
	}
	return nil
}

// ListByShop returns a shop's notifications, newest first.
func (r *Repository) ListByShop(ctx context.Context, shopID int64, page shared.PageRequest) ([]Notification, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, shop_id, title, message, type, related_entity_type, sell_id, invoice_no, read_at, created_at
FROM notifications WHERE shop_id=$1 ORDER BY id DESC LIMIT $2 OFFSET $3`,
		shopID, page.Limit(), page.Offset())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Notification{}
	for rows.Next() {
		var n Notification
		if err := rows.Scan(&n.ID, &n.ShopID, &n.Title, &n.Message, &n.Type,
			&n.RelatedEntityType, &n.SaleID, &n.InvoiceNo, &n.ReadAt, &n.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MarkRead stamps one notification as read.
func (r *Repository) MarkRead(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET read_at=NOW() WHERE id=$1 AND read_at IS NULL`, id)
	if err != nil {
		return db.MapError(err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrNotFound
	}
	return nil
}
