package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository loads API keys from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindByID returns the API key row for the given id.
func (r *Repository) FindByID(ctx context.Context, id int64) (APIKey, error) {
	var key APIKey
	err := r.pool.QueryRow(ctx, `SELECT id, name, secret_hash, actor_id, disabled, created_at
FROM api_keys WHERE id=$1`, id).Scan(&key.ID, &key.Name, &key.SecretHash, &key.ActorID, &key.Disabled, &key.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return APIKey{}, ErrInvalidKey
		}
		return APIKey{}, err
	}
	return key, nil
}
