package db

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// MapError translates pgx errors into the shared sentinel errors so handlers
// respond with the right status. Unique violations become ErrConflict,
// foreign key violations ErrValidation.
func MapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return shared.ErrConflict
		case "23503":
			return shared.ErrValidation
		}
	}
	return err
}
