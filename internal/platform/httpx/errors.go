package httpx

import (
	"errors"
	"net/http"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Validation-class failures carry the item-identifying detail so callers can
// tell which line of a multi-line document was rejected.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrInvalidState):
		Problem(w, http.StatusUnprocessableEntity, "Invalid State", err.Error())
	case shared.IsInsufficientStock(err):
		Problem(w, http.StatusConflict, "Insufficient Stock", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
