package notification

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/samudra-retail/samudra-retail/internal/platform/httpx"
	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Handler exposes a shop's notification feed.
type Handler struct {
	logger *slog.Logger
	store  Store
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, store Store) *Handler {
	return &Handler{logger: logger, store: store}
}

// MountRoutes registers notification routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/shops/{shopID}", h.listByShop)
	r.Post("/{id}/read", h.markRead)
}

func (h *Handler) listByShop(w http.ResponseWriter, r *http.Request) {
	shopID, err := strconv.ParseInt(chi.URLParam(r, "shopID"), 10, 64)
	if err != nil || shopID <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("page_size"))

	notifications, err := h.store.ListByShop(r.Context(), shopID, shared.NewPageRequest(page, perPage))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": notifications})
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.store.MarkRead(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
