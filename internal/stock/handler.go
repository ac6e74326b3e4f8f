package stock

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/samudra-retail/samudra-retail/internal/platform/httpx"
	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Handler wires HTTP endpoints for stock queries and the batch registry.
type Handler struct {
	logger  *slog.Logger
	service *Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers stock routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/stores/{storeID}/stocks", h.listStoreStocks)
	r.Get("/shops/{shopID}/stocks", h.listShopStocks)
	r.Get("/shops/{shopID}/products/{productID}/availability", h.availability)
	r.Get("/locations/{kind}/{locationID}/card", h.stockCard)
	r.Get("/batches/{batchID}", h.getBatch)
	r.Get("/stores/{storeID}/batches", h.listBatches)
	r.Delete("/batches/{batchID}", h.deleteBatch)
}

func (h *Handler) listStoreStocks(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.ListLocationStocks(r.Context(), StoreRef(storeID), paginationFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) listShopStocks(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "shopID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rows, err := h.service.ListLocationStocks(r.Context(), ShopRef(shopID), paginationFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": rows})
}

func (h *Handler) availability(w http.ResponseWriter, r *http.Request) {
	shopID, err := pathID(r, "shopID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	productID, err := pathID(r, "productID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	total, err := h.service.Available(r.Context(), shopID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batches, err := h.service.AvailableBatches(r.Context(), shopID, productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"shop_id":    shopID,
		"product_id": productID,
		"available":  total,
		"batches":    batches,
	})
}

func (h *Handler) stockCard(w http.ResponseWriter, r *http.Request) {
	kind := LocationKind(chi.URLParam(r, "kind"))
	locationID, err := pathID(r, "locationID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	filter := StockCardFilter{Location: LocationRef{Kind: kind, ID: locationID}}
	q := r.URL.Query()
	if batchStr := q.Get("batch_id"); batchStr != "" {
		if id, err := strconv.ParseInt(batchStr, 10, 64); err == nil {
			filter.BatchID = id
		}
	}
	if from := q.Get("from"); from != "" {
		if t, err := time.Parse("2006-01-02", from); err == nil {
			filter.From = t
		}
	}
	if to := q.Get("to"); to != "" {
		if t, err := time.Parse("2006-01-02", to); err == nil {
			filter.To = t.Add(24*time.Hour - time.Nanosecond)
		}
	}
	entries, err := h.service.StockCard(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": entries})
}

func (h *Handler) getBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batch, err := h.service.GetBatch(r.Context(), batchID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, batch)
}

func (h *Handler) listBatches(w http.ResponseWriter, r *http.Request) {
	storeID, err := pathID(r, "storeID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	batches, err := h.service.ListBatches(r.Context(), storeID, paginationFrom(r))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": batches})
}

func (h *Handler) deleteBatch(w http.ResponseWriter, r *http.Request) {
	batchID, err := pathID(r, "batchID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	actorID := shared.ActorFromContext(r.Context())
	if err := h.service.DeleteBatch(r.Context(), batchID, actorID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}

func paginationFrom(r *http.Request) shared.PageRequest {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	size, _ := strconv.Atoi(q.Get("page_size"))
	return shared.NewPageRequest(page, size)
}
