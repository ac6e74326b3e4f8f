package masterdata

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/samudra-retail/samudra-retail/internal/platform/httpx"
	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Handler wires HTTP endpoints for master data CRUD.
type Handler struct {
	logger  *slog.Logger
	service Service
}

// NewHandler constructs Handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	return &Handler{logger: logger, service: service}
}

// MountRoutes registers master data routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/branches", crudRoutes(h.listBranches, h.getBranch, h.createBranch, h.updateBranch, h.deleteBranch))
	r.Route("/stores", crudRoutes(h.listStores, h.getStore, h.createStore, h.updateStore, h.deleteStore))
	r.Route("/shops", crudRoutes(h.listShops, h.getShop, h.createShop, h.updateShop, h.deleteShop))
	r.Route("/units", crudRoutes(h.listUnits, h.getUnit, h.createUnit, h.updateUnit, h.deleteUnit))
	r.Route("/suppliers", crudRoutes(h.listSuppliers, h.getSupplier, h.createSupplier, h.updateSupplier, h.deleteSupplier))
	r.Route("/customers", crudRoutes(h.listCustomers, h.getCustomer, h.createCustomer, h.updateCustomer, h.deleteCustomer))
	r.Route("/products", func(r chi.Router) {
		crudRoutes(h.listProducts, h.getProduct, h.createProduct, h.updateProduct, h.deleteProduct)(r)
		r.Get("/{id}/prices", h.listAdditionalPrices)
		r.Post("/{id}/prices", h.createAdditionalPrice)
		r.Delete("/{id}/prices/{priceID}", h.deleteAdditionalPrice)
	})
}

func crudRoutes(list, get, create, update, remove http.HandlerFunc) func(chi.Router) {
	return func(r chi.Router) {
		r.Get("/", list)
		r.Post("/", create)
		r.Get("/{id}", get)
		r.Put("/{id}", update)
		r.Delete("/{id}", remove)
	}
}

func parseID(r *http.Request, key string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, key), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrValidation
	}
	return id, nil
}

func filtersFrom(r *http.Request) ListFilters {
	q := r.URL.Query()
	filters := ListFilters{Search: q.Get("search")}
	filters.Page, _ = strconv.Atoi(q.Get("page"))
	filters.Limit, _ = strconv.Atoi(q.Get("page_size"))
	if activeStr := q.Get("is_active"); activeStr != "" {
		if active, err := strconv.ParseBool(activeStr); err == nil {
			filters.IsActive = &active
		}
	}
	if branchStr := q.Get("branch_id"); branchStr != "" {
		if id, err := strconv.ParseInt(branchStr, 10, 64); err == nil {
			filters.BranchID = &id
		}
	}
	return filters
}

func listResponse[T any](items []T, total int, filters ListFilters) map[string]any {
	if items == nil {
		items = []T{}
	}
	return map[string]any{
		"data":       items,
		"pagination": shared.NewPagination(filters.Page, filters.Limit, total),
	}
}

// Branches

func (h *Handler) listBranches(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	branches, total, err := h.service.ListBranches(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(branches, total, filters))
}

func (h *Handler) getBranch(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	branch, err := h.service.GetBranch(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, branch)
}

func (h *Handler) createBranch(w http.ResponseWriter, r *http.Request) {
	var branch Branch
	if err := httpx.DecodeJSON(r, &branch); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateBranch(r.Context(), branch)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateBranch(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var branch Branch
	if err := httpx.DecodeJSON(r, &branch); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateBranch(r.Context(), id, branch); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteBranch(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteBranch(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stores

func (h *Handler) listStores(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	stores, total, err := h.service.ListStores(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(stores, total, filters))
}

func (h *Handler) getStore(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	store, err := h.service.GetStore(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, store)
}

func (h *Handler) createStore(w http.ResponseWriter, r *http.Request) {
	var store Store
	if err := httpx.DecodeJSON(r, &store); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateStore(r.Context(), store)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateStore(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var store Store
	if err := httpx.DecodeJSON(r, &store); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateStore(r.Context(), id, store); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteStore(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteStore(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shops

func (h *Handler) listShops(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	shops, total, err := h.service.ListShops(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(shops, total, filters))
}

func (h *Handler) getShop(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	shop, err := h.service.GetShop(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, shop)
}

func (h *Handler) createShop(w http.ResponseWriter, r *http.Request) {
	var shop Shop
	if err := httpx.DecodeJSON(r, &shop); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateShop(r.Context(), shop)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateShop(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var shop Shop
	if err := httpx.DecodeJSON(r, &shop); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateShop(r.Context(), id, shop); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteShop(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteShop(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Units

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	units, total, err := h.service.ListUnits(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(units, total, filters))
}

func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	unit, err := h.service.GetUnit(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, unit)
}

func (h *Handler) createUnit(w http.ResponseWriter, r *http.Request) {
	var unit Unit
	if err := httpx.DecodeJSON(r, &unit); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateUnit(r.Context(), unit)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var unit Unit
	if err := httpx.DecodeJSON(r, &unit); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateUnit(r.Context(), id, unit); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteUnit(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteUnit(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Suppliers

func (h *Handler) listSuppliers(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	suppliers, total, err := h.service.ListSuppliers(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(suppliers, total, filters))
}

func (h *Handler) getSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	supplier, err := h.service.GetSupplier(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, supplier)
}

func (h *Handler) createSupplier(w http.ResponseWriter, r *http.Request) {
	var supplier Supplier
	if err := httpx.DecodeJSON(r, &supplier); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateSupplier(r.Context(), supplier)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var supplier Supplier
	if err := httpx.DecodeJSON(r, &supplier); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateSupplier(r.Context(), id, supplier); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSupplier(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteSupplier(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Customers

func (h *Handler) listCustomers(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	customers, total, err := h.service.ListCustomers(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(customers, total, filters))
}

func (h *Handler) getCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	customer, err := h.service.GetCustomer(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, customer)
}

func (h *Handler) createCustomer(w http.ResponseWriter, r *http.Request) {
	var customer Customer
	if err := httpx.DecodeJSON(r, &customer); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateCustomer(r.Context(), customer)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var customer Customer
	if err := httpx.DecodeJSON(r, &customer); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateCustomer(r.Context(), id, customer); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCustomer(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteCustomer(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Products

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	filters := filtersFrom(r)
	products, total, err := h.service.ListProducts(r.Context(), filters)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, listResponse(products, total, filters))
}

func (h *Handler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	product, err := h.service.GetProduct(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, product)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	var product Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	created, err := h.service.CreateProduct(r.Context(), product)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var product Product
	if err := httpx.DecodeJSON(r, &product); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	if err := h.service.UpdateProduct(r.Context(), id, product); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteProduct(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Additional prices

func (h *Handler) listAdditionalPrices(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	prices, err := h.service.ListAdditionalPrices(r.Context(), productID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if prices == nil {
		prices = []AdditionalPrice{}
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"data": prices})
}

func (h *Handler) createAdditionalPrice(w http.ResponseWriter, r *http.Request) {
	productID, err := parseID(r, "id")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var price AdditionalPrice
	if err := httpx.DecodeJSON(r, &price); err != nil {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	price.ProductID = productID
	created, err := h.service.CreateAdditionalPrice(r.Context(), price)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, created)
}

func (h *Handler) deleteAdditionalPrice(w http.ResponseWriter, r *http.Request) {
	priceID, err := parseID(r, "priceID")
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	if err := h.service.DeleteAdditionalPrice(r.Context(), priceID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
