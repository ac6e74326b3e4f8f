package masterdata

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// Service exposes master data business logic.
type Service interface {
	Repository
}

// service implements Service.
type service struct {
	repo Repository
}

// NewService creates a new master data service.
func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", shared.ErrValidation, msg)
}

func requireID(id int64, entity string) error {
	if id <= 0 {
		return invalid("invalid " + entity + " id")
	}
	return nil
}

// Branch operations

func (s *service) ListBranches(ctx context.Context, filters ListFilters) ([]Branch, int, error) {
	return s.repo.ListBranches(ctx, filters)
}

func (s *service) GetBranch(ctx context.Context, id int64) (Branch, error) {
	if err := requireID(id, "branch"); err != nil {
		return Branch{}, err
	}
	return s.repo.GetBranch(ctx, id)
}

func (s *service) CreateBranch(ctx context.Context, branch Branch) (Branch, error) {
	if err := validateCodeName(branch.Code, branch.Name); err != nil {
		return Branch{}, err
	}
	return s.repo.CreateBranch(ctx, branch)
}

func (s *service) UpdateBranch(ctx context.Context, id int64, branch Branch) error {
	if err := requireID(id, "branch"); err != nil {
		return err
	}
	if err := validateCodeName(branch.Code, branch.Name); err != nil {
		return err
	}
	return s.repo.UpdateBranch(ctx, id, branch)
}

func (s *service) DeleteBranch(ctx context.Context, id int64) error {
	if err := requireID(id, "branch"); err != nil {
		return err
	}
	return s.repo.DeleteBranch(ctx, id)
}

// Store operations

func (s *service) ListStores(ctx context.Context, filters ListFilters) ([]Store, int, error) {
	return s.repo.ListStores(ctx, filters)
}

func (s *service) GetStore(ctx context.Context, id int64) (Store, error) {
	if err := requireID(id, "store"); err != nil {
		return Store{}, err
	}
	return s.repo.GetStore(ctx, id)
}

func (s *service) CreateStore(ctx context.Context, store Store) (Store, error) {
	if err := validateCodeName(store.Code, store.Name); err != nil {
		return Store{}, err
	}
	if err := requireID(store.BranchID, "branch"); err != nil {
		return Store{}, err
	}
	return s.repo.CreateStore(ctx, store)
}

func (s *service) UpdateStore(ctx context.Context, id int64, store Store) error {
	if err := requireID(id, "store"); err != nil {
		return err
	}
	if err := validateCodeName(store.Code, store.Name); err != nil {
		return err
	}
	return s.repo.UpdateStore(ctx, id, store)
}

func (s *service) DeleteStore(ctx context.Context, id int64) error {
	if err := requireID(id, "store"); err != nil {
		return err
	}
	return s.repo.DeleteStore(ctx, id)
}

// Shop operations

func (s *service) ListShops(ctx context.Context, filters ListFilters) ([]Shop, int, error) {
	return s.repo.ListShops(ctx, filters)
}

func (s *service) GetShop(ctx context.Context, id int64) (Shop, error) {
	if err := requireID(id, "shop"); err != nil {
		return Shop{}, err
	}
	return s.repo.GetShop(ctx, id)
}

func (s *service) CreateShop(ctx context.Context, shop Shop) (Shop, error) {
	if err := validateCodeName(shop.Code, shop.Name); err != nil {
		return Shop{}, err
	}
	if err := requireID(shop.BranchID, "branch"); err != nil {
		return Shop{}, err
	}
	return s.repo.CreateShop(ctx, shop)
}

func (s *service) UpdateShop(ctx context.Context, id int64, shop Shop) error {
	if err := requireID(id, "shop"); err != nil {
		return err
	}
	if err := validateCodeName(shop.Code, shop.Name); err != nil {
		return err
	}
	return s.repo.UpdateShop(ctx, id, shop)
}

func (s *service) DeleteShop(ctx context.Context, id int64) error {
	if err := requireID(id, "shop"); err != nil {
		return err
	}
	return s.repo.DeleteShop(ctx, id)
}

// Unit operations

func (s *service) ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error) {
	return s.repo.ListUnits(ctx, filters)
}

func (s *service) GetUnit(ctx context.Context, id int64) (Unit, error) {
	if err := requireID(id, "unit"); err != nil {
		return Unit{}, err
	}
	return s.repo.GetUnit(ctx, id)
}

func (s *service) CreateUnit(ctx context.Context, unit Unit) (Unit, error) {
	if err := validateCodeName(unit.Code, unit.Name); err != nil {
		return Unit{}, err
	}
	return s.repo.CreateUnit(ctx, unit)
}

func (s *service) UpdateUnit(ctx context.Context, id int64, unit Unit) error {
	if err := requireID(id, "unit"); err != nil {
		return err
	}
	if err := validateCodeName(unit.Code, unit.Name); err != nil {
		return err
	}
	return s.repo.UpdateUnit(ctx, id, unit)
}

func (s *service) DeleteUnit(ctx context.Context, id int64) error {
	if err := requireID(id, "unit"); err != nil {
		return err
	}
	return s.repo.DeleteUnit(ctx, id)
}

// Supplier operations

func (s *service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	return s.repo.ListSuppliers(ctx, filters)
}

func (s *service) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	if err := requireID(id, "supplier"); err != nil {
		return Supplier{}, err
	}
	return s.repo.GetSupplier(ctx, id)
}

func (s *service) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	if err := validateCodeName(supplier.Code, supplier.Name); err != nil {
		return Supplier{}, err
	}
	return s.repo.CreateSupplier(ctx, supplier)
}

func (s *service) UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error {
	if err := requireID(id, "supplier"); err != nil {
		return err
	}
	if err := validateCodeName(supplier.Code, supplier.Name); err != nil {
		return err
	}
	return s.repo.UpdateSupplier(ctx, id, supplier)
}

func (s *service) DeleteSupplier(ctx context.Context, id int64) error {
	if err := requireID(id, "supplier"); err != nil {
		return err
	}
	return s.repo.DeleteSupplier(ctx, id)
}

// Customer operations

func (s *service) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	return s.repo.ListCustomers(ctx, filters)
}

func (s *service) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	if err := requireID(id, "customer"); err != nil {
		return Customer{}, err
	}
	return s.repo.GetCustomer(ctx, id)
}

func (s *service) CreateCustomer(ctx context.Context, customer Customer) (Customer, error) {
	if err := validateCodeName(customer.Code, customer.Name); err != nil {
		return Customer{}, err
	}
	return s.repo.CreateCustomer(ctx, customer)
}

func (s *service) UpdateCustomer(ctx context.Context, id int64, customer Customer) error {
	if err := requireID(id, "customer"); err != nil {
		return err
	}
	if err := validateCodeName(customer.Code, customer.Name); err != nil {
		return err
	}
	return s.repo.UpdateCustomer(ctx, id, customer)
}

func (s *service) DeleteCustomer(ctx context.Context, id int64) error {
	if err := requireID(id, "customer"); err != nil {
		return err
	}
	return s.repo.DeleteCustomer(ctx, id)
}

// Product operations

func (s *service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	return s.repo.ListProducts(ctx, filters)
}

func (s *service) GetProduct(ctx context.Context, id int64) (Product, error) {
	if err := requireID(id, "product"); err != nil {
		return Product{}, err
	}
	return s.repo.GetProduct(ctx, id)
}

func (s *service) CreateProduct(ctx context.Context, product Product) (Product, error) {
	if err := validateProduct(product); err != nil {
		return Product{}, err
	}
	return s.repo.CreateProduct(ctx, product)
}

func (s *service) UpdateProduct(ctx context.Context, id int64, product Product) error {
	if err := requireID(id, "product"); err != nil {
		return err
	}
	if err := validateProduct(product); err != nil {
		return err
	}
	return s.repo.UpdateProduct(ctx, id, product)
}

func (s *service) DeleteProduct(ctx context.Context, id int64) error {
	if err := requireID(id, "product"); err != nil {
		return err
	}
	return s.repo.DeleteProduct(ctx, id)
}

// Additional price operations

func (s *service) ListAdditionalPrices(ctx context.Context, productID int64) ([]AdditionalPrice, error) {
	if err := requireID(productID, "product"); err != nil {
		return nil, err
	}
	return s.repo.ListAdditionalPrices(ctx, productID)
}

func (s *service) CreateAdditionalPrice(ctx context.Context, price AdditionalPrice) (AdditionalPrice, error) {
	if err := requireID(price.ProductID, "product"); err != nil {
		return AdditionalPrice{}, err
	}
	if price.ShopID != nil && *price.ShopID <= 0 {
		return AdditionalPrice{}, invalid("invalid shop id")
	}
	if price.Price.IsNegative() {
		return AdditionalPrice{}, invalid("price must not be negative")
	}
	return s.repo.CreateAdditionalPrice(ctx, price)
}

func (s *service) DeleteAdditionalPrice(ctx context.Context, id int64) error {
	if err := requireID(id, "additional price"); err != nil {
		return err
	}
	return s.repo.DeleteAdditionalPrice(ctx, id)
}

func (s *service) AcceptedPrices(ctx context.Context, productID, shopID int64) ([]decimal.Decimal, error) {
	if err := requireID(productID, "product"); err != nil {
		return nil, err
	}
	if err := requireID(shopID, "shop"); err != nil {
		return nil, err
	}
	return s.repo.AcceptedPrices(ctx, productID, shopID)
}

func validateCodeName(code, name string) error {
	if strings.TrimSpace(code) == "" {
		return invalid("code is required")
	}
	if strings.TrimSpace(name) == "" {
		return invalid("name is required")
	}
	return nil
}

func validateProduct(product Product) error {
	if err := validateCodeName(product.SKU, product.Name); err != nil {
		return err
	}
	if product.UnitID <= 0 {
		return invalid("unit is required")
	}
	if product.SellPrice.IsNegative() {
		return invalid("sell price must not be negative")
	}
	return nil
}
