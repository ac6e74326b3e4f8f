// Package masterdata holds the reference entities the document workflows
// resolve against: organisational units (branches, stores, shops), trading
// partners and the product catalogue with its price lists.
package masterdata

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ListFilters represents standard list page filters.
type ListFilters struct {
	Page     int
	Limit    int
	Search   string
	IsActive *bool

	BranchID *int64
	StoreID  *int64
	ShopID   *int64
}

// Branch groups shops and sales under one organisational unit.
type Branch struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is a warehouse tier location that receives purchases.
type Store struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Shop is a selling tier location supplied from stores.
type Shop struct {
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Unit is a unit of measure.
type Unit struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// Supplier represents a purchasing counterparty.
type Supplier struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Customer represents a selling counterparty.
type Customer struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Phone     string    `json:"phone"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Product represents a catalogue entry. SellPrice is the default list price;
// additional prices per shop or global widen the set of accepted sale prices.
type Product struct {
	ID        int64           `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitID    int64           `json:"unit_id"`
	SellPrice decimal.Decimal `json:"sell_price"`
	IsActive  bool            `json:"is_active"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// AdditionalPrice is an extra accepted sell price for a product, either for
// one shop or global when ShopID is nil.
type AdditionalPrice struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	ShopID    *int64          `json:"shop_id,omitempty"`
	Price     decimal.Decimal `json:"price"`
	CreatedAt time.Time       `json:"created_at"`
}

// Repository interface for master data operations.
type Repository interface {
	ListBranches(ctx context.Context, filters ListFilters) ([]Branch, int, error)
	GetBranch(ctx context.Context, id int64) (Branch, error)
	CreateBranch(ctx context.Context, branch Branch) (Branch, error)
	UpdateBranch(ctx context.Context, id int64, branch Branch) error
	DeleteBranch(ctx context.Context, id int64) error

	ListStores(ctx context.Context, filters ListFilters) ([]Store, int, error)
	GetStore(ctx context.Context, id int64) (Store, error)
	CreateStore(ctx context.Context, store Store) (Store, error)
	UpdateStore(ctx context.Context, id int64, store Store) error
	DeleteStore(ctx context.Context, id int64) error

	ListShops(ctx context.Context, filters ListFilters) ([]Shop, int, error)
	GetShop(ctx context.Context, id int64) (Shop, error)
	CreateShop(ctx context.Context, shop Shop) (Shop, error)
	UpdateShop(ctx context.Context, id int64, shop Shop) error
	DeleteShop(ctx context.Context, id int64) error

	ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error)
	GetUnit(ctx context.Context, id int64) (Unit, error)
	CreateUnit(ctx context.Context, unit Unit) (Unit, error)
	UpdateUnit(ctx context.Context, id int64, unit Unit) error
	DeleteUnit(ctx context.Context, id int64) error

	ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error)
	GetSupplier(ctx context.Context, id int64) (Supplier, error)
	CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error
	DeleteSupplier(ctx context.Context, id int64) error

	ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error)
	GetCustomer(ctx context.Context, id int64) (Customer, error)
	CreateCustomer(ctx context.Context, customer Customer) (Customer, error)
	UpdateCustomer(ctx context.Context, id int64, customer Customer) error
	DeleteCustomer(ctx context.Context, id int64) error

	ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error)
	GetProduct(ctx context.Context, id int64) (Product, error)
	CreateProduct(ctx context.Context, product Product) (Product, error)
	UpdateProduct(ctx context.Context, id int64, product Product) error
	DeleteProduct(ctx context.Context, id int64) error

	ListAdditionalPrices(ctx context.Context, productID int64) ([]AdditionalPrice, error)
	CreateAdditionalPrice(ctx context.Context, price AdditionalPrice) (AdditionalPrice, error)
	DeleteAdditionalPrice(ctx context.Context, id int64) error

	// AcceptedPrices returns every sell price valid for the product at the
	// shop: the base sell price, the shop's additional prices and the global
	// ones.
	AcceptedPrices(ctx context.Context, productID, shopID int64) ([]decimal.Decimal, error)
}
