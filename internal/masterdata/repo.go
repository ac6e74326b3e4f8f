package masterdata

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/samudra-retail/samudra-retail/internal/platform/db"
)

// repo implements Repository.
type repo struct {
	db *pgxpool.Pool
}

// NewRepository creates a new master data repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repo{db: pool}
}

func (f ListFilters) limitOffset() (int, int) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func (f ListFilters) search() any {
	if f.Search == "" {
		return nil
	}
	return "%" + f.Search + "%"
}

// Branch operations

func (r *repo) ListBranches(ctx context.Context, filters ListFilters) ([]Branch, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, code, name, address, created_at, updated_at, COUNT(*) OVER() AS total
FROM branches
WHERE ($1::text IS NULL OR name ILIKE $1 OR code ILIKE $1)
ORDER BY name LIMIT $2 OFFSET $3`, filters.search(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var branches []Branch
	var total int
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		branches = append(branches, b)
	}
	return branches, total, rows.Err()
}

func (r *repo) GetBranch(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := r.db.QueryRow(ctx, `SELECT id, code, name, address, created_at, updated_at FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt)
	return b, db.MapError(err)
}

func (r *repo) CreateBranch(ctx context.Context, branch Branch) (Branch, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO branches (code, name, address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4) RETURNING id`, branch.Code, branch.Name, branch.Address, now).Scan(&branch.ID)
	if err != nil {
		return Branch{}, db.MapError(err)
	}
	branch.CreatedAt = now
	branch.UpdatedAt = now
	return branch, nil
}

func (r *repo) UpdateBranch(ctx context.Context, id int64, branch Branch) error {
	_, err := r.db.Exec(ctx, `UPDATE branches SET code = $1, name = $2, address = $3, updated_at = NOW() WHERE id = $4`,
		branch.Code, branch.Name, branch.Address, id)
	return db.MapError(err)
}

func (r *repo) DeleteBranch(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM branches WHERE id = $1`, id)
	return db.MapError(err)
}

// Store operations

func (r *repo) ListStores(ctx context.Context, filters ListFilters) ([]Store, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, branch_id, code, name, address, created_at, updated_at, COUNT(*) OVER() AS total
FROM stores
WHERE ($1::bigint IS NULL OR branch_id = $1)
  AND ($2::text IS NULL OR name ILIKE $2 OR code ILIKE $2)
ORDER BY name LIMIT $3 OFFSET $4`, filters.BranchID, filters.search(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var stores []Store
	var total int
	for rows.Next() {
		var s Store
		if err := rows.Scan(&s.ID, &s.BranchID, &s.Code, &s.Name, &s.Address, &s.CreatedAt, &s.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		stores = append(stores, s)
	}
	return stores, total, rows.Err()
}

func (r *repo) GetStore(ctx context.Context, id int64) (Store, error) {
	var s Store
	err := r.db.QueryRow(ctx, `SELECT id, branch_id, code, name, address, created_at, updated_at FROM stores WHERE id = $1`, id).
		Scan(&s.ID, &s.BranchID, &s.Code, &s.Name, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, db.MapError(err)
}

func (r *repo) CreateStore(ctx context.Context, store Store) (Store, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO stores (branch_id, code, name, address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`, store.BranchID, store.Code, store.Name, store.Address, now).Scan(&store.ID)
	if err != nil {
		return Store{}, db.MapError(err)
	}
	store.CreatedAt = now
	store.UpdatedAt = now
	return store, nil
}

func (r *repo) UpdateStore(ctx context.Context, id int64, store Store) error {
	_, err := r.db.Exec(ctx, `UPDATE stores SET branch_id = $1, code = $2, name = $3, address = $4, updated_at = NOW() WHERE id = $5`,
		store.BranchID, store.Code, store.Name, store.Address, id)
	return db.MapError(err)
}

func (r *repo) DeleteStore(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM stores WHERE id = $1`, id)
	return db.MapError(err)
}

// Shop operations

func (r *repo) ListShops(ctx context.Context, filters ListFilters) ([]Shop, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, branch_id, code, name, address, created_at, updated_at, COUNT(*) OVER() AS total
FROM shops
WHERE ($1::bigint IS NULL OR branch_id = $1)
  AND ($2::text IS NULL OR name ILIKE $2 OR code ILIKE $2)
ORDER BY name LIMIT $3 OFFSET $4`, filters.BranchID, filters.search(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var shops []Shop
	var total int
	for rows.Next() {
		var s Shop
		if err := rows.Scan(&s.ID, &s.BranchID, &s.Code, &s.Name, &s.Address, &s.CreatedAt, &s.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		shops = append(shops, s)
	}
	return shops, total, rows.Err()
}

func (r *repo) GetShop(ctx context.Context, id int64) (Shop, error) {
	var s Shop
	err := r.db.QueryRow(ctx, `SELECT id, branch_id, code, name, address, created_at, updated_at FROM shops WHERE id = $1`, id).
		Scan(&s.ID, &s.BranchID, &s.Code, &s.Name, &s.Address, &s.CreatedAt, &s.UpdatedAt)
	return s, db.MapError(err)
}

func (r *repo) CreateShop(ctx context.Context, shop Shop) (Shop, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO shops (branch_id, code, name, address, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5) RETURNING id`, shop.BranchID, shop.Code, shop.Name, shop.Address, now).Scan(&shop.ID)
	if err != nil {
		return Shop{}, db.MapError(err)
	}
	shop.CreatedAt = now
	shop.UpdatedAt = now
	return shop, nil
}

func (r *repo) UpdateShop(ctx context.Context, id int64, shop Shop) error {
	_, err := r.db.Exec(ctx, `UPDATE shops SET branch_id = $1, code = $2, name = $3, address = $4, updated_at = NOW() WHERE id = $5`,
		shop.BranchID, shop.Code, shop.Name, shop.Address, id)
	return db.MapError(err)
}

func (r *repo) DeleteShop(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM shops WHERE id = $1`, id)
	return db.MapError(err)
}

// Unit operations

func (r *repo) ListUnits(ctx context.Context, filters ListFilters) ([]Unit, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, code, name, COUNT(*) OVER() AS total
FROM units
WHERE ($1::text IS NULL OR name ILIKE $1 OR code ILIKE $1)
ORDER BY code LIMIT $2 OFFSET $3`, filters.search(), limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var units []Unit
	var total int
	for rows.Next() {
		var u Unit
		if err := rows.Scan(&u.ID, &u.Code, &u.Name, &total); err != nil {
			return nil, 0, err
		}
		units = append(units, u)
	}
	return units, total, rows.Err()
}

func (r *repo) GetUnit(ctx context.Context, id int64) (Unit, error) {
	var u Unit
	err := r.db.QueryRow(ctx, `SELECT id, code, name FROM units WHERE id = $1`, id).Scan(&u.ID, &u.Code, &u.Name)
	return u, db.MapError(err)
}

func (r *repo) CreateUnit(ctx context.Context, unit Unit) (Unit, error) {
	err := r.db.QueryRow(ctx, `INSERT INTO units (code, name) VALUES ($1, $2) RETURNING id`, unit.Code, unit.Name).Scan(&unit.ID)
	return unit, db.MapError(err)
}

func (r *repo) UpdateUnit(ctx context.Context, id int64, unit Unit) error {
	_, err := r.db.Exec(ctx, `UPDATE units SET code = $1, name = $2 WHERE id = $3`, unit.Code, unit.Name, id)
	return db.MapError(err)
}

func (r *repo) DeleteUnit(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM units WHERE id = $1`, id)
	return db.MapError(err)
}

// Supplier operations

func (r *repo) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, code, name, phone, email, address, is_active, created_at, updated_at, COUNT(*) OVER() AS total
FROM suppliers
WHERE ($1::text IS NULL OR name ILIKE $1 OR code ILIKE $1)
  AND ($2::boolean IS NULL OR is_active = $2)
ORDER BY name LIMIT $3 OFFSET $4`, filters.search(), filters.IsActive, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	var total int
	for rows.Next() {
		var s Supplier
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repo) GetSupplier(ctx context.Context, id int64) (Supplier, error) {
	var s Supplier
	err := r.db.QueryRow(ctx, `SELECT id, code, name, phone, email, address, is_active, created_at, updated_at FROM suppliers WHERE id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.Phone, &s.Email, &s.Address, &s.IsActive, &s.CreatedAt, &s.UpdatedAt)
	return s, db.MapError(err)
}

func (r *repo) CreateSupplier(ctx context.Context, supplier Supplier) (Supplier, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO suppliers (code, name, phone, email, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		supplier.Code, supplier.Name, supplier.Phone, supplier.Email, supplier.Address, supplier.IsActive, now).Scan(&supplier.ID)
	if err != nil {
		return Supplier{}, db.MapError(err)
	}
	supplier.CreatedAt = now
	supplier.UpdatedAt = now
	return supplier, nil
}

func (r *repo) UpdateSupplier(ctx context.Context, id int64, supplier Supplier) error {
	_, err := r.db.Exec(ctx, `UPDATE suppliers SET code = $1, name = $2, phone = $3, email = $4, address = $5, is_active = $6, updated_at = NOW() WHERE id = $7`,
		supplier.Code, supplier.Name, supplier.Phone, supplier.Email, supplier.Address, supplier.IsActive, id)
	return db.MapError(err)
}

func (r *repo) DeleteSupplier(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	return db.MapError(err)
}

// Customer operations

func (r *repo) ListCustomers(ctx context.Context, filters ListFilters) ([]Customer, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, code, name, phone, email, address, is_active, created_at, updated_at, COUNT(*) OVER() AS total
FROM customers
WHERE ($1::text IS NULL OR name ILIKE $1 OR code ILIKE $1)
  AND ($2::boolean IS NULL OR is_active = $2)
ORDER BY name LIMIT $3 OFFSET $4`, filters.search(), filters.IsActive, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var customers []Customer
	var total int
	for rows.Next() {
		var c Customer
		if err := rows.Scan(&c.ID, &c.Code, &c.Name, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		customers = append(customers, c)
	}
	return customers, total, rows.Err()
}

func (r *repo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	var c Customer
	err := r.db.QueryRow(ctx, `SELECT id, code, name, phone, email, address, is_active, created_at, updated_at FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Code, &c.Name, &c.Phone, &c.Email, &c.Address, &c.IsActive, &c.CreatedAt, &c.UpdatedAt)
	return c, db.MapError(err)
}

func (r *repo) CreateCustomer(ctx context.Context, customer Customer) (Customer, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO customers (code, name, phone, email, address, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7) RETURNING id`,
		customer.Code, customer.Name, customer.Phone, customer.Email, customer.Address, customer.IsActive, now).Scan(&customer.ID)
	if err != nil {
		return Customer{}, db.MapError(err)
	}
	customer.CreatedAt = now
	customer.UpdatedAt = now
	return customer, nil
}

func (r *repo) UpdateCustomer(ctx context.Context, id int64, customer Customer) error {
	_, err := r.db.Exec(ctx, `UPDATE customers SET code = $1, name = $2, phone = $3, email = $4, address = $5, is_active = $6, updated_at = NOW() WHERE id = $7`,
		customer.Code, customer.Name, customer.Phone, customer.Email, customer.Address, customer.IsActive, id)
	return db.MapError(err)
}

func (r *repo) DeleteCustomer(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	return db.MapError(err)
}

// Product operations

func (r *repo) ListProducts(ctx context.Context, filters ListFilters) ([]Product, int, error) {
	limit, offset := filters.limitOffset()
	rows, err := r.db.Query(ctx, `SELECT id, sku, name, unit_id, sell_price, is_active, created_at, updated_at, COUNT(*) OVER() AS total
FROM products
WHERE ($1::text IS NULL OR name ILIKE $1 OR sku ILIKE $1)
  AND ($2::boolean IS NULL OR is_active = $2)
ORDER BY name LIMIT $3 OFFSET $4`, filters.search(), filters.IsActive, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	var total int
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitID, &p.SellPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt, &total); err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repo) GetProduct(ctx context.Context, id int64) (Product, error) {
	var p Product
	err := r.db.QueryRow(ctx, `SELECT id, sku, name, unit_id, sell_price, is_active, created_at, updated_at FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.SKU, &p.Name, &p.UnitID, &p.SellPrice, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, db.MapError(err)
}

func (r *repo) CreateProduct(ctx context.Context, product Product) (Product, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO products (sku, name, unit_id, sell_price, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $6) RETURNING id`,
		product.SKU, product.Name, product.UnitID, product.SellPrice, product.IsActive, now).Scan(&product.ID)
	if err != nil {
		return Product{}, db.MapError(err)
	}
	product.CreatedAt = now
	product.UpdatedAt = now
	return product, nil
}

func (r *repo) UpdateProduct(ctx context.Context, id int64, product Product) error {
	_, err := r.db.Exec(ctx, `UPDATE products SET sku = $1, name = $2, unit_id = $3, sell_price = $4, is_active = $5, updated_at = NOW() WHERE id = $6`,
		product.SKU, product.Name, product.UnitID, product.SellPrice, product.IsActive, id)
	return db.MapError(err)
}

func (r *repo) DeleteProduct(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	return db.MapError(err)
}

// Additional price operations

func (r *repo) ListAdditionalPrices(ctx context.Context, productID int64) ([]AdditionalPrice, error) {
	rows, err := r.db.Query(ctx, `SELECT id, product_id, shop_id, price, created_at
FROM product_additional_prices WHERE product_id = $1 ORDER BY id`, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []AdditionalPrice
	for rows.Next() {
		var p AdditionalPrice
		if err := rows.Scan(&p.ID, &p.ProductID, &p.ShopID, &p.Price, &p.CreatedAt); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

func (r *repo) CreateAdditionalPrice(ctx context.Context, price AdditionalPrice) (AdditionalPrice, error) {
	now := time.Now().UTC()
	err := r.db.QueryRow(ctx, `INSERT INTO product_additional_prices (product_id, shop_id, price, created_at)
VALUES ($1, $2, $3, $4) RETURNING id`, price.ProductID, price.ShopID, price.Price, now).Scan(&price.ID)
	if err != nil {
		return AdditionalPrice{}, db.MapError(err)
	}
	price.CreatedAt = now
	return price, nil
}

func (r *repo) DeleteAdditionalPrice(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM product_additional_prices WHERE id = $1`, id)
	return db.MapError(err)
}

func (r *repo) AcceptedPrices(ctx context.Context, productID, shopID int64) ([]decimal.Decimal, error) {
	rows, err := r.db.Query(ctx, `SELECT sell_price FROM products WHERE id = $1
UNION
SELECT price FROM product_additional_prices WHERE product_id = $1 AND (shop_id IS NULL OR shop_id = $2)`,
		productID, shopID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prices []decimal.Decimal
	for rows.Next() {
		var p decimal.Decimal
		if err := rows.Scan(&p); err != nil {
			return nil, err
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}
