// Package stock holds the shared inventory primitive: batch-tracked location
// stock rows paired with an append-only movement ledger. Every workflow that
// touches quantities (purchase acceptance, transfer completion, sale
// delivery, corrections and their reversals) goes through this package so the
// ledger-sum invariant holds everywhere.
package stock

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// LocationKind distinguishes the two storage tiers.
type LocationKind string

const (
	// LocationStore is warehouse-level stock owned by a store.
	LocationStore LocationKind = "STORE"
	// LocationShop is sellable stock at a shop.
	LocationShop LocationKind = "SHOP"
)

// IsValid checks the location kind.
func (k LocationKind) IsValid() bool {
	return k == LocationStore || k == LocationShop
}

// LocationRef identifies one store or shop.
type LocationRef struct {
	Kind LocationKind `json:"kind"`
	ID   int64        `json:"id"`
}

// StoreRef builds a store location reference.
func StoreRef(id int64) LocationRef { return LocationRef{Kind: LocationStore, ID: id} }

// ShopRef builds a shop location reference.
func ShopRef(id int64) LocationRef { return LocationRef{Kind: LocationShop, ID: id} }

// Movement is the direction tag on a ledger entry.
type Movement string

const (
	// MovementIn marks stock entering a location.
	MovementIn Movement = "IN"
	// MovementOut marks stock leaving a location.
	MovementOut Movement = "OUT"
)

// Opposite returns the inverse direction, used by reversal flows.
func (m Movement) Opposite() Movement {
	if m == MovementIn {
		return MovementOut
	}
	return MovementIn
}

// StockStatusAvailable is the only status normal flows assign to a row.
const StockStatusAvailable = "AVAILABLE"

// Batch identifies one receipt lot of one product. Stock is always tracked
// per batch, never aggregated at product level, so expiry and unit cost stay
// traceable.
type Batch struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	BatchNo   string          `json:"batch_no"`
	UnitCost  decimal.Decimal `json:"unit_cost"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	WarnQty   *float64        `json:"warn_qty,omitempty"`
	StoreID   int64           `json:"store_id"`
	CreatedAt time.Time       `json:"created_at"`
}

// LocationStock is the current on-hand quantity of one batch at one location.
// At most one row exists per (location, batch) pair.
type LocationStock struct {
	Location  LocationRef `json:"location"`
	BatchID   int64       `json:"batch_id"`
	Qty       float64     `json:"qty"`
	UoMID     int64       `json:"uom_id"`
	Status    string      `json:"status"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LedgerEntry is the immutable record of one quantity movement. Quantity is
// always positive; direction is encoded by Movement, not sign. History is
// never deleted outside explicit document-deletion flows; reversals append
// compensating entries instead.
type LedgerEntry struct {
	ID        int64       `json:"id"`
	BatchID   int64       `json:"batch_id"`
	Location  LocationRef `json:"location"`
	Movement  Movement    `json:"movement"`
	Qty       float64     `json:"qty"`
	UoMID     int64       `json:"uom_id"`
	Reference string      `json:"reference"`
	InvoiceNo string      `json:"invoice_no,omitempty"`
	ActorID   int64       `json:"actor_id"`
	Note      string      `json:"note,omitempty"`
	MovedAt   time.Time   `json:"moved_at"`
	CreatedAt time.Time   `json:"created_at"`
}

// MovementRequest describes one stock mutation to run through the mover.
type MovementRequest struct {
	Module    string
	Location  LocationRef
	BatchID   int64
	ProductID int64
	Movement  Movement
	Qty       float64
	UoMID     int64
	Reference string
	InvoiceNo string
	ActorID   int64
	Note      string
	MovedAt   time.Time
}

// StockCardFilter filters ledger listings.
type StockCardFilter struct {
	Location LocationRef
	BatchID  int64
	From     time.Time
	To       time.Time
	Limit    int
}

// BatchOnHand is the on-hand breakdown of one batch at one shop, used when
// picking batches for a sale delivery.
type BatchOnHand struct {
	BatchID   int64      `json:"batch_id"`
	BatchNo   string     `json:"batch_no"`
	Qty       float64    `json:"qty"`
	UoMID     int64      `json:"uom_id"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// DriftRow reports a (location, batch) pair whose on-hand quantity disagrees
// with the ledger sum. Produced by the integrity scan.
type DriftRow struct {
	Location  LocationRef
	BatchID   int64
	OnHand    float64
	LedgerSum float64
}

// ErrStockRowNotFound indicates a missing location stock row.
var ErrStockRowNotFound = errors.New("location stock row not found")
