// Package purchase records supplier receipts. Accepting a purchase with an
// approved payment status is what brings stock into a store.
package purchase

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// PaymentStatus tracks how far a purchase has been paid.
type PaymentStatus string

const (
	// PaymentPending is the initial status; items may still be edited.
	PaymentPending PaymentStatus = "PENDING"
	// PaymentApproved marks the purchase fully paid; acceptance with this
	// status moves stock into the store.
	PaymentApproved PaymentStatus = "APPROVED"
	// PaymentCancelled voids the purchase without stock effect.
	PaymentCancelled PaymentStatus = "CANCELLED"
)

// IsValid checks the payment status.
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentPending, PaymentApproved, PaymentCancelled:
		return true
	}
	return false
}

// Purchase is one supplier receipt document.
type Purchase struct {
	ID            int64         `json:"id"`
	SupplierID    int64         `json:"supplier_id"`
	StoreID       int64         `json:"store_id"`
	InvoiceNo     string        `json:"invoice_no"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	Note          string        `json:"note,omitempty"`
	CreatedBy     int64         `json:"created_by"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
	Items         []Item        `json:"items,omitempty"`
}

// Item is one purchase line. The batch is resolved (or created) when the
// document is created so acceptance and reversal address a stable batch id.
type Item struct {
	ID         int64           `json:"id"`
	PurchaseID int64           `json:"purchase_id"`
	ProductID  int64           `json:"product_id"`
	BatchID    int64           `json:"batch_id"`
	UoMID      int64           `json:"uom_id"`
	Qty        float64         `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// ItemInput is one incoming purchase line with the batch attributes needed
// to find or create the lot.
type ItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	BatchNo   string          `json:"batch_no" validate:"required"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	WarnQty   *float64        `json:"warn_qty,omitempty"`
	UoMID     int64           `json:"uom_id" validate:"required,gt=0"`
	Qty       float64         `json:"qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateInput is the payload for creating a purchase.
type CreateInput struct {
	SupplierID int64       `json:"supplier_id" validate:"required,gt=0"`
	StoreID    int64       `json:"store_id" validate:"required,gt=0"`
	InvoiceNo  string      `json:"invoice_no" validate:"required"`
	Note       string      `json:"note"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID    int64       `json:"-"`
}

// ListFilter narrows purchase listings.
type ListFilter struct {
	StoreID       int64
	SupplierID    int64
	PaymentStatus PaymentStatus
	Page          int
	PerPage       int
}

// Reference returns the ledger reference tying movements to this purchase.
func Reference(invoiceNo string) string {
	return "PUR-" + invoiceNo
}

// ReversalReference tags compensating entries written when an accepted
// purchase is deleted.
func ReversalReference(invoiceNo string) string {
	return "REV-PUR-" + invoiceNo
}

// batchAttrs maps an item input to the batch registry attributes.
func (i ItemInput) batchAttrs(storeID int64) stock.Batch {
	return stock.Batch{
		ProductID: i.ProductID,
		BatchNo:   i.BatchNo,
		UnitCost:  i.UnitPrice,
		ExpiresAt: i.ExpiresAt,
		WarnQty:   i.WarnQty,
		StoreID:   storeID,
	}
}
