// Package sell implements the sale workflow. A sale reserves nothing at
// creation: shop stock is validated up front and only deducted at delivery,
// batch by batch.
package sell

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status is the aggregate sale state derived from its item states.
type Status string

const (
	StatusNotApproved        Status = "NOT_APPROVED"
	StatusApproved           Status = "APPROVED"
	StatusPartiallyDelivered Status = "PARTIALLY_DELIVERED"
	StatusDelivered          Status = "DELIVERED"
	StatusCancelled          Status = "CANCELLED"
	StatusReturned           Status = "RETURNED"
)

// saleTransitions lists the allowed direct status changes. Delivery states
// are reached through the delivery flow, not a plain status update.
var saleTransitions = map[Status][]Status{
	StatusNotApproved: {StatusApproved, StatusCancelled},
	StatusApproved:    {StatusCancelled},
	StatusDelivered:   {StatusReturned},
}

// CanTransition reports whether a direct status update from s to target is
// allowed.
func (s Status) CanTransition(target Status) bool {
	for _, allowed := range saleTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsValid reports whether the status value is known.
func (s Status) IsValid() bool {
	switch s {
	case StatusNotApproved, StatusApproved, StatusPartiallyDelivered,
		StatusDelivered, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

// ItemStatus is the delivery state of one sale line.
type ItemStatus string

const (
	ItemPending   ItemStatus = "PENDING"
	ItemDelivered ItemStatus = "DELIVERED"
	ItemReturned  ItemStatus = "RETURNED"
	ItemCancelled ItemStatus = "CANCELLED"
)

var itemTransitions = map[ItemStatus][]ItemStatus{
	ItemPending:   {ItemDelivered, ItemCancelled},
	ItemDelivered: {ItemReturned},
}

// CanTransition reports whether an item may move from s to target.
func (s ItemStatus) CanTransition(target ItemStatus) bool {
	for _, allowed := range itemTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// PaymentStatus tracks money separately from delivery.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

// IsValid reports whether the payment status value is known.
func (s PaymentStatus) IsValid() bool {
	return s == PaymentPending || s == PaymentPaid
}

// CodePrefix heads every sale invoice number.
const CodePrefix = "INV"

// ReversalReference tags compensating ledger entries written when a sale
// with delivered items is deleted.
func ReversalReference(invoiceNo string) string {
	return "REV-" + invoiceNo
}

// Sale is one sale document.
type Sale struct {
	ID            int64           `json:"id"`
	InvoiceNo     string          `json:"invoice_no"`
	CustomerID    int64           `json:"customer_id"`
	BranchID      int64           `json:"branch_id"`
	NetTotal      decimal.Decimal `json:"net_total"`
	Status        Status          `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Note          string          `json:"note,omitempty"`
	CreatedBy     int64           `json:"created_by"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []Item          `json:"items,omitempty"`
}

// Item is one sale line against one shop.
type Item struct {
	ID         int64           `json:"id"`
	SaleID     int64           `json:"sale_id"`
	ProductID  int64           `json:"product_id"`
	ShopID     int64           `json:"shop_id"`
	UoMID      int64           `json:"uom_id"`
	Qty        float64         `json:"qty"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	PriceValid bool            `json:"price_valid"`
	Status     ItemStatus      `json:"status"`
	Batches    []ItemBatch     `json:"batches,omitempty"`
}

// ItemBatch records which batch fulfilled how much of a delivered line.
type ItemBatch struct {
	ID         int64   `json:"id"`
	SellItemID int64   `json:"sell_item_id"`
	BatchID    int64   `json:"batch_id"`
	Qty        float64 `json:"qty"`
}

// ItemInput is one incoming sale line.
type ItemInput struct {
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	ShopID    int64           `json:"shop_id" validate:"required,gt=0"`
	UoMID     int64           `json:"uom_id" validate:"required,gt=0"`
	Qty       float64         `json:"qty" validate:"required,gt=0"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateInput is the payload for creating or updating a sale.
type CreateInput struct {
	CustomerID int64       `json:"customer_id" validate:"required,gt=0"`
	BranchID   int64       `json:"branch_id" validate:"required,gt=0"`
	Note       string      `json:"note"`
	Items      []ItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID    int64       `json:"-"`
}

// BatchAllocation is one (batch, quantity) slice of a delivery.
type BatchAllocation struct {
	BatchID int64   `json:"batch_id" validate:"required,gt=0"`
	Qty     float64 `json:"qty" validate:"required,gt=0"`
}

// DeliveryItem delivers one sale line from specific batches. The allocation
// quantities must sum exactly to the line quantity.
type DeliveryItem struct {
	ItemID  int64             `json:"item_id" validate:"required,gt=0"`
	Batches []BatchAllocation `json:"batches" validate:"required,min=1,dive"`
}

// DeliveryInput delivers one or more pending lines of a sale.
type DeliveryInput struct {
	Items   []DeliveryItem `json:"items" validate:"required,min=1,dive"`
	ActorID int64          `json:"-"`
}

// ListFilter narrows sale listings.
type ListFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	CustomerID    int64
	BranchID      int64
	Page          int
	PerPage       int
}

// aggregateStatus derives the sale status from its item statuses after a
// delivery pass.
func aggregateStatus(items []Item) Status {
	var delivered, cancelled, returned, pending int
	for _, item := range items {
		switch item.Status {
		case ItemDelivered:
			delivered++
		case ItemCancelled:
			cancelled++
		case ItemReturned:
			returned++
		default:
			pending++
		}
	}
	total := len(items)
	switch {
	case total == 0:
		return StatusNotApproved
	case delivered == total:
		return StatusDelivered
	case cancelled == total:
		return StatusCancelled
	case returned == total:
		return StatusReturned
	case delivered > 0:
		return StatusPartiallyDelivered
	default:
		return StatusNotApproved
	}
}
