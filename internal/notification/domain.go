// Package notification persists and fans out user-facing notifications.
// Business operations return events; delivery happens asynchronously so a
// failed notification can never fail a committed sale.
package notification

import "time"

// Event is one notification produced by a business operation. ShopIDs
// selects the shops whose users should see it. EventID is assigned at
// enqueue time and correlates queue logs with worker logs.
type Event struct {
	EventID           string    `json:"event_id,omitempty"`
	Title             string    `json:"title"`
	Message           string    `json:"message"`
	Type              string    `json:"type"`
	RelatedEntityType string    `json:"related_entity_type"`
	SaleID            int64     `json:"sale_id,omitempty"`
	InvoiceNo         string    `json:"invoice_no,omitempty"`
	ShopIDs           []int64   `json:"shop_ids"`
	At                time.Time `json:"at"`
}

// Event types.
const (
	TypeSaleApproved  = "SALE_APPROVED"
	TypeSaleCancelled = "SALE_CANCELLED"
)

// Notification is one durable row shown to users of a shop.
type Notification struct {
	ID                int64      `json:"id"`
	ShopID            int64      `json:"shop_id"`
	Title             string     `json:"title"`
	Message           string     `json:"message"`
	Type              string     `json:"type"`
	RelatedEntityType string     `json:"related_entity_type"`
	SaleID            int64      `json:"sale_id,omitempty"`
	InvoiceNo         string     `json:"invoice_no,omitempty"`
	ReadAt            *time.Time `json:"read_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}
