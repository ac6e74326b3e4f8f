// Package transfer moves batches between locations, typically store to shop.
// Stock only moves when a pending transfer is completed.
package transfer

import (
	"fmt"
	"time"

	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// Status is the transfer lifecycle state.
type Status string

const (
	// StatusPending allows editing, completion and cancellation.
	StatusPending Status = "PENDING"
	// StatusCompleted means both stock legs have been posted.
	StatusCompleted Status = "COMPLETED"
	// StatusCancelled is terminal with no stock effect.
	StatusCancelled Status = "CANCELLED"
)

// CodePrefix heads every transfer short code.
const CodePrefix = "TRF"

// Transfer is one stock movement document between two locations.
type Transfer struct {
	ID          int64             `json:"id"`
	Code        string            `json:"code"`
	Source      stock.LocationRef `json:"source"`
	Destination stock.LocationRef `json:"destination"`
	Status      Status            `json:"status"`
	Note        string            `json:"note,omitempty"`
	CreatedBy   int64             `json:"created_by"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	Items       []Item            `json:"items,omitempty"`
}

// Item is one transfer line.
type Item struct {
	ID         int64   `json:"id"`
	TransferID int64   `json:"transfer_id"`
	ProductID  int64   `json:"product_id"`
	BatchID    int64   `json:"batch_id"`
	UoMID      int64   `json:"uom_id"`
	Qty        float64 `json:"qty"`
}

// ItemInput is one incoming transfer line.
type ItemInput struct {
	ProductID int64   `json:"product_id" validate:"required,gt=0"`
	BatchID   int64   `json:"batch_id" validate:"required,gt=0"`
	UoMID     int64   `json:"uom_id" validate:"required,gt=0"`
	Qty       float64 `json:"qty" validate:"required,gt=0"`
}

// CreateInput is the payload for creating or updating a transfer.
type CreateInput struct {
	Source      stock.LocationRef `json:"source"`
	Destination stock.LocationRef `json:"destination"`
	Note        string            `json:"note"`
	Items       []ItemInput       `json:"items" validate:"required,min=1,dive"`
	ActorID     int64             `json:"-"`
}

// ListFilter narrows transfer listings.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// OutReference tags the source leg ledger entry of line i (1-based).
func OutReference(code string, i int) string {
	return fmt.Sprintf("%s-OUT-%d", code, i)
}

// InReference tags the destination leg ledger entry of line i (1-based).
func InReference(code string, i int) string {
	return fmt.Sprintf("%s-IN-%d", code, i)
}

// LegPrefix matches every ledger entry either leg of the transfer wrote.
// The trailing dash keeps codes with a longer sequence from matching.
func LegPrefix(code string) string {
	return code + "-"
}
