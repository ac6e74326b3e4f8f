// Package correction implements manual stock adjustments against one
// location. A correction takes effect only when approved and is fully
// reversed when an approved correction is deleted.
package correction

import (
	"fmt"
	"time"

	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// Status is the correction lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Direction says which way a correction line moves stock. An explicit tag,
// not the sign of the quantity.
type Direction string

const (
	DirectionAddition    Direction = "ADDITION"
	DirectionSubtraction Direction = "SUBTRACTION"
)

// IsValid reports whether the direction value is known.
func (d Direction) IsValid() bool {
	return d == DirectionAddition || d == DirectionSubtraction
}

// Movement maps the direction onto a ledger movement type.
func (d Direction) Movement() stock.Movement {
	if d == DirectionAddition {
		return stock.MovementIn
	}
	return stock.MovementOut
}

// CodePrefix heads every stock correction short code.
const CodePrefix = "COR"

// ReversalReference tags compensating ledger entries written when an
// approved correction is deleted.
func ReversalReference(code string) string {
	return "REV-" + code
}

// Correction is one manual adjustment document against one location.
type Correction struct {
	ID        int64             `json:"id"`
	Code      string            `json:"code"`
	Location  stock.LocationRef `json:"location"`
	Reason    string            `json:"reason,omitempty"`
	Status    Status            `json:"status"`
	CreatedBy int64             `json:"created_by"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
	Items     []Item            `json:"items,omitempty"`
}

// Item is one correction line.
type Item struct {
	ID           int64     `json:"id"`
	CorrectionID int64     `json:"correction_id"`
	ProductID    int64     `json:"product_id"`
	BatchID      int64     `json:"batch_id"`
	UoMID        int64     `json:"uom_id"`
	Direction    Direction `json:"direction"`
	Qty          float64   `json:"qty"`
}

// ItemInput is one incoming correction line.
type ItemInput struct {
	ProductID int64     `json:"product_id" validate:"required,gt=0"`
	BatchID   int64     `json:"batch_id" validate:"required,gt=0"`
	UoMID     int64     `json:"uom_id" validate:"required,gt=0"`
	Direction Direction `json:"direction" validate:"required"`
	Qty       float64   `json:"qty" validate:"required,gt=0"`
}

// CreateInput is the payload for creating or updating a correction.
type CreateInput struct {
	Location stock.LocationRef `json:"location"`
	Reason   string            `json:"reason"`
	Items    []ItemInput       `json:"items" validate:"required,min=1,dive"`
	ActorID  int64             `json:"-"`
}

// ListFilter narrows correction listings.
type ListFilter struct {
	Status  Status
	Page    int
	PerPage int
}

// itemInvoiceNo disambiguates ledger rows of the same correction.
func itemInvoiceNo(code string, i int) string {
	return fmt.Sprintf("%s-%d", code, i)
}
