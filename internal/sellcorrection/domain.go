// Package sellcorrection implements corrections linked to a sale. Stock
// moves against the sale's shop, and the sale's net total follows: additions
// at the correction price, subtractions at the original sale item price.
package sellcorrection

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/samudra-retail/samudra-retail/internal/stock"
)

// Status is the correction lifecycle state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Direction says which way a correction line moves stock.
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

// CodePrefix heads every sale correction short code.
const CodePrefix = "SCR"

// ReversalReference tags compensating ledger entries written when an
// approved sale correction is deleted.
func ReversalReference(code string) string {
	return "REV-" + code
}

// Correction is one adjustment document linked to a sale.
type Correction struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	SaleID    int64     `json:"sale_id"`
	Reason    string    `json:"reason,omitempty"`
	Status    Status    `json:"status"`
	CreatedBy int64     `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Items     []Item    `json:"items,omitempty"`
}

// Item is one correction line. SellItemID names the sale line being
// corrected; subtractions are priced off that line, additions off UnitPrice.
type Item struct {
	ID           int64           `json:"id"`
	CorrectionID int64           `json:"correction_id"`
	SellItemID   int64           `json:"sell_item_id"`
	ProductID    int64           `json:"product_id"`
	BatchID      int64           `json:"batch_id"`
	UoMID        int64           `json:"uom_id"`
	Direction    Direction       `json:"direction"`
	Qty          float64         `json:"qty"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
}

// ItemInput is one incoming correction line.
type ItemInput struct {
	SellItemID int64           `json:"sell_item_id" validate:"required,gt=0"`
	BatchID    int64           `json:"batch_id" validate:"required,gt=0"`
	Direction  Direction       `json:"direction" validate:"required"`
	Qty        float64         `json:"qty" validate:"required,gt=0"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// CreateInput is the payload for creating a sale correction.
type CreateInput struct {
	SaleID  int64       `json:"sale_id" validate:"required,gt=0"`
	Reason  string      `json:"reason"`
	Items   []ItemInput `json:"items" validate:"required,min=1,dive"`
	ActorID int64       `json:"-"`
}

// ListFilter narrows correction listings.
type ListFilter struct {
	Status  Status
	SaleID  int64
	Page    int
	PerPage int
}

// SaleInfo is the slice of the sale header this workflow reads and writes.
type SaleInfo struct {
	ID        int64
	InvoiceNo string
	NetTotal  decimal.Decimal
}

// SaleItemInfo is the slice of a sale line this workflow reads.
type SaleItemInfo struct {
	ID        int64
	SaleID    int64
	ProductID int64
	ShopID    int64
	UoMID     int64
	UnitPrice decimal.Decimal
}

func itemInvoiceNo(code string, i int) string {
	return fmt.Sprintf("%s-%d", code, i)
}
