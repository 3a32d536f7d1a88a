package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Product struct {
	ID            uuid.UUID
	SellerID      string
	Seller        User
	Name          string
	ImageURL      *string
	Unit          string
	Price         decimal.Decimal
	StockQuantity int
	MinimumOrder  int
	MaximumOrder  *int
	IsAvailable   bool
	Discounts     []Discount
}

func (p Product) InStock() bool {
	return p.IsAvailable && p.StockQuantity > 0
}

// CheckQuantity validates a requested quantity against the product order limits.
func (p Product) CheckQuantity(quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("quantity must be at least 1")
	}
	if p.MinimumOrder > 0 && quantity < p.MinimumOrder {
		return fmt.Errorf("minimum order for %s is %d", p.Name, p.MinimumOrder)
	}
	if p.MaximumOrder != nil && quantity > *p.MaximumOrder {
		return fmt.Errorf("maximum order for %s is %d", p.Name, *p.MaximumOrder)
	}
	return nil
}

type DiscountType string

const (
	DiscountTypePercentage DiscountType = "percentage"
	DiscountTypeFixed      DiscountType = "fixed"
)

type Discount struct {
	ID         uuid.UUID
	ProductID  uuid.UUID
	Type       DiscountType
	Value      decimal.Decimal
	IsActive   bool
	ValidFrom  time.Time
	ValidUntil time.Time
}

// ActiveAt reports isActive && validFrom <= now <= validUntil.
func (d Discount) ActiveAt(now time.Time) bool {
	return d.IsActive && !now.Before(d.ValidFrom) && !now.After(d.ValidUntil)
}

// Apply returns price after the discount, floored at zero and rounded to MoneyScale.
func (d Discount) Apply(price decimal.Decimal) decimal.Decimal {
	var discounted decimal.Decimal

	switch d.Type {
	case DiscountTypePercentage:
		discounted = price.Mul(decimal.NewFromInt(1).Sub(d.Value.Div(decimal.NewFromInt(100))))
	default:
		discounted = price.Sub(d.Value)
	}

	if discounted.IsNegative() {
		return decimal.Zero
	}
	return RoundMoney(discounted)
}
