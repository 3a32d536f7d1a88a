package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Cart is one buyer's pre-checkout collection. There is at most one per user.
type Cart struct {
	ID        uuid.UUID
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

type CartItem struct {
	ID        uuid.UUID
	CartID    uuid.UUID
	ProductID uuid.UUID
	Product   Product

	Quantity      int
	UnitPrice     decimal.Decimal
	DiscountPrice decimal.NullDecimal
	Subtotal      decimal.Decimal
	Notes         *string

	IsSelected  bool
	IsAvailable bool

	AddedAt   time.Time
	UpdatedAt time.Time
}

// EffectivePrice is the discounted price when one is set, else the unit price.
func (i CartItem) EffectivePrice() decimal.Decimal {
	if i.DiscountPrice.Valid {
		return i.DiscountPrice.Decimal
	}
	return i.UnitPrice
}

// DiscountAmount is (unit price - effective price) * quantity.
func (i CartItem) DiscountAmount() decimal.Decimal {
	return i.UnitPrice.Sub(i.EffectivePrice()).Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Purchasable reports whether the item can be charged: both the line and its product are available.
func (i CartItem) Purchasable() bool {
	return i.IsAvailable && i.Product.InStock()
}
