package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"harvest/models"
)

// Fees are the flat charges added on top of item subtotals.
type Fees struct {
	DeliveryFee           decimal.Decimal
	FreeDeliveryThreshold decimal.Decimal
	ServiceFee            decimal.Decimal
}

func DefaultFees() Fees {
	return Fees{
		DeliveryFee:           decimal.NewFromInt(15000),
		FreeDeliveryThreshold: decimal.NewFromInt(100000),
		ServiceFee:            decimal.NewFromInt(2000),
	}
}

// DeliveryFeeFor returns the fee charged for one seller's subtotal, zero when waived.
func (f Fees) DeliveryFeeFor(subtotal decimal.Decimal) (decimal.Decimal, bool) {
	if subtotal.GreaterThanOrEqual(f.FreeDeliveryThreshold) {
		return decimal.Zero, true
	}
	return f.DeliveryFee, false
}

// AmountForFreeDelivery is how much more the seller subtotal needs before delivery is waived.
func (f Fees) AmountForFreeDelivery(subtotal decimal.Decimal) decimal.Decimal {
	return decimal.Max(decimal.Zero, f.FreeDeliveryThreshold.Sub(subtotal))
}

// ActiveDiscount picks the active discount with the largest value.
func ActiveDiscount(discounts []models.Discount, now time.Time) (models.Discount, bool) {
	active := lo.Filter(discounts, func(d models.Discount, _ int) bool { return d.ActiveAt(now) })
	if len(active) == 0 {
		return models.Discount{}, false
	}

	return lo.MaxBy(active, func(a, b models.Discount) bool { return a.Value.GreaterThan(b.Value) }), true
}

// PriceCartItem reprices the item from its product and the discount active at now.
func PriceCartItem(item models.CartItem, now time.Time) models.CartItem {
	item.UnitPrice = item.Product.Price
	item.DiscountPrice = decimal.NullDecimal{}

	if d, ok := ActiveDiscount(item.Product.Discounts, now); ok {
		item.DiscountPrice = decimal.NewNullDecimal(d.Apply(item.UnitPrice))
	}

	item.Subtotal = models.RoundMoney(item.EffectivePrice().Mul(decimal.NewFromInt(int64(item.Quantity))))
	return item
}

type SellerGroup struct {
	Seller                 models.User
	Items                  []models.CartItem
	Subtotal               decimal.Decimal
	DeliveryFee            decimal.Decimal
	FreeDeliveryThreshold  decimal.Decimal
	IsEligibleFreeDelivery bool
	AmountForFreeDelivery  decimal.Decimal
	Total                  decimal.Decimal
}

type CartSummary struct {
	TotalItems       int
	TotalQuantity    int
	Subtotal         decimal.Decimal
	TotalDiscount    decimal.Decimal
	TotalDeliveryFee decimal.Decimal
	ServiceFee       decimal.Decimal
	GrandTotal       decimal.Decimal
}

type CartView struct {
	CartID           uuid.UUID
	Items            []models.CartItem
	GroupedBySeller  []SellerGroup
	Summary          CartSummary
	UnavailableItems []models.CartItem
	UpdatedAt        time.Time
}

// Aggregate prices every item of the cart and builds the grouped preview.
// Only selected purchasable items count towards money totals.
func Aggregate(cart models.Cart, fees Fees, now time.Time) CartView {
	items := lo.Map(cart.Items, func(i models.CartItem, _ int) models.CartItem { return PriceCartItem(i, now) })

	view := CartView{
		CartID:           cart.ID,
		Items:            items,
		GroupedBySeller:  []SellerGroup{},
		UnavailableItems: lo.Filter(items, func(i models.CartItem, _ int) bool { return !i.Purchasable() }),
		UpdatedAt:        cart.UpdatedAt,
	}

	summary := CartSummary{
		TotalItems:       len(items),
		TotalQuantity:    lo.SumBy(items, func(i models.CartItem) int { return i.Quantity }),
		Subtotal:         decimal.Zero,
		TotalDiscount:    decimal.Zero,
		TotalDeliveryFee: decimal.Zero,
		ServiceFee:       fees.ServiceFee,
	}

	available := lo.Filter(items, func(i models.CartItem, _ int) bool { return i.Purchasable() })
	for _, sellerItems := range groupBySeller(available) {
		chargeable := lo.Filter(sellerItems, func(i models.CartItem, _ int) bool { return i.IsSelected })

		group := SellerGroup{
			Seller:                sellerItems[0].Product.Seller,
			Items:                 sellerItems,
			Subtotal:              sumSubtotals(chargeable),
			FreeDeliveryThreshold: fees.FreeDeliveryThreshold,
		}
		group.AmountForFreeDelivery = fees.AmountForFreeDelivery(group.Subtotal)
		group.IsEligibleFreeDelivery = group.AmountForFreeDelivery.IsZero()

		// a group below the threshold pays delivery even when none of its items is selected
		group.DeliveryFee, _ = fees.DeliveryFeeFor(group.Subtotal)
		group.Total = group.Subtotal.Add(group.DeliveryFee)

		summary.Subtotal = summary.Subtotal.Add(group.Subtotal)
		summary.TotalDiscount = summary.TotalDiscount.Add(sumDiscounts(chargeable))
		summary.TotalDeliveryFee = summary.TotalDeliveryFee.Add(group.DeliveryFee)

		view.GroupedBySeller = append(view.GroupedBySeller, group)
	}

	summary.GrandTotal = summary.Subtotal.Add(summary.TotalDeliveryFee).Add(summary.ServiceFee)
	view.Summary = summary

	return view
}

// groupBySeller partitions items by seller id, keeping the order in which sellers first appear.
func groupBySeller(items []models.CartItem) [][]models.CartItem {
	grouped := lo.GroupBy(items, func(i models.CartItem) string { return i.Product.SellerID })
	sellers := lo.Uniq(lo.Map(items, func(i models.CartItem, _ int) string { return i.Product.SellerID }))

	return lo.Map(sellers, func(sellerID string, _ int) []models.CartItem { return grouped[sellerID] })
}

func sumSubtotals(items []models.CartItem) decimal.Decimal {
	return lo.Reduce(items, func(sum decimal.Decimal, i models.CartItem, _ int) decimal.Decimal {
		return sum.Add(i.Subtotal)
	}, decimal.Zero)
}

func sumDiscounts(items []models.CartItem) decimal.Decimal {
	return lo.Reduce(items, func(sum decimal.Decimal, i models.CartItem, _ int) decimal.Decimal {
		return sum.Add(i.DiscountAmount())
	}, decimal.Zero)
}
