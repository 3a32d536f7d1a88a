package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harvest/models"
)

func cartItem(sellerID string, price int64, quantity int, mutators ...func(*models.CartItem)) models.CartItem {
	item := models.CartItem{
		ID:        uuid.New(),
		ProductID: uuid.New(),
		Product: models.Product{
			SellerID:      sellerID,
			Seller:        models.User{ID: sellerID},
			Name:          "product",
			Price:         decimal.NewFromInt(price),
			StockQuantity: 10,
			IsAvailable:   true,
		},
		Quantity:    quantity,
		IsSelected:  true,
		IsAvailable: true,
	}
	for _, m := range mutators {
		m(&item)
	}
	return item
}

func TestDeliveryFeeFor(t *testing.T) {
	fees := DefaultFees()

	tests := []struct {
		subtotal   string
		wantFee    string
		wantWaived bool
		wantMissed string
	}{
		{subtotal: "0", wantFee: "15000", wantMissed: "100000"},
		{subtotal: "35000", wantFee: "15000", wantMissed: "65000"},
		{subtotal: "99999.99", wantFee: "15000", wantMissed: "0.01"},
		{subtotal: "100000", wantFee: "0", wantWaived: true, wantMissed: "0"},
		{subtotal: "250000", wantFee: "0", wantWaived: true, wantMissed: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.subtotal, func(t *testing.T) {
			fee, waived := fees.DeliveryFeeFor(dec(tt.subtotal))

			requireDecimal(t, tt.wantFee, fee)
			assert.Equal(t, tt.wantWaived, waived)
			requireDecimal(t, tt.wantMissed, fees.AmountForFreeDelivery(dec(tt.subtotal)))
		})
	}
}

func TestActiveDiscount(t *testing.T) {
	past := testNow.Add(-48 * time.Hour)
	future := testNow.Add(48 * time.Hour)

	small := models.Discount{Type: models.DiscountTypePercentage, Value: decimal.NewFromInt(5), IsActive: true, ValidFrom: past, ValidUntil: future}
	large := models.Discount{Type: models.DiscountTypeFixed, Value: decimal.NewFromInt(2000), IsActive: true, ValidFrom: past, ValidUntil: future}
	expired := models.Discount{Type: models.DiscountTypeFixed, Value: decimal.NewFromInt(9000), IsActive: true, ValidFrom: past, ValidUntil: testNow.Add(-time.Hour)}
	disabled := models.Discount{Type: models.DiscountTypeFixed, Value: decimal.NewFromInt(9000), IsActive: false, ValidFrom: past, ValidUntil: future}

	got, ok := ActiveDiscount([]models.Discount{small, expired, large, disabled}, testNow)
	require.True(t, ok)
	assert.Equal(t, large, got)

	_, ok = ActiveDiscount([]models.Discount{expired, disabled}, testNow)
	assert.False(t, ok)

	_, ok = ActiveDiscount(nil, testNow)
	assert.False(t, ok)
}

func TestPriceCartItem(t *testing.T) {
	t.Run("no discount", func(t *testing.T) {
		item := PriceCartItem(cartItem("s1", 10000, 2), testNow)

		requireDecimal(t, "10000", item.UnitPrice)
		assert.False(t, item.DiscountPrice.Valid)
		requireDecimal(t, "20000", item.Subtotal)
	})

	t.Run("active discount", func(t *testing.T) {
		item := PriceCartItem(cartItem("s1", 10000, 3, func(i *models.CartItem) {
			i.Product.Discounts = []models.Discount{{
				Type:       models.DiscountTypePercentage,
				Value:      decimal.NewFromInt(10),
				IsActive:   true,
				ValidFrom:  testNow.Add(-time.Hour),
				ValidUntil: testNow.Add(time.Hour),
			}}
		}), testNow)

		require.True(t, item.DiscountPrice.Valid)
		requireDecimal(t, "9000", item.DiscountPrice.Decimal)
		requireDecimal(t, "27000", item.Subtotal)
		requireDecimal(t, "3000", item.DiscountAmount())
	})

	t.Run("stale stored prices are replaced", func(t *testing.T) {
		item := cartItem("s1", 12000, 1, func(i *models.CartItem) {
			i.UnitPrice = decimal.NewFromInt(10000)
			i.DiscountPrice = decimal.NewNullDecimal(decimal.NewFromInt(8000))
		})

		item = PriceCartItem(item, testNow)

		requireDecimal(t, "12000", item.UnitPrice)
		assert.False(t, item.DiscountPrice.Valid)
		requireDecimal(t, "12000", item.Subtotal)
	})
}

func TestAggregate(t *testing.T) {
	fees := DefaultFees()

	t.Run("single seller", func(t *testing.T) {
		cart := models.Cart{ID: uuid.New(), Items: []models.CartItem{
			cartItem("s1", 10000, 2),
			cartItem("s1", 5000, 3),
		}}

		view := Aggregate(cart, fees, testNow)

		require.Len(t, view.GroupedBySeller, 1)
		group := view.GroupedBySeller[0]
		requireDecimal(t, "35000", group.Subtotal)
		requireDecimal(t, "15000", group.DeliveryFee)
		requireDecimal(t, "50000", group.Total)
		requireDecimal(t, "65000", group.AmountForFreeDelivery)
		assert.False(t, group.IsEligibleFreeDelivery)

		assert.Equal(t, 2, view.Summary.TotalItems)
		assert.Equal(t, 5, view.Summary.TotalQuantity)
		requireDecimal(t, "35000", view.Summary.Subtotal)
		requireDecimal(t, "15000", view.Summary.TotalDeliveryFee)
		requireDecimal(t, "2000", view.Summary.ServiceFee)
		requireDecimal(t, "52000", view.Summary.GrandTotal)
		assert.Empty(t, view.UnavailableItems)
	})

	t.Run("groups keep first appearance order and waive delivery per seller", func(t *testing.T) {
		cart := models.Cart{ID: uuid.New(), Items: []models.CartItem{
			cartItem("s2", 60000, 2),
			cartItem("s1", 10000, 1),
			cartItem("s2", 1000, 1),
		}}

		view := Aggregate(cart, fees, testNow)

		require.Len(t, view.GroupedBySeller, 2)
		assert.Equal(t, "s2", view.GroupedBySeller[0].Seller.ID)
		assert.Equal(t, "s1", view.GroupedBySeller[1].Seller.ID)

		requireDecimal(t, "121000", view.GroupedBySeller[0].Subtotal)
		requireDecimal(t, "0", view.GroupedBySeller[0].DeliveryFee)
		assert.True(t, view.GroupedBySeller[0].IsEligibleFreeDelivery)

		requireDecimal(t, "10000", view.GroupedBySeller[1].Subtotal)
		requireDecimal(t, "15000", view.GroupedBySeller[1].DeliveryFee)

		requireDecimal(t, "148000", view.Summary.GrandTotal)
	})

	t.Run("unselected and unavailable items are not in the subtotal", func(t *testing.T) {
		cart := models.Cart{ID: uuid.New(), Items: []models.CartItem{
			cartItem("s1", 10000, 1),
			cartItem("s1", 7000, 1, func(i *models.CartItem) { i.IsSelected = false }),
			cartItem("s2", 3000, 1, func(i *models.CartItem) { i.IsSelected = false }),
			cartItem("s3", 9000, 1, func(i *models.CartItem) { i.Product.StockQuantity = 0 }),
			cartItem("s3", 9000, 1, func(i *models.CartItem) { i.IsAvailable = false }),
		}}

		view := Aggregate(cart, fees, testNow)

		require.Len(t, view.GroupedBySeller, 2)
		requireDecimal(t, "10000", view.GroupedBySeller[0].Subtotal)
		requireDecimal(t, "15000", view.GroupedBySeller[0].DeliveryFee)
		assert.Len(t, view.GroupedBySeller[0].Items, 2)

		// nothing selected, still below the threshold
		requireDecimal(t, "0", view.GroupedBySeller[1].Subtotal)
		requireDecimal(t, "15000", view.GroupedBySeller[1].DeliveryFee)
		requireDecimal(t, "15000", view.GroupedBySeller[1].Total)
		assert.False(t, view.GroupedBySeller[1].IsEligibleFreeDelivery)
		requireDecimal(t, "100000", view.GroupedBySeller[1].AmountForFreeDelivery)

		assert.Len(t, view.UnavailableItems, 2)
		assert.Equal(t, 5, view.Summary.TotalItems)
		requireDecimal(t, "10000", view.Summary.Subtotal)
		requireDecimal(t, "30000", view.Summary.TotalDeliveryFee)
		requireDecimal(t, "42000", view.Summary.GrandTotal)
	})

	t.Run("empty cart", func(t *testing.T) {
		view := Aggregate(models.Cart{ID: uuid.New()}, fees, testNow)

		assert.NotNil(t, view.GroupedBySeller)
		assert.Empty(t, view.GroupedBySeller)
		assert.Equal(t, 0, view.Summary.TotalItems)
		requireDecimal(t, "2000", view.Summary.GrandTotal)
	})
}

// Every group subtotal equals the sum of its selected item subtotals,
// and the grand total is subtotal + delivery + service fee.
func TestAggregateTotalsAddUp(t *testing.T) {
	fees := DefaultFees()
	sellers := []string{"s1", "s2", "s3"}

	for round := range 50 {
		items := make([]models.CartItem, 0, 8)
		for i := range 1 + round%8 {
			items = append(items, cartItem(sellers[(round+i)%len(sellers)], int64(500*(1+(round*7+i)%40)), 1+(round+i)%5, func(item *models.CartItem) {
				item.IsSelected = (round+i)%3 != 0
			}))
		}

		view := Aggregate(models.Cart{ID: uuid.New(), Items: items}, fees, testNow)

		subtotal := decimal.Zero
		delivery := decimal.Zero
		for _, g := range view.GroupedBySeller {
			selected := lo.Filter(g.Items, func(i models.CartItem, _ int) bool { return i.IsSelected })
			requireDecimal(t, sumSubtotals(selected).String(), g.Subtotal, "round", round)
			requireDecimal(t, g.Subtotal.Add(g.DeliveryFee).String(), g.Total, "round", round)

			subtotal = subtotal.Add(g.Subtotal)
			delivery = delivery.Add(g.DeliveryFee)
		}

		requireDecimal(t, subtotal.String(), view.Summary.Subtotal, "round", round)
		requireDecimal(t, subtotal.Add(delivery).Add(fees.ServiceFee).String(), view.Summary.GrandTotal, "round", round)
	}
}
