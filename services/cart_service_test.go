package services

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"harvest/models"
	"harvest/repository"
)

func TestCartServiceGetCartCreatesEmptyCart(t *testing.T) {
	f := newFixture(t)

	view, err := f.carts.GetCart(t.Context(), "buyer-1")
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, view.CartID)
	assert.Empty(t, view.Items)
	assert.True(t, f.store.HasCart("buyer-1"))

	again, err := f.carts.GetCart(t.Context(), "buyer-1")
	require.NoError(t, err)
	assert.Equal(t, view.CartID, again.CartID)
}

func TestCartServiceAddItem(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	seller := f.seller()
	p := f.product(seller, 10000, func(p *models.Product) { p.MaximumOrder = lo.ToPtr(5) })

	item := f.addToCart(t, "buyer-1", p, 2)
	assert.True(t, item.IsSelected)
	assert.True(t, item.IsAvailable)
	requireDecimal(t, "20000", item.Subtotal)

	again, err := f.carts.AddItem(ctx, "buyer-1", AddItemRequest{ProductID: p.ID, Quantity: 2, Notes: lo.ToPtr("ripe ones")})
	require.NoError(t, err)
	assert.Equal(t, item.ID, again.ID)
	assert.Equal(t, 4, again.Quantity)
	assert.Equal(t, "ripe ones", *again.Notes)

	view, err := f.carts.GetCart(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, seller.Name, view.GroupedBySeller[0].Seller.Name)

	_, err = f.carts.AddItem(ctx, "buyer-1", AddItemRequest{ProductID: p.ID, Quantity: 2})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Equal(t, "maximum order for "+p.Name+" is 5", validationErr.Message)
}

func TestCartServiceAddItemFailures(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	seller := f.seller()

	tests := []struct {
		name      string
		req       func() AddItemRequest
		wantError string
		wantIs    error
	}{
		{
			name:      "zero quantity",
			req:       func() AddItemRequest { return AddItemRequest{ProductID: f.product(seller, 1000).ID} },
			wantError: "quantity must be at least 1",
		},
		{
			name:   "unknown product",
			req:    func() AddItemRequest { return AddItemRequest{ProductID: uuid.New(), Quantity: 1} },
			wantIs: repository.ErrProductNotFound,
		},
		{
			name: "out of stock",
			req: func() AddItemRequest {
				p := f.product(seller, 1000, func(p *models.Product) { p.Name = "Kale"; p.StockQuantity = 0 })
				return AddItemRequest{ProductID: p.ID, Quantity: 1}
			},
			wantError: "Kale is not available",
		},
		{
			name: "below minimum order",
			req: func() AddItemRequest {
				p := f.product(seller, 1000, func(p *models.Product) { p.Name = "Rice"; p.MinimumOrder = 5 })
				return AddItemRequest{ProductID: p.ID, Quantity: 1}
			},
			wantError: "minimum order for Rice is 5",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.carts.AddItem(ctx, "buyer-1", tt.req())
			require.Error(t, err)

			if tt.wantIs != nil {
				assert.ErrorIs(t, err, tt.wantIs)
				assert.True(t, IsNotFound(err))
				return
			}

			var validationErr *ValidationError
			require.ErrorAs(t, err, &validationErr)
			assert.Equal(t, tt.wantError, validationErr.Message)
		})
	}
}

func TestCartServiceUpdateAndSelect(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	p := f.product(f.seller(), 3000)
	item := f.addToCart(t, "buyer-1", p, 1)

	updated, err := f.carts.UpdateItem(ctx, "buyer-1", item.ID, UpdateItemRequest{Quantity: lo.ToPtr(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)
	requireDecimal(t, "12000", updated.Subtotal)

	_, err = f.carts.UpdateItem(ctx, "buyer-1", item.ID, UpdateItemRequest{Quantity: lo.ToPtr(0)})
	var validationErr *ValidationError
	require.ErrorAs(t, err, &validationErr)

	_, err = f.carts.UpdateItem(ctx, "buyer-2", item.ID, UpdateItemRequest{Quantity: lo.ToPtr(2)})
	require.ErrorIs(t, err, repository.ErrCartItemNotFound)

	deselected, err := f.carts.SetSelected(ctx, "buyer-1", item.ID, false)
	require.NoError(t, err)
	assert.False(t, deselected.IsSelected)

	view, err := f.carts.GetCart(ctx, "buyer-1")
	require.NoError(t, err)
	requireDecimal(t, "0", view.Summary.Subtotal)
	requireDecimal(t, "15000", view.Summary.TotalDeliveryFee)
	requireDecimal(t, "17000", view.Summary.GrandTotal)
}

func TestCartServiceRemoveAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := t.Context()
	seller := f.seller()

	item := f.addToCart(t, "buyer-1", f.product(seller, 1000), 1)
	f.addToCart(t, "buyer-1", f.product(seller, 2000), 1)
	f.addToCart(t, "buyer-1", f.product(seller, 3000), 1)

	require.NoError(t, f.carts.RemoveItem(ctx, "buyer-1", item.ID))
	require.ErrorIs(t, f.carts.RemoveItem(ctx, "buyer-1", item.ID), repository.ErrCartItemNotFound)

	deleted, err := f.carts.Clear(ctx, "buyer-1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)

	deleted, err = f.carts.Clear(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, deleted)
}

func TestOptionalUnmarshal(t *testing.T) {
	type body struct {
		Tracking Optional[string] `json:"tracking_number"`
	}

	var absent, null, set body
	require.NoError(t, json.Unmarshal([]byte(`{}`), &absent))
	require.NoError(t, json.Unmarshal([]byte(`{"tracking_number": null}`), &null))
	require.NoError(t, json.Unmarshal([]byte(`{"tracking_number": "JNE-9"}`), &set))

	assert.False(t, absent.Tracking.Set)
	assert.True(t, null.Tracking.Set)
	assert.Nil(t, null.Tracking.Value)
	assert.True(t, set.Tracking.Set)
	assert.Equal(t, "JNE-9", *set.Tracking.Value)

	var bad body
	assert.Error(t, json.Unmarshal([]byte(`{"tracking_number": 42}`), &bad))
}
