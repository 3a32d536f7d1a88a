package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"harvest/services"
)

// GET /api/v1/cart
func GetCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cart_get")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		view, err := carts.GetCart(c.Request.Context(), userID)
		if err != nil {
			failWith(c, err, "Failed to fetch cart")
			return
		}

		success(c, http.StatusOK, toCartDTO(view), "")
	}
}

// DELETE /api/v1/cart
func ClearCart(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cart_clear")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		deleted, err := carts.Clear(c.Request.Context(), userID)
		if err != nil {
			failWith(c, err, "Failed to clear cart")
			return
		}

		success(c, http.StatusOK, gin.H{"deleted_items": deleted}, "Cart cleared successfully")
	}
}

type addCartItemRequest struct {
	ProductID uuid.UUID `json:"product_id" binding:"required"`
	Quantity  *int      `json:"quantity"`
	Notes     *string   `json:"notes"`
}

// POST /api/v1/cart/items
func AddCartItem(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cart_add_item")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		var request addCartItemRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}

		quantity := 1
		if request.Quantity != nil {
			quantity = *request.Quantity
		}

		item, err := carts.AddItem(c.Request.Context(), userID, services.AddItemRequest{
			ProductID: request.ProductID,
			Quantity:  quantity,
			Notes:     request.Notes,
		})
		if err != nil {
			failWith(c, err, "Failed to add item to cart")
			return
		}

		success(c, http.StatusCreated, toCartItemDTO(item), "Item added to cart")
	}
}

type updateCartItemRequest struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

// PUT /api/v1/cart/items/:id
func UpdateCartItem(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cart_update_item")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		itemID, ok := pathID(c, "cart item")
		if !ok {
			return
		}

		var request updateCartItemRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}

		item, err := carts.UpdateItem(c.Request.Context(), userID, itemID, services.UpdateItemRequest{
			Quantity: request.Quantity,
			Notes:    request.Notes,
		})
		if err != nil {
			failWith(c, err, "Failed to update cart item")
			return
		}

		success(c, http.StatusOK, toCartItemDTO(item), "Cart item updated")
	}
}

// DELETE /api/v1/cart/items/:id
func RemoveCartItem(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cart_remove_item")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		itemID, ok := pathID(c, "cart item")
		if !ok {
			return
		}

		if err := carts.RemoveItem(c.Request.Context(), userID, itemID); err != nil {
			failWith(c, err, "Failed to remove cart item")
			return
		}

		success(c, http.StatusOK, gin.H{"cart_item_id": itemID}, "Item removed from cart")
	}
}

type selectCartItemRequest struct {
	IsSelected *bool `json:"is_selected" binding:"required"`
}

// PATCH /api/v1/cart/items/:id/select
func SelectCartItem(carts *services.CartService) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer recordOperation(c, "cart_select_item")

		userID, ok := currentUser(c)
		if !ok {
			return
		}

		itemID, ok := pathID(c, "cart item")
		if !ok {
			return
		}

		var request selectCartItemRequest
		if err := c.ShouldBindJSON(&request); err != nil {
			fail(c, http.StatusBadRequest, "Invalid input: "+err.Error())
			return
		}

		item, err := carts.SetSelected(c.Request.Context(), userID, itemID, *request.IsSelected)
		if err != nil {
			failWith(c, err, "Failed to update cart item")
			return
		}

		success(c, http.StatusOK, toCartItemDTO(item), "")
	}
}
