package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"harvest/models"
)

var (
	ErrCartItemNotFound     = errors.New("cart item not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrOrderNotFound        = errors.New("order not found")
	ErrNoCartItems          = errors.New("no valid cart items found")
	ErrCartItemsChanged     = errors.New("cart items changed during checkout")
	ErrDuplicateOrderNumber = errors.New("duplicate order number")
)

// MaxOrderNumberAttempts bounds order number regeneration on unique-key conflicts.
const MaxOrderNumberAttempts = 5

type CartRepository interface {
	// GetOrCreateCart returns the user's cart with items, products and active-flagged discounts,
	// creating an empty cart when the user has none.
	GetOrCreateCart(ctx context.Context, userID string) (models.Cart, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (models.Product, error)
	GetCartItem(ctx context.Context, userID string, itemID uuid.UUID) (models.CartItem, error)
	SaveItem(ctx context.Context, item models.CartItem) error
	DeleteItem(ctx context.Context, userID string, itemID uuid.UUID) (bool, error)
	ClearCart(ctx context.Context, userID string) (int64, error)
}

// PlaceOrdersParams drives one checkout. Build receives the locked cart items and
// returns the orders to insert; every locked item is consumed.
type PlaceOrdersParams struct {
	BuyerID         string
	CartItemIDs     []uuid.UUID
	Build           func(items []models.CartItem) ([]models.Order, error)
	NextOrderNumber func() string
}

type OrderRepository interface {
	PlaceOrders(ctx context.Context, params PlaceOrdersParams) ([]models.Order, error)
	FindCheckoutOrders(ctx context.Context, buyerID string, checkoutID uuid.UUID) ([]models.Order, error)

	GetOrder(ctx context.Context, orderID uuid.UUID, scope models.OrderScope) (models.Order, error)
	// UpdateOrder locks the order, applies mutate and persists the mutable fields.
	// When mutate fails nothing is written.
	UpdateOrder(ctx context.Context, orderID uuid.UUID, scope models.OrderScope, mutate func(*models.Order) error) (models.Order, error)

	SearchOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, int, error)
	StatusStats(ctx context.Context, sellerID string) ([]models.StatusStat, error)
	ListPaymentExpired(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
}
