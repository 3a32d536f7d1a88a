package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	log "github.com/sirupsen/logrus"
	"harvest/models"
	"harvest/repository"
)

type CartService struct {
	carts repository.CartRepository
	fees  Fees
	now   func() time.Time
}

func NewCartService(carts repository.CartRepository, fees Fees) *CartService {
	return &CartService{
		carts: carts,
		fees:  fees,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// GetCart returns the priced and grouped cart, creating an empty one on first use.
func (s *CartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return CartView{}, fmt.Errorf("s.carts.GetOrCreateCart: %w", err)
	}

	return Aggregate(cart, s.fees, s.now()), nil
}

type AddItemRequest struct {
	ProductID uuid.UUID
	Quantity  int
	Notes     *string
}

// AddItem puts a product in the cart, or adds to the quantity already there.
func (s *CartService) AddItem(ctx context.Context, userID string, req AddItemRequest) (models.CartItem, error) {
	if req.Quantity < 1 {
		return models.CartItem{}, validationErrorf("quantity must be at least 1")
	}

	product, err := s.carts.GetProduct(ctx, req.ProductID)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.GetProduct: %w", err)
	}

	if !product.InStock() {
		return models.CartItem{}, validationErrorf("%s is not available", product.Name)
	}

	cart, err := s.carts.GetOrCreateCart(ctx, userID)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.GetOrCreateCart: %w", err)
	}

	now := s.now()
	item, found := lo.Find(cart.Items, func(i models.CartItem) bool { return i.ProductID == product.ID })
	if found {
		item.Quantity += req.Quantity
		if req.Notes != nil {
			item.Notes = req.Notes
		}
	} else {
		item = models.CartItem{
			ID:          uuid.New(),
			CartID:      cart.ID,
			ProductID:   product.ID,
			Quantity:    req.Quantity,
			Notes:       req.Notes,
			IsSelected:  true,
			IsAvailable: true,
			AddedAt:     now,
		}
	}
	item.Product = product
	item.UpdatedAt = now

	if err := product.CheckQuantity(item.Quantity); err != nil {
		return models.CartItem{}, &ValidationError{Message: err.Error()}
	}

	item = PriceCartItem(item, now)
	if err := s.carts.SaveItem(ctx, item); err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.SaveItem: %w", err)
	}

	log.WithFields(log.Fields{
		"buyer_id":   userID,
		"product_id": product.ID,
		"quantity":   item.Quantity,
	}).Debug("cart item saved")

	return item, nil
}

type UpdateItemRequest struct {
	Quantity *int
	Notes    *string
}

func (s *CartService) UpdateItem(ctx context.Context, userID string, itemID uuid.UUID, req UpdateItemRequest) (models.CartItem, error) {
	item, err := s.carts.GetCartItem(ctx, userID, itemID)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.GetCartItem: %w", err)
	}

	if req.Quantity != nil {
		if err := item.Product.CheckQuantity(*req.Quantity); err != nil {
			return models.CartItem{}, &ValidationError{Message: err.Error()}
		}
		item.Quantity = *req.Quantity
	}
	if req.Notes != nil {
		item.Notes = req.Notes
	}

	now := s.now()
	item.UpdatedAt = now
	item = PriceCartItem(item, now)

	if err := s.carts.SaveItem(ctx, item); err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.SaveItem: %w", err)
	}

	return item, nil
}

func (s *CartService) SetSelected(ctx context.Context, userID string, itemID uuid.UUID, selected bool) (models.CartItem, error) {
	item, err := s.carts.GetCartItem(ctx, userID, itemID)
	if err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.GetCartItem: %w", err)
	}

	now := s.now()
	item.IsSelected = selected
	item.UpdatedAt = now
	item = PriceCartItem(item, now)

	if err := s.carts.SaveItem(ctx, item); err != nil {
		return models.CartItem{}, fmt.Errorf("s.carts.SaveItem: %w", err)
	}

	return item, nil
}

func (s *CartService) RemoveItem(ctx context.Context, userID string, itemID uuid.UUID) error {
	deleted, err := s.carts.DeleteItem(ctx, userID, itemID)
	if err != nil {
		return fmt.Errorf("s.carts.DeleteItem: %w", err)
	}

	if !deleted {
		return repository.ErrCartItemNotFound
	}

	return nil
}

// Clear empties the cart and returns how many items were removed.
func (s *CartService) Clear(ctx context.Context, userID string) (int64, error) {
	deleted, err := s.carts.ClearCart(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("s.carts.ClearCart: %w", err)
	}

	return deleted, nil
}
