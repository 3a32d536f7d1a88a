// Package memory keeps carts and orders in process. It backs local runs with
// STORAGE_DRIVER=memory and the service and handler tests.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"harvest/models"
	"harvest/repository"
)

type Store struct {
	mu sync.RWMutex

	products  map[uuid.UUID]models.Product
	users     map[string]models.User
	addresses map[string]models.Address
	reviews   map[uuid.UUID][]models.Review

	carts     map[string]models.Cart // by user id, items are kept in cartItems
	cartItems map[uuid.UUID]models.CartItem

	orders       map[uuid.UUID]models.Order
	orderNumbers map[string]uuid.UUID

	now func() time.Time
}

var (
	_ repository.CartRepository  = (*Store)(nil)
	_ repository.OrderRepository = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		products:     make(map[uuid.UUID]models.Product),
		users:        make(map[string]models.User),
		addresses:    make(map[string]models.Address),
		reviews:      make(map[uuid.UUID][]models.Review),
		carts:        make(map[string]models.Cart),
		cartItems:    make(map[uuid.UUID]models.CartItem),
		orders:       make(map[uuid.UUID]models.Order),
		orderNumbers: make(map[string]uuid.UUID),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// PutProduct stores or replaces a product. Its seller is taken from the user table when present.
func (s *Store) PutProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p.Discounts = slices.Clone(p.Discounts)
	s.products[p.ID] = p
}

func (s *Store) PutUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[u.ID] = u
}

func (s *Store) PutAddress(a models.Address) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.addresses[a.ID] = a
}

func (s *Store) PutReview(r models.Review) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reviews[r.OrderID] = append(s.reviews[r.OrderID], r)
}

// PutOrder stores an order as is, bypassing checkout.
func (s *Store) PutOrder(o models.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.orderNumbers[o.OrderNumber]; ok && id != o.ID {
		return repository.ErrDuplicateOrderNumber
	}

	s.orders[o.ID] = cloneOrder(o)
	s.orderNumbers[o.OrderNumber] = o.ID
	return nil
}

func (s *Store) GetOrCreateCart(_ context.Context, userID string) (models.Cart, error) {
	if userID == "" {
		return models.Cart{}, errors.New("userID is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		now := s.now()
		c = models.Cart{ID: uuid.New(), UserID: userID, CreatedAt: now, UpdatedAt: now}
		s.carts[userID] = c
		return c, nil
	}

	c.Items = s.itemsLocked(func(i models.CartItem) bool { return i.CartID == c.ID })
	return c, nil
}

// HasCart reports whether a cart exists for the user.
func (s *Store) HasCart(userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.carts[userID]
	return ok
}

func (s *Store) GetProduct(_ context.Context, productID uuid.UUID) (models.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[productID]
	if !ok {
		return models.Product{}, repository.ErrProductNotFound
	}

	return s.productLocked(p), nil
}

func (s *Store) GetCartItem(_ context.Context, userID string, itemID uuid.UUID) (models.CartItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	item, ok := s.ownedItemLocked(userID, itemID)
	if !ok {
		return models.CartItem{}, repository.ErrCartItemNotFound
	}

	item.Product = s.productLocked(s.products[item.ProductID])
	return item, nil
}

func (s *Store) SaveItem(_ context.Context, item models.CartItem) error {
	if item.ID == uuid.Nil {
		return errors.New("cart item ID is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.cartItems {
		if id != item.ID && existing.CartID == item.CartID && existing.ProductID == item.ProductID {
			return fmt.Errorf("product %s is already in cart %s", item.ProductID, item.CartID)
		}
	}

	item.Product = models.Product{}
	s.cartItems[item.ID] = item

	for userID, c := range s.carts {
		if c.ID == item.CartID {
			c.UpdatedAt = item.UpdatedAt
			s.carts[userID] = c
		}
	}

	return nil
}

func (s *Store) DeleteItem(_ context.Context, userID string, itemID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.ownedItemLocked(userID, itemID); !ok {
		return false, nil
	}

	delete(s.cartItems, itemID)
	return true, nil
}

func (s *Store) ClearCart(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[userID]
	if !ok {
		return 0, nil
	}

	var deleted int64
	for id, item := range s.cartItems {
		if item.CartID == c.ID {
			delete(s.cartItems, id)
			deleted++
		}
	}

	return deleted, nil
}

func (s *Store) PlaceOrders(_ context.Context, params repository.PlaceOrdersParams) ([]models.Order, error) {
	if params.BuyerID == "" {
		return nil, errors.New("buyerID is empty")
	}
	if len(params.CartItemIDs) == 0 {
		return nil, errors.New("no cart items in checkout")
	}
	if params.Build == nil || params.NextOrderNumber == nil {
		return nil, errors.New("checkout params are incomplete")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.carts[params.BuyerID]
	if !ok {
		return nil, repository.ErrNoCartItems
	}

	wanted := lo.SliceToMap(params.CartItemIDs, func(id uuid.UUID) (uuid.UUID, struct{}) { return id, struct{}{} })
	items := s.itemsLocked(func(i models.CartItem) bool {
		_, ok := wanted[i.ID]
		return ok && i.CartID == c.ID
	})
	if len(items) == 0 {
		return nil, repository.ErrNoCartItems
	}

	orders, err := params.Build(items)
	if err != nil {
		return nil, err
	}

	// numbers are settled before anything is written so a failure leaves the store untouched
	taken := make(map[string]struct{})
	for i := range orders {
		for attempt := 1; ; attempt++ {
			_, dup := s.orderNumbers[orders[i].OrderNumber]
			_, dupInBatch := taken[orders[i].OrderNumber]
			if !dup && !dupInBatch {
				break
			}
			if attempt >= repository.MaxOrderNumberAttempts {
				return nil, fmt.Errorf("order number %s: %w", orders[i].OrderNumber, repository.ErrDuplicateOrderNumber)
			}
			orders[i].OrderNumber = params.NextOrderNumber()
		}
		taken[orders[i].OrderNumber] = struct{}{}
	}

	for _, o := range orders {
		s.orders[o.ID] = cloneOrder(o)
		s.orderNumbers[o.OrderNumber] = o.ID
	}
	for _, item := range items {
		delete(s.cartItems, item.ID)
	}

	return orders, nil
}

func (s *Store) FindCheckoutOrders(_ context.Context, buyerID string, checkoutID uuid.UUID) ([]models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := s.ordersLocked(func(o models.Order) bool {
		return o.BuyerID == buyerID && o.CheckoutID == checkoutID
	})
	slices.SortFunc(orders, func(a, b models.Order) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.OrderNumber, b.OrderNumber))
	})

	return orders, nil
}

func (s *Store) GetOrder(_ context.Context, orderID uuid.UUID, scope models.OrderScope) (models.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.orders[orderID]
	if !ok || !scope.Allows(o) {
		return models.Order{}, repository.ErrOrderNotFound
	}

	o = s.withPartiesLocked(cloneOrder(o))
	o.Reviews = slices.Clone(s.reviews[o.ID])
	return o, nil
}

func (s *Store) UpdateOrder(_ context.Context, orderID uuid.UUID, scope models.OrderScope, mutate func(*models.Order) error) (models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.orders[orderID]
	if !ok || !scope.Allows(stored) {
		return models.Order{}, repository.ErrOrderNotFound
	}

	o := cloneOrder(stored)
	if err := mutate(&o); err != nil {
		return models.Order{}, err
	}

	// only the mutable columns are persisted, as in the SQL store
	stored.Status = o.Status
	stored.PaymentStatus = o.PaymentStatus
	stored.PaidAt = o.PaidAt
	stored.TrackingNumber = o.TrackingNumber
	stored.EstimatedArrival = o.EstimatedArrival
	stored.CancelledReason = o.CancelledReason
	stored.CancelledAt = o.CancelledAt
	stored.UpdatedAt = o.UpdatedAt
	s.orders[orderID] = stored

	return cloneOrder(stored), nil
}

func (s *Store) SearchOrders(_ context.Context, filter models.OrderFilter) ([]models.Order, int, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, fmt.Errorf("filter.Validate: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	orders := s.ordersLocked(func(o models.Order) bool {
		owner := o.BuyerID
		if filter.Role == models.OrderRoleSeller {
			owner = o.SellerID
		}
		return owner == filter.UserID && (filter.Status == nil || o.Status == *filter.Status)
	})
	slices.SortFunc(orders, func(a, b models.Order) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.OrderNumber, a.OrderNumber))
	})

	total := len(orders)
	start := min(filter.Offset(), total)
	end := min(start+filter.Limit, total)

	page := orders[start:end]
	for i := range page {
		page[i] = s.withPartiesLocked(page[i])
	}

	return page, total, nil
}

func (s *Store) StatusStats(_ context.Context, sellerID string) ([]models.StatusStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byStatus := make(map[models.OrderStatus]*models.StatusStat)
	for _, o := range s.orders {
		if o.SellerID != sellerID {
			continue
		}
		stat, ok := byStatus[o.Status]
		if !ok {
			stat = &models.StatusStat{Status: o.Status, Amount: decimal.Zero}
			byStatus[o.Status] = stat
		}
		stat.Count++
		stat.Amount = stat.Amount.Add(o.TotalAmount)
	}

	stats := make([]models.StatusStat, 0, len(byStatus))
	for _, status := range models.OrderStatuses() {
		if stat, ok := byStatus[status]; ok {
			stats = append(stats, *stat)
		}
	}

	return stats, nil
}

func (s *Store) ListPaymentExpired(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	expired := s.ordersLocked(func(o models.Order) bool { return o.PaymentExpired(now) })
	slices.SortFunc(expired, func(a, b models.Order) int { return a.PaymentDueAt.Compare(b.PaymentDueAt) })

	if limit > 0 && len(expired) > limit {
		expired = expired[:limit]
	}

	return lo.Map(expired, func(o models.Order, _ int) uuid.UUID { return o.ID }), nil
}

func (s *Store) ownedItemLocked(userID string, itemID uuid.UUID) (models.CartItem, bool) {
	c, ok := s.carts[userID]
	if !ok {
		return models.CartItem{}, false
	}

	item, ok := s.cartItems[itemID]
	if !ok || item.CartID != c.ID {
		return models.CartItem{}, false
	}

	return item, true
}

// itemsLocked returns matching cart items with their products, oldest first.
func (s *Store) itemsLocked(match func(models.CartItem) bool) []models.CartItem {
	var items []models.CartItem
	for _, item := range s.cartItems {
		if !match(item) {
			continue
		}
		item.Product = s.productLocked(s.products[item.ProductID])
		items = append(items, item)
	}

	slices.SortFunc(items, func(a, b models.CartItem) int {
		return cmp.Or(a.AddedAt.Compare(b.AddedAt), cmp.Compare(a.ID.String(), b.ID.String()))
	})

	return items
}

func (s *Store) productLocked(p models.Product) models.Product {
	if seller, ok := s.users[p.SellerID]; ok {
		p.Seller = seller
	} else if p.Seller.ID == "" {
		p.Seller = models.User{ID: p.SellerID}
	}

	// the SQL store only loads active-flagged discounts
	p.Discounts = lo.Filter(p.Discounts, func(d models.Discount, _ int) bool { return d.IsActive })
	return p
}

func (s *Store) ordersLocked(match func(models.Order) bool) []models.Order {
	var orders []models.Order
	for _, o := range s.orders {
		if match(o) {
			orders = append(orders, cloneOrder(o))
		}
	}
	return orders
}

func (s *Store) withPartiesLocked(o models.Order) models.Order {
	if u, ok := s.users[o.BuyerID]; ok {
		o.Buyer = &u
	}
	if u, ok := s.users[o.SellerID]; ok {
		o.Seller = &u
	}
	if o.DeliveryAddressID != nil {
		if a, ok := s.addresses[*o.DeliveryAddressID]; ok {
			o.DeliveryAddress = &a
		}
	}
	return o
}

func cloneOrder(o models.Order) models.Order {
	o.Items = slices.Clone(o.Items)
	o.Reviews = nil
	o.Buyer, o.Seller, o.DeliveryAddress = nil, nil, nil
	return o
}
