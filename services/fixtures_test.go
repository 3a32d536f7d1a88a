package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/currency"
	"harvest/models"
	"harvest/repository/memory"
)

var testNow = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// clock advances by one second on every read so items keep a stable insertion order.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock(start time.Time) *clock {
	return &clock{now: start}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = t
}

type publishedEvent struct {
	event    models.OrderEvent
	priority uint8
	delay    time.Duration
}

type recordingPublisher struct {
	mu      sync.Mutex
	events  []publishedEvent
	delayed []publishedEvent
	err     error
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event models.OrderEvent, priority uint8) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, publishedEvent{event: event, priority: priority})
	return p.err
}

func (p *recordingPublisher) PublishDelayedEvent(_ context.Context, event models.OrderEvent, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.delayed = append(p.delayed, publishedEvent{event: event, delay: delay})
	return p.err
}

func (p *recordingPublisher) published() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]publishedEvent(nil), p.events...)
}

func (p *recordingPublisher) publishedDelayed() []publishedEvent {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]publishedEvent(nil), p.delayed...)
}

type fixture struct {
	store    *memory.Store
	clock    *clock
	events   *recordingPublisher
	carts    *CartService
	checkout *CheckoutService
	orders   *OrderService
}

func testCheckoutConfig() CheckoutConfig {
	return CheckoutConfig{
		Fees:          DefaultFees(),
		Currency:      currency.IDR,
		PaymentWindow: 24 * time.Hour,
		Bank: BankAccount{
			BankName:      "Bank Tani",
			AccountNumber: "1234567890",
			AccountName:   "PT Harvest Marketplace",
		},
	}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  memory.NewStore(),
		clock:  newClock(testNow),
		events: &recordingPublisher{},
	}

	f.carts = NewCartService(f.store, DefaultFees())
	f.carts.now = f.clock.Now

	f.checkout = NewCheckoutService(f.store, testCheckoutConfig(), f.events)
	f.checkout.now = f.clock.Now

	f.orders = NewOrderService(f.store, f.events)
	f.orders.now = f.clock.Now

	return f
}

func (f *fixture) seller() models.User {
	u := models.User{
		ID:    gofakeit.UUID(),
		Name:  gofakeit.Company(),
		Email: gofakeit.Email(),
	}
	f.store.PutUser(u)
	return u
}

func (f *fixture) product(seller models.User, price int64, mutators ...func(*models.Product)) models.Product {
	p := models.Product{
		ID:            uuid.MustParse(gofakeit.UUID()),
		SellerID:      seller.ID,
		Name:          gofakeit.Fruit(),
		Unit:          "kg",
		Price:         decimal.NewFromInt(price),
		StockQuantity: 100,
		MinimumOrder:  1,
		IsAvailable:   true,
	}
	for _, m := range mutators {
		m(&p)
	}
	f.store.PutProduct(p)
	return p
}

func (f *fixture) addToCart(t *testing.T, buyerID string, p models.Product, quantity int) models.CartItem {
	t.Helper()

	item, err := f.carts.AddItem(t.Context(), buyerID, AddItemRequest{ProductID: p.ID, Quantity: quantity})
	require.NoError(t, err)
	return item
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func requireDecimal(t *testing.T, want string, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()

	require.Truef(t, dec(want).Equal(got), "want %s, got %s %v", want, got, msgAndArgs)
}
