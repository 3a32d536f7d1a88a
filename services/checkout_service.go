package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"golang.org/x/text/currency"
	"harvest/models"
	"harvest/repository"
)

const (
	DefaultDeliveryMethod   = "home_delivery"
	DefaultDeliveryTimeSlot = "morning"
	DefaultPaymentMethod    = "bank_transfer"
)

// checkoutNamespace derives checkout ids from buyer supplied idempotency keys.
var checkoutNamespace = uuid.MustParse("5b0f3c1e-8f7a-4d3b-9c59-2f6a1d7e4b10")

type BankAccount struct {
	BankName      string
	AccountNumber string
	AccountName   string
}

type CheckoutConfig struct {
	Fees          Fees
	Currency      currency.Unit
	PaymentWindow time.Duration
	Bank          BankAccount
}

type CheckoutService struct {
	orders repository.OrderRepository
	cfg    CheckoutConfig
	events EventPublisher
	now    func() time.Time
}

func NewCheckoutService(orders repository.OrderRepository, cfg CheckoutConfig, events EventPublisher) *CheckoutService {
	return &CheckoutService{
		orders: orders,
		cfg:    cfg,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type CheckoutRequest struct {
	CartItemIDs       []uuid.UUID
	DeliveryAddressID *string
	DeliveryMethod    string
	DeliveryDate      *time.Time
	DeliveryTimeSlot  string
	PaymentMethod     string
	Notes             *string
	IdempotencyKey    string
}

type PaymentInstructions struct {
	BankName      string
	AccountNumber string
	AccountName   string
	Amount        decimal.Decimal
	ValidUntil    time.Time
}

type PaymentSummary struct {
	TotalOrders   int
	GrandTotal    decimal.Decimal
	PaymentMethod string
	Instructions  PaymentInstructions
}

type CheckoutResult struct {
	Orders  []models.Order
	Payment PaymentSummary
	// Replayed is set when the idempotency key matched an earlier checkout.
	Replayed bool
}

// Checkout turns the selected cart items into one order per seller and removes them from the cart.
// All orders are created or none are.
func (s *CheckoutService) Checkout(ctx context.Context, buyerID string, req CheckoutRequest) (CheckoutResult, error) {
	if len(req.CartItemIDs) == 0 {
		return CheckoutResult{}, validationErrorf("No cart items selected")
	}

	req.DeliveryMethod = lo.CoalesceOrEmpty(req.DeliveryMethod, DefaultDeliveryMethod)
	req.DeliveryTimeSlot = lo.CoalesceOrEmpty(req.DeliveryTimeSlot, DefaultDeliveryTimeSlot)
	req.PaymentMethod = lo.CoalesceOrEmpty(req.PaymentMethod, DefaultPaymentMethod)

	checkoutID := uuid.New()
	if req.IdempotencyKey != "" {
		checkoutID = uuid.NewSHA1(checkoutNamespace, []byte(buyerID+":"+req.IdempotencyKey))

		if result, ok, err := s.replay(ctx, buyerID, checkoutID); err != nil || ok {
			return result, err
		}
	}

	now := s.now()
	orders, err := s.orders.PlaceOrders(ctx, repository.PlaceOrdersParams{
		BuyerID:     buyerID,
		CartItemIDs: lo.Uniq(req.CartItemIDs),
		Build: func(items []models.CartItem) ([]models.Order, error) {
			return s.buildOrders(buyerID, checkoutID, req, items, now)
		},
		NextOrderNumber: func() string { return NewOrderNumber(now) },
	})
	if err != nil {
		// a concurrent request with the same key may have consumed the items first
		if req.IdempotencyKey != "" && errors.Is(err, repository.ErrNoCartItems) {
			if result, ok, replayErr := s.replay(ctx, buyerID, checkoutID); replayErr == nil && ok {
				return result, nil
			}
		}
		return CheckoutResult{}, fmt.Errorf("s.orders.PlaceOrders: %w", err)
	}

	for _, o := range orders {
		log.WithFields(log.Fields{
			"order_id":     o.ID,
			"order_number": o.OrderNumber,
			"buyer_id":     o.BuyerID,
			"seller_id":    o.SellerID,
			"total":        o.TotalAmount.String(),
		}).Info("order created")

		publish(ctx, s.events, models.NewOrderEvent(o, models.OrderEventCreated, now), createdEventPriority(o))
		publishDelayed(ctx, s.events, models.NewOrderEvent(o, models.OrderEventPaymentCheck, now), s.cfg.PaymentWindow)
	}

	return s.result(orders, req.PaymentMethod, now.Add(s.cfg.PaymentWindow), false), nil
}

func (s *CheckoutService) replay(ctx context.Context, buyerID string, checkoutID uuid.UUID) (CheckoutResult, bool, error) {
	orders, err := s.orders.FindCheckoutOrders(ctx, buyerID, checkoutID)
	if err != nil {
		return CheckoutResult{}, false, fmt.Errorf("s.orders.FindCheckoutOrders: %w", err)
	}
	if len(orders) == 0 {
		return CheckoutResult{}, false, nil
	}

	log.WithFields(log.Fields{
		"buyer_id":    buyerID,
		"checkout_id": checkoutID,
	}).Info("checkout replayed")

	return s.result(orders, orders[0].PaymentMethod, orders[0].PaymentDueAt, true), true, nil
}

func (s *CheckoutService) buildOrders(buyerID string, checkoutID uuid.UUID, req CheckoutRequest, items []models.CartItem, now time.Time) ([]models.Order, error) {
	for _, item := range items {
		if !item.Purchasable() {
			return nil, validationErrorf("%s is not available", item.Product.Name)
		}
	}

	priced := lo.Map(items, func(i models.CartItem, _ int) models.CartItem { return PriceCartItem(i, now) })

	var orders []models.Order
	for _, sellerItems := range groupBySeller(priced) {
		order := models.Order{
			ID:                uuid.New(),
			OrderNumber:       NewOrderNumber(now),
			CheckoutID:        checkoutID,
			BuyerID:           buyerID,
			SellerID:          sellerItems[0].Product.SellerID,
			Status:            models.OrderStatusPendingPayment,
			Subtotal:          sumSubtotals(sellerItems),
			TotalDiscount:     models.RoundMoney(sumDiscounts(sellerItems)),
			ServiceFee:        s.cfg.Fees.ServiceFee,
			Currency:          s.cfg.Currency,
			PaymentMethod:     req.PaymentMethod,
			PaymentStatus:     models.PaymentStatusPending,
			PaymentDueAt:      now.Add(s.cfg.PaymentWindow),
			DeliveryAddressID: req.DeliveryAddressID,
			DeliveryMethod:    req.DeliveryMethod,
			DeliveryDate:      req.DeliveryDate,
			DeliveryTimeSlot:  req.DeliveryTimeSlot,
			Notes:             req.Notes,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		order.DeliveryFee, _ = s.cfg.Fees.DeliveryFeeFor(order.Subtotal)
		order.TotalAmount = order.Subtotal.Add(order.DeliveryFee).Add(order.ServiceFee)

		order.Items = lo.Map(sellerItems, func(i models.CartItem, _ int) models.OrderItem {
			return models.OrderItem{
				ID:           uuid.New(),
				OrderID:      order.ID,
				ProductID:    i.ProductID,
				ProductName:  i.Product.Name,
				ProductImage: i.Product.ImageURL,
				Unit:         i.Product.Unit,
				Quantity:     i.Quantity,
				UnitPrice:    i.UnitPrice,
				Discount:     models.RoundMoney(i.DiscountAmount()),
				Subtotal:     i.Subtotal,
				CreatedAt:    now,
			}
		})

		orders = append(orders, order)
	}

	return orders, nil
}

func (s *CheckoutService) result(orders []models.Order, paymentMethod string, validUntil time.Time, replayed bool) CheckoutResult {
	grandTotal := lo.Reduce(orders, func(sum decimal.Decimal, o models.Order, _ int) decimal.Decimal {
		return sum.Add(o.TotalAmount)
	}, decimal.Zero)

	return CheckoutResult{
		Orders:   orders,
		Replayed: replayed,
		Payment: PaymentSummary{
			TotalOrders:   len(orders),
			GrandTotal:    grandTotal,
			PaymentMethod: paymentMethod,
			Instructions: PaymentInstructions{
				BankName:      s.cfg.Bank.BankName,
				AccountNumber: s.cfg.Bank.AccountNumber,
				AccountName:   s.cfg.Bank.AccountName,
				Amount:        grandTotal,
				ValidUntil:    validUntil,
			},
		},
	}
}
