package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type Order struct {
	ID          uuid.UUID
	OrderNumber string
	CheckoutID  uuid.UUID
	BuyerID     string
	SellerID    string
	Status      OrderStatus

	Subtotal      decimal.Decimal
	DeliveryFee   decimal.Decimal
	ServiceFee    decimal.Decimal
	TotalDiscount decimal.Decimal
	TotalAmount   decimal.Decimal
	Currency      currency.Unit

	PaymentMethod string
	PaymentStatus PaymentStatus
	PaymentDueAt  time.Time
	PaidAt        *time.Time

	DeliveryAddressID *string
	DeliveryMethod    string
	DeliveryDate      *time.Time
	DeliveryTimeSlot  string
	Notes             *string

	TrackingNumber   *string
	EstimatedArrival *time.Time
	CancelledReason  *string
	CancelledAt      *time.Time

	Items []OrderItem

	// populated by detail reads only
	Buyer           *User
	Seller          *User
	DeliveryAddress *Address
	Reviews         []Review

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OrderItem is a snapshot of a purchased line. It does not follow later product edits.
type OrderItem struct {
	ID           uuid.UUID
	OrderID      uuid.UUID
	ProductID    uuid.UUID
	ProductName  string
	ProductImage *string
	Unit         string
	Quantity     int
	UnitPrice    decimal.Decimal
	Discount     decimal.Decimal
	Subtotal     decimal.Decimal

	CreatedAt time.Time
}

// TransitionTo moves the order to next, enforcing the transition table.
// On cancellation it stamps CancelledAt and stores reason when non-empty.
func (o *Order) TransitionTo(next OrderStatus, now time.Time, reason string) error {
	if !o.Status.CanTransitionTo(next) {
		return &TransitionError{From: o.Status, To: next}
	}

	o.Status = next
	o.UpdatedAt = now

	if next == OrderStatusCancelled {
		o.CancelledAt = &now
		if reason != "" {
			o.CancelledReason = &reason
		}
	}

	return nil
}

// PaymentExpired reports whether an unpaid order is past its payment window.
func (o Order) PaymentExpired(now time.Time) bool {
	return o.Status.AwaitingPayment() &&
		o.PaymentStatus == PaymentStatusPending &&
		!o.PaymentDueAt.IsZero() &&
		!now.Before(o.PaymentDueAt)
}

func (o Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

type User struct {
	ID        string
	Name      string
	Email     string
	Phone     *string
	AvatarURL *string
}

type Address struct {
	ID            string
	UserID        string
	RecipientName string
	Phone         string
	FullAddress   string
	City          string
	Province      string
	PostalCode    string
}

type Review struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	Rating    int
	Comment   *string
	CreatedAt time.Time
}

// OrderScope restricts an order lookup to its owner. Empty fields are ignored;
// PartyID matches either the buyer or the seller.
type OrderScope struct {
	BuyerID  string
	SellerID string
	PartyID  string
}

func (s OrderScope) Allows(o Order) bool {
	if s.BuyerID != "" && o.BuyerID != s.BuyerID {
		return false
	}
	if s.SellerID != "" && o.SellerID != s.SellerID {
		return false
	}
	if s.PartyID != "" && o.BuyerID != s.PartyID && o.SellerID != s.PartyID {
		return false
	}
	return true
}

// StatusStat is the count and revenue of one seller's orders in one status.
type StatusStat struct {
	Status OrderStatus
	Count  int
	Amount decimal.Decimal
}

type OrderEventType string

const (
	OrderEventCreated       OrderEventType = "created"
	OrderEventStatusUpdated OrderEventType = "status_updated"
	OrderEventPaymentCheck  OrderEventType = "payment_check"
)

type OrderEvent struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	BuyerID     string          `json:"buyer_id"`
	SellerID    string          `json:"seller_id"`
	Type        OrderEventType  `json:"type"`
	Status      OrderStatus     `json:"status"`
	Total       decimal.Decimal `json:"total"`
	Occurred    time.Time       `json:"occurred"`
}

func NewOrderEvent(o Order, eventType OrderEventType, now time.Time) OrderEvent {
	return OrderEvent{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		BuyerID:     o.BuyerID,
		SellerID:    o.SellerID,
		Type:        eventType,
		Status:      o.Status,
		Total:       o.TotalAmount,
		Occurred:    now,
	}
}
