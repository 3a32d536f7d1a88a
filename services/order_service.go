package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"harvest/metrics"
	"harvest/models"
	"harvest/repository"
)

// PaymentExpiredReason is stored on orders cancelled for not being paid in time.
const PaymentExpiredReason = "payment window expired"

const refundEstimatedDays = 7

var errPaymentNotExpired = errors.New("payment not expired")

type OrderService struct {
	orders repository.OrderRepository
	events EventPublisher
	now    func() time.Time
}

func NewOrderService(orders repository.OrderRepository, events EventPublisher) *OrderService {
	return &OrderService{
		orders: orders,
		events: events,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

type TimelineEntry struct {
	Status    string
	Timestamp time.Time
}

type OrderDetail struct {
	Order    models.Order
	Timeline []TimelineEntry
}

// GetOrder returns an order visible to the user as its buyer or its seller.
func (s *OrderService) GetOrder(ctx context.Context, userID string, orderID uuid.UUID) (OrderDetail, error) {
	order, err := s.orders.GetOrder(ctx, orderID, models.OrderScope{PartyID: userID})
	if err != nil {
		return OrderDetail{}, fmt.Errorf("s.orders.GetOrder: %w", err)
	}

	return OrderDetail{Order: order, Timeline: timeline(order)}, nil
}

func (s *OrderService) GetSellerOrder(ctx context.Context, sellerID string, orderID uuid.UUID) (models.Order, error) {
	order, err := s.orders.GetOrder(ctx, orderID, models.OrderScope{SellerID: sellerID})
	if err != nil {
		return models.Order{}, fmt.Errorf("s.orders.GetOrder: %w", err)
	}

	return order, nil
}

func timeline(o models.Order) []TimelineEntry {
	entries := []TimelineEntry{{Status: string(models.OrderStatusPendingPayment), Timestamp: o.CreatedAt}}
	if o.PaidAt != nil {
		entries = append(entries, TimelineEntry{Status: string(models.PaymentStatusPaid), Timestamp: *o.PaidAt})
	}
	if o.CancelledAt != nil {
		entries = append(entries, TimelineEntry{Status: string(models.OrderStatusCancelled), Timestamp: *o.CancelledAt})
	}
	return entries
}

type OrderPage struct {
	Orders     []models.Order
	Page       int
	Limit      int
	TotalItems int
	TotalPages int
}

func (s *OrderService) ListOrders(ctx context.Context, filter models.OrderFilter) (OrderPage, error) {
	if err := filter.Validate(); err != nil {
		return OrderPage{}, &ValidationError{Message: err.Error()}
	}

	orders, total, err := s.orders.SearchOrders(ctx, filter)
	if err != nil {
		return OrderPage{}, fmt.Errorf("s.orders.SearchOrders: %w", err)
	}

	return OrderPage{
		Orders:     orders,
		Page:       filter.Page,
		Limit:      filter.Limit,
		TotalItems: total,
		TotalPages: filter.TotalPages(total),
	}, nil
}

type SellerStats struct {
	TotalOrders  int
	ByStatus     map[models.OrderStatus]int
	TotalRevenue decimal.Decimal
}

// SellerOrders lists the seller's orders with counts per status and the revenue of non-cancelled orders.
func (s *OrderService) SellerOrders(ctx context.Context, sellerID string, status *models.OrderStatus, page, limit int) (OrderPage, SellerStats, error) {
	result, err := s.ListOrders(ctx, models.OrderFilter{
		UserID: sellerID,
		Role:   models.OrderRoleSeller,
		Status: status,
		Page:   page,
		Limit:  limit,
	})
	if err != nil {
		return OrderPage{}, SellerStats{}, err
	}

	stats, err := s.orders.StatusStats(ctx, sellerID)
	if err != nil {
		return OrderPage{}, SellerStats{}, fmt.Errorf("s.orders.StatusStats: %w", err)
	}

	sellerStats := SellerStats{
		TotalOrders:  result.TotalItems,
		ByStatus:     make(map[models.OrderStatus]int),
		TotalRevenue: decimal.Zero,
	}
	for _, status := range models.OrderStatuses() {
		sellerStats.ByStatus[status] = 0
	}
	for _, stat := range stats {
		sellerStats.ByStatus[stat.Status] = stat.Count
		if stat.Status != models.OrderStatusCancelled {
			sellerStats.TotalRevenue = sellerStats.TotalRevenue.Add(stat.Amount)
		}
	}

	return result, sellerStats, nil
}

type SellerOrderUpdate struct {
	Status           *string
	TrackingNumber   Optional[string]
	EstimatedArrival Optional[time.Time]
	CancelledReason  *string
}

// UpdateSellerOrder applies a seller's status change and delivery details in one locked update.
// An illegal transition returns *models.TransitionError and leaves the order unchanged.
func (s *OrderService) UpdateSellerOrder(ctx context.Context, sellerID string, orderID uuid.UUID, req SellerOrderUpdate) (models.Order, error) {
	var next *models.OrderStatus
	if req.Status != nil && *req.Status != "" {
		status, err := models.ToOrderStatus(*req.Status)
		if err != nil {
			return models.Order{}, &ValidationError{Message: err.Error()}
		}
		next = &status
	}

	var previous models.OrderStatus
	order, err := s.orders.UpdateOrder(ctx, orderID, models.OrderScope{SellerID: sellerID}, func(o *models.Order) error {
		now := s.now()
		previous = o.Status

		if next != nil {
			reason := ""
			if req.CancelledReason != nil {
				reason = strings.TrimSpace(*req.CancelledReason)
			}
			if err := o.TransitionTo(*next, now, reason); err != nil {
				return err
			}
		}

		if req.TrackingNumber.Set {
			o.TrackingNumber = req.TrackingNumber.Value
		}
		if req.EstimatedArrival.Set {
			o.EstimatedArrival = req.EstimatedArrival.Value
		}

		o.UpdatedAt = now
		return nil
	})
	if err != nil {
		return models.Order{}, fmt.Errorf("s.orders.UpdateOrder: %w", err)
	}

	if order.Status != previous {
		s.statusChanged(ctx, order, previous)
	}

	return order, nil
}

type Refund struct {
	Amount        decimal.Decimal
	Method        string
	EstimatedDays int
}

type CancelResult struct {
	Order  models.Order
	Refund *Refund
}

// CancelOrder cancels an order on behalf of its buyer or seller. Paid orders report the refund due.
func (s *OrderService) CancelOrder(ctx context.Context, userID string, orderID uuid.UUID, reason, details string) (CancelResult, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return CancelResult{}, validationErrorf("reason is required")
	}
	if details = strings.TrimSpace(details); details != "" {
		reason += ": " + details
	}

	var previous models.OrderStatus
	order, err := s.orders.UpdateOrder(ctx, orderID, models.OrderScope{PartyID: userID}, func(o *models.Order) error {
		previous = o.Status
		return o.TransitionTo(models.OrderStatusCancelled, s.now(), reason)
	})
	if err != nil {
		return CancelResult{}, fmt.Errorf("s.orders.UpdateOrder: %w", err)
	}

	s.statusChanged(ctx, order, previous)

	result := CancelResult{Order: order}
	if order.PaidAt != nil {
		result.Refund = &Refund{
			Amount:        order.TotalAmount,
			Method:        order.PaymentMethod,
			EstimatedDays: refundEstimatedDays,
		}
	}

	return result, nil
}

// ExpireOrder cancels the order when its payment window has passed.
// It reports false without error when the order is paid or has moved on.
// An unpaid order still inside its window yields a *PaymentNotDueError.
func (s *OrderService) ExpireOrder(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var previous models.OrderStatus
	order, err := s.orders.UpdateOrder(ctx, orderID, models.OrderScope{}, func(o *models.Order) error {
		now := s.now()
		if !o.PaymentExpired(now) {
			if o.Status.AwaitingPayment() && o.PaymentStatus == models.PaymentStatusPending && !o.PaymentDueAt.IsZero() {
				return &PaymentNotDueError{DueAt: o.PaymentDueAt}
			}
			return errPaymentNotExpired
		}
		previous = o.Status
		return o.TransitionTo(models.OrderStatusCancelled, now, PaymentExpiredReason)
	})
	if errors.Is(err, errPaymentNotExpired) {
		return false, nil
	}
	if notDue := (*PaymentNotDueError)(nil); errors.As(err, &notDue) {
		return false, notDue
	}
	if err != nil {
		return false, fmt.Errorf("s.orders.UpdateOrder: %w", err)
	}

	s.statusChanged(ctx, order, previous)
	return true, nil
}

// ExpireStaleOrders cancels up to limit orders whose payment window has passed.
func (s *OrderService) ExpireStaleOrders(ctx context.Context, limit int) (int, error) {
	ids, err := s.orders.ListPaymentExpired(ctx, s.now(), limit)
	if err != nil {
		return 0, fmt.Errorf("s.orders.ListPaymentExpired: %w", err)
	}

	expired := 0
	for _, id := range ids {
		ok, err := s.ExpireOrder(ctx, id)
		if notDue := (*PaymentNotDueError)(nil); errors.As(err, &notDue) {
			continue
		}
		if err != nil {
			return expired, fmt.Errorf("s.ExpireOrder[%s]: %w", id, err)
		}
		if ok {
			expired++
		}
	}

	return expired, nil
}

func (s *OrderService) statusChanged(ctx context.Context, o models.Order, previous models.OrderStatus) {
	log.WithFields(log.Fields{
		"order_id":  o.ID,
		"buyer_id":  o.BuyerID,
		"seller_id": o.SellerID,
		"from":      previous,
		"to":        o.Status,
	}).Info("order status changed")

	metrics.RecordOrderTransition(previous, o.Status)
	publish(ctx, s.events, models.NewOrderEvent(o, models.OrderEventStatusUpdated, o.UpdatedAt), statusEventPriority(o))
}
