package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"harvest/models"
)

// EventPublisher sends order events to the message broker. A nil publisher disables events.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error
	PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error
}

const (
	defaultEventPriority   uint8 = 5
	cancelledEventPriority uint8 = 8
	largeOrderPriority     uint8 = 9
)

var largeOrderAmount = decimal.NewFromInt(1_000_000)

func createdEventPriority(o models.Order) uint8 {
	if o.TotalAmount.GreaterThanOrEqual(largeOrderAmount) {
		return largeOrderPriority
	}
	return defaultEventPriority
}

func statusEventPriority(o models.Order) uint8 {
	if o.Status == models.OrderStatusCancelled {
		return cancelledEventPriority
	}
	return defaultEventPriority
}

// publish logs failures; events never fail the request that produced them.
func publish(ctx context.Context, events EventPublisher, event models.OrderEvent, priority uint8) {
	if events == nil {
		return
	}

	if err := events.PublishOrderEvent(ctx, event, priority); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"order_id": event.OrderID,
			"type":     event.Type,
		}).Warn("failed to publish order event")
	}
}

func publishDelayed(ctx context.Context, events EventPublisher, event models.OrderEvent, delay time.Duration) {
	if events == nil {
		return
	}

	if err := events.PublishDelayedEvent(ctx, event, delay); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"order_id": event.OrderID,
			"type":     event.Type,
		}).Warn("failed to publish delayed order event")
	}
}
