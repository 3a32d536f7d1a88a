package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
	"harvest/config"
	"harvest/models"
	"harvest/services"
)

// Channel is the part of *amqp.Channel the consumer needs.
type Channel interface {
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// PaymentExpirer cancels an order whose payment window has passed.
type PaymentExpirer interface {
	ExpireOrder(ctx context.Context, orderID uuid.UUID) (bool, error)
}

type OrderConsumer struct {
	ch      Channel
	cfg     *config.Config
	expirer PaymentExpirer
}

func NewOrderConsumer(ch Channel, cfg *config.Config, expirer PaymentExpirer) *OrderConsumer {
	return &OrderConsumer{ch: ch, cfg: cfg, expirer: expirer}
}

// Run consumes the order queue and the dead letter queue until ctx is done or the channel closes.
func (c *OrderConsumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(
		c.cfg.OrderQueue,
		"harvest-orders", // consumer tag
		false,            // auto-ack
		false,            // exclusive
		false,            // no-local
		false,            // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.OrderQueue, err)
	}

	dlqMsgs, err := c.ch.Consume(
		c.cfg.DeadLetterQueue,
		"harvest-orders-dlq", // consumer tag
		false,                // auto-ack
		false,                // exclusive
		false,                // no-local
		false,                // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.cfg.DeadLetterQueue, err)
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		drain(ctx, msgs, c.ProcessOrderMessage)
	}()
	go func() {
		defer wg.Done()
		drain(ctx, dlqMsgs, c.ProcessDeadLetterMessage)
	}()
	wg.Wait()

	return nil
}

func drain(ctx context.Context, msgs <-chan amqp.Delivery, handle func(context.Context, amqp.Delivery)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				return
			}
			handle(ctx, msg)
		}
	}
}

// ProcessOrderMessage handles one order event. Malformed or failed messages go to the dead letter queue.
func (c *OrderConsumer) ProcessOrderMessage(ctx context.Context, msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", r).Error("recovered from panic in message processing")
			reject(msg)
		}
	}()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Body, &event); err != nil || event.OrderID == uuid.Nil {
		log.WithError(err).WithField("body", string(msg.Body)).Warn("invalid order message")
		reject(msg)
		return
	}

	logger := log.WithFields(log.Fields{
		"order_id": event.OrderID,
		"type":     event.Type,
	})

	switch event.Type {
	case models.OrderEventCreated, models.OrderEventStatusUpdated:
		logger.WithField("status", event.Status).Info("order event received")
	case models.OrderEventPaymentCheck:
		expired, err := c.expirer.ExpireOrder(ctx, event.OrderID)
		var notDue *services.PaymentNotDueError
		if errors.As(err, &notDue) {
			// the payment sweeper cancels it once the window closes
			logger.WithFields(log.Fields{
				"payment_due_at": notDue.DueAt,
				"remaining":      time.Until(notDue.DueAt).Round(time.Second).String(),
			}).Warn("payment check arrived before the payment window closed")
			break
		}
		if err != nil && !services.IsNotFound(err) {
			logger.WithError(err).Error("payment check failed")
			reject(msg)
			return
		}
		logger.WithField("expired", expired).Info("payment checked")
	default:
		logger.Warn("unknown order event type")
		reject(msg)
		return
	}

	if err := msg.Ack(false); err != nil {
		logger.WithError(err).Warn("ack failed")
	}
}

func (c *OrderConsumer) ProcessDeadLetterMessage(_ context.Context, msg amqp.Delivery) {
	log.WithFields(log.Fields{
		"body":        string(msg.Body),
		"message_id":  msg.MessageId,
		"redelivered": msg.Redelivered,
	}).Warn("received dead letter")

	if err := msg.Ack(false); err != nil {
		log.WithError(err).Warn("ack failed")
	}
}

func reject(msg amqp.Delivery) {
	if err := msg.Nack(false, false); err != nil {
		log.WithError(err).Warn("nack failed")
	}
}
