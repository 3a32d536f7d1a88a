package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	log "github.com/sirupsen/logrus"
	"harvest/config"
	"harvest/models"
)

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	mu sync.Mutex // serializes publishes on Channel
}

func NewRabbitMQ(cfg *config.Config) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, fmt.Errorf("amqp.Dial: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("conn.Channel: %w", err)
	}

	return &RabbitMQ{
		Conn:    conn,
		Channel: ch,
		Cfg:     cfg,
	}, nil
}

func (r *RabbitMQ) deadLetterExchange() string {
	return r.Cfg.DeadLetterQueue + "_exchange"
}

// SetupQueues declares the order exchange and queue, the dead letter queue and the delay exchange.
// The delay exchange needs the delayed message plugin; without it only the sweeper expires orders.
func (r *RabbitMQ) SetupQueues() error {
	if err := r.Channel.ExchangeDeclare(
		r.deadLetterExchange(),
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare dead letter exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{"x-queue-type": "classic"},
	); err != nil {
		return fmt.Errorf("declare dead letter queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.DeadLetterQueue, r.Cfg.DeadLetterQueue, r.deadLetterExchange(), false, nil); err != nil {
		return fmt.Errorf("bind dead letter queue: %w", err)
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.OrderExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare order exchange: %w", err)
	}

	if _, err := r.Channel.QueueDeclare(
		r.Cfg.OrderQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.deadLetterExchange(),
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	); err != nil {
		return fmt.Errorf("declare order queue: %w", err)
	}

	if err := r.Channel.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.OrderExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue: %w", err)
	}

	// a failed declare closes the channel, so the delay exchange goes on its own channel
	delayCh, err := r.Conn.Channel()
	if err != nil {
		return fmt.Errorf("conn.Channel: %w", err)
	}
	defer delayCh.Close()

	if err := delayCh.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		log.WithError(err).Warn("delayed exchange not supported, payment checks rely on the sweeper")
		return nil
	}

	if err := delayCh.QueueBind(r.Cfg.OrderQueue, "", r.Cfg.DelayExchange, false, nil); err != nil {
		return fmt.Errorf("bind order queue to delay exchange: %w", err)
	}

	return nil
}

// PublishOrderEvent sends the event to the order exchange with the given priority.
func (r *RabbitMQ) PublishOrderEvent(ctx context.Context, event models.OrderEvent, priority uint8) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	msg.Priority = min(priority, uint8(r.Cfg.MaxPriority))

	return r.publish(ctx, r.Cfg.OrderExchange, msg)
}

// PublishDelayedEvent sends the event through the delay exchange; it reaches the order queue after delay.
func (r *RabbitMQ) PublishDelayedEvent(ctx context.Context, event models.OrderEvent, delay time.Duration) error {
	msg, err := newPublishing(event)
	if err != nil {
		return err
	}
	msg.Headers = amqp.Table{"x-delay": delay.Milliseconds()}

	return r.publish(ctx, r.Cfg.DelayExchange, msg)
}

func (r *RabbitMQ) publish(ctx context.Context, exchange string, msg amqp.Publishing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.Channel.PublishWithContext(ctx, exchange, "", false, false, msg); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}
	return nil
}

func newPublishing(event models.OrderEvent) (amqp.Publishing, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("json.Marshal: %w", err)
	}

	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.Occurred,
		ContentType:  "application/json",
		Type:         string(event.Type),
		MessageId:    event.OrderID.String() + ":" + string(event.Type),
		Body:         body,
	}, nil
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		if err := r.Channel.Close(); err != nil {
			log.WithError(err).Debug("close channel")
		}
	}
	if r.Conn != nil {
		if err := r.Conn.Close(); err != nil {
			log.WithError(err).Debug("close connection")
		}
	}
}
