package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// CatalogRoutingKey matches every catalog event.
const CatalogRoutingKey = "catalog.*"

// ErrMalformedEvent is returned by DecodeEvent when a body is not an Event.
var ErrMalformedEvent = errors.New("malformed event")

// Handler processes one event. A non-nil error requeues the delivery.
type Handler func(ctx context.Context, event Event) error

// Consumer reads events from a queue bound to the bookstore exchange.
type Consumer struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	queue   string
	log     *zap.Logger
}

// NewConsumer connects and binds queue to routingKeys. An empty queue name
// declares a server-named exclusive queue that disappears with the
// connection.
func NewConsumer(url, queue string, routingKeys []string, log *zap.Logger) (*Consumer, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(
		exchangeName,
		exchangeType,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	temporary := queue == ""
	q, err := ch.QueueDeclare(
		queue,
		!temporary, // durable
		temporary,  // delete when unused
		temporary,  // exclusive
		false,      // no-wait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	for _, key := range routingKeys {
		if err := ch.QueueBind(q.Name, key, exchangeName, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("failed to bind queue to %s: %w", key, err)
		}
		log.Info("Listening for events", zap.String("queue", q.Name), zap.String("routing_key", key))
	}

	return &Consumer{
		conn:    conn,
		channel: ch,
		queue:   q.Name,
		log:     log,
	}, nil
}

// Start delivers events to handle until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context, handle Handler) error {
	msgs, err := c.channel.Consume(
		c.queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			handleDelivery(ctx, msg, handle, c.log)
		}
	}
}

// DecodeEvent parses a delivery body.
func DecodeEvent(body []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if event.EventType == "" {
		return Event{}, fmt.Errorf("%w: missing event_type", ErrMalformedEvent)
	}
	return event, nil
}

// handleDelivery acks handled events, drops malformed ones and requeues
// events whose handler failed.
func handleDelivery(ctx context.Context, msg amqp.Delivery, handle Handler, log *zap.Logger) {
	event, err := DecodeEvent(msg.Body)
	if err != nil {
		log.Warn("Dropping malformed event", zap.String("routing_key", msg.RoutingKey), zap.Error(err))
		msg.Nack(false, false)
		return
	}

	if err := handle(ctx, event); err != nil {
		log.Error("Failed to handle event",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType),
			zap.Error(err),
		)
		msg.Nack(false, true)
		return
	}

	msg.Ack(false)
}

// Close closes the channel and connection.
func (c *Consumer) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
