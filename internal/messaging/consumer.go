package messaging

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"
)

// EventRecordedHandler reacts to a decoded ShipmentEventRecorded payload.
type EventRecordedHandler func(ctx context.Context, ev EventRecorded) error

type Consumer struct {
	conn     *amqp.Connection
	exchange string
	queue    string
	handler  EventRecordedHandler
	logger   *slog.Logger
}

func NewConsumer(conn *amqp.Connection, exchange, queue string, handler EventRecordedHandler, logger *slog.Logger) *Consumer {
	if exchange == "" {
		exchange = DefaultExchange
	}
	if queue == "" {
		queue = producerName + "." + EventRecordedRoutingKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{conn: conn, exchange: exchange, queue: queue, handler: handler, logger: logger}
}

// Start declares the queue, binds it to the exchange and consumes in a
// goroutine until ctx is done or the channel closes.
func (c *Consumer) Start(ctx context.Context) error {
	ch, err := c.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, c.exchange); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(
		c.queue,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(c.queue, EventRecordedRoutingKey, c.exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}

	msgs, err := ch.Consume(
		c.queue,
		producerName, // consumer tag
		false,        // autoAck
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}

	go func() {
		defer func() { _ = ch.Close() }()
		for {
			select {
			case <-ctx.Done():
				c.logger.Info("messaging.consumer.stopped", "queue", c.queue)
				return
			case msg, ok := <-msgs:
				if !ok {
					c.logger.Warn("messaging.consumer.channel_closed", "queue", c.queue)
					return
				}
				if err := c.HandleDelivery(ctx, msg.Body); err != nil {
					c.logger.Error("messaging.consumer.handle_failed", "message_id", msg.MessageId, "error", err)
					_ = msg.Nack(false, false)
					continue
				}
				_ = msg.Ack(false)
			}
		}
	}()
	return nil
}

// HandleDelivery decodes and validates one message body and runs the handler.
func (c *Consumer) HandleDelivery(ctx context.Context, body []byte) error {
	var ev EventRecorded
	if err := json.Unmarshal(body, &ev); err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := ev.Validate(eventRecordedName, eventRecordedVersion); err != nil {
		return err
	}
	return c.handler(ctx, ev)
}
