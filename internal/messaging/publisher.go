package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/joseph-ayodele/cryotrace/internal/entity"
)

const publishTimeout = 3 * time.Second

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Dial connects to RabbitMQ.
func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to RabbitMQ: %w", err)
	}
	return conn, nil
}

func declareExchange(ch *amqp.Channel, exchange string) error {
	return ch.ExchangeDeclare(
		exchange,
		"topic",
		true,  // durable
		false, // autoDelete
		false, // internal
		false, // noWait
		nil,
	)
}

type Publisher struct {
	ch       Channel
	exchange string
	logger   *slog.Logger
}

// NewPublisher opens a channel on conn and declares the events exchange.
func NewPublisher(conn *amqp.Connection, exchange string, logger *slog.Logger) (*Publisher, error) {
	if exchange == "" {
		exchange = DefaultExchange
	}
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := declareExchange(ch, exchange); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	return NewPublisherWithChannel(ch, exchange, logger), nil
}

func NewPublisherWithChannel(ch Channel, exchange string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{ch: ch, exchange: exchange, logger: logger}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

// PublishEventRecorded announces ev on shipment.event.recorded.v1.
func (p *Publisher) PublishEventRecorded(ctx context.Context, ev *entity.WeightEvent, correlationID string) error {
	env := NewEventRecorded(ev, correlationID)
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", env.EventName, err)
	}
	if err := p.publishJSON(ctx, EventRecordedRoutingKey, env.EventID, body); err != nil {
		p.logger.Error("messaging.publish.failed", "routing_key", EventRecordedRoutingKey, "manifest_id", ev.ManifestID, "error", err)
		return err
	}
	p.logger.Info("messaging.publish.ok", "routing_key", EventRecordedRoutingKey, "event_id", env.EventID, "manifest_id", ev.ManifestID)
	return nil
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey, messageID string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    messageID,
			Timestamp:    time.Now().UTC(),
			Body:         body,
		},
	)
}
