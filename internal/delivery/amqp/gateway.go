// Package amqp hands rendered deliveries to a RabbitMQ exchange for an
// external chat worker to send.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"devhelper/internal/domain"
)

type Config struct {
	URL        string
	Exchange   string
	RoutingKey string
	QueueName  string
}

type Gateway struct {
	mu         sync.Mutex
	conn       *amqp.Connection
	channel    *amqp.Channel
	exchange   string
	routingKey string
	logger     *slog.Logger
}

func New(cfg Config, logger *slog.Logger) (*Gateway, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, cfg); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	logger.Info("connected to rabbitmq",
		"exchange", cfg.Exchange,
		"queue", cfg.QueueName,
		"routing_key", cfg.RoutingKey,
	)

	return &Gateway{
		conn:       conn,
		channel:    ch,
		exchange:   cfg.Exchange,
		routingKey: cfg.RoutingKey,
		logger:     logger.With("gateway", "amqp"),
	}, nil
}

// declareTopology sets up a durable direct exchange with one durable queue
// bound to the delivery routing key. Declarations are idempotent.
func declareTopology(ch *amqp.Channel, cfg Config) error {
	const (
		durable    = true
		autoDelete = false
		internal   = false
		exclusive  = false
		noWait     = false
	)

	if err := ch.ExchangeDeclare(cfg.Exchange, amqp.ExchangeDirect, durable, autoDelete, internal, noWait, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}

	q, err := ch.QueueDeclare(cfg.QueueName, durable, autoDelete, exclusive, noWait, nil)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", cfg.QueueName, err)
	}

	if err := ch.QueueBind(q.Name, cfg.RoutingKey, cfg.Exchange, noWait, nil); err != nil {
		return fmt.Errorf("bind queue %s: %w", q.Name, err)
	}
	return nil
}

// DeliveryMessage is the JSON body published for each delivery.
type DeliveryMessage struct {
	ID          string             `json:"id"`
	Destination domain.Destination `json:"destination"`
	Payload     domain.Payload     `json:"payload"`
	Timestamp   time.Time          `json:"timestamp"`
}

// Resolve cannot see the chat platform from here, so any non-empty
// destination is treated as reachable.
func (g *Gateway) Resolve(_ context.Context, dest domain.Destination) error {
	if dest.IsZero() {
		return fmt.Errorf("%w: empty channel", domain.ErrDestinationUnreachable)
	}
	return nil
}

func (g *Gateway) Deliver(ctx context.Context, dest domain.Destination, payload domain.Payload) error {
	msg := DeliveryMessage{
		ID:          uuid.NewString(),
		Destination: dest,
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	const mandatory, immediate = false, false

	g.mu.Lock()
	err = g.channel.PublishWithContext(ctx, g.exchange, g.routingKey, mandatory, immediate,
		amqp.Publishing{
			MessageId:    msg.ID,
			DeliveryMode: amqp.Persistent,
			ContentType:  "application/json",
			Body:         body,
			Timestamp:    msg.Timestamp,
		},
	)
	g.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	g.logger.Debug("published delivery",
		"message_id", msg.ID,
		"channel_id", dest.ChannelID,
	)
	return nil
}

func (g *Gateway) Close() error {
	if g.channel != nil {
		g.channel.Close()
	}
	if g.conn != nil {
		return g.conn.Close()
	}
	return nil
}
