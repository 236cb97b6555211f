package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	amqp "github.com/streadway/amqp"
)

// OrderBindingKey binds the consumer queue to every order event.
const OrderBindingKey = "order.#"

// ErrClosed is returned when publishing on a closed client.
var ErrClosed = errors.New("rabbitmq client is closed")

// channel is the subset of *amqp.Channel the client uses.
type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	Close() error
}

// Client holds the RabbitMQ connection and channel.
type Client struct {
	conn    *amqp.Connection
	channel channel
	cfg     Config
	logger  zerolog.Logger
	// mu guards channel, which amqp does not allow to be shared between
	// concurrent publishers.
	mu     sync.Mutex
	closed bool
}

// Config holds RabbitMQ connection details.
type Config struct {
	URL      string
	Exchange string
	Queue    string
}

// NewClient connects to RabbitMQ, declares the durable topic exchange and
// binds the order event queue to it.
func NewClient(cfg Config, logger zerolog.Logger) (*Client, error) {
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	c, err := newClient(ch, cfg, logger)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}
	c.conn = conn
	return c, nil
}

func newClient(ch channel, cfg Config, logger zerolog.Logger) (*Client, error) {
	if err := declareTopology(ch, cfg); err != nil {
		return nil, err
	}
	logger = logger.With().Str("component", "rabbitmq").Logger()
	logger.Info().
		Str("exchange", cfg.Exchange).
		Str("queue", cfg.Queue).
		Msg("RabbitMQ client connected")

	return &Client{channel: ch, cfg: cfg, logger: logger}, nil
}

func declareTopology(ch channel, cfg Config) error {
	if cfg.Exchange == "" {
		return errors.New("exchange name is required")
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeTopic,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", cfg.Exchange, err)
	}

	if cfg.Queue == "" {
		return nil
	}
	if _, err := ch.QueueDeclare(
		cfg.Queue,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", cfg.Queue, err)
	}
	if err := ch.QueueBind(cfg.Queue, OrderBindingKey, cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", cfg.Queue, err)
	}
	return nil
}

// Close closes the RabbitMQ connection and channel.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true

	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close connection: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Publish sends a persistent JSON message to exchange under routingKey. An
// empty exchange selects the configured one.
func (c *Client) Publish(exchange, routingKey string, body []byte) error {
	if exchange == "" {
		exchange = c.cfg.Exchange
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	err := c.channel.Publish(
		exchange,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		})
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	c.logger.Debug().Str("exchange", exchange).Str("routing_key", routingKey).Int("bytes", len(body)).Msg("message published")
	return nil
}

// Handler processes one delivery. A returned error negatively acknowledges the
// message without requeueing it.
type Handler func(ctx context.Context, msg amqp.Delivery) error

// ConsumeOrderEvents delivers messages from the configured queue to handler
// until ctx is cancelled or the channel closes. It returns once the consumer
// is registered; deliveries are processed on a separate goroutine.
func (c *Client) ConsumeOrderEvents(ctx context.Context, handler Handler) error {
	if c.cfg.Queue == "" {
		return errors.New("no queue configured for consuming")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	msgs, err := c.channel.Consume(
		c.cfg.Queue,
		"",    // consumer tag
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	c.logger.Info().Str("queue", c.cfg.Queue).Msg("waiting for order events")
	go c.consume(ctx, msgs, handler)
	return nil
}

func (c *Client) consume(ctx context.Context, msgs <-chan amqp.Delivery, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info().Msg("order event stream closed")
				return
			}
			c.handle(ctx, msg, handler)
		}
	}
}

func (c *Client) handle(ctx context.Context, msg amqp.Delivery, handler Handler) {
	log := c.logger.With().Uint64("delivery_tag", msg.DeliveryTag).Str("routing_key", msg.RoutingKey).Logger()

	if err := handler(ctx, msg); err != nil {
		log.Error().Err(err).Msg("failed to process message")
		// Unprocessable events go to the dead-letter exchange, if any, instead
		// of looping.
		if nackErr := msg.Nack(false, false); nackErr != nil {
			log.Error().Err(nackErr).Msg("failed to nack message")
		}
		return
	}
	if ackErr := msg.Ack(false); ackErr != nil {
		log.Error().Err(ackErr).Msg("failed to ack message")
	}
}

// LogOrderEvent returns a handler that records each order event in logger.
func LogOrderEvent(logger zerolog.Logger) Handler {
	return func(_ context.Context, msg amqp.Delivery) error {
		if !json.Valid(msg.Body) {
			return errors.New("malformed order event")
		}
		logger.Info().
			Str("routing_key", msg.RoutingKey).
			RawJSON("event", msg.Body).
			Msg("order event received")
		return nil
	}
}
