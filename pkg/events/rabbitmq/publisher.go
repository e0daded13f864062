// Package rabbitmq publishes change events to a RabbitMQ exchange.
package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	IsClosed() bool
	Close() error
}

type connection interface {
	IsClosed() bool
	Close() error
}

// Config holds the RabbitMQ connection settings. The topic passed to
// Publish is used as the routing key.
type Config struct {
	URL              string
	Exchange         string
	ExchangeType     string
	OperationTimeout time.Duration
}

// Publisher publishes persistent messages on one channel.
type Publisher struct {
	conn   connection
	ch     channel
	cfg    Config
	log    logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewPublisher dials cfg.URL and declares a durable exchange.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("rabbitmq URL is required")
	}
	if cfg.Exchange == "" {
		cfg.Exchange = "injurystore.events"
	}
	if cfg.ExchangeType == "" {
		cfg.ExchangeType = amqp.ExchangeTopic
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(cfg.Exchange, cfg.ExchangeType, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", cfg.Exchange, err)
	}
	log.Info("rabbitmq publisher initialized", "exchange", cfg.Exchange, "exchange_type", cfg.ExchangeType)
	return newPublisher(conn, ch, cfg, log), nil
}

func newPublisher(conn connection, ch channel, cfg Config, log logger.Logger) *Publisher {
	return &Publisher{conn: conn, ch: ch, cfg: cfg, log: log}
}

// Publish sends msg to the exchange with topic as routing key.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *events.Message) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is required")
	}
	ctx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()

	err := p.ch.PublishWithContext(ctx, p.cfg.Exchange, topic, false, false, amqp.Publishing{
		MessageId:    msg.ID,
		ContentType:  msg.ContentType,
		DeliveryMode: amqp.Persistent,
		Timestamp:    msg.Timestamp,
		Headers:      toTable(msg.Headers),
		Body:         msg.Value,
	})
	if err != nil {
		return fmt.Errorf("rabbitmq publish to %s: %w", topic, err)
	}
	p.log.Debug("event published", "exchange", p.cfg.Exchange, "routing_key", topic, "message_id", msg.ID)
	return nil
}

// HealthCheck reports whether the connection and channel are still open.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.conn.IsClosed() {
		return errors.New("rabbitmq connection is closed")
	}
	if p.ch.IsClosed() {
		return errors.New("rabbitmq channel is closed")
	}
	return nil
}

// Close closes the channel and then the connection.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return errors.Join(p.ch.Close(), p.conn.Close())
}

func (p *Publisher) ensureOpen() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return events.ErrClosed
	}
	return nil
}

func toTable(headers map[string]string) amqp.Table {
	if len(headers) == 0 {
		return nil
	}
	t := make(amqp.Table, len(headers))
	for k, v := range headers {
		t[k] = v
	}
	return t
}
