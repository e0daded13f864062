// Package kafka publishes change events to Apache Kafka.
package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Config holds the Kafka producer settings.
type Config struct {
	Brokers          []string
	OperationTimeout time.Duration
	MaxRetries       int
}

// Publisher writes events through a single kafka-go Writer. The writer
// routes each message by its Topic field.
type Publisher struct {
	w      writer
	cfg    Config
	log    logger.Logger
	dial   func(ctx context.Context, network, address string) (*kafkago.Conn, error)
	mu     sync.RWMutex
	closed bool
}

// NewPublisher creates a producer for cfg.Brokers. No connection is opened
// until the first publish or health check.
func NewPublisher(cfg Config, log logger.Logger) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker address is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		MaxAttempts:            cfg.MaxRetries,
		WriteTimeout:           cfg.OperationTimeout,
		ReadTimeout:            cfg.OperationTimeout,
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
	}
	log.Info("kafka publisher initialized", "brokers", cfg.Brokers)
	return newPublisher(w, cfg, log), nil
}

func newPublisher(w writer, cfg Config, log logger.Logger) *Publisher {
	return &Publisher{w: w, cfg: cfg, log: log, dial: kafkago.DialContext}
}

// Publish writes msg to topic, keyed by the storage key so that events for
// one collection stay ordered within a partition.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *events.Message) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is required")
	}
	headers := make([]kafkago.Header, 0, len(msg.Headers)+1)
	headers = append(headers, kafkago.Header{Key: "message_id", Value: []byte(msg.ID)})
	for k, v := range msg.Headers {
		headers = append(headers, kafkago.Header{Key: k, Value: []byte(v)})
	}
	err := p.w.WriteMessages(ctx, kafkago.Message{
		Topic:   topic,
		Key:     []byte(msg.Key),
		Value:   msg.Value,
		Headers: headers,
		Time:    msg.Timestamp,
	})
	if err != nil {
		return fmt.Errorf("kafka publish to %s: %w", topic, err)
	}
	p.log.Debug("event published", "topic", topic, "message_id", msg.ID)
	return nil
}

// HealthCheck dials the first broker and fetches its metadata.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	conn, err := p.dial(ctx, "tcp", p.cfg.Brokers[0])
	if err != nil {
		return fmt.Errorf("kafka health check: %w", err)
	}
	defer conn.Close()
	if _, err := conn.Brokers(); err != nil {
		return fmt.Errorf("kafka health check: %w", err)
	}
	return nil
}

// Close flushes and closes the writer. It is safe to call more than once.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	return p.w.Close()
}

func (p *Publisher) ensureOpen() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return events.ErrClosed
	}
	return nil
}
