// Package factory builds the configured change-event publisher.
package factory

import (
	"context"
	"fmt"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/events/kafka"
	"github.com/nimburion/injurystore/pkg/events/rabbitmq"
	"github.com/nimburion/injurystore/pkg/events/sqs"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

// New returns the publisher selected by cfg.Type, or nil when events are disabled.
func New(ctx context.Context, cfg config.EventsConfig, log logger.Logger) (events.Publisher, error) {
	switch cfg.Type {
	case "", config.EventsTypeNone:
		return nil, nil
	case config.EventsTypeKafka:
		return kafka.NewPublisher(kafka.Config{
			Brokers:          cfg.Kafka.Brokers,
			OperationTimeout: cfg.PublishTimeout,
			MaxRetries:       cfg.Kafka.MaxRetries,
		}, log)
	case config.EventsTypeRabbitMQ:
		return rabbitmq.NewPublisher(rabbitmq.Config{
			URL:              cfg.RabbitMQ.URL,
			Exchange:         cfg.RabbitMQ.Exchange,
			ExchangeType:     cfg.RabbitMQ.ExchangeType,
			OperationTimeout: cfg.PublishTimeout,
		}, log)
	case config.EventsTypeSQS:
		return sqs.NewPublisher(ctx, sqs.Config{
			Region:           cfg.SQS.Region,
			QueueURL:         cfg.SQS.QueueURL,
			Endpoint:         cfg.SQS.Endpoint,
			AccessKeyID:      cfg.SQS.AccessKeyID,
			SecretAccessKey:  cfg.SQS.SecretAccessKey,
			SessionToken:     cfg.SQS.SessionToken,
			OperationTimeout: cfg.PublishTimeout,
		}, log)
	default:
		return nil, fmt.Errorf("unsupported events type: %q (supported: %v)", cfg.Type, config.EventsTypes)
	}
}
