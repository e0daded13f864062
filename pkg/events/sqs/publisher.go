// Package sqs publishes change events to an Amazon SQS queue.
package sqs

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

type client interface {
	SendMessage(ctx context.Context, in *awssqs.SendMessageInput, optFns ...func(*awssqs.Options)) (*awssqs.SendMessageOutput, error)
	GetQueueAttributes(ctx context.Context, in *awssqs.GetQueueAttributesInput, optFns ...func(*awssqs.Options)) (*awssqs.GetQueueAttributesOutput, error)
}

// Config holds the SQS settings. The topic passed to Publish is ignored when
// it is not a queue URL; QueueURL is used instead.
type Config struct {
	Region           string
	QueueURL         string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	OperationTimeout time.Duration
}

// Publisher sends one SQS message per event.
type Publisher struct {
	client client
	cfg    Config
	log    logger.Logger
	mu     sync.RWMutex
	closed bool
}

// NewPublisher loads the AWS configuration and verifies the queue is reachable.
func NewPublisher(ctx context.Context, cfg Config, log logger.Logger) (*Publisher, error) {
	if cfg.Region == "" {
		return nil, errors.New("aws region is required")
	}
	if cfg.QueueURL == "" {
		return nil, errors.New("sqs queue URL is required")
	}
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = 10 * time.Second
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	var opts []func(*awssqs.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *awssqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	p := newPublisher(awssqs.NewFromConfig(awsCfg, opts...), cfg, log)
	if err := p.HealthCheck(ctx); err != nil {
		return nil, err
	}
	log.Info("sqs publisher initialized", "queue_url", cfg.QueueURL, "region", cfg.Region)
	return p, nil
}

func newPublisher(c client, cfg Config, log logger.Logger) *Publisher {
	return &Publisher{client: c, cfg: cfg, log: log}
}

// Publish sends msg to the configured queue. Non-JSON payloads are base64
// encoded because SQS bodies must be valid text.
func (p *Publisher) Publish(ctx context.Context, topic string, msg *events.Message) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	if msg == nil {
		return errors.New("message is required")
	}
	body := string(msg.Value)
	attrs := attributes(msg)
	if msg.ContentType != events.ContentTypeJSON {
		body = base64.StdEncoding.EncodeToString(msg.Value)
		attrs["content_transfer_encoding"] = stringAttribute("base64")
	}
	if topic != "" {
		attrs["topic"] = stringAttribute(topic)
	}

	ctx, cancel := context.WithTimeout(ctx, p.cfg.OperationTimeout)
	defer cancel()
	_, err := p.client.SendMessage(ctx, &awssqs.SendMessageInput{
		QueueUrl:          aws.String(p.cfg.QueueURL),
		MessageBody:       aws.String(body),
		MessageAttributes: attrs,
	})
	if err != nil {
		return fmt.Errorf("sqs publish: %w", err)
	}
	p.log.Debug("event published", "queue_url", p.cfg.QueueURL, "message_id", msg.ID)
	return nil
}

// HealthCheck reads the queue ARN.
func (p *Publisher) HealthCheck(ctx context.Context) error {
	if err := p.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := p.client.GetQueueAttributes(ctx, &awssqs.GetQueueAttributesInput{
		QueueUrl:       aws.String(p.cfg.QueueURL),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return fmt.Errorf("sqs health check: %w", err)
	}
	return nil
}

// Close marks the publisher closed. The SDK client holds no connections of its own.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *Publisher) ensureOpen() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return events.ErrClosed
	}
	return nil
}

func attributes(msg *events.Message) map[string]types.MessageAttributeValue {
	attrs := make(map[string]types.MessageAttributeValue, len(msg.Headers)+3)
	for k, v := range msg.Headers {
		if v == "" {
			continue
		}
		attrs[k] = stringAttribute(v)
	}
	attrs["message_id"] = stringAttribute(msg.ID)
	return attrs
}

func stringAttribute(v string) types.MessageAttributeValue {
	return types.MessageAttributeValue{DataType: aws.String("String"), StringValue: aws.String(v)}
}
