package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store"
)

const (
	defaultKeyAttribute   = "pk"
	defaultValueAttribute = "value"
)

type dynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// Adapter keeps one item per key in a single DynamoDB table.
type Adapter struct {
	client    dynamoAPI
	logger    logger.Logger
	table     string
	keyAttr   string
	valueAttr string
	timeout   time.Duration
	mu        sync.RWMutex
	closed    bool
}

// Config holds DynamoDB adapter configuration.
type Config struct {
	Region           string
	Endpoint         string
	AccessKeyID      string
	SecretAccessKey  string
	SessionToken     string
	Table            string
	KeyAttribute     string
	ValueAttribute   string
	OperationTimeout time.Duration
}

// NewAdapter builds a DynamoDB client and checks that the table exists.
// The table is not created: it must have a string partition key named KeyAttribute.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		return nil, errors.New("aws region is required")
	}
	if strings.TrimSpace(cfg.Table) == "" {
		return nil, errors.New("dynamodb table is required")
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" || cfg.SecretAccessKey != "" {
		loadOptions = append(loadOptions, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}

	var opts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		opts = append(opts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	adapter := newAdapter(dynamodb.NewFromConfig(awsCfg, opts...), cfg, log)

	ctx, cancel := context.WithTimeout(context.Background(), adapter.timeout)
	defer cancel()
	if err := adapter.Ping(ctx); err != nil {
		return nil, err
	}

	log.Info("DynamoDB adapter initialized", "region", cfg.Region, "endpoint", cfg.Endpoint, "table", cfg.Table)
	return adapter, nil
}

func newAdapter(client dynamoAPI, cfg Config, log logger.Logger) *Adapter {
	a := &Adapter{
		client:    client,
		logger:    log,
		table:     cfg.Table,
		keyAttr:   cfg.KeyAttribute,
		valueAttr: cfg.ValueAttribute,
		timeout:   cfg.OperationTimeout,
	}
	if a.keyAttr == "" {
		a.keyAttr = defaultKeyAttribute
	}
	if a.valueAttr == "" {
		a.valueAttr = defaultValueAttribute
	}
	if a.timeout <= 0 {
		a.timeout = 5 * time.Second
	}
	return a
}

// Get reads the value attribute of the item stored under key.
func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	if err := a.ensureOpen(); err != nil {
		return "", err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	out, err := a.client.GetItem(opCtx, &dynamodb.GetItemInput{
		TableName:      aws.String(a.table),
		Key:            a.itemKey(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return "", fmt.Errorf("dynamodb get %s: %w", key, err)
	}
	if len(out.Item) == 0 {
		return "", store.ErrNotFound
	}
	attr, ok := out.Item[a.valueAttr].(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("dynamodb get %s: attribute %q is not a string", key, a.valueAttr)
	}
	return attr.Value, nil
}

// Set writes the whole item, replacing any previous value.
func (a *Adapter) Set(ctx context.Context, key, value string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	_, err := a.client.PutItem(opCtx, &dynamodb.PutItemInput{
		TableName: aws.String(a.table),
		Item: map[string]types.AttributeValue{
			a.keyAttr:   &types.AttributeValueMemberS{Value: key},
			a.valueAttr: &types.AttributeValueMemberS{Value: value},
		},
	})
	if err != nil {
		return fmt.Errorf("dynamodb put %s: %w", key, err)
	}
	return nil
}

// Remove deletes the item. DynamoDB treats deleting a missing item as success.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	if _, err := a.client.DeleteItem(opCtx, &dynamodb.DeleteItemInput{
		TableName: aws.String(a.table),
		Key:       a.itemKey(key),
	}); err != nil {
		return fmt.Errorf("dynamodb delete %s: %w", key, err)
	}
	return nil
}

// Ping describes the configured table.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()
	if _, err := a.client.DescribeTable(opCtx, &dynamodb.DescribeTableInput{TableName: aws.String(a.table)}); err != nil {
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	return nil
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.Ping(hcCtx); err != nil {
		a.logger.Error("DynamoDB health check failed", "error", err)
		return fmt.Errorf("dynamodb health check failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

// IsThrottlingError reports whether err is a DynamoDB capacity or rate error.
func IsThrottlingError(err error) bool {
	if err == nil {
		return false
	}
	var throughput *types.ProvisionedThroughputExceededException
	if errors.As(err, &throughput) {
		return true
	}
	var limit *types.RequestLimitExceeded
	return errors.As(err, &limit)
}

func (a *Adapter) itemKey(key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{a.keyAttr: &types.AttributeValueMemberS{Value: key}}
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return store.ErrClosed
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return ctx, func() {}
	}
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
