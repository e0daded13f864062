// Package factory builds the configured key-value backend.
package factory

import (
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/resilience"
	"github.com/nimburion/injurystore/pkg/store"
	"github.com/nimburion/injurystore/pkg/store/dynamodb"
	"github.com/nimburion/injurystore/pkg/store/memcached"
	"github.com/nimburion/injurystore/pkg/store/mongodb"
	"github.com/nimburion/injurystore/pkg/store/redis"
	"github.com/nimburion/injurystore/pkg/store/s3"
	"github.com/nimburion/injurystore/pkg/store/search"
	"github.com/nimburion/injurystore/pkg/store/sqldb"
)

type builder func(cfg config.StorageConfig, log logger.Logger) (store.Store, error)

var builders = map[string]builder{
	config.StorageTypeMemory:    newMemory,
	config.StorageTypeRedis:     newRedis,
	config.StorageTypeMemcached: newMemcached,
	config.StorageTypeDynamoDB:  newDynamoDB,
	config.StorageTypeMongoDB:   newMongoDB,
	config.StorageTypeS3:        newS3,
	config.StorageTypeSQLite:    newSQL(sqldb.DialectSQLite),
	config.StorageTypePostgres:  newSQL(sqldb.DialectPostgres),
	config.StorageTypeMySQL:     newSQL(sqldb.DialectMySQL),

	config.StorageTypeOpenSearch:    newSearch(search.EngineOpenSearch),
	config.StorageTypeElasticsearch: newSearch(search.EngineElasticsearch),
}

type options struct {
	metrics        bool
	tracing        bool
	tracerProvider trace.TracerProvider
	onBreaker      func(*resilience.CircuitBreaker)
}

// Option customizes decorator wiring.
type Option func(*options)

// WithMetrics toggles the Prometheus decorator. Enabled by default.
func WithMetrics(enabled bool) Option {
	return func(o *options) { o.metrics = enabled }
}

// WithTracing enables the OpenTelemetry decorator using provider; nil means the global provider.
func WithTracing(provider trace.TracerProvider) Option {
	return func(o *options) {
		o.tracing = true
		o.tracerProvider = provider
	}
}

// OnCircuitBreaker receives the breaker created when storage.circuit_breaker
// is enabled, e.g. to report its state in health checks.
func OnCircuitBreaker(fn func(*resilience.CircuitBreaker)) Option {
	return func(o *options) { o.onBreaker = fn }
}

// New creates the backend selected by cfg.Type and applies the requested decorators.
func New(cfg config.StorageConfig, log logger.Logger, opts ...Option) (store.Store, error) {
	o := options{metrics: true}
	for _, opt := range opts {
		opt(&o)
	}

	backend := strings.ToLower(strings.TrimSpace(cfg.Type))
	build, ok := builders[backend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage type: %q (supported: %v)", cfg.Type, config.StorageTypes)
	}

	s, err := build(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", backend, err)
	}

	if cb := cfg.CircuitBreaker; cb.Enabled {
		breaker := resilience.NewCircuitBreaker(resilience.Settings{
			MaxFailures:  cb.MaxFailures,
			ResetTimeout: cb.ResetTimeout,
			IsFailure:    store.CountsAsFailure,
			OnStateChange: func(from, to resilience.State) {
				log.Warn("storage circuit breaker state changed", "type", backend, "from", from.String(), "to", to.String())
			},
		})
		s = store.WithCircuitBreaker(s, breaker)
		if o.onBreaker != nil {
			o.onBreaker(breaker)
		}
	}
	if o.tracing {
		s = store.WithTracing(s, backend, o.tracerProvider)
	}
	if o.metrics {
		s = store.WithMetrics(s, backend)
	}
	log.Debug("key-value store created", "type", backend, "metrics", o.metrics, "tracing", o.tracing, "circuit_breaker", cfg.CircuitBreaker.Enabled)
	return s, nil
}

func newMemory(config.StorageConfig, logger.Logger) (store.Store, error) {
	return store.NewMemoryStore(), nil
}

func newRedis(cfg config.StorageConfig, log logger.Logger) (store.Store, error) {
	return redis.NewAdapter(redis.Config{
		URL:              cfg.Redis.URL,
		MaxConns:         cfg.Redis.MaxConns,
		OperationTimeout: cfg.OperationTimeout,
		Prefix:           cfg.Redis.Prefix,
	}, log)
}

func newMemcached(cfg config.StorageConfig, _ logger.Logger) (store.Store, error) {
	return memcached.NewAdapter(memcached.Config{
		Addresses: cfg.Memcached.Addresses,
		Timeout:   cfg.Memcached.Timeout,
		Prefix:    cfg.Memcached.Prefix,
	})
}

func newDynamoDB(cfg config.StorageConfig, log logger.Logger) (store.Store, error) {
	return dynamodb.NewAdapter(dynamodb.Config{
		Region:           cfg.DynamoDB.Region,
		Endpoint:         cfg.DynamoDB.Endpoint,
		AccessKeyID:      cfg.DynamoDB.AccessKeyID,
		SecretAccessKey:  cfg.DynamoDB.SecretAccessKey,
		SessionToken:     cfg.DynamoDB.SessionToken,
		Table:            cfg.DynamoDB.Table,
		KeyAttribute:     cfg.DynamoDB.KeyAttribute,
		ValueAttribute:   cfg.DynamoDB.ValueAttribute,
		OperationTimeout: cfg.OperationTimeout,
	}, log)
}

func newMongoDB(cfg config.StorageConfig, log logger.Logger) (store.Store, error) {
	return mongodb.NewAdapter(mongodb.Config{
		URL:              cfg.MongoDB.URL,
		Database:         cfg.MongoDB.Database,
		Collection:       cfg.MongoDB.Collection,
		ConnectTimeout:   cfg.MongoDB.ConnectTimeout,
		OperationTimeout: cfg.OperationTimeout,
	}, log)
}

func newS3(cfg config.StorageConfig, log logger.Logger) (store.Store, error) {
	return s3.NewAdapter(s3.Config{
		Bucket:           cfg.S3.Bucket,
		Region:           cfg.S3.Region,
		Endpoint:         cfg.S3.Endpoint,
		AccessKeyID:      cfg.S3.AccessKeyID,
		SecretAccessKey:  cfg.S3.SecretAccessKey,
		SessionToken:     cfg.S3.SessionToken,
		UsePathStyle:     cfg.S3.UsePathStyle,
		Prefix:           cfg.S3.Prefix,
		OperationTimeout: cfg.OperationTimeout,
	}, log)
}

func newSQL(dialect sqldb.Dialect) builder {
	return func(cfg config.StorageConfig, log logger.Logger) (store.Store, error) {
		return sqldb.NewAdapter(sqldb.Config{
			Dialect:         dialect,
			DSN:             cfg.SQL.DSN,
			Table:           cfg.SQL.Table,
			MaxOpenConns:    cfg.SQL.MaxOpenConns,
			MaxIdleConns:    cfg.SQL.MaxIdleConns,
			ConnMaxLifetime: cfg.SQL.ConnMaxLifetime,
			ConnMaxIdleTime: cfg.SQL.ConnMaxIdleTime,
			QueryTimeout:    cfg.OperationTimeout,
		}, log)
	}
}

func newSearch(engine search.Engine) builder {
	return func(cfg config.StorageConfig, log logger.Logger) (store.Store, error) {
		return search.NewAdapter(search.Config{
			Engine:           engine,
			URLs:             cfg.Search.URLs,
			Username:         cfg.Search.Username,
			Password:         cfg.Search.Password,
			APIKey:           cfg.Search.APIKey,
			Index:            cfg.Search.Index,
			MaxConns:         cfg.Search.MaxConns,
			OperationTimeout: cfg.OperationTimeout,
		}, log)
	}
}
