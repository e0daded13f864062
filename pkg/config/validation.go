package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate normalizes cfg in place and reports every invalid field at once.
func (l *ViperLoader) Validate(cfg *Config) error {
	return cfg.Validate()
}

// Validate normalizes the configuration and returns all validation errors joined.
func (cfg *Config) Validate() error {
	var errs []error

	cfg.Storage.Type = strings.ToLower(strings.TrimSpace(cfg.Storage.Type))
	cfg.Storage.Memcached.Addresses = normalizeStringSlice(cfg.Storage.Memcached.Addresses)
	cfg.Storage.Search.URLs = normalizeStringSlice(cfg.Storage.Search.URLs)
	cfg.Events.Type = strings.ToLower(strings.TrimSpace(cfg.Events.Type))
	if cfg.Events.Type == "" {
		cfg.Events.Type = EventsTypeNone
	}
	cfg.Events.Format = strings.ToLower(strings.TrimSpace(cfg.Events.Format))
	cfg.Events.Kafka.Brokers = normalizeStringSlice(cfg.Events.Kafka.Brokers)
	cfg.Observability.LogLevel = strings.ToLower(strings.TrimSpace(cfg.Observability.LogLevel))
	cfg.Observability.LogFormat = strings.ToLower(strings.TrimSpace(cfg.Observability.LogFormat))

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name is required"))
	}

	if !contains(StorageTypes, cfg.Storage.Type) {
		errs = append(errs, fmt.Errorf("invalid storage.type: %s (must be one of: %v)", cfg.Storage.Type, StorageTypes))
	}
	if strings.TrimSpace(cfg.Storage.Key) == "" {
		errs = append(errs, errors.New("storage.key is required"))
	}
	if cfg.Storage.OperationTimeout <= 0 {
		errs = append(errs, errors.New("storage.operation_timeout must be positive"))
	}
	errs = append(errs, validateBackend(&cfg.Storage)...)
	if cb := cfg.Storage.CircuitBreaker; cb.Enabled {
		if cb.MaxFailures < 1 {
			errs = append(errs, errors.New("storage.circuit_breaker.max_failures must be at least 1"))
		}
		if cb.ResetTimeout <= 0 {
			errs = append(errs, errors.New("storage.circuit_breaker.reset_timeout must be positive"))
		}
	}

	if cfg.HTTP.Port <= 0 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid http.port: %d (must be between 1 and 65535)", cfg.HTTP.Port))
	}
	if mp := cfg.HTTP.ManagementPort; mp < 0 || mp > 65535 {
		errs = append(errs, fmt.Errorf("invalid http.management_port: %d (must be between 0 and 65535)", mp))
	} else if mp != 0 && mp == cfg.HTTP.Port {
		errs = append(errs, errors.New("http.management_port must differ from http.port"))
	}
	if cfg.HTTP.MaxRequestSize < 0 {
		errs = append(errs, errors.New("http.max_request_size cannot be negative"))
	}
	if cfg.HTTP.RateLimitRPS < 0 {
		errs = append(errs, errors.New("http.rate_limit_rps cannot be negative"))
	}
	if cfg.HTTP.Auth.Enabled && len(cfg.HTTP.Auth.JWTSecret) < 32 {
		errs = append(errs, errors.New("http.auth.jwt_secret must be at least 32 bytes when auth is enabled"))
	}

	errs = append(errs, validateEvents(&cfg.Events)...)

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, cfg.Observability.LogLevel) {
		errs = append(errs, fmt.Errorf("invalid observability.log_level: %s (must be one of: %v)", cfg.Observability.LogLevel, validLogLevels))
	}
	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, cfg.Observability.LogFormat) {
		errs = append(errs, fmt.Errorf("invalid observability.log_format: %s (must be one of: %v)", cfg.Observability.LogFormat, validLogFormats))
	}
	if cfg.Observability.TracingEnabled && cfg.Observability.TracingEndpoint == "" {
		errs = append(errs, errors.New("observability.tracing_endpoint is required when tracing is enabled"))
	}
	if cfg.Observability.TracingSampleRate < 0 || cfg.Observability.TracingSampleRate > 1 {
		errs = append(errs, fmt.Errorf("invalid observability.tracing_sample_rate: %v (must be between 0 and 1)", cfg.Observability.TracingSampleRate))
	}

	return errors.Join(errs...)
}

func validateBackend(s *StorageConfig) []error {
	var errs []error
	switch s.Type {
	case StorageTypeRedis:
		if strings.TrimSpace(s.Redis.URL) == "" {
			errs = append(errs, errors.New("storage.redis.url is required when storage.type is redis"))
		}
	case StorageTypeMemcached:
		if len(s.Memcached.Addresses) == 0 {
			errs = append(errs, errors.New("storage.memcached.addresses must contain at least one address"))
		}
	case StorageTypeDynamoDB:
		if s.DynamoDB.Region == "" {
			errs = append(errs, errors.New("storage.dynamodb.region is required when storage.type is dynamodb"))
		}
		if s.DynamoDB.Table == "" {
			errs = append(errs, errors.New("storage.dynamodb.table is required when storage.type is dynamodb"))
		}
	case StorageTypeMongoDB:
		if s.MongoDB.URL == "" {
			errs = append(errs, errors.New("storage.mongodb.url is required when storage.type is mongodb"))
		}
		if s.MongoDB.Database == "" {
			errs = append(errs, errors.New("storage.mongodb.database is required when storage.type is mongodb"))
		}
	case StorageTypeS3:
		if s.S3.Bucket == "" {
			errs = append(errs, errors.New("storage.s3.bucket is required when storage.type is s3"))
		}
		if s.S3.Region == "" {
			errs = append(errs, errors.New("storage.s3.region is required when storage.type is s3"))
		}
	case StorageTypeOpenSearch, StorageTypeElasticsearch:
		if len(s.Search.URLs) == 0 {
			errs = append(errs, fmt.Errorf("storage.search.urls must contain at least one URL when storage.type is %s", s.Type))
		}
		if strings.TrimSpace(s.Search.Index) == "" {
			errs = append(errs, fmt.Errorf("storage.search.index is required when storage.type is %s", s.Type))
		}
	case StorageTypeSQLite, StorageTypePostgres, StorageTypeMySQL:
		if strings.TrimSpace(s.SQL.DSN) == "" {
			errs = append(errs, fmt.Errorf("storage.sql.dsn is required when storage.type is %s", s.Type))
		}
		if s.SQL.MaxOpenConns < 0 || s.SQL.MaxIdleConns < 0 {
			errs = append(errs, errors.New("storage.sql connection pool sizes cannot be negative"))
		}
	}
	return errs
}

func validateEvents(e *EventsConfig) []error {
	var errs []error
	if !contains(EventsTypes, e.Type) {
		return append(errs, fmt.Errorf("invalid events.type: %s (must be one of: %v)", e.Type, EventsTypes))
	}
	if e.Type == EventsTypeNone {
		return nil
	}
	if strings.TrimSpace(e.Topic) == "" {
		errs = append(errs, errors.New("events.topic is required when events are enabled"))
	}
	validFormats := []string{"json", "protobuf"}
	if !contains(validFormats, e.Format) {
		errs = append(errs, fmt.Errorf("invalid events.format: %s (must be one of: %v)", e.Format, validFormats))
	}
	if e.PublishTimeout <= 0 {
		errs = append(errs, errors.New("events.publish_timeout must be positive"))
	}
	switch e.Type {
	case EventsTypeKafka:
		if len(e.Kafka.Brokers) == 0 {
			errs = append(errs, errors.New("events.kafka.brokers must contain at least one broker"))
		}
	case EventsTypeRabbitMQ:
		if strings.TrimSpace(e.RabbitMQ.URL) == "" {
			errs = append(errs, errors.New("events.rabbitmq.url is required when events.type is rabbitmq"))
		}
	case EventsTypeSQS:
		if e.SQS.Region == "" {
			errs = append(errs, errors.New("events.sqs.region is required when events.type is sqs"))
		}
		if e.SQS.QueueURL == "" {
			errs = append(errs, errors.New("events.sqs.queue_url is required when events.type is sqs"))
		}
	}
	return errs
}

// contains checks if a string slice contains a specific string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

// normalizeStringSlice removes empty strings and trims whitespace
func normalizeStringSlice(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
