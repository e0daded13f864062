package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate_BackendRequirements(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "memory needs nothing", mutate: func(c *Config) { c.Storage.Type = StorageTypeMemory }},
		{name: "unknown type", mutate: func(c *Config) { c.Storage.Type = "cassandra" }, wantErr: "invalid storage.type"},
		{name: "type is case insensitive", mutate: func(c *Config) { c.Storage.Type = " Memory " }},
		{name: "empty key", mutate: func(c *Config) { c.Storage.Key = " " }, wantErr: "storage.key is required"},
		{name: "redis url", mutate: func(c *Config) { c.Storage.Type = StorageTypeRedis }, wantErr: "storage.redis.url"},
		{name: "memcached addresses", mutate: func(c *Config) {
			c.Storage.Type = StorageTypeMemcached
			c.Storage.Memcached.Addresses = []string{" "}
		}, wantErr: "storage.memcached.addresses"},
		{name: "dynamodb region", mutate: func(c *Config) { c.Storage.Type = StorageTypeDynamoDB }, wantErr: "storage.dynamodb.region"},
		{name: "mongodb url", mutate: func(c *Config) { c.Storage.Type = StorageTypeMongoDB }, wantErr: "storage.mongodb.url"},
		{name: "s3 bucket", mutate: func(c *Config) {
			c.Storage.Type = StorageTypeS3
			c.Storage.S3.Region = "eu-west-1"
		}, wantErr: "storage.s3.bucket"},
		{name: "sql dsn", mutate: func(c *Config) {
			c.Storage.Type = StorageTypeMySQL
			c.Storage.SQL.DSN = ""
		}, wantErr: "storage.sql.dsn"},
		{name: "search urls", mutate: func(c *Config) {
			c.Storage.Type = StorageTypeOpenSearch
			c.Storage.Search.URLs = []string{"", " "}
		}, wantErr: "storage.search.urls"},
		{name: "search index", mutate: func(c *Config) {
			c.Storage.Type = StorageTypeElasticsearch
			c.Storage.Search.URLs = []string{"http://localhost:9200"}
			c.Storage.Search.Index = ""
		}, wantErr: "storage.search.index"},
		{name: "events disabled by empty type", mutate: func(c *Config) { c.Events.Type = "" }},
		{name: "events unknown type", mutate: func(c *Config) { c.Events.Type = "nats" }, wantErr: "invalid events.type"},
		{name: "kafka brokers", mutate: func(c *Config) {
			c.Events.Type = EventsTypeKafka
			c.Events.Kafka.Brokers = []string{" "}
		}, wantErr: "events.kafka.brokers"},
		{name: "rabbitmq url", mutate: func(c *Config) { c.Events.Type = EventsTypeRabbitMQ }, wantErr: "events.rabbitmq.url"},
		{name: "sqs queue url", mutate: func(c *Config) {
			c.Events.Type = EventsTypeSQS
			c.Events.SQS.Region = "eu-west-1"
		}, wantErr: "events.sqs.queue_url"},
		{name: "events format", mutate: func(c *Config) {
			c.Events.Type = EventsTypeKafka
			c.Events.Kafka.Brokers = []string{"localhost:9092"}
			c.Events.Format = "avro"
		}, wantErr: "events.format"},
		{name: "auth secret", mutate: func(c *Config) {
			c.HTTP.Auth = HTTPAuthConfig{Enabled: true, JWTSecret: "too-short"}
		}, wantErr: "http.auth.jwt_secret"},
		{name: "management port clash", mutate: func(c *Config) { c.HTTP.ManagementPort = c.HTTP.Port }, wantErr: "management_port must differ"},
		{name: "management port range", mutate: func(c *Config) { c.HTTP.ManagementPort = 70000 }, wantErr: "invalid http.management_port"},
		{name: "negative rate limit", mutate: func(c *Config) { c.HTTP.RateLimitRPS = -1 }, wantErr: "http.rate_limit_rps"},
		{name: "tracing endpoint", mutate: func(c *Config) {
			c.Observability.TracingEnabled = true
			c.Observability.TracingEndpoint = ""
		}, wantErr: "tracing_endpoint"},
		{name: "sample rate", mutate: func(c *Config) { c.Observability.TracingSampleRate = 1.5 }, wantErr: "tracing_sample_rate"},
		{name: "log level", mutate: func(c *Config) { c.Observability.LogLevel = "trace" }, wantErr: "log_level"},
		{name: "circuit breaker disabled ignores settings", mutate: func(c *Config) { c.Storage.CircuitBreaker.MaxFailures = 0 }},
		{name: "circuit breaker threshold", mutate: func(c *Config) {
			c.Storage.CircuitBreaker = CircuitBreakerConfig{Enabled: true, ResetTimeout: time.Second}
		}, wantErr: "max_failures"},
		{name: "circuit breaker reset timeout", mutate: func(c *Config) {
			c.Storage.CircuitBreaker = CircuitBreakerConfig{Enabled: true, MaxFailures: 3}
		}, wantErr: "reset_timeout"},
		{name: "log level case", mutate: func(c *Config) { c.Observability.LogLevel = "DEBUG" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Storage.Key = ""
	cfg.HTTP.Port = 0
	cfg.Observability.LogFormat = "xml"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation errors")
	}
	for _, want := range []string{"storage.key", "http.port", "log_format"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("expected %q in joined error: %v", want, err)
		}
	}
}
