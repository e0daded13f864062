package config

import "time"

// Storage type constants
const (
	StorageTypeMemory    = "memory"
	StorageTypeRedis     = "redis"
	StorageTypeMemcached = "memcached"
	StorageTypeDynamoDB  = "dynamodb"
	StorageTypeMongoDB   = "mongodb"
	StorageTypeS3        = "s3"
	StorageTypeSQLite    = "sqlite"
	StorageTypePostgres  = "postgres"
	StorageTypeMySQL     = "mysql"

	StorageTypeOpenSearch    = "opensearch"
	StorageTypeElasticsearch = "elasticsearch"
)

// StorageTypes lists every accepted storage.type value.
var StorageTypes = []string{
	StorageTypeMemory,
	StorageTypeRedis,
	StorageTypeMemcached,
	StorageTypeDynamoDB,
	StorageTypeMongoDB,
	StorageTypeS3,
	StorageTypeSQLite,
	StorageTypePostgres,
	StorageTypeMySQL,
	StorageTypeOpenSearch,
	StorageTypeElasticsearch,
}

// Events publisher type constants
const (
	EventsTypeNone     = "none"
	EventsTypeKafka    = "kafka"
	EventsTypeRabbitMQ = "rabbitmq"
	EventsTypeSQS      = "sqs"
)

// EventsTypes lists every accepted events.type value.
var EventsTypes = []string{EventsTypeNone, EventsTypeKafka, EventsTypeRabbitMQ, EventsTypeSQS}

// Config is the root configuration of the injury store service.
type Config struct {
	Service       ServiceConfig       `mapstructure:"service" yaml:"service"`
	Storage       StorageConfig       `mapstructure:"storage" yaml:"storage"`
	Store         StoreConfig         `mapstructure:"store" yaml:"store"`
	HTTP          HTTPConfig          `mapstructure:"http" yaml:"http"`
	Events        EventsConfig        `mapstructure:"events" yaml:"events"`
	Observability ObservabilityConfig `mapstructure:"observability" yaml:"observability"`
}

// ServiceConfig configures service identity metadata.
type ServiceConfig struct {
	Name        string `mapstructure:"name" yaml:"name"`
	Environment string `mapstructure:"environment" yaml:"environment"`
}

// StorageConfig selects and configures the key-value backend.
type StorageConfig struct {
	Type             string          `mapstructure:"type" yaml:"type"`
	Key              string          `mapstructure:"key" yaml:"key"`
	OperationTimeout time.Duration   `mapstructure:"operation_timeout" yaml:"operation_timeout"`
	Redis            RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Memcached        MemcachedConfig `mapstructure:"memcached" yaml:"memcached"`
	DynamoDB         DynamoDBConfig  `mapstructure:"dynamodb" yaml:"dynamodb"`
	MongoDB          MongoDBConfig   `mapstructure:"mongodb" yaml:"mongodb"`
	S3               S3Config        `mapstructure:"s3" yaml:"s3"`
	SQL              SQLConfig       `mapstructure:"sql" yaml:"sql"`
	Search           SearchConfig    `mapstructure:"search" yaml:"search"`

	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker" yaml:"circuit_breaker"`
}

// CircuitBreakerConfig makes backend calls fail fast after repeated failures.
type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled" yaml:"enabled"`
	MaxFailures  int           `mapstructure:"max_failures" yaml:"max_failures"`
	ResetTimeout time.Duration `mapstructure:"reset_timeout" yaml:"reset_timeout"`
}

type RedisConfig struct {
	URL      string `mapstructure:"url" yaml:"url"`
	MaxConns int    `mapstructure:"max_conns" yaml:"max_conns"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type MemcachedConfig struct {
	Addresses []string      `mapstructure:"addresses" yaml:"addresses"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	Prefix    string        `mapstructure:"prefix" yaml:"prefix"`
}

type DynamoDBConfig struct {
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token" yaml:"session_token"`
	Table           string `mapstructure:"table" yaml:"table"`
	KeyAttribute    string `mapstructure:"key_attribute" yaml:"key_attribute"`
	ValueAttribute  string `mapstructure:"value_attribute" yaml:"value_attribute"`
}

type MongoDBConfig struct {
	URL            string        `mapstructure:"url" yaml:"url"`
	Database       string        `mapstructure:"database" yaml:"database"`
	Collection     string        `mapstructure:"collection" yaml:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout" yaml:"connect_timeout"`
}

type S3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token" yaml:"session_token"`
	UsePathStyle    bool   `mapstructure:"use_path_style" yaml:"use_path_style"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
}

// SQLConfig is shared by the sqlite, postgres and mysql storage types.
type SQLConfig struct {
	DSN             string        `mapstructure:"dsn" yaml:"dsn"`
	Table           string        `mapstructure:"table" yaml:"table"`
	MaxOpenConns    int           `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time" yaml:"conn_max_idle_time"`
}

// SearchConfig is shared by the opensearch and elasticsearch storage types.
type SearchConfig struct {
	URLs     []string `mapstructure:"urls" yaml:"urls"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"password"`
	APIKey   string   `mapstructure:"api_key" yaml:"api_key"`
	Index    string   `mapstructure:"index" yaml:"index"`
	MaxConns int      `mapstructure:"max_conns" yaml:"max_conns"`
}

// StoreConfig tunes the injury store itself.
type StoreConfig struct {
	// SerializeMutations makes add/update/delete take a process-wide lock around
	// their read-modify-write.
	SerializeMutations bool `mapstructure:"serialize_mutations" yaml:"serialize_mutations"`
}

// HTTPConfig configures the API server started by "serve".
type HTTPConfig struct {
	Port int `mapstructure:"port" yaml:"port"`
	// ManagementPort serves /health, /ready, /version and /metrics separately; 0 disables it.
	ManagementPort  int           `mapstructure:"management_port" yaml:"management_port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRequestSize  int64         `mapstructure:"max_request_size" yaml:"max_request_size"`

	// RateLimitRPS is the per-client request budget; 0 disables rate limiting.
	RateLimitRPS       float64 `mapstructure:"rate_limit_rps" yaml:"rate_limit_rps"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst" yaml:"rate_limit_burst"`
	CompressionEnabled bool    `mapstructure:"compression_enabled" yaml:"compression_enabled"`
	CompressionMinSize int     `mapstructure:"compression_min_size" yaml:"compression_min_size"`

	Auth HTTPAuthConfig `mapstructure:"auth" yaml:"auth"`
}

// HTTPAuthConfig protects /injuries with HS256 bearer tokens.
type HTTPAuthConfig struct {
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer"`
	Audience  string `mapstructure:"audience" yaml:"audience"`
}

// EventsConfig publishes a change event after every successful mutation.
type EventsConfig struct {
	Type           string         `mapstructure:"type" yaml:"type"`
	Topic          string         `mapstructure:"topic" yaml:"topic"`
	Format         string         `mapstructure:"format" yaml:"format"` // json, protobuf
	PublishTimeout time.Duration  `mapstructure:"publish_timeout" yaml:"publish_timeout"`
	Kafka          KafkaConfig    `mapstructure:"kafka" yaml:"kafka"`
	RabbitMQ       RabbitMQConfig `mapstructure:"rabbitmq" yaml:"rabbitmq"`
	SQS            SQSConfig      `mapstructure:"sqs" yaml:"sqs"`
}

type KafkaConfig struct {
	Brokers    []string `mapstructure:"brokers" yaml:"brokers"`
	MaxRetries int      `mapstructure:"max_retries" yaml:"max_retries"`
}

type RabbitMQConfig struct {
	URL          string `mapstructure:"url" yaml:"url"`
	Exchange     string `mapstructure:"exchange" yaml:"exchange"`
	ExchangeType string `mapstructure:"exchange_type" yaml:"exchange_type"`
}

type SQSConfig struct {
	Region          string `mapstructure:"region" yaml:"region"`
	QueueURL        string `mapstructure:"queue_url" yaml:"queue_url"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key"`
	SessionToken    string `mapstructure:"session_token" yaml:"session_token"`
}

// ObservabilityConfig configures logging, metrics, and tracing
type ObservabilityConfig struct {
	LogLevel          string  `mapstructure:"log_level" yaml:"log_level"`
	LogFormat         string  `mapstructure:"log_format" yaml:"log_format"` // json, text
	MetricsEnabled    bool    `mapstructure:"metrics_enabled" yaml:"metrics_enabled"`
	TracingEnabled    bool    `mapstructure:"tracing_enabled" yaml:"tracing_enabled"`
	TracingEndpoint   string  `mapstructure:"tracing_endpoint" yaml:"tracing_endpoint"`
	TracingSampleRate float64 `mapstructure:"tracing_sample_rate" yaml:"tracing_sample_rate"`
}

// DefaultConfig returns a configuration that runs locally against a SQLite file.
func DefaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "injurystore",
			Environment: "development",
		},
		Storage: StorageConfig{
			Type:             StorageTypeSQLite,
			Key:              "injuries",
			OperationTimeout: 5 * time.Second,
			Redis: RedisConfig{
				MaxConns: 10,
			},
			Memcached: MemcachedConfig{
				Timeout: 500 * time.Millisecond,
			},
			DynamoDB: DynamoDBConfig{
				Table:          "injurystore",
				KeyAttribute:   "pk",
				ValueAttribute: "value",
			},
			MongoDB: MongoDBConfig{
				Database:       "injurystore",
				Collection:     "kv",
				ConnectTimeout: 5 * time.Second,
			},
			SQL: SQLConfig{
				DSN:             "injurystore.db",
				Table:           "kv_store",
				MaxOpenConns:    10,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
			Search: SearchConfig{
				Index:    "injurystore-kv",
				MaxConns: 10,
			},
			CircuitBreaker: CircuitBreakerConfig{
				MaxFailures:  5,
				ResetTimeout: 30 * time.Second,
			},
		},
		HTTP: HTTPConfig{
			Port:               8080,
			ReadTimeout:        30 * time.Second,
			WriteTimeout:       30 * time.Second,
			IdleTimeout:        120 * time.Second,
			ShutdownTimeout:    15 * time.Second,
			MaxRequestSize:     1 << 20,
			RateLimitBurst:     20,
			CompressionEnabled: true,
			CompressionMinSize: 1024,
		},
		Events: EventsConfig{
			Type:           EventsTypeNone,
			Topic:          "injurystore.changes",
			Format:         "json",
			PublishTimeout: 5 * time.Second,
			Kafka: KafkaConfig{
				MaxRetries: 3,
			},
			RabbitMQ: RabbitMQConfig{
				Exchange:     "injurystore.events",
				ExchangeType: "topic",
			},
		},
		Observability: ObservabilityConfig{
			LogLevel:          "info",
			LogFormat:         "json",
			MetricsEnabled:    true,
			TracingEndpoint:   "localhost:4317",
			TracingSampleRate: 1.0,
		},
	}
}
