package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DefaultEnvPrefix is used when the loader is created with an empty prefix.
const DefaultEnvPrefix = "INJURY"

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"storage-type":        "storage.type",
	"storage-key":         "storage.key",
	"sql-dsn":             "storage.sql.dsn",
	"redis-url":           "storage.redis.url",
	"serialize-mutations": "store.serialize_mutations",
	"http-port":           "http.port",
	"events-type":         "events.type",
	"log-level":           "observability.log_level",
	"log-format":          "observability.log_format",
}

// Loader defines the interface for loading configuration
type Loader interface {
	Load() (*Config, error)
	Validate(*Config) error
}

// ViperLoader implements Loader using Viper for configuration management
type ViperLoader struct {
	configFile string
	envPrefix  string
	flags      *pflag.FlagSet
}

// NewViperLoader creates a new ViperLoader
// configFile: path to configuration file (optional, can be empty)
// envPrefix: prefix for environment variables (e.g., "INJURY")
func NewViperLoader(configFile, envPrefix string) *ViperLoader {
	return &ViperLoader{
		configFile: configFile,
		envPrefix:  envPrefix,
	}
}

// WithFlags binds the known flags of fs. Only flags explicitly set on the
// command line override env, file and defaults.
func (l *ViperLoader) WithFlags(fs *pflag.FlagSet) *ViperLoader {
	l.flags = fs
	return l
}

// ConfigFile returns the configured file path, empty when none.
func (l *ViperLoader) ConfigFile() string {
	return l.configFile
}

// Load loads configuration with precedence: flags > ENV > secrets file > file > defaults
func (l *ViperLoader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", l.configFile, err)
		}
	}

	secretsFile, err := l.discoverSecretsFile()
	if err != nil {
		return nil, err
	}
	if secretsFile != "" {
		secretsViper := viper.New()
		secretsViper.SetConfigFile(secretsFile)
		if err := secretsViper.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read secrets file %s: %w", secretsFile, err)
		}
		if err := v.MergeConfigMap(secretsViper.AllSettings()); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
	}

	l.bindEnvVars(v)
	if err := l.bindFlags(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := l.Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// bindEnvVars explicitly binds environment variables for nested structs
func (l *ViperLoader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.prefixedEnv("SERVICE_NAME"))
	v.BindEnv("service.environment", l.prefixedEnv("SERVICE_ENVIRONMENT"), l.prefixedEnv("ENVIRONMENT"))

	// Storage
	v.BindEnv("storage.type", l.prefixedEnv("STORAGE_TYPE"))
	v.BindEnv("storage.key", l.prefixedEnv("STORAGE_KEY"))
	v.BindEnv("storage.operation_timeout", l.prefixedEnv("STORAGE_OPERATION_TIMEOUT"))

	v.BindEnv("storage.redis.url", l.prefixedEnv("REDIS_URL"))
	v.BindEnv("storage.redis.max_conns", l.prefixedEnv("REDIS_MAX_CONNS"))
	v.BindEnv("storage.redis.prefix", l.prefixedEnv("REDIS_PREFIX"))

	v.BindEnv("storage.memcached.addresses", l.prefixedEnv("MEMCACHED_ADDRESSES"))
	v.BindEnv("storage.memcached.timeout", l.prefixedEnv("MEMCACHED_TIMEOUT"))
	v.BindEnv("storage.memcached.prefix", l.prefixedEnv("MEMCACHED_PREFIX"))

	v.BindEnv("storage.dynamodb.region", l.prefixedEnv("DYNAMODB_REGION"), "AWS_REGION")
	v.BindEnv("storage.dynamodb.endpoint", l.prefixedEnv("DYNAMODB_ENDPOINT"))
	v.BindEnv("storage.dynamodb.access_key_id", l.prefixedEnv("DYNAMODB_ACCESS_KEY_ID"))
	v.BindEnv("storage.dynamodb.secret_access_key", l.prefixedEnv("DYNAMODB_SECRET_ACCESS_KEY"))
	v.BindEnv("storage.dynamodb.session_token", l.prefixedEnv("DYNAMODB_SESSION_TOKEN"))
	v.BindEnv("storage.dynamodb.table", l.prefixedEnv("DYNAMODB_TABLE"))
	v.BindEnv("storage.dynamodb.key_attribute", l.prefixedEnv("DYNAMODB_KEY_ATTRIBUTE"))
	v.BindEnv("storage.dynamodb.value_attribute", l.prefixedEnv("DYNAMODB_VALUE_ATTRIBUTE"))

	v.BindEnv("storage.mongodb.url", l.prefixedEnv("MONGODB_URL"))
	v.BindEnv("storage.mongodb.database", l.prefixedEnv("MONGODB_DATABASE"))
	v.BindEnv("storage.mongodb.collection", l.prefixedEnv("MONGODB_COLLECTION"))
	v.BindEnv("storage.mongodb.connect_timeout", l.prefixedEnv("MONGODB_CONNECT_TIMEOUT"))

	v.BindEnv("storage.s3.bucket", l.prefixedEnv("S3_BUCKET"))
	v.BindEnv("storage.s3.region", l.prefixedEnv("S3_REGION"), "AWS_REGION")
	v.BindEnv("storage.s3.endpoint", l.prefixedEnv("S3_ENDPOINT"))
	v.BindEnv("storage.s3.access_key_id", l.prefixedEnv("S3_ACCESS_KEY_ID"))
	v.BindEnv("storage.s3.secret_access_key", l.prefixedEnv("S3_SECRET_ACCESS_KEY"))
	v.BindEnv("storage.s3.session_token", l.prefixedEnv("S3_SESSION_TOKEN"))
	v.BindEnv("storage.s3.use_path_style", l.prefixedEnv("S3_USE_PATH_STYLE"))
	v.BindEnv("storage.s3.prefix", l.prefixedEnv("S3_PREFIX"))

	v.BindEnv("storage.sql.dsn", l.prefixedEnv("SQL_DSN"), l.prefixedEnv("DATABASE_URL"))
	v.BindEnv("storage.sql.table", l.prefixedEnv("SQL_TABLE"))
	v.BindEnv("storage.sql.max_open_conns", l.prefixedEnv("SQL_MAX_OPEN_CONNS"))
	v.BindEnv("storage.sql.max_idle_conns", l.prefixedEnv("SQL_MAX_IDLE_CONNS"))
	v.BindEnv("storage.sql.conn_max_lifetime", l.prefixedEnv("SQL_CONN_MAX_LIFETIME"))
	v.BindEnv("storage.sql.conn_max_idle_time", l.prefixedEnv("SQL_CONN_MAX_IDLE_TIME"))

	v.BindEnv("storage.search.urls", l.prefixedEnv("SEARCH_URLS"))
	v.BindEnv("storage.search.username", l.prefixedEnv("SEARCH_USERNAME"))
	v.BindEnv("storage.search.password", l.prefixedEnv("SEARCH_PASSWORD"))
	v.BindEnv("storage.search.api_key", l.prefixedEnv("SEARCH_API_KEY"))
	v.BindEnv("storage.search.index", l.prefixedEnv("SEARCH_INDEX"))
	v.BindEnv("storage.search.max_conns", l.prefixedEnv("SEARCH_MAX_CONNS"))

	v.BindEnv("storage.circuit_breaker.enabled", l.prefixedEnv("CIRCUIT_BREAKER_ENABLED"))
	v.BindEnv("storage.circuit_breaker.max_failures", l.prefixedEnv("CIRCUIT_BREAKER_MAX_FAILURES"))
	v.BindEnv("storage.circuit_breaker.reset_timeout", l.prefixedEnv("CIRCUIT_BREAKER_RESET_TIMEOUT"))

	v.BindEnv("store.serialize_mutations", l.prefixedEnv("STORE_SERIALIZE_MUTATIONS"))

	// HTTP
	v.BindEnv("http.port", l.prefixedEnv("HTTP_PORT"))
	v.BindEnv("http.management_port", l.prefixedEnv("HTTP_MANAGEMENT_PORT"), l.prefixedEnv("MANAGEMENT_PORT"))
	v.BindEnv("http.read_timeout", l.prefixedEnv("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.prefixedEnv("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.prefixedEnv("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.shutdown_timeout", l.prefixedEnv("HTTP_SHUTDOWN_TIMEOUT"))
	v.BindEnv("http.max_request_size", l.prefixedEnv("HTTP_MAX_REQUEST_SIZE"))
	v.BindEnv("http.rate_limit_rps", l.prefixedEnv("HTTP_RATE_LIMIT_RPS"))
	v.BindEnv("http.rate_limit_burst", l.prefixedEnv("HTTP_RATE_LIMIT_BURST"))
	v.BindEnv("http.compression_enabled", l.prefixedEnv("HTTP_COMPRESSION_ENABLED"))
	v.BindEnv("http.compression_min_size", l.prefixedEnv("HTTP_COMPRESSION_MIN_SIZE"))
	v.BindEnv("http.auth.enabled", l.prefixedEnv("HTTP_AUTH_ENABLED"))
	v.BindEnv("http.auth.jwt_secret", l.prefixedEnv("HTTP_AUTH_JWT_SECRET"), l.prefixedEnv("JWT_SECRET"))
	v.BindEnv("http.auth.issuer", l.prefixedEnv("HTTP_AUTH_ISSUER"))
	v.BindEnv("http.auth.audience", l.prefixedEnv("HTTP_AUTH_AUDIENCE"))

	// Events
	v.BindEnv("events.type", l.prefixedEnv("EVENTS_TYPE"))
	v.BindEnv("events.topic", l.prefixedEnv("EVENTS_TOPIC"))
	v.BindEnv("events.format", l.prefixedEnv("EVENTS_FORMAT"))
	v.BindEnv("events.publish_timeout", l.prefixedEnv("EVENTS_PUBLISH_TIMEOUT"))
	v.BindEnv("events.kafka.brokers", l.prefixedEnv("KAFKA_BROKERS"))
	v.BindEnv("events.kafka.max_retries", l.prefixedEnv("KAFKA_MAX_RETRIES"))
	v.BindEnv("events.rabbitmq.url", l.prefixedEnv("RABBITMQ_URL"))
	v.BindEnv("events.rabbitmq.exchange", l.prefixedEnv("RABBITMQ_EXCHANGE"))
	v.BindEnv("events.rabbitmq.exchange_type", l.prefixedEnv("RABBITMQ_EXCHANGE_TYPE"))
	v.BindEnv("events.sqs.region", l.prefixedEnv("SQS_REGION"), "AWS_REGION")
	v.BindEnv("events.sqs.queue_url", l.prefixedEnv("SQS_QUEUE_URL"))
	v.BindEnv("events.sqs.endpoint", l.prefixedEnv("SQS_ENDPOINT"))
	v.BindEnv("events.sqs.access_key_id", l.prefixedEnv("SQS_ACCESS_KEY_ID"))
	v.BindEnv("events.sqs.secret_access_key", l.prefixedEnv("SQS_SECRET_ACCESS_KEY"))
	v.BindEnv("events.sqs.session_token", l.prefixedEnv("SQS_SESSION_TOKEN"))

	// Observability
	v.BindEnv("observability.log_level", l.prefixedEnv("OBSERVABILITY_LOG_LEVEL"), l.prefixedEnv("LOG_LEVEL"))
	v.BindEnv("observability.log_format", l.prefixedEnv("OBSERVABILITY_LOG_FORMAT"), l.prefixedEnv("LOG_FORMAT"))
	v.BindEnv("observability.metrics_enabled", l.prefixedEnv("OBSERVABILITY_METRICS_ENABLED"))
	v.BindEnv("observability.tracing_enabled", l.prefixedEnv("OBSERVABILITY_TRACING_ENABLED"))
	v.BindEnv("observability.tracing_endpoint", l.prefixedEnv("OBSERVABILITY_TRACING_ENDPOINT"))
	v.BindEnv("observability.tracing_sample_rate", l.prefixedEnv("OBSERVABILITY_TRACING_SAMPLE_RATE"))
}

func (l *ViperLoader) bindFlags(v *viper.Viper) error {
	if l.flags == nil {
		return nil
	}
	for name, key := range flagKeys {
		flag := l.flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("failed to bind flag --%s: %w", name, err)
		}
	}
	return nil
}

// discoverSecretsFile finds the secrets file using these rules:
// 1. Check <ENV_PREFIX>_SECRETS_FILE
// 2. If configFile is set, look for secrets.{ext} in the same directory
func (l *ViperLoader) discoverSecretsFile() (string, error) {
	secretsEnv := l.prefixedEnv("SECRETS_FILE")
	if raw, ok := os.LookupEnv(secretsEnv); ok {
		secretsFile := strings.TrimSpace(raw)
		if secretsFile == "" {
			return "", fmt.Errorf("%s is set but empty", secretsEnv)
		}
		info, err := os.Stat(secretsFile)
		if err != nil {
			return "", fmt.Errorf("%s points to an inaccessible file %s: %w", secretsEnv, secretsFile, err)
		}
		if info.IsDir() {
			return "", fmt.Errorf("%s must point to a file, got directory %s", secretsEnv, secretsFile)
		}
		return secretsFile, nil
	}

	if l.configFile != "" {
		secretsFile := filepath.Join(filepath.Dir(l.configFile), "secrets"+filepath.Ext(l.configFile))
		if info, err := os.Stat(secretsFile); err == nil && !info.IsDir() {
			return secretsFile, nil
		}
	}
	return "", nil
}

func (l *ViperLoader) prefixedEnv(suffix string) string {
	prefix := strings.TrimSpace(l.envPrefix)
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return fmt.Sprintf("%s_%s", strings.ToUpper(prefix), suffix)
}

// setDefaults sets default values in Viper from the default config
func (l *ViperLoader) setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("service.name", cfg.Service.Name)
	v.SetDefault("service.environment", cfg.Service.Environment)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.key", cfg.Storage.Key)
	v.SetDefault("storage.operation_timeout", cfg.Storage.OperationTimeout)
	v.SetDefault("storage.redis.url", cfg.Storage.Redis.URL)
	v.SetDefault("storage.redis.max_conns", cfg.Storage.Redis.MaxConns)
	v.SetDefault("storage.redis.prefix", cfg.Storage.Redis.Prefix)
	v.SetDefault("storage.memcached.addresses", cfg.Storage.Memcached.Addresses)
	v.SetDefault("storage.memcached.timeout", cfg.Storage.Memcached.Timeout)
	v.SetDefault("storage.memcached.prefix", cfg.Storage.Memcached.Prefix)
	v.SetDefault("storage.dynamodb.region", cfg.Storage.DynamoDB.Region)
	v.SetDefault("storage.dynamodb.endpoint", cfg.Storage.DynamoDB.Endpoint)
	v.SetDefault("storage.dynamodb.access_key_id", cfg.Storage.DynamoDB.AccessKeyID)
	v.SetDefault("storage.dynamodb.secret_access_key", cfg.Storage.DynamoDB.SecretAccessKey)
	v.SetDefault("storage.dynamodb.session_token", cfg.Storage.DynamoDB.SessionToken)
	v.SetDefault("storage.dynamodb.table", cfg.Storage.DynamoDB.Table)
	v.SetDefault("storage.dynamodb.key_attribute", cfg.Storage.DynamoDB.KeyAttribute)
	v.SetDefault("storage.dynamodb.value_attribute", cfg.Storage.DynamoDB.ValueAttribute)
	v.SetDefault("storage.mongodb.url", cfg.Storage.MongoDB.URL)
	v.SetDefault("storage.mongodb.database", cfg.Storage.MongoDB.Database)
	v.SetDefault("storage.mongodb.collection", cfg.Storage.MongoDB.Collection)
	v.SetDefault("storage.mongodb.connect_timeout", cfg.Storage.MongoDB.ConnectTimeout)
	v.SetDefault("storage.s3.bucket", cfg.Storage.S3.Bucket)
	v.SetDefault("storage.s3.region", cfg.Storage.S3.Region)
	v.SetDefault("storage.s3.endpoint", cfg.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.access_key_id", cfg.Storage.S3.AccessKeyID)
	v.SetDefault("storage.s3.secret_access_key", cfg.Storage.S3.SecretAccessKey)
	v.SetDefault("storage.s3.session_token", cfg.Storage.S3.SessionToken)
	v.SetDefault("storage.s3.use_path_style", cfg.Storage.S3.UsePathStyle)
	v.SetDefault("storage.s3.prefix", cfg.Storage.S3.Prefix)
	v.SetDefault("storage.sql.dsn", cfg.Storage.SQL.DSN)
	v.SetDefault("storage.sql.table", cfg.Storage.SQL.Table)
	v.SetDefault("storage.sql.max_open_conns", cfg.Storage.SQL.MaxOpenConns)
	v.SetDefault("storage.sql.max_idle_conns", cfg.Storage.SQL.MaxIdleConns)
	v.SetDefault("storage.sql.conn_max_lifetime", cfg.Storage.SQL.ConnMaxLifetime)
	v.SetDefault("storage.sql.conn_max_idle_time", cfg.Storage.SQL.ConnMaxIdleTime)
	v.SetDefault("storage.search.urls", cfg.Storage.Search.URLs)
	v.SetDefault("storage.search.username", cfg.Storage.Search.Username)
	v.SetDefault("storage.search.password", cfg.Storage.Search.Password)
	v.SetDefault("storage.search.api_key", cfg.Storage.Search.APIKey)
	v.SetDefault("storage.search.index", cfg.Storage.Search.Index)
	v.SetDefault("storage.search.max_conns", cfg.Storage.Search.MaxConns)

	v.SetDefault("storage.circuit_breaker.enabled", cfg.Storage.CircuitBreaker.Enabled)
	v.SetDefault("storage.circuit_breaker.max_failures", cfg.Storage.CircuitBreaker.MaxFailures)
	v.SetDefault("storage.circuit_breaker.reset_timeout", cfg.Storage.CircuitBreaker.ResetTimeout)

	v.SetDefault("store.serialize_mutations", cfg.Store.SerializeMutations)

	v.SetDefault("http.port", cfg.HTTP.Port)
	v.SetDefault("http.management_port", cfg.HTTP.ManagementPort)
	v.SetDefault("http.read_timeout", cfg.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", cfg.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", cfg.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", cfg.HTTP.ShutdownTimeout)
	v.SetDefault("http.max_request_size", cfg.HTTP.MaxRequestSize)
	v.SetDefault("http.rate_limit_rps", cfg.HTTP.RateLimitRPS)
	v.SetDefault("http.rate_limit_burst", cfg.HTTP.RateLimitBurst)
	v.SetDefault("http.compression_enabled", cfg.HTTP.CompressionEnabled)
	v.SetDefault("http.compression_min_size", cfg.HTTP.CompressionMinSize)
	v.SetDefault("http.auth.enabled", cfg.HTTP.Auth.Enabled)
	v.SetDefault("http.auth.jwt_secret", cfg.HTTP.Auth.JWTSecret)
	v.SetDefault("http.auth.issuer", cfg.HTTP.Auth.Issuer)
	v.SetDefault("http.auth.audience", cfg.HTTP.Auth.Audience)

	v.SetDefault("events.type", cfg.Events.Type)
	v.SetDefault("events.topic", cfg.Events.Topic)
	v.SetDefault("events.format", cfg.Events.Format)
	v.SetDefault("events.publish_timeout", cfg.Events.PublishTimeout)
	v.SetDefault("events.kafka.brokers", cfg.Events.Kafka.Brokers)
	v.SetDefault("events.kafka.max_retries", cfg.Events.Kafka.MaxRetries)
	v.SetDefault("events.rabbitmq.url", cfg.Events.RabbitMQ.URL)
	v.SetDefault("events.rabbitmq.exchange", cfg.Events.RabbitMQ.Exchange)
	v.SetDefault("events.rabbitmq.exchange_type", cfg.Events.RabbitMQ.ExchangeType)
	v.SetDefault("events.sqs.region", cfg.Events.SQS.Region)
	v.SetDefault("events.sqs.queue_url", cfg.Events.SQS.QueueURL)
	v.SetDefault("events.sqs.endpoint", cfg.Events.SQS.Endpoint)
	v.SetDefault("events.sqs.access_key_id", cfg.Events.SQS.AccessKeyID)
	v.SetDefault("events.sqs.secret_access_key", cfg.Events.SQS.SecretAccessKey)
	v.SetDefault("events.sqs.session_token", cfg.Events.SQS.SessionToken)

	v.SetDefault("observability.log_level", cfg.Observability.LogLevel)
	v.SetDefault("observability.log_format", cfg.Observability.LogFormat)
	v.SetDefault("observability.metrics_enabled", cfg.Observability.MetricsEnabled)
	v.SetDefault("observability.tracing_enabled", cfg.Observability.TracingEnabled)
	v.SetDefault("observability.tracing_endpoint", cfg.Observability.TracingEndpoint)
	v.SetDefault("observability.tracing_sample_rate", cfg.Observability.TracingSampleRate)
}
