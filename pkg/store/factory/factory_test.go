package factory

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/resilience"
	"github.com/nimburion/injurystore/pkg/store"
)

func storageConfig(storageType string) config.StorageConfig {
	cfg := config.DefaultConfig().Storage
	cfg.Type = storageType
	return cfg
}

func roundTrip(t *testing.T, s store.Store) {
	t.Helper()
	ctx := context.Background()
	if err := s.Set(ctx, "injuries", `[{"id":"a"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.Get(ctx, "injuries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `[{"id":"a"}]` {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestNew_UnsupportedType(t *testing.T) {
	_, err := New(storageConfig("cassandra"), logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "unsupported storage type") {
		t.Fatalf("expected unsupported type error, got %v", err)
	}
}

func TestNew_Memory(t *testing.T) {
	s, err := New(storageConfig(" MEMORY "), logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
}

func TestNew_SQLite(t *testing.T) {
	cfg := storageConfig(config.StorageTypeSQLite)
	cfg.SQL.DSN = filepath.Join(t.TempDir(), "factory.db")

	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
	if err := store.HealthCheck(context.Background(), s); err != nil {
		t.Fatalf("health check through decorators: %v", err)
	}
}

func TestNew_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := storageConfig(config.StorageTypeRedis)
	cfg.Redis.URL = "redis://" + mr.Addr()
	cfg.Redis.Prefix = "factory"

	s, err := New(cfg, logger.Nop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	roundTrip(t, s)
	if !mr.Exists("factory:injuries") {
		t.Fatal("expected prefixed key in redis")
	}
}

func TestNew_CircuitBreaker(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := storageConfig(config.StorageTypeRedis)
	cfg.Redis.URL = "redis://" + mr.Addr()
	cfg.CircuitBreaker = config.CircuitBreakerConfig{Enabled: true, MaxFailures: 2, ResetTimeout: time.Hour}

	var breaker *resilience.CircuitBreaker
	s, err := New(cfg, logger.Nop(), WithMetrics(false), OnCircuitBreaker(func(cb *resilience.CircuitBreaker) { breaker = cb }))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Close()
	if breaker == nil {
		t.Fatal("expected breaker to be handed to the hook")
	}

	ctx := context.Background()
	if _, err := s.Get(ctx, "injuries"); !store.IsNotFound(err) {
		t.Fatalf("expected miss, got %v", err)
	}

	mr.SetError("ERR injected failure")
	for i := 0; i < 2; i++ {
		if err := s.Set(ctx, "injuries", "[]"); err == nil {
			t.Fatalf("attempt %d: expected backend error", i)
		}
	}
	mr.SetError("")

	if err := s.Set(ctx, "injuries", "[]"); !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected open circuit, got %v", err)
	}
	if breaker.State() != resilience.StateOpen {
		t.Fatalf("expected open breaker, got %v", breaker.State())
	}
}

func TestNew_BackendErrorIsWrapped(t *testing.T) {
	cfg := storageConfig(config.StorageTypeRedis)
	cfg.Redis.URL = ""
	_, err := New(cfg, logger.Nop())
	if err == nil || !strings.Contains(err.Error(), "failed to create redis store") {
		t.Fatalf("expected wrapped backend error, got %v", err)
	}
}

func TestNew_MemcachedDoesNotDialEagerly(t *testing.T) {
	cfg := storageConfig(config.StorageTypeMemcached)
	cfg.Memcached.Addresses = []string{"127.0.0.1:1"}
	s, err := New(cfg, logger.Nop(), WithMetrics(false))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	_ = s.Close()
}

func TestNew_TracingDecorator(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	s, err := New(storageConfig(config.StorageTypeMemory), logger.Nop(), WithTracing(provider))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	roundTrip(t, s)

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "kv.set" || spans[1].Name() != "kv.get" {
		t.Fatalf("unexpected span names %q, %q", spans[0].Name(), spans[1].Name())
	}
}

func TestNew_SearchEngineUnreachable(t *testing.T) {
	for _, storageType := range []string{config.StorageTypeOpenSearch, config.StorageTypeElasticsearch} {
		t.Run(storageType, func(t *testing.T) {
			cfg := storageConfig(storageType)
			cfg.Search.URLs = []string{"http://127.0.0.1:1"}
			_, err := New(cfg, logger.Nop())
			if err == nil || !strings.Contains(err.Error(), "failed to create "+storageType+" store") {
				t.Fatalf("expected creation error, got %v", err)
			}
		})
	}
}
