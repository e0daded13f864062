package factory

import (
	"context"
	"strings"
	"testing"

	"github.com/nimburion/injurystore/pkg/config"
	"github.com/nimburion/injurystore/pkg/events/kafka"
	"github.com/nimburion/injurystore/pkg/observability/logger"
)

func TestNew_DisabledReturnsNil(t *testing.T) {
	for _, typ := range []string{"", config.EventsTypeNone} {
		pub, err := New(context.Background(), config.EventsConfig{Type: typ}, logger.Nop())
		if err != nil || pub != nil {
			t.Fatalf("type %q: expected nil publisher and error, got %v, %v", typ, pub, err)
		}
	}
}

func TestNew_Kafka(t *testing.T) {
	cfg := config.DefaultConfig().Events
	cfg.Type = config.EventsTypeKafka
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}

	pub, err := New(context.Background(), cfg, logger.Nop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer pub.Close()
	if _, ok := pub.(*kafka.Publisher); !ok {
		t.Fatalf("expected *kafka.Publisher, got %T", pub)
	}
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.EventsConfig
		wantErr string
	}{
		{name: "unknown", cfg: config.EventsConfig{Type: "nats"}, wantErr: "unsupported events type"},
		{name: "kafka without brokers", cfg: config.EventsConfig{Type: config.EventsTypeKafka}, wantErr: "broker"},
		{name: "rabbitmq without url", cfg: config.EventsConfig{Type: config.EventsTypeRabbitMQ}, wantErr: "URL is required"},
		{name: "sqs without region", cfg: config.EventsConfig{Type: config.EventsTypeSQS}, wantErr: "region is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(context.Background(), tt.cfg, logger.Nop())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
