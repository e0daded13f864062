package tracing

import (
	"context"
	"strings"
	"testing"
)

func TestNewTracerProvider_Disabled(t *testing.T) {
	provider, err := NewTracerProvider(context.Background(), TracerConfig{ServiceName: "injurystore"})
	if err != nil {
		t.Fatalf("expected no error for disabled tracing, got: %v", err)
	}
	if provider.Enabled() {
		t.Fatal("expected disabled provider")
	}

	_, span := provider.Tracer("test").Start(context.Background(), "noop")
	if span.SpanContext().IsValid() {
		t.Fatal("expected no-op span when tracing is disabled")
	}
	span.End()

	if err := provider.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown of disabled provider: %v", err)
	}
}

func TestNewTracerProvider_ValidationErrors(t *testing.T) {
	tests := []struct {
		name        string
		config      TracerConfig
		expectedErr string
	}{
		{
			name:        "missing service name",
			config:      TracerConfig{Enabled: true, Endpoint: "localhost:4317"},
			expectedErr: "service name is required",
		},
		{
			name:        "missing endpoint",
			config:      TracerConfig{Enabled: true, ServiceName: "injurystore"},
			expectedErr: "OTLP endpoint is required",
		},
		{
			name:        "negative sample rate",
			config:      TracerConfig{Enabled: true, ServiceName: "injurystore", Endpoint: "localhost:4317", SampleRate: -0.1},
			expectedErr: "sample rate",
		},
		{
			name:        "sample rate above one",
			config:      TracerConfig{Enabled: true, ServiceName: "injurystore", Endpoint: "localhost:4317", SampleRate: 1.1},
			expectedErr: "sample rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTracerProvider(context.Background(), tt.config)
			if err == nil || !strings.Contains(err.Error(), tt.expectedErr) {
				t.Fatalf("expected error containing %q, got %v", tt.expectedErr, err)
			}
		})
	}
}

func TestNewTracerProvider_Enabled(t *testing.T) {
	// The gRPC client dials lazily, so no collector is needed to build the provider.
	provider, err := NewTracerProvider(context.Background(), TracerConfig{
		ServiceName:    "injurystore",
		ServiceVersion: "test",
		Environment:    "test",
		Endpoint:       "localhost:4317",
		SampleRate:     1,
		Enabled:        true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !provider.Enabled() {
		t.Fatal("expected enabled provider")
	}

	_, span := provider.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Fatal("expected a recording span")
	}
	span.End()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// Export of the buffered span may fail without a collector; shutdown must still return.
	_ = provider.Shutdown(ctx)
}
