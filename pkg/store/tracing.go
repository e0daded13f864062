package store

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/nimburion/injurystore/pkg/store"

type tracedStore struct {
	next    Store
	backend string
	tracer  trace.Tracer
}

// WithTracing wraps next so that every operation runs in a client span.
// A nil provider uses the global OpenTelemetry tracer provider.
func WithTracing(next Store, backend string, provider trace.TracerProvider) Store {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &tracedStore{next: next, backend: backend, tracer: provider.Tracer(tracerName)}
}

func (t *tracedStore) Get(ctx context.Context, key string) (string, error) {
	ctx, span := t.start(ctx, "kv.get", key)
	defer span.End()
	value, err := t.next.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		span.SetAttributes(attribute.Bool("kv.hit", false))
		return value, err
	}
	if err == nil {
		span.SetAttributes(attribute.Bool("kv.hit", true), attribute.Int("kv.value_size", len(value)))
	}
	record(span, err)
	return value, err
}

func (t *tracedStore) Set(ctx context.Context, key, value string) error {
	ctx, span := t.start(ctx, "kv.set", key)
	defer span.End()
	span.SetAttributes(attribute.Int("kv.value_size", len(value)))
	err := t.next.Set(ctx, key, value)
	record(span, err)
	return err
}

func (t *tracedStore) Remove(ctx context.Context, key string) error {
	ctx, span := t.start(ctx, "kv.remove", key)
	defer span.End()
	err := t.next.Remove(ctx, key)
	record(span, err)
	return err
}

func (t *tracedStore) Close() error {
	return t.next.Close()
}

func (t *tracedStore) HealthCheck(ctx context.Context) error {
	return HealthCheck(ctx, t.next)
}

func (t *tracedStore) start(ctx context.Context, name, key string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", t.backend),
			attribute.String("kv.key", key),
		),
	)
}

func record(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
