package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "injurystore_kv_operations_total",
			Help: "Total key-value operations by backend, operation and result.",
		},
		[]string{"backend", "operation", "result"},
	)
	operationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "injurystore_kv_operation_duration_seconds",
			Help:    "Key-value operation latency in seconds.",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"backend", "operation"},
	)
)

// Collectors returns the key-value metrics for registration in a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{operationsTotal, operationDurationSeconds}
}

// Metric result label values.
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultError    = "error"
)

type meteredStore struct {
	next    Store
	backend string
}

// WithMetrics wraps next so that every operation is counted and timed under
// the given backend label.
func WithMetrics(next Store, backend string) Store {
	return &meteredStore{next: next, backend: backend}
}

func (m *meteredStore) Get(ctx context.Context, key string) (string, error) {
	start := time.Now()
	value, err := m.next.Get(ctx, key)
	m.observe("get", start, err)
	return value, err
}

func (m *meteredStore) Set(ctx context.Context, key, value string) error {
	start := time.Now()
	err := m.next.Set(ctx, key, value)
	m.observe("set", start, err)
	return err
}

func (m *meteredStore) Remove(ctx context.Context, key string) error {
	start := time.Now()
	err := m.next.Remove(ctx, key)
	m.observe("remove", start, err)
	return err
}

func (m *meteredStore) Close() error {
	return m.next.Close()
}

func (m *meteredStore) HealthCheck(ctx context.Context) error {
	return HealthCheck(ctx, m.next)
}

func (m *meteredStore) observe(operation string, start time.Time, err error) {
	result := ResultOK
	switch {
	case errors.Is(err, ErrNotFound):
		result = ResultNotFound
	case err != nil:
		result = ResultError
	}
	operationsTotal.WithLabelValues(m.backend, operation, result).Inc()
	operationDurationSeconds.WithLabelValues(m.backend, operation).Observe(time.Since(start).Seconds())
}
