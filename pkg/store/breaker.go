package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/nimburion/injurystore/pkg/resilience"
)

type breakerStore struct {
	next    Store
	breaker *resilience.CircuitBreaker
}

// WithCircuitBreaker wraps next so that calls fail fast with an error
// wrapping resilience.ErrCircuitOpen while the breaker is open. Misses
// (ErrNotFound) and caller cancellations do not count as failures when the
// breaker was built with CountsAsFailure.
func WithCircuitBreaker(next Store, breaker *resilience.CircuitBreaker) Store {
	return &breakerStore{next: next, breaker: breaker}
}

// CountsAsFailure is the resilience.Settings.IsFailure used for key-value backends.
func CountsAsFailure(err error) bool {
	return err != nil && !errors.Is(err, ErrNotFound) && !errors.Is(err, context.Canceled)
}

func (b *breakerStore) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := b.breaker.Execute(func() error {
		var err error
		value, err = b.next.Get(ctx, key)
		return err
	})
	return value, b.wrap("get", key, err)
}

func (b *breakerStore) Set(ctx context.Context, key, value string) error {
	err := b.breaker.Execute(func() error { return b.next.Set(ctx, key, value) })
	return b.wrap("set", key, err)
}

func (b *breakerStore) Remove(ctx context.Context, key string) error {
	err := b.breaker.Execute(func() error { return b.next.Remove(ctx, key) })
	return b.wrap("remove", key, err)
}

func (b *breakerStore) Close() error {
	return b.next.Close()
}

// HealthCheck bypasses the breaker so probes always reach the backend.
func (b *breakerStore) HealthCheck(ctx context.Context) error {
	return HealthCheck(ctx, b.next)
}

func (b *breakerStore) wrap(op, key string, err error) error {
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return fmt.Errorf("%s %q: %w", op, key, err)
	}
	return err
}
