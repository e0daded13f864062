// Package store defines the key-value persistence boundary used by the injury
// store, together with an in-process implementation and instrumentation
// decorators. Networked and file-backed implementations live in sub-packages.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Get when the key holds no value.
	ErrNotFound = errors.New("key not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store is closed")
)

// Store is a whole-value key-value store. Values are opaque strings and there
// is no partial-update primitive: callers read, modify and write back.
type Store interface {
	// Get returns the value at key, or ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	// Set writes value at key, replacing any previous value.
	Set(ctx context.Context, key, value string) error
	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
	Close() error
}

// HealthChecker is implemented by stores that can verify backend connectivity.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// HealthCheck runs s.HealthCheck when s supports it and reports nil otherwise.
func HealthCheck(ctx context.Context, s Store) error {
	if hc, ok := s.(HealthChecker); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// IsNotFound reports whether err means the key was absent.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
