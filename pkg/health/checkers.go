package health

import (
	"context"
	"time"

	"github.com/nimburion/injurystore/pkg/resilience"
	"github.com/nimburion/injurystore/pkg/store"
)

const defaultCheckTimeout = 5 * time.Second

// StoreChecker checks a key-value backend with store.HealthCheck. Backends
// without a health check always report healthy.
type StoreChecker struct {
	name    string
	store   store.Store
	timeout time.Duration
}

// NewStoreChecker creates a StoreChecker. A zero timeout means 5s.
func NewStoreChecker(name string, s store.Store, timeout time.Duration) *StoreChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &StoreChecker{name: name, store: s, timeout: timeout}
}

// Name returns the checker name.
func (c *StoreChecker) Name() string { return c.name }

// Check pings the backend within the checker timeout.
func (c *StoreChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := store.HealthCheck(ctx, c.store)
	res := CheckResult{Name: c.name, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}
	res.Status = StatusHealthy
	res.Message = "OK"
	return res
}

// BreakerChecker reports degraded while a circuit breaker is not closed.
type BreakerChecker struct {
	name    string
	breaker *resilience.CircuitBreaker
}

// NewBreakerChecker creates a BreakerChecker.
func NewBreakerChecker(name string, breaker *resilience.CircuitBreaker) *BreakerChecker {
	return &BreakerChecker{name: name, breaker: breaker}
}

// Name returns the checker name.
func (c *BreakerChecker) Name() string { return c.name }

// Check never blocks.
func (c *BreakerChecker) Check(context.Context) CheckResult {
	state := c.breaker.State()
	res := CheckResult{Name: c.name, Message: "circuit " + state.String()}
	if state == resilience.StateClosed {
		res.Status = StatusHealthy
	} else {
		res.Status = StatusDegraded
	}
	return res
}

// Pinger is anything with a connectivity check, e.g. an event publisher.
type Pinger interface {
	HealthCheck(ctx context.Context) error
}

// PingChecker reports unhealthy when HealthCheck fails within the timeout.
type PingChecker struct {
	name    string
	target  Pinger
	timeout time.Duration
}

// NewPingChecker creates a PingChecker. A zero timeout means 5s.
func NewPingChecker(name string, target Pinger, timeout time.Duration) *PingChecker {
	if timeout <= 0 {
		timeout = defaultCheckTimeout
	}
	return &PingChecker{name: name, target: target, timeout: timeout}
}

// Name returns the checker name.
func (c *PingChecker) Name() string { return c.name }

// Check runs the target's health check.
func (c *PingChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	err := c.target.HealthCheck(ctx)
	res := CheckResult{Name: c.name, Duration: time.Since(start)}
	if err != nil {
		res.Status = StatusUnhealthy
		res.Error = err.Error()
		return res
	}
	res.Status = StatusHealthy
	res.Message = "OK"
	return res
}
