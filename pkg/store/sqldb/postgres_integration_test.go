package sqldb

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/nimburion/injurystore/pkg/store"
	"github.com/nimburion/injurystore/pkg/testutil"
)

// TestPostgres_Integration runs the upsert dialect against a real PostgreSQL.
func TestPostgres_Integration(t *testing.T) {
	testutil.RequireContainers(t)

	ctx := context.Background()
	container, err := tcpostgres.Run(ctx,
		"postgres:17-alpine",
		tcpostgres.WithDatabase("injuries"),
		tcpostgres.WithUsername("injury"),
		tcpostgres.WithPassword("injury"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}

	a, err := NewAdapter(Config{Dialect: DialectPostgres, DSN: dsn, MaxOpenConns: 4, MaxIdleConns: 2}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewAdapter: %v", err)
	}
	defer a.Close()

	if err := a.Set(ctx, "injuries", `[{"id":1}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := a.Set(ctx, "injuries", `[{"id":1},{"id":2}]`); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	got, err := a.Get(ctx, "injuries")
	if err != nil || got != `[{"id":1},{"id":2}]` {
		t.Fatalf("get = %q, %v", got, err)
	}
	if err := a.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, err := a.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
	if err := a.HealthCheck(ctx); err != nil {
		t.Fatalf("health check: %v", err)
	}
}
