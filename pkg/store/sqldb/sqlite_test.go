package sqldb

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/nimburion/injurystore/pkg/store"
)

func TestSQLite_RoundTripAndDurability(t *testing.T) {
	ctx := context.Background()
	dsn := filepath.Join(t.TempDir(), "injuries.db")

	a, err := NewAdapter(Config{Dialect: DialectSQLite, DSN: dsn}, &mockLogger{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if _, err := a.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on empty table, got %v", err)
	}
	if err := a.Set(ctx, "injuries", `[{"id":1,"part":"ankle"}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := a.Set(ctx, "injuries", `[{"id":2,"part":"knee"}]`); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := a.HealthCheck(ctx); err != nil {
		t.Fatalf("health check: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewAdapter(Config{Dialect: DialectSQLite, DSN: dsn}, &mockLogger{})
	if err != nil {
		t.Fatalf("reopen sqlite: %v", err)
	}
	defer reopened.Close()

	got, err := reopened.Get(ctx, "injuries")
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if got != `[{"id":2,"part":"knee"}]` {
		t.Fatalf("unexpected value after reopen %q", got)
	}

	var rows int
	if err := reopened.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM kv_store`).Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected upsert to keep one row, got %d", rows)
	}

	if err := reopened.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := reopened.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("remove absent key: %v", err)
	}
	if _, err := reopened.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}
