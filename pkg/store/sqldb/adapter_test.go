package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store"
)

type mockLogger struct{}

func (m *mockLogger) Debug(string, ...any)                      {}
func (m *mockLogger) Info(string, ...any)                       {}
func (m *mockLogger) Warn(string, ...any)                       {}
func (m *mockLogger) Error(string, ...any)                      {}
func (m *mockLogger) With(...any) logger.Logger                 { return m }
func (m *mockLogger) WithContext(context.Context) logger.Logger { return m }

func newMockAdapter(t *testing.T, dialect Dialect) (*Adapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	a, err := NewFromDB(db, Config{Dialect: dialect, Table: "kv_store"}, &mockLogger{})
	if err != nil {
		t.Fatalf("NewFromDB: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return a, mock
}

func TestNewAdapter_Validation(t *testing.T) {
	if _, err := NewAdapter(Config{Dialect: DialectPostgres}, &mockLogger{}); err == nil {
		t.Fatal("expected error for empty DSN")
	}
	if _, err := NewAdapter(Config{Dialect: "oracle", DSN: "x"}, &mockLogger{}); err == nil {
		t.Fatal("expected error for unsupported dialect")
	}
}

func TestNewFromDB_RejectsUnsafeTableName(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	defer db.Close()
	if _, err := NewFromDB(db, Config{Dialect: DialectMySQL, Table: "kv; DROP TABLE users"}, &mockLogger{}); err == nil {
		t.Fatal("expected error for unsafe table name")
	}
}

func TestParseDialect(t *testing.T) {
	tests := map[string]Dialect{
		"sqlite":     DialectSQLite,
		"SQLite3":    DialectSQLite,
		"postgresql": DialectPostgres,
		"postgres":   DialectPostgres,
		"mariadb":    DialectMySQL,
		" mysql ":    DialectMySQL,
	}
	for in, want := range tests {
		got, err := ParseDialect(in)
		if err != nil || got != want {
			t.Errorf("ParseDialect(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseDialect("mssql"); err == nil {
		t.Fatal("expected error for unknown dialect")
	}
}

func TestPostgres_Statements(t *testing.T) {
	a, mock := newMockAdapter(t, DialectPostgres)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`CREATE TABLE IF NOT EXISTS kv_store`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_store (key_name, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key_name) DO UPDATE SET value = EXCLUDED.value`)).
		WithArgs("injuries", `[{"id":1}]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key_name = $1`)).
		WithArgs("injuries").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(`[{"id":1}]`))
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM kv_store WHERE key_name = $1`)).
		WithArgs("injuries").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := a.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if err := a.Set(ctx, "injuries", `[{"id":1}]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := a.Get(ctx, "injuries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != `[{"id":1}]` {
		t.Fatalf("unexpected value %q", got)
	}
	if err := a.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestMySQL_Statements(t *testing.T) {
	a, mock := newMockAdapter(t, DialectMySQL)
	ctx := context.Background()

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO kv_store (key_name, value, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value)`)).
		WithArgs("injuries", `[]`, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store WHERE key_name = ?`)).
		WithArgs("injuries").
		WillReturnError(sql.ErrNoRows)

	if err := a.Set(ctx, "injuries", `[]`); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := a.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}

func TestGet_DriverErrorIsWrapped(t *testing.T) {
	a, mock := newMockAdapter(t, DialectPostgres)
	boom := errors.New("connection reset")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT value FROM kv_store`)).WillReturnError(boom)

	_, err := a.Get(context.Background(), "injuries")
	if !errors.Is(err, boom) || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected wrapped driver error, got %v", err)
	}
}

func TestClosePreventsSubsequentOperations(t *testing.T) {
	a, mock := newMockAdapter(t, DialectMySQL)
	mock.ExpectClose()
	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := a.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	if err := a.Set(context.Background(), "injuries", "[]"); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if err := a.HealthCheck(context.Background()); !errors.Is(err, store.ErrClosed) {
		t.Fatalf("expected ErrClosed from health check, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sqlmock expectations: %v", err)
	}
}
