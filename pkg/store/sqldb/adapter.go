// Package sqldb stores key-value pairs in a single SQL table. SQLite, PostgreSQL
// and MySQL are supported; the table is created on first connect.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store"
)

const defaultTable = "kv_store"

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// Config holds SQL connection configuration.
type Config struct {
	Dialect         Dialect
	DSN             string
	Table           string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	QueryTimeout    time.Duration
}

// Adapter implements store.Store over database/sql.
type Adapter struct {
	db      *sql.DB
	logger  logger.Logger
	dialect Dialect
	table   string
	stmts   statements
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewAdapter opens the database, verifies it with a ping and ensures the table exists.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	if _, err := ParseDialect(string(cfg.Dialect)); err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Dialect.driverName(), cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", cfg.Dialect, err)
	}

	if cfg.Dialect == DialectSQLite {
		// a single writer avoids SQLITE_BUSY and keeps :memory: databases on one connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", cfg.Dialect, err)
	}

	a, err := NewFromDB(db, cfg, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := a.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	log.Info("SQL key-value store ready",
		"dialect", string(cfg.Dialect),
		"table", a.table,
		"max_open_conns", cfg.MaxOpenConns,
	)
	return a, nil
}

// NewFromDB wraps an open database handle. The schema is not touched.
func NewFromDB(db *sql.DB, cfg Config, log logger.Logger) (*Adapter, error) {
	dialect, err := ParseDialect(string(cfg.Dialect))
	if err != nil {
		return nil, err
	}
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{
		db:      db,
		logger:  log,
		dialect: dialect,
		table:   table,
		stmts:   dialect.statements(table),
		timeout: timeout,
	}, nil
}

// EnsureSchema creates the key-value table if it does not exist.
func (a *Adapter) EnsureSchema(ctx context.Context) error {
	ctx, cancel := a.withQueryTimeout(ctx)
	defer cancel()
	if _, err := a.db.ExecContext(ctx, a.stmts.createTable); err != nil {
		return fmt.Errorf("failed to create table %s: %w", a.table, err)
	}
	return nil
}

// DB exposes the underlying handle.
func (a *Adapter) DB() *sql.DB {
	return a.db
}

func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	if err := a.ensureOpen(); err != nil {
		return "", err
	}
	ctx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	var value string
	err := a.db.QueryRowContext(ctx, a.stmts.selectValue, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

func (a *Adapter) Set(ctx context.Context, key, value string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	if _, err := a.db.ExecContext(ctx, a.stmts.upsert, key, value, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	ctx, cancel := a.withQueryTimeout(ctx)
	defer cancel()

	if _, err := a.db.ExecContext(ctx, a.stmts.deleteKey, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// HealthCheck verifies the database is reachable.
func (a *Adapter) HealthCheck(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.db.PingContext(hcCtx); err != nil {
		a.logger.Error("SQL health check failed", "dialect", string(a.dialect), "error", err)
		return fmt.Errorf("%s health check failed: %w", a.dialect, err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	a.mu.Unlock()

	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close SQL connection", "dialect", string(a.dialect), "error", err)
		return fmt.Errorf("failed to close %s connection: %w", a.dialect, err)
	}
	a.logger.Info("SQL connection closed", "dialect", string(a.dialect))
	return nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return store.ErrClosed
	}
	return nil
}

func (a *Adapter) withQueryTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
