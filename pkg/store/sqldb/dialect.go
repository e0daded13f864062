package sqldb

import (
	"fmt"
	"strings"
)

// Dialect selects the SQL driver and statement flavour.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// ParseDialect accepts the dialect names used in configuration.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	default:
		return "", fmt.Errorf("unsupported sql dialect %q", name)
	}
}

// driverName is the database/sql driver registered for the dialect.
func (d Dialect) driverName() string {
	return string(d)
}

type statements struct {
	createTable string
	selectValue string
	upsert      string
	deleteKey   string
}

func (d Dialect) statements(table string) statements {
	switch d {
	case DialectPostgres:
		return statements{
			createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key_name   TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
)`, table),
			selectValue: fmt.Sprintf(`SELECT value FROM %s WHERE key_name = $1`, table),
			upsert: fmt.Sprintf(`INSERT INTO %s (key_name, value, updated_at) VALUES ($1, $2, $3)
ON CONFLICT (key_name) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`, table),
			deleteKey: fmt.Sprintf(`DELETE FROM %s WHERE key_name = $1`, table),
		}
	case DialectMySQL:
		return statements{
			createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key_name   VARCHAR(255) NOT NULL PRIMARY KEY,
	value      LONGTEXT NOT NULL,
	updated_at DATETIME(6) NOT NULL
)`, table),
			selectValue: fmt.Sprintf(`SELECT value FROM %s WHERE key_name = ?`, table),
			upsert: fmt.Sprintf(`INSERT INTO %s (key_name, value, updated_at) VALUES (?, ?, ?)
ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = VALUES(updated_at)`, table),
			deleteKey: fmt.Sprintf(`DELETE FROM %s WHERE key_name = ?`, table),
		}
	default:
		return statements{
			createTable: fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	key_name   TEXT PRIMARY KEY,
	value      TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
)`, table),
			selectValue: fmt.Sprintf(`SELECT value FROM %s WHERE key_name = ?`, table),
			upsert: fmt.Sprintf(`INSERT INTO %s (key_name, value, updated_at) VALUES (?, ?, ?)
ON CONFLICT (key_name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, table),
			deleteKey: fmt.Sprintf(`DELETE FROM %s WHERE key_name = ?`, table),
		}
	}
}
