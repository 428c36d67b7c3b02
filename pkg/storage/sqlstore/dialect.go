package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

// updateLockKey is the pg_advisory_xact_lock key serialising Store.Update
const updateLockKey int64 = 0x636d7361646d696e

var fieldNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Dialect captures the SQL differences between the supported databases
type Dialect interface {
	// Name is the database/sql driver name
	Name() string
	migrations() []string
	placeholder(n int) string
	jsonField(field string) string
	lockUpdate(ctx context.Context, tx *sql.Tx) error
	isUniqueViolation(err error) bool
}

// Postgres is the lib/pq dialect
var Postgres Dialect = postgresDialect{}

// SQLite is the go-sqlite3 dialect
var SQLite Dialect = sqliteDialect{}

// DialectFor returns the dialect registered for driver
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			created_at BIGINT NOT NULL,
			data JSONB NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_created_idx ON documents (collection, created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS doc_unique (
			collection TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			id TEXT NOT NULL,
			PRIMARY KEY (collection, field, value)
		)`,
		`CREATE INDEX IF NOT EXISTS doc_unique_owner_idx ON doc_unique (collection, id)`,
	}
}

func (postgresDialect) placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) jsonField(field string) string {
	return fmt.Sprintf("data->>'%s'", field)
}

func (postgresDialect) lockUpdate(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, updateLockKey)
	return err
}

func (postgresDialect) isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

type sqliteDialect struct{}

func (sqliteDialect) Name() string { return "sqlite3" }

func (sqliteDialect) migrations() []string {
	return []string{
		`CREATE TABLE IF NOT EXISTS documents (
			collection TEXT NOT NULL,
			id TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			data TEXT NOT NULL,
			PRIMARY KEY (collection, id)
		)`,
		`CREATE INDEX IF NOT EXISTS documents_created_idx ON documents (collection, created_at DESC, id DESC)`,
		`CREATE TABLE IF NOT EXISTS doc_unique (
			collection TEXT NOT NULL,
			field TEXT NOT NULL,
			value TEXT NOT NULL,
			id TEXT NOT NULL,
			PRIMARY KEY (collection, field, value)
		)`,
		`CREATE INDEX IF NOT EXISTS doc_unique_owner_idx ON doc_unique (collection, id)`,
	}
}

func (sqliteDialect) placeholder(int) string { return "?" }

func (sqliteDialect) jsonField(field string) string {
	return fmt.Sprintf("json_extract(data, '$.%s')", field)
}

// SQLite transactions are opened with _txlock=immediate and the pool holds a
// single connection, so no extra lock is needed.
func (sqliteDialect) lockUpdate(context.Context, *sql.Tx) error { return nil }

func (sqliteDialect) isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}
