// Package sqlstore implements storage.Store on PostgreSQL and SQLite.
//
// Documents live in one table keyed by (collection, id) with the JSON body in
// a data column. Unique fields from storage.Schema are mirrored into the
// doc_unique table inside the same transaction so the database primary key
// enforces them.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// Store is a SQL-backed storage.Store
type Store struct {
	db      *sql.DB
	dialect Dialect
}

var _ storage.Store = (*Store)(nil)

// Open connects to the database described by cfg and applies migrations
func Open(ctx context.Context, cfg storage.Config) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	dsn := cfg.DSN
	if dialect == SQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(dialect.Name(), dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s connection: %w", cfg.Driver, err)
	}

	if dialect == SQLite {
		// one writer at a time; also keeps in-memory databases on a single connection
		db.SetMaxOpenConns(1)
	} else {
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Driver, err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing connection pool. Callers must run Migrate themselves.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	return fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000", path)
}

// Migrate creates the document tables if they do not exist
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range s.dialect.migrations() {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// DB exposes the underlying pool
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Get(ctx context.Context, coll storage.Collection, id string) (storage.Record, error) {
	return get(ctx, s.db, s.dialect, coll, id)
}

func (s *Store) Find(ctx context.Context, coll storage.Collection, q storage.Query) ([]storage.Record, error) {
	return find(ctx, s.db, s.dialect, coll, q)
}

func (s *Store) Count(ctx context.Context, coll storage.Collection, f storage.Filter) (int, error) {
	return count(ctx, s.db, s.dialect, coll, f)
}

// Insert writes one document in its own transaction without taking the update lock
func (s *Store) Insert(ctx context.Context, coll storage.Collection, rec storage.Record) error {
	return s.inTx(ctx, false, func(tx storage.Tx) error {
		return tx.Insert(ctx, coll, rec)
	})
}

// Update runs fn in a transaction serialised against every other Update
func (s *Store) Update(ctx context.Context, fn func(tx storage.Tx) error) error {
	return s.inTx(ctx, true, fn)
}

func (s *Store) inTx(ctx context.Context, lock bool, fn func(tx storage.Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if lock {
		if err := s.dialect.lockUpdate(ctx, sqlTx); err != nil {
			sqlTx.Rollback()
			return fmt.Errorf("failed to acquire update lock: %w", err)
		}
	}

	if err := fn(&tx{tx: sqlTx, dialect: s.dialect}); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		if s.dialect.isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", storage.ErrDuplicate, err)
		}
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type tx struct {
	tx      *sql.Tx
	dialect Dialect
}

func (t *tx) Get(ctx context.Context, coll storage.Collection, id string) (storage.Record, error) {
	return get(ctx, t.tx, t.dialect, coll, id)
}

func (t *tx) Find(ctx context.Context, coll storage.Collection, q storage.Query) ([]storage.Record, error) {
	return find(ctx, t.tx, t.dialect, coll, q)
}

func (t *tx) Count(ctx context.Context, coll storage.Collection, f storage.Filter) (int, error) {
	return count(ctx, t.tx, t.dialect, coll, f)
}

func (t *tx) Insert(ctx context.Context, coll storage.Collection, rec storage.Record) error {
	if rec.ID == "" {
		return fmt.Errorf("document id is required")
	}
	b := newBuilder(t.dialect)
	query := fmt.Sprintf(`INSERT INTO documents (collection, id, created_at, data) VALUES (%s, %s, %s, %s)`,
		b.arg(string(coll)), b.arg(rec.ID), b.arg(rec.CreatedAt.UTC().UnixNano()), b.arg(string(rec.Data)))
	if _, err := t.tx.ExecContext(ctx, query, b.args...); err != nil {
		if t.dialect.isUniqueViolation(err) {
			return fmt.Errorf("%w: %s id %q", storage.ErrDuplicate, coll, rec.ID)
		}
		return fmt.Errorf("failed to insert document: %w", err)
	}
	return t.indexUnique(ctx, coll, rec)
}

func (t *tx) Replace(ctx context.Context, coll storage.Collection, rec storage.Record) error {
	b := newBuilder(t.dialect)
	query := fmt.Sprintf(`UPDATE documents SET data = %s WHERE collection = %s AND id = %s`,
		b.arg(string(rec.Data)), b.arg(string(coll)), b.arg(rec.ID))
	res, err := t.tx.ExecContext(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("failed to replace document: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}

	if err := t.dropUnique(ctx, coll, rec.ID); err != nil {
		return err
	}
	return t.indexUnique(ctx, coll, rec)
}

func (t *tx) Delete(ctx context.Context, coll storage.Collection, id string) error {
	b := newBuilder(t.dialect)
	query := fmt.Sprintf(`DELETE FROM documents WHERE collection = %s AND id = %s`, b.arg(string(coll)), b.arg(id))
	res, err := t.tx.ExecContext(ctx, query, b.args...)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	return t.dropUnique(ctx, coll, id)
}

func (t *tx) indexUnique(ctx context.Context, coll storage.Collection, rec storage.Record) error {
	fieldNames := storage.Schema[coll]
	if len(fieldNames) == 0 {
		return nil
	}
	fields, err := storage.StringFields(rec.Data)
	if err != nil {
		return err
	}

	for _, field := range fieldNames {
		value, ok := fields[field]
		if !ok {
			continue
		}
		b := newBuilder(t.dialect)
		query := fmt.Sprintf(`INSERT INTO doc_unique (collection, field, value, id) VALUES (%s, %s, %s, %s)`,
			b.arg(string(coll)), b.arg(field), b.arg(value), b.arg(rec.ID))
		if _, err := t.tx.ExecContext(ctx, query, b.args...); err != nil {
			if t.dialect.isUniqueViolation(err) {
				return fmt.Errorf("%w: %s.%s=%q", storage.ErrDuplicate, coll, field, value)
			}
			return fmt.Errorf("failed to index unique field %s: %w", field, err)
		}
	}
	return nil
}

func (t *tx) dropUnique(ctx context.Context, coll storage.Collection, id string) error {
	if len(storage.Schema[coll]) == 0 {
		return nil
	}
	b := newBuilder(t.dialect)
	query := fmt.Sprintf(`DELETE FROM doc_unique WHERE collection = %s AND id = %s`, b.arg(string(coll)), b.arg(id))
	if _, err := t.tx.ExecContext(ctx, query, b.args...); err != nil {
		return fmt.Errorf("failed to drop unique index entries: %w", err)
	}
	return nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func get(ctx context.Context, q querier, d Dialect, coll storage.Collection, id string) (storage.Record, error) {
	b := newBuilder(d)
	query := fmt.Sprintf(`SELECT id, created_at, data FROM documents WHERE collection = %s AND id = %s`,
		b.arg(string(coll)), b.arg(id))

	rec, err := scanRecord(q.QueryRowContext(ctx, query, b.args...))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Record{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Record{}, fmt.Errorf("failed to get document: %w", err)
	}
	return rec, nil
}

func find(ctx context.Context, q querier, d Dialect, coll storage.Collection, query storage.Query) ([]storage.Record, error) {
	b := newBuilder(d)
	where, err := b.where(coll, query.Filter)
	if err != nil {
		return nil, err
	}

	order := "created_at ASC, id ASC"
	if query.Newest {
		order = "created_at DESC, id DESC"
	}
	stmt := fmt.Sprintf(`SELECT id, created_at, data FROM documents WHERE %s ORDER BY %s`, where, order)
	if query.Limit > 0 {
		stmt += " LIMIT " + b.arg(query.Limit)
	}

	rows, err := q.QueryContext(ctx, stmt, b.args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var out []storage.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return out, nil
}

func count(ctx context.Context, q querier, d Dialect, coll storage.Collection, f storage.Filter) (int, error) {
	b := newBuilder(d)
	where, err := b.where(coll, f)
	if err != nil {
		return 0, err
	}

	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents WHERE `+where, b.args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (storage.Record, error) {
	var (
		rec     storage.Record
		created int64
		data    []byte
	)
	if err := row.Scan(&rec.ID, &created, &data); err != nil {
		return storage.Record{}, err
	}
	rec.CreatedAt = time.Unix(0, created).UTC()
	rec.Data = data
	return rec, nil
}

// builder accumulates positional arguments for a single statement
type builder struct {
	dialect Dialect
	args    []interface{}
}

func newBuilder(d Dialect) *builder {
	return &builder{dialect: d}
}

func (b *builder) arg(v interface{}) string {
	b.args = append(b.args, v)
	return b.dialect.placeholder(len(b.args))
}

func (b *builder) where(coll storage.Collection, f storage.Filter) (string, error) {
	clauses := []string{"collection = " + b.arg(string(coll))}

	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if !fieldNameRe.MatchString(k) {
			return "", fmt.Errorf("invalid filter field %q", k)
		}
		clauses = append(clauses, fmt.Sprintf("%s = %s", b.dialect.jsonField(k), b.arg(f[k])))
	}
	return strings.Join(clauses, " AND "), nil
}
