package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Collection names a set of documents
type Collection string

const (
	CollectionUsers Collection = "admin_users"
	CollectionRoles Collection = "admin_roles"
	CollectionLogs  Collection = "admin_logs"
)

// Schema maps each collection to its unique top-level string fields
var Schema = map[Collection][]string{
	CollectionUsers: {"username"},
	CollectionRoles: {"name"},
}

var (
	// ErrNotFound is returned when a document id does not exist
	ErrNotFound = errors.New("storage: document not found")
	// ErrDuplicate is returned when an id or unique field already exists
	ErrDuplicate = errors.New("storage: duplicate document")
)

// Record is a stored document. ID and CreatedAt are indexed; Data is the
// JSON document itself.
type Record struct {
	ID        string
	CreatedAt time.Time
	Data      json.RawMessage
}

// Filter matches documents whose top-level string fields equal the given values
type Filter map[string]string

// Query selects documents from a collection
type Query struct {
	Filter Filter
	// Limit caps the number of results; zero means unlimited
	Limit int
	// Newest orders by CreatedAt descending then ID descending.
	// Otherwise results are oldest first.
	Newest bool
}

// Reader is the read side shared by Store and Tx
type Reader interface {
	Get(ctx context.Context, coll Collection, id string) (Record, error)
	Find(ctx context.Context, coll Collection, q Query) ([]Record, error)
	Count(ctx context.Context, coll Collection, f Filter) (int, error)
}

// Tx is the handle passed to Store.Update
type Tx interface {
	Reader
	Insert(ctx context.Context, coll Collection, rec Record) error
	Replace(ctx context.Context, coll Collection, rec Record) error
	Delete(ctx context.Context, coll Collection, id string) error
}

// Store is the credential store contract
type Store interface {
	Reader

	// Insert writes a single document outside of an explicit transaction
	Insert(ctx context.Context, coll Collection, rec Record) error

	// Update runs fn atomically. Updates never interleave with each other.
	Update(ctx context.Context, fn func(tx Tx) error) error

	Ping(ctx context.Context) error
	Close() error
}

// NewRecord marshals v into a record
func NewRecord(id string, createdAt time.Time, v interface{}) (Record, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Record{}, fmt.Errorf("failed to encode document %s: %w", id, err)
	}
	return Record{ID: id, CreatedAt: createdAt.UTC(), Data: data}, nil
}

// Decode unmarshals the record's document into v
func (r Record) Decode(v interface{}) error {
	if err := json.Unmarshal(r.Data, v); err != nil {
		return fmt.Errorf("failed to decode document %s: %w", r.ID, err)
	}
	return nil
}

// DecodeAll decodes every record into a value of type T
func DecodeAll[T any](records []Record) ([]T, error) {
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := rec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// StringFields extracts the top-level string fields of a JSON document.
// Non-string values are skipped.
func StringFields(data json.RawMessage) (map[string]string, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			out[k] = s
		}
	}
	return out, nil
}

// Matches reports whether fields satisfy every condition of f
func (f Filter) Matches(fields map[string]string) bool {
	for k, want := range f {
		got, ok := fields[k]
		if !ok || got != want {
			return false
		}
	}
	return true
}

// Config selects and tunes the storage backend
type Config struct {
	// Driver is "memory", "sqlite" or "postgres"
	Driver string `yaml:"driver"`
	// DSN is a lib/pq connection string or a SQLite file path
	DSN string `yaml:"dsn"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Driver:          "sqlite",
		DSN:             "cmsadmin.db",
		MaxOpenConns:    20,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}
