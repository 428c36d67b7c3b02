package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

type memDoc struct {
	rec    Record
	fields map[string]string
}

// MemoryStore keeps documents in process memory. Update holds a global
// write lock for its whole duration.
type MemoryStore struct {
	mu     sync.RWMutex
	colls  map[Collection]map[string]memDoc
	closed bool
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{colls: make(map[Collection]map[string]memDoc)}
}

func (s *MemoryStore) Get(ctx context.Context, coll Collection, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.get(coll, id)
}

func (s *MemoryStore) Find(ctx context.Context, coll Collection, q Query) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.find(coll, q), nil
}

func (s *MemoryStore) Count(ctx context.Context, coll Collection, f Filter) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.find(coll, Query{Filter: f})), nil
}

func (s *MemoryStore) Insert(ctx context.Context, coll Collection, rec Record) error {
	return s.Update(ctx, func(tx Tx) error {
		return tx.Insert(ctx, coll, rec)
	})
}

// Update runs fn under the write lock and undoes its writes if it fails
func (s *MemoryStore) Update(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return fmt.Errorf("memory store is closed")
	}
	return nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) get(coll Collection, id string) (Record, error) {
	doc, ok := s.colls[coll][id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(doc.rec), nil
}

func (s *MemoryStore) find(coll Collection, q Query) []Record {
	var out []Record
	for _, doc := range s.colls[coll] {
		if q.Filter.Matches(doc.fields) {
			out = append(out, copyRecord(doc.rec))
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if q.Newest {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if q.Newest {
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})

	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// uniqueOwner returns the id holding value for a unique field, if any
func (s *MemoryStore) uniqueOwner(coll Collection, field, value string) (string, bool) {
	for id, doc := range s.colls[coll] {
		if doc.fields[field] == value {
			return id, true
		}
	}
	return "", false
}

func (s *MemoryStore) checkUnique(coll Collection, id string, fields map[string]string) error {
	for _, field := range Schema[coll] {
		value, ok := fields[field]
		if !ok {
			continue
		}
		if owner, taken := s.uniqueOwner(coll, field, value); taken && owner != id {
			return fmt.Errorf("%w: %s.%s=%q", ErrDuplicate, coll, field, value)
		}
	}
	return nil
}

func copyRecord(rec Record) Record {
	data := make([]byte, len(rec.Data))
	copy(data, rec.Data)
	rec.Data = data
	return rec
}

type undo struct {
	coll Collection
	id   string
	prev *memDoc
}

type memTx struct {
	store *MemoryStore
	log   []undo
}

func (tx *memTx) Get(ctx context.Context, coll Collection, id string) (Record, error) {
	return tx.store.get(coll, id)
}

func (tx *memTx) Find(ctx context.Context, coll Collection, q Query) ([]Record, error) {
	return tx.store.find(coll, q), nil
}

func (tx *memTx) Count(ctx context.Context, coll Collection, f Filter) (int, error) {
	return len(tx.store.find(coll, Query{Filter: f})), nil
}

func (tx *memTx) Insert(ctx context.Context, coll Collection, rec Record) error {
	if rec.ID == "" {
		return fmt.Errorf("document id is required")
	}
	if _, exists := tx.store.colls[coll][rec.ID]; exists {
		return fmt.Errorf("%w: %s id %q", ErrDuplicate, coll, rec.ID)
	}
	return tx.put(coll, rec)
}

func (tx *memTx) Replace(ctx context.Context, coll Collection, rec Record) error {
	existing, ok := tx.store.colls[coll][rec.ID]
	if !ok {
		return ErrNotFound
	}
	rec.CreatedAt = existing.rec.CreatedAt
	return tx.put(coll, rec)
}

func (tx *memTx) Delete(ctx context.Context, coll Collection, id string) error {
	existing, ok := tx.store.colls[coll][id]
	if !ok {
		return ErrNotFound
	}
	tx.log = append(tx.log, undo{coll: coll, id: id, prev: &existing})
	delete(tx.store.colls[coll], id)
	return nil
}

func (tx *memTx) put(coll Collection, rec Record) error {
	fields, err := StringFields(rec.Data)
	if err != nil {
		return err
	}
	if err := tx.store.checkUnique(coll, rec.ID, fields); err != nil {
		return err
	}

	docs, ok := tx.store.colls[coll]
	if !ok {
		docs = make(map[string]memDoc)
		tx.store.colls[coll] = docs
	}

	u := undo{coll: coll, id: rec.ID}
	if prev, exists := docs[rec.ID]; exists {
		u.prev = &prev
	}
	tx.log = append(tx.log, u)

	docs[rec.ID] = memDoc{rec: copyRecord(rec), fields: fields}
	return nil
}

func (tx *memTx) rollback() {
	for i := len(tx.log) - 1; i >= 0; i-- {
		u := tx.log[i]
		if u.prev == nil {
			delete(tx.store.colls[u.coll], u.id)
			continue
		}
		tx.store.colls[u.coll][u.id] = *u.prev
	}
}
