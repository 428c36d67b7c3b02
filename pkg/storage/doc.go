// Package storage defines the document store behind the admin core.
//
// # Overview
//
// Admin users, roles and audit entries live in named collections of JSON
// documents. Every backend implements Store:
//
//   - MemoryStore: process-local, used by tests and single-binary demos
//   - sqlstore.Store: PostgreSQL (lib/pq) or SQLite (go-sqlite3)
//
// # Atomicity
//
// Store.Update runs a function inside one atomic transaction. Updates are
// linearizable with respect to each other, which is what the bootstrap
// check-then-create, role uniqueness and role-in-use checks rely on:
//
//	err := store.Update(ctx, func(tx storage.Tx) error {
//		n, err := tx.Count(ctx, storage.CollectionUsers, storage.Filter{"role": "super_admin"})
//		if err != nil || n > 0 {
//			return err
//		}
//		return tx.Insert(ctx, storage.CollectionUsers, rec)
//	})
//
// Returning an error from the function rolls back every write it made.
//
// # Unique indexes
//
// Schema lists the top-level string fields that must be unique per
// collection. Insert and Replace fail with ErrDuplicate when a write would
// violate one.
package storage
