package sqlstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/storage"
	"github.com/platinummonkey/cmsadmin/pkg/storage/storagetest"
)

func openSQLite(t *testing.T) *Store {
	t.Helper()
	cfg := storage.DefaultConfig()
	cfg.Driver = "sqlite"
	cfg.DSN = filepath.Join(t.TempDir(), "cmsadmin.db")

	s, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storagetest.Run(t, func(t *testing.T) storage.Store {
		return openSQLite(t)
	})
}

func TestSQLiteStore_MigrateIsIdempotent(t *testing.T) {
	s := openSQLite(t)
	assert.NoError(t, s.Migrate(context.Background()))
}

func TestSQLiteStore_ReplaceMovesUniqueValue(t *testing.T) {
	ctx := context.Background()
	s := openSQLite(t)
	now := time.Now()

	first, err := storage.NewRecord("u1", now, map[string]string{"username": "alice"})
	require.NoError(t, err)
	require.NoError(t, s.Insert(ctx, storage.CollectionUsers, first))

	renamed, err := storage.NewRecord("u1", now, map[string]string{"username": "alicia"})
	require.NoError(t, err)
	require.NoError(t, s.Update(ctx, func(tx storage.Tx) error {
		return tx.Replace(ctx, storage.CollectionUsers, renamed)
	}))

	// the old value is free again, the new one is taken
	reuse, err := storage.NewRecord("u2", now, map[string]string{"username": "alice"})
	require.NoError(t, err)
	assert.NoError(t, s.Insert(ctx, storage.CollectionUsers, reuse))

	clash, err := storage.NewRecord("u3", now, map[string]string{"username": "alicia"})
	require.NoError(t, err)
	assert.ErrorIs(t, s.Insert(ctx, storage.CollectionUsers, clash), storage.ErrDuplicate)
}

func TestDialectFor(t *testing.T) {
	d, err := DialectFor("postgres")
	require.NoError(t, err)
	assert.Equal(t, Postgres, d)

	d, err = DialectFor("sqlite")
	require.NoError(t, err)
	assert.Equal(t, SQLite, d)

	_, err = DialectFor("mysql")
	assert.Error(t, err)
}

func TestSQLiteDSN(t *testing.T) {
	assert.Equal(t, "file:/tmp/a.db?_txlock=immediate&_busy_timeout=5000", sqliteDSN("/tmp/a.db"))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN("file::memory:?cache=shared"))
}
