// Package storagetest holds the behavioural tests every storage.Store backend must pass.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

type doc struct {
	ID       string `json:"id"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role,omitempty"`
	Active   bool   `json:"isActive"`
}

func record(t *testing.T, id string, at time.Time, v doc) storage.Record {
	t.Helper()
	v.ID = id
	rec, err := storage.NewRecord(id, at, v)
	require.NoError(t, err)
	return rec
}

// Run executes the contract suite. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) storage.Store) {
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("insert and get", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, storage.CollectionUsers, record(t, "u1", base, doc{Username: "alice", Role: "admin"})))

		got, err := s.Get(ctx, storage.CollectionUsers, "u1")
		require.NoError(t, err)
		assert.Equal(t, "u1", got.ID)
		assert.True(t, base.Equal(got.CreatedAt))

		var d doc
		require.NoError(t, got.Decode(&d))
		assert.Equal(t, "alice", d.Username)

		_, err = s.Get(ctx, storage.CollectionUsers, "missing")
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("unique index", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, storage.CollectionRoles, record(t, "r1", base, doc{Name: "editor"})))

		err := s.Insert(ctx, storage.CollectionRoles, record(t, "r2", base, doc{Name: "editor"}))
		assert.ErrorIs(t, err, storage.ErrDuplicate)

		err = s.Insert(ctx, storage.CollectionRoles, record(t, "r1", base, doc{Name: "other"}))
		assert.ErrorIs(t, err, storage.ErrDuplicate)

		// unique fields are per collection
		require.NoError(t, s.Insert(ctx, storage.CollectionUsers, record(t, "u1", base, doc{Name: "editor"})))
	})

	t.Run("find filter order limit", func(t *testing.T) {
		s := newStore(t)
		for i := 0; i < 5; i++ {
			role := "admin"
			if i%2 == 0 {
				role = "seo_manager"
			}
			id := fmt.Sprintf("u%d", i)
			require.NoError(t, s.Insert(ctx, storage.CollectionUsers,
				record(t, id, base.Add(time.Duration(i)*time.Minute), doc{Username: id, Role: role})))
		}

		newest, err := s.Find(ctx, storage.CollectionUsers, storage.Query{Newest: true, Limit: 2})
		require.NoError(t, err)
		require.Len(t, newest, 2)
		assert.Equal(t, "u4", newest[0].ID)
		assert.Equal(t, "u3", newest[1].ID)

		oldest, err := s.Find(ctx, storage.CollectionUsers, storage.Query{Filter: storage.Filter{"role": "seo_manager"}})
		require.NoError(t, err)
		require.Len(t, oldest, 3)
		assert.Equal(t, "u0", oldest[0].ID)
		assert.Equal(t, "u4", oldest[2].ID)

		n, err := s.Count(ctx, storage.CollectionUsers, storage.Filter{"role": "admin"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("same timestamp ties break on id", func(t *testing.T) {
		s := newStore(t)
		for _, id := range []string{"a", "c", "b"} {
			require.NoError(t, s.Insert(ctx, storage.CollectionLogs, record(t, id, base, doc{})))
		}
		got, err := s.Find(ctx, storage.CollectionLogs, storage.Query{Newest: true})
		require.NoError(t, err)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"c", "b", "a"}, []string{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("update commits", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, storage.CollectionUsers, record(t, "u1", base, doc{Username: "alice", Role: "admin"})))

		err := s.Update(ctx, func(tx storage.Tx) error {
			if err := tx.Replace(ctx, storage.CollectionUsers, record(t, "u1", base.Add(time.Hour), doc{Username: "alice", Role: "seo_manager"})); err != nil {
				return err
			}
			return tx.Insert(ctx, storage.CollectionUsers, record(t, "u2", base, doc{Username: "bob"}))
		})
		require.NoError(t, err)

		got, err := s.Get(ctx, storage.CollectionUsers, "u1")
		require.NoError(t, err)
		var d doc
		require.NoError(t, got.Decode(&d))
		assert.Equal(t, "seo_manager", d.Role)
		assert.True(t, base.Equal(got.CreatedAt), "replace keeps created time")

		n, err := s.Count(ctx, storage.CollectionUsers, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("update rolls back on error", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Insert(ctx, storage.CollectionRoles, record(t, "r1", base, doc{Name: "editor"})))

		boom := errors.New("boom")
		err := s.Update(ctx, func(tx storage.Tx) error {
			if err := tx.Delete(ctx, storage.CollectionRoles, "r1"); err != nil {
				return err
			}
			if err := tx.Insert(ctx, storage.CollectionRoles, record(t, "r2", base, doc{Name: "writer"})); err != nil {
				return err
			}
			return boom
		})
		assert.ErrorIs(t, err, boom)

		_, err = s.Get(ctx, storage.CollectionRoles, "r1")
		assert.NoError(t, err)
		_, err = s.Get(ctx, storage.CollectionRoles, "r2")
		assert.ErrorIs(t, err, storage.ErrNotFound)

		// the unique value freed by the rolled back delete is still taken
		err = s.Insert(ctx, storage.CollectionRoles, record(t, "r3", base, doc{Name: "editor"}))
		assert.ErrorIs(t, err, storage.ErrDuplicate)
	})

	t.Run("replace and delete missing", func(t *testing.T) {
		s := newStore(t)
		err := s.Update(ctx, func(tx storage.Tx) error {
			return tx.Replace(ctx, storage.CollectionUsers, record(t, "ghost", base, doc{}))
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)

		err = s.Update(ctx, func(tx storage.Tx) error {
			return tx.Delete(ctx, storage.CollectionUsers, "ghost")
		})
		assert.ErrorIs(t, err, storage.ErrNotFound)
	})

	t.Run("concurrent check then insert is linearizable", func(t *testing.T) {
		s := newStore(t)
		const workers = 16

		var wg sync.WaitGroup
		var mu sync.Mutex
		created := 0
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				err := s.Update(ctx, func(tx storage.Tx) error {
					n, err := tx.Count(ctx, storage.CollectionUsers, storage.Filter{"role": "super_admin"})
					if err != nil || n > 0 {
						return err
					}
					id := fmt.Sprintf("sa%d", i)
					return tx.Insert(ctx, storage.CollectionUsers, record(t, id, base, doc{Username: id, Role: "super_admin"}))
				})
				assert.NoError(t, err)
				mu.Lock()
				created++
				mu.Unlock()
			}(i)
		}
		wg.Wait()

		assert.Equal(t, workers, created)
		n, err := s.Count(ctx, storage.CollectionUsers, storage.Filter{"role": "super_admin"})
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}
