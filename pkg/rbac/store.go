package rbac

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/platinummonkey/cmsadmin/pkg/storage"
)

// Store reads and writes role documents in the admin_roles collection
type Store struct {
	db storage.Store
}

// NewStore creates a new role store
func NewStore(db storage.Store) *Store {
	return &Store{db: db}
}

// GetRole retrieves a role by id. Returns storage.ErrNotFound when absent.
func (s *Store) GetRole(ctx context.Context, id string) (*Role, error) {
	return getRole(ctx, s.db, id)
}

// GetRoleByName retrieves a role by its unique name
func (s *Store) GetRoleByName(ctx context.Context, name string) (*Role, error) {
	return getRoleByName(ctx, s.db, name)
}

// ListRoles returns all roles, system roles first, then by name
func (s *Store) ListRoles(ctx context.Context) ([]Role, error) {
	recs, err := s.db.Find(ctx, storage.CollectionRoles, storage.Query{})
	if err != nil {
		return nil, fmt.Errorf("failed to list roles: %w", err)
	}
	roles, err := storage.DecodeAll[Role](recs)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(roles, func(i, j int) bool {
		if roles[i].IsSystem != roles[j].IsSystem {
			return roles[i].IsSystem
		}
		return roles[i].Name < roles[j].Name
	})
	return roles, nil
}

func getRole(ctx context.Context, r storage.Reader, id string) (*Role, error) {
	rec, err := r.Get(ctx, storage.CollectionRoles, id)
	if err != nil {
		return nil, err
	}
	var role Role
	if err := rec.Decode(&role); err != nil {
		return nil, err
	}
	return &role, nil
}

func getRoleByName(ctx context.Context, r storage.Reader, name string) (*Role, error) {
	recs, err := r.Find(ctx, storage.CollectionRoles, storage.Query{
		Filter: storage.Filter{"name": name},
		Limit:  1,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to look up role %q: %w", name, err)
	}
	if len(recs) == 0 {
		return nil, storage.ErrNotFound
	}
	var role Role
	if err := recs[0].Decode(&role); err != nil {
		return nil, err
	}
	return &role, nil
}

func putRole(ctx context.Context, tx storage.Tx, role *Role, replace bool) error {
	rec, err := storage.NewRecord(role.ID, role.CreatedAt, role)
	if err != nil {
		return err
	}
	if replace {
		return tx.Replace(ctx, storage.CollectionRoles, rec)
	}
	return tx.Insert(ctx, storage.CollectionRoles, rec)
}

func isNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
